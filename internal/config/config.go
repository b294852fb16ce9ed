package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUrl         string
	Port          string
	PublicBaseURL string

	PaygramAPIURL   string
	PaygramAPIToken string
	PaygramEscrowID string

	NexuspayBaseURL    string
	NexuspayUsername   string
	NexuspayPassword   string
	NexuspayMerchantID string
	NexuspayKey        string
}

func LoadConfig() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println(".env file not found, falling back to environment")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		DBUrl:         os.Getenv("DB_URL"),
		Port:          port,
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:"+port),

		PaygramAPIURL:   getEnv("PAYGRAM_API_URL", "https://api.pay-gram.org"),
		PaygramAPIToken: os.Getenv("PAYGRAM_API_TOKEN"),
		PaygramEscrowID: os.Getenv("PAYGRAM_ESCROW_ID"),

		NexuspayBaseURL:    getEnv("NEXUSPAY_BASE_URL", "https://nexuspay.cloud"),
		NexuspayUsername:   os.Getenv("NEXUSPAY_USERNAME"),
		NexuspayPassword:   os.Getenv("NEXUSPAY_PASSWORD"),
		NexuspayMerchantID: os.Getenv("NEXUSPAY_MERCHANT_ID"),
		NexuspayKey:        os.Getenv("NEXUSPAY_KEY"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

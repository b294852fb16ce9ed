package router

import (
	"database/sql"
	"net/http"
	"os"

	"payverse/internal/config"
	"payverse/internal/handlers"
	"payverse/internal/middleware"
	"payverse/internal/nexuspay"
	"payverse/internal/paygram"
	"payverse/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func SetupRouter(db *sql.DB, cfg config.Config, logger zerolog.Logger) *mux.Router {
	settingsService := services.NewSettingsService(db, nexuspay.Credentials{
		Username:   cfg.NexuspayUsername,
		Password:   cfg.NexuspayPassword,
		MerchantID: cfg.NexuspayMerchantID,
		SecretKey:  cfg.NexuspayKey,
	}, logger)

	custodian := paygram.NewClient(cfg.PaygramAPIURL, cfg.PaygramAPIToken, logger)
	sessions := nexuspay.NewSessionManager(cfg.NexuspayBaseURL, settingsService, logger)
	gateway := nexuspay.NewClient(cfg.NexuspayBaseURL, settingsService, logger)

	ledgerService := services.NewLedgerService(db, logger)
	userService := services.NewUserService(db, logger)
	cashinService := services.NewCashinService(ledgerService, userService, custodian, sessions, gateway, cfg.PublicBaseURL, logger)
	cashoutService := services.NewCashoutService(ledgerService, userService, custodian, sessions, gateway, cfg.PaygramEscrowID, logger)
	adminService := services.NewAdminService(db, ledgerService, cashinService, sessions, gateway, logger)
	authService := services.NewAuthService(userService, logger)

	authHandler := handlers.NewAuthHandler(authService, logger)
	cashinHandler := handlers.NewCashinHandler(cashinService, logger)
	cashoutHandler := handlers.NewCashoutHandler(cashoutService, logger)
	webhookHandler := handlers.NewWebhookHandler(cashinService, logger)
	walletHandler := handlers.NewWalletHandler(ledgerService, userService, custodian, logger)
	adminHandler := handlers.NewAdminHandler(adminService, settingsService, logger)

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "default-secret-key-change-in-production"
		logger.Warn().Msg("JWT_SECRET not set, using default key")
	}

	r := mux.NewRouter()

	rateLimiter := middleware.NewRateLimiter(rate.Limit(10), 20)

	r.Use(middleware.ErrorHandling(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	r.Use(rateLimiter.Middleware())

	api := r.PathPrefix("/api/v1").Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", authHandler.Login).Methods("POST")

	// The webhook is called by the gateway, not by users: no JWT there.
	api.HandleFunc("/nexuspay/webhook", webhookHandler.HandleWebhook).Methods("POST")

	nexus := api.PathPrefix("/nexuspay").Subrouter()
	nexus.Use(middleware.Authentication(jwtSecret, logger))
	nexus.HandleFunc("/cashin", cashinHandler.CreateCashin).Methods("POST")
	nexus.HandleFunc("/cashin-status/{transactionId}", cashinHandler.CashinStatus).Methods("GET")
	nexus.HandleFunc("/cashout", cashoutHandler.CreateCashout).Methods("POST")

	wallet := api.PathPrefix("/wallet").Subrouter()
	wallet.Use(middleware.Authentication(jwtSecret, logger))
	wallet.HandleFunc("/balance", walletHandler.GetBalance).Methods("GET")
	wallet.HandleFunc("/transactions", walletHandler.GetTransactions).Methods("GET")
	wallet.HandleFunc("/link", walletHandler.LinkWallet).Methods("POST")

	adminLimiter := middleware.NewRateLimiter(rate.Limit(2), 5)
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.Authentication(jwtSecret, logger))
	admin.Use(middleware.RequireRole("admin", "super_admin"))
	admin.Use(adminLimiter.Middleware())
	admin.HandleFunc("/qrph/process/{id}", adminHandler.ProcessCashin).Methods("POST")
	admin.HandleFunc("/qrph/process-all", adminHandler.ProcessAllPending).Methods("POST")
	admin.HandleFunc("/qrph/direct-credit/{id}", adminHandler.DirectCredit).Methods("POST")
	admin.HandleFunc("/audit-logs", adminHandler.ListAuditLogs).Methods("GET")
	admin.HandleFunc("/settings", adminHandler.UpdateSettings).Methods("PUT")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return r
}

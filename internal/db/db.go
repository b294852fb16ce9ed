package db

import (
	"database/sql"
	"log"

	_ "github.com/go-sql-driver/mysql"
)

func InitDB(dbURL string) *sql.DB {
	db, err := sql.Open("mysql", dbURL)
	if err != nil {
		log.Fatal("❌ Could not connect to database:", err)
	}

	err = db.Ping()
	if err != nil {
		log.Fatal("❌ Database is not responding:", err)
	}

	log.Println("✅ Connected to database")
	return db
}

func RunMigrations(db *sql.DB) {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INT AUTO_INCREMENT PRIMARY KEY,
			username VARCHAR(100),
			email VARCHAR(100),
			password_hash VARCHAR(255),
			role VARCHAR(50) DEFAULT 'user',
			balance DECIMAL(20,2) NOT NULL DEFAULT 0,
			fiat_balance DECIMAL(20,2) NOT NULL DEFAULT 0,
			phpt_balance DECIMAL(20,2) NOT NULL DEFAULT 0,
			is_active TINYINT(1) NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uniq_email (email)
		);`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id INT AUTO_INCREMENT PRIMARY KEY,
			sender_id INT,
			receiver_id INT,
			amount DECIMAL(20,2) NOT NULL,
			type VARCHAR(50) NOT NULL,
			status VARCHAR(50) NOT NULL,
			wallet_type VARCHAR(10) NOT NULL DEFAULT 'phpt',
			note TEXT,
			external_tx_id VARCHAR(100),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_external_tx_id (external_tx_id),
			INDEX idx_status_type (status, type),
			INDEX idx_receiver (receiver_id),
			INDEX idx_sender (sender_id)
		);`,
		`CREATE TABLE IF NOT EXISTS wallet_links (
			id INT AUTO_INCREMENT PRIMARY KEY,
			user_id INT NOT NULL,
			paygram_user_id VARCHAR(100) NOT NULL,
			valid TINYINT(1) NOT NULL DEFAULT 1,
			last_error TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uniq_user (user_id),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id INT AUTO_INCREMENT PRIMARY KEY,
			actor_id INT NOT NULL,
			action VARCHAR(100) NOT NULL,
			target_type VARCHAR(50),
			target_id VARCHAR(100),
			before_value TEXT,
			after_value TEXT,
			risk_level VARCHAR(20) NOT NULL DEFAULT 'low',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_actor (actor_id),
			INDEX idx_created_at (created_at)
		);`,
		`CREATE TABLE IF NOT EXISTS merchant_settings (
			id INT AUTO_INCREMENT PRIMARY KEY,
			merchant_id VARCHAR(100) NOT NULL,
			secret_key VARCHAR(255) NOT NULL,
			username VARCHAR(100) NOT NULL,
			password VARCHAR(255) NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		);`,
	}

	for _, q := range queries {
		_, err := db.Exec(q)
		if err != nil {
			log.Fatal("Migration failed:", err)
		}
	}
	log.Println("Migrations complete")
}

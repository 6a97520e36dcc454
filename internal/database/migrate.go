package database

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id CHAR(36) PRIMARY KEY,
		full_name VARCHAR(255) NOT NULL DEFAULT '',
		phone VARCHAR(32) NOT NULL DEFAULT '',
		role VARCHAR(16) NOT NULL DEFAULT 'buyer',
		is_active BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS listings (
		id CHAR(36) PRIMARY KEY,
		seller_id CHAR(36) NOT NULL,
		lot_number VARCHAR(16) NOT NULL,
		title VARCHAR(255) NOT NULL DEFAULT '',
		starting_price DECIMAL(12,2) NOT NULL,
		reserve_price DECIMAL(12,2) NULL,
		current_bid DECIMAL(12,2) NULL,
		status VARCHAR(32) NOT NULL,
		auction_duration_sec BIGINT NOT NULL DEFAULT 0,
		auction_start_time DATETIME(3) NULL,
		auction_end_time DATETIME(3) NULL,
		ended_at DATETIME(3) NULL,
		created_at DATETIME(3) NOT NULL,
		INDEX idx_listings_status_end (status, auction_end_time),
		INDEX idx_listings_status_ended (status, ended_at)
	)`,
	`CREATE TABLE IF NOT EXISTS bids (
		id CHAR(26) PRIMARY KEY COMMENT 'ULID',
		listing_id CHAR(36) NOT NULL,
		user_id CHAR(36) NOT NULL,
		amount DECIMAL(12,2) NOT NULL,
		created_at DATETIME(3) NOT NULL,
		INDEX idx_bids_listing (listing_id, amount),
		INDEX idx_bids_user (user_id),
		FOREIGN KEY (listing_id) REFERENCES listings(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id CHAR(36) PRIMARY KEY,
		user_id CHAR(36) NOT NULL,
		type VARCHAR(32) NOT NULL,
		title VARCHAR(255) NOT NULL,
		message TEXT NOT NULL,
		listing_id CHAR(36) NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME(3) NOT NULL,
		INDEX idx_notifications_user (user_id, created_at)
	)`,
}

// Migrate creates the engine's tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, q := range schema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}

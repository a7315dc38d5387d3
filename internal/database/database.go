package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Store wraps the database handle and implements the service layer's
// RideStore and UserStore interfaces.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

func Connect(dbURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func Migrate(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			user_type TEXT NOT NULL CHECK(user_type IN ('passenger', 'rider')),
			vehicle_type TEXT CHECK(vehicle_type IN ('car', 'bike', 'auto')),
			vehicle_model TEXT,
			vehicle_registration TEXT,
			longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			is_available BOOLEAN NOT NULL DEFAULT FALSE,
			rating DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_rides INT NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS rides (
			id TEXT PRIMARY KEY,
			passenger_id TEXT NOT NULL REFERENCES users(id),
			rider_id TEXT REFERENCES users(id),
			pickup_address TEXT NOT NULL,
			pickup_lon DOUBLE PRECISION NOT NULL,
			pickup_lat DOUBLE PRECISION NOT NULL,
			dest_address TEXT NOT NULL,
			dest_lon DOUBLE PRECISION NOT NULL,
			dest_lat DOUBLE PRECISION NOT NULL,
			distance DOUBLE PRECISION NOT NULL,
			duration DOUBLE PRECISION NOT NULL,
			fare DOUBLE PRECISION NOT NULL,
			vehicle_type TEXT NOT NULL CHECK(vehicle_type IN ('car', 'bike', 'auto')),
			status TEXT NOT NULL DEFAULT 'requested'
				CHECK(status IN ('requested', 'accepted', 'in-progress', 'completed', 'cancelled')),
			otp TEXT NOT NULL,
			start_time BIGINT,
			end_time BIGINT,
			passenger_rating INT CHECK(passenger_rating BETWEEN 1 AND 5),
			rider_rating INT CHECK(rider_rating BETWEEN 1 AND 5),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Archive of deleted accounts, kept for support lookups.
		`CREATE TABLE IF NOT EXISTS deleted_users (
			id SERIAL PRIMARY KEY,
			original_id TEXT NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			user_type TEXT NOT NULL,
			member_since BIGINT,
			vehicle_type TEXT,
			vehicle_model TEXT,
			vehicle_registration TEXT,
			total_rides INT NOT NULL DEFAULT 0,
			rating DOUBLE PRECISION NOT NULL DEFAULT 0,
			deleted_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		`CREATE INDEX IF NOT EXISTS idx_users_type_available ON users(user_type, is_available)`,
		`CREATE INDEX IF NOT EXISTS idx_rides_passenger_id ON rides(passenger_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rides_rider_id ON rides(rider_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rides_status ON rides(status)`,
		`CREATE INDEX IF NOT EXISTS idx_rides_created_at ON rides(created_at)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

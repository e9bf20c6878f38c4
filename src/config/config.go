package config

import (
	"fmt"
	"log"
	"os"
	"time"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

var API_ENV = os.Getenv("API_ENV")

const (
	DefaultOfferWindow   = 48 * time.Hour
	DefaultSweepInterval = 1 * time.Hour
)

// OfferWindow is how long a claimant has to accept an offer before it
// lapses. Tunable per deployment via WAITLIST_OFFER_WINDOW.
func OfferWindow() time.Duration {
	raw := os.Getenv("WAITLIST_OFFER_WINDOW")
	if raw == "" {
		return DefaultOfferWindow
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Invalid WAITLIST_OFFER_WINDOW %q, using default: %s\n", raw, DefaultOfferWindow)
		return DefaultOfferWindow
	}
	return d
}

func SweepInterval() time.Duration {
	raw := os.Getenv("WAITLIST_SWEEP_INTERVAL")
	if raw == "" {
		return DefaultSweepInterval
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Invalid WAITLIST_SWEEP_INTERVAL %q, using default: %s\n", raw, DefaultSweepInterval)
		return DefaultSweepInterval
	}
	return d
}

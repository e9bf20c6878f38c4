package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOfferWindowDefault(t *testing.T) {
	os.Unsetenv("WAITLIST_OFFER_WINDOW")
	assert.Equal(t, 48*time.Hour, OfferWindow())
}

func TestOfferWindowFromEnv(t *testing.T) {
	os.Setenv("WAITLIST_OFFER_WINDOW", "24h")
	defer os.Unsetenv("WAITLIST_OFFER_WINDOW")
	assert.Equal(t, 24*time.Hour, OfferWindow())
}

func TestOfferWindowInvalidFallsBack(t *testing.T) {
	os.Setenv("WAITLIST_OFFER_WINDOW", "soon")
	defer os.Unsetenv("WAITLIST_OFFER_WINDOW")
	assert.Equal(t, DefaultOfferWindow, OfferWindow())
}

func TestSweepIntervalFromEnv(t *testing.T) {
	os.Setenv("WAITLIST_SWEEP_INTERVAL", "15m")
	defer os.Unsetenv("WAITLIST_SWEEP_INTERVAL")
	assert.Equal(t, 15*time.Minute, SweepInterval())
}

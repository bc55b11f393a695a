package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sk-governance-api/pkg/config"
)

func TestTermServiceConfig(t *testing.T) {
	cfg := &config.Config{Terms: config.TermsConfig{
		Timezone:               "Asia/Manila",
		MaxPastYears:           3,
		MaxFutureYears:         6,
		ExtendReopensCompleted: false,
	}}

	got := TermServiceConfig(cfg)
	assert.False(t, got.Policy.ReopenOnExtend)
	assert.Equal(t, 3, got.Policy.Dates.MaxPastYears)
	assert.Equal(t, 6, got.Policy.Dates.MaxFutureYears)
	assert.Equal(t, "Asia/Manila", got.Location.String())
}

func TestTermServiceConfigFallsBackToUTC(t *testing.T) {
	cfg := &config.Config{Terms: config.TermsConfig{Timezone: "Mars/Olympus"}}
	assert.Equal(t, time.UTC, TermServiceConfig(cfg).Location)
}

func TestAuthConfig(t *testing.T) {
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "s3cret", Issuer: "sk", Expiration: time.Hour}}
	got := AuthConfig(cfg)
	assert.Equal(t, "s3cret", got.AccessTokenSecret)
	assert.Equal(t, "sk", got.Issuer)
	assert.Equal(t, time.Hour, got.AccessTokenExpiry)
}

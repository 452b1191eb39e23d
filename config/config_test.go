package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAYTM_STRICT_CHECKSUM", "")
	t.Setenv("ACTION_TOKEN_TTL_MINUTES", "")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "")
	t.Setenv("WHATSAPP_ACCESS_TOKEN", "")

	cfg := Load()

	assert.Equal(t, 30*time.Minute, cfg.Tokens.TTL)
	assert.Equal(t, 15*time.Minute, cfg.Business.PaymentTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Business.MonitorInterval)
	assert.Equal(t, 3, cfg.Business.NotificationMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Business.NotificationRetryDelay)
	assert.Equal(t, 50, cfg.Business.RefundHistoryLimit)
	assert.False(t, cfg.Paytm.StrictChecksum)
	assert.False(t, cfg.WhatsApp.Configured())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PAYTM_STRICT_CHECKSUM", "true")
	t.Setenv("NOTIFICATION_MAX_ATTEMPTS", "5")
	t.Setenv("FRONTEND_URL", "https://villas.example.com/")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "12345")
	t.Setenv("WHATSAPP_ACCESS_TOKEN", "token")

	cfg := Load()

	assert.True(t, cfg.Paytm.StrictChecksum)
	assert.Equal(t, 5, cfg.Business.NotificationMaxAttempts)
	assert.Equal(t, "https://villas.example.com", cfg.Business.FrontendURL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.WhatsApp.Configured())
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	assert.Equal(t, 7, getEnvInt("SOME_INT", 7))
}

func TestValidateRejectsDefaultSecretInProduction(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Env: "production"}, Tokens: TokenConfig{Secret: DefaultTokenSecret}}
	assert.Error(t, cfg.Validate())

	cfg.Tokens.Secret = ""
	assert.Error(t, cfg.Validate())

	cfg.Tokens.Secret = "3f1c9a7e-long-random-value"
	assert.NoError(t, cfg.Validate())

	dev := &Config{Server: ServerConfig{Env: "development"}, Tokens: TokenConfig{Secret: DefaultTokenSecret}}
	assert.NoError(t, dev.Validate())
}

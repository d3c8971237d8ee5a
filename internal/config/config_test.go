package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Broker)
	assert.Equal(t, 1883, cfg.Port)
	assert.Equal(t, "uns-bridge", cfg.ClientID)
	assert.Empty(t, cfg.Username)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 10*time.Second, cfg.PublishTimeout)
	assert.Equal(t, 120*time.Second, cfg.MaxReconnectInterval)
	assert.Equal(t, 0, cfg.StatusPort)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MQTT_BROKER", "broker.example.com")
	t.Setenv("MQTT_PORT", "8883")
	t.Setenv("MQTT_USERNAME", "bridge")
	t.Setenv("MQTT_PASSWORD", "secret")
	t.Setenv("MQTT_CLIENT_ID", "factory-bridge")
	t.Setenv("UNS_STATUS_PORT", "9090")
	t.Setenv("UNS_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "broker.example.com", cfg.Broker)
	assert.Equal(t, 8883, cfg.Port)
	assert.Equal(t, "bridge", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "factory-bridge", cfg.ClientID)
	assert.Equal(t, 9090, cfg.StatusPort)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("MQTT_PORT", "70000")

	_, err := Load()
	assert.Error(t, err)
}

func TestBrokerURL(t *testing.T) {
	cfg := &Config{Broker: "10.0.0.5", Port: 1883}
	assert.Equal(t, "tcp://10.0.0.5:1883", cfg.BrokerURL())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Broker:         "localhost",
			Port:           1883,
			ClientID:       "uns-bridge",
			ConnectTimeout: 10 * time.Second,
			PublishTimeout: 10 * time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty broker", func(c *Config) { c.Broker = "" }, true},
		{"port zero", func(c *Config) { c.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Port = 70000 }, true},
		{"empty client id", func(c *Config) { c.ClientID = "" }, true},
		{"zero connect timeout", func(c *Config) { c.ConnectTimeout = 0 }, true},
		{"negative status port", func(c *Config) { c.StatusPort = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// Package config loads the bridge configuration from environment
// variables, with defaults suitable for a local broker.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the bridge needs at startup.
type Config struct {
	// MQTT broker connection.
	Broker   string
	Port     int
	Username string
	Password string
	ClientID string

	// Operation timeouts. Discover/Search/Read defaults match the tool
	// schema defaults; tool calls may override them per request.
	ConnectTimeout       time.Duration
	PublishTimeout       time.Duration
	MaxReconnectInterval time.Duration

	// Operations surface.
	StatusPort int
	LogLevel   string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("mqtt_broker", "localhost")
	v.SetDefault("mqtt_port", 1883)
	v.SetDefault("mqtt_username", "")
	v.SetDefault("mqtt_password", "")
	v.SetDefault("mqtt_client_id", "uns-bridge")
	v.SetDefault("mqtt_connect_timeout", 10)
	v.SetDefault("mqtt_publish_timeout", 10)
	v.SetDefault("mqtt_max_reconnect_interval", 120)
	v.SetDefault("uns_status_port", 0)
	v.SetDefault("uns_log_level", "info")

	v.AutomaticEnv()

	cfg := &Config{
		Broker:               v.GetString("mqtt_broker"),
		Port:                 v.GetInt("mqtt_port"),
		Username:             v.GetString("mqtt_username"),
		Password:             v.GetString("mqtt_password"),
		ClientID:             v.GetString("mqtt_client_id"),
		ConnectTimeout:       time.Duration(v.GetInt("mqtt_connect_timeout")) * time.Second,
		PublishTimeout:       time.Duration(v.GetInt("mqtt_publish_timeout")) * time.Second,
		MaxReconnectInterval: time.Duration(v.GetInt("mqtt_max_reconnect_interval")) * time.Second,
		StatusPort:           v.GetInt("uns_status_port"),
		LogLevel:             v.GetString("uns_log_level"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded values for ranges the broker or the OS
// would reject later anyway.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt broker host must not be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("mqtt port %d out of range (1-65535)", c.Port)
	}
	if c.ClientID == "" {
		return fmt.Errorf("mqtt client id must not be empty")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive, got %s", c.ConnectTimeout)
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("publish timeout must be positive, got %s", c.PublishTimeout)
	}
	if c.StatusPort < 0 || c.StatusPort > 65535 {
		return fmt.Errorf("status port %d out of range (0-65535)", c.StatusPort)
	}
	return nil
}

// BrokerURL renders the paho connection URL, tcp://host:port.
func (c *Config) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Broker, c.Port)
}

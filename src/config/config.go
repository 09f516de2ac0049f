package config

import (
	"fmt"
	"os"
	"strconv"

	"chart-observer/src/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config from a YAML file, then applies .env and environment overrides
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}

	// 3. Environment overrides (.env is optional)
	_ = godotenv.Load()
	config.applyEnv()
	config.applyDefaults()

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyEnv() {
	if v := os.Getenv("CHART_REST_URL"); v != "" {
		c.Backend.RestURL = v
	}
	if v := os.Getenv("CHART_STREAM_URL"); v != "" {
		c.Backend.StreamURL = v
	}
	if v := os.Getenv("CHART_PROXY"); v != "" {
		c.Backend.Proxy = v
	}
	if v := os.Getenv("CHART_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("CHART_SYMBOL"); v != "" {
		c.Chart.DefaultSymbol = v
	}
	if v := os.Getenv("CHART_INTERVAL"); v != "" {
		c.Chart.DefaultInterval = v
	}
	if v := os.Getenv("CHART_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Chart.DefaultSymbol == "" {
		c.Chart.DefaultSymbol = "BTCUSDT"
	}
	if c.Chart.DefaultInterval == "" {
		c.Chart.DefaultInterval = string(models.Interval5m)
	}
	if c.Chart.HistoryLimit == 0 {
		c.Chart.HistoryLimit = 200
	}
	if c.Backend.RequestTimeout == 0 {
		c.Backend.RequestTimeout = 10
	}
	if c.Stream.HandshakeTimeout == 0 {
		c.Stream.HandshakeTimeout = 10
	}
	if c.Stream.PingIntervalSeconds == 0 {
		c.Stream.PingIntervalSeconds = 25
	}
	if c.Stream.ReadTimeoutSeconds == 0 {
		c.Stream.ReadTimeoutSeconds = 60
	}
	if c.Stream.MaxMessageSize == 0 {
		c.Stream.MaxMessageSize = 1024 * 1024
	}
	if c.Stream.ReconnectBaseMs == 0 {
		c.Stream.ReconnectBaseMs = 500
	}
	if c.Stream.ReconnectMaxMs == 0 {
		c.Stream.ReconnectMaxMs = 30000
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d", c.GrpcPort)
	}

	// Validate Backend configuration
	if c.Backend.RestURL == "" {
		return fmt.Errorf("backend rest_url cannot be empty")
	}
	if c.Backend.StreamURL == "" {
		return fmt.Errorf("backend stream_url cannot be empty")
	}
	if c.Backend.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}

	// Validate Chart configuration
	if _, err := models.NewSelection(c.Chart.DefaultSymbol, c.Chart.DefaultInterval); err != nil {
		return fmt.Errorf("invalid default selection: %w", err)
	}
	if c.Chart.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be greater than 0")
	}
	if c.Chart.MaxCandles < 0 {
		return fmt.Errorf("max candles cannot be negative")
	}
	if c.Chart.MaxCandles > 0 && c.Chart.MaxCandles < c.Chart.HistoryLimit {
		return fmt.Errorf("max candles (%d) must not be below history limit (%d)", c.Chart.MaxCandles, c.Chart.HistoryLimit)
	}

	// Validate Stream configuration
	if c.Stream.ReconnectBaseMs <= 0 || c.Stream.ReconnectMaxMs < c.Stream.ReconnectBaseMs {
		return fmt.Errorf("invalid reconnect delays: base %dms, max %dms", c.Stream.ReconnectBaseMs, c.Stream.ReconnectMaxMs)
	}
	if c.Stream.ReconnectMaxTries < 0 {
		return fmt.Errorf("reconnect max attempts cannot be negative")
	}

	return nil
}

// -----------------------------------------------------------------------------

// DefaultSelection returns the configured start-up selection.
func (c *Config) DefaultSelection() models.MSelection {
	sel, _ := models.NewSelection(c.Chart.DefaultSymbol, c.Chart.DefaultInterval)
	return sel
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"chart-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
name: chart-observer
host: 127.0.0.1
port: 8090
log_level: DEBUG
backend:
  rest_url: http://localhost:8000/api/v1
  stream_url: ws://localhost:8000/ws/market_data
chart:
  default_symbol: ethusdt
  default_interval: 15m
  history_limit: 100
  max_candles: 500
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestNewConfig_LoadsAndDefaults(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "chart-observer", cfg.Name)
	assert.Equal(t, 100, cfg.Chart.HistoryLimit)
	assert.Equal(t, 10, cfg.Backend.RequestTimeout)
	assert.Equal(t, 500, cfg.Stream.ReconnectBaseMs)
	assert.Equal(t, 30000, cfg.Stream.ReconnectMaxMs)
	assert.Equal(t, models.MSelection{Symbol: "ETHUSDT", Interval: models.Interval15m}, cfg.DefaultSelection())
}

func TestNewConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CHART_STREAM_URL", "ws://override:9000/ws")
	t.Setenv("CHART_SYMBOL", "SOLUSDT")
	t.Setenv("CHART_PORT", "9191")

	cfg, err := NewConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "ws://override:9000/ws", cfg.Backend.StreamURL)
	assert.Equal(t, "SOLUSDT", cfg.DefaultSelection().Symbol)
	assert.Equal(t, 9191, cfg.Port)
}

func TestNewConfig_MissingFile(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{MConfig: &models.MConfig{
			Name: "x", Host: "127.0.0.1", Port: 8090,
			Backend: models.MBackendConfig{RestURL: "http://b", StreamURL: "ws://b", RequestTimeout: 5},
			Chart:   models.MChartConfig{DefaultSymbol: "BTCUSDT", DefaultInterval: "5m", HistoryLimit: 200},
			Stream:  models.MStreamConfig{ReconnectBaseMs: 100, ReconnectMaxMs: 1000},
		}}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty name", func(c *Config) { c.Name = "" }, true},
		{"low port", func(c *Config) { c.Port = 80 }, true},
		{"bad grpc port", func(c *Config) { c.GrpcPort = 70000 }, true},
		{"no rest url", func(c *Config) { c.Backend.RestURL = "" }, true},
		{"no stream url", func(c *Config) { c.Backend.StreamURL = "" }, true},
		{"bad interval", func(c *Config) { c.Chart.DefaultInterval = "1h" }, true},
		{"empty symbol", func(c *Config) { c.Chart.DefaultSymbol = " " }, true},
		{"max below limit", func(c *Config) { c.Chart.MaxCandles = 50 }, true},
		{"max delay below base", func(c *Config) { c.Stream.ReconnectMaxMs = 10 }, true},
		{"negative attempts", func(c *Config) { c.Stream.ReconnectMaxTries = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(out))

	reloaded, err := NewConfig(out)
	require.NoError(t, err)
	assert.Equal(t, cfg.Backend, reloaded.Backend)
	assert.Equal(t, cfg.Chart.HistoryLimit, reloaded.Chart.HistoryLimit)
}

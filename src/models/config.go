package models

// MConfig Structure
type MConfig struct {
	Name     string         `yaml:"name"`
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	LogLevel string         `yaml:"log_level"`
	LogFile  MLogFileConfig `yaml:"log_file"`
	GrpcHost string         `yaml:"grpc_host"`
	GrpcPort int            `yaml:"grpc_port"`
	Backend  MBackendConfig `yaml:"backend"`
	Chart    MChartConfig   `yaml:"chart"`
	Stream   MStreamConfig  `yaml:"stream"`
	Sim      MSimConfig     `yaml:"simulator"`
}

type MLogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type MBackendConfig struct {
	RestURL        string `yaml:"rest_url"`
	StreamURL      string `yaml:"stream_url"`
	RequestTimeout int    `yaml:"timeout"`
	UserAgent      string `yaml:"user_agent"`
	Proxy          string `yaml:"proxy"`
}

type MChartConfig struct {
	DefaultSymbol   string `yaml:"default_symbol"`
	DefaultInterval string `yaml:"default_interval"`
	HistoryLimit    int    `yaml:"history_limit"`
	MaxCandles      int    `yaml:"max_candles"`
}

type MStreamConfig struct {
	HandshakeTimeout    int   `yaml:"handshake_timeout"`
	PingIntervalSeconds int   `yaml:"ping_interval_seconds"`
	ReadTimeoutSeconds  int   `yaml:"read_timeout_seconds"`
	MaxMessageSize      int64 `yaml:"max_message_size"`
	ReconnectBaseMs     int   `yaml:"reconnect_base_ms"`
	ReconnectMaxMs      int   `yaml:"reconnect_max_ms"`
	ReconnectMaxTries   int   `yaml:"reconnect_max_attempts"` // 0 = unlimited
}

type MSimConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	Symbols         []string `yaml:"symbols"`
	TickMillis      int      `yaml:"tick_ms"`
	Seed            int64    `yaml:"seed"`
	StartPrice      float64  `yaml:"start_price"`
	HistoryMaxLimit int      `yaml:"history_max_limit"`
}

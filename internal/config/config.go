package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures the full configuration surface for the application.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Telephony TelephonyConfig `mapstructure:"telephony"`
	Synthesis SynthesisConfig `mapstructure:"synthesis"`
	Assets    AssetsConfig    `mapstructure:"assets"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Events    EventsConfig    `mapstructure:"events"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
	BaseURL string `mapstructure:"base_url"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type TelephonyConfig struct {
	Provider       string        `mapstructure:"provider"`
	AccountSID     string        `mapstructure:"account_sid"`
	AuthToken      string        `mapstructure:"auth_token"`
	FromNumber     string        `mapstructure:"from_number"`
	APIBaseURL     string        `mapstructure:"api_base_url"`
	RingTimeout    int           `mapstructure:"ring_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type SynthesisConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	APIBaseURL     string        `mapstructure:"api_base_url"`
	DefaultVoice   string        `mapstructure:"default_voice"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type AssetsConfig struct {
	Dir        string `mapstructure:"dir"`
	ScratchDir string `mapstructure:"scratch_dir"`
	PublicPath string `mapstructure:"public_path"`
}

type BatchConfig struct {
	MaxSimultaneous int           `mapstructure:"max_simultaneous"`
	LaunchStagger   time.Duration `mapstructure:"launch_stagger"`
	MinDelay        time.Duration `mapstructure:"min_delay"`
}

type EventsConfig struct {
	BufferSize        int           `mapstructure:"buffer_size"`
	KeepAliveInterval time.Duration `mapstructure:"keepalive_interval"`
}

type RegistryConfig struct {
	Backend     string        `mapstructure:"backend"`
	TerminalTTL time.Duration `mapstructure:"terminal_ttl"`
}

type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

type PostgresConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	ClientID    string   `mapstructure:"client_id"`
	StatusTopic string   `mapstructure:"status_topic"`
}

type TelemetryConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	ServiceName     string        `mapstructure:"service_name"`
	SampleRatio     float64       `mapstructure:"sample_ratio"`
	TracingEnabled  bool          `mapstructure:"tracing_enabled"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("DIALBURST")
	v.SetEnvKeyReplacer(NewEnvReplacer())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewEnvReplacer standardizes environment variable names.
func NewEnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}

func applyDefaults(cfg *Config) {
	if cfg.Batch.MaxSimultaneous <= 0 || cfg.Batch.MaxSimultaneous > 50 {
		cfg.Batch.MaxSimultaneous = 50
	}
	if cfg.Batch.LaunchStagger <= 0 {
		cfg.Batch.LaunchStagger = 200 * time.Millisecond
	}
	if cfg.Batch.MinDelay <= 0 {
		cfg.Batch.MinDelay = time.Second
	}
	if cfg.Events.BufferSize <= 0 {
		cfg.Events.BufferSize = 64
	}
	if cfg.Events.KeepAliveInterval <= 0 {
		cfg.Events.KeepAliveInterval = 15 * time.Second
	}
	if cfg.Registry.Backend == "" {
		cfg.Registry.Backend = "memory"
	}
	if cfg.Registry.TerminalTTL <= 0 {
		cfg.Registry.TerminalTTL = time.Hour
	}
	if cfg.Telephony.RequestTimeout <= 0 {
		cfg.Telephony.RequestTimeout = 30 * time.Second
	}
	if cfg.Telephony.RingTimeout <= 0 {
		cfg.Telephony.RingTimeout = 30
	}
	if cfg.Synthesis.RequestTimeout <= 0 {
		cfg.Synthesis.RequestTimeout = 30 * time.Second
	}
	if cfg.Assets.PublicPath == "" {
		cfg.Assets.PublicPath = "/audio"
	}
}

// Validate rejects configurations the process cannot start with.
func Validate(cfg *Config) error {
	if cfg.App.BaseURL == "" {
		return fmt.Errorf("config: app.base_url is required")
	}
	if cfg.Telephony.Provider != "mock" {
		if cfg.Telephony.AccountSID == "" || cfg.Telephony.AuthToken == "" {
			return fmt.Errorf("config: telephony credentials are required")
		}
		if cfg.Telephony.FromNumber == "" {
			return fmt.Errorf("config: telephony.from_number is required")
		}
	}
	if cfg.Registry.Backend != "memory" && cfg.Registry.Backend != "redis" {
		return fmt.Errorf("config: registry.backend must be memory or redis, got %q", cfg.Registry.Backend)
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka enabled with no brokers")
	}
	return nil
}

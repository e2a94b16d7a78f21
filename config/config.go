package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Gemini      GeminiConfig   `mapstructure:"gemini"`
	Forecast    ForecastConfig `mapstructure:"forecast"`
	Economic    EconomicConfig `mapstructure:"economic"`
}

// ServerConfig write timeout covers a synchronous first training run.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig is optional, an empty URL disables persistence.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig is optional, an empty address falls back to an in-memory cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type ForecastConfig struct {
	LookBack       int           `mapstructure:"look_back"`
	WarmUp         int           `mapstructure:"warm_up"`
	Epochs         int           `mapstructure:"epochs"`
	BatchSize      int           `mapstructure:"batch_size"`
	LearningRate   float64       `mapstructure:"learning_rate"`
	Seed           uint64        `mapstructure:"seed"`
	Workers        int           `mapstructure:"workers"`
	TrainTimeout   time.Duration `mapstructure:"train_timeout"`
	DefaultHorizon int           `mapstructure:"default_horizon"`
	MaxHorizon     int           `mapstructure:"max_horizon"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	RetrainCron    string        `mapstructure:"retrain_cron"`
	TrainOnStart   bool          `mapstructure:"train_on_start"`
	SyncInterval   time.Duration `mapstructure:"sync_interval"`
	RunRetention   time.Duration `mapstructure:"run_retention"`
}

// EconomicConfig points at the local indicator files.
type EconomicConfig struct {
	InflationUSPath string `mapstructure:"inflation_us_path"`
	InflationIDPath string `mapstructure:"inflation_id_path"`
	BIRatePath      string `mapstructure:"bi_rate_path"`
	FedRatePath     string `mapstructure:"fed_rate_path"`
}

// Load reads config.yaml from the given directories (default . and
// ./configs), then applies environment overrides. A missing file is fine.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"database.url":          "DATABASE_URL",
		"gemini.api_key":        "GEMINI_API_KEY",
		"forecast.retrain_cron": "RETRAIN_CRON",
		"server.port":           "SERVER_PORT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s environment variable: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	config.Environment = strings.ToLower(config.Environment)
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	case c.Forecast.DefaultHorizon < 1 || c.Forecast.DefaultHorizon > c.Forecast.MaxHorizon:
		return fmt.Errorf("default horizon %d must be between 1 and max horizon %d", c.Forecast.DefaultHorizon, c.Forecast.MaxHorizon)
	case c.Forecast.CacheTTL <= 0:
		return fmt.Errorf("forecast cache ttl must be positive, got %s", c.Forecast.CacheTTL)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "11m")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "fx:")

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-1.5-flash")

	v.SetDefault("forecast.look_back", 5)
	v.SetDefault("forecast.warm_up", 200)
	v.SetDefault("forecast.epochs", 30)
	v.SetDefault("forecast.batch_size", 32)
	v.SetDefault("forecast.learning_rate", 0.001)
	v.SetDefault("forecast.seed", 42)
	v.SetDefault("forecast.workers", 0)
	v.SetDefault("forecast.train_timeout", "10m")
	v.SetDefault("forecast.default_horizon", 14)
	v.SetDefault("forecast.max_horizon", 60)
	v.SetDefault("forecast.cache_ttl", "1h")
	v.SetDefault("forecast.retrain_cron", "0 0 6 * * *")
	v.SetDefault("forecast.train_on_start", false)
	v.SetDefault("forecast.sync_interval", "6h")
	v.SetDefault("forecast.run_retention", "2160h")

	v.SetDefault("economic.inflation_us_path", "data/inflation_rate.csv")
	v.SetDefault("economic.inflation_id_path", "data/inflation_id.csv")
	v.SetDefault("economic.bi_rate_path", "data/bi_rate.csv")
	v.SetDefault("economic.fed_rate_path", "data/fed_funds_rate.csv")
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server" json:"server"`
	Database  DatabaseConfig  `mapstructure:"database" json:"database"`
	Auth      AuthConfig      `mapstructure:"auth" json:"auth"`
	Providers ProvidersConfig `mapstructure:"providers" json:"providers"`
	Usage     UsageConfig     `mapstructure:"usage" json:"usage"`
	Email     EmailConfig     `mapstructure:"email" json:"email"`
	Research  ResearchConfig  `mapstructure:"research" json:"research"`
	Logging   LoggingConfig   `mapstructure:"logging" json:"logging"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host" json:"host"`
	Port        int    `mapstructure:"port" json:"port"`
	CORSOrigins string `mapstructure:"cors_origins" json:"cors_origins"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver" json:"driver"` // "postgres" (lib/pq) or "pgx"
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"password"`
	Database string `mapstructure:"database" json:"database"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" json:"jwt_secret"`
	Issuer    string `mapstructure:"issuer" json:"issuer"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key" json:"api_key,omitempty"`
	BaseURL string `mapstructure:"base_url" json:"base_url,omitempty"`
	Model   string `mapstructure:"model" json:"model"`
}

type ProvidersConfig struct {
	// Mock swaps both upstream providers for deterministic in-process ones.
	Mock    bool           `mapstructure:"mock" json:"mock"`
	Timeout time.Duration  `mapstructure:"timeout" json:"timeout"`
	OpenAI  ProviderConfig `mapstructure:"openai" json:"openai"`
	Gemini  ProviderConfig `mapstructure:"gemini" json:"gemini"`

	// BreakerThreshold is the number of consecutive upstream failures that
	// pause a provider for BreakerCooldown. Zero disables the breaker.
	BreakerThreshold int           `mapstructure:"breaker_threshold" json:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown" json:"breaker_cooldown"`
}

// ProviderLimits are the three ceilings enforced per provider.
type ProviderLimits struct {
	Daily       int `mapstructure:"daily" json:"daily"`
	Monthly     int `mapstructure:"monthly" json:"monthly"`
	GlobalDaily int `mapstructure:"global_daily" json:"global_daily"`
}

type UsageConfig struct {
	OpenAI   ProviderLimits `mapstructure:"openai" json:"openai"`
	Gemini   ProviderLimits `mapstructure:"gemini" json:"gemini"`
	Timezone string         `mapstructure:"timezone" json:"timezone"`
}

type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled" json:"enabled"`
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"`
	From     string `mapstructure:"from" json:"from"`
}

type ResearchConfig struct {
	// Async runs the research fan-out in the background instead of inside the request.
	Async bool `mapstructure:"async" json:"async"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"` // "text" or "json"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", "http://localhost:3000,http://localhost:5173")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "research")
	v.SetDefault("database.database", "research")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "deepresearch")

	v.SetDefault("providers.mock", false)
	v.SetDefault("providers.timeout", 10*time.Minute)
	v.SetDefault("providers.breaker_threshold", 5)
	v.SetDefault("providers.breaker_cooldown", 30*time.Second)
	v.SetDefault("providers.openai.api_key", "")
	v.SetDefault("providers.openai.base_url", "")
	v.SetDefault("providers.openai.model", "gpt-4o")
	v.SetDefault("providers.gemini.api_key", "")
	v.SetDefault("providers.gemini.model", "gemini-2.0-flash")
	v.SetDefault("providers.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta/openai/")

	v.SetDefault("usage.openai.daily", 10)
	v.SetDefault("usage.openai.monthly", 100)
	v.SetDefault("usage.openai.global_daily", 500)
	v.SetDefault("usage.gemini.daily", 10)
	v.SetDefault("usage.gemini.monthly", 100)
	v.SetDefault("usage.gemini.global_daily", 500)
	v.SetDefault("usage.timezone", "UTC")

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.host", "")
	v.SetDefault("email.port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from", "reports@deepresearch.local")

	v.SetDefault("research.async", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load reads config.json from the usual search paths, applies defaults and
// environment overrides, and validates the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".deepresearch"))
	}

	return load(v)
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("DEEPRESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	loadEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvOverrides(cfg *Config) {
	if dbHost := os.Getenv("POSTGRES_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("POSTGRES_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			cfg.Database.Port = port
		}
	}
	if dbUser := os.Getenv("POSTGRES_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPass := os.Getenv("POSTGRES_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if dbName := os.Getenv("POSTGRES_DB"); dbName != "" {
		cfg.Database.Database = dbName
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Providers.OpenAI.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Providers.Gemini.APIKey = key
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
}

// Validate checks that the configuration can start a server.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Providers.Timeout <= 0 {
		return errors.New("providers.timeout must be positive")
	}
	if !c.Providers.Mock {
		if c.Providers.OpenAI.APIKey == "" {
			return errors.New("OpenAI API key is required when providers.mock is false")
		}
		if c.Providers.Gemini.APIKey == "" {
			return errors.New("Gemini API key is required when providers.mock is false")
		}
	}
	if c.Providers.BreakerThreshold < 0 {
		return errors.New("providers.breaker_threshold must not be negative")
	}
	for name, limits := range map[string]ProviderLimits{"openai": c.Usage.OpenAI, "gemini": c.Usage.Gemini} {
		if limits.Daily < 0 || limits.Monthly < 0 || limits.GlobalDaily < 0 {
			return fmt.Errorf("usage limits for %s must not be negative", name)
		}
	}
	if _, err := time.LoadLocation(c.Usage.Timezone); err != nil {
		return fmt.Errorf("invalid usage.timezone %q: %w", c.Usage.Timezone, err)
	}
	if c.Email.Enabled && c.Email.Host == "" {
		return errors.New("email.host is required when email is enabled")
	}
	return nil
}

// DSN returns the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// Package config provides configuration loading for the lingo service.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverFirestore = "firestore"
	DriverMongo     = "mongo"
	DriverBunt      = "bunt"
)

// Config holds all configuration for the application.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Store  StoreConfig  `mapstructure:"store"`
	Stream StreamConfig `mapstructure:"stream"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	Environment    string        `mapstructure:"environment"` // development, production
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig holds session configuration.
type AuthConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret"`
	CookieName string `mapstructure:"cookie_name"`
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Driver    string          `mapstructure:"driver"`
	Firestore FirestoreConfig `mapstructure:"firestore"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Bunt      BuntConfig      `mapstructure:"bunt"`
}

// FirestoreConfig holds Firebase credentials.
type FirestoreConfig struct {
	CredentialsPath string `mapstructure:"credentials_path"`
	ProjectID       string `mapstructure:"project_id"`
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// BuntConfig holds the embedded store file; ":memory:" keeps it in memory.
type BuntConfig struct {
	Path string `mapstructure:"path"`
}

// StreamConfig holds chat provider credentials. Empty credentials select the
// in-process provider.
type StreamConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// Enabled reports whether Stream credentials are configured.
func (c StreamConfig) Enabled() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// RedisConfig holds Redis configuration. An empty Addr disables rate limiting.
type RedisConfig struct {
	Addr              string `mapstructure:"addr"`
	Password          string `mapstructure:"password"`
	DB                int    `mapstructure:"db"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	BurstSize         int    `mapstructure:"burst_size"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// IsProduction reports whether the service runs in production. Session
// cookies are marked Secure only then.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// Validate checks settings that have no sensible default.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (JWT_SECRET_KEY) is required")
	}

	switch c.Store.Driver {
	case DriverFirestore:
	case DriverMongo:
		if c.Store.Mongo.URI == "" {
			return errors.New("store.mongo.uri (MONGO_URI) is required for the mongo driver")
		}
	case DriverBunt:
		if c.Store.Bunt.Path == "" {
			return errors.New("store.bunt.path is required for the bunt driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	return nil
}

// LoadEnvFile loads a dotenv file into the process environment. A missing
// file is not an error.
func LoadEnvFile(path string) (bool, error) {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Load reads configuration from an optional file and environment variables.
// An empty configFile searches ./config.yaml and ./config/config.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// bindEnv maps the conventional variable names onto config keys.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("server.environment", "APP_ENV", "NODE_ENV")
	_ = v.BindEnv("server.allowed_origins", "ALLOWED_ORIGINS")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET_KEY")
	_ = v.BindEnv("store.driver", "STORE_DRIVER")
	_ = v.BindEnv("store.firestore.credentials_path", "FIREBASE_CREDENTIALS_PATH")
	_ = v.BindEnv("store.firestore.project_id", "FIREBASE_PROJECT_ID")
	_ = v.BindEnv("store.mongo.uri", "MONGO_URI")
	_ = v.BindEnv("store.mongo.database", "MONGO_DATABASE")
	_ = v.BindEnv("store.bunt.path", "BUNT_PATH")
	_ = v.BindEnv("stream.api_key", "STREAM_API_KEY")
	_ = v.BindEnv("stream.api_secret", "STREAM_API_SECRET")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("log.level", "LOG_LEVEL")
	_ = v.BindEnv("log.format", "LOG_FORMAT")
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})

	v.SetDefault("auth.cookie_name", "jwt")

	v.SetDefault("store.driver", DriverFirestore)
	v.SetDefault("store.firestore.credentials_path", "./serviceAccountKey.json")
	v.SetDefault("store.mongo.database", "lingo")
	v.SetDefault("store.bunt.path", "lingo.db")

	v.SetDefault("stream.token_ttl", "24h")

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.requests_per_minute", 20)
	v.SetDefault("redis.burst_size", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

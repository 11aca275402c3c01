package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Server     ServerConfig
	Snapshot   SnapshotConfig
	Geocoder   GeocoderConfig
	TravelTime TravelTimeConfig
	Redis      RedisConfig
	Typesense  TypesenseConfig
	OTEL       OTELConfig
}

// AppConfig holds process-wide settings
type AppConfig struct {
	Env      string
	LogLevel string
	DataDir  string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	AdminToken     string
}

// SnapshotConfig locates the CNES snapshot and the classifier config
type SnapshotConfig struct {
	Tag              string
	SearchPaths      []string
	ClassifierConfig string
}

// GeocoderConfig holds geocoding provider and address cache configuration
type GeocoderConfig struct {
	Provider  string
	Token     string
	UserAgent string
	Budget    int
	CacheDSN  string
}

// TravelTimeConfig holds routing provider configuration
type TravelTimeConfig struct {
	Enabled    bool
	Provider   string
	Token      string
	BaseURL    string
	CacheTTLS  int
	TimeoutSec int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// LoadDotEnv loads .env files when present. Variables already set in the
// environment are left untouched.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env", filepath.Join("data", "env", ".env")}
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	dataDir := getEnv("DATA_DIR", "./data")

	cfg := &Config{
		App: AppConfig{
			Env:      getEnv("APP_ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
			DataDir:  dataDir,
		},
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
			AdminToken:     getEnv("ADMIN_TOKEN", ""),
		},
		Snapshot: SnapshotConfig{
			Tag:              getEnv("SNAPSHOT", ""),
			SearchPaths:      getEnvAsList("SNAPSHOT_PATHS", []string{filepath.Join(dataDir, "cnes")}),
			ClassifierConfig: getEnv("CLASSIFIER_CONFIG", ""),
		},
		Geocoder: GeocoderConfig{
			Provider:  strings.ToLower(getEnv("GEOCODER", "nominatim")),
			Token:     getEnv("GEOCODER_TOKEN", ""),
			UserAgent: getEnv("GEOCODER_USER_AGENT", "maternidades-builder/1.0 (contato@maternidades.app)"),
			Budget:    getEnvAsInt("GEOCODE_BUDGET", 5000),
			CacheDSN:  getEnv("ADDRESS_CACHE_DSN", filepath.Join(dataDir, "address_cache.db")),
		},
		TravelTime: TravelTimeConfig{
			Enabled:    getEnvAsSwitch("TRAVEL_TIME", false),
			Provider:   strings.ToLower(getEnv("TRAVEL_TIME_PROVIDER", "google")),
			Token:      getEnv("TRAVEL_TIME_TOKEN", ""),
			BaseURL:    getEnv("TRAVEL_TIME_URL", ""),
			CacheTTLS:  getEnvAsInt("RATING_CACHE_TTL_S", 300),
			TimeoutSec: getEnvAsInt("TRAVEL_TIME_TIMEOUT_S", 10),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", ""),
			APIKey: getEnv("TYPESENSE_API_KEY", ""),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "maternidades"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Geocoder.Provider {
	case "nominatim", "google", "mapbox", "off":
	default:
		return fmt.Errorf("invalid GEOCODER %q: want nominatim, google, mapbox or off", c.Geocoder.Provider)
	}
	switch c.TravelTime.Provider {
	case "google", "osrm":
	default:
		return fmt.Errorf("invalid TRAVEL_TIME_PROVIDER %q: want google or osrm", c.TravelTime.Provider)
	}
	if c.Geocoder.Budget < 0 {
		return fmt.Errorf("GEOCODE_BUDGET must be >= 0, got %d", c.Geocoder.Budget)
	}
	if c.TravelTime.CacheTTLS <= 0 {
		return fmt.Errorf("RATING_CACHE_TTL_S must be > 0, got %d", c.TravelTime.CacheTTLS)
	}
	return nil
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsPostgres reports whether the address cache DSN points at PostgreSQL.
func (c *GeocoderConfig) IsPostgres() bool {
	return strings.HasPrefix(c.CacheDSN, "postgres://") || strings.HasPrefix(c.CacheDSN, "postgresql://")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsSwitch accepts on/off in addition to the strconv booleans.
func getEnvAsSwitch(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "on", "yes":
		return true
	case "off", "no":
		return false
	}
	return getEnvAsBool(key, defaultValue)
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Elevation ElevationConfig `json:"elevation"`
	Analysis  AnalysisConfig  `json:"analysis"`
	Location  LocationConfig  `json:"location"`
	Sessions  SessionsConfig  `json:"sessions"`
	Archive   ArchiveConfig   `json:"archive"`
	Geocoding GeocodingConfig `json:"geocoding"`
	Logging   LoggingConfig   `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string   `json:"host"`
	Port            int      `json:"port"`
	ReadTimeout     Duration `json:"read_timeout"`
	WriteTimeout    Duration `json:"write_timeout"`
	IdleTimeout     Duration `json:"idle_timeout"`
	ShutdownTimeout Duration `json:"shutdown_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Enabled        bool     `json:"enabled"`
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	User           string   `json:"user"`
	Password       string   `json:"password"`
	DBName         string   `json:"db_name"`
	SSLMode        string   `json:"ssl_mode"`
	MaxConnections int      `json:"max_connections"`
	MaxIdleConns   int      `json:"max_idle_conns"`
	MaxLifetime    Duration `json:"max_lifetime"`
}

// ElevationConfig points at the batch elevation lookup service.
type ElevationConfig struct {
	BaseURL   string   `json:"base_url"`
	APIKey    string   `json:"api_key"`
	BatchSize int      `json:"batch_size"`
	Timeout   Duration `json:"timeout"`
}

// AnalysisConfig bounds terrain sampling.
type AnalysisConfig struct {
	Resolution    int `json:"resolution"`
	MaxResolution int `json:"max_resolution"`
}

// LocationConfig
type LocationConfig struct {
	MaxAccuracyMeters float64 `json:"max_accuracy_meters"`
}

// SessionsConfig controls in-memory editing sessions.
type SessionsConfig struct {
	IdleTTL     Duration `json:"idle_ttl"`
	SweepSpec   string   `json:"sweep_spec"`
	DefaultUnit string   `json:"default_unit"`
}

// ArchiveConfig enables S3 copies of saved measurements.
type ArchiveConfig struct {
	Enabled bool   `json:"enabled"`
	Bucket  string `json:"bucket"`
	Region  string `json:"region"`
	Prefix  string `json:"prefix"`
}

// GeocodingConfig
type GeocodingConfig struct {
	BaseURL   string   `json:"base_url"`
	UserAgent string   `json:"user_agent"`
	Limit     int      `json:"limit"`
	Timeout   Duration `json:"timeout"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// Duration decodes either a Go duration string ("30s") or integer seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var secs int64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", string(data))
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(2 * time.Minute),
			IdleTimeout:     Duration(60 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "parcel_survey",
			SSLMode:        "disable",
			MaxConnections: 10,
			MaxIdleConns:   5,
			MaxLifetime:    Duration(30 * time.Minute),
		},
		Elevation: ElevationConfig{
			BaseURL:   "https://maps.googleapis.com/maps/api/elevation/json",
			BatchSize: 100,
			Timeout:   Duration(20 * time.Second),
		},
		Analysis: AnalysisConfig{
			Resolution:    20,
			MaxResolution: 100,
		},
		Location: LocationConfig{
			MaxAccuracyMeters: 50,
		},
		Sessions: SessionsConfig{
			IdleTTL:     Duration(30 * time.Minute),
			SweepSpec:   "@every 5m",
			DefaultUnit: "hectare",
		},
		Archive: ArchiveConfig{
			Prefix: "measurements",
		},
		Geocoding: GeocodingConfig{
			BaseURL:   "https://nominatim.openstreetmap.org/search",
			UserAgent: "parcel-survey/1.0",
			Limit:     5,
			Timeout:   Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func overrideWithEnv(config *Config) error {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if err := envInt("SERVER_PORT", &config.Server.Port); err != nil {
		return err
	}

	if enabled := os.Getenv("DATABASE_ENABLED"); enabled != "" {
		config.Database.Enabled = enabled == "true" || enabled == "1"
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
		config.Database.Enabled = true
	}
	if err := envInt("DATABASE_PORT", &config.Database.Port); err != nil {
		return err
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if sslMode := os.Getenv("DATABASE_SSLMODE"); sslMode != "" {
		config.Database.SSLMode = sslMode
	}

	if url := os.Getenv("ELEVATION_BASE_URL"); url != "" {
		config.Elevation.BaseURL = url
	}
	if key := os.Getenv("ELEVATION_API_KEY"); key != "" {
		config.Elevation.APIKey = key
	}
	if err := envInt("ELEVATION_BATCH_SIZE", &config.Elevation.BatchSize); err != nil {
		return err
	}
	if err := envInt("ANALYSIS_RESOLUTION", &config.Analysis.Resolution); err != nil {
		return err
	}

	if bucket := os.Getenv("ARCHIVE_BUCKET"); bucket != "" {
		config.Archive.Bucket = bucket
		config.Archive.Enabled = true
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		config.Archive.Region = region
	}

	if url := os.Getenv("GEOCODING_BASE_URL"); url != "" {
		config.Geocoding.BaseURL = url
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	return nil
}

func envInt(key string, dst *int) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	*dst = v
	return nil
}

// Validate checks the values the services cannot run without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Elevation.BatchSize <= 0 {
		return fmt.Errorf("elevation batch size must be positive, got %d", c.Elevation.BatchSize)
	}
	if c.Analysis.MaxResolution <= 0 {
		return fmt.Errorf("analysis max resolution must be positive, got %d", c.Analysis.MaxResolution)
	}
	if c.Analysis.Resolution <= 0 || c.Analysis.Resolution > c.Analysis.MaxResolution {
		return fmt.Errorf("analysis resolution must be within 1..%d, got %d",
			c.Analysis.MaxResolution, c.Analysis.Resolution)
	}
	if c.Location.MaxAccuracyMeters < 0 {
		return fmt.Errorf("location max accuracy must not be negative")
	}
	if c.Sessions.IdleTTL <= 0 {
		return fmt.Errorf("session idle ttl must be positive")
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive enabled without a bucket")
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	Mongo         MongoConfig         `json:"mongo"`
	Storage       StorageConfig       `json:"storage"`
	Search        SearchConfig        `json:"search"`
	Notifications NotificationsConfig `json:"notifications"`
	Security      SecurityConfig      `json:"security"`
	Logging       LoggingConfig       `json:"logging"`
	Processing    ProcessingConfig    `json:"processing"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents the report history database
type DatabaseConfig struct {
	Enabled        bool          `json:"enabled"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// MongoConfig points at the farm store
type MongoConfig struct {
	URI               string `json:"uri"`
	Database          string `json:"database"`
	FarmsCollection   string `json:"farms_collection"`
	ReportsCollection string `json:"reports_collection"`
}

// StorageConfig represents the S3 report archive
type StorageConfig struct {
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// SearchConfig represents the Elasticsearch report index
type SearchConfig struct {
	Addresses []string `json:"addresses"`
	Index     string   `json:"index"`
	Username  string   `json:"username"`
	Password  string   `json:"password"`
}

// NotificationsConfig represents verification-ready notifications
type NotificationsConfig struct {
	TopicARN string `json:"topic_arn"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"`
	JWTIssuer string `json:"jwt_issuer"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// ProcessingConfig controls report output and batch recalculation
type ProcessingConfig struct {
	OutputDir             string        `json:"output_dir"`
	Workers               int           `json:"workers"`
	RecalculationSchedule string        `json:"recalculation_schedule"`
	SinkTimeout           time.Duration `json:"sink_timeout"`
	// StatusAddr is where the report worker serves /status; empty disables it
	StatusAddr            string        `json:"status_addr"`
}

// Default returns the configuration used when nothing else is supplied
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "carbonscribe_mrv",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    time.Hour,
		},
		Mongo: MongoConfig{
			Database:          "carbonscribe",
			FarmsCollection:   "farms",
			ReportsCollection: "verification_reports",
		},
		Storage: StorageConfig{
			Prefix: "reports/",
			Region: "us-east-1",
		},
		Search: SearchConfig{
			Index: "verification-reports",
		},
		Security: SecurityConfig{
			JWTIssuer: "carbon-scribe",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Processing: ProcessingConfig{
			OutputDir:             "output",
			Workers:               4,
			RecalculationSchedule: "@hourly",
			SinkTimeout:           30 * time.Second,
			StatusAddr:            ":8081",
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
// A .env file next to the working directory is loaded first when present.
func LoadConfig(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	config := Default()

	// Load from file if exists
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	return config, nil
}

// loadDotEnv populates unset environment variables from path, if it exists
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func overrideWithEnv(config *Config) {
	setString(&config.Server.Host, "SERVER_HOST")
	setInt(&config.Server.Port, "SERVER_PORT")

	setBool(&config.Database.Enabled, "DATABASE_ENABLED")
	setString(&config.Database.Host, "DATABASE_HOST")
	setInt(&config.Database.Port, "DATABASE_PORT")
	setString(&config.Database.User, "DATABASE_USER")
	setString(&config.Database.Password, "DATABASE_PASSWORD")
	setString(&config.Database.DBName, "DATABASE_DBNAME")
	setString(&config.Database.SSLMode, "DATABASE_SSLMODE")

	setString(&config.Mongo.URI, "MONGO_URI")
	setString(&config.Mongo.Database, "MONGO_DATABASE")

	setString(&config.Storage.Bucket, "S3_BUCKET")
	setString(&config.Storage.Prefix, "S3_PREFIX")
	setString(&config.Storage.Region, "AWS_REGION")
	setString(&config.Storage.Endpoint, "S3_ENDPOINT")
	setString(&config.Storage.AccessKey, "AWS_ACCESS_KEY_ID")
	setString(&config.Storage.SecretKey, "AWS_SECRET_ACCESS_KEY")

	if addrs := os.Getenv("ELASTICSEARCH_ADDRESSES"); addrs != "" {
		config.Search.Addresses = splitList(addrs)
	}
	setString(&config.Search.Index, "ELASTICSEARCH_INDEX")
	setString(&config.Search.Username, "ELASTICSEARCH_USERNAME")
	setString(&config.Search.Password, "ELASTICSEARCH_PASSWORD")

	setString(&config.Notifications.TopicARN, "SNS_TOPIC_ARN")

	setString(&config.Security.JWTSecret, "JWT_SECRET")

	setString(&config.Logging.Level, "LOG_LEVEL")
	setBool(&config.Logging.Development, "LOG_DEVELOPMENT")

	setString(&config.Processing.OutputDir, "OUTPUT_DIR")
	setInt(&config.Processing.Workers, "PROCESSING_WORKERS")
	setString(&config.Processing.RecalculationSchedule, "RECALCULATION_SCHEDULE")
	setString(&config.Processing.StatusAddr, "WORKER_STATUS_ADDR")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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

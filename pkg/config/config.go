package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config holds the configuration for the planner agent
type Config struct {
	// MQTT configuration
	MQTTBroker   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	// Redis configuration
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Postgres configuration (task and calendar source)
	PostgresHost               string
	PostgresPort               int
	PostgresUser               string
	PostgresPassword           string
	PostgresDB                 string
	PostgresSSLMode            string
	PostgresMaxConnections     int
	PostgresMaxIdleConnections int
	PostgresConnMaxLifetime    time.Duration

	// Task source: a JSON file replaces Postgres when set
	TasksFile string
	UserID    string

	// Key-value persistence backend: redis, sqlite or memory
	KVBackend  string
	SQLitePath string

	// Service configuration
	ServiceName string
	HealthPort  int
	APIPort     int
	LogLevel    string

	// Home coordinates, used when no device location is known
	Latitude  float64
	Longitude float64

	// External capabilities
	WeatherURL     string
	RoutingURL     string
	RequestTimeout time.Duration

	// Planner tuning
	PlannerFile           string
	ContextMaxAge         time.Duration
	ContextMaxDistanceM   float64
	PatternCacheTTL       time.Duration
	RouteCacheTTL         time.Duration
	MinAnalysisIntervalMs int
	AnalysisInterval      time.Duration
	JobQueueSize          int
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:   "localhost",
		MQTTPort:     1883,
		RedisHost:    "localhost",
		RedisPort:    6379,
		RedisDB:      0,
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresUser: "planner",
		PostgresDB:   "planner",

		PostgresSSLMode:            "disable",
		PostgresMaxConnections:     10,
		PostgresMaxIdleConnections: 2,
		PostgresConnMaxLifetime:    30 * time.Minute,

		KVBackend:  "redis",
		SQLitePath: "planner.db",

		ServiceName: "planner-agent",
		HealthPort:  8080,
		APIPort:     3010,
		LogLevel:    "info",

		// Helsinki
		Latitude:  60.1695,
		Longitude: 24.9354,

		WeatherURL:     "https://api.open-meteo.com/v1/forecast",
		RoutingURL:     "https://router.project-osrm.org",
		RequestTimeout: 10 * time.Second,

		ContextMaxAge:         15 * time.Minute,
		ContextMaxDistanceM:   500,
		PatternCacheTTL:       24 * time.Hour,
		RouteCacheTTL:         time.Hour,
		MinAnalysisIntervalMs: 5000,
		AnalysisInterval:      15 * time.Minute,
		JobQueueSize:          16,
	}
}

// LoadDotEnv loads a .env file into the process environment if one exists.
// Returns true when a file was loaded.
func LoadDotEnv(paths ...string) bool {
	return godotenv.Load(paths...) == nil
}

// LoadFromEnv loads configuration from environment variables with PLANNER_ prefix
func (c *Config) LoadFromEnv() {
	// MQTT configuration
	setString(&c.MQTTBroker, "PLANNER_MQTT_BROKER")
	setInt(&c.MQTTPort, "PLANNER_MQTT_PORT")
	setString(&c.MQTTUser, "PLANNER_MQTT_USER")
	setString(&c.MQTTPassword, "PLANNER_MQTT_PASSWORD")
	setString(&c.MQTTClientID, "PLANNER_MQTT_CLIENT_ID")

	// Redis configuration
	setString(&c.RedisHost, "PLANNER_REDIS_HOST")
	setInt(&c.RedisPort, "PLANNER_REDIS_PORT")
	setString(&c.RedisPassword, "PLANNER_REDIS_PASSWORD")
	setInt(&c.RedisDB, "PLANNER_REDIS_DB")

	// Postgres configuration
	setString(&c.PostgresHost, "PLANNER_POSTGRES_HOST")
	setInt(&c.PostgresPort, "PLANNER_POSTGRES_PORT")
	setString(&c.PostgresUser, "PLANNER_POSTGRES_USER")
	setString(&c.PostgresPassword, "PLANNER_POSTGRES_PASSWORD")
	setString(&c.PostgresDB, "PLANNER_POSTGRES_DB")
	setString(&c.PostgresSSLMode, "PLANNER_POSTGRES_SSLMODE")
	setInt(&c.PostgresMaxConnections, "PLANNER_POSTGRES_MAX_CONNECTIONS")

	// Task source
	setString(&c.TasksFile, "PLANNER_TASKS_FILE")
	setString(&c.UserID, "PLANNER_USER_ID")

	// Persistence
	setString(&c.KVBackend, "PLANNER_KV_BACKEND")
	setString(&c.SQLitePath, "PLANNER_SQLITE_PATH")

	// Service configuration
	setString(&c.ServiceName, "PLANNER_SERVICE_NAME")
	setInt(&c.HealthPort, "PLANNER_HEALTH_PORT")
	setInt(&c.APIPort, "PLANNER_API_PORT")
	setString(&c.LogLevel, "PLANNER_LOG_LEVEL")

	// Location
	setFloat(&c.Latitude, "PLANNER_LATITUDE")
	setFloat(&c.Longitude, "PLANNER_LONGITUDE")

	// External capabilities
	setString(&c.WeatherURL, "PLANNER_WEATHER_URL")
	setString(&c.RoutingURL, "PLANNER_ROUTING_URL")
	setDuration(&c.RequestTimeout, "PLANNER_REQUEST_TIMEOUT")

	// Planner tuning
	setString(&c.PlannerFile, "PLANNER_FILE")
	setDuration(&c.ContextMaxAge, "PLANNER_CONTEXT_MAX_AGE")
	setFloat(&c.ContextMaxDistanceM, "PLANNER_CONTEXT_MAX_DISTANCE_M")
	setDuration(&c.PatternCacheTTL, "PLANNER_PATTERN_CACHE_TTL")
	setDuration(&c.RouteCacheTTL, "PLANNER_ROUTE_CACHE_TTL")
	setInt(&c.MinAnalysisIntervalMs, "PLANNER_MIN_ANALYSIS_INTERVAL_MS")
	setDuration(&c.AnalysisInterval, "PLANNER_ANALYSIS_INTERVAL")
	setInt(&c.JobQueueSize, "PLANNER_JOB_QUEUE_SIZE")
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	c.RegisterFlags(pflag.CommandLine)
	pflag.Parse()
}

// RegisterFlags binds every config field to a flag on the given set
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	// MQTT flags
	fs.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	fs.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	fs.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	fs.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	fs.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	fs.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	fs.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Postgres flags
	fs.StringVar(&c.PostgresHost, "postgres-host", c.PostgresHost, "Postgres hostname")
	fs.IntVar(&c.PostgresPort, "postgres-port", c.PostgresPort, "Postgres port")
	fs.StringVar(&c.PostgresUser, "postgres-user", c.PostgresUser, "Postgres user")
	fs.StringVar(&c.PostgresPassword, "postgres-password", c.PostgresPassword, "Postgres password")
	fs.StringVar(&c.PostgresDB, "postgres-db", c.PostgresDB, "Postgres database name")
	fs.StringVar(&c.PostgresSSLMode, "postgres-sslmode", c.PostgresSSLMode, "Postgres sslmode")

	// Task source flags
	fs.StringVar(&c.TasksFile, "tasks-file", c.TasksFile, "JSON file with tasks and events (replaces Postgres)")
	fs.StringVar(&c.UserID, "user-id", c.UserID, "Owner of the tasks to plan (empty plans every task)")

	// Persistence flags
	fs.StringVar(&c.KVBackend, "kv-backend", c.KVBackend, "Key-value backend (redis, sqlite, memory)")
	fs.StringVar(&c.SQLitePath, "sqlite-path", c.SQLitePath, "SQLite file for the sqlite key-value backend")

	// Service flags
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	fs.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	fs.IntVar(&c.APIPort, "api-port", c.APIPort, "Planner HTTP API port")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")

	// Location flags
	fs.Float64Var(&c.Latitude, "latitude", c.Latitude, "Home latitude used when no device fix is known")
	fs.Float64Var(&c.Longitude, "longitude", c.Longitude, "Home longitude used when no device fix is known")

	// Capability flags
	fs.StringVar(&c.WeatherURL, "weather-url", c.WeatherURL, "Open-Meteo forecast endpoint")
	fs.StringVar(&c.RoutingURL, "routing-url", c.RoutingURL, "OSRM base URL (empty disables road routing)")
	fs.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "Timeout for weather and routing requests")

	// Planner flags
	fs.StringVar(&c.PlannerFile, "planner-file", c.PlannerFile, "YAML file with scoring weights and task templates")
	fs.DurationVar(&c.ContextMaxAge, "context-max-age", c.ContextMaxAge, "Maximum age of a cached optimization context")
	fs.Float64Var(&c.ContextMaxDistanceM, "context-max-distance", c.ContextMaxDistanceM, "Movement in meters that invalidates the cached context")
	fs.DurationVar(&c.PatternCacheTTL, "pattern-cache-ttl", c.PatternCacheTTL, "Lifetime of learned habit patterns")
	fs.DurationVar(&c.RouteCacheTTL, "route-cache-ttl", c.RouteCacheTTL, "Lifetime of cached route lookups")
	fs.IntVar(&c.MinAnalysisIntervalMs, "min-analysis-interval-ms", c.MinAnalysisIntervalMs, "Minimum time between analysis triggers per source (ms)")
	fs.DurationVar(&c.AnalysisInterval, "analysis-interval", c.AnalysisInterval, "Periodic re-analysis interval (0 disables)")
	fs.IntVar(&c.JobQueueSize, "job-queue-size", c.JobQueueSize, "Pending background analysis jobs")
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("health port must be between 1 and 65535")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}

	switch c.KVBackend {
	case "redis":
		if c.RedisHost == "" {
			return fmt.Errorf("redis host is required for the redis backend")
		}
		if c.RedisPort <= 0 || c.RedisPort > 65535 {
			return fmt.Errorf("redis port must be between 1 and 65535")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for the sqlite backend")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid kv backend: %s (must be redis, sqlite, or memory)", c.KVBackend)
	}

	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	if c.ContextMaxAge <= 0 {
		return fmt.Errorf("context max age must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresConnectionString returns a lib/pq connection string
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
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

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

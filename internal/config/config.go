package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Redis     RedisConfig
	Defense   DefenseConfig
	Admin     AdminConfig
	Alerts    AlertConfig
	RateLimit RateLimitConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
	StatementTimeout  time.Duration
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

// RedisConfig is optional; an empty URL disables the blacklist cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefenseConfig holds the login defense thresholds.
type DefenseConfig struct {
	LookbackWindow       time.Duration
	MaxAttempts          int
	AdminMaxAttempts     int
	CaptchaThreshold     int
	IPBlacklistThreshold int
	AttemptRetention     time.Duration
	CleanupInterval      time.Duration
	AlertDispatchTimeout time.Duration
}

// AdminConfig maps admin ids to API keys ("id:key" pairs in ADMIN_API_KEYS).
type AdminConfig struct {
	APIKeys map[string]string
}

// AlertConfig configures the optional SES notifier for critical alerts.
type AlertConfig struct {
	EmailEnabled bool
	AWSRegion    string
	FromAddress  string
	Recipients   []string
}

type RateLimitConfig struct {
	LoginRequestsPerMinute  int
	SearchRequestsPerMinute int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "donorguard"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			ConnectTimeout:    getEnvAsDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
			StatementTimeout:  getEnvAsDuration("DB_STATEMENT_TIMEOUT", 5*time.Second),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Defense: DefenseConfig{
			LookbackWindow:       getEnvAsDuration("DEFENSE_LOOKBACK_WINDOW", 1*time.Hour),
			MaxAttempts:          getEnvAsInt("DEFENSE_MAX_ATTEMPTS", 5),
			AdminMaxAttempts:     getEnvAsInt("DEFENSE_ADMIN_MAX_ATTEMPTS", 3),
			CaptchaThreshold:     getEnvAsInt("DEFENSE_CAPTCHA_THRESHOLD", 2),
			IPBlacklistThreshold: getEnvAsInt("DEFENSE_IP_BLACKLIST_THRESHOLD", 10),
			AttemptRetention:     getEnvAsDuration("DEFENSE_ATTEMPT_RETENTION", 30*24*time.Hour),
			CleanupInterval:      getEnvAsDuration("DEFENSE_CLEANUP_INTERVAL", 1*time.Hour),
			AlertDispatchTimeout: getEnvAsDuration("DEFENSE_ALERT_DISPATCH_TIMEOUT", 5*time.Second),
		},
		Alerts: AlertConfig{
			EmailEnabled: getEnvAsBool("ALERT_EMAIL_ENABLED", false),
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			FromAddress:  getEnv("ALERT_FROM_ADDRESS", ""),
			Recipients:   getEnvAsList("ALERT_RECIPIENTS"),
		},
		RateLimit: RateLimitConfig{
			LoginRequestsPerMinute:  getEnvAsInt("RATE_LIMIT_LOGIN_PER_MINUTE", 10),
			SearchRequestsPerMinute: getEnvAsInt("RATE_LIMIT_SEARCH_PER_MINUTE", 60),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	apiKeys, err := parseAdminAPIKeys(getEnv("ADMIN_API_KEYS", ""))
	if err != nil {
		return nil, err
	}
	if env == "production" && len(apiKeys) == 0 {
		return nil, fmt.Errorf("ADMIN_API_KEYS is required in production")
	}
	cfg.Admin.APIKeys = apiKeys

	if err := cfg.Defense.validate(); err != nil {
		return nil, err
	}

	if cfg.Alerts.EmailEnabled && (cfg.Alerts.FromAddress == "" || len(cfg.Alerts.Recipients) == 0) {
		return nil, fmt.Errorf("ALERT_FROM_ADDRESS and ALERT_RECIPIENTS are required when ALERT_EMAIL_ENABLED is set")
	}

	return cfg, nil
}

func (c *DefenseConfig) validate() error {
	if c.MaxAttempts < 1 || c.AdminMaxAttempts < 1 {
		return fmt.Errorf("DEFENSE_MAX_ATTEMPTS and DEFENSE_ADMIN_MAX_ATTEMPTS must be positive")
	}
	if c.AdminMaxAttempts > c.MaxAttempts {
		return fmt.Errorf("DEFENSE_ADMIN_MAX_ATTEMPTS (%d) must not exceed DEFENSE_MAX_ATTEMPTS (%d)",
			c.AdminMaxAttempts, c.MaxAttempts)
	}
	if c.LookbackWindow <= 0 {
		return fmt.Errorf("DEFENSE_LOOKBACK_WINDOW must be positive")
	}
	return nil
}

// parseAdminAPIKeys reads comma separated "id:key" pairs.
func parseAdminAPIKeys(raw string) (map[string]string, error) {
	keys := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return keys, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		id, key, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || id == "" || key == "" {
			return nil, fmt.Errorf("ADMIN_API_KEYS entries must look like id:key")
		}
		if len(key) < 24 {
			return nil, fmt.Errorf("ADMIN_API_KEYS key for %q must be at least 24 characters", id)
		}
		keys[id] = key
	}
	return keys, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return []string{}
	}
	items := strings.Split(value, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return getEnvAsList("ALLOWED_ORIGINS")
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}

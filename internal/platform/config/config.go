package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppAddr string `mapstructure:"APP_ADDR"`
	Env     string `mapstructure:"ENV"`

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`

	DBConnectAttempts int           `mapstructure:"DB_CONNECT_ATTEMPTS"`
	DBConnectDelay    time.Duration `mapstructure:"DB_CONNECT_DELAY"`

	// Redis serves the availability cache; the restoration queue uses its
	// own logical database on the same server.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	QueueRedisDB  int    `mapstructure:"QUEUE_REDIS_DB"`

	RabbitURL      string `mapstructure:"RABBIT_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	Timezone         string        `mapstructure:"TIMEZONE"`
	BookingCutoff    time.Duration `mapstructure:"BOOKING_CUTOFF"`
	SameDayHold      time.Duration `mapstructure:"SAME_DAY_HOLD"`
	SweepSpec        string        `mapstructure:"SWEEP_SPEC"`
	DefaultFleetSize int           `mapstructure:"DEFAULT_FLEET_SIZE"`
	CacheTTL         time.Duration `mapstructure:"CACHE_TTL"`

	RateLimitPerMin    int    `mapstructure:"RATE_LIMIT_PER_MIN"`
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	AdminToken         string `mapstructure:"ADMIN_TOKEN"`
}

var defaults = map[string]any{
	"APP_ADDR":             ":8080",
	"ENV":                  "development",
	"DB_HOST":              "localhost",
	"DB_PORT":              "5432",
	"DB_USER":              "postgres",
	"DB_PASSWORD":          "",
	"DB_NAME":              "taxi_availability",
	"DB_SSLMODE":           "disable",
	"DB_CONNECT_ATTEMPTS":  3,
	"DB_CONNECT_DELAY":     "5s",
	"REDIS_ADDR":           "localhost:6379",
	"REDIS_PASSWORD":       "",
	"REDIS_DB":             0,
	"QUEUE_REDIS_DB":       1,
	"RABBIT_URL":           "",
	"EVENTS_EXCHANGE":      "taxi.bookings",
	"TIMEZONE":             "Asia/Kolkata",
	"BOOKING_CUTOFF":       "22h",
	"SAME_DAY_HOLD":        "2m",
	"SWEEP_SPEC":           "@hourly",
	"DEFAULT_FLEET_SIZE":   5,
	"CACHE_TTL":            "30s",
	"RATE_LIMIT_PER_MIN":   60,
	"CORS_ALLOWED_ORIGINS": "http://localhost:3000,http://localhost:5173",
	"ADMIN_TOKEN":          "",
}

// Load reads envFile when it exists, then the process environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		// A missing file is normal outside local development.
		_ = godotenv.Load(envFile)
	}

	v := viper.New()
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.BookingCutoff < 0 || c.BookingCutoff > 24*time.Hour {
		return fmt.Errorf("BOOKING_CUTOFF must be within a day, got %s", c.BookingCutoff)
	}
	if c.SameDayHold <= 0 {
		return fmt.Errorf("SAME_DAY_HOLD must be positive, got %s", c.SameDayHold)
	}
	if c.DefaultFleetSize < 0 {
		return fmt.Errorf("DEFAULT_FLEET_SIZE must not be negative, got %d", c.DefaultFleetSize)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App     AppConfig
	Discord DiscordConfig
	Tickets TicketConfig
	Store   StoreConfig
	Redis   RedisConfig
	Setup   SetupConfig
	Ops     OpsConfig
	Logger  LoggerConfig
}

// AppConfig identifies the running process.
type AppConfig struct {
	Name    string
	Env     string
	Version string
}

// DiscordConfig holds gateway credentials.
type DiscordConfig struct {
	Token   string `validate:"required"`
	GuildID string `validate:"omitempty,numeric"`
}

// TicketConfig holds fallback defaults used when a community has no stored config.
type TicketConfig struct {
	SupportRoleID     string `validate:"omitempty,numeric"`
	CategoryID        string `validate:"omitempty,numeric"`
	PanelChannelID    string `validate:"omitempty,numeric"`
	CloseDelaySeconds int    `validate:"gte=0"`
}

// StoreConfig selects and tunes the ticket store backend.
type StoreConfig struct {
	Driver         string `validate:"oneof=sqlite postgres"`
	SQLitePath     string `validate:"required_if=Driver sqlite"`
	PostgresDSN    string `validate:"required_if=Driver postgres"`
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr keeps sessions in memory.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// SetupConfig tunes the setup wizard.
type SetupConfig struct {
	SessionTTLMinutes int `validate:"gt=0"`
}

// OpsConfig controls the operational HTTP API.
type OpsConfig struct {
	Enabled         bool
	Host            string
	Port            string
	JWTSecret       string `validate:"required_if=Enabled true"`
	TokenTTLMinutes int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "ticket-bot"),
			Env:     getEnv("APP_ENV", "development"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		Discord: DiscordConfig{
			Token:   os.Getenv("DISCORD_BOT_TOKEN"),
			GuildID: firstEnv("DISCORD_GUILD_ID", "GUILD_ID", ""),
		},
		Tickets: TicketConfig{
			SupportRoleID:     os.Getenv("SUPPORT_ROLE_ID"),
			CategoryID:        os.Getenv("TICKET_CATEGORY_ID"),
			PanelChannelID:    os.Getenv("TICKET_CHANNEL_ID"),
			CloseDelaySeconds: getEnvAsInt("TICKET_CLOSE_DELAY_SECONDS", 5),
		},
		Store: StoreConfig{
			Driver:         strings.ToLower(getEnv("STORE_DRIVER", DriverSQLite)),
			SQLitePath:     getEnv("SQLITE_PATH", "tickets.db"),
			PostgresDSN:    os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("STORE_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:      os.Getenv("REDIS_ADDR"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "ticketbot:"),
		},
		Setup: SetupConfig{
			SessionTTLMinutes: getEnvAsInt("SETUP_SESSION_TTL_MINUTES", 10),
		},
		Ops: OpsConfig{
			Enabled:         getEnvAsBool("OPS_HTTP_ENABLED", false),
			Host:            getEnv("OPS_HTTP_HOST", "127.0.0.1"),
			Port:            getEnv("OPS_HTTP_PORT", "8080"),
			JWTSecret:       os.Getenv("OPS_JWT_SECRET"),
			TokenTTLMinutes: getEnvAsInt("OPS_TOKEN_TTL_MINUTES", 60),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Validate checks required values. Commands that never reach the gateway
// (migrate, stats) use ValidateStore instead.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ValidateStore checks only the store section.
func (c *Config) ValidateStore() error {
	v := validator.New()
	if err := v.Struct(c.Store); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Addr returns the ops HTTP bind address.
func (o OpsConfig) Addr() string {
	return fmt.Sprintf("%s:%s", o.Host, o.Port)
}

// CloseDelay returns the grace period before a closed ticket's channel is removed.
func (t TicketConfig) CloseDelay() time.Duration {
	if t.CloseDelaySeconds <= 0 {
		return 0
	}
	return time.Duration(t.CloseDelaySeconds) * time.Second
}

// SessionTTL returns the idle expiry of a setup session.
func (s SetupConfig) SessionTTL() time.Duration {
	return time.Duration(s.SessionTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

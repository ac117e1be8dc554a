package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"appointment-notifier/utils"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	EnvFile        string
	EnvLoaded      bool
	RequireEnvFile bool

	AppointmentsFile string
	TemplateFile     string

	Log      LogConfig
	Email    EmailConfig
	Twilio   TwilioConfig
	Channels []string
	// SendInterval paces consecutive sends on one channel.
	SendInterval time.Duration

	DatabaseURL string
	Schedule    string
	Server      ServerConfig
}

type LogConfig struct {
	Level string
	File  string
	// Truncate starts File empty instead of appending to it.
	Truncate bool
}

// EmailConfig holds SMTP settings
type EmailConfig struct {
	User     string
	Password string
	Host     string
	Port     int
}

type TwilioConfig struct {
	AccountSID     string
	AuthToken      string
	PhoneNumber    string
	WhatsAppNumber string
}

// ServerConfig holds admin API settings
type ServerConfig struct {
	Port              string
	GinMode           string
	JWTSecret         string
	JWTExpiry         time.Duration
	AdminPasswordHash string
	CORSOrigins       []string
}

var knownChannels = map[string]bool{"email": true, "sms": true, "whatsapp": true}

// Load reads envFile (when present) into the process environment and builds
// the configuration from it.
func Load(envFile string) (*Config, error) {
	cfg := &Config{EnvFile: envFile}
	if envFile != "" {
		cfg.EnvLoaded = godotenv.Load(envFile) == nil
	}

	cfg.RequireEnvFile = getEnvBoolOrDefault("REQUIRE_ENV_FILE", true)
	cfg.AppointmentsFile = getEnvOrDefault("APPOINTMENTS_FILE", "data/appointments.csv")
	cfg.TemplateFile = getEnvOrDefault("TEMPLATE_FILE", "templates/appointment_reminder.txt")

	cfg.Log = LogConfig{
		Level: getEnvOrDefault("LOG_LEVEL", "info"),
		File:  getEnvOrDefault("LOG_FILE", "logs/activity.log"),
	}

	cfg.Email = EmailConfig{
		User:     os.Getenv("EMAIL_USER"),
		Password: os.Getenv("EMAIL_PASS"),
		Host:     getEnvOrDefault("SMTP_HOST", "smtp.gmail.com"),
		Port:     getEnvIntOrDefault("SMTP_PORT", 465),
	}

	cfg.Twilio = TwilioConfig{
		AccountSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
		AuthToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		PhoneNumber:    os.Getenv("TWILIO_PHONE_NUMBER"),
		WhatsAppNumber: os.Getenv("TWILIO_WHATSAPP_NUMBER"),
	}

	cfg.Channels = splitList(getEnvOrDefault("NOTIFY_CHANNELS", "email"))
	cfg.SendInterval = getEnvDurationOrDefault("SEND_INTERVAL", 1500*time.Millisecond)
	cfg.DatabaseURL = os.Getenv("DB_URL")
	cfg.Schedule = getEnvOrDefault("SCHEDULE", "0 9 * * *")

	cfg.Server = ServerConfig{
		Port:              getEnvOrDefault("PORT", "8080"),
		GinMode:           getEnvOrDefault("GIN_MODE", "release"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		JWTExpiry:         time.Duration(getEnvIntOrDefault("JWT_EXPIRY_HOURS", 24)) * time.Hour,
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		CORSOrigins:       splitList(getEnvOrDefault("CORS_ORIGINS", "http://localhost:3000")),
	}

	if err := cfg.validate(); err != nil {
		return nil, utils.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Channels) == 0 {
		return utils.ConfigInvalid("NOTIFY_CHANNELS must name at least one channel")
	}
	for _, ch := range c.Channels {
		if !knownChannels[ch] {
			return utils.ConfigInvalid(fmt.Sprintf("unknown channel %q in NOTIFY_CHANNELS", ch))
		}
	}
	if c.SendInterval < 0 {
		return utils.ConfigInvalid("SEND_INTERVAL must not be negative")
	}
	return nil
}

// CheckEnvironment verifies that every critical file exists before a run.
func (c *Config) CheckEnvironment() error {
	critical := []string{c.AppointmentsFile, c.TemplateFile}
	if c.RequireEnvFile && c.EnvFile != "" {
		critical = append([]string{c.EnvFile}, critical...)
	}
	for _, file := range critical {
		if _, err := os.Stat(file); err != nil {
			return utils.NotFound("required file "+file, err)
		}
	}
	return nil
}

// ValidateServer checks the settings the admin API cannot run without.
func (c *Config) ValidateServer() error {
	if c.Server.JWTSecret == "" {
		return utils.ConfigInvalid("JWT_SECRET is required to serve the admin API")
	}
	if c.Server.AdminPasswordHash == "" {
		return utils.ConfigInvalid("ADMIN_PASSWORD_HASH is required to serve the admin API")
	}
	return nil
}

// HasChannel reports whether name is enabled in NOTIFY_CHANNELS.
func (c *Config) HasChannel(name string) bool {
	for _, ch := range c.Channels {
		if ch == name {
			return true
		}
	}
	return false
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// AirtableConfig provides settings for the Airtable source API.
type AirtableConfig interface {
	GetAirtableAPIKey() string
	GetAirtableBaseID() string
	GetAirtableTableID() string
	GetAirtableEndpointURL() string
	GetAirtablePageSize() int
}

// ImportConfig provides settings for the import pipeline.
type ImportConfig interface {
	GetBookingYearMarker() string
	GetExpectedTotals() ExpectedTotals
}

// SchedulerConfig provides settings for the background scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetMorningSchedule() string
	GetEveningSchedule() string
	GetScheduleTimezone() string
	IsMorningScheduleEnabled() bool
	IsEveningScheduleEnabled() bool
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// EmailConfig provides settings for operator notification emails.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetOperatorEmail() string
}

// ExpectedTotals is the deployment-specific validation baseline. The numbers
// are compared against run counters for reporting only, never for control flow.
type ExpectedTotals struct {
	Records  int
	Bookings int
	Leads    int
	Engaged  int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                 string
	HTTPAddr            string
	DatabaseURL         string
	CORSAllowAll        bool
	CORSOrigins         []string
	AirtableAPIKey      string
	AirtableBaseID      string
	AirtableTableID     string
	AirtableEndpointURL string
	AirtablePageSize    int
	BookingYearMarker   string
	ExpectedTotals      ExpectedTotals
	RedisURL            string
	RedisTLSInsecure    bool
	AsynqQueueName      string
	AsynqConcurrency    int
	MorningSchedule     string
	EveningSchedule     string
	ScheduleTimezone    string
	MorningEnabled      bool
	EveningEnabled      bool
	EmailEnabled        bool
	SMTPHost            string
	SMTPPort            int
	SMTPUsername        string
	SMTPPassword        string
	EmailFromName       string
	EmailFromAddress    string
	OperatorEmail       string
}

func (c *Config) GetDatabaseURL() string             { return c.DatabaseURL }
func (c *Config) GetHTTPAddr() string                { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool              { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string           { return c.CORSOrigins }
func (c *Config) GetAirtableAPIKey() string          { return c.AirtableAPIKey }
func (c *Config) GetAirtableBaseID() string          { return c.AirtableBaseID }
func (c *Config) GetAirtableTableID() string         { return c.AirtableTableID }
func (c *Config) GetAirtableEndpointURL() string     { return c.AirtableEndpointURL }
func (c *Config) GetAirtablePageSize() int           { return c.AirtablePageSize }
func (c *Config) GetBookingYearMarker() string       { return c.BookingYearMarker }
func (c *Config) GetExpectedTotals() ExpectedTotals  { return c.ExpectedTotals }
func (c *Config) GetRedisURL() string                { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool          { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string          { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int           { return c.AsynqConcurrency }
func (c *Config) GetMorningSchedule() string         { return c.MorningSchedule }
func (c *Config) GetEveningSchedule() string         { return c.EveningSchedule }
func (c *Config) GetScheduleTimezone() string        { return c.ScheduleTimezone }
func (c *Config) IsMorningScheduleEnabled() bool     { return c.MorningEnabled }
func (c *Config) IsEveningScheduleEnabled() bool     { return c.EveningEnabled }
func (c *Config) GetEmailEnabled() bool              { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string                { return c.SMTPHost }
func (c *Config) GetSMTPPort() int                   { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string            { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string            { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string           { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string        { return c.EmailFromAddress }
func (c *Config) GetOperatorEmail() string           { return c.OperatorEmail }

// Load reads configuration from the environment, applying .env if present.
// Missing required connection parameters fail fast, before any run starts.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		CORSAllowAll:        corsAllowAll,
		CORSOrigins:         corsOrigins,
		AirtableAPIKey:      getEnv("AIRTABLE_API_KEY", ""),
		AirtableBaseID:      getEnv("AIRTABLE_BASE_ID", ""),
		AirtableTableID:     getEnv("AIRTABLE_TABLE_ID", ""),
		AirtableEndpointURL: getEnv("AIRTABLE_ENDPOINT_URL", "https://api.airtable.com"),
		AirtablePageSize:    getPositiveInt("AIRTABLE_PAGE_SIZE", 100),
		BookingYearMarker:   getEnv("BOOKING_YEAR_MARKER", "2025"),
		ExpectedTotals: ExpectedTotals{
			Records:  getPositiveInt("EXPECTED_TOTAL_RECORDS", 20077),
			Bookings: getPositiveInt("EXPECTED_TOTAL_BOOKINGS", 3122),
			Leads:    getPositiveInt("EXPECTED_TOTAL_LEADS", 13908),
			Engaged:  getPositiveInt("EXPECTED_TOTAL_ENGAGED", 7910),
		},
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE_NAME", "default"),
		AsynqConcurrency: getPositiveInt("ASYNQ_CONCURRENCY", 1),
		MorningSchedule:  getEnv("IMPORT_MORNING_CRON", "0 6 * * *"),
		EveningSchedule:  getEnv("IMPORT_EVENING_CRON", "0 18 * * *"),
		ScheduleTimezone: getEnv("IMPORT_TIMEZONE", "America/New_York"),
		MorningEnabled:   strings.EqualFold(getEnv("IMPORT_MORNING_ENABLED", "true"), "true"),
		EveningEnabled:   strings.EqualFold(getEnv("IMPORT_EVENING_ENABLED", "true"), "true"),
		EmailEnabled:     emailEnabled && smtpHost != "",
		SMTPHost:         smtpHost,
		SMTPPort:         getPositiveInt("SMTP_PORT", 587),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Clinic Dashboard"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		OperatorEmail:    getEnv("OPERATOR_EMAIL", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AirtableAPIKey == "" {
		return nil, fmt.Errorf("AIRTABLE_API_KEY is required")
	}
	if cfg.AirtableBaseID == "" {
		return nil, fmt.Errorf("AIRTABLE_BASE_ID is required")
	}
	if cfg.AirtableTableID == "" {
		return nil, fmt.Errorf("AIRTABLE_TABLE_ID is required")
	}
	if len(cfg.BookingYearMarker) != 4 {
		return nil, fmt.Errorf("BOOKING_YEAR_MARKER must be a 4-digit year, got %q", cfg.BookingYearMarker)
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.EmailEnabled && cfg.OperatorEmail == "" {
		return nil, fmt.Errorf("OPERATOR_EMAIL is required when email is enabled")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getPositiveInt(key string, fallback int) int {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// StoreConfig selects the lead store backend.
type StoreConfig interface {
	DatabaseConfig
	GetStoreDriver() string
}

// JWTConfig provides JWT validation settings for tenant endpoints.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// AdminConfig gates the operator endpoints.
type AdminConfig interface {
	GetAdminAPIKey() string
	GetEnableTestEndpoints() bool
}

// EmailConfig provides settings for outbound email.
type EmailConfig interface {
	GetEmailProvider() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetBrevoAPIKey() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
}

// SMSConfig provides settings for the SMS transport and inbound webhook.
type SMSConfig interface {
	GetTwilioAccountSID() string
	GetTwilioAuthToken() string
	GetSMSFromNumber() string
	GetSMSVerifySignature() bool
	GetPublicBaseURL() string
	IsSMSEnabled() bool
}

// MailboxConfig provides IMAP settings for mailbox polling.
type MailboxConfig interface {
	GetIMAPHost() string
	GetIMAPPort() int
	GetIMAPUsername() string
	GetIMAPPassword() string
	GetIMAPFolder() string
	GetIMAPTimeout() time.Duration
	IsMailboxEnabled() bool
}

// RoutingConfig provides the static channel-to-tenant routes.
type RoutingConfig interface {
	GetMailboxClientSlug() string
	GetSMSClientSlug() string
	GetRoutingFile() string
}

// ClassifierConfig provides settings for the optional lead classifier oracle.
type ClassifierConfig interface {
	GetClassifierAPIKey() string
	GetClassifierBaseURL() string
	GetClassifierModel() string
	GetClassifierTimeout() time.Duration
	IsClassifierEnabled() bool
}

// SchedulerConfig provides Redis/asynq settings for manual trigger tasks.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// FollowupConfig provides follow-up cadence and dispatch settings.
type FollowupConfig interface {
	GetSweepInterval() time.Duration
	GetPollInterval() time.Duration
	GetSweepConcurrency() int
	GetTransportTimeout() time.Duration
	GetFollowupMinSpacing() time.Duration
	GetRunOnStart() bool
	GetSenderFreemailFallback() bool
	IsAutoreplyEnabled() bool
}

// StorageConfig provides MinIO settings for the inquiry archive.
type StorageConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetArchiveBucket() string
	IsArchiveEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                 string
	HTTPAddr            string
	DatabaseURL         string
	StoreDriver         string
	JWTAccessSecret     string
	CORSAllowAll        bool
	CORSOrigins         []string
	CORSAllowCreds      bool
	AdminAPIKey         string
	EnableTestEndpoints bool

	EmailProvider    string
	EmailFromName    string
	EmailFromAddress string
	BrevoAPIKey      string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string

	TwilioAccountSID   string
	TwilioAuthToken    string
	SMSFromNumber      string
	SMSVerifySignature bool
	PublicBaseURL      string

	IMAPHost     string
	IMAPPort     int
	IMAPUsername string
	IMAPPassword string
	IMAPFolder   string
	IMAPTimeout  time.Duration

	MailboxClientSlug string
	SMSClientSlug     string
	RoutingFile       string

	ClassifierAPIKey  string
	ClassifierBaseURL string
	ClassifierModel   string
	ClassifierTimeout time.Duration

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	SweepInterval          time.Duration
	PollInterval           time.Duration
	SweepConcurrency       int
	TransportTimeout       time.Duration
	FollowupMinSpacing     time.Duration
	RunOnStart             bool
	SenderFreemailFallback bool
	AutoreplyEnabled       bool

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool
	ArchiveBucket  string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig / StoreConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }
func (c *Config) GetStoreDriver() string { return c.StoreDriver }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// AdminConfig implementation
func (c *Config) GetAdminAPIKey() string       { return c.AdminAPIKey }
func (c *Config) GetEnableTestEndpoints() bool { return c.EnableTestEndpoints }

// EmailConfig implementation
func (c *Config) GetEmailProvider() string    { return c.EmailProvider }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetBrevoAPIKey() string      { return c.BrevoAPIKey }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }

// SMSConfig implementation
func (c *Config) GetTwilioAccountSID() string  { return c.TwilioAccountSID }
func (c *Config) GetTwilioAuthToken() string   { return c.TwilioAuthToken }
func (c *Config) GetSMSFromNumber() string     { return c.SMSFromNumber }
func (c *Config) GetSMSVerifySignature() bool  { return c.SMSVerifySignature }
func (c *Config) GetPublicBaseURL() string     { return c.PublicBaseURL }
func (c *Config) IsSMSEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.SMSFromNumber != ""
}

// MailboxConfig implementation
func (c *Config) GetIMAPHost() string            { return c.IMAPHost }
func (c *Config) GetIMAPPort() int               { return c.IMAPPort }
func (c *Config) GetIMAPUsername() string        { return c.IMAPUsername }
func (c *Config) GetIMAPPassword() string        { return c.IMAPPassword }
func (c *Config) GetIMAPFolder() string          { return c.IMAPFolder }
func (c *Config) GetIMAPTimeout() time.Duration  { return c.IMAPTimeout }
func (c *Config) IsMailboxEnabled() bool {
	return c.IMAPHost != "" && c.IMAPUsername != "" && c.IMAPPassword != ""
}

// RoutingConfig implementation
func (c *Config) GetMailboxClientSlug() string { return c.MailboxClientSlug }
func (c *Config) GetSMSClientSlug() string     { return c.SMSClientSlug }
func (c *Config) GetRoutingFile() string       { return c.RoutingFile }

// ClassifierConfig implementation
func (c *Config) GetClassifierAPIKey() string           { return c.ClassifierAPIKey }
func (c *Config) GetClassifierBaseURL() string          { return c.ClassifierBaseURL }
func (c *Config) GetClassifierModel() string            { return c.ClassifierModel }
func (c *Config) GetClassifierTimeout() time.Duration   { return c.ClassifierTimeout }
func (c *Config) IsClassifierEnabled() bool             { return c.ClassifierAPIKey != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }

// FollowupConfig implementation
func (c *Config) GetSweepInterval() time.Duration      { return c.SweepInterval }
func (c *Config) GetPollInterval() time.Duration       { return c.PollInterval }
func (c *Config) GetSweepConcurrency() int             { return c.SweepConcurrency }
func (c *Config) GetTransportTimeout() time.Duration   { return c.TransportTimeout }
func (c *Config) GetFollowupMinSpacing() time.Duration { return c.FollowupMinSpacing }
func (c *Config) GetRunOnStart() bool                  { return c.RunOnStart }
func (c *Config) GetSenderFreemailFallback() bool      { return c.SenderFreemailFallback }
func (c *Config) IsAutoreplyEnabled() bool             { return c.AutoreplyEnabled }

// StorageConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetArchiveBucket() string  { return c.ArchiveBucket }
func (c *Config) IsArchiveEnabled() bool {
	return c.MinIOEndpoint != "" && c.ArchiveBucket != ""
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	EmailProviderSMTP  = "smtp"
	EmailProviderBrevo = "brevo"
	EmailProviderNoop  = "noop"

	minIMAPTimeout = 5 * time.Second
	maxIMAPTimeout = 120 * time.Second
)

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		StoreDriver:         strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		JWTAccessSecret:     getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:        corsAllowAll,
		CORSOrigins:         corsOrigins,
		CORSAllowCreds:      strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		AdminAPIKey:         getEnv("ADMIN_API_KEY", ""),
		EnableTestEndpoints: strings.EqualFold(getEnv("ENABLE_TEST_ENDPOINTS", "false"), "true"),

		EmailProvider:    strings.ToLower(getEnv("EMAIL_PROVIDER", EmailProviderNoop)),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Lead Follow-up"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		BrevoAPIKey:      getEnv("BREVO_API_KEY", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),

		TwilioAccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
		SMSFromNumber:      getEnv("SMS_FROM_NUMBER", ""),
		SMSVerifySignature: strings.EqualFold(getEnv("SMS_VERIFY_SIGNATURE", "false"), "true"),
		PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     mustInt(getEnv("IMAP_PORT", "993")),
		IMAPUsername: getEnv("IMAP_USERNAME", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPFolder:   getEnv("IMAP_FOLDER", "INBOX"),
		IMAPTimeout:  clampDuration(mustDuration(getEnv("IMAP_TIMEOUT", "15s")), minIMAPTimeout, maxIMAPTimeout),

		MailboxClientSlug: getEnv("MAILBOX_CLIENT_SLUG", "demo"),
		SMSClientSlug:     getEnv("SMS_CLIENT_SLUG", "demo"),
		RoutingFile:       getEnv("ROUTING_FILE", ""),

		ClassifierAPIKey:  getEnv("CLASSIFIER_API_KEY", ""),
		ClassifierBaseURL: getEnv("CLASSIFIER_BASE_URL", "https://api.openai.com/v1"),
		ClassifierModel:   getEnv("CLASSIFIER_MODEL", "gpt-4o-mini"),
		ClassifierTimeout: mustDuration(getEnv("CLASSIFIER_TIMEOUT", "20s")),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "followups"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "2")),

		SweepInterval:          mustDuration(getEnv("FOLLOWUP_SWEEP_INTERVAL", "1h")),
		PollInterval:           mustDuration(getEnv("MAILBOX_POLL_INTERVAL", "10m")),
		SweepConcurrency:       mustInt(getEnv("SWEEP_CONCURRENCY", "8")),
		TransportTimeout:       mustDuration(getEnv("TRANSPORT_TIMEOUT", "20s")),
		FollowupMinSpacing:     mustDuration(getEnv("FOLLOWUP_MIN_SPACING", "0s")),
		RunOnStart:             strings.EqualFold(getEnv("SCHEDULER_RUN_ON_START", "true"), "true"),
		SenderFreemailFallback: strings.EqualFold(getEnv("SENDER_FREEMAIL_FALLBACK", "false"), "true"),
		AutoreplyEnabled:       strings.EqualFold(getEnv("AUTOREPLY_ENABLED", "true"), "true"),

		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:    strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		ArchiveBucket:  getEnv("MINIO_BUCKET_INQUIRY_ARCHIVE", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.StoreDriver)
	}

	switch c.EmailProvider {
	case EmailProviderSMTP:
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when EMAIL_PROVIDER is smtp")
		}
	case EmailProviderBrevo:
		if c.BrevoAPIKey == "" {
			return fmt.Errorf("BREVO_API_KEY is required when EMAIL_PROVIDER is brevo")
		}
	case EmailProviderNoop:
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be smtp, brevo or noop, got %q", c.EmailProvider)
	}
	if c.EmailProvider != EmailProviderNoop && c.EmailFromAddress == "" {
		return fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}

	if c.EnableTestEndpoints && c.AdminAPIKey == "" {
		return fmt.Errorf("ADMIN_API_KEY is required when ENABLE_TEST_ENDPOINTS is true")
	}
	if c.SMSVerifySignature && c.TwilioAuthToken == "" {
		return fmt.Errorf("TWILIO_AUTH_TOKEN is required when SMS_VERIFY_SIGNATURE is true")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if c.SweepInterval <= 0 || c.PollInterval <= 0 {
		return fmt.Errorf("FOLLOWUP_SWEEP_INTERVAL and MAILBOX_POLL_INTERVAL must be positive durations")
	}
	if c.FollowupMinSpacing < 0 {
		return fmt.Errorf("FOLLOWUP_MIN_SPACING cannot be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func clampDuration(value, lower, upper time.Duration) time.Duration {
	if value < lower {
		return lower
	}
	if value > upper {
		return upper
	}
	return value
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

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	DatabaseURL        string
	JWTSecret          string
	CORSAllowedOrigins []string
	RateLimitPerMinute int

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Scheduling
	ClinicTimezone          string
	AvailabilityHorizonDays int
	SearchPageSize          int
	ContextTTL              time.Duration
	LockTTL                 time.Duration
	LockWait                time.Duration
	CompletionCron          string
	DoctorSeedFile          string

	// Intent hint collaborator
	GeminiAPIKey      string
	GeminiModel       string
	BedrockModelID    string
	LLMTimeout        time.Duration
	LLMMaxRetries     int
	LLMRetryBaseDelay time.Duration
	LLMRatePerSecond  float64

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Event delivery
	EventsSink         string
	EventsQueueURL     string
	AMQPURL            string
	AMQPQueue          string
	OutboxEnabled      bool
	OutboxPollInterval time.Duration

	// Patient notifications
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		ClinicTimezone:          getEnv("CLINIC_TIMEZONE", "Asia/Kolkata"),
		AvailabilityHorizonDays: getEnvAsInt("AVAILABILITY_HORIZON_DAYS", 14),
		SearchPageSize:          getEnvAsInt("SEARCH_PAGE_SIZE", 5),
		ContextTTL:              getEnvAsDuration("CONTEXT_TTL", 0),
		LockTTL:                 getEnvAsDuration("LOCK_TTL", 10*time.Second),
		LockWait:                getEnvAsDuration("LOCK_WAIT", 5*time.Second),
		CompletionCron:          getEnv("COMPLETION_CRON", "@hourly"),
		DoctorSeedFile:          getEnv("DOCTOR_SEED_FILE", ""),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID:    getEnv("BEDROCK_MODEL_ID", ""),
		LLMTimeout:        getEnvAsDuration("LLM_TIMEOUT", 4*time.Second),
		LLMMaxRetries:     getEnvAsInt("LLM_MAX_RETRIES", 2),
		LLMRetryBaseDelay: getEnvAsDuration("LLM_RETRY_BASE_DELAY", 250*time.Millisecond),
		LLMRatePerSecond:  getEnvAsFloat("LLM_RATE_PER_SECOND", 10),

		AWSRegion:           getEnv("AWS_REGION", "ap-south-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		EventsSink:         strings.ToLower(strings.TrimSpace(getEnv("EVENTS_SINK", "none"))),
		EventsQueueURL:     getEnv("EVENTS_QUEUE_URL", ""),
		AMQPURL:            getEnv("AMQP_URL", ""),
		AMQPQueue:          getEnv("AMQP_QUEUE", "clinic.events"),
		OutboxEnabled:      getEnvAsBool("OUTBOX_ENABLED", false),
		OutboxPollInterval: getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),

		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:  getEnv("TWILIO_FROM_NUMBER", ""),
		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Clinic Desk"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
	}
}

// Location resolves the clinic timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c == nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

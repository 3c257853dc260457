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
	LogFormat          string
	CORSAllowedOrigins []string
	AdminJWTSecret     string
	ChatRateLimit      float64

	// Clinic
	ClinicName          string
	ClinicTimezone      string
	AppointmentDuration time.Duration

	// Conversation state
	SessionStore  string
	SessionTTL    time.Duration
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Ticket persistence
	TicketStore string
	DatabaseURL string
	SQLitePath  string

	// Background dispatch
	DispatchQueue       string
	DispatchQueueURL    string
	DispatchJobsTable   string
	DispatchWorkers     int
	DispatchCallTimeout time.Duration

	// Dialogue engine
	LLMProvider         string
	LLMFallbackProvider string
	GroqAPIKey          string
	GroqBaseURL         string
	GroqModel           string
	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModel         string
	SafetyLLMEnabled    bool

	// Calendar
	GoogleCalendarID      string
	GoogleCredentialsFile string

	// Email
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// WhatsApp
	WhatsAppProvider      string
	WhatsAppVerifyToken   string
	WhatsAppAppSecret     string
	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
	TwilioAccountSID      string
	TwilioAuthToken       string
	TwilioWhatsAppFrom    string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "5000"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		ChatRateLimit:      getEnvAsFloat("CHAT_RATE_LIMIT", 2),

		ClinicName:          getEnv("CLINIC_NAME", "Cabinet Dentaire"),
		ClinicTimezone:      getEnv("CLINIC_TIMEZONE", "Africa/Dakar"),
		AppointmentDuration: getEnvAsDuration("APPOINTMENT_DURATION", 60*time.Minute),

		SessionStore:  lower(getEnv("SESSION_STORE", "memory")),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		TicketStore: lower(getEnv("TICKET_STORE", "memory")),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "tickets.db"),

		DispatchQueue:       lower(getEnv("DISPATCH_QUEUE", "memory")),
		DispatchQueueURL:    getEnv("DISPATCH_QUEUE_URL", ""),
		DispatchJobsTable:   getEnv("DISPATCH_JOBS_TABLE", ""),
		DispatchWorkers:     getEnvAsInt("DISPATCH_WORKERS", 2),
		DispatchCallTimeout: getEnvAsDuration("DISPATCH_CALL_TIMEOUT", 10*time.Second),

		LLMProvider:         lower(getEnv("LLM_PROVIDER", "groq")),
		LLMFallbackProvider: lower(getEnv("LLM_FALLBACK_PROVIDER", "")),
		GroqAPIKey:          getEnv("GROQ_API_KEY", ""),
		GroqBaseURL:         getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1/"),
		GroqModel:           getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		SafetyLLMEnabled:    getEnvAsBool("SAFETY_LLM_ENABLED", false),

		GoogleCalendarID:      getEnv("GOOGLE_CALENDAR_ID", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),

		EmailProvider:     lower(getEnv("EMAIL_PROVIDER", "stub")),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Cabinet Dentaire"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "Cabinet Dentaire"),

		AWSRegion:           getEnv("AWS_REGION", "eu-west-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		WhatsAppProvider:      lower(getEnv("WHATSAPP_PROVIDER", "cloud")),
		WhatsAppVerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:     getEnv("WHATSAPP_APP_SECRET", ""),
		WhatsAppAccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		TwilioAccountSID:      getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:       getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppFrom:    getEnv("TWILIO_WHATSAPP_FROM", ""),
	}
}

// UsesAWS reports whether any configured component needs an AWS client.
func (c *Config) UsesAWS() bool {
	return c.DispatchQueue == "sqs" ||
		c.DispatchJobsTable != "" ||
		c.EmailProvider == "ses" ||
		c.LLMProvider == "bedrock" ||
		c.LLMFallbackProvider == "bedrock"
}

// Location resolves ClinicTimezone, falling back to UTC when the zone is unknown.
func (c *Config) Location() *time.Location {
	if strings.TrimSpace(c.ClinicTimezone) == "" {
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

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

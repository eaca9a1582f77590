package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DatabaseURL    string
	MigrationsPath string

	// Generative AI
	APIKey    string
	ModelName string
	UseMockAI bool

	TelegramToken string
	DoctorChatID  int64

	KafkaBroker string
	KafkaTopic  string

	ConnectDelay time.Duration
	ReplyDelay   time.Duration
	IntakeTTL    time.Duration
	SweepSpec    string

	LogLevel  string
	LogFormat string // "json" or "text"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// LoadEnv loads a .env file from the working directory if one exists.
// A missing file is not an error: the process environment still applies.
func LoadEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

// Load reads all env vars and builds the config
func Load() *Config {
	apiKey := getEnv("API_KEY", os.Getenv("GEMINI_API_KEY"))

	cfg := &Config{
		Port: getEnv("PORT", "8080"),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "file://migrations"),

		APIKey:    apiKey,
		ModelName: getEnv("MODEL_NAME", "gemini-3-flash-preview"),
		UseMockAI: getBoolEnv("USE_MOCK_AI", apiKey == ""),

		TelegramToken: getEnv("TELEGRAM_BOT_TOKEN", ""),

		KafkaBroker: getEnv("KAFKA_BROKER", ""),
		KafkaTopic:  getEnv("KAFKA_TOPIC", "telehealth_events"),

		ConnectDelay: getDurationEnv("CONNECT_DELAY", 2*time.Second),
		ReplyDelay:   getDurationEnv("REPLY_DELAY", 1500*time.Millisecond),
		IntakeTTL:    getDurationEnv("INTAKE_TTL", 30*time.Minute),
		SweepSpec:    getEnv("SWEEP_SCHEDULE", "@every 5m"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Invalid or missing ids leave reports disabled.
	cfg.DoctorChatID, _ = strconv.ParseInt(os.Getenv("DOCTOR_CHAT_ID"), 10, 64)

	return cfg
}

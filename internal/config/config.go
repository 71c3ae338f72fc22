package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL    string
	MigrateOnStart bool

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// High scores
	HighScoreBackend string // redis, postgres or memory
	HighScoreKey     string

	// Game Settings
	CatalogPath    string
	FieldWidth     float64
	FieldHeight    float64
	LossLine       float64
	DropY          float64
	DropMinTier    int
	DropMaxTier    int
	DropCooldownMs int
	PopLifetimeMs  int
	LossGraceMs    int
	KeyStep        float64
	Gravity        float64
	SimTickHz      int
	BroadcastHz    int

	// Idle sessions
	SessionIdleSeconds     int
	IdleWorkerPollInterval int

	// Security
	JWTSecret            string
	SessionTokenTTLMin   int
	AdminTokenTTLMinutes int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MigrateOnStart: getEnv("MIGRATE_ON_START", "false") == "true",

		// Redis
		RedisURL: getEnv("REDIS_URL", ""),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// High scores
		HighScoreBackend: getEnv("HIGHSCORE_BACKEND", "memory"),
		HighScoreKey:     getEnv("HIGHSCORE_KEY", "highscore"),

		// Game Settings
		CatalogPath:    getEnv("CATALOG_PATH", ""),
		FieldWidth:     getEnvFloat("FIELD_WIDTH", 640),
		FieldHeight:    getEnvFloat("FIELD_HEIGHT", 960),
		LossLine:       getEnvFloat("LOSS_LINE", 84),
		DropY:          getEnvFloat("DROP_Y", 0),
		DropMinTier:    getEnvInt("DROP_MIN_TIER", 0),
		DropMaxTier:    getEnvInt("DROP_MAX_TIER", 4),
		DropCooldownMs: getEnvInt("DROP_COOLDOWN_MS", 500),
		PopLifetimeMs:  getEnvInt("POP_LIFETIME_MS", 100),
		LossGraceMs:    getEnvInt("LOSS_GRACE_MS", 1000),
		KeyStep:        getEnvFloat("KEY_STEP", 8),
		Gravity:        getEnvFloat("GRAVITY", 1000),
		SimTickHz:      getEnvInt("SIM_TICK_HZ", 60),
		BroadcastHz:    getEnvInt("BROADCAST_HZ", 20),

		// Idle sessions
		SessionIdleSeconds:     getEnvInt("SESSION_IDLE_SECONDS", 600),
		IdleWorkerPollInterval: getEnvInt("IDLE_WORKER_POLL_SECONDS", 10),

		// Security
		JWTSecret:            getEnv("JWT_SECRET", "change-me-in-production"),
		SessionTokenTTLMin:   getEnvInt("SESSION_TOKEN_TTL_MINUTES", 120),
		AdminTokenTTLMinutes: getEnvInt("ADMIN_TOKEN_TTL_MINUTES", 240),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

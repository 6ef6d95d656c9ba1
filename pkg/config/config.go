package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreFirestore = "firestore"
	StoreMemory    = "memory"
)

type Config struct {
	ServerPort  string
	Environment string
	StoreDriver string

	FirebaseProject            string
	FirebaseServiceAccountJSON string
	FirebaseServiceAccountPath string
	FirebaseAuthEnabled        bool
	StorageBucket              string

	JWTSecret string
	JWTExpiry int64
	JWTIssuer string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ProfileCacheTTL time.Duration

	WSPingTimeout  time.Duration
	WSRequireToken bool
	WSSendBuffer   int

	FrontendURL     string
	UploadMaxBytes  int64
	UploadTmpDir    string
	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreFirestore)),

		FirebaseProject:            getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		FirebaseServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		FirebaseAuthEnabled:        getEnvAsBool("FIREBASE_AUTH_ENABLED", false),
		StorageBucket:              getEnv("STORAGE_BUCKET", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTExpiry: getEnvAsInt64("JWT_EXPIRY", 30*24*60*60), // 30 days
		JWTIssuer: getEnv("JWT_ISSUER", "relaychat"),

		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         int(getEnvAsInt64("REDIS_DB", 0)),
		ProfileCacheTTL: getEnvAsDuration("PROFILE_CACHE_TTL", 5*time.Minute),

		WSPingTimeout:  getEnvAsDuration("WS_PING_TIMEOUT", 60*time.Second),
		WSRequireToken: getEnvAsBool("WS_REQUIRE_TOKEN", false),
		WSSendBuffer:   int(getEnvAsInt64("WS_SEND_BUFFER", 256)),

		FrontendURL:     getEnv("FRONTEND_URL", ""),
		UploadMaxBytes:  getEnvAsInt64("UPLOAD_MAX_BYTES", 10<<20),
		UploadTmpDir:    getEnv("UPLOAD_TMP_DIR", os.TempDir()),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("JWT_SECRET is required outside development")
		}
		c.JWTSecret = "dev-secret-change-me"
	}

	switch c.StoreDriver {
	case StoreFirestore:
		if c.FirebaseProject == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required when STORE_DRIVER=%s", StoreFirestore)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.WSSendBuffer <= 0 {
		c.WSSendBuffer = 256
	}
	if c.UploadMaxBytes <= 0 {
		c.UploadMaxBytes = 10 << 20
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

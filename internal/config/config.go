// Package config holds the runtime settings of the chat backend.
// Values are read from the environment (optionally seeded from a .env file
// by the caller) and fall back to the defaults below.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// Upload streaming
	UploadChunkSize    = 1 << 20
	MaxUploadFiles     = 20
	UploadPartOverhead = 64 << 10

	// Socket
	SocketSendBuffer = 256
	SocketReadLimit  = 64 << 10

	// History endpoints
	DefaultHistoryLimit   = 50
	MaxMessageHistory     = 200
	MaxAttachmentHistory  = 500
	AnonymousLabelPrefix  = "anon-"
	AnonymousLabelIDChars = 6
)

// Config is the full set of tunables for one server process.
type Config struct {
	AppName  string
	HTTPAddr string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NATSURL    string
	NATSBucket string

	JWTSecret    string
	JWTExpiresIn time.Duration

	UploadDir        string
	MaxUploadBytes   int64
	MaxMessageLength int

	SweepInterval       time.Duration
	AttachmentRetention time.Duration
	SweepBackoff        time.Duration

	RelayBackoff time.Duration

	AllowedOrigins []string
}

// Load builds a Config from the process environment.
func Load() Config {
	return Config{
		AppName:  envOrDefault("APP_NAME", "Realtime Room Chat"),
		HTTPAddr: envOrDefault("HTTP_ADDR", ":8080"),

		DatabaseDSN: envOrDefault("DATABASE_DSN",
			"host=localhost user=user password=password dbname=roomchat port=5432 sslmode=disable"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		NATSURL:    os.Getenv("NATS_URL"),
		NATSBucket: envOrDefault("NATS_BUCKET", "chat-attachments"),

		JWTSecret:    envOrDefault("JWT_SECRET", "change-me-in-production"),
		JWTExpiresIn: time.Duration(envInt("JWT_EXPIRE_MINUTES", 24*60)) * time.Minute,

		UploadDir:        envOrDefault("UPLOAD_DIR", "uploads"),
		MaxUploadBytes:   int64(envInt("MAX_UPLOAD_MB", 50)) * 1024 * 1024,
		MaxMessageLength: envInt("MAX_MESSAGE_LENGTH", 4096),

		SweepInterval:       envDuration("SWEEP_INTERVAL", time.Minute),
		AttachmentRetention: envDuration("ATTACHMENT_RETENTION", 30*time.Minute),
		SweepBackoff:        envDuration("SWEEP_BACKOFF", 5*time.Second),

		RelayBackoff: envDuration("RELAY_BACKOFF", 5*time.Second),

		AllowedOrigins: envList("ALLOWED_ORIGINS", []string{"*"}),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARNING: %s=%q is not an integer, using %d", key, v, def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARNING: %s=%q is not a duration, using %s", key, v, def)
		return def
	}
	return d
}

// envList accepts "a,b,c"; blank entries are dropped.
func envList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// OriginAllowed reports whether a browser Origin header passes the allow list.
func (c Config) OriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

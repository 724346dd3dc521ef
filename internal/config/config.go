package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	BlobDriver   string // fs|gcs
	BlobBasePath string // for fs
	BlobBucket   string // for gcs

	// Vision completion service.
	GeminiAPIKey  string
	GeminiModel   string
	LLMRatePerSec float64
	LLMBurst      int

	// Pipeline tuning.
	PipelineWorkers     int
	QuestionsPerSection int
	DefaultThreshold    int // pass threshold percentage
	MaxSynthesisInput   int // bytes of transcript sent to the model

	// Boundary limits.
	MaxContentPages int
	MaxQuizPages    int
	MaxUploadBytes  int64

	AuthSecret    string
	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOrigins []string
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:  addr,
		PublicURL: os.Getenv("PUBLIC_URL"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		BlobDriver:   envOr("BLOB_DRIVER", "fs"),
		BlobBasePath: envOr("BLOB_BASE_PATH", "./data"),
		BlobBucket:   os.Getenv("BLOB_BUCKET"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   envOr("GEMINI_MODEL", "gemini-2.5-flash"),
		LLMRatePerSec: envFloat("LLM_RATE_PER_SEC", 2),
		LLMBurst:      envInt("LLM_BURST", 4),

		PipelineWorkers:     envInt("PIPELINE_WORKERS", 8),
		QuestionsPerSection: envInt("QUESTIONS_PER_SECTION", 10),
		DefaultThreshold:    envInt("DEFAULT_PASS_THRESHOLD", 70),
		MaxSynthesisInput:   envInt("MAX_SYNTHESIS_INPUT", 400_000),

		MaxContentPages: envInt("MAX_CONTENT_PAGES", 200),
		MaxQuizPages:    envInt("MAX_QUIZ_PAGES", 40),
		MaxUploadBytes:  int64(envInt("MAX_UPLOAD_BYTES", 50<<20)),

		AuthSecret:    envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		AdminUser:     envOr("ADMIN_USER", "admin"),
		AdminPassHash: os.Getenv("ADMIN_PASS_HASH"),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr               string        `validate:"required"`
	DBPath             string        `validate:"required"`
	LogLevel           string        `validate:"required,oneof=DEBUG INFO WARN WARNING ERROR"`
	BatchSize          int           `validate:"min=1,max=500"`
	ReviewMaxRetries   int           `validate:"min=0,max=10"`
	ReviewRetryBackoff time.Duration `validate:"min=0"`
	ImportWorkerCount  int           `validate:"min=1,max=64"`
	ImportQueueSize    int           `validate:"min=1"`
	CORSOrigins        []string      `validate:"min=1,dive,required"`
}

// envNames maps struct fields to the environment keys they are read from,
// so validation errors speak in terms the operator sets.
var envNames = map[string]string{
	"Addr":               "ADDR",
	"DBPath":             "DB_PATH",
	"LogLevel":           "LOG_LEVEL",
	"BatchSize":          "BATCH_SIZE",
	"ReviewMaxRetries":   "REVIEW_MAX_RETRIES",
	"ReviewRetryBackoff": "REVIEW_RETRY_BACKOFF",
	"ImportWorkerCount":  "IMPORT_WORKER_COUNT",
	"ImportQueueSize":    "IMPORT_QUEUE_SIZE",
	"CORSOrigins":        "CORS_ORIGINS",
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration from a .env file (if present) and environment variables,
// applying defaults when values are missing or invalid.
func Load() Config {
	// .env is optional.
	_ = godotenv.Load()

	return Config{
		Addr:               envOr("ADDR", ":8080"),
		DBPath:             envOr("DB_PATH", "file:studyflash.db"),
		LogLevel:           strings.ToUpper(envOr("LOG_LEVEL", "INFO")),
		BatchSize:          envIntOr("BATCH_SIZE", 20),
		ReviewMaxRetries:   envIntOr("REVIEW_MAX_RETRIES", 3),
		ReviewRetryBackoff: envDurationOr("REVIEW_RETRY_BACKOFF", 50*time.Millisecond),
		ImportWorkerCount:  envIntOr("IMPORT_WORKER_COUNT", 2),
		ImportQueueSize:    envIntOr("IMPORT_QUEUE_SIZE", 32),
		CORSOrigins:        envListOr("CORS_ORIGINS", []string{"*"}),
	}
}

// Validate checks the configuration and reports the first offending key.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	name, ok := envNames[fe.StructField()]
	if !ok {
		name = fe.StructField()
	}
	if fe.Tag() == "required" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	return fmt.Errorf("%s is invalid: failed %q (value %v)", name, fe.Tag()+paramSuffix(fe.Param()), fe.Value())
}

func paramSuffix(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}

func envDurationOr(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("invalid value for %s=%q, using default %s", key, v, def)
	}
	return def
}

func envListOr(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

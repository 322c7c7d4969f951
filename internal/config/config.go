package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendREST   = "rest"
	BackendMemory = "memory"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// PlayBox backend
	DataBackend     string
	PlayBoxAPIURL   string
	PlayBoxTimeout  time.Duration
	MinAddAmount    int64
	MemorySeedFile  string
	BreakerFailures uint32

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration
	Operators     string

	// Operator journal
	JournalDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	// Users list balance bands
	LowBalanceThreshold  int64
	HighBalanceThreshold int64
}

// LoadEnvFile seeds the environment from path when it exists. Variables that
// are already set win over the file.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend:     strings.ToLower(getEnv("DATA_BACKEND", BackendREST)),
		PlayBoxAPIURL:   strings.TrimRight(getEnv("PLAYBOX_API_URL", "http://localhost:8080"), "/"),
		PlayBoxTimeout:  getEnvDuration("PLAYBOX_API_TIMEOUT", 10*time.Second),
		MinAddAmount:    getEnvInt64("MIN_ADD_AMOUNT", 500),
		MemorySeedFile:  getEnv("MEMORY_SEED_FILE", ""),
		BreakerFailures: uint32(getEnvInt("BREAKER_FAILURES", 5)),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    getEnvDuration("SESSION_TTL", 12*time.Hour),
		Operators:     getEnv("OPERATORS", ""),

		JournalDBPath: getEnv("JOURNAL_DB_PATH", "./data/journal.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "playbox"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "journal_sync"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Journal"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 30*time.Second),

		LowBalanceThreshold:  getEnvInt64("LOW_BALANCE_THRESHOLD", 500),
		HighBalanceThreshold: getEnvInt64("HIGH_BALANCE_THRESHOLD", 1000),
	}
}

// Validate checks the settings the HTTP front-end needs.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{BackendREST, BackendMemory}
	switch c.DataBackend {
	case BackendREST:
		if u, err := url.Parse(c.PlayBoxAPIURL); err != nil || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid PlayBox API URL '%s'", c.PlayBoxAPIURL))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid PlayBox API URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
		if c.PlayBoxTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("invalid PlayBox API timeout %v: must be positive", c.PlayBoxTimeout))
		}
	case BackendMemory:
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.MinAddAmount < 1 {
		errors = append(errors, fmt.Sprintf("invalid minimum add amount %d: must be at least 1", c.MinAddAmount))
	}

	if len(c.SessionSecret) < 32 {
		errors = append(errors, "SESSION_SECRET must be at least 32 characters")
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if strings.TrimSpace(c.Operators) == "" {
		errors = append(errors, "OPERATORS must list at least one operator")
	}

	errors = append(errors, c.journalErrors()...)

	if c.LowBalanceThreshold < 0 || c.HighBalanceThreshold < c.LowBalanceThreshold {
		errors = append(errors, fmt.Sprintf("invalid balance thresholds low=%d high=%d: need 0 <= low <= high",
			c.LowBalanceThreshold, c.HighBalanceThreshold))
	}

	return joinErrors(errors)
}

// ValidateWorker checks the settings the journal sync worker needs.
func (c *Config) ValidateWorker() error {
	errors := c.journalErrors()
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the worker")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "GOOGLE_SHEET_NAME cannot be empty")
	}
	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}
	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}
	return joinErrors(errors)
}

// JournalEnabled reports whether POS operations are written to the local journal.
func (c *Config) JournalEnabled() bool {
	return c.JournalDBPath != ""
}

func (c *Config) journalErrors() []string {
	var errors []string
	if c.JournalDBPath != "" {
		dir := filepath.Dir(c.JournalDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create journal database directory '%s': %v", dir, err))
				}
			}
		}
	}
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
		if c.JournalDBPath == "" {
			errors = append(errors, "JOURNAL_DB_PATH is required when AMQP URL is provided")
		}
	}
	return errors
}

func joinErrors(errors []string) error {
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

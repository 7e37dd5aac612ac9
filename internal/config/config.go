package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	WritePolicyExplicit  = "explicit"
	WritePolicyImmediate = "immediate"
)

var (
	validBackends      = []string{"memory", "sqlite", "postgres", "s3", "sheets", "prefs"}
	validWritePolicies = []string{WritePolicyExplicit, WritePolicyImmediate}
	validLogLevels     = []string{"debug", "info", "warn", "warning", "error"}
)

type Config struct {
	// HTTP Server
	Port string

	LogLevel string

	// Ledger persistence
	DataBackend  string
	WritePolicy  string
	StoreTimeout time.Duration
	CacheSize    int
	CacheTTL     time.Duration

	// Local backends
	SQLiteDBPath  string
	PrefsPath     string
	MemorySeedDir string

	// Postgres
	PostgresURL   string
	PostgresTable string

	// S3
	S3Bucket   string
	S3Prefix   string
	AWSRegion  string
	S3Endpoint string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientJSON    string
	GoogleOAuthTokenJSON     string

	// AMQP; events are disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	MirrorBackend string

	// Local auth
	CredentialsPath string
}

// Load reads the configuration from the environment. When SALDO_CONFIG_FILE
// names a TOML or YAML file its values fill in anything the environment
// leaves unset.
func Load() (*Config, error) {
	src := source{}
	if path := os.Getenv("SALDO_CONFIG_FILE"); path != "" {
		values, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		src.file = values
	}
	return src.load(), nil
}

func (s source) load() *Config {
	return &Config{
		Port:     s.getEnv("PORT", "8081"),
		LogLevel: s.getEnv("LOG_LEVEL", "info"),

		DataBackend:  s.getEnv("DATA_BACKEND", "sqlite"),
		WritePolicy:  s.getEnv("WRITE_POLICY", WritePolicyExplicit),
		StoreTimeout: s.getEnvDuration("STORE_TIMEOUT", 10*time.Second),
		CacheSize:    s.getEnvInt("CACHE_SIZE", 128),
		CacheTTL:     s.getEnvDuration("CACHE_TTL", 5*time.Minute),

		SQLiteDBPath:  s.getEnv("SQLITE_DB_PATH", "./data/saldo.db"),
		PrefsPath:     s.getEnv("PREFS_PATH", "./data/prefs.yaml"),
		MemorySeedDir: s.getEnv("MEMORY_SEED_DIR", ""),

		PostgresURL:   s.getEnv("POSTGRES_URL", ""),
		PostgresTable: s.getEnv("POSTGRES_TABLE", "ledgers"),

		S3Bucket:   s.getEnv("S3_BUCKET", ""),
		S3Prefix:   s.getEnv("S3_PREFIX", "ledgers"),
		AWSRegion:  s.getEnv("AWS_REGION", ""),
		S3Endpoint: s.getEnv("S3_ENDPOINT", ""),

		GoogleSpreadsheetID:      s.getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          s.getEnv("GOOGLE_SHEET_NAME", "Ledgers"),
		GoogleServiceAccountJSON: s.getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: s.getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleOAuthClientJSON:    s.getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenJSON:     s.getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),

		AMQPURL:      s.getEnv("AMQP_URL", ""),
		AMQPExchange: s.getEnv("AMQP_EXCHANGE", "saldo"),
		AMQPQueue:    s.getEnv("AMQP_QUEUE", "ledger_mirror"),

		MirrorBackend: s.getEnv("MIRROR_BACKEND", ""),

		CredentialsPath: s.getEnv("CREDENTIALS_PATH", "./data/credentials.yaml"),
	}
}

// Validate validates the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels[:4]))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	} else {
		errors = append(errors, c.validateBackend(c.DataBackend)...)
	}

	if !slices.Contains(validWritePolicies, c.WritePolicy) {
		errors = append(errors, fmt.Sprintf("invalid write policy '%s': must be one of %v", c.WritePolicy, validWritePolicies))
	}

	if c.StoreTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid store timeout %v: must be positive", c.StoreTimeout))
	} else if c.StoreTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid store timeout %v: must be at most 5 minutes", c.StoreTimeout))
	}

	if c.CacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must not be negative", c.CacheSize))
	}
	if c.CacheSize > 0 && c.CacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be positive when caching is enabled", c.CacheTTL))
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
	}

	if c.MirrorBackend != "" {
		switch {
		case !slices.Contains(validBackends, c.MirrorBackend):
			errors = append(errors, fmt.Sprintf("invalid mirror backend '%s': must be one of %v", c.MirrorBackend, validBackends))
		case c.MirrorBackend == c.DataBackend:
			errors = append(errors, fmt.Sprintf("mirror backend '%s' must differ from the data backend", c.MirrorBackend))
		default:
			errors = append(errors, c.validateBackend(c.MirrorBackend)...)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker adds the checks only the mirror worker needs.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required for the mirror worker")
	}
	if c.MirrorBackend == "" {
		errors = append(errors, "mirror backend is required for the mirror worker")
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) validateBackend(backend string) []string {
	var errors []string
	switch backend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if err := ensureDir(c.SQLiteDBPath); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create SQLite database directory: %v", err))
		}
	case "prefs":
		if c.PrefsPath == "" {
			errors = append(errors, "prefs path cannot be empty when using prefs backend")
		} else if err := ensureDir(c.PrefsPath); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create prefs directory: %v", err))
		}
	case "postgres":
		if c.PostgresURL == "" {
			errors = append(errors, "POSTGRES_URL is required when using postgres backend")
		}
	case "s3":
		if c.S3Bucket == "" {
			errors = append(errors, "S3_BUCKET is required when using s3 backend")
		}
		if c.S3Endpoint != "" {
			if u, err := url.Parse(c.S3Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
				errors = append(errors, fmt.Sprintf("invalid S3 endpoint '%s': must be an absolute URL", c.S3Endpoint))
			}
		}
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets backend")
		}
		hasServiceAccount := c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != ""
		hasOAuth := c.GoogleOAuthClientJSON != "" && c.GoogleOAuthTokenJSON != ""
		if !hasServiceAccount && !hasOAuth {
			errors = append(errors, "sheets backend needs GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or both GOOGLE_OAUTH_CLIENT_JSON and GOOGLE_OAUTH_TOKEN_JSON")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}
	return errors
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

// source resolves keys from the environment first, then the config file.
type source struct {
	file map[string]string
}

func (s source) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return s.file[key]
}

func (s source) getEnv(key, defaultValue string) string {
	if value := s.lookup(key); value != "" {
		return value
	}
	return defaultValue
}

func (s source) getEnvInt(key string, defaultValue int) int {
	if value := s.lookup(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func (s source) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := s.lookup(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

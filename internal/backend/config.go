package backend

import (
	"fmt"
	"time"

	"saldo/internal/config"
)

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	StoreTimeout time.Duration
	CacheSize    int
	CacheTTL     time.Duration

	// Memory
	SeedDirectory string

	// SQLite
	SQLiteDBPath string

	// Prefs
	PrefsPath string

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
}

// FromAppConfig converts the application config to backend config for the
// primary data backend.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	return forType(appConfig, appConfig.DataBackend)
}

// MirrorFromAppConfig builds the config of the mirror backend. The mirror
// is never cached since the worker only writes to it.
func MirrorFromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	if appConfig.MirrorBackend == "" {
		return Config{}, fmt.Errorf("no mirror backend configured")
	}
	cfg, err := forType(appConfig, appConfig.MirrorBackend)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheSize = 0
	return cfg, nil
}

func forType(appConfig *config.Config, name string) (Config, error) {
	backendType := BackendType(name)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", name)
	}
	return Config{
		Type: backendType,

		StoreTimeout: appConfig.StoreTimeout,
		CacheSize:    appConfig.CacheSize,
		CacheTTL:     appConfig.CacheTTL,

		SeedDirectory: appConfig.MemorySeedDir,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		PrefsPath:     appConfig.PrefsPath,

		PostgresURL:   appConfig.PostgresURL,
		PostgresTable: appConfig.PostgresTable,

		S3Bucket:   appConfig.S3Bucket,
		S3Prefix:   appConfig.S3Prefix,
		AWSRegion:  appConfig.AWSRegion,
		S3Endpoint: appConfig.S3Endpoint,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleOAuthClientJSON:    appConfig.GoogleOAuthClientJSON,
		GoogleOAuthTokenJSON:     appConfig.GoogleOAuthTokenJSON,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PrefsBackend:
		if c.PrefsPath == "" {
			return fmt.Errorf("prefs path is required for prefs backend")
		}
	case PostgresBackend:
		if c.PostgresURL == "" {
			return fmt.Errorf("Postgres URL is required for postgres backend")
		}
	case S3Backend:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 backend")
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
	case MemoryBackend:
		// Seed directory is optional.
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend, S3Backend, SheetsBackend, PrefsBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}

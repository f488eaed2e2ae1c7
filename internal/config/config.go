package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const upstreamBase = "https://generativelanguage.googleapis.com/v1/models/"

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	CORSAllowedOrigins []string

	// Storage
	StorageBackend string
	DataDir        string
	SQLiteDBPath   string

	// Analysis
	GeminiAPIKey        string
	GeminiModel         string
	UpstreamURL         string
	UpstreamTimeout     time.Duration
	AnalysisEndpoint    string
	AnalysisMaxAttempts int
	AnalysisBackoff     string
	AnalysisDelay       time.Duration
	AnalysisMaxDelay    time.Duration
	AnalysisCacheTTL    time.Duration

	// Tracker policy
	RequireFutureDeadline bool
	QuickAddMethod        string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string
	GoogleOAuthClientFile string
	GoogleOAuthTokenFile  string

	LogLevel string
}

// File is the optional TOML overlay. Environment variables win over it.
type File struct {
	Server   ServerFile   `toml:"server"`
	Storage  StorageFile  `toml:"storage"`
	Analysis AnalysisFile `toml:"analysis"`
	Tracker  TrackerFile  `toml:"tracker"`
	Events   EventsFile   `toml:"events"`
	Sheets   SheetsFile   `toml:"sheets"`
	Log      LogFile      `toml:"log"`
}

type ServerFile struct {
	Port               string   `toml:"port,omitempty"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute,omitempty"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins,omitempty"`
}

type StorageFile struct {
	Backend      string `toml:"backend,omitempty"`
	DataDir      string `toml:"data_dir,omitempty"`
	SQLiteDBPath string `toml:"sqlite_db_path,omitempty"`
}

type AnalysisFile struct {
	APIKey          string `toml:"api_key,omitempty"`
	Model           string `toml:"model,omitempty"`
	UpstreamURL     string `toml:"upstream_url,omitempty"`
	UpstreamTimeout string `toml:"upstream_timeout,omitempty"`
	Endpoint        string `toml:"endpoint,omitempty"`
	MaxAttempts     int    `toml:"max_attempts,omitempty"`
	Backoff         string `toml:"backoff,omitempty"`
	Delay           string `toml:"delay,omitempty"`
	MaxDelay        string `toml:"max_delay,omitempty"`
	CacheTTL        string `toml:"cache_ttl,omitempty"`
}

type TrackerFile struct {
	RequireFutureDeadline *bool  `toml:"require_future_deadline,omitempty"`
	QuickAddMethod        string `toml:"quick_add_method,omitempty"`
}

type EventsFile struct {
	AMQPURL  string `toml:"amqp_url,omitempty"`
	Exchange string `toml:"exchange,omitempty"`
	Queue    string `toml:"queue,omitempty"`
}

type SheetsFile struct {
	SpreadsheetID   string `toml:"spreadsheet_id,omitempty"`
	SheetName       string `toml:"sheet_name,omitempty"`
	CredentialsFile string `toml:"credentials_file,omitempty"`
	OAuthClientFile string `toml:"oauth_client_file,omitempty"`
	OAuthTokenFile  string `toml:"oauth_token_file,omitempty"`
}

type LogFile struct {
	Level string `toml:"level,omitempty"`
}

// Dir returns the XDG config directory for saveup.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "saveup")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "saveup")
}

// FilePath returns SAVEUP_CONFIG when set, else Dir()/config.toml.
func FilePath() string {
	if p := os.Getenv("SAVEUP_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(Dir(), "config.toml")
}

// ReadFile parses the TOML overlay at path. A missing file is not an error.
func ReadFile(path string) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return f, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return f, nil
}

// Load reads the TOML overlay and then the environment.
func Load() (*Config, error) {
	f, err := ReadFile(FilePath())
	if err != nil {
		return nil, err
	}
	return FromEnv(f), nil
}

// FromEnv builds a Config from the environment, using f for defaults.
func FromEnv(f File) *Config {
	model := getEnv("GEMINI_MODEL", or(f.Analysis.Model, "gemini-1.5-flash-latest"))
	dataDir := getEnv("DATA_DIR", or(f.Storage.DataDir, "./data"))

	cfg := &Config{
		Port:               getEnv("PORT", or(f.Server.Port, "8080")),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", orInt(f.Server.RateLimitPerMinute, 30)),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", f.Server.CORSAllowedOrigins),

		StorageBackend: getEnv("STORAGE_BACKEND", or(f.Storage.Backend, "file")),
		DataDir:        dataDir,
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", or(f.Storage.SQLiteDBPath, DefaultSQLitePath(dataDir))),

		GeminiAPIKey:        getEnv("GEMINI_API_KEY", f.Analysis.APIKey),
		GeminiModel:         model,
		UpstreamURL:         getEnv("UPSTREAM_URL", or(f.Analysis.UpstreamURL, UpstreamURLFor(model))),
		UpstreamTimeout:     getEnvDuration("UPSTREAM_TIMEOUT", orDuration(f.Analysis.UpstreamTimeout, 60*time.Second)),
		AnalysisEndpoint:    getEnv("ANALYSIS_ENDPOINT", f.Analysis.Endpoint),
		AnalysisMaxAttempts: getEnvInt("ANALYSIS_MAX_ATTEMPTS", orInt(f.Analysis.MaxAttempts, 3)),
		AnalysisBackoff:     getEnv("ANALYSIS_BACKOFF", or(f.Analysis.Backoff, "fixed")),
		AnalysisDelay:       getEnvDuration("ANALYSIS_DELAY", orDuration(f.Analysis.Delay, 1200*time.Millisecond)),
		AnalysisMaxDelay:    getEnvDuration("ANALYSIS_MAX_DELAY", orDuration(f.Analysis.MaxDelay, 30*time.Second)),
		AnalysisCacheTTL:    getEnvDuration("ANALYSIS_CACHE_TTL", orDuration(f.Analysis.CacheTTL, 0)),

		RequireFutureDeadline: getEnvBool("REQUIRE_FUTURE_DEADLINE", orBool(f.Tracker.RequireFutureDeadline, true)),
		QuickAddMethod:        getEnv("QUICK_ADD_METHOD", or(f.Tracker.QuickAddMethod, "cash")),

		AMQPURL:      getEnv("AMQP_URL", f.Events.AMQPURL),
		AMQPExchange: getEnv("AMQP_EXCHANGE", or(f.Events.Exchange, "saveup")),
		AMQPQueue:    getEnv("AMQP_QUEUE", or(f.Events.Queue, "saveup_events")),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", f.Sheets.SpreadsheetID),
		GoogleSheetName:       getEnv("GOOGLE_SHEET_NAME", or(f.Sheets.SheetName, "Contributions")),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", f.Sheets.CredentialsFile),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),
		GoogleOAuthClientFile: getEnv("GOOGLE_OAUTH_CLIENT_FILE", f.Sheets.OAuthClientFile),
		GoogleOAuthTokenFile:  getEnv("GOOGLE_OAUTH_TOKEN_FILE", or(f.Sheets.OAuthTokenFile, filepath.Join(Dir(), "token.json"))),

		LogLevel: getEnv("LOG_LEVEL", or(f.Log.Level, "info")),
	}

	return cfg
}

// DefaultSQLitePath is the database file used when none is configured.
func DefaultSQLitePath(dataDir string) string {
	return filepath.Join(dataDir, "saveup.db")
}

// UpstreamURLFor returns the generateContent endpoint for model.
func UpstreamURLFor(model string) string {
	return upstreamBase + model + ":generateContent"
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	validBackends := []string{"file", "sqlite", "memory"}
	if !contains(validBackends, c.StorageBackend) {
		errors = append(errors, fmt.Sprintf("invalid storage backend '%s': must be one of %v", c.StorageBackend, validBackends))
	}
	if c.StorageBackend == "file" && c.DataDir == "" {
		errors = append(errors, "data directory cannot be empty when using file backend")
	}
	if c.StorageBackend == "sqlite" && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
	}

	if c.UpstreamURL == "" {
		errors = append(errors, "upstream URL cannot be empty")
	} else if err := checkHTTPURL(c.UpstreamURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid upstream URL '%s': %v", c.UpstreamURL, err))
	}
	if c.AnalysisEndpoint != "" {
		if err := checkHTTPURL(c.AnalysisEndpoint); err != nil {
			errors = append(errors, fmt.Sprintf("invalid analysis endpoint '%s': %v", c.AnalysisEndpoint, err))
		}
	}
	if c.UpstreamTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid upstream timeout %v: must be positive", c.UpstreamTimeout))
	}

	if c.AnalysisMaxAttempts < 1 || c.AnalysisMaxAttempts > 10 {
		errors = append(errors, fmt.Sprintf("invalid analysis max attempts %d: must be between 1 and 10", c.AnalysisMaxAttempts))
	}
	validBackoffs := []string{"fixed", "exponential"}
	if !contains(validBackoffs, c.AnalysisBackoff) {
		errors = append(errors, fmt.Sprintf("invalid analysis backoff '%s': must be one of %v", c.AnalysisBackoff, validBackoffs))
	}
	if c.AnalysisDelay < 0 {
		errors = append(errors, fmt.Sprintf("invalid analysis delay %v: must not be negative", c.AnalysisDelay))
	}
	if c.AnalysisBackoff == "exponential" && c.AnalysisMaxDelay < c.AnalysisDelay {
		errors = append(errors, fmt.Sprintf("invalid analysis max delay %v: must be at least the base delay %v", c.AnalysisMaxDelay, c.AnalysisDelay))
	}
	if c.AnalysisCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid analysis cache TTL %v: must not be negative", c.AnalysisCacheTTL))
	}

	validQuickAdd := []string{"cash", "selected"}
	if !contains(validQuickAdd, c.QuickAddMethod) {
		errors = append(errors, fmt.Sprintf("invalid quick add method '%s': must be one of %v", c.QuickAddMethod, validQuickAdd))
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

	if c.GoogleCredentialsFile != "" {
		if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
		}
	}
	if c.GoogleOAuthClientFile != "" {
		if _, err := os.Stat(c.GoogleOAuthClientFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google OAuth client file does not exist: %s", c.GoogleOAuthClientFile))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// EventsEnabled reports whether state-changed events are published.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

// SheetsEnabled reports whether contribution export is configured.
func (c *Config) SheetsEnabled() bool {
	if c.GoogleSpreadsheetID == "" {
		return false
	}
	return c.GoogleCredentialsFile != "" || c.GoogleCredentialsJSON != "" || c.GoogleOAuthClientFile != ""
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func orBool(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}

func orDuration(v string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

// getEnvList splits a comma separated variable, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

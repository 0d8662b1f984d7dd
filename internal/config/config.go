package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a sync run
type Config struct {
	Mailchimp    MailchimpConfig    `yaml:"mailchimp"`
	GoogleSheets GoogleSheetsConfig `yaml:"google_sheets"`
	Sync         SyncConfig         `yaml:"sync"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// MailchimpConfig holds Mailchimp Marketing API configuration
type MailchimpConfig struct {
	APIKey         string `yaml:"api_key"`
	Server         string `yaml:"server"` // data center prefix, e.g. "us1"
	BaseURL        string `yaml:"base_url"`
	ListID         string `yaml:"list_id"`
	PageSize       int    `yaml:"page_size"`
	PageDelayMS    int    `yaml:"page_delay_ms"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c MailchimpConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PageDelay returns the pause between two full pages
func (c MailchimpConfig) PageDelay() time.Duration {
	return time.Duration(c.PageDelayMS) * time.Millisecond
}

// Endpoint returns the API root, derived from the server prefix unless
// BaseURL is set explicitly.
func (c MailchimpConfig) Endpoint() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("https://%s.api.mailchimp.com/3.0", c.Server)
}

// GoogleSheetsConfig holds Google Sheets destination configuration
type GoogleSheetsConfig struct {
	CredentialsFile  string `yaml:"credentials_file"`
	SpreadsheetName  string `yaml:"spreadsheet_name"`
	WorksheetName    string `yaml:"worksheet_name"`
	SummaryWorksheet string `yaml:"summary_worksheet"` // optional
	BatchSize        int    `yaml:"batch_size"`
	BatchDelayMS     int    `yaml:"batch_delay_ms"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
	SheetsBaseURL    string `yaml:"sheets_base_url"`
	DriveBaseURL     string `yaml:"drive_base_url"`
}

// Timeout returns the configured timeout as a duration
func (c GoogleSheetsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BatchDelay returns the pause between two row batches
func (c GoogleSheetsConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMS) * time.Millisecond
}

// SyncConfig holds pipeline thresholds
type SyncConfig struct {
	LowVolumeThreshold int `yaml:"low_volume_threshold"`
	SkipReportLimit    int `yaml:"skip_report_limit"`
}

// LoggingConfig holds structured logger settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether emails are masked in log output (default true)
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Mailchimp.Server == "" {
		cfg.Mailchimp.Server = ServerFromAPIKey(cfg.Mailchimp.APIKey)
	}
	if cfg.Mailchimp.PageSize == 0 {
		cfg.Mailchimp.PageSize = 1000
	}
	if cfg.Mailchimp.PageDelayMS == 0 {
		cfg.Mailchimp.PageDelayMS = 100
	}
	if cfg.Mailchimp.TimeoutSeconds == 0 {
		cfg.Mailchimp.TimeoutSeconds = 30
	}
	if cfg.GoogleSheets.WorksheetName == "" {
		cfg.GoogleSheets.WorksheetName = "RAW DATA"
	}
	if cfg.GoogleSheets.BatchSize == 0 {
		cfg.GoogleSheets.BatchSize = 1000
	}
	if cfg.GoogleSheets.BatchDelayMS == 0 {
		cfg.GoogleSheets.BatchDelayMS = 500
	}
	if cfg.GoogleSheets.TimeoutSeconds == 0 {
		cfg.GoogleSheets.TimeoutSeconds = 60
	}
	if cfg.Sync.LowVolumeThreshold == 0 {
		cfg.Sync.LowVolumeThreshold = 10
	}
	if cfg.Sync.SkipReportLimit == 0 {
		cfg.Sync.SkipReportLimit = 10
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) first so credentials can live outside
// the YAML file. A missing config file is not an error; the environment
// may carry everything.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = &Config{}
	} else if err != nil {
		return nil, err
	}

	if v := os.Getenv("MAILCHIMP_API_KEY"); v != "" {
		cfg.Mailchimp.APIKey = v
		// Re-derive the data center unless it was pinned explicitly.
		if os.Getenv("MAILCHIMP_SERVER") == "" && cfg.Mailchimp.BaseURL == "" {
			if dc := ServerFromAPIKey(v); dc != "" {
				cfg.Mailchimp.Server = dc
			}
		}
	}
	if v := os.Getenv("MAILCHIMP_SERVER"); v != "" {
		cfg.Mailchimp.Server = v
	}
	if v := os.Getenv("MAILCHIMP_LIST_ID"); v != "" {
		cfg.Mailchimp.ListID = v
	}
	if v := os.Getenv("GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleSheets.CredentialsFile = v
	}
	if v := os.Getenv("GOOGLE_SHEET_NAME"); v != "" {
		cfg.GoogleSheets.SpreadsheetName = v
	}
	if v := os.Getenv("GOOGLE_WORKSHEET_NAME"); v != "" {
		cfg.GoogleSheets.WorksheetName = v
	}
	if v := os.Getenv("GOOGLE_SUMMARY_WORKSHEET"); v != "" {
		cfg.GoogleSheets.SummaryWorksheet = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Validate returns an error naming every required setting that is empty
func (cfg *Config) Validate() error {
	var missing []string
	if cfg.Mailchimp.APIKey == "" {
		missing = append(missing, "mailchimp.api_key")
	}
	if cfg.Mailchimp.Server == "" && cfg.Mailchimp.BaseURL == "" {
		missing = append(missing, "mailchimp.server")
	}
	if cfg.Mailchimp.ListID == "" {
		missing = append(missing, "mailchimp.list_id")
	}
	if cfg.GoogleSheets.CredentialsFile == "" {
		missing = append(missing, "google_sheets.credentials_file")
	}
	if cfg.GoogleSheets.SpreadsheetName == "" {
		missing = append(missing, "google_sheets.spreadsheet_name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if cfg.Mailchimp.PageSize < 1 || cfg.Mailchimp.PageSize > 1000 {
		return fmt.Errorf("mailchimp.page_size must be between 1 and 1000, got %d", cfg.Mailchimp.PageSize)
	}
	if cfg.GoogleSheets.BatchSize < 1 {
		return fmt.Errorf("google_sheets.batch_size must be positive, got %d", cfg.GoogleSheets.BatchSize)
	}
	return nil
}

// ServerFromAPIKey extracts the data center suffix from a Mailchimp API key
// ("abc123-us1" → "us1"). Returns "" when the key carries none.
func ServerFromAPIKey(apiKey string) string {
	i := strings.LastIndex(apiKey, "-")
	if i < 0 || i == len(apiKey)-1 {
		return ""
	}
	return apiKey[i+1:]
}

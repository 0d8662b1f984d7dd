package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
mailchimp:
  api_key: "test-key-us7"
  list_id: "3613ca0378"
  page_size: 500
  page_delay_ms: 250
  timeout_seconds: 45

google_sheets:
  credentials_file: "/etc/audience-sync/sa.json"
  spreadsheet_name: "Audience Growth"
  worksheet_name: "Subscribers"
  summary_worksheet: "Summary"
  batch_size: 200
  batch_delay_ms: 50

sync:
  low_volume_threshold: 25
  skip_report_limit: 5

logging:
  level: debug
  redact_pii: false
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	// Mailchimp
	assert.Equal(t, "test-key-us7", cfg.Mailchimp.APIKey)
	assert.Equal(t, "us7", cfg.Mailchimp.Server)
	assert.Equal(t, "3613ca0378", cfg.Mailchimp.ListID)
	assert.Equal(t, 500, cfg.Mailchimp.PageSize)
	assert.Equal(t, 250, cfg.Mailchimp.PageDelayMS)
	assert.Equal(t, 45, cfg.Mailchimp.TimeoutSeconds)

	// Google Sheets
	assert.Equal(t, "/etc/audience-sync/sa.json", cfg.GoogleSheets.CredentialsFile)
	assert.Equal(t, "Audience Growth", cfg.GoogleSheets.SpreadsheetName)
	assert.Equal(t, "Subscribers", cfg.GoogleSheets.WorksheetName)
	assert.Equal(t, "Summary", cfg.GoogleSheets.SummaryWorksheet)
	assert.Equal(t, 200, cfg.GoogleSheets.BatchSize)
	assert.Equal(t, 50, cfg.GoogleSheets.BatchDelayMS)

	// Sync + logging
	assert.Equal(t, 25, cfg.Sync.LowVolumeThreshold)
	assert.Equal(t, 5, cfg.Sync.SkipReportLimit)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Redact())

	require.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
mailchimp:
  api_key: "abc-us1"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "us1", cfg.Mailchimp.Server)
	assert.Equal(t, 1000, cfg.Mailchimp.PageSize)
	assert.Equal(t, 100, cfg.Mailchimp.PageDelayMS)
	assert.Equal(t, 30, cfg.Mailchimp.TimeoutSeconds)
	assert.Equal(t, "RAW DATA", cfg.GoogleSheets.WorksheetName)
	assert.Equal(t, 1000, cfg.GoogleSheets.BatchSize)
	assert.Equal(t, 500, cfg.GoogleSheets.BatchDelayMS)
	assert.Equal(t, 60, cfg.GoogleSheets.TimeoutSeconds)
	assert.Equal(t, 10, cfg.Sync.LowVolumeThreshold)
	assert.Equal(t, 10, cfg.Sync.SkipReportLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redact())
	assert.Equal(t, "https://us1.api.mailchimp.com/3.0", cfg.Mailchimp.Endpoint())
}

func TestLoadFromEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
mailchimp:
  api_key: "file-key-us1"
  list_id: "file-list"
google_sheets:
  spreadsheet_name: "File Sheet"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("MAILCHIMP_API_KEY", "env-key-us19")
	t.Setenv("MAILCHIMP_LIST_ID", "env-list")
	t.Setenv("GOOGLE_CREDENTIALS_FILE", "/tmp/sa.json")
	t.Setenv("GOOGLE_SHEET_NAME", "Env Sheet")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	// Environment variables should override file values
	assert.Equal(t, "env-key-us19", cfg.Mailchimp.APIKey)
	assert.Equal(t, "us19", cfg.Mailchimp.Server)
	assert.Equal(t, "env-list", cfg.Mailchimp.ListID)
	assert.Equal(t, "/tmp/sa.json", cfg.GoogleSheets.CredentialsFile)
	assert.Equal(t, "Env Sheet", cfg.GoogleSheets.SpreadsheetName)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFromEnvExplicitServerWins(t *testing.T) {
	t.Setenv("MAILCHIMP_API_KEY", "env-key-us19")
	t.Setenv("MAILCHIMP_SERVER", "us3")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "us3", cfg.Mailchimp.Server)
}

func TestLoadFromEnvMissingFile(t *testing.T) {
	t.Setenv("MAILCHIMP_API_KEY", "k-us2")
	t.Setenv("MAILCHIMP_LIST_ID", "list")
	t.Setenv("GOOGLE_CREDENTIALS_FILE", "/tmp/sa.json")
	t.Setenv("GOOGLE_SHEET_NAME", "Sheet")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "us2", cfg.Mailchimp.Server)
	assert.Equal(t, 1000, cfg.Mailchimp.PageSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("mailchimp: [unclosed"), 0644))

	_, err := LoadFromEnv(configPath)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailchimp.api_key")
	assert.Contains(t, err.Error(), "mailchimp.list_id")
	assert.Contains(t, err.Error(), "google_sheets.credentials_file")
	assert.Contains(t, err.Error(), "google_sheets.spreadsheet_name")
}

func TestValidatePageSize(t *testing.T) {
	cfg := &Config{
		Mailchimp:    MailchimpConfig{APIKey: "k-us1", ListID: "l", PageSize: 5000},
		GoogleSheets: GoogleSheetsConfig{CredentialsFile: "sa.json", SpreadsheetName: "s"},
	}
	cfg.applyDefaults()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page_size")
}

func TestServerFromAPIKey(t *testing.T) {
	assert.Equal(t, "us1", ServerFromAPIKey("edd024360a7ee99d25b6352ea1316052-us1"))
	assert.Equal(t, "", ServerFromAPIKey("nokey"))
	assert.Equal(t, "", ServerFromAPIKey("trailing-"))
}

func TestDurations(t *testing.T) {
	mc := MailchimpConfig{TimeoutSeconds: 45, PageDelayMS: 100}
	assert.Equal(t, int64(45_000_000_000), mc.Timeout().Nanoseconds())
	assert.Equal(t, int64(100_000_000), mc.PageDelay().Nanoseconds())

	gs := GoogleSheetsConfig{BatchDelayMS: 500}
	assert.Equal(t, int64(500_000_000), gs.BatchDelay().Nanoseconds())
}

func TestEndpointOverride(t *testing.T) {
	mc := MailchimpConfig{Server: "us1", BaseURL: "http://127.0.0.1:9999/3.0/"}
	assert.Equal(t, "http://127.0.0.1:9999/3.0", mc.Endpoint())
}

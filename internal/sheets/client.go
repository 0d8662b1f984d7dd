package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/ignite/audience-sync/internal/config"
	"github.com/ignite/audience-sync/internal/pkg/httpclient"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// Scopes requested for the service account
var Scopes = []string{
	sheetsapi.SpreadsheetsScope,
	drive.DriveReadonlyScope,
}

// Client wraps the Sheets v4 and Drive v3 services
type Client struct {
	sheets      *sheetsapi.Service
	drive       *drive.Service
	clientEmail string
}

// NewClient creates a client over an already-authorized HTTP client.
// SheetsBaseURL and DriveBaseURL, when set, replace the Google hosts.
func NewClient(ctx context.Context, httpClient *http.Client, cfg config.GoogleSheetsConfig) (*Client, error) {
	sheetsOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if cfg.SheetsBaseURL != "" {
		sheetsOpts = append(sheetsOpts, option.WithEndpoint(strings.TrimRight(cfg.SheetsBaseURL, "/")+"/"))
	}
	driveOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if cfg.DriveBaseURL != "" {
		driveOpts = append(driveOpts, option.WithEndpoint(strings.TrimRight(cfg.DriveBaseURL, "/")+"/drive/v3/"))
	}

	sheetsService, err := sheetsapi.NewService(ctx, sheetsOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}
	driveService, err := drive.NewService(ctx, driveOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating drive service: %w", err)
	}

	return &Client{sheets: sheetsService, drive: driveService}, nil
}

// NewServiceAccountClient reads a service-account JSON key and returns a
// client whose requests carry its OAuth2 token.
func NewServiceAccountClient(ctx context.Context, cfg config.GoogleSheetsConfig) (*Client, error) {
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrInvalidCredentials, cfg.CredentialsFile, err)
	}

	// The token source uses this client for token exchange as well.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpclient.New(cfg.Timeout()))
	httpClient := jwtConfig.Client(ctx)
	httpClient.Timeout = cfg.Timeout()

	c, err := NewClient(ctx, httpClient, cfg)
	if err != nil {
		return nil, err
	}
	c.clientEmail = jwtConfig.Email
	return c, nil
}

// ClientEmail is the service account the spreadsheet must be shared with
func (c *Client) ClientEmail() string {
	return c.clientEmail
}

// statusOf returns the HTTP status of a Google API error, or 0.
func statusOf(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

// credentialError reports a failed token exchange or a rejected token.
func credentialError(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return true
	}
	return statusOf(err) == http.StatusUnauthorized
}

// classify tags credential failures with ErrInvalidCredentials
func classify(err error) error {
	if credentialError(err) && !errors.Is(err, ErrInvalidCredentials) {
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	return err
}

// FindSpreadsheet returns the id of the spreadsheet with exactly this name
func (c *Client) FindSpreadsheet(ctx context.Context, name string) (string, error) {
	list, err := c.drive.Files.List().
		Q(fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(name), spreadsheetMimeType)).
		Fields("files(id,name)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		if credentialError(err) || statusOf(err) == http.StatusForbidden {
			return "", fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return "", fmt.Errorf("searching for spreadsheet %q: %w", name, err)
	}

	// Drive name matching is not case-sensitive; the sheet name must be.
	for _, f := range list.Files {
		if f.Name == name {
			return f.Id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrSpreadsheetNotFound, name)
}

// OpenWorksheet resolves a spreadsheet by name and a tab by exact title
func (c *Client) OpenWorksheet(ctx context.Context, spreadsheetName, title string) (*Worksheet, error) {
	id, err := c.FindSpreadsheet(ctx, spreadsheetName)
	if err != nil {
		return nil, err
	}
	return c.Worksheet(ctx, id, title)
}

// Tab is an opened worksheet as the sync pipeline sees it
type Tab interface {
	Target
	Title() string
	URL() string
}

// Open is OpenWorksheet returning the Tab interface
func (c *Client) Open(ctx context.Context, spreadsheetName, title string) (Tab, error) {
	ws, err := c.OpenWorksheet(ctx, spreadsheetName, title)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// Worksheet resolves a tab of a known spreadsheet by exact title
func (c *Client) Worksheet(ctx context.Context, spreadsheetID, title string) (*Worksheet, error) {
	meta, err := c.sheets.Spreadsheets.Get(spreadsheetID).
		Fields("spreadsheetId,properties.title,sheets.properties(sheetId,title)").
		Context(ctx).
		Do()
	if err != nil {
		switch {
		case statusOf(err) == http.StatusNotFound:
			return nil, fmt.Errorf("%w: id %s: %w", ErrSpreadsheetNotFound, spreadsheetID, err)
		case credentialError(err) || statusOf(err) == http.StatusForbidden:
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return nil, fmt.Errorf("reading spreadsheet %s: %w", spreadsheetID, err)
	}

	for _, s := range meta.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return &Worksheet{
				client:        c,
				spreadsheetID: spreadsheetID,
				title:         title,
				sheetID:       s.Properties.SheetId,
			}, nil
		}
	}

	name := spreadsheetID
	if meta.Properties != nil {
		name = meta.Properties.Title
	}
	return nil, fmt.Errorf("%w: %q in %q", ErrWorksheetNotFound, title, name)
}

// Worksheet is one tab of a spreadsheet
type Worksheet struct {
	client        *Client
	spreadsheetID string
	title         string
	sheetID       int64
}

// Title returns the tab title
func (w *Worksheet) Title() string { return w.title }

// URL returns the browser link to the tab
func (w *Worksheet) URL() string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit#gid=%d", w.spreadsheetID, w.sheetID)
}

// Clear removes every value in the tab
func (w *Worksheet) Clear(ctx context.Context) error {
	_, err := w.client.sheets.Spreadsheets.Values.
		Clear(w.spreadsheetID, quoteTitle(w.title), &sheetsapi.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("clearing %q: %w", w.title, classify(err))
	}
	return nil
}

// Update writes rows at an A1 cell range of this tab (e.g. "A2:E1001")
func (w *Worksheet) Update(ctx context.Context, cellRange string, rows [][]string) error {
	rng := quoteTitle(w.title) + "!" + cellRange

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		values[i] = cells
	}

	_, err := w.client.sheets.Spreadsheets.Values.
		Update(w.spreadsheetID, rng, &sheetsapi.ValueRange{Range: rng, MajorDimension: "ROWS", Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("updating %s: %w", rng, classify(err))
	}
	return nil
}

// quoteTitle renders a tab title for A1 notation: 'It''s here'
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// escapeQuery escapes a literal for a Drive search query
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

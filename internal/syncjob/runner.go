// Package syncjob runs the audience-to-sheet pipeline: fetch every
// subscriber, normalize, summarize, then replace the sheet content.
package syncjob

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/ignite/audience-sync/internal/audience"
	"github.com/ignite/audience-sync/internal/config"
	"github.com/ignite/audience-sync/internal/mailchimp"
	"github.com/ignite/audience-sync/internal/pkg/httpclient"
	"github.com/ignite/audience-sync/internal/pkg/logger"
	"github.com/ignite/audience-sync/internal/report"
	"github.com/ignite/audience-sync/internal/sheets"
)

// Source is the audience platform
type Source interface {
	Ping(ctx context.Context) error
	ListSubscribers(ctx context.Context, listID string, pageSize int, progress func(total int)) ([]mailchimp.Member, error)
}

// Destination is an authenticated spreadsheet service
type Destination interface {
	Open(ctx context.Context, spreadsheetName, title string) (sheets.Tab, error)
	ClientEmail() string
}

// ConnectFunc authenticates to the spreadsheet service. It runs only after
// the data is ready, so a bad key never costs a fetch.
type ConnectFunc func(ctx context.Context) (Destination, error)

// ConfirmFunc asks the operator a yes/no question
type ConfirmFunc func(ctx context.Context, question string) (bool, error)

// Deps are the collaborators of a run
type Deps struct {
	Source  Source
	Connect ConnectFunc
	Confirm ConfirmFunc
	Console *report.Console
	Log     *logger.Logger
	// Pause paces sheet batches; nil uses httpclient.Pause
	Pause httpclient.PauseFunc
}

// Result describes a finished run
type Result struct {
	RunID       string
	Fetched     int
	Records     []audience.Record
	Skipped     []audience.Skipped
	Summary     audience.Summary
	RowsWritten int
	SheetURL    string
	// Aborted is set when the low-volume confirmation was declined
	Aborted bool
}

// Runner executes one sync
type Runner struct {
	cfg  *config.Config
	deps Deps
}

// New creates a runner
func New(cfg *config.Config, deps Deps) *Runner {
	if deps.Log == nil {
		deps.Log = logger.Default()
	}
	if deps.Pause == nil {
		deps.Pause = httpclient.Pause
	}
	return &Runner{cfg: cfg, deps: deps}
}

// Run executes the pipeline once. Fatal conditions are returned as *Error
// after being reported on the console. A declined confirmation returns a
// Result with Aborted set and a nil error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := r.deps.Log.With("run_id", res.RunID)
	con := r.deps.Console

	log.Info("sync started", "list_id", r.cfg.Mailchimp.ListID, "spreadsheet", r.cfg.GoogleSheets.SpreadsheetName)

	// Audience source
	con.Stage("Connecting to Mailchimp...")
	if err := r.deps.Source.Ping(ctx); err != nil {
		con.Fail(fmt.Sprintf("Error connecting to Mailchimp: %v", err), "Check your API key and server prefix")
		return nil, r.fail(log, KindConnection, "connect mailchimp", err)
	}
	con.Success("Successfully connected to Mailchimp")

	con.Stage("Fetching subscribers...")
	members, err := r.deps.Source.ListSubscribers(ctx, r.cfg.Mailchimp.ListID, r.cfg.Mailchimp.PageSize, func(total int) {
		con.Step("Fetched %s subscribers so far...", con.Count(total))
	})
	if err != nil {
		if errors.Is(err, mailchimp.ErrListNotFound) {
			con.Fail(fmt.Sprintf("Error fetching subscribers: %v", err), "Check your List ID - it may be incorrect")
			return nil, r.fail(log, KindNotFound, "fetch subscribers", err)
		}
		con.Fail(fmt.Sprintf("Error fetching subscribers: %v", err), upstreamHints(err)...)
		return nil, r.fail(log, KindConnection, "fetch subscribers", err)
	}
	if len(members) == 0 {
		con.Fail("No subscribers found in this list", "Check your List ID and make sure you have subscribers")
		return nil, r.fail(log, KindData, "fetch subscribers", errors.New("list has no subscribed members"))
	}
	res.Fetched = len(members)
	con.Success("Total subscribers fetched: %s", con.Count(res.Fetched))

	// Normalize
	con.Stage("Processing data...")
	raws := make([]audience.Raw, len(members))
	for i, m := range members {
		raws[i] = audience.Raw{Email: m.EmailAddress, TimestampOpt: m.TimestampOpt}
	}
	res.Records, res.Skipped = audience.NormalizeAll(raws)
	for _, s := range res.Skipped {
		log.Debug("record skipped", "email", s.Email, "reason", s.Reason)
	}
	if len(res.Records) == 0 {
		con.Fail("No subscribers with valid opt-in dates found", "Cannot proceed - your sheet will not be updated")
		return nil, r.fail(log, KindData, "normalize", fmt.Errorf("all %d members were skipped", len(res.Skipped)))
	}
	audience.SortByOptin(res.Records)
	con.Success("Processed %s subscribers with valid dates", con.Count(len(res.Records)))
	con.Skipped(res.Skipped, r.cfg.Sync.SkipReportLimit)
	if len(res.Skipped) > 0 {
		log.Warn("records skipped", "count", len(res.Skipped))
	}

	// Aggregate
	con.Stage("Calculating year-over-year metrics...")
	res.Summary = audience.Summarize(res.Records)
	con.Growth(res.Summary.Growth)
	con.Pivot(res.Summary)

	// Sink
	con.Stage("Connecting to Google Sheets...")
	dest, err := r.deps.Connect(ctx)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			con.Fail("Error: Could not find credentials file at:",
				"  "+r.cfg.GoogleSheets.CredentialsFile,
				"Make sure the path is correct")
		} else {
			con.Fail(fmt.Sprintf("Error with Google credentials: %v", err))
		}
		return nil, r.fail(log, KindConnection, "connect sheets", err)
	}
	con.Success("Authenticated with Google")

	gs := r.cfg.GoogleSheets
	tab, err := r.openTab(ctx, dest, gs.WorksheetName)
	if err != nil {
		return nil, r.fail(log, kindOfOpenError(err), "open worksheet", err)
	}
	con.Success("Found sheet: '%s' / '%s'", gs.SpreadsheetName, gs.WorksheetName)

	var summaryTab sheets.Tab
	if gs.SummaryWorksheet != "" {
		summaryTab, err = r.openTab(ctx, dest, gs.SummaryWorksheet)
		if err != nil {
			return nil, r.fail(log, kindOfOpenError(err), "open summary worksheet", err)
		}
		con.Success("Found sheet: '%s' / '%s'", gs.SpreadsheetName, gs.SummaryWorksheet)
	}

	con.Stage("Updating Google Sheet...")
	writer := sheets.NewWriter(gs.BatchSize, gs.BatchDelay(), r.cfg.Sync.LowVolumeThreshold, r.confirmLowVolume)
	writer.Pause = r.deps.Pause
	writer.Log = log
	writer.Progress = func(ev sheets.Event) {
		switch ev.Kind {
		case sheets.EventCleared:
			con.Step("Cleared existing data")
		case sheets.EventHeaderWritten:
			con.Step("Wrote headers")
		case sheets.EventRowsWritten:
			con.Step("Wrote rows %d to %d", ev.StartRow, ev.EndRow)
		}
	}

	res.RowsWritten, err = writer.Publish(ctx, tab, res.Records)
	if errors.Is(err, sheets.ErrNotConfirmed) {
		con.Stage("Aborted - sheet not updated")
		log.Info("sync aborted at low-volume confirmation", "records", len(res.Records))
		res.Aborted = true
		return res, nil
	}
	var werr *sheets.WriteError
	if err != nil && !errors.As(err, &werr) {
		con.Fail(fmt.Sprintf("Error reading confirmation: %v", err), "The sheet was not changed")
		return nil, r.fail(log, KindInput, "confirm", err)
	}
	if err != nil {
		return nil, r.writeFailure(log, err)
	}

	if summaryTab != nil {
		if err := writer.PublishSummary(ctx, summaryTab, res.Summary); err != nil {
			return nil, r.writeFailure(log, err)
		}
		con.Step("Wrote summary to '%s'", summaryTab.Title())
	}

	res.SheetURL = tab.URL()
	con.Success("Successfully updated %s rows in Google Sheet", con.Count(res.RowsWritten))
	con.Success("Sheet URL: %s", res.SheetURL)

	con.Banner("SYNC COMPLETE!", res.RunID)
	con.NextSteps(summaryTab != nil)

	log.Info("sync complete", "fetched", res.Fetched, "rows", res.RowsWritten, "skipped", len(res.Skipped))
	return res, nil
}

func (r *Runner) confirmLowVolume(ctx context.Context, count int) (bool, error) {
	r.deps.Console.Warn("Warning: Only %d records found - this seems low", count)
	if r.deps.Confirm == nil {
		return false, nil
	}
	return r.deps.Confirm(ctx, "Continue anyway?")
}

func (r *Runner) openTab(ctx context.Context, dest Destination, title string) (sheets.Tab, error) {
	gs := r.cfg.GoogleSheets
	con := r.deps.Console

	tab, err := dest.Open(ctx, gs.SpreadsheetName, title)
	switch {
	case err == nil:
		return tab, nil
	case errors.Is(err, sheets.ErrSpreadsheetNotFound):
		con.Fail(fmt.Sprintf("Error: Could not find spreadsheet '%s'", gs.SpreadsheetName),
			"Make sure:",
			"  1. The sheet name is exactly correct (case-sensitive)",
			"  2. You've shared the sheet with your service account email",
			fmt.Sprintf("     (%s)", shareHint(dest.ClientEmail(), gs.CredentialsFile)))
	case errors.Is(err, sheets.ErrWorksheetNotFound):
		con.Fail(fmt.Sprintf("Error: Could not find worksheet '%s'", title),
			"Make sure the tab name is exactly correct (case-sensitive)")
	case errors.Is(err, sheets.ErrInvalidCredentials):
		con.Fail(fmt.Sprintf("Error with Google credentials: %v", err))
	default:
		con.Fail(fmt.Sprintf("Unexpected error accessing sheet: %v", err))
	}
	return nil, err
}

// upstreamHints suggests a rerun when Mailchimp throttled or failed the request
func upstreamHints(err error) []string {
	switch {
	case httpclient.IsRateLimited(err):
		return []string{"Mailchimp is rate limiting requests - wait a minute and run the sync again"}
	case httpclient.IsServerError(err):
		return []string{"Mailchimp is having problems - try again later"}
	}
	return nil
}

func shareHint(clientEmail, credentialsFile string) string {
	if clientEmail != "" {
		return clientEmail
	}
	return "Check the 'client_email' in " + credentialsFile
}

func kindOfOpenError(err error) Kind {
	if errors.Is(err, sheets.ErrSpreadsheetNotFound) || errors.Is(err, sheets.ErrWorksheetNotFound) {
		return KindNotFound
	}
	return KindConnection
}

func (r *Runner) writeFailure(log *logger.Logger, err error) error {
	var werr *sheets.WriteError
	partial := errors.As(err, &werr) && werr.Partial()

	hints := []string{"The sheet was not changed"}
	if partial {
		hints = []string{"Your data may be partially updated - check the sheet"}
	}
	r.deps.Console.Fail(fmt.Sprintf("Error writing to Google Sheets: %v", err), hints...)

	e := r.fail(log, KindWrite, "write sheet", err)
	e.Partial = partial
	return e
}

func (r *Runner) fail(log *logger.Logger, kind Kind, stage string, err error) *Error {
	log.Error("sync failed", "kind", kind.String(), "stage", stage, "error", err)
	return &Error{Kind: kind, Stage: stage, Err: err}
}

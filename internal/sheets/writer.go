package sheets

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/audience-sync/internal/audience"
	"github.com/ignite/audience-sync/internal/pkg/httpclient"
	"github.com/ignite/audience-sync/internal/pkg/logger"
)

// Target is the destructive surface of a worksheet. *Worksheet implements it.
type Target interface {
	Clear(ctx context.Context) error
	Update(ctx context.Context, cellRange string, rows [][]string) error
}

// ConfirmFunc decides whether a low-volume write may proceed.
type ConfirmFunc func(ctx context.Context, count int) (bool, error)

// EventKind identifies a write milestone
type EventKind int

const (
	EventCleared EventKind = iota
	EventHeaderWritten
	EventRowsWritten
)

// Event is reported after each step of a publish
type Event struct {
	Kind     EventKind
	StartRow int
	EndRow   int
}

// Writer replaces a tab's content with a header and batched data rows
type Writer struct {
	BatchSize          int
	BatchDelay         time.Duration
	LowVolumeThreshold int
	Confirm            ConfirmFunc
	Pause              httpclient.PauseFunc
	Progress           func(Event)
	Log                *logger.Logger
}

// NewWriter returns a writer with production pacing.
func NewWriter(batchSize int, batchDelay time.Duration, lowVolumeThreshold int, confirm ConfirmFunc) *Writer {
	return &Writer{
		BatchSize:          batchSize,
		BatchDelay:         batchDelay,
		LowVolumeThreshold: lowVolumeThreshold,
		Confirm:            confirm,
		Pause:              httpclient.Pause,
		Log:                logger.Default(),
	}
}

// Publish writes records (already in final order) below a fixed header.
// Below the low-volume threshold it asks Confirm first and returns
// ErrNotConfirmed, touching nothing, when declined. Failures from the clear
// onwards come back as *WriteError.
func (w *Writer) Publish(ctx context.Context, target Target, records []audience.Record) (int, error) {
	if len(records) < w.LowVolumeThreshold {
		ok := false
		if w.Confirm != nil {
			var err error
			ok, err = w.Confirm(ctx, len(records))
			if err != nil {
				return 0, fmt.Errorf("confirming low-volume write: %w", err)
			}
		}
		if !ok {
			return 0, ErrNotConfirmed
		}
	}

	if err := target.Clear(ctx); err != nil {
		return 0, &WriteError{Op: "clear", Err: err}
	}
	w.emit(Event{Kind: EventCleared})

	if err := target.Update(ctx, "A1:E1", [][]string{audience.Header}); err != nil {
		return 0, &WriteError{Op: "header", Err: err}
	}
	w.emit(Event{Kind: EventHeaderWritten, StartRow: 1, EndRow: 1})

	batchSize := w.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}

	written := 0
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}

		rows := make([][]string, 0, end-i)
		for _, r := range records[i:end] {
			rows = append(rows, r.Row())
		}

		// Row 1 is the header.
		startRow := i + 2
		endRow := startRow + len(rows) - 1
		if err := target.Update(ctx, fmt.Sprintf("A%d:E%d", startRow, endRow), rows); err != nil {
			return written, &WriteError{Op: "rows", RowsWritten: written, Err: err}
		}
		written += len(rows)
		w.emit(Event{Kind: EventRowsWritten, StartRow: startRow, EndRow: endRow})
		if w.Log != nil {
			w.Log.Debug("Sheets: wrote batch", "start_row", startRow, "end_row", endRow)
		}

		if end < len(records) && w.Pause != nil {
			if err := w.Pause(ctx, w.BatchDelay); err != nil {
				return written, &WriteError{Op: "rows", RowsWritten: written, Err: err}
			}
		}
	}

	return written, nil
}

// PublishSummary replaces a tab's content with the pivot, totals and growth
// rates.
func (w *Writer) PublishSummary(ctx context.Context, target Target, summary audience.Summary) error {
	rows := summary.Rows()
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}

	if err := target.Clear(ctx); err != nil {
		return &WriteError{Op: "clear", Err: err}
	}
	if len(rows) == 0 {
		return nil
	}

	cellRange := fmt.Sprintf("A1:%s%d", ColumnName(width), len(rows))
	if err := target.Update(ctx, cellRange, rows); err != nil {
		return &WriteError{Op: "rows", Err: err}
	}
	return nil
}

func (w *Writer) emit(ev Event) {
	if w.Progress != nil {
		w.Progress(ev)
	}
}

// ColumnName converts a 1-based column index to its A1 letters (1 → A,
// 27 → AA).
func ColumnName(n int) string {
	if n < 1 {
		return "A"
	}
	name := ""
	for n > 0 {
		n--
		name = string(rune('A'+n%26)) + name
		n /= 26
	}
	return name
}

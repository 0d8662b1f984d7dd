package sheets

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials means the service-account key could not be read
	// or was rejected by Google
	ErrInvalidCredentials = errors.New("sheets: invalid Google credentials")
	// ErrSpreadsheetNotFound means no spreadsheet with that exact name is
	// visible to the service account
	ErrSpreadsheetNotFound = errors.New("sheets: spreadsheet not found")
	// ErrWorksheetNotFound means the spreadsheet has no tab with that title
	ErrWorksheetNotFound = errors.New("sheets: worksheet not found")
	// ErrNotConfirmed means the low-volume confirmation was declined
	ErrNotConfirmed = errors.New("sheets: write not confirmed")
)

// WriteError is a failure while replacing sheet content. Once the clear has
// succeeded the tab may hold a partial write.
type WriteError struct {
	Op          string // "clear", "header", "rows"
	RowsWritten int
	Err         error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing sheet (%s, %d data rows written): %v", e.Op, e.RowsWritten, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Partial reports whether the sheet was already cleared when the error hit.
func (e *WriteError) Partial() bool { return e.Op != "clear" }

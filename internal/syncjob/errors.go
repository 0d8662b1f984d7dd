package syncjob

import "fmt"

// Kind classifies a fatal run error
type Kind int

const (
	// KindConnection: an API could not be reached or rejected our credentials
	KindConnection Kind = iota + 1
	// KindNotFound: the list, spreadsheet or tab does not resolve
	KindNotFound
	// KindData: nothing usable to write; the sheet was not touched
	KindData
	// KindWrite: the sheet write failed, possibly after clearing
	KindWrite
	// KindInput: the operator's answer could not be read; the sheet was not touched
	KindInput
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindNotFound:
		return "not_found"
	case KindData:
		return "data"
	case KindWrite:
		return "write"
	case KindInput:
		return "input"
	default:
		return "unknown"
	}
}

// Error is a fatal condition that stopped the run
type Error struct {
	Kind  Kind
	Stage string
	Err   error
	// Partial is set when the sheet may hold an incomplete write
	Partial bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

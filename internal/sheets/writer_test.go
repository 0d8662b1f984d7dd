package sheets

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/ignite/audience-sync/internal/audience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySheet is an in-memory tab: row number → cells.
type memorySheet struct {
	rows    map[int][]string
	calls   []string
	failOn  int // fail the nth Update call (1-based), 0 = never
	updates int
}

func newMemorySheet() *memorySheet {
	return &memorySheet{rows: make(map[int][]string)}
}

var rangeRe = regexp.MustCompile(`^A(\d+):[A-Z]+(\d+)$`)

func (m *memorySheet) Clear(ctx context.Context) error {
	m.calls = append(m.calls, "clear")
	m.rows = make(map[int][]string)
	return nil
}

func (m *memorySheet) Update(ctx context.Context, cellRange string, rows [][]string) error {
	m.calls = append(m.calls, "update "+cellRange)
	m.updates++
	if m.failOn != 0 && m.updates == m.failOn {
		return errors.New("quota exceeded")
	}
	match := rangeRe.FindStringSubmatch(cellRange)
	if match == nil {
		return fmt.Errorf("bad range %q", cellRange)
	}
	start, _ := strconv.Atoi(match[1])
	end, _ := strconv.Atoi(match[2])
	if end-start+1 != len(rows) {
		return fmt.Errorf("range %s does not fit %d rows", cellRange, len(rows))
	}
	for i, r := range rows {
		m.rows[start+i] = r
	}
	return nil
}

func makeRecords(t *testing.T, n int) []audience.Record {
	t.Helper()
	raws := make([]audience.Raw, n)
	base := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range raws {
		raws[i] = audience.Raw{
			Email:        fmt.Sprintf("user%d@example.com", i),
			TimestampOpt: base.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
		}
	}
	records, skipped := audience.NormalizeAll(raws)
	require.Empty(t, skipped)
	return records
}

func testWriter(confirm ConfirmFunc) (*Writer, *[]time.Duration) {
	var pauses []time.Duration
	w := NewWriter(1000, 500*time.Millisecond, 10, confirm)
	w.Pause = func(ctx context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}
	return w, &pauses
}

func TestPublishBatches(t *testing.T) {
	sheet := newMemorySheet()
	w, pauses := testWriter(nil)
	var events []Event
	w.Progress = func(ev Event) { events = append(events, ev) }

	records := makeRecords(t, 2500)
	written, err := w.Publish(context.Background(), sheet, records)
	require.NoError(t, err)

	assert.Equal(t, 2500, written)
	assert.Equal(t, []string{
		"clear",
		"update A1:E1",
		"update A2:E1001",
		"update A1002:E2001",
		"update A2002:E2501",
	}, sheet.calls)
	// Pauses sit between batches only.
	assert.Len(t, *pauses, 2)

	assert.Equal(t, audience.Header, sheet.rows[1])
	assert.Equal(t, records[0].Row(), sheet.rows[2])
	assert.Equal(t, records[2499].Row(), sheet.rows[2501])
	assert.Len(t, sheet.rows, 2501)

	require.Len(t, events, 5)
	assert.Equal(t, EventCleared, events[0].Kind)
	assert.Equal(t, Event{Kind: EventRowsWritten, StartRow: 2002, EndRow: 2501}, events[4])
}

func TestPublishIdempotent(t *testing.T) {
	sheet := newMemorySheet()
	sheet.rows[1] = []string{"stale"}
	sheet.rows[9000] = []string{"leftover", "from", "a", "bigger", "run"}

	w, _ := testWriter(nil)
	records := makeRecords(t, 1200)

	_, err := w.Publish(context.Background(), sheet, records)
	require.NoError(t, err)
	first := make(map[int][]string, len(sheet.rows))
	for k, v := range sheet.rows {
		first[k] = v
	}

	_, err = w.Publish(context.Background(), sheet, records)
	require.NoError(t, err)

	assert.Equal(t, first, sheet.rows)
	_, stale := sheet.rows[9000]
	assert.False(t, stale)
}

func TestPublishLowVolumeDeclined(t *testing.T) {
	sheet := newMemorySheet()
	asked := 0
	w, _ := testWriter(func(ctx context.Context, count int) (bool, error) {
		asked++
		assert.Equal(t, 3, count)
		return false, nil
	})

	written, err := w.Publish(context.Background(), sheet, makeRecords(t, 3))

	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.Equal(t, 0, written)
	assert.Equal(t, 1, asked)
	assert.Empty(t, sheet.calls, "no clear or update may happen")
}

func TestPublishLowVolumeConfirmed(t *testing.T) {
	sheet := newMemorySheet()
	w, _ := testWriter(func(ctx context.Context, count int) (bool, error) { return true, nil })

	written, err := w.Publish(context.Background(), sheet, makeRecords(t, 9))
	require.NoError(t, err)
	assert.Equal(t, 9, written)
	assert.Equal(t, []string{"clear", "update A1:E1", "update A2:E10"}, sheet.calls)
}

func TestPublishLowVolumeWithoutConfirmer(t *testing.T) {
	sheet := newMemorySheet()
	w, _ := testWriter(nil)

	_, err := w.Publish(context.Background(), sheet, makeRecords(t, 2))
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.Empty(t, sheet.calls)
}

func TestPublishAtThresholdDoesNotAsk(t *testing.T) {
	sheet := newMemorySheet()
	w, _ := testWriter(func(ctx context.Context, count int) (bool, error) {
		t.Fatal("confirmation must not be requested at the threshold")
		return false, nil
	})

	_, err := w.Publish(context.Background(), sheet, makeRecords(t, 10))
	require.NoError(t, err)
}

func TestPublishConfirmError(t *testing.T) {
	sheet := newMemorySheet()
	w, _ := testWriter(func(ctx context.Context, count int) (bool, error) {
		return false, errors.New("stdin closed")
	})

	_, err := w.Publish(context.Background(), sheet, makeRecords(t, 1))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotConfirmed)
	assert.Empty(t, sheet.calls)
}

func TestPublishPartialFailure(t *testing.T) {
	sheet := newMemorySheet()
	sheet.failOn = 3 // header, first batch, then fail
	w, _ := testWriter(nil)

	written, err := w.Publish(context.Background(), sheet, makeRecords(t, 2500))

	var werr *WriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "rows", werr.Op)
	assert.Equal(t, 1000, werr.RowsWritten)
	assert.Equal(t, 1000, written)
	assert.True(t, werr.Partial())
}

func TestPublishClearFailure(t *testing.T) {
	w, _ := testWriter(nil)
	target := &failingClear{}

	_, err := w.Publish(context.Background(), target, makeRecords(t, 20))

	var werr *WriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "clear", werr.Op)
	assert.False(t, werr.Partial())
}

type failingClear struct{}

func (failingClear) Clear(ctx context.Context) error { return errors.New("forbidden") }
func (failingClear) Update(ctx context.Context, cellRange string, rows [][]string) error {
	return nil
}

func TestPublishSummary(t *testing.T) {
	sheet := newMemorySheet()
	sheet.rows[40] = []string{"old"}
	w, _ := testWriter(nil)

	records := makeRecords(t, 3)
	err := w.PublishSummary(context.Background(), sheet, audience.Summarize(records))
	require.NoError(t, err)

	assert.Equal(t, []string{"clear", "update A1:B3"}, sheet.calls)
	assert.Equal(t, []string{"Month", "2022"}, sheet.rows[1])
	assert.Equal(t, []string{"01-Jan", "3"}, sheet.rows[2])
	assert.Equal(t, []string{"Total", "3"}, sheet.rows[3])
}

func TestColumnName(t *testing.T) {
	assert.Equal(t, "A", ColumnName(1))
	assert.Equal(t, "E", ColumnName(5))
	assert.Equal(t, "Z", ColumnName(26))
	assert.Equal(t, "AA", ColumnName(27))
	assert.Equal(t, "AZ", ColumnName(52))
	assert.Equal(t, "BA", ColumnName(53))
}

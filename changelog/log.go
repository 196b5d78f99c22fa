// Package changelog keeps the append-only record of applied mutations.
// Exactly one record exists per accepted-and-applied change; rejected or
// superseded proposals never appear here. The log feeds the activity
// summary the planner sees and, when configured, appends each record to a
// markdown handbook.
package changelog

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeflow-cli/codeflow/errors"
	"github.com/codeflow-cli/codeflow/tools"
)

// Record is one applied change.
type Record struct {
	Timestamp time.Time          `json:"timestamp"`
	GoalID    uuid.UUID          `json:"goal_id"`
	StepIndex int                `json:"step_index"`
	Path      string             `json:"path"`
	Kind      tools.MutationKind `json:"kind"`
	Summary   string             `json:"summary"`
}

func (r Record) String() string {
	return fmt.Sprintf("[step %d] %s %s: %s", r.StepIndex, r.Kind, r.Path, r.Summary)
}

// Log is the append-only change log for one run. Safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	records  []Record
	handbook string
}

// NewLog creates a log. handbook may be empty; when set, every appended
// record is also written to that markdown file.
func NewLog(handbook string) *Log {
	return &Log{handbook: handbook}
}

// Append adds a record, stamping it with the current time. The handbook
// write is best-effort only for the in-memory log's consistency: a
// handbook failure is returned but the record is already appended.
func (l *Log) Append(r Record) error {
	r.Timestamp = time.Now()

	l.mu.Lock()
	l.records = append(l.records, r)
	handbook := l.handbook
	l.mu.Unlock()

	if handbook == "" {
		return nil
	}
	return appendHandbook(handbook, r)
}

// Records returns a copy of every record in append order.
func (l *Log) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Recent returns up to n of the latest records, oldest first.
func (l *Log) Recent(n int) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.records) {
		n = len(l.records)
	}
	out := make([]Record, n)
	copy(out, l.records[len(l.records)-n:])
	return out
}

// Len returns the number of records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// ActivitySummary renders the latest records as a compact block for the
// planning prompt. Empty when nothing has been applied yet.
func (l *Log) ActivitySummary(n int) string {
	recent := l.Recent(n)
	if len(recent) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Changes applied so far:\n")
	for _, r := range recent {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	return b.String()
}

// appendHandbook writes one markdown entry per record.
func appendHandbook(path string, r Record) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "opening handbook '%s'", path)
	}
	defer f.Close()

	entry := fmt.Sprintf("- %s - %s `%s` (%s), goal `%s`, step %d\n",
		r.Timestamp.Format(time.RFC3339), r.Kind, r.Path, r.Summary, r.GoalID, r.StepIndex)
	if _, err := f.WriteString(entry); err != nil {
		return errors.Wrapf(err, "appending to handbook '%s'", path)
	}
	return nil
}

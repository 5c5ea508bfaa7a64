package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/fetchwrapper/pkg/fetch"
	"github.com/google/uuid"
)

// Entry is a failed request waiting to be replayed.
type Entry struct {
	// ID uniquely identifies the entry.
	ID string `json:"id"`

	// Request is the request as the caller built it, before plugin rewrites.
	Request *fetch.Request `json:"request"`

	// QueuedAt is when the request was first queued.
	QueuedAt time.Time `json:"queued_at"`

	// Error is the dispatch error that caused the request to be queued.
	Error string `json:"error,omitempty"`

	// Attempts counts failed replays.
	Attempts int `json:"attempts"`
}

// newEntry snapshots req for storage.
func newEntry(req *fetch.Request, cause error, now time.Time) *Entry {
	e := &Entry{
		ID:       uuid.NewString(),
		Request:  req.Clone(),
		QueuedAt: now,
	}
	if cause != nil {
		e.Error = cause.Error()
	}
	return e
}

// IsExpired returns true if the entry has been queued longer than retention.
// A non-positive retention never expires.
func (e *Entry) IsExpired(retention time.Duration, now time.Time) bool {
	if retention <= 0 {
		return false
	}
	return now.Sub(e.QueuedAt) > retention
}

// Key returns the Redis list key for a queue name.
// Format: fetch:queue:<name>
func Key(name string) string {
	name = strings.Trim(strings.TrimSpace(name), ":")
	if name == "" {
		name = DefaultName
	}
	return fmt.Sprintf("fetch:queue:%s", name)
}

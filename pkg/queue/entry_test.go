package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/fetchwrapper/pkg/fetch"
)

func TestNewEntry(t *testing.T) {
	req, err := fetch.NewRequest("https://example.com/a", &fetch.Options{Method: "POST", Body: []byte("x")})
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	entry := newEntry(req, errors.New("connection refused"), now)

	if entry.ID == "" {
		t.Error("ID is empty")
	}
	if entry.Error != "connection refused" {
		t.Errorf("Error = %q", entry.Error)
	}
	if !entry.QueuedAt.Equal(now) {
		t.Errorf("QueuedAt = %v, want %v", entry.QueuedAt, now)
	}

	// The entry holds a snapshot.
	req.Body[0] = 'y'
	if string(entry.Request.Body) != "x" {
		t.Errorf("entry body changed with request: %q", entry.Request.Body)
	}

	other := newEntry(req, nil, now)
	if other.ID == entry.ID {
		t.Error("entries share an ID")
	}
	if other.Error != "" {
		t.Errorf("Error = %q, want empty", other.Error)
	}
}

func TestEntry_IsExpired(t *testing.T) {
	now := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		queuedAt  time.Time
		retention time.Duration
		want      bool
	}{
		{"fresh", now.Add(-time.Hour), DefaultMaxRetention, false},
		{"exactly at retention", now.Add(-DefaultMaxRetention), DefaultMaxRetention, false},
		{"past retention", now.Add(-DefaultMaxRetention - time.Second), DefaultMaxRetention, true},
		{"zero retention never expires", now.Add(-365 * 24 * time.Hour), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Entry{QueuedAt: tt.queuedAt}
			if got := e.IsExpired(tt.retention, now); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "uploads", "fetch:queue:uploads"},
		{"empty", "", "fetch:queue:default"},
		{"whitespace", "  ", "fetch:queue:default"},
		{"colons trimmed", ":uploads:", "fetch:queue:uploads"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.in); got != tt.want {
				t.Errorf("Key(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeEntry(t *testing.T) {
	if _, err := decodeEntry([]byte("not json")); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("decodeEntry(garbage) error = %v, want ErrInvalidEntry", err)
	}
	if _, err := decodeEntry([]byte(`{"id":"x"}`)); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("decodeEntry(no request) error = %v, want ErrInvalidEntry", err)
	}
	entry, err := decodeEntry([]byte(`{"id":"x","request":{"url":"/a","method":"GET"}}`))
	if err != nil {
		t.Fatalf("decodeEntry() error = %v", err)
	}
	if entry.Request.URL != "/a" {
		t.Errorf("URL = %q", entry.Request.URL)
	}
}

// Package accesslog keeps the bounded audit trail of vault activity.
package accesslog

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/dmitrijs2005/saveme/internal/models"
	"github.com/dmitrijs2005/saveme/internal/records"
	"github.com/dmitrijs2005/saveme/internal/timex"
	"github.com/google/uuid"
)

// DefaultCapacity is the number of entries retained; older ones are dropped.
const DefaultCapacity = 100

// DefaultDeviceInfo tags entries written by this binary.
func DefaultDeviceInfo() string {
	return fmt.Sprintf("saveme (%s/%s)", runtime.GOOS, runtime.GOARCH)
}

// Logger appends access events to the access_logs collection.
type Logger struct {
	repo     *records.Repo
	capacity int
	device   string
	now      func() time.Time
}

type Option func(*Logger)

// WithCapacity overrides DefaultCapacity. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.capacity = n
		}
	}
}

func WithDeviceInfo(s string) Option {
	return func(l *Logger) {
		if s != "" {
			l.device = s
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

func New(repo *records.Repo, opts ...Option) *Logger {
	l := &Logger{
		repo:     repo,
		capacity: DefaultCapacity,
		device:   DefaultDeviceInfo(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// EntryOption fills the optional entry fields.
type EntryOption func(*models.AccessLogEntry)

func ForUser(id string) EntryOption {
	return func(e *models.AccessLogEntry) { e.UserID = id }
}

func ForFile(id string) EntryOption {
	return func(e *models.AccessLogEntry) { e.FileID = id }
}

// Log appends one entry and trims the collection to capacity, oldest first.
// Callers treat a returned error as non-fatal.
func (l *Logger) Log(ctx context.Context, t models.AccessType, details string, opts ...EntryOption) error {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	entry := models.AccessLogEntry{
		ID:         id.String(),
		Type:       t,
		Timestamp:  timex.Millis(l.now()),
		Details:    details,
		DeviceInfo: l.device,
	}
	for _, o := range opts {
		o(&entry)
	}

	return records.UpdateList(ctx, l.repo, models.KeyAccessLogs, func(cur []models.AccessLogEntry) ([]models.AccessLogEntry, error) {
		cur = append(cur, entry)
		if over := len(cur) - l.capacity; over > 0 {
			cur = cur[over:]
		}
		return cur, nil
	})
}

// Entries returns the log in insertion order.
func (l *Logger) Entries(ctx context.Context) []models.AccessLogEntry {
	return records.ReadList[models.AccessLogEntry](ctx, l.repo, models.KeyAccessLogs)
}

// Recent returns up to n entries, newest first. n <= 0 means all.
func (l *Logger) Recent(ctx context.Context, n int) []models.AccessLogEntry {
	return newest(l.Entries(ctx), n)
}

// RecentFor is Recent restricted to the entries of userID.
func (l *Logger) RecentFor(ctx context.Context, userID string, n int) []models.AccessLogEntry {
	all := slices.DeleteFunc(l.Entries(ctx), func(e models.AccessLogEntry) bool {
		return e.UserID != userID
	})
	return newest(all, n)
}

func newest(all []models.AccessLogEntry, n int) []models.AccessLogEntry {
	slices.Reverse(all)
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

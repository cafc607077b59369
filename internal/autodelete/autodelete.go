// Package autodelete removes drive files once their scheduled deadline has
// passed. Deadlines live in the scheduled_deletes map (file id to epoch ms).
//
// There is no background timer in the client: Sweep runs on foreground
// events (start, unlock, an explicit sweep command). The daemon may also run
// it on a ticker, see Run.
package autodelete

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/saveme/internal/accesslog"
	"github.com/dmitrijs2005/saveme/internal/logging"
	"github.com/dmitrijs2005/saveme/internal/models"
	"github.com/dmitrijs2005/saveme/internal/records"
	"github.com/dmitrijs2005/saveme/internal/timex"
)

// DefaultDelay is applied when Schedule gets a non-positive duration.
const DefaultDelay = 24 * time.Hour

// PurgeFunc releases whatever backs the removed files (encrypted blobs).
type PurgeFunc func(ctx context.Context, files []models.SecureFile) error

// Result summarises one sweep.
type Result struct {
	DeletedFiles []string `json:"deletedFiles"`
	ReapedShares int      `json:"reapedShares"`
}

// Empty reports whether the sweep changed nothing.
func (r *Result) Empty() bool {
	return len(r.DeletedFiles) == 0 && r.ReapedShares == 0
}

type Scheduler struct {
	repo       *records.Repo
	audit      *accesslog.Logger
	logger     logging.Logger
	now        func() time.Time
	delay      time.Duration
	reapShares bool
	purge      PurgeFunc
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithDelay sets the delay used when Schedule is given zero.
func WithDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithReapExpiredShares toggles removal of expired share records during
// Sweep. On by default.
func WithReapExpiredShares(on bool) Option {
	return func(s *Scheduler) { s.reapShares = on }
}

func WithPurge(fn PurgeFunc) Option {
	return func(s *Scheduler) { s.purge = fn }
}

func New(repo *records.Repo, audit *accesslog.Logger, logger logging.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		repo:       repo,
		audit:      audit,
		logger:     logger,
		now:        time.Now,
		delay:      DefaultDelay,
		reapShares: true,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Schedule records that fileID is due at now+d, replacing any earlier
// deadline for the same file.
func (s *Scheduler) Schedule(ctx context.Context, fileID string, d time.Duration) error {
	if d <= 0 {
		d = s.delay
	}
	deadline := timex.Millis(s.now().Add(d))

	err := records.UpdateMap(ctx, s.repo, models.KeyScheduledDeletes, func(m map[string]int64) (map[string]int64, error) {
		m[fileID] = deadline
		return m, nil
	})
	if err != nil {
		return fmt.Errorf("schedule delete of %s: %w", fileID, err)
	}
	return nil
}

// Pending returns a copy of the schedule.
func (s *Scheduler) Pending(ctx context.Context) map[string]int64 {
	return records.ReadMap[int64](ctx, s.repo, models.KeyScheduledDeletes)
}

// Sweep deletes every file whose deadline is strictly before now and drops
// its schedule entry. Both collections (and shared_content when reaping) are
// written in a single SetMany, so a crash never leaves one updated without
// the other. Files that are not due are left untouched.
func (s *Scheduler) Sweep(ctx context.Context) (*Result, error) {
	now := s.now()
	nowMs := timex.Millis(now)

	keys := []string{models.KeyScheduledDeletes, models.KeySecureFiles}
	if s.reapShares {
		keys = append(keys, models.KeySharedContent)
	}

	unlock := s.repo.Lock(keys...)
	schedule, err := records.LoadMap[int64](ctx, s.repo, models.KeyScheduledDeletes)
	if err != nil {
		unlock()
		return nil, err
	}
	files, err := records.LoadList[models.SecureFile](ctx, s.repo, models.KeySecureFiles)
	if err != nil {
		unlock()
		return nil, err
	}

	var due []string
	for id, deadline := range schedule {
		if deadline < nowMs {
			due = append(due, id)
		}
	}
	slices.Sort(due)

	writes := make(map[string][]byte)
	var removed []models.SecureFile

	if len(due) > 0 {
		kept := files[:0:0]
		for _, f := range files {
			if slices.Contains(due, f.ID) {
				removed = append(removed, f)
				continue
			}
			kept = append(kept, f)
		}
		for _, id := range due {
			delete(schedule, id)
		}
		if writes[models.KeySecureFiles], err = records.Encode(kept); err != nil {
			unlock()
			return nil, err
		}
		if writes[models.KeyScheduledDeletes], err = records.Encode(schedule); err != nil {
			unlock()
			return nil, err
		}
	}

	reaped := 0
	if s.reapShares {
		shares, err := records.LoadList[models.SharedContent](ctx, s.repo, models.KeySharedContent)
		if err != nil {
			unlock()
			return nil, err
		}
		live := shares[:0:0]
		for _, sc := range shares {
			if sc.Expired(now) {
				reaped++
				continue
			}
			live = append(live, sc)
		}
		if reaped > 0 {
			if writes[models.KeySharedContent], err = records.Encode(live); err != nil {
				unlock()
				return nil, err
			}
		}
	}

	if len(writes) > 0 {
		if err := s.repo.Store().SetMany(ctx, writes); err != nil {
			unlock()
			return nil, fmt.Errorf("persist sweep: %w", err)
		}
	}
	unlock()

	// schedule entries whose file was already gone are dropped silently
	deleted := make([]string, 0, len(removed))
	for _, f := range removed {
		deleted = append(deleted, f.ID)
	}
	slices.Sort(deleted)

	res := &Result{DeletedFiles: deleted, ReapedShares: reaped}
	if res.Empty() {
		return res, nil
	}

	if s.purge != nil && len(removed) > 0 {
		if err := s.purge(ctx, removed); err != nil {
			s.logger.Warn(ctx, "purge blobs failed", "error", err)
		}
	}

	details := "Auto-deleted file after " + humanize(s.delay)
	for _, f := range removed {
		if err := s.audit.Log(ctx, models.AccessFileDelete, details,
			accesslog.ForUser(f.OwnerID), accesslog.ForFile(f.ID)); err != nil {
			s.logger.Warn(ctx, "access log write failed", "file_id", f.ID, "error", err)
		}
	}

	s.logger.Info(ctx, "sweep complete", "deleted", len(deleted), "dropped", len(due)-len(deleted), "reaped_shares", reaped)
	return res, nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error(ctx, "periodic sweep failed", "error", err)
			}
		}
	}
}

func humanize(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}

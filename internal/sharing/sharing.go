// Package sharing manages the lifecycle of share records: creation with an
// expiry and a view ceiling, guarded viewing, listing and removal.
//
// Records live in the shared_content collection. Every mutation is a whole
// collection read-modify-write under the collection lock, so concurrent
// shares and views never lose each other's updates.
package sharing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/dmitrijs2005/saveme/internal/accesslog"
	"github.com/dmitrijs2005/saveme/internal/logging"
	"github.com/dmitrijs2005/saveme/internal/models"
	"github.com/dmitrijs2005/saveme/internal/notify"
	"github.com/dmitrijs2005/saveme/internal/records"
	"github.com/dmitrijs2005/saveme/internal/sharecode"
	"github.com/dmitrijs2005/saveme/internal/timex"
)

const (
	DefaultTTL             = 24 * time.Hour
	DefaultMaxViews        = 1
	DefaultAutoDeleteAfter = 24 * time.Hour
)

var (
	ErrNoRecipients     = errors.New("no recipients")
	ErrReshareBlocked   = errors.New("received content cannot be re-shared")
	ErrNotFound         = errors.New("share record not found")
	ErrExpired          = errors.New("share expired")
	ErrViewLimitReached = errors.New("view limit reached")
	ErrUnknownRecipient = errors.New("unknown recipient")
)

// Scheduler queues a file for automatic deletion.
type Scheduler interface {
	Schedule(ctx context.Context, fileID string, d time.Duration) error
}

// ShareRequest describes one file shared with a set of recipients.
type ShareRequest struct {
	FileID     string
	FileURI    string
	FileType   models.MediaType
	FromUserID string
	Recipients []string
	// WrapKey seals the file key to one recipient. A nil WrapKey stores
	// records without key material.
	WrapKey func(ctx context.Context, recipient string) ([]byte, error)
}

// Grant is what the sender hands to each recipient out of band.
type Grant struct {
	RecipientID string `json:"recipientId"`
	ShareCode   string `json:"shareCode"`
	RecordID    string `json:"recordId"`
}

type Manager struct {
	repo     *records.Repo
	audit    *accesslog.Logger
	sched    Scheduler
	notifier notify.Notifier
	logger   logging.Logger

	now             func() time.Time
	ttl             time.Duration
	maxViews        int
	autoDeleteAfter time.Duration
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithTTL sets the share lifetime. Zero creates records that never expire.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) { m.ttl = d }
}

// WithMaxViews sets the view ceiling. Zero creates unlimited records.
func WithMaxViews(n int) Option {
	return func(m *Manager) { m.maxViews = n }
}

func WithAutoDeleteAfter(d time.Duration) Option {
	return func(m *Manager) { m.autoDeleteAfter = d }
}

func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

func New(repo *records.Repo, audit *accesslog.Logger, sched Scheduler, logger logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		repo:            repo,
		audit:           audit,
		sched:           sched,
		notifier:        notify.NewLogNotifier(logger),
		logger:          logger,
		now:             time.Now,
		ttl:             DefaultTTL,
		maxViews:        DefaultMaxViews,
		autoDeleteAfter: DefaultAutoDeleteAfter,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// CanView reports whether a record may still be opened at now.
func CanView(r models.SharedContent, now time.Time) bool {
	return !r.Expired(now) && !r.ViewLimitReached()
}

// RegisterView returns a copy of list with the view count of id incremented.
func RegisterView(list []models.SharedContent, id string) ([]models.SharedContent, error) {
	i := slices.IndexFunc(list, func(r models.SharedContent) bool { return r.ID == id })
	if i < 0 {
		return nil, ErrNotFound
	}
	out := slices.Clone(list)
	out[i].ViewCount++
	return out, nil
}

// RecordID builds the id of the record sent to recipient at sharedAt.
func RecordID(sharedAt int64, recipient string) string {
	return strconv.FormatInt(sharedAt, 10) + "_" + recipient
}

// CreateShares writes one record per distinct recipient in a single update.
// Files that were themselves received through a share are refused. After the
// records are stored the file is queued for auto-deletion and the share is
// logged; failures of those two steps are logged and do not fail the call.
func (m *Manager) CreateShares(ctx context.Context, req ShareRequest) ([]Grant, error) {
	recipients := dedupe(req.Recipients)
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	files, err := records.LoadList[models.SecureFile](ctx, m.repo, models.KeySecureFiles)
	if err != nil {
		return nil, err
	}
	if i := slices.IndexFunc(files, func(f models.SecureFile) bool { return f.ID == req.FileID }); i >= 0 && !files[i].Shareable() {
		m.auditLog(ctx, models.AccessFileShare, "Blocked attempt to share received content",
			accesslog.ForUser(req.FromUserID), accesslog.ForFile(req.FileID))
		return nil, ErrReshareBlocked
	}

	sharedAt := timex.Millis(m.now())
	var expiresAt int64
	if m.ttl > 0 {
		expiresAt = sharedAt + m.ttl.Milliseconds()
	}

	grants := make([]Grant, 0, len(recipients))
	batch := make([]models.SharedContent, 0, len(recipients))
	for _, to := range recipients {
		rec := models.SharedContent{
			ID:                RecordID(sharedAt, to),
			FileID:            req.FileID,
			FileURI:           req.FileURI,
			FileType:          req.FileType,
			FromUserID:        req.FromUserID,
			ToUserID:          to,
			SharedAt:          sharedAt,
			ExpiresAt:         expiresAt,
			MaxViews:          m.maxViews,
			ShareCode:         sharecode.ShareCode(),
			IsReceivedContent: true,
			OriginalOwnerID:   req.FromUserID,
		}
		if req.WrapKey != nil {
			if rec.WrappedKey, err = req.WrapKey(ctx, to); err != nil {
				return nil, fmt.Errorf("wrap key for %s: %w", to, err)
			}
		}
		batch = append(batch, rec)
		grants = append(grants, Grant{RecipientID: to, ShareCode: rec.ShareCode, RecordID: rec.ID})
	}

	err = records.UpdateList(ctx, m.repo, models.KeySharedContent, func(cur []models.SharedContent) ([]models.SharedContent, error) {
		return append(cur, batch...), nil
	})
	if err != nil {
		return nil, fmt.Errorf("store shares: %w", err)
	}

	if err := m.sched.Schedule(ctx, req.FileID, m.autoDeleteAfter); err != nil {
		m.logger.Warn(ctx, "schedule auto-delete failed", "file_id", req.FileID, "error", err)
	}
	m.auditLog(ctx, models.AccessFileShare,
		fmt.Sprintf("Shared %s with %d user(s)", req.FileType, len(recipients)),
		accesslog.ForUser(req.FromUserID), accesslog.ForFile(req.FileID))

	m.logger.Info(ctx, "shares created", "file_id", req.FileID, "recipients", len(recipients))
	return grants, nil
}

// View registers one view of recordID by userID, who must be its recipient.
func (m *Manager) View(ctx context.Context, userID, recordID string) (*models.SharedContent, error) {
	now := m.now()
	var viewed models.SharedContent

	err := records.UpdateList(ctx, m.repo, models.KeySharedContent, func(cur []models.SharedContent) ([]models.SharedContent, error) {
		i := slices.IndexFunc(cur, func(r models.SharedContent) bool {
			return r.ID == recordID && r.ToUserID == userID
		})
		if i < 0 {
			return nil, ErrNotFound
		}
		switch {
		case cur[i].Expired(now):
			return nil, ErrExpired
		case cur[i].ViewLimitReached():
			return nil, ErrViewLimitReached
		}
		next, err := RegisterView(cur, recordID)
		if err != nil {
			return nil, err
		}
		viewed = next[i]
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	m.auditLog(ctx, models.AccessFileView, fmt.Sprintf("Viewed shared %s", viewed.FileType),
		accesslog.ForUser(userID), accesslog.ForFile(viewed.FileID))

	ev := notify.ViewEvent{
		RecordID:   viewed.ID,
		FileID:     viewed.FileID,
		FromUserID: viewed.FromUserID,
		ViewerID:   userID,
		ViewCount:  viewed.ViewCount,
		MaxViews:   viewed.MaxViews,
		ViewedAt:   timex.Millis(now),
	}
	if err := m.notifier.FileViewed(ctx, ev); err != nil {
		m.logger.Warn(ctx, "view notification failed", "record_id", viewed.ID, "error", err)
	}

	return &viewed, nil
}

// ListForRecipient returns the records addressed to userID.
func (m *Manager) ListForRecipient(ctx context.Context, userID string) []models.SharedContent {
	return m.filter(ctx, func(r models.SharedContent) bool { return r.ToUserID == userID })
}

// ListSent returns the records userID sent.
func (m *Manager) ListSent(ctx context.Context, userID string) []models.SharedContent {
	return m.filter(ctx, func(r models.SharedContent) bool { return r.FromUserID == userID })
}

// Get returns the record if userID is its sender or recipient.
func (m *Manager) Get(ctx context.Context, userID, recordID string) (*models.SharedContent, error) {
	for _, r := range records.ReadList[models.SharedContent](ctx, m.repo, models.KeySharedContent) {
		if r.ID == recordID && (r.ToUserID == userID || r.FromUserID == userID) {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

// Delete removes a record received by userID.
func (m *Manager) Delete(ctx context.Context, userID, recordID string) error {
	return records.UpdateList(ctx, m.repo, models.KeySharedContent, func(cur []models.SharedContent) ([]models.SharedContent, error) {
		i := slices.IndexFunc(cur, func(r models.SharedContent) bool {
			return r.ID == recordID && r.ToUserID == userID
		})
		if i < 0 {
			return nil, ErrNotFound
		}
		return slices.Delete(cur, i, i+1), nil
	})
}

// ReapExpired drops every expired record and returns how many went.
func (m *Manager) ReapExpired(ctx context.Context) (int, error) {
	now := m.now()
	n := 0
	err := records.UpdateList(ctx, m.repo, models.KeySharedContent, func(cur []models.SharedContent) ([]models.SharedContent, error) {
		live := slices.DeleteFunc(cur, func(r models.SharedContent) bool { return r.Expired(now) })
		n = len(cur) - len(live)
		return live, nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (m *Manager) filter(ctx context.Context, keep func(models.SharedContent) bool) []models.SharedContent {
	all := records.ReadList[models.SharedContent](ctx, m.repo, models.KeySharedContent)
	out := make([]models.SharedContent, 0, len(all))
	for _, r := range all {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (m *Manager) auditLog(ctx context.Context, t models.AccessType, details string, opts ...accesslog.EntryOption) {
	if err := m.audit.Log(ctx, t, details, opts...); err != nil {
		m.logger.Warn(ctx, "access log write failed", "type", t, "error", err)
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

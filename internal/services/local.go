package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/saveme/internal/accesslog"
	"github.com/dmitrijs2005/saveme/internal/autodelete"
	"github.com/dmitrijs2005/saveme/internal/common"
	"github.com/dmitrijs2005/saveme/internal/cryptox"
	"github.com/dmitrijs2005/saveme/internal/drive"
	"github.com/dmitrijs2005/saveme/internal/export"
	"github.com/dmitrijs2005/saveme/internal/logging"
	"github.com/dmitrijs2005/saveme/internal/models"
	"github.com/dmitrijs2005/saveme/internal/notify"
	"github.com/dmitrijs2005/saveme/internal/records"
	"github.com/dmitrijs2005/saveme/internal/session"
	"github.com/dmitrijs2005/saveme/internal/sharing"
	"github.com/dmitrijs2005/saveme/internal/store"
)

// LocalVault composes the vault modules over one store.
type LocalVault struct {
	store    store.Store
	repo     *records.Repo
	audit    *accesslog.Logger
	session  *session.Manager
	drive    *drive.Drive
	sched    *autodelete.Scheduler
	shares   *sharing.Manager
	exporter *export.Exporter
	uploader *export.Uploader
	logger   logging.Logger

	userScope bool
}

type options struct {
	now      func() time.Time
	notifier notify.Notifier
	uploader *export.Uploader
	scope    bool
}

type Option func(*options)

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

func WithUploader(u *export.Uploader) Option {
	return func(o *options) { o.uploader = u }
}

// WithUserScope limits AccessLog and Export to the calling user's records.
// A vault serving several users over the network needs it; the local CLI
// shows the whole device.
func WithUserScope(on bool) Option {
	return func(o *options) { o.scope = on }
}

// NewLocalVault wires the modules. The vault takes ownership of st.
func NewLocalVault(st store.Store, blobDir string, p Policy, logger logging.Logger, opts ...Option) (*LocalVault, error) {
	o := options{now: time.Now, notifier: notify.NewLogNotifier(logger)}
	for _, fn := range opts {
		fn(&o)
	}

	repo := records.New(st, logger)
	audit := accesslog.New(repo,
		accesslog.WithCapacity(p.LogCapacity),
		accesslog.WithDeviceInfo(p.DeviceInfo),
		accesslog.WithClock(o.now),
	)

	sess := session.New(st, audit, logger.With("component", "session"),
		session.WithClock(o.now),
		session.WithTimeout(p.SessionTimeout.Duration),
	)

	dr, err := drive.New(repo, sess, audit, logger.With("component", "drive"), blobDir)
	if err != nil {
		return nil, err
	}

	sched := autodelete.New(repo, audit, logger.With("component", "autodelete"),
		autodelete.WithClock(o.now),
		autodelete.WithDelay(p.autoDelete()),
		autodelete.WithReapExpiredShares(p.ReapExpiredShares),
		autodelete.WithPurge(dr.RemoveBlobs),
	)

	shares := sharing.New(repo, audit, sched, logger.With("component", "sharing"),
		sharing.WithClock(o.now),
		sharing.WithTTL(p.ShareTTL.Duration),
		sharing.WithMaxViews(p.MaxViews),
		sharing.WithAutoDeleteAfter(p.autoDelete()),
		sharing.WithNotifier(o.notifier),
	)

	return &LocalVault{
		store:    st,
		repo:     repo,
		audit:    audit,
		session:  sess,
		drive:    dr,
		sched:    sched,
		shares:   shares,
		exporter: export.New(repo).WithClock(o.now),
		uploader: o.uploader,
		logger:   logger,

		userScope: o.scope,
	}, nil
}

func (v *LocalVault) Setup(ctx context.Context, userID, passcode string) error {
	return v.session.Setup(ctx, userID, passcode)
}

func (v *LocalVault) Unlock(ctx context.Context, userID, passcode string) error {
	if err := v.session.Unlock(ctx, userID, passcode); err != nil {
		return err
	}
	if _, err := v.sched.Sweep(ctx); err != nil {
		v.logger.Warn(ctx, "sweep on unlock failed", "error", err)
	}
	return nil
}

func (v *LocalVault) Lock(ctx context.Context, userID string) error {
	return v.session.Clear(ctx, userID)
}

// SessionExpired also reports a session whose key pair is not loaded in
// this process, as after a daemon restart.
func (v *LocalVault) SessionExpired(ctx context.Context, userID string) (bool, error) {
	if !v.session.Unlocked(userID) || v.session.Expired(ctx, userID) {
		return true, nil
	}
	return false, v.session.Touch(ctx, userID)
}

func (v *LocalVault) AddFile(ctx context.Context, nf drive.NewFile) (*models.SecureFile, error) {
	return v.drive.Add(ctx, nf)
}

func (v *LocalVault) ListFiles(ctx context.Context, userID string) ([]models.SecureFile, error) {
	return v.drive.List(ctx, userID), nil
}

func (v *LocalVault) DeleteFile(ctx context.Context, userID, fileID string) error {
	return v.drive.Delete(ctx, userID, fileID)
}

func (v *LocalVault) RevealFile(ctx context.Context, userID, fileID, dst string) error {
	return v.drive.Reveal(ctx, userID, fileID, dst)
}

// Share shares a file owned by userID. Every recipient must be registered:
// each record carries the file key sealed to its recipient.
func (v *LocalVault) Share(ctx context.Context, userID, fileID string, recipients []string) ([]sharing.Grant, error) {
	f, err := v.drive.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.OwnerID != "" && f.OwnerID != userID {
		return nil, drive.ErrNotFound
	}

	var fileKey []byte
	defer func() { common.WipeByteArray(fileKey) }()

	return v.shares.CreateShares(ctx, sharing.ShareRequest{
		FileID:     f.ID,
		FileURI:    f.URI,
		FileType:   f.Type,
		FromUserID: userID,
		Recipients: recipients,
		WrapKey: func(ctx context.Context, to string) ([]byte, error) {
			if fileKey == nil {
				k, err := v.drive.FileKey(ctx, userID, f.ID)
				if err != nil {
					return nil, err
				}
				fileKey = k
			}
			pub, err := v.session.PublicKey(ctx, to)
			if errors.Is(err, session.ErrNotRegistered) {
				return nil, fmt.Errorf("%w: %s", sharing.ErrUnknownRecipient, to)
			}
			if err != nil {
				return nil, err
			}
			return cryptox.WrapKey(fileKey, pub)
		},
	})
}

func (v *LocalVault) Inbox(ctx context.Context, userID string) ([]models.SharedContent, error) {
	return v.shares.ListForRecipient(ctx, userID), nil
}

func (v *LocalVault) Sent(ctx context.Context, userID string) ([]models.SharedContent, error) {
	return v.shares.ListSent(ctx, userID), nil
}

// View opens a received share. The view is only counted when the shared
// file still exists; with a non-empty dst the decrypted media is written
// there.
func (v *LocalVault) View(ctx context.Context, userID, recordID, dst string) (*models.SharedContent, error) {
	rec, err := v.shares.Get(ctx, userID, recordID)
	if err != nil {
		return nil, err
	}
	if rec.ToUserID != userID {
		return nil, sharing.ErrNotFound
	}
	if _, err := v.drive.Get(ctx, rec.FileID); err != nil {
		return nil, fmt.Errorf("shared file gone: %w", err)
	}
	if dst != "" && !v.session.Unlocked(userID) {
		return nil, session.ErrLocked
	}

	viewed, err := v.shares.View(ctx, userID, recordID)
	if err != nil {
		return nil, err
	}

	if dst != "" {
		if err := v.drive.OpenShared(ctx, viewed.FileID, userID, viewed.WrappedKey, dst); err != nil {
			return nil, err
		}
	}
	return viewed, nil
}

func (v *LocalVault) DeleteShare(ctx context.Context, userID, recordID string) error {
	return v.shares.Delete(ctx, userID, recordID)
}

func (v *LocalVault) AccessLog(ctx context.Context, userID string, limit int) ([]models.AccessLogEntry, error) {
	if v.userScope {
		return v.audit.RecentFor(ctx, userID, limit), nil
	}
	return v.audit.Recent(ctx, limit), nil
}

func (v *LocalVault) Sweep(ctx context.Context) (*autodelete.Result, error) {
	return v.sched.Sweep(ctx)
}

func (v *LocalVault) Wipe(ctx context.Context) error {
	return v.drive.Wipe(ctx)
}

func (v *LocalVault) Export(ctx context.Context, userID, passphrase string, upload bool) (*ExportResult, error) {
	if upload && v.uploader == nil {
		return nil, ErrUploadDisabled
	}

	snap := v.exporter.Snapshot(ctx)
	if v.userScope {
		snap = snap.ForUser(userID)
	}
	data, err := export.Encode(snap, passphrase)
	if err != nil {
		return nil, err
	}

	res := &ExportResult{Data: data, ContentType: export.ContentTypeJSON}
	if passphrase != "" {
		res.ContentType = export.ContentTypeEncrypted
	}

	if upload {
		key, err := v.uploader.Upload(ctx, userID, data, res.ContentType)
		if err != nil {
			return nil, fmt.Errorf("upload export: %w", err)
		}
		res.ObjectKey = key
		v.logger.Info(ctx, "export uploaded", "user_id", userID, "key", key)
	}
	return res, nil
}

// RunSweeper sweeps every interval until ctx ends. Zero disables it.
func (v *LocalVault) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	v.sched.Run(ctx, interval)
}

func (v *LocalVault) Close() error {
	return v.store.Close()
}

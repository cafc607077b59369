// Package drive is the secure drive: it owns the secure_files collection and
// the encrypted blobs the records point at.
//
// Media bytes are sealed with a fresh AES-256-GCM key per file. The record
// keeps that key only wrapped to the owner's public key, so reading a blob
// needs the owner's unlocked key pair. List and Get return copies stripped
// of key material.
package drive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/saveme/internal/accesslog"
	"github.com/dmitrijs2005/saveme/internal/common"
	"github.com/dmitrijs2005/saveme/internal/cryptox"
	"github.com/dmitrijs2005/saveme/internal/filex"
	"github.com/dmitrijs2005/saveme/internal/logging"
	"github.com/dmitrijs2005/saveme/internal/models"
	"github.com/dmitrijs2005/saveme/internal/records"
	"github.com/dmitrijs2005/saveme/internal/timex"
	"github.com/google/uuid"
)

const blobExt = ".enc"

var (
	ErrNotFound        = errors.New("file not found")
	ErrUnsupportedType = errors.New("unsupported media type")
)

// Keyring resolves user key pairs. Private keys are only available for
// unlocked users.
type Keyring interface {
	PublicKey(ctx context.Context, userID string) (*[32]byte, error)
	KeyPair(userID string) (publicKey, privateKey *[32]byte, err error)
}

// NewFile describes media entering the drive.
type NewFile struct {
	OwnerID    string
	SourcePath string
	// Type is inferred from the SourcePath extension when empty.
	Type       models.MediaType
	Width      int
	Height     int
	DurationMs int64

	Received        bool
	OriginalOwnerID string
}

type Drive struct {
	repo    *records.Repo
	keys    Keyring
	audit   *accesslog.Logger
	logger  logging.Logger
	blobDir string
	now     func() time.Time
}

// New returns a drive storing blobs under blobDir, creating it if needed.
func New(repo *records.Repo, keys Keyring, audit *accesslog.Logger, logger logging.Logger, blobDir string) (*Drive, error) {
	dir, err := filex.EnsureDir(blobDir)
	if err != nil {
		return nil, err
	}
	return &Drive{repo: repo, keys: keys, audit: audit, logger: logger, blobDir: dir, now: time.Now}, nil
}

// BlobDir is the absolute blob directory.
func (d *Drive) BlobDir() string { return d.blobDir }

// Add encrypts the source media into the blob directory and records it.
func (d *Drive) Add(ctx context.Context, nf NewFile) (*models.SecureFile, error) {
	if nf.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner is required", common.ErrorValidation)
	}
	if !nf.Received && nf.OriginalOwnerID != "" && nf.OriginalOwnerID != nf.OwnerID {
		return nil, fmt.Errorf("%w: only received content names another original owner", common.ErrorValidation)
	}
	ownerKey, err := d.keys.PublicKey(ctx, nf.OwnerID)
	if err != nil {
		return nil, err
	}

	typ := nf.Type
	if typ == "" {
		t, ok := models.MediaTypeFromPath(nf.SourcePath)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(nf.SourcePath))
		}
		typ = t
	}

	ef, err := cryptox.EncryptFile(nf.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("encrypt %s: %w", nf.SourcePath, err)
	}
	wrapped, err := cryptox.WrapKey(ef.Key, ownerKey)
	common.WipeByteArray(ef.Key)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("file id: %w", err)
	}

	blob := filepath.Join(d.blobDir, id.String()+blobExt)
	if err := filex.WriteFileAtomic(blob, ef.Cyphertext); err != nil {
		return nil, err
	}

	rec := models.SecureFile{
		ID:                id.String(),
		URI:               blob,
		Type:              typ,
		Timestamp:         timex.Millis(d.now()),
		Encrypted:         true,
		IsReceivedContent: nf.Received,
		OwnerID:           nf.OwnerID,
		OriginalOwnerID:   nf.OriginalOwnerID,
		Width:             nf.Width,
		Height:            nf.Height,
		DurationMs:        nf.DurationMs,
		WrappedKey:        wrapped,
		Nonce:             ef.Nonce,
	}

	err = records.UpdateList(ctx, d.repo, models.KeySecureFiles, func(cur []models.SecureFile) ([]models.SecureFile, error) {
		return append(cur, rec), nil
	})
	if err != nil {
		_ = filex.RemoveIfExists(blob)
		return nil, fmt.Errorf("store file record: %w", err)
	}

	d.logger.Info(ctx, "file added", "file_id", rec.ID, "type", rec.Type, "received", rec.IsReceivedContent)
	pub := rec.Public()
	return &pub, nil
}

// List returns the files of ownerID, oldest first. An empty ownerID lists
// everything.
func (d *Drive) List(ctx context.Context, ownerID string) []models.SecureFile {
	all := records.ReadList[models.SecureFile](ctx, d.repo, models.KeySecureFiles)
	out := make([]models.SecureFile, 0, len(all))
	for _, f := range all {
		if ownerID == "" || f.OwnerID == ownerID {
			out = append(out, f.Public())
		}
	}
	return out
}

// Get returns the file record without key material.
func (d *Drive) Get(ctx context.Context, id string) (*models.SecureFile, error) {
	f, err := d.get(ctx, id)
	if err != nil {
		return nil, err
	}
	pub := f.Public()
	return &pub, nil
}

func (d *Drive) get(ctx context.Context, id string) (*models.SecureFile, error) {
	for _, f := range records.ReadList[models.SecureFile](ctx, d.repo, models.KeySecureFiles) {
		if f.ID == id {
			return &f, nil
		}
	}
	return nil, ErrNotFound
}

// Delete removes a file owned by ownerID together with its blob and any
// pending auto-delete entry.
func (d *Drive) Delete(ctx context.Context, ownerID, id string) error {
	var removed models.SecureFile
	err := records.UpdateList(ctx, d.repo, models.KeySecureFiles, func(cur []models.SecureFile) ([]models.SecureFile, error) {
		i := slices.IndexFunc(cur, func(f models.SecureFile) bool {
			return f.ID == id && owns(f, ownerID)
		})
		if i < 0 {
			return nil, ErrNotFound
		}
		removed = cur[i]
		return slices.Delete(cur, i, i+1), nil
	})
	if err != nil {
		return err
	}

	err = records.UpdateMap(ctx, d.repo, models.KeyScheduledDeletes, func(m map[string]int64) (map[string]int64, error) {
		delete(m, id)
		return m, nil
	})
	if err != nil {
		d.logger.Warn(ctx, "drop schedule entry failed", "file_id", id, "error", err)
	}

	if err := d.RemoveBlobs(ctx, []models.SecureFile{removed}); err != nil {
		d.logger.Warn(ctx, "remove blob failed", "file_id", id, "error", err)
	}

	if err := d.audit.Log(ctx, models.AccessFileDelete, fmt.Sprintf("Deleted %s", removed.Type),
		accesslog.ForUser(ownerID), accesslog.ForFile(id)); err != nil {
		d.logger.Warn(ctx, "access log write failed", "error", err)
	}
	return nil
}

// Reveal decrypts a file owned by ownerID into dst.
func (d *Drive) Reveal(ctx context.Context, ownerID, id, dst string) error {
	f, err := d.get(ctx, id)
	if err != nil {
		return err
	}
	if !owns(*f, ownerID) {
		return ErrNotFound
	}

	key, err := d.unwrap(ownerID, f.WrappedKey)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(key)
	if err := d.writePlain(*f, key, dst); err != nil {
		return err
	}

	if err := d.audit.Log(ctx, models.AccessFileView, fmt.Sprintf("Viewed %s", f.Type),
		accesslog.ForUser(ownerID), accesslog.ForFile(id)); err != nil {
		d.logger.Warn(ctx, "access log write failed", "error", err)
	}
	return nil
}

// FileKey returns the plain key of a file owned by ownerID. Callers wipe
// it when done.
func (d *Drive) FileKey(ctx context.Context, ownerID, id string) ([]byte, error) {
	f, err := d.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !owns(*f, ownerID) {
		return nil, ErrNotFound
	}
	return d.unwrap(ownerID, f.WrappedKey)
}

// OpenShared decrypts file id into dst for userID using a key wrapped to
// that user, as carried by a share record.
func (d *Drive) OpenShared(ctx context.Context, id, userID string, wrapped []byte, dst string) error {
	f, err := d.get(ctx, id)
	if err != nil {
		return err
	}
	key, err := d.unwrap(userID, wrapped)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(key)
	return d.writePlain(*f, key, dst)
}

func (d *Drive) unwrap(userID string, wrapped []byte) ([]byte, error) {
	pub, priv, err := d.keys.KeyPair(userID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(priv[:])
	return cryptox.UnwrapKey(wrapped, pub, priv)
}

func (d *Drive) writePlain(f models.SecureFile, key []byte, dst string) error {
	data, err := os.ReadFile(f.URI)
	if err != nil {
		return fmt.Errorf("read blob: %w", err)
	}
	if f.Encrypted {
		data, err = cryptox.Open(data, f.Nonce, key)
		if err != nil {
			return err
		}
	}
	defer common.WipeByteArray(data)
	return filex.WriteFileAtomic(dst, data)
}

// RemoveBlobs deletes the blobs of files stored inside the blob directory.
// URIs pointing elsewhere are left alone.
func (d *Drive) RemoveBlobs(_ context.Context, files []models.SecureFile) error {
	var errs []error
	for _, f := range files {
		if !d.inBlobDir(f.URI) {
			continue
		}
		if err := filex.RemoveIfExists(f.URI); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wipe empties all four collections in a single write and removes every
// blob.
func (d *Drive) Wipe(ctx context.Context) error {
	keys := []string{models.KeySecureFiles, models.KeySharedContent, models.KeyScheduledDeletes, models.KeyAccessLogs}
	unlock := d.repo.Lock(keys...)
	defer unlock()

	empty := map[string][]byte{
		models.KeySecureFiles:      []byte("[]"),
		models.KeySharedContent:    []byte("[]"),
		models.KeyScheduledDeletes: []byte("{}"),
		models.KeyAccessLogs:       []byte("[]"),
	}
	if err := d.repo.Store().SetMany(ctx, empty); err != nil {
		return fmt.Errorf("wipe collections: %w", err)
	}

	entries, err := os.ReadDir(d.blobDir)
	if err != nil {
		return fmt.Errorf("read blob dir: %w", err)
	}
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), blobExt) {
			continue
		}
		if err := filex.RemoveIfExists(filepath.Join(d.blobDir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}

	d.logger.Warn(ctx, "vault wiped", "blobs", len(entries))
	return errors.Join(errs...)
}

func (d *Drive) inBlobDir(uri string) bool {
	rel, err := filepath.Rel(d.blobDir, uri)
	return err == nil && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}

// owns treats records without an owner as belonging to everyone on the
// device; older clients did not record one.
func owns(f models.SecureFile, ownerID string) bool {
	return f.OwnerID == "" || f.OwnerID == ownerID
}

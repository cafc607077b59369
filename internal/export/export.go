// Package export produces a portable copy of the vault collections,
// optionally sealed with a passphrase, and can ship it to object storage.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/saveme/internal/common"
	"github.com/dmitrijs2005/saveme/internal/cryptox"
	"github.com/dmitrijs2005/saveme/internal/models"
	"github.com/dmitrijs2005/saveme/internal/records"
	"github.com/dmitrijs2005/saveme/internal/timex"
)

const (
	FormatVersion        = 1
	Algorithm            = "argon2id+AES-256-GCM"
	MinPassphraseLength  = 8
	ContentTypeJSON      = "application/json"
	ContentTypeEncrypted = "application/octet-stream"
)

var (
	ErrWeakPassphrase     = fmt.Errorf("passphrase must be at least %d characters", MinPassphraseLength)
	ErrPassphraseRequired = errors.New("export is encrypted, passphrase required")
	ErrBadPassphrase      = errors.New("wrong passphrase or corrupted export")
)

// Snapshot is the exported document. File records carry no key material,
// so an export never exposes media.
type Snapshot struct {
	Version          int                     `json:"version"`
	ExportedAt       int64                   `json:"exportedAt"`
	SecureFiles      []models.SecureFile     `json:"secureFiles"`
	SharedContent    []models.SharedContent  `json:"sharedContent"`
	ScheduledDeletes map[string]int64        `json:"scheduledDeletes"`
	AccessLogs       []models.AccessLogEntry `json:"accessLogs"`
}

// Envelope wraps a sealed snapshot.
type Envelope struct {
	Version    int    `json:"version"`
	Algorithm  string `json:"algorithm"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

type Exporter struct {
	repo *records.Repo
	now  func() time.Time
}

func New(repo *records.Repo) *Exporter {
	return &Exporter{repo: repo, now: time.Now}
}

// WithClock replaces the time source.
func (e *Exporter) WithClock(now func() time.Time) *Exporter {
	e.now = now
	return e
}

// Snapshot reads all four collections. Unreadable collections export empty.
func (e *Exporter) Snapshot(ctx context.Context) *Snapshot {
	files := records.ReadList[models.SecureFile](ctx, e.repo, models.KeySecureFiles)
	for i := range files {
		files[i] = files[i].Public()
	}
	shares := records.ReadList[models.SharedContent](ctx, e.repo, models.KeySharedContent)
	for i := range shares {
		shares[i].WrappedKey = nil
	}
	return &Snapshot{
		Version:          FormatVersion,
		ExportedAt:       timex.Millis(e.now()),
		SecureFiles:      files,
		SharedContent:    shares,
		ScheduledDeletes: records.ReadMap[int64](ctx, e.repo, models.KeyScheduledDeletes),
		AccessLogs:       records.ReadList[models.AccessLogEntry](ctx, e.repo, models.KeyAccessLogs),
	}
}

// ForUser returns the part of s that concerns userID: files it owns,
// shares it sent or received, schedule entries of its files and its own
// log entries.
func (s *Snapshot) ForUser(userID string) *Snapshot {
	out := &Snapshot{
		Version:          s.Version,
		ExportedAt:       s.ExportedAt,
		SecureFiles:      []models.SecureFile{},
		SharedContent:    []models.SharedContent{},
		ScheduledDeletes: map[string]int64{},
		AccessLogs:       []models.AccessLogEntry{},
	}
	for _, f := range s.SecureFiles {
		if f.OwnerID == userID {
			out.SecureFiles = append(out.SecureFiles, f)
			if at, ok := s.ScheduledDeletes[f.ID]; ok {
				out.ScheduledDeletes[f.ID] = at
			}
		}
	}
	for _, r := range s.SharedContent {
		if r.FromUserID == userID || r.ToUserID == userID {
			out.SharedContent = append(out.SharedContent, r)
		}
	}
	for _, e := range s.AccessLogs {
		if e.UserID == userID {
			out.AccessLogs = append(out.AccessLogs, e)
		}
	}
	return out
}

// Write encodes a fresh snapshot to w. A non-empty passphrase seals it.
func (e *Exporter) Write(ctx context.Context, w io.Writer, passphrase string) error {
	data, err := Encode(e.Snapshot(ctx), passphrase)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Encode marshals snap, sealing it when passphrase is set.
func Encode(snap *Snapshot, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return json.MarshalIndent(snap, "", "  ")
	}
	if len(passphrase) < MinPassphraseLength {
		return nil, ErrWeakPassphrase
	}

	salt := common.GenerateRandByteArray(cryptox.SaltSize)
	key := cryptox.DeriveMasterKey([]byte(passphrase), salt)
	defer common.WipeByteArray(key)

	ct, nonce, err := cryptox.EncryptEntry(snap, key)
	if err != nil {
		return nil, fmt.Errorf("seal export: %w", err)
	}
	return json.Marshal(Envelope{
		Version:    FormatVersion,
		Algorithm:  Algorithm,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: ct,
	})
}

// Open decodes an export produced by Write.
func Open(r io.Reader, passphrase string) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err == nil && env.Ciphertext != nil {
		if passphrase == "" {
			return nil, ErrPassphraseRequired
		}
		key := cryptox.DeriveMasterKey([]byte(passphrase), env.Salt)
		defer common.WipeByteArray(key)

		var snap Snapshot
		if err := cryptox.DecryptEntry(env.Ciphertext, env.Nonce, key, &snap); err != nil {
			return nil, ErrBadPassphrase
		}
		return &snap, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}
	return &snap, nil
}

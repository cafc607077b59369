package drive

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/saveme/internal/accesslog"
	"github.com/dmitrijs2005/saveme/internal/common"
	"github.com/dmitrijs2005/saveme/internal/cryptox"
	"github.com/dmitrijs2005/saveme/internal/logging"
	"github.com/dmitrijs2005/saveme/internal/models"
	"github.com/dmitrijs2005/saveme/internal/records"
	"github.com/dmitrijs2005/saveme/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keyring hands out a fresh key pair per user on first use. Users listed
// in locked have a public key but no private one.
type keyring struct {
	pairs  map[string][2]*[32]byte
	locked map[string]bool
}

func newKeyring() *keyring {
	return &keyring{pairs: map[string][2]*[32]byte{}, locked: map[string]bool{}}
}

func (k *keyring) pair(userID string) [2]*[32]byte {
	p, ok := k.pairs[userID]
	if !ok {
		pub, priv, err := cryptox.GenerateKeyPair()
		if err != nil {
			panic(err)
		}
		p = [2]*[32]byte{pub, priv}
		k.pairs[userID] = p
	}
	return p
}

func (k *keyring) PublicKey(_ context.Context, userID string) (*[32]byte, error) {
	return k.pair(userID)[0], nil
}

func (k *keyring) KeyPair(userID string) (*[32]byte, *[32]byte, error) {
	if k.locked[userID] {
		return nil, nil, common.ErrorUnauthorized
	}
	p := k.pair(userID)
	pub, priv := *p[0], *p[1]
	return &pub, &priv, nil
}

type fixture struct {
	repo  *records.Repo
	keys  *keyring
	audit *accesslog.Logger
	drive *Drive
	src   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{keys: newKeyring()}
	f.repo = records.New(store.NewMemoryStore(), logging.Nop())
	f.audit = accesslog.New(f.repo)

	d, err := New(f.repo, f.keys, f.audit, logging.Nop(), filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	f.drive = d

	f.src = filepath.Join(t.TempDir(), "beach.jpg")
	require.NoError(t, os.WriteFile(f.src, []byte("jpeg bytes"), 0o600))
	return f
}

func TestAdd_EncryptsAndRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sf, err := f.drive.Add(ctx, NewFile{OwnerID: "u1", SourcePath: f.src, Width: 640, Height: 480})
	require.NoError(t, err)

	assert.Equal(t, models.MediaImage, sf.Type)
	assert.True(t, sf.Encrypted)
	assert.False(t, sf.IsReceivedContent)
	assert.Nil(t, sf.WrappedKey)
	assert.NotZero(t, sf.Timestamp)
	assert.Equal(t, 640, sf.Width)

	blob, err := os.ReadFile(sf.URI)
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "jpeg bytes")

	stored := records.ReadList[models.SecureFile](ctx, f.repo, models.KeySecureFiles)
	require.Len(t, stored, 1)
	assert.NotEmpty(t, stored[0].WrappedKey)

	_, err = f.drive.Add(ctx, NewFile{SourcePath: f.src})
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestAdd_OriginalOwnerOnlyForReceived(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.drive.Add(ctx, NewFile{OwnerID: "u1", SourcePath: f.src, OriginalOwnerID: "u9"})
	require.ErrorIs(t, err, common.ErrorValidation)
	assert.Empty(t, f.drive.List(ctx, ""))

	sf, err := f.drive.Add(ctx, NewFile{OwnerID: "u1", SourcePath: f.src, OriginalOwnerID: "u1"})
	require.NoError(t, err)
	assert.False(t, sf.IsReceivedContent)

	sf, err = f.drive.Add(ctx, NewFile{OwnerID: "u1", SourcePath: f.src, Received: true, OriginalOwnerID: "u9"})
	require.NoError(t, err)
	assert.Equal(t, "u9", sf.OriginalOwnerID)
}

func TestAdd_StoredRecordCannotOpenBlob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sf, err := f.drive.Add(ctx, NewFile{OwnerID: "u1", SourcePath: f.src})
	require.NoError(t, err)

	raw, err := f.repo.Store().Get(ctx, models.KeySecureFiles)
	require.NoError(t, err)
	var docs []map[string]any
	require.NoError(t, json.Unmarshal(raw, &docs))
	require.Len(t, docs, 1)
	assert.NotContains(t, docs[0], "key")

	var stored []models.SecureFile
	require.NoError(t, json.Unmarshal(raw, &stored))
	blob, err := os.ReadFile(sf.URI)
	require.NoError(t, err)

	// neither the wrapped key nor another user's pair opens the blob
	_, err = cryptox.Open(blob, stored[0].Nonce, stored[0].WrappedKey)
	require.Error(t, err)
	pub, priv, err := f.keys.KeyPair("u2")
	require.NoError(t, err)
	_, err = cryptox.UnwrapKey(stored[0].WrappedKey, pub, priv)
	require.ErrorIs(t, err, cryptox.ErrDecrypt)

	pub, priv, err = f.keys.KeyPair("u1")
	require.NoError(t, err)
	key, err := cryptox.UnwrapKey(stored[0].WrappedKey, pub, priv)
	require.NoError(t, err)
	plain, err := cryptox.Open(blob, stored[0].Nonce, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), plain)
}

func TestAdd_UnknownExtension(t *testing.T) {
	f := newFixture(t)
	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))

	_, err := f.drive.Add(context.Background(), NewFile{OwnerID: "u1", SourcePath: src})
	require.ErrorIs(t, err, ErrUnsupportedType)

	_, err = f.drive.Add(context.Background(), NewFile{OwnerID: "u1", SourcePath: src, Type: models.MediaVideo})
	require.NoError(t, err)
}

func TestRevealAndOpenShared(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sf, err := f.drive.Add(ctx, NewFile{OwnerID: "u1", SourcePath: f.src})
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "out.jpg")
	require.NoError(t, f.drive.Reveal(ctx, "u1", sf.ID, dst))
	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), b)

	require.ErrorIs(t, f.drive.Reveal(ctx, "u2", sf.ID, dst), ErrNotFound)

	key, err := f.drive.FileKey(ctx, "u1", sf.ID)
	require.NoError(t, err)
	_, err = f.drive.FileKey(ctx, "u2", sf.ID)
	require.ErrorIs(t, err, ErrNotFound)

	bobKey, err := f.keys.PublicKey(ctx, "u2")
	require.NoError(t, err)
	wrapped, err := cryptox.WrapKey(key, bobKey)
	require.NoError(t, err)

	dst2 := filepath.Join(t.TempDir(), "shared.jpg")
	require.ErrorIs(t, f.drive.OpenShared(ctx, sf.ID, "u3", wrapped, dst2), cryptox.ErrDecrypt)
	require.NoError(t, f.drive.OpenShared(ctx, sf.ID, "u2", wrapped, dst2))
	b, err = os.ReadFile(dst2)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), b)

	f.keys.locked["u1"] = true
	require.ErrorIs(t, f.drive.Reveal(ctx, "u1", sf.ID, dst), common.ErrorUnauthorized)

	entries := f.audit.Entries(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AccessFileView, entries[0].Type)
	assert.Equal(t, "Viewed image", entries[0].Details)
}

func TestListAndGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, err := f.drive.Add(ctx, NewFile{OwnerID: "u1", SourcePath: f.src})
	require.NoError(t, err)
	_, err = f.drive.Add(ctx, NewFile{OwnerID: "u2", SourcePath: f.src, Received: true, OriginalOwnerID: "u1"})
	require.NoError(t, err)

	assert.Len(t, f.drive.List(ctx, "u1"), 1)
	assert.Len(t, f.drive.List(ctx, ""), 2)
	for _, sf := range f.drive.List(ctx, "") {
		assert.Nil(t, sf.WrappedKey)
		assert.Nil(t, sf.Nonce)
	}

	got, err := f.drive.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = f.drive.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_RemovesRecordBlobAndSchedule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sf, err := f.drive.Add(ctx, NewFile{OwnerID: "u1", SourcePath: f.src})
	require.NoError(t, err)
	require.NoError(t, records.UpdateMap(ctx, f.repo, models.KeyScheduledDeletes, func(m map[string]int64) (map[string]int64, error) {
		m[sf.ID] = 1
		return m, nil
	}))

	require.ErrorIs(t, f.drive.Delete(ctx, "u2", sf.ID), ErrNotFound)
	require.NoError(t, f.drive.Delete(ctx, "u1", sf.ID))

	assert.Empty(t, f.drive.List(ctx, ""))
	assert.Empty(t, records.ReadMap[int64](ctx, f.repo, models.KeyScheduledDeletes))
	_, err = os.Stat(sf.URI)
	assert.True(t, os.IsNotExist(err))

	entries := f.audit.Entries(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AccessFileDelete, entries[0].Type)
}

func TestRemoveBlobs_IgnoresForeignPaths(t *testing.T) {
	f := newFixture(t)
	outside := filepath.Join(t.TempDir(), "keep.jpg")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))

	require.NoError(t, f.drive.RemoveBlobs(context.Background(), []models.SecureFile{{URI: outside}}))
	_, err := os.Stat(outside)
	assert.NoError(t, err)
}

func TestWipe(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sf, err := f.drive.Add(ctx, NewFile{OwnerID: "u1", SourcePath: f.src})
	require.NoError(t, err)
	require.NoError(t, f.audit.Log(ctx, models.AccessLogin, "User logged in"))

	require.NoError(t, f.drive.Wipe(ctx))

	assert.Empty(t, f.drive.List(ctx, ""))
	assert.Empty(t, f.audit.Entries(ctx))
	_, err = os.Stat(sf.URI)
	assert.True(t, os.IsNotExist(err))
}

package sharing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/saveme/internal/accesslog"
	"github.com/dmitrijs2005/saveme/internal/logging"
	"github.com/dmitrijs2005/saveme/internal/models"
	"github.com/dmitrijs2005/saveme/internal/notify"
	"github.com/dmitrijs2005/saveme/internal/records"
	"github.com/dmitrijs2005/saveme/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct {
	mu    sync.Mutex
	calls map[string]time.Duration
	err   error
}

func (f *fakeScheduler) Schedule(_ context.Context, fileID string, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]time.Duration{}
	}
	f.calls[fileID] = d
	return f.err
}

type recordingNotifier struct {
	events []notify.ViewEvent
}

func (r *recordingNotifier) FileViewed(_ context.Context, ev notify.ViewEvent) error {
	r.events = append(r.events, ev)
	return nil
}

type fixture struct {
	repo     *records.Repo
	audit    *accesslog.Logger
	sched    *fakeScheduler
	notifier *recordingNotifier
	mgr      *Manager
	now      time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		now:      time.UnixMilli(1_700_000_000_000),
		sched:    &fakeScheduler{},
		notifier: &recordingNotifier{},
	}
	clock := func() time.Time { return f.now }
	f.repo = records.New(store.NewMemoryStore(), logging.Nop())
	f.audit = accesslog.New(f.repo, accesslog.WithClock(clock))
	base := []Option{WithClock(clock), WithNotifier(f.notifier)}
	f.mgr = New(f.repo, f.audit, f.sched, logging.Nop(), append(base, opts...)...)
	return f
}

func (f *fixture) addFile(t *testing.T, file models.SecureFile) {
	t.Helper()
	require.NoError(t, records.UpdateList(context.Background(), f.repo, models.KeySecureFiles,
		func(cur []models.SecureFile) ([]models.SecureFile, error) { return append(cur, file), nil }))
}

func (f *fixture) shares() []models.SharedContent {
	return records.ReadList[models.SharedContent](context.Background(), f.repo, models.KeySharedContent)
}

func photo() ShareRequest {
	return ShareRequest{
		FileID:     "f1",
		FileURI:    "blobs/f1.enc",
		FileType:   models.MediaImage,
		FromUserID: "u1",
		Recipients: []string{"u2"},
	}
}

func TestCreateShares_BuildsRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addFile(t, models.SecureFile{ID: "f1", Type: models.MediaImage})

	req := photo()
	req.Recipients = []string{"u2", "u3", "u2", ""}
	grants, err := f.mgr.CreateShares(ctx, req)
	require.NoError(t, err)
	require.Len(t, grants, 2)

	got := f.shares()
	require.Len(t, got, 2)
	for i, to := range []string{"u2", "u3"} {
		r := got[i]
		assert.Equal(t, RecordID(1_700_000_000_000, to), r.ID)
		assert.Equal(t, "1700000000000_"+to, r.ID)
		assert.Equal(t, to, r.ToUserID)
		assert.Equal(t, "u1", r.FromUserID)
		assert.Equal(t, "f1", r.FileID)
		assert.Equal(t, "blobs/f1.enc", r.FileURI)
		assert.Equal(t, int64(1_700_000_000_000), r.SharedAt)
		assert.Equal(t, r.SharedAt+86_400_000, r.ExpiresAt)
		assert.Equal(t, 0, r.ViewCount)
		assert.Equal(t, 1, r.MaxViews)
		assert.True(t, r.IsReceivedContent)
		assert.Equal(t, "u1", r.OriginalOwnerID)
		assert.False(t, r.OTPUsed)
		assert.Len(t, r.ShareCode, 8)
		assert.Equal(t, r.ShareCode, grants[i].ShareCode)
		assert.Equal(t, r.ID, grants[i].RecordID)
	}
	assert.NotEqual(t, got[0].ShareCode, got[1].ShareCode)

	assert.Equal(t, DefaultAutoDeleteAfter, f.sched.calls["f1"])

	entries := f.audit.Entries(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AccessFileShare, entries[0].Type)
	assert.Equal(t, "Shared image with 2 user(s)", entries[0].Details)
}

func TestCreateShares_NoRecipients(t *testing.T) {
	f := newFixture(t)
	req := photo()
	req.Recipients = []string{"", ""}

	_, err := f.mgr.CreateShares(context.Background(), req)
	require.ErrorIs(t, err, ErrNoRecipients)
	assert.Empty(t, f.shares())
}

func TestCreateShares_BlocksReceivedContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addFile(t, models.SecureFile{ID: "f1", IsReceivedContent: true, OriginalOwnerID: "u9"})

	_, err := f.mgr.CreateShares(ctx, photo())
	require.ErrorIs(t, err, ErrReshareBlocked)

	assert.Empty(t, f.shares())
	assert.Empty(t, f.sched.calls)

	entries := f.audit.Entries(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AccessFileShare, entries[0].Type)
	assert.Equal(t, "Blocked attempt to share received content", entries[0].Details)
}

func TestCreateShares_UnknownFileIsAllowed(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.CreateShares(context.Background(), photo())
	require.NoError(t, err)
	assert.Len(t, f.shares(), 1)
}

func TestCreateShares_SchedulerFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.sched.err = errors.New("store busy")

	_, err := f.mgr.CreateShares(context.Background(), photo())
	require.NoError(t, err)
	assert.Len(t, f.shares(), 1)
}

func TestCreateShares_WrapsKeyPerRecipient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := photo()
	req.Recipients = []string{"u2", "u3"}
	req.WrapKey = func(_ context.Context, to string) ([]byte, error) {
		return []byte("sealed-for-" + to), nil
	}
	_, err := f.mgr.CreateShares(ctx, req)
	require.NoError(t, err)

	got := f.shares()
	require.Len(t, got, 2)
	assert.Equal(t, []byte("sealed-for-u2"), got[0].WrappedKey)
	assert.Equal(t, []byte("sealed-for-u3"), got[1].WrappedKey)
}

func TestCreateShares_WrapFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := photo()
	req.Recipients = []string{"u2", "ghost"}
	req.WrapKey = func(_ context.Context, to string) ([]byte, error) {
		if to == "ghost" {
			return nil, ErrUnknownRecipient
		}
		return []byte("k"), nil
	}
	_, err := f.mgr.CreateShares(ctx, req)
	require.ErrorIs(t, err, ErrUnknownRecipient)

	assert.Empty(t, f.shares())
	assert.Empty(t, f.sched.calls)
	assert.Empty(t, f.audit.Entries(ctx))
}

func TestCreateShares_AppendsToExisting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.mgr.CreateShares(ctx, photo())
	require.NoError(t, err)
	f.now = f.now.Add(time.Second)
	_, err = f.mgr.CreateShares(ctx, photo())
	require.NoError(t, err)

	assert.Len(t, f.shares(), 2)
}

func TestCanView(t *testing.T) {
	now := time.UnixMilli(1000)
	cases := []struct {
		name string
		rec  models.SharedContent
		want bool
	}{
		{"fresh", models.SharedContent{ExpiresAt: 2000, MaxViews: 1}, true},
		{"at expiry", models.SharedContent{ExpiresAt: 1000, MaxViews: 1}, false},
		{"expired", models.SharedContent{ExpiresAt: 999, MaxViews: 1}, false},
		{"used up", models.SharedContent{ExpiresAt: 2000, MaxViews: 1, ViewCount: 1}, false},
		{"unlimited", models.SharedContent{ViewCount: 50}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanView(tc.rec, now))
		})
	}
}

func TestRegisterView_Pure(t *testing.T) {
	in := []models.SharedContent{{ID: "a"}, {ID: "b", ViewCount: 2}}

	out, err := RegisterView(in, "b")
	require.NoError(t, err)
	assert.Equal(t, 3, out[1].ViewCount)
	assert.Equal(t, 2, in[1].ViewCount)

	_, err = RegisterView(in, "zzz")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestView_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	grants, err := f.mgr.CreateShares(ctx, photo())
	require.NoError(t, err)
	id := grants[0].RecordID

	inbox := f.mgr.ListForRecipient(ctx, "u2")
	require.Len(t, inbox, 1)
	assert.True(t, CanView(inbox[0], f.now))
	assert.Empty(t, f.mgr.ListForRecipient(ctx, "u1"))
	assert.Len(t, f.mgr.ListSent(ctx, "u1"), 1)

	_, err = f.mgr.View(ctx, "u3", id)
	require.ErrorIs(t, err, ErrNotFound)

	rec, err := f.mgr.View(ctx, "u2", id)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.ViewCount)
	assert.False(t, CanView(*rec, f.now))

	_, err = f.mgr.View(ctx, "u2", id)
	require.ErrorIs(t, err, ErrViewLimitReached)
	assert.Equal(t, 1, f.shares()[0].ViewCount)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, "u1", f.notifier.events[0].FromUserID)
	assert.Equal(t, "u2", f.notifier.events[0].ViewerID)

	var views int
	for _, e := range f.audit.Entries(ctx) {
		if e.Type == models.AccessFileView {
			views++
		}
	}
	assert.Equal(t, 1, views)
}

func TestView_ExpiresAfter24h(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithMaxViews(0))

	grants, err := f.mgr.CreateShares(ctx, photo())
	require.NoError(t, err)
	id := grants[0].RecordID

	f.now = f.now.Add(24*time.Hour - time.Millisecond)
	_, err = f.mgr.View(ctx, "u2", id)
	require.NoError(t, err)

	f.now = f.now.Add(time.Millisecond)
	assert.False(t, CanView(f.mgr.ListForRecipient(ctx, "u2")[0], f.now))
	_, err = f.mgr.View(ctx, "u2", id)
	require.ErrorIs(t, err, ErrExpired)
}

func TestView_ConcurrentViewsRespectLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithMaxViews(3), WithNotifier(notify.Multi{}))

	grants, err := f.mgr.CreateShares(ctx, photo())
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.mgr.View(ctx, "u2", grants[0].RecordID); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, 3, f.shares()[0].ViewCount)
}

func TestGetDeleteAndReap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := photo()
	req.Recipients = []string{"u2", "u3"}
	grants, err := f.mgr.CreateShares(ctx, req)
	require.NoError(t, err)

	_, err = f.mgr.Get(ctx, "u1", grants[0].RecordID)
	require.NoError(t, err)
	_, err = f.mgr.Get(ctx, "u9", grants[0].RecordID)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, f.mgr.Delete(ctx, "u3", grants[0].RecordID), ErrNotFound)
	require.NoError(t, f.mgr.Delete(ctx, "u2", grants[0].RecordID))
	assert.Len(t, f.shares(), 1)

	n, err := f.mgr.ReapExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.now = f.now.Add(25 * time.Hour)
	n, err = f.mgr.ReapExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, f.shares())
}

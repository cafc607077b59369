package accesslog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/saveme/internal/logging"
	"github.com/dmitrijs2005/saveme/internal/models"
	"github.com/dmitrijs2005/saveme/internal/records"
	"github.com/dmitrijs2005/saveme/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLogger(opts ...Option) *Logger {
	repo := records.New(store.NewMemoryStore(), logging.Nop())
	return New(repo, opts...)
}

func TestLog_AppendsEntry(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)
	l := newLogger(WithClock(func() time.Time { return now }), WithDeviceInfo("test-device"))

	require.NoError(t, l.Log(ctx, models.AccessLogin, "User logged in", ForUser("u1")))
	require.NoError(t, l.Log(ctx, models.AccessFileView, "Viewed", ForUser("u2"), ForFile("f1")))

	got := l.Entries(ctx)
	require.Len(t, got, 2)

	assert.Equal(t, models.AccessLogin, got[0].Type)
	assert.Equal(t, "User logged in", got[0].Details)
	assert.Equal(t, "u1", got[0].UserID)
	assert.Empty(t, got[0].FileID)
	assert.Equal(t, int64(1_700_000_000_000), got[0].Timestamp)
	assert.Equal(t, "test-device", got[0].DeviceInfo)

	assert.Equal(t, "f1", got[1].FileID)
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestLog_CapsAtCapacity(t *testing.T) {
	ctx := context.Background()
	l := newLogger()

	for i := 0; i < 150; i++ {
		require.NoError(t, l.Log(ctx, models.AccessFileView, fmt.Sprintf("event %d", i)))
	}

	got := l.Entries(ctx)
	require.Len(t, got, DefaultCapacity)
	assert.Equal(t, "event 50", got[0].Details)
	assert.Equal(t, "event 149", got[DefaultCapacity-1].Details)
}

func TestLog_CustomCapacity(t *testing.T) {
	ctx := context.Background()
	l := newLogger(WithCapacity(3), WithCapacity(0))

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Log(ctx, models.AccessLogin, fmt.Sprint(i)))
	}
	got := l.Entries(ctx)
	require.Len(t, got, 3)
	assert.Equal(t, "2", got[0].Details)
}

func TestRecent_NewestFirst(t *testing.T) {
	ctx := context.Background()
	l := newLogger()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Log(ctx, models.AccessLogin, fmt.Sprint(i)))
	}

	got := l.Recent(ctx, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "4", got[0].Details)
	assert.Equal(t, "3", got[1].Details)

	assert.Len(t, l.Recent(ctx, 0), 5)
}

func TestRecentFor_OnlyThatUser(t *testing.T) {
	ctx := context.Background()
	l := newLogger()

	require.NoError(t, l.Log(ctx, models.AccessLogin, "a1", ForUser("alice")))
	require.NoError(t, l.Log(ctx, models.AccessLogin, "b1", ForUser("bob")))
	require.NoError(t, l.Log(ctx, models.AccessFileView, "a2", ForUser("alice")))
	require.NoError(t, l.Log(ctx, models.AccessLogin, "device"))

	got := l.RecentFor(ctx, "alice", 0)
	require.Len(t, got, 2)
	assert.Equal(t, "a2", got[0].Details)
	assert.Equal(t, "a1", got[1].Details)

	assert.Len(t, l.RecentFor(ctx, "alice", 1), 1)
	assert.Empty(t, l.RecentFor(ctx, "mallory", 0))
	assert.Len(t, l.Recent(ctx, 0), 4)
}

func TestEntries_EmptyWhenUnset(t *testing.T) {
	l := newLogger()
	assert.Empty(t, l.Entries(context.Background()))
	assert.Contains(t, DefaultDeviceInfo(), "saveme (")
}

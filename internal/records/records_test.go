package records

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/saveme/internal/logging"
	"github.com/dmitrijs2005/saveme/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyStore struct {
	*store.MemoryStore
	getErr error
	setErr error
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.MemoryStore.Set(ctx, key, value)
}

type item struct {
	ID string `json:"id"`
	N  int    `json:"n"`
}

func newRepo() (*Repo, *flakyStore) {
	fs := &flakyStore{MemoryStore: store.NewMemoryStore()}
	return New(fs, logging.Nop()), fs
}

func TestReadList_MissingKey_Empty(t *testing.T) {
	r, _ := newRepo()
	got := ReadList[item](context.Background(), r, "items")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReadList_Degrades(t *testing.T) {
	ctx := context.Background()

	t.Run("read error", func(t *testing.T) {
		r, fs := newRepo()
		fs.getErr = errors.New("disk gone")
		assert.Empty(t, ReadList[item](ctx, r, "items"))
	})

	t.Run("corrupt json", func(t *testing.T) {
		r, fs := newRepo()
		require.NoError(t, fs.MemoryStore.Set(ctx, "items", []byte("{not json")))
		assert.Empty(t, ReadList[item](ctx, r, "items"))
		assert.Empty(t, ReadMap[item](ctx, r, "items"))
	})

	t.Run("null", func(t *testing.T) {
		r, fs := newRepo()
		require.NoError(t, fs.MemoryStore.Set(ctx, "items", []byte("null")))
		got := ReadList[item](ctx, r, "items")
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestUpdateList_RoundTrip(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepo()

	err := UpdateList(ctx, r, "items", func(cur []item) ([]item, error) {
		return append(cur, item{ID: "a", N: 1}), nil
	})
	require.NoError(t, err)

	err = UpdateList(ctx, r, "items", func(cur []item) ([]item, error) {
		return append(cur, item{ID: "b", N: 2}), nil
	})
	require.NoError(t, err)

	assert.Equal(t, []item{{ID: "a", N: 1}, {ID: "b", N: 2}}, ReadList[item](ctx, r, "items"))
}

func TestUpdateList_FailedReadDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	r, fs := newRepo()
	require.NoError(t, UpdateList(ctx, r, "items", func(cur []item) ([]item, error) {
		return append(cur, item{ID: "keep"}), nil
	}))

	fs.getErr = errors.New("transient")
	called := false
	err := UpdateList(ctx, r, "items", func(cur []item) ([]item, error) {
		called = true
		return cur, nil
	})
	require.Error(t, err)
	assert.False(t, called)

	fs.getErr = nil
	assert.Equal(t, []item{{ID: "keep"}}, ReadList[item](ctx, r, "items"))
}

func TestUpdateMap_CallbackErrorLeavesData(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepo()
	require.NoError(t, UpdateMap(ctx, r, "m", func(cur map[string]int) (map[string]int, error) {
		cur["x"] = 1
		return cur, nil
	}))

	boom := errors.New("boom")
	err := UpdateMap(ctx, r, "m", func(cur map[string]int) (map[string]int, error) {
		cur["x"] = 99
		return cur, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, map[string]int{"x": 1}, ReadMap[int](ctx, r, "m"))
}

func TestUpdateMap_WriteErrorSurfaces(t *testing.T) {
	ctx := context.Background()
	r, fs := newRepo()
	fs.setErr = errors.New("read-only fs")

	err := UpdateMap(ctx, r, "m", func(cur map[string]int) (map[string]int, error) {
		cur["x"] = 1
		return cur, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write m")
}

func TestUpdateList_ConcurrentAppendsAreNotLost(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepo()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = UpdateList(ctx, r, "items", func(cur []item) ([]item, error) {
				return append(cur, item{N: i}), nil
			})
		}(i)
	}
	wg.Wait()

	assert.Len(t, ReadList[item](ctx, r, "items"), n)
}

func TestLocker_MultiKeyOrderIndependent(t *testing.T) {
	l := NewLocker()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := l.Lock("a", "b")
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := l.Lock("b", "a", "b")
			unlock()
		}()
	}
	wg.Wait()
}

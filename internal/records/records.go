// Package records stores typed collections as JSON documents under single
// store keys.
//
// Each collection is read and written whole. Read-only callers use ReadList
// and ReadMap, which never fail: a storage or decode error is logged and the
// collection is treated as empty. Mutating callers go through UpdateList and
// UpdateMap, which hold the key's lock for the whole read-modify-write and
// abort on a failed read so a transient error never replaces stored data.
package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/saveme/internal/logging"
	"github.com/dmitrijs2005/saveme/internal/store"
)

// Repo bundles the store with its key locks.
type Repo struct {
	store  store.Store
	locks  *Locker
	logger logging.Logger
}

func New(s store.Store, logger logging.Logger) *Repo {
	return &Repo{store: s, locks: NewLocker(), logger: logger}
}

// Store returns the underlying store.
func (r *Repo) Store() store.Store { return r.store }

// Lock serialises callers on keys. See Locker.Lock.
func (r *Repo) Lock(keys ...string) func() { return r.locks.Lock(keys...) }

// Encode marshals a collection for storage.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	return b, nil
}

// LoadList reads a list strictly. A missing key yields an empty list.
func LoadList[T any](ctx context.Context, r *Repo, key string) ([]T, error) {
	raw, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	out := []T{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// LoadMap reads a map strictly. A missing key yields an empty map.
func LoadMap[V any](ctx context.Context, r *Repo, key string) (map[string]V, error) {
	raw, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	out := map[string]V{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if out == nil {
		out = map[string]V{}
	}
	return out, nil
}

// ReadList is LoadList for read-only paths: failures degrade to empty.
func ReadList[T any](ctx context.Context, r *Repo, key string) []T {
	out, err := LoadList[T](ctx, r, key)
	if err != nil {
		r.logger.Warn(ctx, "collection unreadable, treating as empty", "key", key, "error", err)
		return []T{}
	}
	return out
}

// ReadMap is LoadMap for read-only paths: failures degrade to empty.
func ReadMap[V any](ctx context.Context, r *Repo, key string) map[string]V {
	out, err := LoadMap[V](ctx, r, key)
	if err != nil {
		r.logger.Warn(ctx, "collection unreadable, treating as empty", "key", key, "error", err)
		return map[string]V{}
	}
	return out
}

// UpdateList applies fn to the stored list under the key lock and writes the
// result back. An error from fn leaves the stored list untouched.
func UpdateList[T any](ctx context.Context, r *Repo, key string, fn func([]T) ([]T, error)) error {
	unlock := r.Lock(key)
	defer unlock()

	cur, err := LoadList[T](ctx, r, key)
	if err != nil {
		return err
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	return r.put(ctx, key, next)
}

// UpdateMap is UpdateList for map collections.
func UpdateMap[V any](ctx context.Context, r *Repo, key string, fn func(map[string]V) (map[string]V, error)) error {
	unlock := r.Lock(key)
	defer unlock()

	cur, err := LoadMap[V](ctx, r, key)
	if err != nil {
		return err
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	return r.put(ctx, key, next)
}

func (r *Repo) put(ctx context.Context, key string, v any) error {
	b, err := Encode(v)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, key, b); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openRecords(t *testing.T) *sql.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE records (key TEXT PRIMARY KEY, value BLOB NOT NULL)`)
	require.NoError(t, err)
	return db
}

func putAll(ctx context.Context, tx DBTX, kv map[string]string) error {
	for k, v := range kv {
		if _, err := tx.ExecContext(ctx, `INSERT INTO records(key, value) VALUES (?, ?)`, k, []byte(v)); err != nil {
			return err
		}
	}
	return nil
}

func keys(t *testing.T, db DBTX) []string {
	t.Helper()
	rows, err := db.QueryContext(context.Background(), `SELECT key FROM records ORDER BY key`)
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		require.NoError(t, rows.Scan(&k))
		out = append(out, k)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestWithTx(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name     string
		fn       func(ctx context.Context, tx DBTX) error
		wantErr  error
		wantKeys []string
	}{
		{
			name: "batch commits",
			fn: func(ctx context.Context, tx DBTX) error {
				return putAll(ctx, tx, map[string]string{"secure_files": "[]", "shared_content": "[]"})
			},
			wantKeys: []string{"secure_files", "shared_content"},
		},
		{
			name: "error rolls back the whole batch",
			fn: func(ctx context.Context, tx DBTX) error {
				if err := putAll(ctx, tx, map[string]string{"access_logs": "[]"}); err != nil {
					return err
				}
				return errBoom
			},
			wantErr: errBoom,
		},
		{
			name: "failing statement rolls back earlier writes",
			fn: func(ctx context.Context, tx DBTX) error {
				if err := putAll(ctx, tx, map[string]string{"a": "1"}); err != nil {
					return err
				}
				return putAll(ctx, tx, map[string]string{"a": "2"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openRecords(t)

			err := WithTx(context.Background(), db, nil, tt.fn)
			if tt.wantKeys == nil {
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantKeys, keys(t, db))
		})
	}
}

func TestWithTx_PanicRollsBackAndPropagates(t *testing.T) {
	db := openRecords(t)

	assert.PanicsWithValue(t, "kaput", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, putAll(ctx, tx, map[string]string{"k": "v"}))
			panic("kaput")
		})
	})
	assert.Empty(t, keys(t, db))
}

func TestWithTx_ClosedDB(t *testing.T) {
	db := openRecords(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(context.Context, DBTX) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}

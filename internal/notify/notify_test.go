package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/dmitrijs2005/saveme/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePub struct {
	subj string
	data []byte
	err  error
}

func (f *fakePub) Publish(subj string, data []byte) error {
	f.subj, f.data = subj, data
	return f.err
}

func TestNATSNotifier_PublishesOnSenderSubject(t *testing.T) {
	pub := &fakePub{}
	n := NewNATSNotifier(pub)

	ev := ViewEvent{RecordID: "r1", FileID: "f1", FromUserID: "u1", ViewerID: "u2", ViewCount: 1, MaxViews: 1, ViewedAt: 42}
	require.NoError(t, n.FileViewed(context.Background(), ev))

	assert.Equal(t, "saveme.views.u1", pub.subj)

	var got ViewEvent
	require.NoError(t, json.Unmarshal(pub.data, &got))
	assert.Equal(t, ev, got)

	require.NoError(t, n.Close())
}

func TestNATSNotifier_PublishError(t *testing.T) {
	n := NewNATSNotifier(&fakePub{err: errors.New("no servers")})
	err := n.FileViewed(context.Background(), ViewEvent{FromUserID: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish view event")
}

func TestLogNotifier_WritesLine(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(logging.NewText(&buf, slog.LevelInfo))

	require.NoError(t, n.FileViewed(context.Background(), ViewEvent{RecordID: "r1", ViewerID: "u2"}))
	assert.Contains(t, buf.String(), "file viewed")
	assert.Contains(t, buf.String(), "record_id=r1")
}

func TestMulti_CallsAllReturnsFirstError(t *testing.T) {
	a := &fakePub{err: errors.New("a down")}
	b := &fakePub{}
	m := Multi{NewNATSNotifier(a), NewNATSNotifier(b)}

	err := m.FileViewed(context.Background(), ViewEvent{FromUserID: "u1"})
	require.Error(t, err)
	assert.Equal(t, "saveme.views.u1", b.subj)
}

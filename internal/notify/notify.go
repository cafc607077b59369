// Package notify tells senders that a recipient opened their share.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/saveme/internal/logging"
	"github.com/nats-io/nats.go"
)

// SubjectPrefix is followed by the sender's user id.
const SubjectPrefix = "saveme.views."

// ViewEvent describes one successful view of a shared record.
type ViewEvent struct {
	RecordID   string `json:"recordId"`
	FileID     string `json:"fileId"`
	FromUserID string `json:"fromUserId"`
	ViewerID   string `json:"viewerId"`
	ViewCount  int    `json:"viewCount"`
	MaxViews   int    `json:"maxViews,omitempty"`
	ViewedAt   int64  `json:"viewedAt"`
}

// Notifier delivers view events. Delivery is best effort; callers log the
// error and carry on.
type Notifier interface {
	FileViewed(ctx context.Context, ev ViewEvent) error
}

// LogNotifier writes the event to the structured log.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(l logging.Logger) *LogNotifier {
	return &LogNotifier{logger: l}
}

func (n *LogNotifier) FileViewed(ctx context.Context, ev ViewEvent) error {
	n.logger.Info(ctx, "file viewed",
		"record_id", ev.RecordID,
		"file_id", ev.FileID,
		"from", ev.FromUserID,
		"viewer", ev.ViewerID,
		"view_count", ev.ViewCount,
	)
	return nil
}

// Publisher is the part of *nats.Conn used for notifications.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// NATSNotifier publishes each event as JSON on SubjectPrefix+FromUserID.
type NATSNotifier struct {
	pub Publisher
	nc  *nats.Conn
}

func NewNATSNotifier(pub Publisher) *NATSNotifier {
	n := &NATSNotifier{pub: pub}
	if nc, ok := pub.(*nats.Conn); ok {
		n.nc = nc
	}
	return n
}

// DialNATS connects to url and returns a notifier owning the connection.
func DialNATS(url string) (*NATSNotifier, error) {
	nc, err := nats.Connect(url,
		nats.Name("saveme"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return NewNATSNotifier(nc), nil
}

func (n *NATSNotifier) FileViewed(_ context.Context, ev ViewEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal view event: %w", err)
	}
	if err := n.pub.Publish(SubjectPrefix+ev.FromUserID, data); err != nil {
		return fmt.Errorf("publish view event: %w", err)
	}
	return nil
}

// Close drains the connection if the notifier owns one.
func (n *NATSNotifier) Close() error {
	if n.nc == nil {
		return nil
	}
	return n.nc.Drain()
}

// Multi fans an event out to every notifier and returns the first error.
type Multi []Notifier

func (m Multi) FileViewed(ctx context.Context, ev ViewEvent) error {
	var first error
	for _, n := range m {
		if err := n.FileViewed(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

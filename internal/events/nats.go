package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes events as JSON to <subject>.<item_type>.<status>.
type NATSSink struct {
	conn    *nats.Conn
	subject string
	owned   bool
}

// DialNATS connects to url and returns a sink that owns the connection.
func DialNATS(url, subject string) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("jobsift"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	sink := NewNATSSink(nc, subject)
	sink.owned = true
	return sink, nil
}

// NewNATSSink publishes on an existing connection.
func NewNATSSink(conn *nats.Conn, subject string) *NATSSink {
	return &NATSSink{conn: conn, subject: subject}
}

// Subject returns the full subject an event is published on.
func (s *NATSSink) Subject(e Event) string {
	return fmt.Sprintf("%s.%s.%s", s.subject, e.ItemType, e.Status)
}

// Emit publishes the event.
func (s *NATSSink) Emit(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := s.conn.Publish(s.Subject(e), data); err != nil {
		return fmt.Errorf("publish event %s: %w", e.ID, err)
	}
	return nil
}

// Close drains the connection when the sink owns it.
func (s *NATSSink) Close() error {
	if s == nil || s.conn == nil || !s.owned {
		return nil
	}
	return s.conn.Drain()
}

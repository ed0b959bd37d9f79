package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// MsgPublisher is the subset of *nats.Conn used for publishing.
type MsgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSPublisher publishes events as JSON on `<prefix>.<event>` subjects.
type NATSPublisher struct {
	conn   MsgPublisher
	close  func()
	prefix string
}

type natsEnvelope struct {
	Event      Event     `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       Payload   `json:"data"`
}

// ConnectNATS dials the server and returns a publisher. The connection keeps
// retrying in the background when the server is not yet reachable.
func ConnectNATS(url, prefix string, timeout time.Duration) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("deepshield"),
		nats.Timeout(timeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc, close: nc.Close, prefix: prefix}, nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn MsgPublisher, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject returns the subject an event is published on.
func (p *NATSPublisher) Subject(event Event) string {
	prefix := strings.Trim(strings.TrimSpace(p.prefix), ".")
	if prefix == "" {
		return string(event)
	}
	return prefix + "." + string(event)
}

// Publish sends one event. Error values in the payload are flattened to strings.
func (p *NATSPublisher) Publish(ctx context.Context, event Event, payload Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data := make(Payload, len(payload))
	for key, value := range payload {
		if err, ok := value.(error); ok {
			data[key] = err.Error()
			continue
		}
		data[key] = value
	}
	body, err := json.Marshal(natsEnvelope{Event: event, OccurredAt: time.Now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("encode nats event: %w", err)
	}
	msg := &nats.Msg{Subject: p.Subject(event), Data: body, Header: nats.Header{}}
	msg.Header.Set("Content-Type", "application/json")
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish nats event %s: %w", msg.Subject, err)
	}
	return nil
}

// Close closes the owned connection, if any.
func (p *NATSPublisher) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}

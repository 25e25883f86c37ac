package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// EventWorkItemUpdated is published after a verified write.
const EventWorkItemUpdated = "workitem.updated"

// natsConn is the part of *nats.Conn the publisher needs.
type natsConn interface {
	Publish(subject string, data []byte) error
}

// NotificationPublisher publishes work item events to NATS.
//
// Subject convention: <prefix>.workitem.updated
//
// All publish operations are non-fatal: errors are logged but never
// propagated to the caller, so notification failures never interrupt an
// update. A publisher with no connection is a no-op.
type NotificationPublisher struct {
	conn   natsConn
	prefix string
	log    zerolog.Logger
}

// WorkItemEvent is the JSON schema published to NATS.
type WorkItemEvent struct {
	EventType  string    `json:"event_type"`
	Provenance string    `json:"provenance"`
	ResourceID string    `json:"resource_id"`
	ActorID    string    `json:"actor_id,omitempty"`
	Fields     []string  `json:"fields"`
	Mismatches []string  `json:"mismatches,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ConnectNATS dials the server with reconnects enabled.
func ConnectNATS(url, name string, log zerolog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats: disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats: reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

// NewNotificationPublisher creates a publisher. conn may be nil.
func NewNotificationPublisher(conn *nats.Conn, prefix string, log zerolog.Logger) *NotificationPublisher {
	p := &NotificationPublisher{prefix: prefix, log: log}
	if conn != nil {
		p.conn = conn
	}
	return p
}

// Subject returns the subject an event type is published on.
func (p *NotificationPublisher) Subject(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

// PublishWorkItemUpdated publishes a workitem.updated event.
func (p *NotificationPublisher) PublishWorkItemUpdated(event WorkItemEvent) {
	if p == nil || p.conn == nil {
		return
	}
	if len(event.Fields) == 0 {
		return
	}

	event.EventType = EventWorkItemUpdated
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", event.EventType).Msg("notification: failed to marshal event")
		return
	}

	subject := p.Subject(EventWorkItemUpdated)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("resource_id", event.ResourceID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("resource_id", event.ResourceID).
		Int("fields", len(event.Fields)).
		Msg("notification: event published")
}

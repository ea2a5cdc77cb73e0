package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/autopilot-remediation/internal/types"
)

// Message is the payload published for each actionable decision.
type Message struct {
	Decision     types.Decision    `json:"decision"`
	Event        types.EventRecord `json:"event"`
	DispatchedAt time.Time         `json:"dispatched_at"`
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes decisions to "<subject>.<action>".
type NATSPublisher struct {
	conn    *nats.Conn
	pub     publisher
	subject string
	log     *logrus.Logger
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url, subject string, log *logrus.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name(Component))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSPublisher{conn: conn, pub: conn, subject: subject, log: log}, nil
}

// Subject returns the subject a decision is published on.
func (p *NATSPublisher) Subject(d types.Decision) string {
	return p.subject + "." + strings.ToLower(string(d.Action))
}

// Dispatch implements Dispatcher.
func (p *NATSPublisher) Dispatch(_ context.Context, rec *types.EventRecord, d types.Decision) error {
	if !d.Actionable() {
		return nil
	}
	msg := Message{Decision: d, DispatchedAt: time.Now().UTC()}
	if rec != nil {
		msg.Event = *rec
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}
	subject := p.Subject(d)
	if err := p.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	p.log.WithFields(logrus.Fields{"subject": subject, "event_id": d.EventID}).Debug("Decision published")
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
		p.conn.Close()
	}
}

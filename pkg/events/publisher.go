package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// OrderStatusChanged is emitted after every committed order transition.
type OrderStatusChanged struct {
	OrderID    string    `json:"order_id"`
	StudentID  string    `json:"student_id"`
	TeacherID  string    `json:"teacher_id,omitempty"`
	LevelID    int       `json:"level_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Reason     string    `json:"reason,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers order events to subscribers.
type Publisher interface {
	PublishOrderStatus(ctx context.Context, event OrderStatusChanged) error
	Close()
}

// Connect dials NATS. An empty url yields a no-op publisher.
func Connect(url, subject string, logger *zap.Logger) (Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if url == "" {
		return NopPublisher{}, nil
	}

	conn, err := nats.Connect(url,
		nats.Name("essay-review-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewNATSPublisher(conn, subject), nil
}

// NATSPublisher publishes JSON encoded events on a single subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher wraps an established connection.
func NewNATSPublisher(conn *nats.Conn, subject string) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject}
}

// PublishOrderStatus encodes and sends the event.
func (p *NATSPublisher) PublishOrderStatus(ctx context.Context, event OrderStatusChanged) error {
	if p.conn == nil {
		return fmt.Errorf("nats connection not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := Encode(event)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = payload
	msg.Header.Set("Nats-Msg-Id", event.OrderID+":"+event.ToStatus+":"+event.OccurredAt.Format(time.RFC3339Nano))
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}

// Encode renders the event payload.
func Encode(event OrderStatusChanged) ([]byte, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode order event: %w", err)
	}
	return payload, nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

// PublishOrderStatus implements Publisher.
func (NopPublisher) PublishOrderStatus(context.Context, OrderStatusChanged) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() {}

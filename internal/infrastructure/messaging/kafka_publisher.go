// Package messaging publishes audit events to Kafka.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

// AuditRunEventType is the event_type header for run events
const AuditRunEventType = "catalogsync.audit.run"

// MessageWriter is the subset of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditRowEvent is one row inside an AuditRunEvent
type AuditRowEvent struct {
	SKU         string    `json:"sku"`
	QtyBefore   *int      `json:"qty_before,omitempty"`
	QtyAfter    *int      `json:"qty_after,omitempty"`
	PriceBefore *string   `json:"price_before,omitempty"`
	PriceAfter  *string   `json:"price_after,omitempty"`
	Action      string    `json:"action"`
	Reason      string    `json:"reason,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	Timestamp   time.Time `json:"ts"`
}

// AuditRunEvent is the message value published for each finished run
type AuditRunEvent struct {
	EventID    uuid.UUID       `json:"event_id"`
	EventType  string          `json:"event_type"`
	Flow       string          `json:"flow"`
	RequestID  string          `json:"request_id"`
	DryRun     bool            `json:"dry_run"`
	StartedAt  time.Time       `json:"started_at"`
	OccurredAt time.Time       `json:"occurred_at"`
	Counts     map[string]int  `json:"counts"`
	Rows       []AuditRowEvent `json:"rows"`
}

// NewAuditRunEvent builds the event for a batch
func NewAuditRunEvent(batch integration.AuditBatch, now time.Time) AuditRunEvent {
	counts := make(map[string]int)
	for action, n := range batch.Counts() {
		counts[action.String()] = n
	}

	rows := make([]AuditRowEvent, 0, len(batch.Rows))
	for _, row := range batch.Rows {
		ev := AuditRowEvent{
			SKU:       row.SKU,
			QtyBefore: row.QtyBefore,
			QtyAfter:  row.QtyAfter,
			Action:    row.Action.String(),
			Reason:    row.Reason,
			Detail:    row.Detail,
			Timestamp: row.Timestamp.UTC(),
		}
		if row.PriceBefore != nil {
			s := row.PriceBefore.String()
			ev.PriceBefore = &s
		}
		if row.PriceAfter != nil {
			s := row.PriceAfter.String()
			ev.PriceAfter = &s
		}
		rows = append(rows, ev)
	}

	return AuditRunEvent{
		EventID:    uuid.New(),
		EventType:  AuditRunEventType,
		Flow:       batch.Flow.String(),
		RequestID:  batch.RequestID,
		DryRun:     batch.DryRun,
		StartedAt:  batch.StartedAt.UTC(),
		OccurredAt: now.UTC(),
		Counts:     counts,
		Rows:       rows,
	}
}

// KafkaAuditPublisher publishes one message per finished run, keyed by flow
type KafkaAuditPublisher struct {
	writer MessageWriter
	now    func() time.Time
}

// NewKafkaWriter creates a writer for the audit topic
func NewKafkaWriter(brokers []string, topic string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}, nil
}

// NewKafkaAuditPublisher wraps a writer
func NewKafkaAuditPublisher(writer MessageWriter) *KafkaAuditPublisher {
	return &KafkaAuditPublisher{writer: writer, now: time.Now}
}

// Record implements integration.AuditSink
func (p *KafkaAuditPublisher) Record(ctx context.Context, batch integration.AuditBatch) error {
	event := NewAuditRunEvent(batch, p.now())
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("messaging: marshal audit event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Flow),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(AuditRunEventType)},
			{Key: "request_id", Value: []byte(event.RequestID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("messaging: publish audit event: %w", err)
	}

	logger.L(ctx).Debug("Audit event published",
		zap.String("event_id", event.EventID.String()),
		zap.Int("rows", len(event.Rows)),
	)
	return nil
}

// Close flushes and closes the writer
func (p *KafkaAuditPublisher) Close() error {
	return p.writer.Close()
}

var _ integration.AuditSink = (*KafkaAuditPublisher)(nil)

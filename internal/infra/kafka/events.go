package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shiftwise/workforce-iam/internal/core/domain"
	"github.com/shiftwise/workforce-iam/internal/core/port"
	"github.com/shiftwise/workforce-iam/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAccountLocked publishes iam.account.locked events.
func (p *EventPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	payload := struct {
		UserID   string         `json:"user_id"`
		Surface  string         `json:"surface"`
		LockedAt time.Time      `json:"locked_at"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}{
		UserID:   event.UserID,
		Surface:  string(event.Surface),
		LockedAt: event.LockedAt.UTC(),
		Metadata: event.Metadata,
	}

	return p.publish(ctx, event.EventID, "iam.account.locked", event.UserID, event.LockedAt, payload)
}

// PublishIncidentOpened publishes iam.incident.opened events.
func (p *EventPublisher) PublishIncidentOpened(ctx context.Context, event domain.IncidentOpenedEvent) error {
	payload := struct {
		IncidentID string    `json:"incident_id"`
		UserID     string    `json:"user_id"`
		Type       string    `json:"type"`
		DedupeKey  string    `json:"dedupe_key"`
		OpenedAt   time.Time `json:"opened_at"`
	}{
		IncidentID: event.IncidentID,
		UserID:     event.UserID,
		Type:       string(event.Type),
		DedupeKey:  event.DedupeKey,
		OpenedAt:   event.OpenedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "iam.incident.opened", event.UserID, event.OpenedAt, payload)
}

// PublishPasswordReset publishes iam.account.password.reset events.
func (p *EventPublisher) PublishPasswordReset(ctx context.Context, event domain.PasswordResetEvent) error {
	payload := struct {
		UserID   string         `json:"user_id"`
		ResetAt  time.Time      `json:"reset_at"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}{
		UserID:   event.UserID,
		ResetAt:  event.ResetAt.UTC(),
		Metadata: event.Metadata,
	}

	return p.publish(ctx, event.EventID, "iam.account.password.reset", event.UserID, event.ResetAt, payload)
}

// PublishCodeIssued publishes iam.otc.issued events. The code value itself
// never crosses the wire.
func (p *EventPublisher) PublishCodeIssued(ctx context.Context, event domain.CodeIssuedEvent) error {
	payload := struct {
		UserID     string    `json:"user_id"`
		Purpose    string    `json:"purpose"`
		DailyCount int       `json:"daily_count"`
		IssuedAt   time.Time `json:"issued_at"`
	}{
		UserID:     event.UserID,
		Purpose:    event.Purpose,
		DailyCount: event.DailyCount,
		IssuedAt:   event.IssuedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "iam.otc.issued", event.UserID, event.IssuedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)

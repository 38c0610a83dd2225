package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/ariefcatur/go-hotel-booking/internal/booking"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Publisher is the part of Producer the Emitter needs.
type Publisher interface {
	Publish(key, value []byte, headers ...kafka.Header)
}

// Emitter wraps reservation lifecycle payloads in the v1 envelope and hands
// them to a Producer keyed by reservation id.
type Emitter struct {
	Producer Publisher
	Service  string
	Now      func() time.Time
}

var _ booking.EventPublisher = (*Emitter)(nil)

const envelopeVersion = 1

func (e *Emitter) PublishEvent(ctx context.Context, eventType, correlationID string, payload any) {
	now := time.Now().UTC()
	if e.Now != nil {
		now = e.Now().UTC()
	}
	ev := booking.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  envelopeVersion,
		OccurredAt:    now,
		Producer:      e.Service,
		TraceID:       TraceID(ctx),
		CorrelationID: correlationID,
		Payload:       MustMarshal(payload),
	}
	e.Producer.Publish(booking.PartitionKey(correlationID), MustMarshal(ev),
		kafka.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafka.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(envelopeVersion))},
	)
}

type traceKey struct{}

// WithTraceID carries a request id into published envelopes.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}

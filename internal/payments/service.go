package payments

import (
	"context"

	"github.com/ariefcatur/go-hotel-booking/internal/booking"
	"github.com/ariefcatur/go-hotel-booking/internal/checkout"
	kafkax "github.com/ariefcatur/go-hotel-booking/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// EventHandler is the part of checkout.Broker the consumer needs.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev checkout.Event) error
}

// Service relays payment.events onto the checkout broker.
type Service struct {
	Broker EventHandler
	Log    logrus.FieldLogger
}

// HandlePaymentEvent dipasang sebagai handler consumer. Return nil = offset boleh di-commit.
func (s *Service) HandlePaymentEvent(ctx context.Context, m kafkago.Message) error {
	log := s.Log.WithFields(logrus.Fields{"topic": m.Topic, "offset": m.Offset, "key": string(m.Key)})

	// 1) decode envelope; pesan rusak tidak akan sembuh dengan retry
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		log.WithError(err).Error("undecodable payment envelope dropped")
		return nil
	}
	if env.EventType != booking.EventPaymentSucceeded && env.EventType != booking.EventCheckoutExpired {
		return nil
	} // ignore

	// 2) decode payload
	ev, err := kafkax.UnwrapPayload[checkout.Event](env.Payload)
	if err != nil {
		log.WithError(err).WithField("event_id", env.EventID).Error("undecodable payment payload dropped")
		return nil
	}
	if ev.Type == "" {
		ev.Type = env.EventType
	}
	if ev.ID == "" {
		ev.ID = env.EventID
	}
	if ev.ReservationID == "" {
		ev.ReservationID = env.CorrelationID
	}

	// 3) broker: dedup + confirm / expire
	if err := s.Broker.HandleEvent(ctx, ev); err != nil {
		if checkout.Permanent(err) {
			// dilaporkan, tidak di-retry
			log.WithError(err).WithFields(logrus.Fields{
				"event_id": ev.ID, "reservation_id": ev.ReservationID,
			}).Error("payment event rejected")
			return nil
		}
		return err
	}
	return nil
}

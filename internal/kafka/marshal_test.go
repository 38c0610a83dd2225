package kafka

import (
	"testing"

	"github.com/ariefcatur/go-hotel-booking/internal/booking"
)

func TestUnmarshalEnvelope(t *testing.T) {
	good := MustMarshal(booking.Envelope{
		EventID:   "evt_1",
		EventType: booking.EventPaymentSucceeded,
		Payload:   MustMarshal(map[string]string{"session_id": "cs_1"}),
	})
	env, err := UnmarshalEnvelope(good)
	if err != nil || env.EventID != "evt_1" || env.EventType != booking.EventPaymentSucceeded {
		t.Fatalf("env = %+v, err = %v", env, err)
	}
	p, err := UnwrapPayload[map[string]string](env.Payload)
	if err != nil || p["session_id"] != "cs_1" {
		t.Fatalf("payload = %v, err = %v", p, err)
	}

	for name, b := range map[string][]byte{
		"not json":   []byte("{oops"),
		"no type":    []byte(`{"event_id":"evt_2"}`),
		"wrong type": []byte(`[1,2]`),
	} {
		if _, err := UnmarshalEnvelope(b); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

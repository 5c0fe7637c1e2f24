package lunch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"

	"github.com/mensaclub/mensa/pkg/event"
)

// MockSubscriber captures the handler so tests can feed it messages.
type MockSubscriber struct {
	topic   string
	handler events.HandlerFunc
}

func (m *MockSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	m.topic = topic
	m.handler = handler
	return nil
}

func TestInvalidationNotifierStart(t *testing.T) {
	sub := &MockSubscriber{}
	notifier := NewInvalidationNotifier(sub, NewMockUserRepo(), apt.NewNoopLogger())

	if err := notifier.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if sub.topic != event.OrdersTopic {
		t.Errorf("subscribed to %q, want %q", sub.topic, event.OrdersTopic)
	}

	t.Run("nilSubscriberFails", func(t *testing.T) {
		notifier := NewInvalidationNotifier(nil, NewMockUserRepo(), apt.NewNoopLogger())
		if err := notifier.Start(context.Background()); err == nil {
			t.Error("Start() accepted a nil subscriber")
		}
	})
}

func TestInvalidationNotifierHandleEvent(t *testing.T) {
	userRepo := NewMockUserRepo()
	owner := NewUser()
	owner.Username = "mario"
	if err := userRepo.Create(context.Background(), owner); err != nil {
		t.Fatal(err)
	}

	sub := &MockSubscriber{}
	notifier := NewInvalidationNotifier(sub, userRepo, apt.NewNoopLogger())
	if err := notifier.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	valid, _ := json.Marshal(event.OrderInvalidatedEvent{
		EventType:  event.EventOrderInvalidated,
		OccurredAt: time.Now().UTC(),
		OrderID:    "9e2d64f0-0000-0000-0000-000000000000",
		OwnerID:    owner.ID.String(),
	})

	tests := []struct {
		name    string
		payload []byte
	}{
		{"validEvent", valid},
		{"malformedJSON", []byte("{not json")},
		{"unknownOwner", mustMarshal(t, event.OrderInvalidatedEvent{
			EventType: event.EventOrderInvalidated,
			OwnerID:   "ffffffff-ffff-ffff-ffff-ffffffffffff",
		})},
		{"garbageOwnerID", mustMarshal(t, event.OrderInvalidatedEvent{
			EventType: event.EventOrderInvalidated,
			OwnerID:   "not-a-uuid",
		})},
		{"otherEventType", mustMarshal(t, event.OrderInvalidatedEvent{
			EventType: event.EventMenuUpdated,
		})},
	}

	// The notifier never propagates handler errors: a bad message is
	// logged and dropped, delivery is at-most-once.
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := sub.handler(context.Background(), tt.payload); err != nil {
				t.Errorf("handler returned error: %v", err)
			}
		})
	}
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

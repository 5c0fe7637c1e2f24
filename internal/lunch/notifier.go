package lunch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"

	"github.com/mensaclub/mensa/pkg/event"
)

// InvalidationNotifier listens for invalidated orders and tells their
// owners to pick again. Delivery is a log line for now; the messaging
// channel hangs off the same hook.
type InvalidationNotifier struct {
	subscriber events.Subscriber
	userRepo   UserRepo
	logger     apt.Logger
}

func NewInvalidationNotifier(sub events.Subscriber, userRepo UserRepo, logger apt.Logger) *InvalidationNotifier {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &InvalidationNotifier{
		subscriber: sub,
		userRepo:   userRepo,
		logger:     logger,
	}
}

func (n *InvalidationNotifier) Start(ctx context.Context) error {
	n.logger.Info("starting invalidation notifier", "topic", event.OrdersTopic)
	if n.subscriber == nil {
		return fmt.Errorf("invalidation notifier not configured")
	}
	return n.subscriber.Subscribe(ctx, event.OrdersTopic, n.handleEvent)
}

func (n *InvalidationNotifier) handleEvent(ctx context.Context, msg []byte) error {
	var evt event.OrderInvalidatedEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		n.logger.Info("invalid order event", "error", err)
		return nil
	}
	if evt.EventType != event.EventOrderInvalidated {
		return nil
	}

	ownerID, err := uuid.Parse(evt.OwnerID)
	if err != nil {
		n.logger.Info("invalid owner id in event", "owner_id", evt.OwnerID)
		return nil
	}

	owner, err := n.userRepo.Get(ctx, ownerID)
	if err != nil {
		n.logger.Error("cannot resolve invalidated order owner", "error", err, "owner_id", evt.OwnerID)
		return nil
	}
	if owner == nil {
		n.logger.Info("invalidated order owner not found", "owner_id", evt.OwnerID)
		return nil
	}

	n.logger.Info("order invalidated by menu edit, owner must reorder",
		"username", owner.Username,
		"email", owner.Email,
		"order_id", evt.OrderID,
		"menu_label", evt.MenuLabel,
	)
	return nil
}

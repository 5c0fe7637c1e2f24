package event

import "time"

// Topics the lunch service publishes on.
const (
	OrdersTopic = "lunch.orders"
	MenusTopic  = "lunch.menus"
)

// Event types.
const (
	EventOrderInvalidated = "lunch.order.invalidated"
	EventMenuUpdated      = "lunch.menu.updated"
)

// OrderInvalidatedEvent is published for every order a menu edit made
// stale. The notification collaborator messages the owner; the order
// itself has already been soft-deleted when this goes out.
type OrderInvalidatedEvent struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	OrderID    string    `json:"order_id"`
	OwnerID    string    `json:"owner_id"`
	MenuID     string    `json:"menu_id"`
	MenuLabel  string    `json:"menu_label,omitempty"`
	Day        time.Time `json:"day"`
}

// MenuUpdatedEvent summarizes a live menu edit.
type MenuUpdatedEvent struct {
	EventType        string    `json:"event_type"`
	OccurredAt       time.Time `json:"occurred_at"`
	MenuID           string    `json:"menu_id"`
	MenuLabel        string    `json:"menu_label,omitempty"`
	Day              time.Time `json:"day"`
	InvalidatedCount int       `json:"invalidated_count"`
	StillValidCount  int       `json:"still_valid_count"`
}

package lunch

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MenuRepo defines the repository interface for daily menus.
type MenuRepo interface {
	Create(ctx context.Context, menu *DailyMenu) error
	Get(ctx context.Context, id uuid.UUID) (*DailyMenu, error)
	// GetByDay returns the enabled, non-deleted menu for the calendar
	// day, or nil when none is published.
	GetByDay(ctx context.Context, day time.Time) (*DailyMenu, error)
	List(ctx context.Context) ([]*DailyMenu, error)
	Save(ctx context.Context, menu *DailyMenu) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// OrderRepo defines the repository interface for orders. Delete is a soft
// delete; every query here excludes deleted orders.
type OrderRepo interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context) ([]*Order, error)
	// ListActiveByMenu returns the non-deleted orders placed against the
	// menu, oldest first.
	ListActiveByMenu(ctx context.Context, menuID uuid.UUID) ([]*Order, error)
	// GetActiveByOwner returns the owner's non-deleted order against the
	// menu, or nil when the owner has not ordered.
	GetActiveByOwner(ctx context.Context, ownerID, menuID uuid.UUID) (*Order, error)
	// CountActive counts non-deleted orders seated at the table for the
	// menu. exclude skips one order id, so an in-place update does not
	// count against itself.
	CountActive(ctx context.Context, menuID, tableID uuid.UUID, exclude *uuid.UUID) (int, error)
	Save(ctx context.Context, order *Order) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// TableRepo defines the repository interface for dining tables.
type TableRepo interface {
	Create(ctx context.Context, table *Table) error
	Get(ctx context.Context, id uuid.UUID) (*Table, error)
	GetByName(ctx context.Context, name string) (*Table, error)
	List(ctx context.Context) ([]*Table, error)
	Save(ctx context.Context, table *Table) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserRepo defines the repository interface for members.
type UserRepo interface {
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Save(ctx context.Context, user *User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

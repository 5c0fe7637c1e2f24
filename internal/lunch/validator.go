package lunch

import (
	"time"

	"github.com/google/uuid"
)

// OrderRequest is the raw order payload as submitted. Pointer fields are
// the ones only admins may set; for everyone else they are silently
// stripped before validation, never rejected.
type OrderRequest struct {
	ID           *uuid.UUID         `json:"id,omitempty"`
	Owner        *uuid.UUID         `json:"owner,omitempty"`
	Deleted      *bool              `json:"deleted,omitempty"`
	CreatedAt    *time.Time         `json:"created_at,omitempty"`
	UpdatedAt    *time.Time         `json:"updated_at,omitempty"`
	Rating       *int               `json:"rating,omitempty"`
	TableID      uuid.UUID          `json:"table"`
	FirstCourse  *FirstCourseOrder  `json:"first_course,omitempty"`
	SecondCourse *SecondCourseOrder `json:"second_course,omitempty"`
}

// OrderContext carries everything the decision needs, already fetched by
// the boundary layer. The validator itself never touches storage.
type OrderContext struct {
	Now time.Time

	// Menu is the active daily menu, nil when none is published today.
	Menu *DailyMenu

	// Table is the destination table document, nil when absent.
	Table *Table

	// Existing is the effective owner's non-deleted order against Menu,
	// nil when the owner has not ordered yet.
	Existing *Order

	// Updating is the order being edited in place, nil on create.
	Updating *Order

	// Occupied counts non-deleted orders at the destination table for
	// Menu, excluding Updating.
	Occupied int
}

// EffectiveOwner resolves who the order is for: admins may order on
// behalf of anyone, everyone else only for themselves.
func EffectiveOwner(requester *User, req OrderRequest) uuid.UUID {
	if requester.IsAdmin() && req.Owner != nil && *req.Owner != uuid.Nil {
		return *req.Owner
	}
	return requester.ID
}

// ValidateOrder runs the ordering rules in sequence and returns the
// normalized order ready to persist, or a *ValidationError naming the
// first rule that failed. Every failure is definitive: the client must
// correct and resubmit.
func ValidateOrder(requester *User, req OrderRequest, octx OrderContext) (*Order, error) {
	if octx.Menu == nil || !octx.Menu.Active() {
		return nil, reject(CodeNoDailyMenu, "no daily menu published for today")
	}

	idx := looseMenuIndex(octx.Menu)
	if !idx.HasTable(req.TableID) {
		return nil, rejectField(CodeUnknownTable, "table", "table is not part of today's menu")
	}

	if !requester.IsAdmin() {
		req.ID = nil
		req.Deleted = nil
		req.CreatedAt = nil
		req.UpdatedAt = nil
		req.Rating = nil
		req.Owner = nil
	}
	owner := EffectiveOwner(requester, req)

	first := req.FirstCourse != nil && req.FirstCourse.Item != ""
	second := req.SecondCourse != nil && req.SecondCourse.Item != ""
	if first == second {
		return nil, reject(CodeCourseSelection, "select exactly one of first course and second course")
	}

	order := &Order{
		Owner:   owner,
		MenuID:  octx.Menu.ID,
		TableID: req.TableID,
	}

	if first {
		item := fold(req.FirstCourse.Item)
		if !idx.HasFirstCourse(item) {
			return nil, rejectField(CodeUnknownItem, "first_course.item", "item is not on today's menu")
		}
		condiment := fold(req.FirstCourse.Condiment)
		switch {
		case idx.RequiresCondiment(item) && condiment == "":
			return nil, rejectField(CodeCondimentRequired, "first_course.condiment", "item requires a condiment")
		case !idx.RequiresCondiment(item) && condiment != "":
			return nil, rejectField(CodeCondimentNotAllowed, "first_course.condiment", "item does not take a condiment")
		case condiment != "" && !idx.AllowsCondiment(item, condiment):
			return nil, rejectField(CodeUnknownCondiment, "first_course.condiment", "condiment is not declared for this item")
		}
		order.FirstCourse = &FirstCourseOrder{Item: item, Condiment: condiment}
	} else {
		item := fold(req.SecondCourse.Item)
		if !idx.HasSecondCourse(item) {
			return nil, rejectField(CodeUnknownItem, "second_course.item", "item is not on today's menu")
		}
		dishes := make([]string, 0, len(req.SecondCourse.SideDishes))
		for _, dish := range req.SecondCourse.SideDishes {
			folded := fold(dish)
			if !idx.HasSideDish(folded) {
				return nil, rejectField(CodeUnknownSideDish, "second_course.side_dishes", "side dish is not on today's menu")
			}
			dishes = append(dishes, folded)
		}
		order.SecondCourse = &SecondCourseOrder{Item: item, SideDishes: dishes}
	}

	if octx.Menu.DeadlinePassed(octx.Now) {
		// No admin override here: past the deadline nobody orders.
		return nil, reject(CodeDeadlinePassed, "ordering deadline has passed")
	}

	if octx.Existing != nil && (octx.Updating == nil || octx.Updating.ID != octx.Existing.ID) {
		return nil, reject(CodeAlreadyOrdered, "an order already exists for this menu")
	}

	if octx.Table == nil || !octx.Table.Available() {
		return nil, rejectField(CodeUnknownTable, "table", "table is not available")
	}
	if octx.Occupied >= octx.Table.Seats {
		return nil, reject(CodeTableFull, "table has no free seats")
	}

	if octx.Updating != nil {
		order.ID = octx.Updating.ID
		order.CreatedAt = octx.Updating.CreatedAt
		order.Rating = octx.Updating.Rating
	}
	if req.ID != nil {
		order.ID = *req.ID
	}
	if req.Deleted != nil {
		order.Deleted = *req.Deleted
	}
	if req.CreatedAt != nil {
		order.CreatedAt = *req.CreatedAt
	}
	if req.Rating != nil {
		order.Rating = *req.Rating
	}
	order.EnsureID()

	return order, nil
}

package lunch

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// Order is one member's lunch choice against a daily menu. Exactly one of
// FirstCourse/SecondCourse is populated; an owner holds at most one
// non-deleted order per menu.
type Order struct {
	ID           uuid.UUID          `json:"id" bson:"_id"`
	Owner        uuid.UUID          `json:"owner" bson:"owner"`
	MenuID       uuid.UUID          `json:"menu" bson:"menu"`
	TableID      uuid.UUID          `json:"table" bson:"table"`
	FirstCourse  *FirstCourseOrder  `json:"first_course,omitempty" bson:"first_course,omitempty"`
	SecondCourse *SecondCourseOrder `json:"second_course,omitempty" bson:"second_course,omitempty"`
	Rating       int                `json:"rating,omitempty" bson:"rating,omitempty"`
	Deleted      bool               `json:"deleted" bson:"deleted"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" bson:"updated_at"`
}

// FirstCourseOrder selects a first-course dish and, when the dish
// declares condiments, exactly one of them.
type FirstCourseOrder struct {
	Item      string `json:"item" bson:"item"`
	Condiment string `json:"condiment,omitempty" bson:"condiment,omitempty"`
}

// SecondCourseOrder selects a second-course dish plus any number of the
// menu's side dishes. Side-dish order is irrelevant.
type SecondCourseOrder struct {
	Item       string   `json:"item" bson:"item"`
	SideDishes []string `json:"side_dishes,omitempty" bson:"side_dishes,omitempty"`
}

func NewOrder() *Order {
	return &Order{
		ID: uuid.New(),
	}
}

func (o *Order) GetID() uuid.UUID {
	return o.ID
}

func (o *Order) SetID(id uuid.UUID) {
	o.ID = id
}

func (o *Order) ResourceType() string {
	return "order"
}

func (o *Order) EnsureID() {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
}

func (o *Order) BeforeCreate() {
	o.EnsureID()
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
}

func (o *Order) BeforeUpdate() {
	o.UpdatedAt = time.Now()
}

// HasFirstCourse reports whether the order selects a first course.
func (o *Order) HasFirstCourse() bool {
	return o.FirstCourse != nil && o.FirstCourse.Item != ""
}

// HasSecondCourse reports whether the order selects a second course.
func (o *Order) HasSecondCourse() bool {
	return o.SecondCourse != nil && o.SecondCourse.Item != ""
}

// MarshalBSON stores UUIDs as strings, matching the repositories' filters.
func (o *Order) MarshalBSON() ([]byte, error) {
	doc := bson.M{
		"_id":        o.ID.String(),
		"owner":      o.Owner.String(),
		"menu":       o.MenuID.String(),
		"table":      o.TableID.String(),
		"deleted":    o.Deleted,
		"created_at": o.CreatedAt,
		"updated_at": o.UpdatedAt,
	}
	if o.Rating != 0 {
		doc["rating"] = o.Rating
	}
	if o.FirstCourse != nil {
		doc["first_course"] = bson.M{
			"item":      o.FirstCourse.Item,
			"condiment": o.FirstCourse.Condiment,
		}
	}
	if o.SecondCourse != nil {
		doc["second_course"] = bson.M{
			"item":        o.SecondCourse.Item,
			"side_dishes": o.SecondCourse.SideDishes,
		}
	}
	return bson.Marshal(doc)
}

func (o *Order) UnmarshalBSON(data []byte) error {
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return err
	}

	o.ID = asUUID(doc["_id"])
	o.Owner = asUUID(doc["owner"])
	o.MenuID = asUUID(doc["menu"])
	o.TableID = asUUID(doc["table"])
	o.Rating = asInt(doc["rating"])
	o.Deleted = asBool(doc["deleted"])
	o.CreatedAt = asTime(doc["created_at"])
	o.UpdatedAt = asTime(doc["updated_at"])

	o.FirstCourse = nil
	if fc, ok := doc["first_course"].(bson.M); ok {
		o.FirstCourse = &FirstCourseOrder{
			Item:      asString(fc["item"]),
			Condiment: asString(fc["condiment"]),
		}
	}

	o.SecondCourse = nil
	if sc, ok := doc["second_course"].(bson.M); ok {
		o.SecondCourse = &SecondCourseOrder{
			Item:       asString(sc["item"]),
			SideDishes: asStrings(sc["side_dishes"]),
		}
	}

	return nil
}

package lunch

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// Table is a dining table members can be seated at. Seats bounds the
// number of active orders the table accepts for a menu.
type Table struct {
	ID        uuid.UUID `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Enabled   bool      `json:"enabled" bson:"enabled"`
	Seats     int       `json:"seats" bson:"seats"`
	Deleted   bool      `json:"deleted" bson:"deleted"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

func NewTable() *Table {
	return &Table{
		ID:      uuid.New(),
		Enabled: true,
		Seats:   1,
	}
}

func (t *Table) GetID() uuid.UUID {
	return t.ID
}

func (t *Table) SetID(id uuid.UUID) {
	t.ID = id
}

func (t *Table) ResourceType() string {
	return "table"
}

func (t *Table) EnsureID() {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
}

func (t *Table) BeforeCreate() {
	t.EnsureID()
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
}

func (t *Table) BeforeUpdate() {
	t.UpdatedAt = time.Now()
}

// Available reports whether the table can appear on a menu.
func (t *Table) Available() bool {
	return t != nil && t.Enabled && !t.Deleted
}

func (t *Table) MarshalBSON() ([]byte, error) {
	return bson.Marshal(bson.M{
		"_id":        t.ID.String(),
		"name":       t.Name,
		"enabled":    t.Enabled,
		"seats":      t.Seats,
		"deleted":    t.Deleted,
		"created_at": t.CreatedAt,
		"updated_at": t.UpdatedAt,
	})
}

func (t *Table) UnmarshalBSON(data []byte) error {
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return err
	}

	t.ID = asUUID(doc["_id"])
	t.Name = asString(doc["name"])
	t.Enabled = asBool(doc["enabled"])
	t.Seats = asInt(doc["seats"])
	t.Deleted = asBool(doc["deleted"])
	t.CreatedAt = asTime(doc["created_at"])
	t.UpdatedAt = asTime(doc["updated_at"])
	return nil
}

package lunch

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// DailyMenu is the single menu published for a calendar day. Orders are
// placed against it until its deadline; at most one enabled, non-deleted
// menu exists per day (enforced by a unique index on the write path).
type DailyMenu struct {
	ID              uuid.UUID    `json:"id" bson:"_id"`
	Owner           uuid.UUID    `json:"owner" bson:"owner"`
	Enabled         bool         `json:"enabled" bson:"enabled"`
	Deleted         bool         `json:"deleted" bson:"deleted"`
	Label           string       `json:"label" bson:"label"`
	FirstCourse     FirstCourse  `json:"first_course" bson:"first_course"`
	SecondCourse    SecondCourse `json:"second_course" bson:"second_course"`
	AdditionalInfos string       `json:"additional_infos,omitempty" bson:"additional_infos,omitempty"`
	Day             time.Time    `json:"day" bson:"day"`
	Deadline        time.Time    `json:"deadline" bson:"deadline"`
	Tables          []uuid.UUID  `json:"tables" bson:"tables"`
	CreatedAt       time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" bson:"updated_at"`
}

// FirstCourse lists the first-course dishes, each with the condiments it
// can be ordered with.
type FirstCourse struct {
	Items []CourseItem `json:"items" bson:"items"`
}

// CourseItem is a first-course dish. An empty condiment list means the
// dish is ordered plain.
type CourseItem struct {
	Value      string   `json:"value" bson:"value"`
	Condiments []string `json:"condiments" bson:"condiments"`
}

// SecondCourse lists the second-course dishes and the side dishes any of
// them can be paired with.
type SecondCourse struct {
	Items      []string `json:"items" bson:"items"`
	SideDishes []string `json:"side_dishes" bson:"side_dishes"`
}

func NewDailyMenu() *DailyMenu {
	return &DailyMenu{
		ID:      uuid.New(),
		Enabled: true,
		Tables:  []uuid.UUID{},
	}
}

func (m *DailyMenu) GetID() uuid.UUID {
	return m.ID
}

func (m *DailyMenu) SetID(id uuid.UUID) {
	m.ID = id
}

func (m *DailyMenu) ResourceType() string {
	return "menu"
}

func (m *DailyMenu) EnsureID() {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
}

func (m *DailyMenu) BeforeCreate() {
	m.EnsureID()
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	m.Day = TruncateDay(m.Day)
	if m.Tables == nil {
		m.Tables = []uuid.UUID{}
	}
}

func (m *DailyMenu) BeforeUpdate() {
	m.UpdatedAt = time.Now()
	m.Day = TruncateDay(m.Day)
}

// Active reports whether orders may still reference the menu.
func (m *DailyMenu) Active() bool {
	return m != nil && m.Enabled && !m.Deleted
}

// DeadlinePassed reports whether ordering closed at the given instant.
func (m *DailyMenu) DeadlinePassed(now time.Time) bool {
	return !now.Before(m.Deadline)
}

// Clone returns a deep copy, used to snapshot a menu before editing it.
func (m *DailyMenu) Clone() *DailyMenu {
	if m == nil {
		return nil
	}
	out := *m
	out.FirstCourse.Items = make([]CourseItem, len(m.FirstCourse.Items))
	for i, item := range m.FirstCourse.Items {
		out.FirstCourse.Items[i] = CourseItem{
			Value:      item.Value,
			Condiments: append([]string(nil), item.Condiments...),
		}
	}
	out.SecondCourse.Items = append([]string(nil), m.SecondCourse.Items...)
	out.SecondCourse.SideDishes = append([]string(nil), m.SecondCourse.SideDishes...)
	out.Tables = append([]uuid.UUID(nil), m.Tables...)
	return &out
}

// TruncateDay drops the time-of-day component so menus match by calendar
// day regardless of the submitted timestamp.
func TruncateDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

// MarshalBSON stores UUIDs as strings, matching the repositories' filters.
func (m *DailyMenu) MarshalBSON() ([]byte, error) {
	items := make([]bson.M, len(m.FirstCourse.Items))
	for i, item := range m.FirstCourse.Items {
		items[i] = bson.M{
			"value":      item.Value,
			"condiments": item.Condiments,
		}
	}

	tables := make([]string, len(m.Tables))
	for i, id := range m.Tables {
		tables[i] = id.String()
	}

	return bson.Marshal(bson.M{
		"_id":     m.ID.String(),
		"owner":   m.Owner.String(),
		"enabled": m.Enabled,
		"deleted": m.Deleted,
		"label":   m.Label,
		"first_course": bson.M{
			"items": items,
		},
		"second_course": bson.M{
			"items":       m.SecondCourse.Items,
			"side_dishes": m.SecondCourse.SideDishes,
		},
		"additional_infos": m.AdditionalInfos,
		"day":              m.Day,
		"deadline":         m.Deadline,
		"tables":           tables,
		"created_at":       m.CreatedAt,
		"updated_at":       m.UpdatedAt,
	})
}

func (m *DailyMenu) UnmarshalBSON(data []byte) error {
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return err
	}

	m.ID = asUUID(doc["_id"])
	m.Owner = asUUID(doc["owner"])
	m.Enabled = asBool(doc["enabled"])
	m.Deleted = asBool(doc["deleted"])
	m.Label = asString(doc["label"])
	m.AdditionalInfos = asString(doc["additional_infos"])
	m.Day = asTime(doc["day"])
	m.Deadline = asTime(doc["deadline"])
	m.CreatedAt = asTime(doc["created_at"])
	m.UpdatedAt = asTime(doc["updated_at"])

	m.Tables = nil
	if arr, ok := doc["tables"].(bson.A); ok {
		m.Tables = make([]uuid.UUID, 0, len(arr))
		for _, v := range arr {
			if id := asUUID(v); id != uuid.Nil {
				m.Tables = append(m.Tables, id)
			}
		}
	}

	m.FirstCourse = FirstCourse{}
	if fc, ok := doc["first_course"].(bson.M); ok {
		if arr, ok := fc["items"].(bson.A); ok {
			m.FirstCourse.Items = make([]CourseItem, 0, len(arr))
			for _, v := range arr {
				itemDoc, ok := v.(bson.M)
				if !ok {
					continue
				}
				m.FirstCourse.Items = append(m.FirstCourse.Items, CourseItem{
					Value:      asString(itemDoc["value"]),
					Condiments: asStrings(itemDoc["condiments"]),
				})
			}
		}
	}

	m.SecondCourse = SecondCourse{}
	if sc, ok := doc["second_course"].(bson.M); ok {
		m.SecondCourse.Items = asStrings(sc["items"])
		m.SecondCourse.SideDishes = asStrings(sc["side_dishes"])
	}

	return nil
}

package lunch

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestDailyMenuLifecycle(t *testing.T) {
	menu := NewDailyMenu()
	if menu.ID == uuid.Nil {
		t.Error("new menu has no id")
	}
	if !menu.Enabled {
		t.Error("new menu should be enabled")
	}

	menu.Day = time.Date(2026, 3, 2, 13, 45, 0, 0, time.UTC)
	menu.BeforeCreate()

	if menu.CreatedAt.IsZero() || menu.UpdatedAt.IsZero() {
		t.Error("timestamps not set on create")
	}
	if menu.Day.Hour() != 0 || menu.Day.Minute() != 0 {
		t.Errorf("day not truncated: %v", menu.Day)
	}
	if menu.Tables == nil {
		t.Error("tables should never be nil after create")
	}
}

func TestDailyMenuActive(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		deleted bool
		want    bool
	}{
		{"enabledLive", true, false, true},
		{"disabled", false, false, false},
		{"deleted", true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			menu := NewDailyMenu()
			menu.Enabled = tt.enabled
			menu.Deleted = tt.deleted
			if got := menu.Active(); got != tt.want {
				t.Errorf("Active() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDailyMenuDeadlinePassed(t *testing.T) {
	deadline := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	menu := NewDailyMenu()
	menu.Deadline = deadline

	if menu.DeadlinePassed(deadline.Add(-time.Second)) {
		t.Error("deadline reported passed before it arrived")
	}
	// The deadline instant itself is already too late.
	if !menu.DeadlinePassed(deadline) {
		t.Error("deadline instant should count as passed")
	}
	if !menu.DeadlinePassed(deadline.Add(time.Second)) {
		t.Error("deadline not passed after it elapsed")
	}
}

func TestDailyMenuCloneIsDeep(t *testing.T) {
	menu := wellFormedMenu()
	clone := menu.Clone()

	clone.FirstCourse.Items[0].Value = "changed"
	clone.FirstCourse.Items[0].Condiments[0] = "changed"
	clone.SecondCourse.Items[0] = "changed"
	clone.SecondCourse.SideDishes[0] = "changed"
	clone.Tables[0] = uuid.New()

	if menu.FirstCourse.Items[0].Value == "changed" {
		t.Error("clone shares first-course items")
	}
	if menu.FirstCourse.Items[0].Condiments[0] == "changed" {
		t.Error("clone shares condiment slices")
	}
	if menu.SecondCourse.Items[0] == "changed" || menu.SecondCourse.SideDishes[0] == "changed" {
		t.Error("clone shares second-course slices")
	}
	if menu.Tables[0] == clone.Tables[0] {
		t.Error("clone shares the tables slice")
	}
}

func TestTruncateDay(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	in := time.Date(2026, 7, 14, 23, 59, 59, 123, loc)
	got := TruncateDay(in)

	if got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 || got.Nanosecond() != 0 {
		t.Errorf("time-of-day survives truncation: %v", got)
	}
	if got.Location() != loc {
		t.Error("truncation lost the location")
	}
	if got.Day() != 14 {
		t.Error("truncation changed the calendar day")
	}
}

func TestDailyMenuBSONRoundTrip(t *testing.T) {
	menu := wellFormedMenu()
	menu.Owner = uuid.New()
	menu.Label = "Lunedi"
	menu.Day = TruncateDay(time.Now().UTC())
	menu.Deadline = menu.Day.Add(11 * time.Hour)
	menu.BeforeCreate()

	data, err := menu.MarshalBSON()
	if err != nil {
		t.Fatalf("MarshalBSON() error: %v", err)
	}

	var decoded DailyMenu
	if err := decoded.UnmarshalBSON(data); err != nil {
		t.Fatalf("UnmarshalBSON() error: %v", err)
	}

	if decoded.ID != menu.ID || decoded.Owner != menu.Owner {
		t.Error("identity fields lost")
	}
	if len(decoded.FirstCourse.Items) != len(menu.FirstCourse.Items) {
		t.Fatalf("first-course items = %d, want %d", len(decoded.FirstCourse.Items), len(menu.FirstCourse.Items))
	}
	if decoded.FirstCourse.Items[0].Value != "spaghetti" {
		t.Errorf("item value = %q", decoded.FirstCourse.Items[0].Value)
	}
	if len(decoded.Tables) != 1 || decoded.Tables[0] != menu.Tables[0] {
		t.Error("tables lost")
	}
	if !decoded.Day.Equal(menu.Day) {
		t.Errorf("day = %v, want %v", decoded.Day, menu.Day)
	}
	if !decoded.Enabled {
		t.Error("enabled flag lost")
	}
}

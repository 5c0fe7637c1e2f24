package lunch

import (
	"testing"

	"github.com/google/uuid"
)

func wellFormedMenu() *DailyMenu {
	menu := NewDailyMenu()
	menu.FirstCourse = FirstCourse{
		Items: []CourseItem{
			{Value: "spaghetti", Condiments: []string{"pomodoro", "carbonara"}},
			{Value: "minestrone"},
		},
	}
	menu.SecondCourse = SecondCourse{
		Items:      []string{"pollo arrosto", "frittata"},
		SideDishes: []string{"insalata", "patate"},
	}
	menu.Tables = []uuid.UUID{uuid.New()}
	return menu
}

func TestNewMenuIndexWellFormed(t *testing.T) {
	menu := wellFormedMenu()

	idx, errs := NewMenuIndex(menu)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if idx == nil {
		t.Fatal("index is nil")
	}

	if !idx.HasFirstCourse("spaghetti") {
		t.Error("spaghetti missing from index")
	}
	if !idx.HasTable(menu.Tables[0]) {
		t.Error("table missing from index")
	}
}

func TestNewMenuIndexRejectsBlankEntries(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*DailyMenu)
		wantField string
	}{
		{
			name: "blankFirstCourseItem",
			mutate: func(m *DailyMenu) {
				m.FirstCourse.Items = append(m.FirstCourse.Items, CourseItem{Value: "   "})
			},
			wantField: "first_course.items[2].value",
		},
		{
			name: "blankCondiment",
			mutate: func(m *DailyMenu) {
				m.FirstCourse.Items[0].Condiments = append(m.FirstCourse.Items[0].Condiments, "")
			},
			wantField: "first_course.items[0].condiments[2]",
		},
		{
			name: "blankSecondCourseItem",
			mutate: func(m *DailyMenu) {
				m.SecondCourse.Items = append(m.SecondCourse.Items, " ")
			},
			wantField: "second_course.items[2]",
		},
		{
			name: "blankSideDish",
			mutate: func(m *DailyMenu) {
				m.SecondCourse.SideDishes = append(m.SecondCourse.SideDishes, "")
			},
			wantField: "second_course.side_dishes[2]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			menu := wellFormedMenu()
			tt.mutate(menu)

			idx, errs := NewMenuIndex(menu)
			if idx != nil {
				t.Error("index returned despite errors")
			}
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
			}
			if errs[0].Code != CodeBlankEntry {
				t.Errorf("code = %s, want %s", errs[0].Code, CodeBlankEntry)
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("field = %s, want %s", errs[0].Field, tt.wantField)
			}
		})
	}
}

func TestNewMenuIndexRejectsCaseInsensitiveDuplicates(t *testing.T) {
	menu := wellFormedMenu()
	menu.FirstCourse.Items = append(menu.FirstCourse.Items, CourseItem{Value: "Spaghetti "})

	_, errs := NewMenuIndex(menu)
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	if errs[0].Code != CodeDuplicateEntry {
		t.Errorf("code = %s, want %s", errs[0].Code, CodeDuplicateEntry)
	}
}

func TestNewMenuIndexReportsAllErrors(t *testing.T) {
	menu := wellFormedMenu()
	menu.SecondCourse.Items = append(menu.SecondCourse.Items, "", "FRITTATA")

	_, errs := NewMenuIndex(menu)
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(errs), errs)
	}
}

func TestMenuIndexLookupsAreCaseInsensitive(t *testing.T) {
	menu := wellFormedMenu()
	idx, errs := NewMenuIndex(menu)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if !idx.HasFirstCourse("  SPAGHETTI ") {
		t.Error("first-course lookup not case-insensitive")
	}
	if !idx.AllowsCondiment("Spaghetti", "POMODORO") {
		t.Error("condiment lookup not case-insensitive")
	}
	if !idx.HasSecondCourse("Pollo Arrosto") {
		t.Error("second-course lookup not case-insensitive")
	}
	if !idx.HasSideDish(" Insalata") {
		t.Error("side-dish lookup not case-insensitive")
	}
}

func TestMenuIndexRequiresCondiment(t *testing.T) {
	menu := wellFormedMenu()
	idx, _ := NewMenuIndex(menu)

	if !idx.RequiresCondiment("spaghetti") {
		t.Error("spaghetti declares condiments, one should be required")
	}
	if idx.RequiresCondiment("minestrone") {
		t.Error("minestrone has no condiments, none should be required")
	}
	if idx.RequiresCondiment("not-on-menu") {
		t.Error("unknown item cannot require a condiment")
	}
}

func TestLooseMenuIndexToleratesMalformedMenus(t *testing.T) {
	menu := wellFormedMenu()
	menu.FirstCourse.Items = append(menu.FirstCourse.Items,
		CourseItem{Value: ""},
		CourseItem{Value: "Spaghetti", Condiments: []string{"pesto", ""}},
	)

	idx := looseMenuIndex(menu)
	if !idx.HasFirstCourse("spaghetti") {
		t.Error("duplicate item lost")
	}
	// Duplicates collapse: the condiment sets merge.
	if !idx.AllowsCondiment("spaghetti", "pesto") || !idx.AllowsCondiment("spaghetti", "pomodoro") {
		t.Error("condiments of duplicate entries did not merge")
	}

	if nilIdx := looseMenuIndex(nil); nilIdx.HasFirstCourse("spaghetti") {
		t.Error("nil menu produced a non-empty index")
	}
}

func TestJoinSideDishes(t *testing.T) {
	tests := []struct {
		name   string
		dishes []string
		want   string
	}{
		{"sortedAndFolded", []string{"Patate", "insalata "}, "insalata, patate"},
		{"blanksDropped", []string{"", "zucchine", "  "}, "zucchine"},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinSideDishes(tt.dishes); got != tt.want {
				t.Errorf("JoinSideDishes(%v) = %q, want %q", tt.dishes, got, tt.want)
			}
		})
	}
}

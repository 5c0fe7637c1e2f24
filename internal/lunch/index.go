package lunch

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// MenuIndex is the lookup view of a daily menu used by order validation
// and by menu diffing: case-folded first-course items mapped to their
// allowed condiments, second-course items, side dishes, and the tables
// the menu is served at.
type MenuIndex struct {
	firstCourses  map[string]map[string]struct{}
	secondCourses map[string]struct{}
	sideDishes    map[string]struct{}
	tables        map[uuid.UUID]struct{}
}

// NewMenuIndex builds the strict index used on validated write paths.
// Blank entries and case-insensitive duplicates within a list are
// reported per field; a non-empty result means the menu must not be
// accepted.
func NewMenuIndex(m *DailyMenu) (*MenuIndex, []ValidationError) {
	idx := newIndex()
	var errs []ValidationError

	for i, item := range m.FirstCourse.Items {
		field := fmt.Sprintf("first_course.items[%d].value", i)
		key, err := idx.addFirstCourse(item.Value, field)
		if err != nil {
			errs = append(errs, *err)
			continue
		}
		for j, condiment := range item.Condiments {
			field := fmt.Sprintf("first_course.items[%d].condiments[%d]", i, j)
			if err := idx.addCondiment(key, condiment, field); err != nil {
				errs = append(errs, *err)
			}
		}
	}

	for i, item := range m.SecondCourse.Items {
		field := fmt.Sprintf("second_course.items[%d]", i)
		if err := addEntry(idx.secondCourses, item, field); err != nil {
			errs = append(errs, *err)
		}
	}

	for i, dish := range m.SecondCourse.SideDishes {
		field := fmt.Sprintf("second_course.side_dishes[%d]", i)
		if err := addEntry(idx.sideDishes, dish, field); err != nil {
			errs = append(errs, *err)
		}
	}

	for _, id := range m.Tables {
		idx.tables[id] = struct{}{}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return idx, nil
}

// looseMenuIndex builds the index without validation. Blank entries are
// skipped and duplicates collapse into the same folded key. The diff uses
// it: a menu edit never raises validation errors of its own.
func looseMenuIndex(m *DailyMenu) *MenuIndex {
	idx := newIndex()
	if m == nil {
		return idx
	}

	for _, item := range m.FirstCourse.Items {
		key := fold(item.Value)
		if key == "" {
			continue
		}
		condiments, ok := idx.firstCourses[key]
		if !ok {
			condiments = make(map[string]struct{})
			idx.firstCourses[key] = condiments
		}
		for _, condiment := range item.Condiments {
			if c := fold(condiment); c != "" {
				condiments[c] = struct{}{}
			}
		}
	}

	for _, item := range m.SecondCourse.Items {
		if key := fold(item); key != "" {
			idx.secondCourses[key] = struct{}{}
		}
	}
	for _, dish := range m.SecondCourse.SideDishes {
		if key := fold(dish); key != "" {
			idx.sideDishes[key] = struct{}{}
		}
	}
	for _, id := range m.Tables {
		idx.tables[id] = struct{}{}
	}
	return idx
}

func newIndex() *MenuIndex {
	return &MenuIndex{
		firstCourses:  make(map[string]map[string]struct{}),
		secondCourses: make(map[string]struct{}),
		sideDishes:    make(map[string]struct{}),
		tables:        make(map[uuid.UUID]struct{}),
	}
}

func (idx *MenuIndex) addFirstCourse(value, field string) (string, *ValidationError) {
	key := fold(value)
	if key == "" {
		return "", rejectField(CodeBlankEntry, field, "item cannot be blank")
	}
	if _, dup := idx.firstCourses[key]; dup {
		return "", rejectField(CodeDuplicateEntry, field, fmt.Sprintf("duplicate item %q", key))
	}
	idx.firstCourses[key] = make(map[string]struct{})
	return key, nil
}

func (idx *MenuIndex) addCondiment(item, condiment, field string) *ValidationError {
	return addEntry(idx.firstCourses[item], condiment, field)
}

func addEntry(set map[string]struct{}, value, field string) *ValidationError {
	key := fold(value)
	if key == "" {
		return rejectField(CodeBlankEntry, field, "entry cannot be blank")
	}
	if _, dup := set[key]; dup {
		return rejectField(CodeDuplicateEntry, field, fmt.Sprintf("duplicate entry %q", key))
	}
	set[key] = struct{}{}
	return nil
}

// HasTable reports whether the menu is served at the given table.
func (idx *MenuIndex) HasTable(id uuid.UUID) bool {
	_, ok := idx.tables[id]
	return ok
}

// HasFirstCourse reports whether the menu offers the item, case-insensitively.
func (idx *MenuIndex) HasFirstCourse(item string) bool {
	_, ok := idx.firstCourses[fold(item)]
	return ok
}

// RequiresCondiment reports whether the first-course item declares a
// non-empty condiment list, which makes picking one mandatory.
func (idx *MenuIndex) RequiresCondiment(item string) bool {
	condiments, ok := idx.firstCourses[fold(item)]
	return ok && len(condiments) > 0
}

// AllowsCondiment reports whether the condiment is declared for the item.
func (idx *MenuIndex) AllowsCondiment(item, condiment string) bool {
	condiments, ok := idx.firstCourses[fold(item)]
	if !ok {
		return false
	}
	_, ok = condiments[fold(condiment)]
	return ok
}

// HasSecondCourse reports whether the menu offers the item, case-insensitively.
func (idx *MenuIndex) HasSecondCourse(item string) bool {
	_, ok := idx.secondCourses[fold(item)]
	return ok
}

// HasSideDish reports whether the menu offers the side dish.
func (idx *MenuIndex) HasSideDish(dish string) bool {
	_, ok := idx.sideDishes[fold(dish)]
	return ok
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var sideDishCollator = collate.New(language.Italian, collate.Loose)

// JoinSideDishes renders a side-dish selection in its canonical
// human-readable form: folded, alphabetically sorted with locale-aware
// collation, comma-joined. Used for grouping identical selections in
// summaries, never for equality checks.
func JoinSideDishes(dishes []string) string {
	folded := make([]string, 0, len(dishes))
	for _, d := range dishes {
		if f := fold(d); f != "" {
			folded = append(folded, f)
		}
	}
	sideDishCollator.SortStrings(folded)
	return strings.Join(folded, ", ")
}

package lunch

import "fmt"

// Rejection codes. Every business-rule failure carries one so the HTTP
// layer can answer with something machine-readable, not just prose.
const (
	CodeNoDailyMenu         = "no_daily_menu"
	CodeUnknownTable        = "unknown_table"
	CodeCourseSelection     = "select_exactly_one_course"
	CodeUnknownItem         = "unknown_item"
	CodeCondimentRequired   = "condiment_required"
	CodeCondimentNotAllowed = "condiment_not_allowed"
	CodeUnknownCondiment    = "unknown_condiment"
	CodeUnknownSideDish     = "unknown_side_dish"
	CodeDeadlinePassed      = "deadline_passed"
	CodeAlreadyOrdered      = "already_ordered"
	CodeTableFull           = "table_full"

	CodeBlankEntry     = "blank_entry"
	CodeDuplicateEntry = "duplicate_entry"
)

// ValidationError is a definitive business-rule rejection. It is never
// retried; the caller surfaces it as a client error keyed by Code.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
}

func reject(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

func rejectField(code, field, message string) *ValidationError {
	return &ValidationError{Code: code, Field: field, Message: message}
}

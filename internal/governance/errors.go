package governance

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies rule failures for the calling application.
type ErrorKind string

const (
	// KindValidation marks malformed or out-of-policy input.
	KindValidation ErrorKind = "validation"
	// KindConflict marks overlaps and illegal state transitions.
	KindConflict ErrorKind = "conflict"
)

// Rule identifiers reported on RuleError and Decision.
const (
	RuleTermName         = "term_name"
	RuleDateFormat       = "date_format"
	RuleDateOrder        = "date_order"
	RuleDateWindow       = "date_window"
	RuleOverlap          = "overlap"
	RuleNotUpcoming      = "not_upcoming"
	RuleActiveExists     = "active_term_exists"
	RuleNotActive        = "not_active"
	RuleForceOnStartDate = "force_on_start_date"
	RuleExtendEarlier    = "extend_not_later"
	RuleExtendState      = "extend_state"
	RuleDatesLocked      = "dates_locked"
	RuleHasOfficials     = "has_officials"
)

// ErrUnknownPosition is returned when capacity is requested for a position the table
// does not define. It signals a programming or configuration mistake.
var ErrUnknownPosition = errors.New("unknown position")

// RuleError describes why a validation or transition was rejected. Reasons holds every
// failed rule message so callers can present the complete list at once.
type RuleError struct {
	Kind    ErrorKind
	Rule    string
	Reasons []string
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if len(e.Reasons) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Rule)
	}
	return strings.Join(e.Reasons, "; ")
}

func conflict(rule, reason string) *RuleError {
	return &RuleError{Kind: KindConflict, Rule: rule, Reasons: []string{reason}}
}

// AsRuleError unwraps err into a RuleError when possible.
func AsRuleError(err error) (*RuleError, bool) {
	var re *RuleError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// WarningCode identifies a data integrity problem found while aggregating.
type WarningCode string

const (
	WarningOverCapacity      WarningCode = "over_capacity"
	WarningUnknownPosition   WarningCode = "unknown_position"
	WarningUnknownBarangay   WarningCode = "unknown_barangay"
	WarningDuplicateBarangay WarningCode = "duplicate_barangay"
)

// DataIntegrityWarning is reported alongside statistics but never blocks them.
type DataIntegrityWarning struct {
	Code       WarningCode `json:"code"`
	BarangayID string      `json:"barangay_id,omitempty"`
	Position   string      `json:"position,omitempty"`
	Count      int         `json:"count,omitempty"`
	Message    string      `json:"message"`
}

package governance

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/noah-isme/sk-governance-api/internal/models"
)

const (
	minTermNameLength = 3
	maxTermNameLength = 100
)

var termNameMessage = fmt.Sprintf("term name must be between %d and %d characters", minTermNameLength, maxTermNameLength)

// checkName trims name and reports whether its length is within bounds.
func checkName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	return name, n >= minTermNameLength && n <= maxTermNameLength
}

// TermCandidate is the user-supplied shape of a term before it is committed.
type TermCandidate struct {
	Name      string `json:"term_name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// OverlapConflict identifies an existing term whose dates intersect the candidate.
type OverlapConflict struct {
	TermID    string `json:"term_id"`
	TermName  string `json:"term_name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// ValidationResult collects every failed rule for a candidate.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Errors    []string          `json:"errors"`
	Conflicts []OverlapConflict `json:"conflicts,omitempty"`

	// Start and End hold the parsed dates when they were valid.
	Start time.Time `json:"-"`
	End   time.Time `json:"-"`

	rules []string
}

func (r *ValidationResult) fail(rule, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, message)
	r.rules = append(r.rules, rule)
}

// Err converts a failed result into a RuleError. Results whose only failures are
// overlaps are conflicts; anything else is a validation error.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	kind := KindConflict
	for _, rule := range r.rules {
		if rule != RuleOverlap {
			kind = KindValidation
			break
		}
	}
	rule := ""
	if len(r.rules) > 0 {
		rule = r.rules[0]
	}
	reasons := make([]string, len(r.Errors))
	copy(reasons, r.Errors)
	return &RuleError{Kind: kind, Rule: rule, Reasons: reasons}
}

// DateValidator checks term names and date ranges against policy and existing terms.
type DateValidator struct {
	MaxPastYears   int
	MaxFutureYears int
}

// DefaultDateValidator allows start dates up to 5 years back and end dates up to 10
// years ahead.
func DefaultDateValidator() DateValidator {
	return DateValidator{MaxPastYears: 5, MaxFutureYears: 10}
}

// ValidateTermDates validates candidate with the default policy.
func ValidateTermDates(candidate TermCandidate, existing []models.Term, excludeTermID string, now time.Time) ValidationResult {
	return DefaultDateValidator().Validate(candidate, existing, excludeTermID, now)
}

// Validate runs every rule and collects all failures. The overlap check is skipped when
// the dates themselves are unusable.
func (v DateValidator) Validate(candidate TermCandidate, existing []models.Term, excludeTermID string, now time.Time) ValidationResult {
	if v.MaxPastYears <= 0 {
		v.MaxPastYears = 5
	}
	if v.MaxFutureYears <= 0 {
		v.MaxFutureYears = 10
	}
	result := ValidationResult{Valid: true, Errors: []string{}}

	if _, ok := checkName(candidate.Name); !ok {
		result.fail(RuleTermName, termNameMessage)
	}

	start, startErr := ParseDate(candidate.StartDate)
	if startErr != nil {
		result.fail(RuleDateFormat, "start date is not a valid calendar date")
	}
	end, endErr := ParseDate(candidate.EndDate)
	if endErr != nil {
		result.fail(RuleDateFormat, "end date is not a valid calendar date")
	}
	if startErr != nil || endErr != nil {
		return result
	}
	result.Start, result.End = start, end

	ordered := start.Before(end)
	if !ordered {
		result.fail(RuleDateOrder, "start date must be before end date")
	}

	today := DateOf(now)
	if start.Before(today.AddDate(-v.MaxPastYears, 0, 0)) {
		result.fail(RuleDateWindow, fmt.Sprintf("start date cannot be more than %d years in the past", v.MaxPastYears))
	}
	if end.After(today.AddDate(v.MaxFutureYears, 0, 0)) {
		result.fail(RuleDateWindow, fmt.Sprintf("end date cannot be more than %d years in the future", v.MaxFutureYears))
	}

	if !ordered {
		return result
	}
	for _, term := range existing {
		if excludeTermID != "" && term.ID == excludeTermID {
			continue
		}
		if !intervalsIntersect(start, end, term.StartDate, term.EndDate) {
			continue
		}
		c := OverlapConflict{
			TermID:    term.ID,
			TermName:  term.Name,
			StartDate: FormatDate(term.StartDate),
			EndDate:   FormatDate(term.EndDate),
		}
		result.Conflicts = append(result.Conflicts, c)
		result.fail(RuleOverlap, fmt.Sprintf("term dates overlap with %q (%s to %s)", c.TermName, c.StartDate, c.EndDate))
	}
	return result
}

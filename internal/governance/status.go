package governance

import (
	"time"

	"github.com/noah-isme/sk-governance-api/internal/models"
)

// DeriveStatus computes the display status of a term on now's calendar date. An explicit
// completion flag wins over the dates.
func DeriveStatus(term models.Term, now time.Time) models.TermStatus {
	if term.CompletedAt != nil {
		return models.TermStatusCompleted
	}
	today := DateOf(now)
	switch {
	case today.Before(DateOf(term.StartDate)):
		return models.TermStatusUpcoming
	case today.After(DateOf(term.EndDate)):
		return models.TermStatusCompleted
	default:
		return models.TermStatusActive
	}
}

// IsOverdue reports whether a term is still committed as active although its end date
// has passed. Operators are prompted to complete such terms and the reconcile sweep
// completes them.
func IsOverdue(term models.Term, now time.Time) bool {
	return term.Status == models.TermStatusActive &&
		term.CompletedAt == nil &&
		DateOf(now).After(DateOf(term.EndDate))
}

// OccupiesActiveSlot reports whether term counts against the single active term
// allowed system-wide. Overdue terms keep the slot until they are completed.
func OccupiesActiveSlot(term models.Term, now time.Time) bool {
	if term.CompletedAt != nil {
		return false
	}
	return term.Status == models.TermStatusActive || DeriveStatus(term, now) == models.TermStatusActive
}

// ActiveOccupant returns the first term in terms, other than excludeID, holding the
// active slot.
func ActiveOccupant(terms []models.Term, excludeID string, now time.Time) (models.Term, bool) {
	for _, term := range terms {
		if excludeID != "" && term.ID == excludeID {
			continue
		}
		if OccupiesActiveSlot(term, now) {
			return term, true
		}
	}
	return models.Term{}, false
}

// WithDerivedStatus returns a copy of term whose Status reflects DeriveStatus. Overdue
// terms keep their committed active status so callers can still see them.
func WithDerivedStatus(term models.Term, now time.Time) models.Term {
	if IsOverdue(term, now) {
		return term
	}
	term.Status = DeriveStatus(term, now)
	return term
}

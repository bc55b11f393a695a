package governance

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sk-governance-api/internal/models"
)

// TransitionKind names an operator-triggered term transition.
type TransitionKind string

const (
	TransitionCreate        TransitionKind = "create"
	TransitionUpdate        TransitionKind = "update"
	TransitionActivate      TransitionKind = "activate"
	TransitionComplete      TransitionKind = "complete"
	TransitionForceComplete TransitionKind = "force_complete"
	TransitionExtend        TransitionKind = "extend"
	TransitionReconcile     TransitionKind = "reconcile"
)

// Transition is the outcome of an accepted transition. After is the state the caller
// must persist; Before is the input copy.
type Transition struct {
	Kind     TransitionKind
	Before   models.Term
	After    models.Term
	Reason   string
	Reopened bool
}

// Decision answers a "can this happen" question without applying anything.
type Decision struct {
	OK     bool   `json:"ok"`
	Rule   string `json:"rule,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func deny(rule, reason string) Decision {
	return Decision{Rule: rule, Reason: reason}
}

// Policy tunes lifecycle behaviour.
type Policy struct {
	// ReopenOnExtend clears the completion flag when a completed term is extended, so a
	// new end date covering today makes the term active again.
	ReopenOnExtend bool
	Dates          DateValidator
}

// DefaultPolicy keeps reopen-on-extend enabled.
func DefaultPolicy() Policy {
	return Policy{ReopenOnExtend: true, Dates: DefaultDateValidator()}
}

// Lifecycle applies the term state machine.
type Lifecycle struct {
	policy Policy
}

// NewLifecycle constructs a lifecycle with the provided policy.
func NewLifecycle(policy Policy) *Lifecycle {
	return &Lifecycle{policy: policy}
}

// Policy returns the effective policy.
func (l *Lifecycle) Policy() Policy {
	return l.policy
}

// Validate runs the date/overlap validator under the lifecycle policy.
func (l *Lifecycle) Validate(candidate TermCandidate, existing []models.Term, excludeTermID string, now time.Time) ValidationResult {
	return l.policy.Dates.Validate(candidate, existing, excludeTermID, now)
}

// Create validates a new term against every existing term and initialises its status.
func (l *Lifecycle) Create(candidate TermCandidate, existing []models.Term, now time.Time) (Transition, error) {
	res := l.Validate(candidate, existing, "", now)
	if !res.Valid {
		return Transition{}, res.Err()
	}
	term := models.Term{
		Name:      strings.TrimSpace(candidate.Name),
		StartDate: res.Start,
		EndDate:   res.End,
	}
	term.Status = DeriveStatus(term, now)
	if term.Status == models.TermStatusActive {
		if other, ok := ActiveOccupant(existing, "", now); ok {
			return Transition{}, conflict(RuleActiveExists, fmt.Sprintf("term %q is already active", other.Name))
		}
	}
	return Transition{Kind: TransitionCreate, After: term}, nil
}

// Update renames a term and, while it is upcoming, moves its dates. Dates of active and
// completed terms only change through Extend and Complete.
func (l *Lifecycle) Update(term models.Term, candidate TermCandidate, all []models.Term, now time.Time) (Transition, error) {
	if strings.TrimSpace(candidate.StartDate) == "" {
		candidate.StartDate = FormatDate(term.StartDate)
	}
	if strings.TrimSpace(candidate.EndDate) == "" {
		candidate.EndDate = FormatDate(term.EndDate)
	}

	next := term
	if DeriveStatus(term, now) != models.TermStatusUpcoming {
		if candidate.StartDate != FormatDate(term.StartDate) || candidate.EndDate != FormatDate(term.EndDate) {
			return Transition{}, conflict(RuleDatesLocked, "dates can only be edited while a term is upcoming; use extend or complete instead")
		}
		name, ok := checkName(candidate.Name)
		if !ok {
			return Transition{}, &RuleError{Kind: KindValidation, Rule: RuleTermName, Reasons: []string{termNameMessage}}
		}
		next.Name = name
		return Transition{Kind: TransitionUpdate, Before: term, After: next}, nil
	}

	res := l.Validate(candidate, all, term.ID, now)
	if !res.Valid {
		return Transition{}, res.Err()
	}
	next.Name = strings.TrimSpace(candidate.Name)
	next.StartDate = res.Start
	next.EndDate = res.End
	next.Status = DeriveStatus(next, now)
	if next.Status == models.TermStatusActive {
		if other, ok := ActiveOccupant(all, term.ID, now); ok {
			return Transition{}, conflict(RuleActiveExists, fmt.Sprintf("term %q is already active", other.Name))
		}
	}
	return Transition{Kind: TransitionUpdate, Before: term, After: next}, nil
}

// CanActivate reports whether term may move from upcoming to active.
func (l *Lifecycle) CanActivate(term models.Term, all []models.Term, now time.Time) Decision {
	if status := DeriveStatus(term, now); status != models.TermStatusUpcoming {
		return deny(RuleNotUpcoming, fmt.Sprintf("term is %s; only upcoming terms can be activated", status))
	}
	if other, ok := ActiveOccupant(all, term.ID, now); ok {
		return deny(RuleActiveExists, fmt.Sprintf("term %q is already active", other.Name))
	}
	return Decision{OK: true}
}

// Activate starts an upcoming term today. The start date is brought forward so the
// date-derived status agrees with the committed one.
func (l *Lifecycle) Activate(term models.Term, all []models.Term, now time.Time) (Transition, error) {
	if d := l.CanActivate(term, all, now); !d.OK {
		return Transition{}, conflict(d.Rule, d.Reason)
	}
	today := DateOf(now)
	res := l.Validate(TermCandidate{
		Name:      term.Name,
		StartDate: FormatDate(today),
		EndDate:   FormatDate(term.EndDate),
	}, all, term.ID, now)
	if !res.Valid {
		return Transition{}, res.Err()
	}
	next := term
	next.StartDate = today
	next.CompletedAt = nil
	next.Status = models.TermStatusActive
	return Transition{Kind: TransitionActivate, Before: term, After: next}, nil
}

// Complete ends an active (or overdue) term. A forced completion also moves the end date
// back to today; the original end date is not kept.
func (l *Lifecycle) Complete(term models.Term, force bool, now time.Time) (Transition, error) {
	if term.CompletedAt != nil || (DeriveStatus(term, now) != models.TermStatusActive && !IsOverdue(term, now)) {
		return Transition{}, conflict(RuleNotActive, fmt.Sprintf("term is %s; only active terms can be completed", DeriveStatus(term, now)))
	}
	today := DateOf(now)
	kind := TransitionComplete
	next := term
	if force {
		if !today.After(DateOf(term.StartDate)) {
			return Transition{}, conflict(RuleForceOnStartDate, "a term cannot be force-completed on its start date")
		}
		if today.Before(DateOf(term.EndDate)) {
			next.EndDate = today
		}
		kind = TransitionForceComplete
	}
	completedAt := now
	next.CompletedAt = &completedAt
	next.Status = models.TermStatusCompleted
	return Transition{Kind: kind, Before: term, After: next}, nil
}

// Extend pushes the end date of an active or completed term later.
func (l *Lifecycle) Extend(term models.Term, newEndDate time.Time, reason string, all []models.Term, now time.Time) (Transition, error) {
	if status := DeriveStatus(term, now); status == models.TermStatusUpcoming {
		return Transition{}, conflict(RuleExtendState, "upcoming terms are edited, not extended")
	}
	newEnd := DateOf(newEndDate)
	if !newEnd.After(DateOf(term.EndDate)) {
		return Transition{}, conflict(RuleExtendEarlier, fmt.Sprintf("new end date must be after the current end date (%s)", FormatDate(term.EndDate)))
	}
	res := l.Validate(TermCandidate{
		Name:      term.Name,
		StartDate: FormatDate(term.StartDate),
		EndDate:   FormatDate(newEnd),
	}, all, term.ID, now)
	if !res.Valid {
		return Transition{}, res.Err()
	}

	next := term
	next.EndDate = newEnd
	wasCompleted := term.CompletedAt != nil
	if wasCompleted && l.policy.ReopenOnExtend && !DateOf(now).After(newEnd) {
		next = reopenOnExtend(next)
	}
	if IsOverdue(next, now) {
		next.Status = models.TermStatusActive
	} else {
		next.Status = DeriveStatus(next, now)
	}
	if next.Status == models.TermStatusActive {
		if other, ok := ActiveOccupant(all, term.ID, now); ok {
			return Transition{}, conflict(RuleActiveExists, fmt.Sprintf("term %q is already active", other.Name))
		}
	}
	return Transition{
		Kind:     TransitionExtend,
		Before:   term,
		After:    next,
		Reason:   strings.TrimSpace(reason),
		Reopened: wasCompleted && next.CompletedAt == nil,
	}, nil
}

// reopenOnExtend is the single place where an extension un-completes a term. It only
// runs when the new end date still covers today. The completion snapshot no longer
// describes the term and is dropped.
func reopenOnExtend(term models.Term) models.Term {
	term.CompletedAt = nil
	term.Statistics = types.NullJSONText{}
	return term
}

// Reconcile completes every overdue term. Terms that are not overdue are left alone, so
// running it again on its own output changes nothing.
func (l *Lifecycle) Reconcile(terms []models.Term, now time.Time) ([]Transition, []string) {
	var transitions []Transition
	var ids []string
	for _, term := range terms {
		if !IsOverdue(term, now) {
			continue
		}
		tr, err := l.Complete(term, false, now)
		if err != nil {
			continue
		}
		tr.Kind = TransitionReconcile
		transitions = append(transitions, tr)
		ids = append(ids, term.ID)
	}
	return transitions, ids
}

// CanDelete allows removing only upcoming terms without officials.
func (l *Lifecycle) CanDelete(term models.Term, officialCount int, now time.Time) Decision {
	if status := DeriveStatus(term, now); status != models.TermStatusUpcoming || term.Status == models.TermStatusActive {
		return deny(RuleNotUpcoming, fmt.Sprintf("term is %s; only upcoming terms can be deleted", status))
	}
	if officialCount > 0 {
		return deny(RuleHasOfficials, fmt.Sprintf("term has %d officials assigned", officialCount))
	}
	return Decision{OK: true}
}

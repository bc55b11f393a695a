package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TermStatus represents the lifecycle state of an SK governance term.
type TermStatus string

const (
	TermStatusUpcoming  TermStatus = "upcoming"
	TermStatusActive    TermStatus = "active"
	TermStatusCompleted TermStatus = "completed"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s TermStatus) Valid() bool {
	switch s {
	case TermStatusUpcoming, TermStatusActive, TermStatusCompleted:
		return true
	}
	return false
}

// Term models a multi-year period during which elected SK officials hold office.
// Status is the last committed lifecycle state; CompletedAt is the explicit completion
// flag that keeps a term completed regardless of its dates.
type Term struct {
	ID          string             `db:"id" json:"id"`
	Name        string             `db:"name" json:"term_name"`
	StartDate   time.Time          `db:"start_date" json:"start_date"`
	EndDate     time.Time          `db:"end_date" json:"end_date"`
	Status      TermStatus         `db:"status" json:"status"`
	CompletedAt *time.Time         `db:"completed_at" json:"completed_at,omitempty"`
	Statistics  types.NullJSONText `db:"statistics" json:"-"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updated_at"`
}

// HasSnapshot reports whether the term carries a cached statistics payload.
func (t Term) HasSnapshot() bool {
	return t.Statistics.Valid && len(t.Statistics.JSONText) > 0
}

// TermFilter defines filters supported by list endpoints. Status filters on the
// date-derived status as of Today.
type TermFilter struct {
	Status    TermStatus
	Today     time.Time
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sk-governance-api/internal/models"
)

func TestValidateTouchingBoundaryOverlaps(t *testing.T) {
	now := mustDate(t, "2025-01-15")
	existing := []models.Term{termBetween(t, "t1", "2025-01-01", "2025-06-30", models.TermStatusActive)}

	res := ValidateTermDates(TermCandidate{Name: "Second Half", StartDate: "2025-06-30", EndDate: "2025-12-31"}, existing, "", now)

	assert.False(t, res.Valid)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "t1", res.Conflicts[0].TermID)
	re, ok := AsRuleError(res.Err())
	require.True(t, ok)
	assert.Equal(t, KindConflict, re.Kind)
	assert.Equal(t, RuleOverlap, re.Rule)
}

func TestValidateAdjacentTermsAccepted(t *testing.T) {
	now := mustDate(t, "2025-01-15")
	existing := []models.Term{termBetween(t, "t2", "2025-06-30", "2025-12-31", models.TermStatusUpcoming)}

	res := ValidateTermDates(TermCandidate{Name: "First Half", StartDate: "2025-01-01", EndDate: "2025-06-29"}, existing, "", now)

	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.NoError(t, res.Err())
	assert.Equal(t, mustDate(t, "2025-01-01"), res.Start)
	assert.Equal(t, mustDate(t, "2025-06-29"), res.End)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	now := mustDate(t, "2025-01-15")

	res := ValidateTermDates(TermCandidate{Name: "ab", StartDate: "2025-13-01", EndDate: "soon"}, nil, "", now)

	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 3)
	re, ok := AsRuleError(res.Err())
	require.True(t, ok)
	assert.Equal(t, KindValidation, re.Kind)
	assert.Equal(t, RuleTermName, re.Rule)
	assert.Len(t, re.Reasons, 3)
}

func TestValidateDateOrderSkipsOverlap(t *testing.T) {
	now := mustDate(t, "2025-01-15")
	existing := []models.Term{termBetween(t, "t1", "2025-01-01", "2025-12-31", models.TermStatusActive)}

	res := ValidateTermDates(TermCandidate{Name: "Backwards", StartDate: "2025-06-01", EndDate: "2025-05-01"}, existing, "", now)

	assert.False(t, res.Valid)
	assert.Equal(t, []string{"start date must be before end date"}, res.Errors)
	assert.Empty(t, res.Conflicts)

	res = ValidateTermDates(TermCandidate{Name: "Same Day", StartDate: "2025-06-01", EndDate: "2025-06-01"}, nil, "", now)
	assert.False(t, res.Valid)
}

func TestValidateDateWindow(t *testing.T) {
	now := mustDate(t, "2025-01-15")

	res := ValidateTermDates(TermCandidate{Name: "Fat Finger", StartDate: "2019-01-01", EndDate: "2036-01-01"}, nil, "", now)

	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 2)

	res = ValidateTermDates(TermCandidate{Name: "Edge", StartDate: "2020-01-15", EndDate: "2035-01-15"}, nil, "", now)
	assert.True(t, res.Valid, res.Errors)
}

func TestValidateCustomWindow(t *testing.T) {
	now := mustDate(t, "2025-01-15")
	v := DateValidator{MaxPastYears: 1, MaxFutureYears: 3}

	res := v.Validate(TermCandidate{Name: "Tight", StartDate: "2023-06-01", EndDate: "2029-01-01"}, nil, "", now)

	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 2)
}

func TestValidateExcludesSelf(t *testing.T) {
	now := mustDate(t, "2025-01-15")
	existing := []models.Term{
		termBetween(t, "self", "2025-01-01", "2025-06-30", models.TermStatusActive),
		termBetween(t, "next", "2026-01-01", "2026-12-31", models.TermStatusUpcoming),
	}

	res := ValidateTermDates(TermCandidate{Name: "Term self", StartDate: "2025-01-01", EndDate: "2025-12-31"}, existing, "self", now)
	assert.True(t, res.Valid, res.Errors)

	res = ValidateTermDates(TermCandidate{Name: "Term self", StartDate: "2025-01-01", EndDate: "2026-01-01"}, existing, "self", now)
	assert.False(t, res.Valid)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "next", res.Conflicts[0].TermID)
}

func TestValidateAcceptsTimestamps(t *testing.T) {
	now := mustDate(t, "2025-01-15")

	res := ValidateTermDates(TermCandidate{Name: "Stamped", StartDate: "2025-06-28T00:00:00Z", EndDate: "2027-08-28T00:00:00+08:00"}, nil, "", now)

	assert.True(t, res.Valid, res.Errors)
	assert.Equal(t, "2027-08-28", FormatDate(res.End))
}

func TestValidateNameIsTrimmedAndCountedInRunes(t *testing.T) {
	now := mustDate(t, "2025-01-15")

	res := ValidateTermDates(TermCandidate{Name: "  ab  ", StartDate: "2025-02-01", EndDate: "2025-03-01"}, nil, "", now)
	assert.False(t, res.Valid)

	res = ValidateTermDates(TermCandidate{Name: "Año", StartDate: "2025-02-01", EndDate: "2025-03-01"}, nil, "", now)
	assert.True(t, res.Valid, res.Errors)
}

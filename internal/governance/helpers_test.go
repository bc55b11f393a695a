package governance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sk-governance-api/internal/models"
)

func mustDate(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := ParseDate(raw)
	require.NoError(t, err)
	return d
}

func termBetween(t *testing.T, id, start, end string, status models.TermStatus) models.Term {
	t.Helper()
	return models.Term{
		ID:        id,
		Name:      "Term " + id,
		StartDate: mustDate(t, start),
		EndDate:   mustDate(t, end),
		Status:    status,
	}
}

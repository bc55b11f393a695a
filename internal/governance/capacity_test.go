package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sk-governance-api/internal/models"
)

func TestDefaultCapacity(t *testing.T) {
	table := DefaultCapacity()

	seats, err := table.CapacityFor(models.PositionCouncilor)
	require.NoError(t, err)
	assert.Equal(t, 7, seats)
	assert.Equal(t, 10, table.SeatsPerBarangay())
	assert.Equal(t, 30, table.TotalCapacity(3))
	assert.Equal(t, 0, table.TotalCapacity(0))
	assert.Equal(t, []models.Position{
		models.PositionChairperson,
		models.PositionSecretary,
		models.PositionTreasurer,
		models.PositionCouncilor,
	}, table.Positions())
}

func TestCapacityForUnknownPosition(t *testing.T) {
	_, err := DefaultCapacity().CapacityFor("SK Auditor")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownPosition)
}

func TestCapacityPositionsOrdersExtras(t *testing.T) {
	table := CapacityTable{
		models.PositionCouncilor:   7,
		"SK Auditor":               1,
		models.PositionChairperson: 1,
		"SK Adviser":               1,
	}
	assert.Equal(t, []models.Position{
		models.PositionChairperson,
		models.PositionCouncilor,
		"SK Adviser",
		"SK Auditor",
	}, table.Positions())
}

func TestParsePosition(t *testing.T) {
	cases := map[string]models.Position{
		"SK Chairperson": models.PositionChairperson,
		"chairperson":    models.PositionChairperson,
		"sk_councilor":   models.PositionCouncilor,
		"Kagawad":        models.PositionCouncilor,
		"SK-Treasurer":   models.PositionTreasurer,
		"secretary":      models.PositionSecretary,
	}
	for raw, want := range cases {
		got, ok := ParsePosition(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := ParsePosition("auditor")
	assert.False(t, ok)
	_, ok = ParsePosition("")
	assert.False(t, ok)
}

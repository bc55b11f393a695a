package governance

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sk-governance-api/internal/models"
)

func seat(barangayID string, position models.Position) models.OfficialAssignment {
	return models.OfficialAssignment{TermID: "t1", BarangayID: barangayID, Position: position}
}

func TestComputeVacancyStatsTwoBarangaysOneOfficial(t *testing.T) {
	roster := []models.OfficialAssignment{seat("b1", models.PositionChairperson)}

	report := ComputeVacancyStats(roster, []string{"b1", "b2"}, DefaultCapacity())

	rec := report.Record
	assert.Equal(t, 20, rec.Total)
	assert.Equal(t, 1, rec.Filled)
	assert.Equal(t, 19, rec.Vacant)
	assert.Equal(t, 5, rec.Percent)
	assert.Equal(t, 95, rec.VacancyRate)
	assert.Equal(t, 2, rec.BarangayCount)
	assert.Equal(t, 1, rec.ByPosition[models.PositionChairperson])
	assert.Equal(t, 0, rec.ByPosition[models.PositionCouncilor])
	assert.Equal(t, 14, rec.CapacityByPosition[models.PositionCouncilor])
	assert.Empty(t, report.Warnings)

	require.Len(t, report.Barangays, 2)
	assert.Equal(t, "b1", report.Barangays[0].BarangayID)
	assert.Equal(t, 1, report.Barangays[0].Filled)
	assert.Equal(t, 9, report.Barangays[0].Vacant)
	assert.Equal(t, 10, report.Barangays[1].Vacant)

	require.Len(t, report.Positions, 4)
	assert.Equal(t, models.PositionChairperson, report.Positions[0].Position)
	assert.Equal(t, 50, report.Positions[0].Percent)
}

func TestComputeVacancyStatsOrderIndependent(t *testing.T) {
	roster := []models.OfficialAssignment{
		seat("b1", models.PositionChairperson),
		seat("b1", models.PositionCouncilor),
		seat("b1", models.PositionCouncilor),
		seat("b2", models.PositionSecretary),
		seat("b3", models.PositionTreasurer),
		seat("b3", models.PositionCouncilor),
	}
	barangays := []string{"b1", "b2", "b3"}
	want := ComputeVacancyStats(roster, barangays, DefaultCapacity())

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5; i++ {
		r := append([]models.OfficialAssignment(nil), roster...)
		b := append([]string(nil), barangays...)
		rng.Shuffle(len(r), func(i, j int) { r[i], r[j] = r[j], r[i] })
		rng.Shuffle(len(b), func(i, j int) { b[i], b[j] = b[j], b[i] })

		assert.Equal(t, want, ComputeVacancyStats(r, b, DefaultCapacity()))
	}
}

func TestComputeVacancyStatsOverCapacityClampsVacant(t *testing.T) {
	roster := []models.OfficialAssignment{
		seat("b1", models.PositionChairperson),
		seat("b1", models.PositionChairperson),
	}

	report := ComputeVacancyStats(roster, []string{"b1"}, DefaultCapacity())

	chair := report.Barangays[0].Positions[0]
	assert.Equal(t, models.PositionChairperson, chair.Position)
	assert.Equal(t, 2, chair.Filled)
	assert.Equal(t, 0, chair.Vacant)
	assert.Equal(t, 8, report.Record.Vacant)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, WarningOverCapacity, report.Warnings[0].Code)
	assert.Equal(t, 1, report.Warnings[0].Count)
}

func TestComputeVacancyStatsWarnsOnUnknownData(t *testing.T) {
	roster := []models.OfficialAssignment{
		seat("b1", "sk_councilor"),
		seat("b1", "Mayor"),
		seat("b9", models.PositionTreasurer),
	}

	report := ComputeVacancyStats(roster, []string{"b1", "b1"}, DefaultCapacity())

	assert.Equal(t, 1, report.Record.Filled)
	assert.Equal(t, 1, report.Record.ByPosition[models.PositionCouncilor])
	assert.Equal(t, 1, report.Record.BarangayCount)

	codes := make([]WarningCode, 0, len(report.Warnings))
	for _, w := range report.Warnings {
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []WarningCode{WarningDuplicateBarangay, WarningUnknownPosition, WarningUnknownBarangay}, codes)
}

func TestComputeVacancyStatsEmptyJurisdiction(t *testing.T) {
	report := ComputeVacancyStats(nil, nil, DefaultCapacity())

	assert.Equal(t, 0, report.Record.Total)
	assert.Equal(t, 0, report.Record.Percent)
	assert.Equal(t, 0, report.Record.VacancyRate)
	assert.Empty(t, report.Barangays)
	assert.Len(t, report.Positions, 4)
}

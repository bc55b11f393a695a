package governance

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/noah-isme/sk-governance-api/internal/models"
)

// StatisticsRecord is the canonical term-wide fill/vacancy summary. BarangayIDs keeps
// the jurisdiction list the record was computed against so historical snapshots stay
// stable when the registry changes.
type StatisticsRecord struct {
	Total              int                     `json:"total"`
	Filled             int                     `json:"filled"`
	Vacant             int                     `json:"vacant"`
	Percent            int                     `json:"percent"`
	VacancyRate        int                     `json:"vacancyRate"`
	BarangayCount      int                     `json:"barangayCount"`
	ByPosition         map[models.Position]int `json:"byPosition"`
	CapacityByPosition map[models.Position]int `json:"capacityByPosition"`
	BarangayIDs        []string                `json:"barangayIds,omitempty"`
}

// PositionSlot is the fill state of one position inside one barangay.
type PositionSlot struct {
	Position models.Position `json:"position"`
	Capacity int             `json:"capacity"`
	Filled   int             `json:"filled"`
	Vacant   int             `json:"vacant"`
}

// BarangayVacancy aggregates every position slot of a barangay.
type BarangayVacancy struct {
	BarangayID string         `json:"barangayId"`
	Capacity   int            `json:"capacity"`
	Filled     int            `json:"filled"`
	Vacant     int            `json:"vacant"`
	Positions  []PositionSlot `json:"positions"`
}

// PositionTotal sums one position across the jurisdiction.
type PositionTotal struct {
	Position models.Position `json:"position"`
	Capacity int             `json:"capacity"`
	Filled   int             `json:"filled"`
	Vacant   int             `json:"vacant"`
	Percent  int             `json:"percent"`
}

// VacancyReport is the full output of ComputeVacancyStats.
type VacancyReport struct {
	Record    StatisticsRecord       `json:"statistics"`
	Barangays []BarangayVacancy      `json:"barangays"`
	Positions []PositionTotal        `json:"positions"`
	Warnings  []DataIntegrityWarning `json:"warnings,omitempty"`
}

// ComputeVacancyStats counts roster seats per barangay and position against the capacity
// table. Every barangay in barangayIDs contributes its full capacity even when it has no
// officials. Roster entries with unrecognised positions or barangays outside the
// jurisdiction are reported as warnings and left out of the counts. The result depends
// only on the inputs: barangays are sorted and the roster is counted, so ordering does
// not matter.
func ComputeVacancyStats(roster []models.OfficialAssignment, barangayIDs []string, table CapacityTable) VacancyReport {
	var warnings []DataIntegrityWarning

	ids, duplicates := uniqueSorted(barangayIDs)
	for _, id := range duplicates {
		warnings = append(warnings, DataIntegrityWarning{
			Code:       WarningDuplicateBarangay,
			BarangayID: id,
			Message:    fmt.Sprintf("barangay %s listed more than once in the jurisdiction", id),
		})
	}
	jurisdiction := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		jurisdiction[id] = struct{}{}
	}

	counts := make(map[string]map[models.Position]int, len(ids))
	unknownPositions := map[string]int{}
	unknownBarangays := map[string]int{}
	for _, entry := range roster {
		position, ok := resolvePosition(table, entry.Position)
		if !ok {
			unknownPositions[string(entry.Position)]++
			continue
		}
		barangayID := strings.TrimSpace(entry.BarangayID)
		if _, ok := jurisdiction[barangayID]; !ok {
			unknownBarangays[barangayID]++
			continue
		}
		byPosition := counts[barangayID]
		if byPosition == nil {
			byPosition = make(map[models.Position]int)
			counts[barangayID] = byPosition
		}
		byPosition[position]++
	}
	for _, raw := range sortedKeys(unknownPositions) {
		warnings = append(warnings, DataIntegrityWarning{
			Code:     WarningUnknownPosition,
			Position: raw,
			Count:    unknownPositions[raw],
			Message:  fmt.Sprintf("%d officials hold unrecognised position %q", unknownPositions[raw], raw),
		})
	}
	for _, id := range sortedKeys(unknownBarangays) {
		warnings = append(warnings, DataIntegrityWarning{
			Code:       WarningUnknownBarangay,
			BarangayID: id,
			Count:      unknownBarangays[id],
			Message:    fmt.Sprintf("%d officials belong to barangay %q outside the jurisdiction", unknownBarangays[id], id),
		})
	}

	positions := table.Positions()
	filledByPosition := make(map[models.Position]int, len(positions))
	capacityByPosition := make(map[models.Position]int, len(positions))
	for _, p := range positions {
		filledByPosition[p] = 0
		capacityByPosition[p] = 0
	}

	barangays := make([]BarangayVacancy, 0, len(ids))
	for _, id := range ids {
		row := BarangayVacancy{BarangayID: id, Positions: make([]PositionSlot, 0, len(positions))}
		for _, p := range positions {
			capacity := table[p]
			filled := counts[id][p]
			vacant := capacity - filled
			if vacant < 0 {
				vacant = 0
				warnings = append(warnings, DataIntegrityWarning{
					Code:       WarningOverCapacity,
					BarangayID: id,
					Position:   string(p),
					Count:      filled - capacity,
					Message:    fmt.Sprintf("barangay %s has %d %s officials for %d seats", id, filled, p, capacity),
				})
			}
			row.Positions = append(row.Positions, PositionSlot{Position: p, Capacity: capacity, Filled: filled, Vacant: vacant})
			row.Capacity += capacity
			row.Filled += filled
			row.Vacant += vacant
			filledByPosition[p] += filled
			capacityByPosition[p] += capacity
		}
		barangays = append(barangays, row)
	}

	totals := make([]PositionTotal, 0, len(positions))
	var total, filled int
	for _, p := range positions {
		vacant := capacityByPosition[p] - filledByPosition[p]
		if vacant < 0 {
			vacant = 0
		}
		totals = append(totals, PositionTotal{
			Position: p,
			Capacity: capacityByPosition[p],
			Filled:   filledByPosition[p],
			Vacant:   vacant,
			Percent:  ratePercent(filledByPosition[p], capacityByPosition[p]),
		})
		total += capacityByPosition[p]
		filled += filledByPosition[p]
	}

	vacant := total - filled
	if vacant < 0 {
		vacant = 0
	}
	return VacancyReport{
		Record: StatisticsRecord{
			Total:              total,
			Filled:             filled,
			Vacant:             vacant,
			Percent:            ratePercent(filled, total),
			VacancyRate:        ratePercent(vacant, total),
			BarangayCount:      len(ids),
			ByPosition:         filledByPosition,
			CapacityByPosition: capacityByPosition,
			BarangayIDs:        ids,
		},
		Barangays: barangays,
		Positions: totals,
		Warnings:  warnings,
	}
}

func resolvePosition(table CapacityTable, raw models.Position) (models.Position, bool) {
	if table.Has(raw) {
		return raw, true
	}
	if p, ok := ParsePosition(string(raw)); ok && table.Has(p) {
		return p, true
	}
	return "", false
}

// ratePercent rounds part/total to a whole percentage; an empty total yields 0.
func ratePercent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

func uniqueSorted(ids []string) ([]string, []string) {
	seen := make(map[string]int, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		seen[id]++
		if seen[id] == 1 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	var dupes []string
	for _, id := range out {
		if seen[id] > 1 {
			dupes = append(dupes, id)
		}
	}
	return out, dupes
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

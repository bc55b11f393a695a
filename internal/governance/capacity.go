package governance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/sk-governance-api/internal/models"
)

// CapacityTable maps each position to its seat count per barangay.
type CapacityTable map[models.Position]int

// canonicalOrder fixes report ordering for the standard SK offices.
var canonicalOrder = []models.Position{
	models.PositionChairperson,
	models.PositionSecretary,
	models.PositionTreasurer,
	models.PositionCouncilor,
}

// DefaultCapacity returns the statutory seat table: one chairperson, secretary and
// treasurer and seven councilors per barangay.
func DefaultCapacity() CapacityTable {
	return CapacityTable{
		models.PositionChairperson: 1,
		models.PositionSecretary:   1,
		models.PositionTreasurer:   1,
		models.PositionCouncilor:   7,
	}
}

// CapacityFor returns the seats available per barangay for position.
func (t CapacityTable) CapacityFor(position models.Position) (int, error) {
	seats, ok := t[position]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPosition, position)
	}
	return seats, nil
}

// Has reports whether the table defines position.
func (t CapacityTable) Has(position models.Position) bool {
	_, ok := t[position]
	return ok
}

// SeatsPerBarangay sums every position capacity.
func (t CapacityTable) SeatsPerBarangay() int {
	total := 0
	for _, seats := range t {
		total += seats
	}
	return total
}

// TotalCapacity returns the jurisdiction-wide seat count for barangayCount barangays.
func (t CapacityTable) TotalCapacity(barangayCount int) int {
	if barangayCount <= 0 {
		return 0
	}
	return barangayCount * t.SeatsPerBarangay()
}

// Positions lists the table's positions: standard offices first, extras sorted.
func (t CapacityTable) Positions() []models.Position {
	positions := make([]models.Position, 0, len(t))
	seen := make(map[models.Position]struct{}, len(t))
	for _, p := range canonicalOrder {
		if _, ok := t[p]; ok {
			positions = append(positions, p)
			seen[p] = struct{}{}
		}
	}
	var extras []models.Position
	for p := range t {
		if _, ok := seen[p]; !ok {
			extras = append(extras, p)
		}
	}
	sort.Slice(extras, func(i, j int) bool { return extras[i] < extras[j] })
	return append(positions, extras...)
}

var positionAliases = map[string]models.Position{
	"chairperson":   models.PositionChairperson,
	"chairman":      models.PositionChairperson,
	"chair":         models.PositionChairperson,
	"skchairperson": models.PositionChairperson,
	"secretary":     models.PositionSecretary,
	"sksecretary":   models.PositionSecretary,
	"treasurer":     models.PositionTreasurer,
	"sktreasurer":   models.PositionTreasurer,
	"councilor":     models.PositionCouncilor,
	"kagawad":       models.PositionCouncilor,
	"skcouncilor":   models.PositionCouncilor,
	"skkagawad":     models.PositionCouncilor,
}

// ParsePosition maps legacy spellings ("chairperson", "sk_councilor", "SK Councilor")
// onto the canonical position names. The boolean is false for unrecognised input.
func ParsePosition(raw string) (models.Position, bool) {
	key := strings.ToLower(raw)
	key = strings.NewReplacer(" ", "", "_", "", "-", "", ".", "").Replace(key)
	if key == "" {
		return "", false
	}
	p, ok := positionAliases[key]
	return p, ok
}

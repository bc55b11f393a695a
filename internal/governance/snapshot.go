package governance

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidSnapshot is returned when a stored statistics payload is not a JSON object.
var ErrInvalidSnapshot = errors.New("statistics snapshot is not a JSON object")

// Number is a lenient integer: JSON numbers, numeric strings and null all decode, and
// Set records whether a usable value was present.
type Number struct {
	Value int
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler. Unparseable values decode as unset.
func (n *Number) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	n.Value = int(math.Round(v))
	n.Set = true
	return nil
}

func firstSet(values ...Number) Number {
	for _, v := range values {
		if v.Set {
			return v
		}
	}
	return Number{}
}

// Snapshot is one of the known stored statistics shapes: FlatSnapshot,
// NestedCapacitySnapshot or PositionKeyedSnapshot.
type Snapshot interface {
	shape() string
}

// SnapshotFields are the summary fields shared by the flat and nested shapes.
type SnapshotFields struct {
	Total              Number
	Filled             Number
	Vacant             Number
	Percent            Number
	VacancyRate        Number
	BarangayCount      Number
	ByPosition         map[string]Number
	CapacityByPosition map[string]Number
	BarangayIDs        []string
}

// FlatSnapshot stores the summary fields at the top level.
type FlatSnapshot struct {
	SnapshotFields
}

// NestedCapacitySnapshot stores the summary under a "capacity" object.
type NestedCapacitySnapshot struct {
	Capacity      SnapshotFields
	BarangayCount Number
}

// PositionCounts is one position entry of a PositionKeyedSnapshot.
type PositionCounts struct {
	Filled   Number `json:"filled"`
	Capacity Number `json:"capacity"`
	Vacant   Number `json:"vacant"`
}

// PositionKeyedSnapshot stores one sub-object per position, at the top level or under a
// "positions" key.
type PositionKeyedSnapshot struct {
	Positions     map[string]PositionCounts
	BarangayCount Number
	BarangayIDs   []string
}

func (FlatSnapshot) shape() string           { return "flat" }
func (NestedCapacitySnapshot) shape() string { return "nested_capacity" }
func (PositionKeyedSnapshot) shape() string  { return "position_keyed" }

// ShapeOf names the shape of s for logging.
func ShapeOf(s Snapshot) string {
	if s == nil {
		return ""
	}
	return s.shape()
}

type wireFields struct {
	Total                   Number            `json:"total"`
	TotalCapacity           Number            `json:"totalCapacity"`
	TotalPositions          Number            `json:"totalPositions"`
	TotalSnake              Number            `json:"total_capacity"`
	Filled                  Number            `json:"filled"`
	FilledPositions         Number            `json:"filledPositions"`
	FilledSnake             Number            `json:"filled_positions"`
	Vacant                  Number            `json:"vacant"`
	VacantPositions         Number            `json:"vacantPositions"`
	VacantSnake             Number            `json:"vacant_positions"`
	Percent                 Number            `json:"percent"`
	FillRate                Number            `json:"fillRate"`
	FillRateSnake           Number            `json:"fill_rate"`
	VacancyRate             Number            `json:"vacancyRate"`
	VacancyRateSnake        Number            `json:"vacancy_rate"`
	BarangayCount           Number            `json:"barangayCount"`
	BarangayCountSnake      Number            `json:"barangay_count"`
	ByPosition              map[string]Number `json:"byPosition"`
	ByPositionSnake         map[string]Number `json:"by_position"`
	CapacityByPosition      map[string]Number `json:"capacityByPosition"`
	CapacityByPositionSnake map[string]Number `json:"capacity_by_position"`
	BarangayIDs             []string          `json:"barangayIds"`
	BarangayIDsSnake        []string          `json:"barangay_ids"`
}

func (w wireFields) fields() SnapshotFields {
	f := SnapshotFields{
		Total:              firstSet(w.Total, w.TotalCapacity, w.TotalPositions, w.TotalSnake),
		Filled:             firstSet(w.Filled, w.FilledPositions, w.FilledSnake),
		Vacant:             firstSet(w.Vacant, w.VacantPositions, w.VacantSnake),
		Percent:            firstSet(w.Percent, w.FillRate, w.FillRateSnake),
		VacancyRate:        firstSet(w.VacancyRate, w.VacancyRateSnake),
		BarangayCount:      firstSet(w.BarangayCount, w.BarangayCountSnake),
		ByPosition:         w.ByPosition,
		CapacityByPosition: w.CapacityByPosition,
		BarangayIDs:        w.BarangayIDs,
	}
	if f.ByPosition == nil {
		f.ByPosition = w.ByPositionSnake
	}
	if f.CapacityByPosition == nil {
		f.CapacityByPosition = w.CapacityByPositionSnake
	}
	if f.BarangayIDs == nil {
		f.BarangayIDs = w.BarangayIDsSnake
	}
	return f
}

// DecodeSnapshot classifies a stored statistics payload into one of the known shapes.
// Field values that fail to decode are treated as absent.
func DecodeSnapshot(raw []byte) (Snapshot, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, ErrInvalidSnapshot
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, ErrInvalidSnapshot
	}

	var outer wireFields
	_ = json.Unmarshal(raw, &outer)
	outerFields := outer.fields()

	if nested, ok := top["capacity"]; ok && isObject(nested) {
		var inner wireFields
		_ = json.Unmarshal(nested, &inner)
		fields := inner.fields()
		if fields.ByPosition == nil {
			fields.ByPosition = outerFields.ByPosition
		}
		if fields.CapacityByPosition == nil {
			fields.CapacityByPosition = outerFields.CapacityByPosition
		}
		if fields.BarangayIDs == nil {
			fields.BarangayIDs = outerFields.BarangayIDs
		}
		return NestedCapacitySnapshot{Capacity: fields, BarangayCount: outerFields.BarangayCount}, nil
	}

	if positions, ok := top["positions"]; ok && isObject(positions) {
		var byKey map[string]PositionCounts
		_ = json.Unmarshal(positions, &byKey)
		return PositionKeyedSnapshot{Positions: byKey, BarangayCount: outerFields.BarangayCount, BarangayIDs: outerFields.BarangayIDs}, nil
	}

	keyed := map[string]PositionCounts{}
	for key, value := range top {
		if _, ok := ParsePosition(key); !ok || !isObject(value) {
			continue
		}
		var counts PositionCounts
		_ = json.Unmarshal(value, &counts)
		keyed[key] = counts
	}
	if len(keyed) > 0 {
		return PositionKeyedSnapshot{Positions: keyed, BarangayCount: outerFields.BarangayCount, BarangayIDs: outerFields.BarangayIDs}, nil
	}

	return FlatSnapshot{SnapshotFields: outerFields}, nil
}

// hasData reports whether s carries at least one recognised value.
func hasData(s Snapshot) bool {
	switch v := s.(type) {
	case FlatSnapshot:
		return v.SnapshotFields.any()
	case NestedCapacitySnapshot:
		return v.Capacity.any() || v.BarangayCount.Set
	case PositionKeyedSnapshot:
		return len(v.Positions) > 0 || v.BarangayCount.Set || len(v.BarangayIDs) > 0
	}
	return false
}

func (f SnapshotFields) any() bool {
	for _, n := range []Number{f.Total, f.Filled, f.Vacant, f.Percent, f.VacancyRate, f.BarangayCount} {
		if n.Set {
			return true
		}
	}
	return len(f.ByPosition) > 0 || len(f.CapacityByPosition) > 0 || len(f.BarangayIDs) > 0
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

package governance

import (
	"github.com/noah-isme/sk-governance-api/internal/models"
)

// NormalizeStatistics reshapes the statistics snapshot carried by term into the
// canonical record. It returns nil when the term has no usable snapshot, which tells the
// caller to aggregate from the live roster instead. A snapshot without a single recognised
// field counts as unusable.
func NormalizeStatistics(term models.Term) *StatisticsRecord {
	if !term.HasSnapshot() {
		return nil
	}
	snapshot, err := DecodeSnapshot([]byte(term.Statistics.JSONText))
	if err != nil || !hasData(snapshot) {
		return nil
	}
	record := Normalize(snapshot)
	return &record
}

// Normalize converts any known snapshot shape into a StatisticsRecord. Missing fields
// count as zero; absent totals are derived from the per-position maps.
func Normalize(snapshot Snapshot) StatisticsRecord {
	switch s := snapshot.(type) {
	case FlatSnapshot:
		return fromFields(s.SnapshotFields)
	case *FlatSnapshot:
		return fromFields(s.SnapshotFields)
	case NestedCapacitySnapshot:
		fields := s.Capacity
		if !fields.BarangayCount.Set {
			fields.BarangayCount = s.BarangayCount
		}
		return fromFields(fields)
	case *NestedCapacitySnapshot:
		return Normalize(*s)
	case PositionKeyedSnapshot:
		return fromPositions(s)
	case *PositionKeyedSnapshot:
		return fromPositions(*s)
	default:
		return emptyRecord()
	}
}

func emptyRecord() StatisticsRecord {
	return StatisticsRecord{
		ByPosition:         map[models.Position]int{},
		CapacityByPosition: map[models.Position]int{},
	}
}

func canonicalKey(key string) models.Position {
	if p, ok := ParsePosition(key); ok {
		return p
	}
	return models.Position(key)
}

func fromFields(f SnapshotFields) StatisticsRecord {
	record := emptyRecord()
	for key, n := range f.ByPosition {
		record.ByPosition[canonicalKey(key)] += n.Value
	}
	for key, n := range f.CapacityByPosition {
		record.CapacityByPosition[canonicalKey(key)] += n.Value
	}
	record.BarangayIDs = f.BarangayIDs
	return finish(record, f.Total, f.Filled, f.Vacant, f.Percent, f.VacancyRate, f.BarangayCount)
}

func fromPositions(s PositionKeyedSnapshot) StatisticsRecord {
	record := emptyRecord()
	for key, counts := range s.Positions {
		p := canonicalKey(key)
		capacity := counts.Capacity.Value
		if !counts.Capacity.Set && counts.Vacant.Set {
			capacity = counts.Filled.Value + counts.Vacant.Value
		}
		record.ByPosition[p] += counts.Filled.Value
		record.CapacityByPosition[p] += capacity
	}
	record.BarangayIDs = s.BarangayIDs
	return finish(record, Number{}, Number{}, Number{}, Number{}, Number{}, s.BarangayCount)
}

// finish fills the summary fields, preferring values stored in the snapshot and deriving
// the rest.
func finish(record StatisticsRecord, total, filled, vacant, percent, vacancyRate, barangayCount Number) StatisticsRecord {
	record.Total = total.Value
	if !total.Set {
		record.Total = sum(record.CapacityByPosition)
	}
	record.Filled = filled.Value
	if !filled.Set {
		record.Filled = sum(record.ByPosition)
	}
	record.Vacant = vacant.Value
	if !vacant.Set {
		record.Vacant = record.Total - record.Filled
		if record.Vacant < 0 {
			record.Vacant = 0
		}
	}
	record.Percent = percent.Value
	if !percent.Set {
		record.Percent = ratePercent(record.Filled, record.Total)
	}
	record.VacancyRate = vacancyRate.Value
	if !vacancyRate.Set {
		record.VacancyRate = ratePercent(record.Vacant, record.Total)
	}
	record.BarangayCount = barangayCount.Value
	if !barangayCount.Set {
		record.BarangayCount = len(record.BarangayIDs)
	}
	return record
}

func sum(m map[models.Position]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}

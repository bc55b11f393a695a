package models

// Position names an SK office with a fixed seat count per barangay.
type Position string

const (
	PositionChairperson Position = "SK Chairperson"
	PositionSecretary   Position = "SK Secretary"
	PositionTreasurer   Position = "SK Treasurer"
	PositionCouncilor   Position = "SK Councilor"
)

// OfficialAssignment is the slice of an official record the capacity engine reads:
// which term, which barangay and which seat.
type OfficialAssignment struct {
	TermID     string   `db:"term_id" json:"term_id"`
	BarangayID string   `db:"barangay_id" json:"barangay_id"`
	Position   Position `db:"position" json:"position"`
}

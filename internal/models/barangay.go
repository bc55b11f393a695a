package models

// Barangay is the smallest administrative unit and the unit of seat allocation.
type Barangay struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

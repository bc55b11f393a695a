package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sk-governance-api/internal/models"
)

// OfficialRepository reads the officials roster.
type OfficialRepository struct {
	db *sqlx.DB
}

// NewOfficialRepository constructs the repository.
func NewOfficialRepository(db *sqlx.DB) *OfficialRepository {
	return &OfficialRepository{db: db}
}

// ListAssignmentsByTerm returns the seat held by every active official of the term.
func (r *OfficialRepository) ListAssignmentsByTerm(ctx context.Context, termID string) ([]models.OfficialAssignment, error) {
	const query = `SELECT term_id, barangay_id, position FROM officials WHERE term_id = $1 AND is_active = TRUE ORDER BY barangay_id, position`
	var roster []models.OfficialAssignment
	if err := r.db.SelectContext(ctx, &roster, query, termID); err != nil {
		return nil, fmt.Errorf("list term officials: %w", err)
	}
	return roster, nil
}

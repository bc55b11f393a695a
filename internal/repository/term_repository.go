package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sk-governance-api/internal/models"
)

var (
	// ErrStaleWrite is returned when a conditional write matched no row because the term
	// changed (or disappeared) since it was read.
	ErrStaleWrite = errors.New("term changed since it was read")
	// ErrActiveTermTaken is returned when activation finds another active term inside the
	// transaction.
	ErrActiveTermTaken = errors.New("another term is already active")
)

const termColumns = "id, name, start_date, end_date, status, completed_at, statistics, created_at, updated_at"

// TermRepository handles persistence for SK governance terms.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// List returns terms matching provided filters.
func (r *TermRepository) List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error) {
	base := "FROM terms WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		today := filter.Today
		if today.IsZero() {
			today = time.Now().UTC()
		}
		n := len(args) + 1
		switch filter.Status {
		case models.TermStatusUpcoming:
			conditions = append(conditions, fmt.Sprintf("(completed_at IS NULL AND status <> 'active' AND start_date > $%d)", n))
		case models.TermStatusActive:
			conditions = append(conditions, fmt.Sprintf("(completed_at IS NULL AND (status = 'active' OR (start_date <= $%d AND end_date >= $%d)))", n, n))
		default:
			conditions = append(conditions, fmt.Sprintf("(completed_at IS NOT NULL OR (status <> 'active' AND end_date < $%d))", n))
		}
		args = append(args, today.Format("2006-01-02"))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)+1))
		args = append(args, "%"+search+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"start_date": true,
		"end_date":   true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "start_date"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", termColumns, base, sortBy, order, size, offset)

	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list terms: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count terms: %w", err)
	}

	return terms, total, nil
}

// ListAll returns every term ordered by start date. Lifecycle checks run against this
// full set.
func (r *TermRepository) ListAll(ctx context.Context) ([]models.Term, error) {
	query := fmt.Sprintf("SELECT %s FROM terms ORDER BY start_date ASC", termColumns)
	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query); err != nil {
		return nil, fmt.Errorf("list all terms: %w", err)
	}
	return terms, nil
}

// FindByID loads a term by identifier.
func (r *TermRepository) FindByID(ctx context.Context, id string) (*models.Term, error) {
	query := fmt.Sprintf("SELECT %s FROM terms WHERE id = $1", termColumns)
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// Create inserts a new term record.
func (r *TermRepository) Create(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	now := timestamp()
	if term.CreatedAt.IsZero() {
		term.CreatedAt = now
	}
	term.UpdatedAt = now

	const query = `INSERT INTO terms (id, name, start_date, end_date, status, completed_at, statistics, created_at, updated_at) VALUES (:id, :name, :start_date, :end_date, :status, :completed_at, :statistics, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("create term: %w", err)
	}
	return nil
}

// Update writes term when its stored updated_at still equals expected. ErrStaleWrite is
// returned otherwise.
func (r *TermRepository) Update(ctx context.Context, term *models.Term, expected time.Time) error {
	return r.update(ctx, r.db, term, expected)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (r *TermRepository) update(ctx context.Context, db execer, term *models.Term, expected time.Time) error {
	updatedAt := timestamp()
	const query = `UPDATE terms SET name = $1, start_date = $2, end_date = $3, status = $4, completed_at = $5, updated_at = $6 WHERE id = $7 AND updated_at = $8`
	res, err := db.ExecContext(ctx, query, term.Name, term.StartDate, term.EndDate, term.Status, term.CompletedAt, updatedAt, term.ID, expected)
	if err != nil {
		return fmt.Errorf("update term: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}
	term.UpdatedAt = updatedAt
	return nil
}

// Activate commits an activation inside a transaction that locks every other active term
// first, so two concurrent activations cannot both succeed.
func (r *TermRepository) Activate(ctx context.Context, term *models.Term, expected time.Time) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var holders []string
	if err = tx.SelectContext(ctx, &holders, `SELECT id FROM terms WHERE status = 'active' AND completed_at IS NULL AND id <> $1 FOR UPDATE`, term.ID); err != nil {
		return fmt.Errorf("lock active terms: %w", err)
	}
	if len(holders) > 0 {
		err = ErrActiveTermTaken
		return err
	}

	if err = r.update(ctx, tx, term, expected); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit activate tx: %w", err)
	}
	return nil
}

// CompleteIfActive marks the term completed only while it is still committed as active
// and not yet completed. It reports whether this call performed the completion.
func (r *TermRepository) CompleteIfActive(ctx context.Context, id string, endDate, completedAt time.Time) (bool, error) {
	const query = `UPDATE terms SET status = 'completed', end_date = $2, completed_at = $3, updated_at = $3 WHERE id = $1 AND status = 'active' AND completed_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, endDate, completedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("complete term: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete term rows: %w", err)
	}
	return affected == 1, nil
}

// SaveStatistics stores the statistics snapshot for a term. updated_at is left alone so
// snapshotting never invalidates an operator's pending edit.
func (r *TermRepository) SaveStatistics(ctx context.Context, id string, payload []byte) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE terms SET statistics = $2 WHERE id = $1`, id, payload); err != nil {
		return fmt.Errorf("save term statistics: %w", err)
	}
	return nil
}

// ClearStatistics drops the statistics snapshot of a term, leaving updated_at alone.
func (r *TermRepository) ClearStatistics(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE terms SET statistics = NULL WHERE id = $1`, id); err != nil {
		return fmt.Errorf("clear term statistics: %w", err)
	}
	return nil
}

// Delete removes a term that is still upcoming and unchanged since it was read.
func (r *TermRepository) Delete(ctx context.Context, id string, expected time.Time) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM terms WHERE id = $1 AND status = 'upcoming' AND updated_at = $2`, id, expected)
	if err != nil {
		return fmt.Errorf("delete term: %w", err)
	}
	return expectOneRow(res)
}

// CountOfficials returns the number of officials assigned to the term.
func (r *TermRepository) CountOfficials(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM officials WHERE term_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count term officials: %w", err)
	}
	return count, nil
}

// timestamp matches Postgres microsecond precision so values read back compare equal.
func timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func expectOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrStaleWrite
	}
	return nil
}

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sk-governance-api/internal/governance"
	"github.com/noah-isme/sk-governance-api/internal/models"
	"github.com/noah-isme/sk-governance-api/internal/repository"
	"github.com/noah-isme/sk-governance-api/pkg/database"
	appErrors "github.com/noah-isme/sk-governance-api/pkg/errors"
)

// activeTermIndex is the unique partial index that allows a single active term.
const activeTermIndex = "terms_single_active_idx"

type termRepository interface {
	List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error)
	ListAll(ctx context.Context) ([]models.Term, error)
	FindByID(ctx context.Context, id string) (*models.Term, error)
	Create(ctx context.Context, term *models.Term) error
	Update(ctx context.Context, term *models.Term, expected time.Time) error
	Activate(ctx context.Context, term *models.Term, expected time.Time) error
	CompleteIfActive(ctx context.Context, id string, endDate, completedAt time.Time) (bool, error)
	Delete(ctx context.Context, id string, expected time.Time) error
	CountOfficials(ctx context.Context, id string) (int, error)
	ClearStatistics(ctx context.Context, id string) error
}

type auditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// termSnapshotter persists the statistics snapshot of a term that just completed.
type termSnapshotter interface {
	Snapshot(ctx context.Context, term models.Term) (*governance.StatisticsRecord, error)
}

// CreateTermRequest describes the payload for creating a term.
type CreateTermRequest struct {
	Name      string `json:"term_name" validate:"max=200"`
	StartDate string `json:"start_date" validate:"max=40"`
	EndDate   string `json:"end_date" validate:"max=40"`
}

// UpdateTermRequest renames a term and, while it is upcoming, moves its dates. Empty
// dates keep the stored value.
type UpdateTermRequest struct {
	Name      string `json:"term_name" validate:"max=200"`
	StartDate string `json:"start_date,omitempty" validate:"max=40"`
	EndDate   string `json:"end_date,omitempty" validate:"max=40"`
}

// ValidateTermRequest checks a candidate without persisting it.
type ValidateTermRequest struct {
	Name          string `json:"term_name" validate:"max=200"`
	StartDate     string `json:"start_date" validate:"max=40"`
	EndDate       string `json:"end_date" validate:"max=40"`
	ExcludeTermID string `json:"exclude_term_id,omitempty"`
}

// CompleteTermRequest completes an active term. Force also moves its end date to today.
type CompleteTermRequest struct {
	Force  bool   `json:"force"`
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// ExtendTermRequest moves a term's end date later.
type ExtendTermRequest struct {
	EndDate string `json:"end_date" validate:"required"`
	Reason  string `json:"reason,omitempty" validate:"max=500"`
}

// TermView is a term as presented to clients: Status is date-derived and Overdue flags
// terms waiting for completion.
type TermView struct {
	models.Term
	Overdue     bool `json:"overdue"`
	HasSnapshot bool `json:"has_statistics_snapshot"`
}

// TransitionResult reports an accepted lifecycle operation.
type TransitionResult struct {
	Term     TermView                  `json:"term"`
	Kind     governance.TransitionKind `json:"transition"`
	Reopened bool                      `json:"reopened,omitempty"`
}

// ReconcileResult summarises one overdue sweep.
type ReconcileResult struct {
	Checked   int      `json:"checked"`
	Completed []string `json:"completed"`
	Skipped   []string `json:"skipped,omitempty"`
}

// TermService orchestrates the term lifecycle against persistence. Every write re-reads
// the terms it depends on and commits conditionally, so decisions are never made on a
// stale read.
type TermService struct {
	repo      termRepository
	audit     auditRepository
	snapshots termSnapshotter
	cache     *CacheService
	metrics   *MetricsService
	lifecycle *governance.Lifecycle
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
	clock     func() time.Time
}

// TermServiceConfig carries the lifecycle policy and jurisdiction timezone.
type TermServiceConfig struct {
	Policy   governance.Policy
	Location *time.Location
}

// NewTermService creates a new term service instance.
func NewTermService(repo termRepository, audit auditRepository, snapshots termSnapshotter, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg TermServiceConfig) *TermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &TermService{
		repo:      repo,
		audit:     audit,
		snapshots: snapshots,
		cache:     cache,
		metrics:   metrics,
		lifecycle: governance.NewLifecycle(cfg.Policy),
		validator: validate,
		logger:    logger,
		location:  cfg.Location,
		clock:     time.Now,
	}
}

func (s *TermService) now() time.Time {
	return s.clock().In(s.location)
}

func (s *TermService) view(term models.Term, now time.Time) TermView {
	return TermView{
		Term:        governance.WithDerivedStatus(term, now),
		Overdue:     governance.IsOverdue(term, now),
		HasSnapshot: term.HasSnapshot(),
	}
}

// List returns paginated terms.
func (s *TermService) List(ctx context.Context, filter models.TermFilter) ([]TermView, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "status must be upcoming, active or completed")
	}
	now := s.now()
	filter.Today = governance.DateOf(now)
	terms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internal(err, "failed to list terms")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	views := make([]TermView, 0, len(terms))
	for _, term := range terms {
		views = append(views, s.view(term, now))
	}
	return views, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a term by ID.
func (s *TermService) Get(ctx context.Context, id string) (*TermView, error) {
	term, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	view := s.view(*term, s.now())
	return &view, nil
}

// GetActive returns the term currently holding the active slot.
func (s *TermService) GetActive(ctx context.Context) (*TermView, error) {
	now := s.now()
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, internal(err, "failed to load terms")
	}
	term, ok := governance.ActiveOccupant(all, "", now)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no active term")
	}
	view := s.view(term, now)
	return &view, nil
}

// Validate runs every term rule against the stored terms without writing anything.
func (s *TermService) Validate(ctx context.Context, req ValidateTermRequest) (*governance.ValidationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, internal(err, "failed to load terms")
	}
	candidate := governance.TermCandidate{Name: req.Name, StartDate: req.StartDate, EndDate: req.EndDate}
	result := s.lifecycle.Validate(candidate, all, strings.TrimSpace(req.ExcludeTermID), s.now())
	return &result, nil
}

// Create adds a new term after validating it against every stored term.
func (s *TermService) Create(ctx context.Context, actor models.Actor, req CreateTermRequest) (*TransitionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	now := s.now()
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, internal(err, "failed to load terms")
	}
	tr, err := s.lifecycle.Create(governance.TermCandidate{Name: req.Name, StartDate: req.StartDate, EndDate: req.EndDate}, all, now)
	if err != nil {
		return nil, s.reject(err)
	}

	term := tr.After
	if err := s.repo.Create(ctx, &term); err != nil {
		if database.IsUniqueViolation(err, activeTermIndex) {
			return nil, s.reject(activeExists())
		}
		return nil, internal(err, "failed to create term")
	}
	tr.After = term
	return s.finish(ctx, actor, tr, models.AuditActionTermCreate, now), nil
}

// Update renames a term or moves the dates of an upcoming term.
func (s *TermService) Update(ctx context.Context, actor models.Actor, id string, req UpdateTermRequest) (*TransitionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	now := s.now()
	term, all, err := s.loadWithAll(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := s.lifecycle.Update(*term, governance.TermCandidate{Name: req.Name, StartDate: req.StartDate, EndDate: req.EndDate}, all, now)
	if err != nil {
		return nil, s.reject(err)
	}
	if err := s.commit(ctx, &tr.After, term.UpdatedAt); err != nil {
		return nil, err
	}
	return s.finish(ctx, actor, tr, models.AuditActionTermUpdate, now), nil
}

// Delete removes an upcoming term without officials.
func (s *TermService) Delete(ctx context.Context, actor models.Actor, id string) error {
	now := s.now()
	term, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	officials, err := s.repo.CountOfficials(ctx, id)
	if err != nil {
		return internal(err, "failed to count term officials")
	}
	if d := s.lifecycle.CanDelete(*term, officials, now); !d.OK {
		return s.reject(&governance.RuleError{Kind: governance.KindConflict, Rule: d.Rule, Reasons: []string{d.Reason}})
	}
	if err := s.repo.Delete(ctx, id, term.UpdatedAt); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return appErrors.ErrStaleTerm
		}
		return internal(err, "failed to delete term")
	}
	s.writeAudit(ctx, actor, models.AuditActionTermDelete, term, nil, "")
	s.invalidate(ctx, id)
	s.logger.Info("term deleted", zap.String("term_id", id))
	return nil
}

// Activate starts an upcoming term today. The single-active check is repeated inside a
// locking transaction.
func (s *TermService) Activate(ctx context.Context, actor models.Actor, id string) (*TransitionResult, error) {
	now := s.now()
	term, all, err := s.loadWithAll(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := s.lifecycle.Activate(*term, all, now)
	if err != nil {
		return nil, s.reject(err)
	}
	if err := s.repo.Activate(ctx, &tr.After, term.UpdatedAt); err != nil {
		switch {
		case errors.Is(err, repository.ErrActiveTermTaken), database.IsUniqueViolation(err, activeTermIndex):
			return nil, s.reject(activeExists())
		case errors.Is(err, repository.ErrStaleWrite):
			return nil, appErrors.ErrStaleTerm
		}
		return nil, internal(err, "failed to activate term")
	}
	return s.finish(ctx, actor, tr, models.AuditActionTermActivate, now), nil
}

// Complete ends an active term and stores its statistics snapshot.
func (s *TermService) Complete(ctx context.Context, actor models.Actor, id string, req CompleteTermRequest) (*TransitionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid completion payload")
	}
	now := s.now()
	term, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := s.lifecycle.Complete(*term, req.Force, now)
	if err != nil {
		return nil, s.reject(err)
	}
	tr.Reason = strings.TrimSpace(req.Reason)
	if err := s.commit(ctx, &tr.After, term.UpdatedAt); err != nil {
		return nil, err
	}
	action := models.AuditActionTermComplete
	if tr.Kind == governance.TransitionForceComplete {
		action = models.AuditActionTermForceComplete
	}
	s.snapshot(ctx, tr.After)
	return s.finish(ctx, actor, tr, action, now), nil
}

// Extend moves the end date of an active or completed term later.
func (s *TermService) Extend(ctx context.Context, actor models.Actor, id string, req ExtendTermRequest) (*TransitionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid extension payload")
	}
	newEnd, err := governance.ParseDate(req.EndDate)
	if err != nil {
		return nil, s.reject(&governance.RuleError{Kind: governance.KindValidation, Rule: governance.RuleDateFormat, Reasons: []string{"end date is not a valid calendar date"}})
	}
	now := s.now()
	term, all, err := s.loadWithAll(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := s.lifecycle.Extend(*term, newEnd, req.Reason, all, now)
	if err != nil {
		return nil, s.reject(err)
	}
	if err := s.commit(ctx, &tr.After, term.UpdatedAt); err != nil {
		return nil, err
	}
	if tr.Reopened {
		s.logger.Warn("completed term reopened by extension", zap.String("term_id", id), zap.String("end_date", governance.FormatDate(newEnd)))
		if term.HasSnapshot() {
			if err := s.repo.ClearStatistics(ctx, id); err != nil {
				s.logger.Warn("failed to clear statistics snapshot of reopened term", zap.String("term_id", id), zap.Error(err))
			}
		}
	}
	return s.finish(ctx, actor, tr, models.AuditActionTermExtend, now), nil
}

// ReconcileOverdue completes every overdue term. Each completion is conditional on the
// term still being active, so concurrent sweeps never complete a term twice.
func (s *TermService) ReconcileOverdue(ctx context.Context, actor models.Actor) (*ReconcileResult, error) {
	now := s.now()
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, internal(err, "failed to load terms")
	}
	transitions, _ := s.lifecycle.Reconcile(all, now)
	result := &ReconcileResult{Checked: len(all), Completed: []string{}}
	for _, tr := range transitions {
		done, err := s.repo.CompleteIfActive(ctx, tr.After.ID, tr.After.EndDate, *tr.After.CompletedAt)
		if err != nil {
			return result, internal(err, "failed to complete overdue term")
		}
		if !done {
			result.Skipped = append(result.Skipped, tr.After.ID)
			continue
		}
		result.Completed = append(result.Completed, tr.After.ID)
		s.snapshot(ctx, tr.After)
		s.finish(ctx, actor, tr, models.AuditActionTermReconcile, now)
	}
	s.metrics.RecordReconciled(len(result.Completed))
	if len(result.Completed) > 0 || len(result.Skipped) > 0 {
		s.logger.Info("overdue terms reconciled", zap.Strings("completed", result.Completed), zap.Strings("skipped", result.Skipped))
	}
	return result, nil
}

func (s *TermService) load(ctx context.Context, id string) (*models.Term, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, internal(err, "failed to load term")
	}
	return term, nil
}

func (s *TermService) loadWithAll(ctx context.Context, id string) (*models.Term, []models.Term, error) {
	term, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, nil, internal(err, "failed to load terms")
	}
	return term, all, nil
}

func (s *TermService) commit(ctx context.Context, term *models.Term, expected time.Time) error {
	if err := s.repo.Update(ctx, term, expected); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleWrite):
			return appErrors.ErrStaleTerm
		case database.IsUniqueViolation(err, activeTermIndex):
			return s.reject(activeExists())
		}
		return internal(err, "failed to update term")
	}
	return nil
}

func (s *TermService) finish(ctx context.Context, actor models.Actor, tr governance.Transition, action string, now time.Time) *TransitionResult {
	var before *models.Term
	if tr.Before.ID != "" {
		before = &tr.Before
	}
	s.writeAudit(ctx, actor, action, before, &tr.After, tr.Reason)
	s.invalidate(ctx, tr.After.ID)
	s.metrics.RecordTransition(string(tr.Kind))
	fields := []zap.Field{
		zap.String("term_id", tr.After.ID),
		zap.String("transition", string(tr.Kind)),
		zap.String("status", string(tr.After.Status)),
		zap.Bool("reopened", tr.Reopened),
	}
	if actor.RequestID != "" {
		fields = append(fields, zap.String("request_id", actor.RequestID))
	}
	s.logger.Info("term transition", fields...)
	return &TransitionResult{Term: s.view(tr.After, now), Kind: tr.Kind, Reopened: tr.Reopened}
}

func (s *TermService) reject(err error) error {
	if re, ok := governance.AsRuleError(err); ok {
		s.metrics.RecordRejection(re.Rule)
	}
	return fromRuleError(err)
}

func (s *TermService) snapshot(ctx context.Context, term models.Term) {
	if s.snapshots == nil {
		return
	}
	if _, err := s.snapshots.Snapshot(ctx, term); err != nil {
		s.logger.Warn("failed to snapshot term statistics", zap.String("term_id", term.ID), zap.Error(err))
	}
}

func (s *TermService) invalidate(ctx context.Context, termID string) {
	if termID == "" {
		return
	}
	_ = s.cache.Invalidate(ctx, TermStatisticsPattern(termID))
}

func (s *TermService) writeAudit(ctx context.Context, actor models.Actor, action string, before, after *models.Term, reason string) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		Action:    action,
		Resource:  models.AuditResourceTerm,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
	}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if reason != "" {
		entry.Reason = &reason
	}
	for _, t := range []*models.Term{after, before} {
		if t != nil && t.ID != "" {
			resourceID := t.ID
			entry.ResourceID = &resourceID
			break
		}
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(after)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func activeExists() error {
	return &governance.RuleError{Kind: governance.KindConflict, Rule: governance.RuleActiveExists, Reasons: []string{"another term is already active"}}
}

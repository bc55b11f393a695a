package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sk-governance-api/internal/governance"
	"github.com/noah-isme/sk-governance-api/internal/models"
	appErrors "github.com/noah-isme/sk-governance-api/pkg/errors"
	"github.com/noah-isme/sk-governance-api/pkg/export"
)

// Statistics sources reported to clients and metrics.
const (
	SourceSnapshot = "snapshot"
	SourceCache    = "cache"
	SourceLive     = "live"
)

type statisticsTermRepository interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
	SaveStatistics(ctx context.Context, id string, payload []byte) error
}

type rosterRepository interface {
	ListAssignmentsByTerm(ctx context.Context, termID string) ([]models.OfficialAssignment, error)
}

type barangayRegistry interface {
	List(ctx context.Context) ([]models.Barangay, error)
}

type tableRenderer interface {
	ContentType() string
	Extension() string
	Render(table export.Table) ([]byte, error)
}

// TermStatisticsResult is the term-wide summary plus where it came from.
type TermStatisticsResult struct {
	TermID     string                            `json:"termId"`
	Status     models.TermStatus                 `json:"status"`
	Source     string                            `json:"source"`
	Statistics governance.StatisticsRecord       `json:"statistics"`
	Warnings   []governance.DataIntegrityWarning `json:"warnings,omitempty"`
}

// VacancyResult is the per-barangay breakdown of a term.
type VacancyResult struct {
	TermID string `json:"termId"`
	Source string `json:"source"`
	governance.VacancyReport
}

// ExportFile is a rendered statistics document.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// StatisticsService aggregates seat occupancy for terms.
type StatisticsService struct {
	terms     statisticsTermRepository
	roster    rosterRepository
	barangays barangayRegistry
	cache     *CacheService
	metrics   *MetricsService
	capacity  governance.CapacityTable
	renderers map[string]tableRenderer
	logger    *zap.Logger
	clock     func() time.Time
	location  *time.Location
}

// NewStatisticsService constructs the statistics service. A nil capacity table uses the
// default SK seat allocation.
func NewStatisticsService(terms statisticsTermRepository, roster rosterRepository, barangays barangayRegistry, cache *CacheService, metrics *MetricsService, capacity governance.CapacityTable, location *time.Location, logger *zap.Logger) *StatisticsService {
	if capacity == nil {
		capacity = governance.DefaultCapacity()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &StatisticsService{
		terms:     terms,
		roster:    roster,
		barangays: barangays,
		cache:     cache,
		metrics:   metrics,
		capacity:  capacity,
		renderers: map[string]tableRenderer{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		logger:   logger,
		clock:    time.Now,
		location: location,
	}
}

// TermStatistics returns the statistics of a term. Completed terms with a stored snapshot
// answer from it; everything else is aggregated from the roster, through the cache
// unless fresh is set.
func (s *StatisticsService) TermStatistics(ctx context.Context, termID string, fresh bool) (*TermStatisticsResult, error) {
	start := time.Now()
	term, err := s.load(ctx, termID)
	if err != nil {
		return nil, err
	}
	status := governance.DeriveStatus(*term, s.clock().In(s.location))

	if status == models.TermStatusCompleted && !fresh {
		if record := governance.NormalizeStatistics(*term); record != nil {
			s.metrics.ObserveStatistics(SourceSnapshot, time.Since(start))
			return &TermStatisticsResult{TermID: term.ID, Status: status, Source: SourceSnapshot, Statistics: *record}, nil
		}
	}

	report, source, err := s.report(ctx, *term, fresh)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveStatistics(source, time.Since(start))
	return &TermStatisticsResult{
		TermID:     term.ID,
		Status:     status,
		Source:     source,
		Statistics: report.Record,
		Warnings:   report.Warnings,
	}, nil
}

// Vacancies returns the per-barangay and per-position breakdown of a term.
func (s *StatisticsService) Vacancies(ctx context.Context, termID string, fresh bool) (*VacancyResult, error) {
	start := time.Now()
	term, err := s.load(ctx, termID)
	if err != nil {
		return nil, err
	}
	report, source, err := s.report(ctx, *term, fresh)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveStatistics(source, time.Since(start))
	return &VacancyResult{TermID: term.ID, Source: source, VacancyReport: report}, nil
}

// Export renders the vacancy breakdown of a term as csv or pdf.
func (s *StatisticsService) Export(ctx context.Context, termID, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	term, err := s.load(ctx, termID)
	if err != nil {
		return nil, err
	}
	report, _, err := s.report(ctx, *term, false)
	if err != nil {
		return nil, err
	}
	names, err := s.barangayNames(ctx)
	if err != nil {
		return nil, err
	}

	body, err := renderer.Render(vacancyTable(*term, report, names))
	if err != nil {
		return nil, internal(err, "failed to render statistics export")
	}
	s.logger.Info("statistics exported", zap.String("term_id", term.ID), zap.String("format", format), zap.Int("bytes", len(body)))
	return &ExportFile{
		Filename:    fmt.Sprintf("term-%s-statistics.%s", term.ID, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

// Snapshot aggregates the live roster of term and stores it as the term's statistics
// snapshot.
func (s *StatisticsService) Snapshot(ctx context.Context, term models.Term) (*governance.StatisticsRecord, error) {
	report, err := s.compute(ctx, term)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(report.Record)
	if err != nil {
		return nil, internal(err, "failed to encode statistics snapshot")
	}
	if err := s.terms.SaveStatistics(ctx, term.ID, payload); err != nil {
		return nil, internal(err, "failed to store statistics snapshot")
	}
	_ = s.cache.Invalidate(ctx, TermStatisticsPattern(term.ID))
	s.logger.Info("statistics snapshot stored", zap.String("term_id", term.ID), zap.Int("filled", report.Record.Filled), zap.Int("total", report.Record.Total))
	record := report.Record
	return &record, nil
}

// Barangays lists the jurisdiction.
func (s *StatisticsService) Barangays(ctx context.Context) ([]models.Barangay, error) {
	barangays, err := s.barangays.List(ctx)
	if err != nil {
		return nil, internal(err, "failed to load barangays")
	}
	return barangays, nil
}

func (s *StatisticsService) load(ctx context.Context, termID string) (*models.Term, error) {
	term, err := s.terms.FindByID(ctx, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, internal(err, "failed to load term")
	}
	return term, nil
}

func (s *StatisticsService) report(ctx context.Context, term models.Term, fresh bool) (governance.VacancyReport, string, error) {
	key := TermStatisticsKey(term.ID)
	if !fresh {
		var cached governance.VacancyReport
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached, SourceCache, nil
		}
	}
	report, err := s.compute(ctx, term)
	if err != nil {
		return governance.VacancyReport{}, "", err
	}
	_ = s.cache.Set(ctx, key, report, 0)
	return report, SourceLive, nil
}

// compute aggregates the roster. A snapshot-carrying term is counted against the
// jurisdiction it was snapshotted with.
func (s *StatisticsService) compute(ctx context.Context, term models.Term) (governance.VacancyReport, error) {
	roster, err := s.roster.ListAssignmentsByTerm(ctx, term.ID)
	if err != nil {
		return governance.VacancyReport{}, internal(err, "failed to load term roster")
	}

	var ids []string
	if record := governance.NormalizeStatistics(term); record != nil && len(record.BarangayIDs) > 0 {
		ids = record.BarangayIDs
	} else {
		barangays, err := s.barangays.List(ctx)
		if err != nil {
			return governance.VacancyReport{}, internal(err, "failed to load barangays")
		}
		ids = make([]string, 0, len(barangays))
		for _, b := range barangays {
			ids = append(ids, b.ID)
		}
	}

	report := governance.ComputeVacancyStats(roster, ids, s.capacity)
	for _, w := range report.Warnings {
		s.metrics.RecordWarning(string(w.Code))
		s.logger.Warn("statistics data integrity", zap.String("term_id", term.ID), zap.String("code", string(w.Code)), zap.String("detail", w.Message))
	}
	return report, nil
}

func (s *StatisticsService) barangayNames(ctx context.Context) (map[string]string, error) {
	barangays, err := s.barangays.List(ctx)
	if err != nil {
		return nil, internal(err, "failed to load barangays")
	}
	names := make(map[string]string, len(barangays))
	for _, b := range barangays {
		names[b.ID] = b.Name
	}
	return names, nil
}

func vacancyTable(term models.Term, report governance.VacancyReport, names map[string]string) export.Table {
	itoa := strconv.Itoa
	record := report.Record
	table := export.Table{
		Title: "Term statistics: " + term.Name,
		Summary: [][2]string{
			{"Term", term.Name},
			{"Period", governance.FormatDate(term.StartDate) + " to " + governance.FormatDate(term.EndDate)},
			{"Barangays", itoa(record.BarangayCount)},
			{"Total seats", itoa(record.Total)},
			{"Filled", itoa(record.Filled)},
			{"Vacant", itoa(record.Vacant)},
			{"Fill rate", itoa(record.Percent) + "%"},
		},
		Headers: []string{"Barangay"},
	}
	for _, p := range report.Positions {
		table.Headers = append(table.Headers, string(p.Position))
	}
	table.Headers = append(table.Headers, "Capacity", "Filled", "Vacant")

	for _, b := range report.Barangays {
		name := names[b.BarangayID]
		if name == "" {
			name = b.BarangayID
		}
		row := []string{name}
		for _, slot := range b.Positions {
			row = append(row, fmt.Sprintf("%d/%d", slot.Filled, slot.Capacity))
		}
		row = append(row, itoa(b.Capacity), itoa(b.Filled), itoa(b.Vacant))
		table.Rows = append(table.Rows, row)
	}
	return table
}

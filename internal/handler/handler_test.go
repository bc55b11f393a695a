package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sk-governance-api/internal/governance"
	"github.com/noah-isme/sk-governance-api/internal/middleware"
	"github.com/noah-isme/sk-governance-api/internal/models"
	"github.com/noah-isme/sk-governance-api/internal/service"
	appErrors "github.com/noah-isme/sk-governance-api/pkg/errors"
)

type fakeTermService struct {
	filter      models.TermFilter
	actor       models.Actor
	id          string
	create      service.CreateTermRequest
	complete    service.CompleteTermRequest
	extend      service.ExtendTermRequest
	err         error
	deleteCalls int
}

func (f *fakeTermService) result(id string) *service.TransitionResult {
	return &service.TransitionResult{Term: service.TermView{Term: models.Term{ID: id, Name: "2025-2027 Term"}}}
}

func (f *fakeTermService) List(ctx context.Context, filter models.TermFilter) ([]service.TermView, *models.Pagination, error) {
	f.filter = filter
	return []service.TermView{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, f.err
}

func (f *fakeTermService) Get(ctx context.Context, id string) (*service.TermView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.TermView{Term: models.Term{ID: id}}, nil
}

func (f *fakeTermService) GetActive(ctx context.Context) (*service.TermView, error) {
	return f.Get(ctx, "active")
}

func (f *fakeTermService) Validate(ctx context.Context, req service.ValidateTermRequest) (*governance.ValidationResult, error) {
	return &governance.ValidationResult{Valid: true, Errors: []string{}}, f.err
}

func (f *fakeTermService) Create(ctx context.Context, actor models.Actor, req service.CreateTermRequest) (*service.TransitionResult, error) {
	f.actor, f.create = actor, req
	if f.err != nil {
		return nil, f.err
	}
	return f.result("term-1"), nil
}

func (f *fakeTermService) Update(ctx context.Context, actor models.Actor, id string, req service.UpdateTermRequest) (*service.TransitionResult, error) {
	f.actor, f.id = actor, id
	return f.result(id), f.err
}

func (f *fakeTermService) Delete(ctx context.Context, actor models.Actor, id string) error {
	f.actor, f.id = actor, id
	f.deleteCalls++
	return f.err
}

func (f *fakeTermService) Activate(ctx context.Context, actor models.Actor, id string) (*service.TransitionResult, error) {
	f.actor, f.id = actor, id
	if f.err != nil {
		return nil, f.err
	}
	return f.result(id), nil
}

func (f *fakeTermService) Complete(ctx context.Context, actor models.Actor, id string, req service.CompleteTermRequest) (*service.TransitionResult, error) {
	f.actor, f.id, f.complete = actor, id, req
	return f.result(id), f.err
}

func (f *fakeTermService) Extend(ctx context.Context, actor models.Actor, id string, req service.ExtendTermRequest) (*service.TransitionResult, error) {
	f.actor, f.id, f.extend = actor, id, req
	return f.result(id), f.err
}

func (f *fakeTermService) ReconcileOverdue(ctx context.Context, actor models.Actor) (*service.ReconcileResult, error) {
	f.actor = actor
	return &service.ReconcileResult{Checked: 2, Completed: []string{"t1"}}, f.err
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Meta       map[string]interface{} `json:"meta"`
	Pagination *models.Pagination     `json:"pagination"`
	Error      *struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func withClaims(c *gin.Context) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	c.Next()
}

func termRouter(svc termService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewTermHandler(svc)
	router := gin.New()
	router.Use(withClaims)
	router.GET("/terms", h.List)
	router.GET("/terms/active", h.GetActive)
	router.POST("/terms/validate", h.Validate)
	router.POST("/terms/reconcile", h.Reconcile)
	router.POST("/terms", h.Create)
	router.GET("/terms/:id", h.Get)
	router.PUT("/terms/:id", h.Update)
	router.DELETE("/terms/:id", h.Delete)
	router.POST("/terms/:id/activate", h.Activate)
	router.POST("/terms/:id/complete", h.Complete)
	router.POST("/terms/:id/extend", h.Extend)
	return router
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "handler-test")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestTermHandlerCreate(t *testing.T) {
	svc := &fakeTermService{}
	rec := serve(termRouter(svc), http.MethodPost, "/terms", `{"term_name":"2025-2027 Term","start_date":"2025-07-01","end_date":"2027-06-30"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "2025-2027 Term", svc.create.Name)
	assert.Equal(t, "2025-07-01", svc.create.StartDate)
	assert.Equal(t, "admin-1", svc.actor.UserID)
	assert.Equal(t, "handler-test", svc.actor.UserAgent)
	assert.NotEmpty(t, svc.actor.IPAddress)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var data service.TransitionResult
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	assert.Equal(t, "term-1", data.Term.ID)
}

func TestTermHandlerCreateInvalidJSON(t *testing.T) {
	rec := serve(termRouter(&fakeTermService{}), http.MethodPost, "/terms", `{"term_name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, rec).Error.Code)
}

func TestTermHandlerConflictCarriesDetails(t *testing.T) {
	svc := &fakeTermService{err: appErrors.WithDetails(
		appErrors.Clone(appErrors.ErrActiveTermExists, `term "A" is already active`),
		service.RuleDetails{Rule: governance.RuleActiveExists, Reasons: []string{`term "A" is already active`}},
	)}
	rec := serve(termRouter(svc), http.MethodPost, "/terms/t2/activate", "")

	require.Equal(t, http.StatusConflict, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrActiveTermExists.Code, env.Error.Code)
	assert.Equal(t, governance.RuleActiveExists, env.Error.Details["rule"])
	assert.Equal(t, "t2", svc.id)
}

func TestTermHandlerListParsesQuery(t *testing.T) {
	svc := &fakeTermService{}
	rec := serve(termRouter(svc), http.MethodGet, "/terms?status=Active&page=2&limit=5&search=2025&sort=start_date&order=desc", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.TermStatusActive, svc.filter.Status)
	assert.Equal(t, 2, svc.filter.Page)
	assert.Equal(t, 5, svc.filter.PageSize)
	assert.Equal(t, "2025", svc.filter.Search)
	assert.Equal(t, "start_date", svc.filter.SortBy)
	assert.Equal(t, "desc", svc.filter.SortOrder)
	assert.Equal(t, 2, decode(t, rec).Pagination.Page)
}

func TestTermHandlerCompleteWithoutBody(t *testing.T) {
	svc := &fakeTermService{}
	rec := serve(termRouter(svc), http.MethodPost, "/terms/t1/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.complete.Force)

	rec = serve(termRouter(svc), http.MethodPost, "/terms/t1/complete", `{"force":true,"reason":"resigned"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.complete.Force)
	assert.Equal(t, "resigned", svc.complete.Reason)
}

func TestTermHandlerExtend(t *testing.T) {
	svc := &fakeTermService{}
	rec := serve(termRouter(svc), http.MethodPost, "/terms/t1/extend", `{"end_date":"2028-06-30","reason":"postponed elections"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2028-06-30", svc.extend.EndDate)
	assert.Equal(t, "t1", svc.id)
}

func TestTermHandlerDeleteAndGet(t *testing.T) {
	svc := &fakeTermService{}
	router := termRouter(svc)

	rec := serve(router, http.MethodDelete, "/terms/t3", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, svc.deleteCalls)

	rec = serve(router, http.MethodGet, "/terms/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decode(t, rec).Data), `"id":"active"`)

	svc.err = appErrors.Clone(appErrors.ErrNotFound, "term not found")
	rec = serve(router, http.MethodGet, "/terms/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTermHandlerValidateAndReconcile(t *testing.T) {
	svc := &fakeTermService{}
	router := termRouter(svc)

	rec := serve(router, http.MethodPost, "/terms/validate", `{"term_name":"x","start_date":"2025-01-01","end_date":"2026-01-01"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decode(t, rec).Data), `"valid":true`)

	rec = serve(router, http.MethodPost, "/terms/reconcile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decode(t, rec).Data), `"completed":["t1"]`)
	assert.Equal(t, "admin-1", svc.actor.UserID)
}

type fakeStatisticsService struct {
	fresh  bool
	format string
	err    error
}

func (f *fakeStatisticsService) TermStatistics(ctx context.Context, termID string, fresh bool) (*service.TermStatisticsResult, error) {
	f.fresh = fresh
	if f.err != nil {
		return nil, f.err
	}
	return &service.TermStatisticsResult{TermID: termID, Source: service.SourceCache, Statistics: governance.StatisticsRecord{Total: 20, Filled: 1}}, nil
}

func (f *fakeStatisticsService) Vacancies(ctx context.Context, termID string, fresh bool) (*service.VacancyResult, error) {
	f.fresh = fresh
	return &service.VacancyResult{TermID: termID, Source: service.SourceLive}, f.err
}

func (f *fakeStatisticsService) Export(ctx context.Context, termID, format string) (*service.ExportFile, error) {
	f.format = format
	if f.err != nil {
		return nil, f.err
	}
	return &service.ExportFile{Filename: "term-" + termID + "-statistics.csv", ContentType: "text/csv", Body: []byte("a,b\n")}, nil
}

func (f *fakeStatisticsService) Barangays(ctx context.Context) ([]models.Barangay, error) {
	return []models.Barangay{{ID: "b1", Name: "Poblacion"}}, f.err
}

func statisticsRouter(svc statisticsService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewStatisticsHandler(svc)
	router := gin.New()
	router.Use(middleware.WithResponseMeta())
	router.GET("/terms/:id/statistics", h.Statistics)
	router.GET("/terms/:id/vacancies", h.Vacancies)
	router.GET("/terms/:id/statistics/export", h.Export)
	router.GET("/barangays", h.Barangays)
	return router
}

func TestStatisticsHandlerStatistics(t *testing.T) {
	svc := &fakeStatisticsService{}
	rec := serve(statisticsRouter(svc), http.MethodGet, "/terms/t1/statistics?fresh=true", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.fresh)
	env := decode(t, rec)
	assert.Equal(t, "cache", env.Meta["source"])
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, string(env.Data), `"total":20`)
}

func TestStatisticsHandlerVacancies(t *testing.T) {
	svc := &fakeStatisticsService{}
	rec := serve(statisticsRouter(svc), http.MethodGet, "/terms/t1/vacancies", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.fresh)
	assert.Equal(t, false, decode(t, rec).Meta["cache_hit"])
}

func TestStatisticsHandlerExport(t *testing.T) {
	svc := &fakeStatisticsService{}
	rec := serve(statisticsRouter(svc), http.MethodGet, "/terms/t1/statistics/export", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", svc.format)
	assert.Equal(t, `attachment; filename="term-t1-statistics.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "a,b\n", rec.Body.String())

	svc.err = appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	rec = serve(statisticsRouter(svc), http.MethodGet, "/terms/t1/statistics/export?format=xlsx", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "xlsx", svc.format)
}

func TestStatisticsHandlerBarangays(t *testing.T) {
	rec := serve(statisticsRouter(&fakeStatisticsService{}), http.MethodGet, "/barangays", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decode(t, rec).Data), "Poblacion")
}

func TestStatisticsHandlerInternalError(t *testing.T) {
	svc := &fakeStatisticsService{err: errors.New("db down")}
	rec := serve(statisticsRouter(svc), http.MethodGet, "/terms/t1/statistics", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, appErrors.ErrInternal.Code, decode(t, rec).Error.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	healthy := NewMetricsHandler(service.NewMetricsService(), map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
	})
	failing := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	router := gin.New()
	router.GET("/ready", healthy.Ready)
	router.GET("/ready-failing", failing.Ready)
	router.GET("/healthz", healthy.Health)
	router.GET("/metrics", healthy.Prometheus)
	router.GET("/metrics-off", failing.Prometheus)

	rec := serve(router, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ready"`)

	rec = serve(router, http.MethodGet, "/ready-failing", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(router, http.MethodGet, "/metrics-off", "").Code)
}

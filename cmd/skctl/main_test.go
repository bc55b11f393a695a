package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sk-governance-api/internal/governance"
	"github.com/noah-isme/sk-governance-api/internal/models"
	"github.com/noah-isme/sk-governance-api/internal/service"
)

type fakeBackend struct {
	filter    models.TermFilter
	validate  service.ValidateTermRequest
	actor     models.Actor
	statsID   string
	fresh     bool
	valid     bool
	reconcile *service.ReconcileResult
	err       error
}

func (f *fakeBackend) List(ctx context.Context, filter models.TermFilter) ([]service.TermView, *models.Pagination, error) {
	f.filter = filter
	return []service.TermView{{Term: models.Term{ID: "t1", Name: "2024-2026 Term", Status: models.TermStatusActive}}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, f.err
}

func (f *fakeBackend) Validate(ctx context.Context, req service.ValidateTermRequest) (*governance.ValidationResult, error) {
	f.validate = req
	if f.valid {
		return &governance.ValidationResult{Valid: true, Errors: []string{}}, nil
	}
	return &governance.ValidationResult{Valid: false, Errors: []string{"end date must be after start date"}}, nil
}

func (f *fakeBackend) ReconcileOverdue(ctx context.Context, actor models.Actor) (*service.ReconcileResult, error) {
	f.actor = actor
	return f.reconcile, f.err
}

func (f *fakeBackend) TermStatistics(ctx context.Context, termID string, fresh bool) (*service.TermStatisticsResult, error) {
	f.statsID, f.fresh = termID, fresh
	if f.err != nil {
		return nil, f.err
	}
	return &service.TermStatisticsResult{
		TermID: termID,
		Status: models.TermStatusActive,
		Source: service.SourceLive,
		Statistics: governance.StatisticsRecord{
			Total: 10, Filled: 4, Vacant: 6, Percent: 40, BarangayCount: 1, BarangayIDs: []string{"b1"},
		},
	}, nil
}

type fakeIssuer struct {
	user string
	role models.UserRole
	ttl  time.Duration
}

func (f *fakeIssuer) IssueToken(userID string, role models.UserRole, ttl time.Duration) (string, time.Time, error) {
	f.user, f.role, f.ttl = userID, role, ttl
	return "signed-token", time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC), nil
}

func execute(t *testing.T, d deps, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(d)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func depsFor(b *fakeBackend) (deps, *int) {
	closed := 0
	return deps{
		open: func() (backend, func(), error) {
			return b, func() { closed++ }, nil
		},
		tokens: &fakeIssuer{},
	}, &closed
}

func TestReconcileCommand(t *testing.T) {
	b := &fakeBackend{reconcile: &service.ReconcileResult{Checked: 2, Completed: []string{"t1"}}}
	d, closed := depsFor(b)

	out, err := execute(t, d, "reconcile")
	require.NoError(t, err)
	assert.Equal(t, cliAgent, b.actor.UserAgent)
	assert.Equal(t, 1, *closed)

	var decoded service.ReconcileResult
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, 2, decoded.Checked)
	assert.Equal(t, []string{"t1"}, decoded.Completed)
}

func TestStatsCommandYAML(t *testing.T) {
	b := &fakeBackend{}
	d, _ := depsFor(b)

	out, err := execute(t, d, "stats", "t1", "--fresh", "-o", "yaml")
	require.NoError(t, err)
	assert.Equal(t, "t1", b.statsID)
	assert.True(t, b.fresh)
	assert.Contains(t, out, "termId: t1")
	assert.Contains(t, out, "source: live")
	assert.Contains(t, out, "percent: 40")
}

func TestStatsCommandRequiresID(t *testing.T) {
	d, _ := depsFor(&fakeBackend{})
	_, err := execute(t, d, "stats")
	require.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	b := &fakeBackend{valid: true}
	d, _ := depsFor(b)

	out, err := execute(t, d, "validate", "--name", "2027-2029 Term", "--start", "2027-01-01", "--end", "2029-12-31", "--exclude", "t1")
	require.NoError(t, err)
	assert.Equal(t, service.ValidateTermRequest{Name: "2027-2029 Term", StartDate: "2027-01-01", EndDate: "2029-12-31", ExcludeTermID: "t1"}, b.validate)
	assert.Contains(t, out, `"valid": true`)

	b.valid = false
	out, err = execute(t, d, "validate", "--name", "x", "--start", "2027-01-01", "--end", "2026-01-01")
	require.Error(t, err)
	assert.Contains(t, out, "end date must be after start date")
}

func TestTermsCommand(t *testing.T) {
	b := &fakeBackend{}
	d, _ := depsFor(b)

	out, err := execute(t, d, "terms", "--status", "active", "--search", "2024", "--limit", "5")
	require.NoError(t, err)
	assert.Equal(t, models.TermStatusActive, b.filter.Status)
	assert.Equal(t, "2024", b.filter.Search)
	assert.Equal(t, 5, b.filter.PageSize)
	assert.Contains(t, out, `"2024-2026 Term"`)
}

func TestTokenCommandIsOffline(t *testing.T) {
	issuer := &fakeIssuer{}
	d := deps{
		open:   func() (backend, func(), error) { return nil, nil, errors.New("no database") },
		tokens: issuer,
	}

	out, err := execute(t, d, "token", "--user", "ops-1", "--role", "staff", "--ttl", "2h")
	require.NoError(t, err)
	assert.Equal(t, "ops-1", issuer.user)
	assert.Equal(t, models.RoleStaff, issuer.role)
	assert.Equal(t, 2*time.Hour, issuer.ttl)
	assert.Contains(t, out, `"access_token": "signed-token"`)
	assert.Contains(t, out, `"expires_at": "2025-07-01T12:00:00Z"`)

	_, err = execute(t, d, "token", "--user", "ops-1", "--role", "mayor")
	require.Error(t, err)
	_, err = execute(t, d, "token")
	require.Error(t, err)
}

func TestBackendErrors(t *testing.T) {
	d := deps{open: func() (backend, func(), error) { return nil, nil, errors.New("no database") }}
	_, err := execute(t, d, "reconcile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open backend")

	b := &fakeBackend{err: errors.New("boom")}
	d, _ = depsFor(b)
	_, err = execute(t, d, "stats", "t1")
	require.EqualError(t, err, "boom")
}

func TestUnsupportedOutput(t *testing.T) {
	d, _ := depsFor(&fakeBackend{})
	_, err := execute(t, d, "reconcile", "-o", "xml")
	require.Error(t, err)
}

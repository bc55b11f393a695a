package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sk-governance-api/internal/middleware"
	"github.com/noah-isme/sk-governance-api/internal/models"
	"github.com/noah-isme/sk-governance-api/internal/service"
	"github.com/noah-isme/sk-governance-api/pkg/response"
)

type statisticsService interface {
	TermStatistics(ctx context.Context, termID string, fresh bool) (*service.TermStatisticsResult, error)
	Vacancies(ctx context.Context, termID string, fresh bool) (*service.VacancyResult, error)
	Export(ctx context.Context, termID, format string) (*service.ExportFile, error)
	Barangays(ctx context.Context) ([]models.Barangay, error)
}

// StatisticsHandler exposes seat occupancy endpoints.
type StatisticsHandler struct {
	service statisticsService
}

// NewStatisticsHandler constructs a statistics handler.
func NewStatisticsHandler(svc statisticsService) *StatisticsHandler {
	return &StatisticsHandler{service: svc}
}

// Statistics godoc
// @Summary Term statistics
// @Description Fill and vacancy totals; completed terms answer from their snapshot
// @Tags Statistics
// @Produce json
// @Param id path string true "Term ID"
// @Param fresh query bool false "Bypass cache and snapshot"
// @Success 200 {object} response.Envelope
// @Router /terms/{id}/statistics [get]
func (h *StatisticsHandler) Statistics(c *gin.Context) {
	result, err := h.service.TermStatistics(c.Request.Context(), c.Param("id"), freshQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetStatisticsSource(c, result.Source)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Vacancies godoc
// @Summary Term vacancies
// @Description Per-barangay and per-position seat breakdown
// @Tags Statistics
// @Produce json
// @Param id path string true "Term ID"
// @Param fresh query bool false "Bypass cache"
// @Success 200 {object} response.Envelope
// @Router /terms/{id}/vacancies [get]
func (h *StatisticsHandler) Vacancies(c *gin.Context) {
	result, err := h.service.Vacancies(c.Request.Context(), c.Param("id"), freshQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetStatisticsSource(c, result.Source)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Export term vacancies
// @Tags Statistics
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Term ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /terms/{id}/statistics/export [get]
func (h *StatisticsHandler) Export(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// Barangays godoc
// @Summary List barangays
// @Tags Statistics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /barangays [get]
func (h *StatisticsHandler) Barangays(c *gin.Context) {
	barangays, err := h.service.Barangays(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, barangays, nil)
}

package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sk-governance-api/internal/governance"
	"github.com/noah-isme/sk-governance-api/internal/models"
	"github.com/noah-isme/sk-governance-api/internal/service"
	appErrors "github.com/noah-isme/sk-governance-api/pkg/errors"
	"github.com/noah-isme/sk-governance-api/pkg/response"
)

type termService interface {
	List(ctx context.Context, filter models.TermFilter) ([]service.TermView, *models.Pagination, error)
	Get(ctx context.Context, id string) (*service.TermView, error)
	GetActive(ctx context.Context) (*service.TermView, error)
	Validate(ctx context.Context, req service.ValidateTermRequest) (*governance.ValidationResult, error)
	Create(ctx context.Context, actor models.Actor, req service.CreateTermRequest) (*service.TransitionResult, error)
	Update(ctx context.Context, actor models.Actor, id string, req service.UpdateTermRequest) (*service.TransitionResult, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
	Activate(ctx context.Context, actor models.Actor, id string) (*service.TransitionResult, error)
	Complete(ctx context.Context, actor models.Actor, id string, req service.CompleteTermRequest) (*service.TransitionResult, error)
	Extend(ctx context.Context, actor models.Actor, id string, req service.ExtendTermRequest) (*service.TransitionResult, error)
	ReconcileOverdue(ctx context.Context, actor models.Actor) (*service.ReconcileResult, error)
}

// TermHandler exposes term lifecycle endpoints.
type TermHandler struct {
	service termService
}

// NewTermHandler constructs a term handler.
func NewTermHandler(svc termService) *TermHandler {
	return &TermHandler{service: svc}
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
}

// List godoc
// @Summary List terms
// @Description List terms filtered by date-derived status
// @Tags Terms
// @Produce json
// @Param status query string false "upcoming, active or completed"
// @Param search query string false "Search by term name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "start_date, end_date, name or created_at"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /terms [get]
func (h *TermHandler) List(c *gin.Context) {
	filter := models.TermFilter{
		Status:    models.TermStatus(strings.ToLower(c.Query("status"))),
		Search:    c.Query("search"),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	terms, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, terms, pagination)
}

// Get godoc
// @Summary Get term
// @Tags Terms
// @Produce json
// @Param id path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /terms/{id} [get]
func (h *TermHandler) Get(c *gin.Context) {
	term, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term, nil)
}

// GetActive godoc
// @Summary Get active term
// @Tags Terms
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /terms/active [get]
func (h *TermHandler) GetActive(c *gin.Context) {
	term, err := h.service.GetActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term, nil)
}

// Validate godoc
// @Summary Validate term dates
// @Description Runs every term rule without saving
// @Tags Terms
// @Accept json
// @Produce json
// @Param payload body service.ValidateTermRequest true "Candidate term"
// @Success 200 {object} response.Envelope
// @Router /terms/validate [post]
func (h *TermHandler) Validate(c *gin.Context) {
	var req service.ValidateTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.service.Validate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Create godoc
// @Summary Create term
// @Tags Terms
// @Accept json
// @Produce json
// @Param payload body service.CreateTermRequest true "Term payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /terms [post]
func (h *TermHandler) Create(c *gin.Context) {
	var req service.CreateTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.service.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Update godoc
// @Summary Update term
// @Description Renames a term; dates can only change while it is upcoming
// @Tags Terms
// @Accept json
// @Produce json
// @Param id path string true "Term ID"
// @Param payload body service.UpdateTermRequest true "Term payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /terms/{id} [put]
func (h *TermHandler) Update(c *gin.Context) {
	var req service.UpdateTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.service.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete term
// @Tags Terms
// @Produce json
// @Param id path string true "Term ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /terms/{id} [delete]
func (h *TermHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Activate godoc
// @Summary Activate term
// @Description Starts an upcoming term today
// @Tags Terms
// @Produce json
// @Param id path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /terms/{id}/activate [post]
func (h *TermHandler) Activate(c *gin.Context) {
	result, err := h.service.Activate(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Complete godoc
// @Summary Complete term
// @Description Completes an active term; force also moves the end date to today
// @Tags Terms
// @Accept json
// @Produce json
// @Param id path string true "Term ID"
// @Param payload body service.CompleteTermRequest false "Completion options"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /terms/{id}/complete [post]
func (h *TermHandler) Complete(c *gin.Context) {
	var req service.CompleteTermRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.service.Complete(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Extend godoc
// @Summary Extend term
// @Description Moves the end date of an active or completed term later
// @Tags Terms
// @Accept json
// @Produce json
// @Param id path string true "Term ID"
// @Param payload body service.ExtendTermRequest true "New end date"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /terms/{id}/extend [post]
func (h *TermHandler) Extend(c *gin.Context) {
	var req service.ExtendTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.service.Extend(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reconcile godoc
// @Summary Complete overdue terms
// @Tags Terms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /terms/reconcile [post]
func (h *TermHandler) Reconcile(c *gin.Context) {
	result, err := h.service.ReconcileOverdue(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

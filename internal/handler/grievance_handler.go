package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-grievance-api/internal/models"
	"github.com/noah-isme/campus-grievance-api/internal/service"
	appErrors "github.com/noah-isme/campus-grievance-api/pkg/errors"
	"github.com/noah-isme/campus-grievance-api/pkg/response"
)

type grievanceService interface {
	Create(ctx context.Context, req service.CreateGrievanceRequest) (*service.GrievanceWithStatus, error)
	Get(ctx context.Context, id string, scope models.QueryScope) (*models.Grievance, error)
	List(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, *models.Pagination, error)
}

// GrievanceHandler exposes grievance endpoints.
type GrievanceHandler struct {
	grievances grievanceService
}

// NewGrievanceHandler constructs GrievanceHandler.
func NewGrievanceHandler(grievances grievanceService) *GrievanceHandler {
	return &GrievanceHandler{grievances: grievances}
}

// Create godoc
// @Summary File a grievance
// @Tags Grievances
// @Accept json
// @Produce json
// @Param payload body service.CreateGrievanceRequest true "Grievance payload"
// @Success 201 {object} response.Envelope
// @Router /grievances [post]
func (h *GrievanceHandler) Create(c *gin.Context) {
	var req service.CreateGrievanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	created, err := h.grievances.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Get godoc
// @Summary Get grievance detail
// @Tags Grievances
// @Produce json
// @Param id path string true "Grievance ID"
// @Success 200 {object} response.Envelope
// @Router /grievances/{id} [get]
func (h *GrievanceHandler) Get(c *gin.Context) {
	claims, _ := currentClaims(c)
	grievance, err := h.grievances.Get(c.Request.Context(), c.Param("id"), models.ScopeForClaims(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grievance, nil)
}

// List godoc
// @Summary List grievances within the caller's scope
// @Tags Grievances
// @Produce json
// @Param search query string false "Search by reference or subject"
// @Param studentId query string false "Filter by student"
// @Param issueType query string false "Filter by issue type"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /grievances [get]
func (h *GrievanceHandler) List(c *gin.Context) {
	claims, _ := currentClaims(c)

	var filter models.GrievanceFilter
	filter.Scope = models.ScopeForClaims(claims)
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.StudentID = c.Query("studentId")
	filter.IssueType = c.Query("issueType")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	grievances, pagination, err := h.grievances.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grievances, pagination)
}

package handler

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-grievance-api/internal/models"
	"github.com/noah-isme/campus-grievance-api/internal/service"
	appErrors "github.com/noah-isme/campus-grievance-api/pkg/errors"
	"github.com/noah-isme/campus-grievance-api/pkg/response"
)

type trackingService interface {
	CreateTrackingEntry(ctx context.Context, req service.CreateTrackingEntryRequest, actingAdminID string) (*models.TrackingEntry, error)
	RedirectGrievance(ctx context.Context, grievanceID, fromAdminID, toAdminID, comment string) (*models.TrackingEntry, error)
	GetCurrentStatus(ctx context.Context, grievanceID string) (*models.TrackingEntry, error)
	GetHistory(ctx context.Context, grievanceID string) (*models.TrackingHistory, error)
}

type exportService interface {
	ExportHistory(ctx context.Context, grievanceID, format, adminID string) (*service.ExportResult, error)
	Resolve(token string) (*os.File, string, error)
}

// TrackingHandler exposes the tracking engine endpoints.
type TrackingHandler struct {
	tracking trackingService
	exports  exportService
}

// NewTrackingHandler constructs TrackingHandler. A nil exports service
// disables the export endpoints.
func NewTrackingHandler(tracking trackingService, exports exportService) *TrackingHandler {
	return &TrackingHandler{tracking: tracking, exports: exports}
}

// Create godoc
// @Summary Append a tracking entry
// @Tags Tracking
// @Accept json
// @Produce json
// @Param payload body service.CreateTrackingEntryRequest true "Tracking entry payload"
// @Success 201 {object} response.Envelope
// @Router /tracking [post]
func (h *TrackingHandler) Create(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateTrackingEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	entry, err := h.tracking.CreateTrackingEntry(c.Request.Context(), req, claims.AdminID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// RedirectRequest is the redirect endpoint payload.
type RedirectRequest struct {
	ToAdminID string `json:"to_admin_id" binding:"required"`
	Comment   string `json:"comment"`
}

// Redirect godoc
// @Summary Redirect a grievance to another admin
// @Tags Tracking
// @Accept json
// @Produce json
// @Param grievanceId path string true "Grievance ID"
// @Param payload body RedirectRequest true "Redirect payload"
// @Success 201 {object} response.Envelope
// @Router /tracking/{grievanceId}/redirect [post]
func (h *TrackingHandler) Redirect(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req RedirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	entry, err := h.tracking.RedirectGrievance(c.Request.Context(), c.Param("grievanceId"), claims.AdminID, req.ToAdminID, req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// History godoc
// @Summary Get a grievance's tracking history with summary
// @Tags Tracking
// @Produce json
// @Param grievanceId path string true "Grievance ID"
// @Success 200 {object} response.Envelope
// @Router /tracking/{grievanceId} [get]
func (h *TrackingHandler) History(c *gin.Context) {
	history, err := h.tracking.GetHistory(c.Request.Context(), c.Param("grievanceId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// Status godoc
// @Summary Get a grievance's current status
// @Tags Tracking
// @Produce json
// @Param grievanceId path string true "Grievance ID"
// @Success 200 {object} response.Envelope
// @Router /tracking/{grievanceId}/status [get]
func (h *TrackingHandler) Status(c *gin.Context) {
	entry, err := h.tracking.GetCurrentStatus(c.Request.Context(), c.Param("grievanceId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Export godoc
// @Summary Export a grievance's history as CSV or PDF
// @Tags Tracking
// @Produce json
// @Param grievanceId path string true "Grievance ID"
// @Param format query string false "csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /tracking/{grievanceId}/export [get]
func (h *TrackingHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	result, err := h.exports.ExportHistory(c.Request.Context(), c.Param("grievanceId"), c.Query("format"), claims.AdminID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download a previously exported history document
// @Tags Tracking
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200
// @Router /exports/download [get]
func (h *TrackingHandler) Download(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}

	file, name, err := h.exports.Resolve(c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.FileAttachment(file.Name(), name)
}

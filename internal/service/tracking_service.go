package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-grievance-api/internal/models"
	"github.com/noah-isme/campus-grievance-api/internal/repository"
	appErrors "github.com/noah-isme/campus-grievance-api/pkg/errors"
)

type trackingStore interface {
	Create(ctx context.Context, entry *models.TrackingEntry, guard repository.TransitionGuard) (*models.TrackingEntry, error)
	LatestByGrievance(ctx context.Context, grievanceID string) (*models.TrackingEntry, error)
	HistoryByGrievance(ctx context.Context, grievanceID string) ([]models.TrackingEntry, error)
	ExistsGrievance(ctx context.Context, id string) (bool, error)
	ExistsActiveAdmin(ctx context.Context, id string) (bool, error)
}

type auditSink interface {
	Record(log *models.AuditLog)
}

// TrackingService orchestrates the status transition engine: authorization
// preconditions, the transition table, redirect rules and history
// enrichment. All persistence is delegated to the repository, which runs
// the transition guard inside the same transaction as the insert.
type TrackingService struct {
	repo      trackingStore
	cache     *CacheService
	audit     auditSink
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTrackingService constructs the service.
func NewTrackingService(repo trackingStore, cache *CacheService, audit auditSink, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *TrackingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackingService{
		repo:      repo,
		cache:     cache,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// CreateTrackingEntryRequest describes one admin action on a grievance.
type CreateTrackingEntryRequest struct {
	GrievanceID    string  `json:"grievance_id" validate:"required"`
	ResponseText   string  `json:"response_text" validate:"required"`
	AdminStatus    string  `json:"admin_status" validate:"required"`
	StudentStatus  string  `json:"student_status" validate:"required"`
	ResponseBy     string  `json:"response_by" validate:"required"`
	RedirectTo     *string `json:"redirect_to,omitempty"`
	RedirectFrom   *string `json:"redirect_from,omitempty"`
	IsRedirect     bool    `json:"is_redirect"`
	HasAttachments bool    `json:"has_attachments"`
}

// CreateTrackingEntry appends one entry after enforcing the authorization
// precondition, payload shape and redirect consistency. The status
// transition itself is re-validated inside the repository transaction, so
// concurrent writers on the same grievance cannot both commit against a
// stale current status.
func (s *TrackingService) CreateTrackingEntry(ctx context.Context, req CreateTrackingEntryRequest, actingAdminID string) (*models.TrackingEntry, error) {
	return s.appendEntry(ctx, req, actingAdminID, models.AuditActionTrackingCreate)
}

// appendEntry is the single creation path. auditAction names the admin
// action being recorded, so each action audits exactly once no matter
// which operation funnelled into it.
func (s *TrackingService) appendEntry(ctx context.Context, req CreateTrackingEntryRequest, actingAdminID, auditAction string) (*models.TrackingEntry, error) {
	if req.ResponseBy != actingAdminID {
		s.reject(appErrors.ErrUnauthorized.Code)
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "admins may not respond on another admin's behalf")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tracking payload")
	}

	adminStatus := models.AdminStatus(req.AdminStatus)
	studentStatus := models.StudentStatus(req.StudentStatus)
	if !adminStatus.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown admin status "+req.AdminStatus)
	}
	if !studentStatus.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown student status "+req.StudentStatus)
	}

	if err := s.checkRedirectShape(req, adminStatus); err != nil {
		s.reject(appErrors.FromError(err).Code)
		return nil, err
	}

	entry := &models.TrackingEntry{
		GrievanceID:    req.GrievanceID,
		ResponseText:   req.ResponseText,
		AdminStatus:    adminStatus,
		StudentStatus:  studentStatus,
		ResponseBy:     req.ResponseBy,
		RedirectTo:     req.RedirectTo,
		RedirectFrom:   req.RedirectFrom,
		IsRedirect:     req.IsRedirect,
		HasAttachments: req.HasAttachments,
	}

	created, err := s.repo.Create(ctx, entry, func(current *models.TrackingEntry) error {
		var currentStatus *models.AdminStatus
		if current != nil {
			currentStatus = &current.AdminStatus
		}
		if !models.CanTransition(currentStatus, adminStatus) {
			from := ""
			if currentStatus != nil {
				from = string(*currentStatus)
			}
			return appErrors.Transition(from, string(adminStatus))
		}
		return nil
	})
	if err != nil {
		s.reject(appErrors.FromError(err).Code)
		return nil, err
	}

	s.cache.InvalidateGrievance(ctx, created.GrievanceID)
	if s.metrics != nil {
		s.metrics.RecordTrackingEntry(string(created.AdminStatus))
	}
	s.emitAudit(created, auditAction)
	return created, nil
}

// RedirectGrievance reassigns responsibility to another admin without
// resolving the grievance. It funnels into the same creation path so
// transition validation and atomicity are not duplicated.
func (s *TrackingService) RedirectGrievance(ctx context.Context, grievanceID, fromAdminID, toAdminID, comment string) (*models.TrackingEntry, error) {
	if fromAdminID == toAdminID {
		s.reject(appErrors.ErrSelfRedirect.Code)
		return nil, appErrors.Clone(appErrors.ErrSelfRedirect, "")
	}

	exists, err := s.repo.ExistsGrievance(ctx, grievanceID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
	}
	for _, adminID := range []string{fromAdminID, toAdminID} {
		active, err := s.repo.ExistsActiveAdmin(ctx, adminID)
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admin "+adminID+" not found or inactive")
		}
	}

	if comment == "" {
		comment = "Grievance redirected"
	}
	return s.appendEntry(ctx, CreateTrackingEntryRequest{
		GrievanceID:   grievanceID,
		ResponseText:  comment,
		AdminStatus:   string(models.AdminStatusRedirected),
		StudentStatus: string(models.StudentStatusUnderReview),
		ResponseBy:    fromAdminID,
		RedirectTo:    &toAdminID,
		RedirectFrom:  &fromAdminID,
		IsRedirect:    true,
	}, fromAdminID, models.AuditActionRedirect)
}

// GetCurrentStatus returns the latest entry, or nil when no history exists.
func (s *TrackingService) GetCurrentStatus(ctx context.Context, grievanceID string) (*models.TrackingEntry, error) {
	key := repository.StatusCacheKey(grievanceID)
	var cached models.TrackingEntry
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	entry, err := s.repo.LatestByGrievance(ctx, grievanceID)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		s.cache.Set(ctx, key, entry)
	}
	return entry, nil
}

// GetHistory returns the ordered entries with a derived summary. The
// summary is computed on read, never stored.
func (s *TrackingService) GetHistory(ctx context.Context, grievanceID string) (*models.TrackingHistory, error) {
	key := repository.HistoryCacheKey(grievanceID)
	var cached models.TrackingHistory
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	entries, err := s.repo.HistoryByGrievance(ctx, grievanceID)
	if err != nil {
		return nil, err
	}

	history := &models.TrackingHistory{
		Entries: entries,
		Summary: summarize(entries),
	}
	if len(entries) > 0 {
		s.cache.Set(ctx, key, history)
	}
	return history, nil
}

func (s *TrackingService) checkRedirectShape(req CreateTrackingEntryRequest, adminStatus models.AdminStatus) error {
	if req.IsRedirect {
		if req.RedirectTo == nil || *req.RedirectTo == "" {
			return appErrors.Clone(appErrors.ErrInvalidRedirect, "redirect requires a target admin")
		}
		if adminStatus != models.AdminStatusRedirected {
			return appErrors.Clone(appErrors.ErrInvalidRedirect, "redirect entries must use the REDIRECTED status")
		}
		if *req.RedirectTo == req.ResponseBy {
			return appErrors.Clone(appErrors.ErrSelfRedirect, "")
		}
		return nil
	}
	if adminStatus == models.AdminStatusRedirected {
		return appErrors.Clone(appErrors.ErrInvalidRedirect, "the REDIRECTED status requires a redirect entry")
	}
	if req.RedirectTo != nil {
		return appErrors.Clone(appErrors.ErrInvalidRedirect, "redirect target set on a non-redirect entry")
	}
	return nil
}

func (s *TrackingService) reject(kind string) {
	if s.metrics != nil {
		s.metrics.RecordTrackingRejection(kind)
	}
}

func (s *TrackingService) emitAudit(entry *models.TrackingEntry, action string) {
	if s.audit == nil || entry == nil {
		return
	}
	details, err := json.Marshal(map[string]interface{}{
		"admin_status":   entry.AdminStatus,
		"student_status": entry.StudentStatus,
		"is_redirect":    entry.IsRedirect,
		"redirect_to":    entry.RedirectTo,
	})
	if err != nil {
		s.logger.Warn("failed to encode audit details", zap.Error(err))
	}
	adminID := entry.ResponseBy
	s.audit.Record(&models.AuditLog{
		AdminID:    &adminID,
		Action:     action,
		Resource:   "tracking",
		ResourceID: &entry.GrievanceID,
		Details:    details,
	})
}

// summarize derives the history summary. Resolution time is only reported
// once the student-visible status reached a terminal value.
func summarize(entries []models.TrackingEntry) *models.TrackingSummary {
	if len(entries) == 0 {
		return nil
	}
	first := entries[0]
	last := entries[len(entries)-1]

	redirects := 0
	for _, entry := range entries {
		if entry.IsRedirect {
			redirects++
		}
	}

	summary := &models.TrackingSummary{
		TotalEntries:  len(entries),
		AdminStatus:   last.AdminStatus,
		StudentStatus: last.StudentStatus,
		CreatedAt:     first.ResponseAt,
		LastUpdated:   last.ResponseAt,
		RedirectCount: redirects,
	}
	if last.StudentStatus.Terminal() {
		elapsed := last.ResponseAt.Sub(first.ResponseAt).Round(time.Second).String()
		summary.ResolutionTime = &elapsed
	}
	return summary
}

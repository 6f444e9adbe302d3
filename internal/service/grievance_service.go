package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-grievance-api/internal/models"
	appErrors "github.com/noah-isme/campus-grievance-api/pkg/errors"
)

type grievanceStore interface {
	Create(ctx context.Context, grievance *models.Grievance) (*models.TrackingEntry, error)
	FindByID(ctx context.Context, id string) (*models.Grievance, error)
	List(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, int, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// GrievanceService owns grievance creation and reads. The tracking engine
// depends on it only for existence and created-at probes, never mutation.
type GrievanceService struct {
	repo      grievanceStore
	audit     auditSink
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGrievanceService constructs the service.
func NewGrievanceService(repo grievanceStore, audit auditSink, validate *validator.Validate, logger *zap.Logger) *GrievanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GrievanceService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// CreateGrievanceRequest describes a newly filed grievance.
type CreateGrievanceRequest struct {
	StudentID      string `json:"student_id" validate:"required"`
	CampusID       string `json:"campus_id" validate:"required"`
	DepartmentID   string `json:"department_id" validate:"required"`
	IssueType      string `json:"issue_type" validate:"required"`
	Subject        string `json:"subject" validate:"required,max=200"`
	Description    string `json:"description" validate:"required"`
	HasAttachments bool   `json:"has_attachments"`
}

// GrievanceWithStatus pairs a grievance with its initial tracking entry.
type GrievanceWithStatus struct {
	Grievance *models.Grievance     `json:"grievance"`
	Status    *models.TrackingEntry `json:"status"`
}

// Create files the grievance and its system-generated first tracking entry
// atomically.
func (s *GrievanceService) Create(ctx context.Context, req CreateGrievanceRequest) (*GrievanceWithStatus, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grievance payload")
	}

	grievance := &models.Grievance{
		StudentID:      req.StudentID,
		CampusID:       req.CampusID,
		DepartmentID:   req.DepartmentID,
		IssueType:      req.IssueType,
		Subject:        req.Subject,
		Description:    req.Description,
		HasAttachments: req.HasAttachments,
	}
	initial, err := s.repo.Create(ctx, grievance)
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		s.audit.Record(&models.AuditLog{
			Action:     models.AuditActionGrievanceCreate,
			Resource:   "grievance",
			ResourceID: &grievance.ID,
		})
	}
	return &GrievanceWithStatus{Grievance: grievance, Status: initial}, nil
}

// Get returns a grievance, enforcing the caller's query scope.
func (s *GrievanceService) Get(ctx context.Context, id string, scope models.QueryScope) (*models.Grievance, error) {
	grievance, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scopeAllows(scope, grievance) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "grievance is outside your scope")
	}
	return grievance, nil
}

// List returns grievances visible inside the caller's query scope.
func (s *GrievanceService) List(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	grievances, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return grievances, pagination, nil
}

// Exists is a thin read-through used by collaborators.
func (s *GrievanceService) Exists(ctx context.Context, id string) (bool, error) {
	return s.repo.Exists(ctx, id)
}

func scopeAllows(scope models.QueryScope, grievance *models.Grievance) bool {
	if scope.Unscoped() {
		return true
	}
	if scope.CampusID != "" && grievance.CampusID != scope.CampusID {
		return false
	}
	if scope.DepartmentID != "" && grievance.DepartmentID != scope.DepartmentID {
		return false
	}
	return true
}

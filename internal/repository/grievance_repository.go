package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-grievance-api/internal/models"
	"github.com/noah-isme/campus-grievance-api/pkg/database"
	appErrors "github.com/noah-isme/campus-grievance-api/pkg/errors"
)

const grievanceColumns = `id, reference, student_id, campus_id, department_id, issue_type, subject, description, has_attachments, created_at`

// GrievanceRepository owns grievance row creation and reads. The tracking
// engine only consumes its existence and created-at probes.
type GrievanceRepository struct {
	db   *sqlx.DB
	pool *database.Pool
}

// NewGrievanceRepository constructs the repository. The creation
// transaction goes through the pool so acquisition is bounded.
func NewGrievanceRepository(pool *database.Pool) *GrievanceRepository {
	return &GrievanceRepository{db: pool.DB(), pool: pool}
}

// Create inserts the grievance together with its system-generated first
// tracking entry (NEW, SUBMITTED) in one transaction. Either both rows
// commit or neither does.
func (r *GrievanceRepository) Create(ctx context.Context, grievance *models.Grievance) (*models.TrackingEntry, error) {
	if grievance.ID == "" {
		grievance.ID = uuid.NewString()
	}

	initial := &models.TrackingEntry{
		GrievanceID:    grievance.ID,
		ResponseText:   "Grievance submitted",
		AdminStatus:    models.AdminStatusNew,
		StudentStatus:  models.StudentStatusSubmitted,
		ResponseBy:     models.SystemActor,
		HasAttachments: grievance.HasAttachments,
	}

	defer r.pool.ObserveSince("grievance_create", time.Now())
	err := r.pool.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		var seq int64
		if err := tx.GetContext(ctx, &seq, "SELECT nextval('grievance_ref_seq')"); err != nil {
			return database.Classify(err, "next grievance reference")
		}
		grievance.Reference = fmt.Sprintf("GRV-%d-%06d", time.Now().UTC().Year(), seq)

		query := fmt.Sprintf(`INSERT INTO grievances
		(id, reference, student_id, campus_id, department_id, issue_type, subject, description, has_attachments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING %s`, grievanceColumns)
		row := tx.QueryRowxContext(ctx, query,
			grievance.ID,
			grievance.Reference,
			grievance.StudentID,
			grievance.CampusID,
			grievance.DepartmentID,
			grievance.IssueType,
			grievance.Subject,
			grievance.Description,
			grievance.HasAttachments,
		)
		if err := row.StructScan(grievance); err != nil {
			return database.Classify(err, "insert grievance")
		}

		return insertTrackingTx(ctx, tx, initial)
	})
	if err != nil {
		return nil, err
	}
	return initial, nil
}

// FindByID fetches a grievance by internal id.
func (r *GrievanceRepository) FindByID(ctx context.Context, id string) (*models.Grievance, error) {
	query := fmt.Sprintf("SELECT %s FROM grievances WHERE id = $1", grievanceColumns)
	var grievance models.Grievance
	if err := r.db.GetContext(ctx, &grievance, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, database.Classify(err, "find grievance")
	}
	return &grievance, nil
}

// List returns grievances restricted to the caller's query scope.
func (r *GrievanceRepository) List(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, int, error) {
	defer r.pool.ObserveSince("grievance_list", time.Now())
	where := []string{"1=1"}
	args := []interface{}{}

	if filter.Scope.CampusID != "" {
		args = append(args, filter.Scope.CampusID)
		where = append(where, fmt.Sprintf("campus_id = $%d", len(args)))
	}
	if filter.Scope.DepartmentID != "" {
		args = append(args, filter.Scope.DepartmentID)
		where = append(where, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.IssueType != "" {
		args = append(args, filter.IssueType)
		where = append(where, fmt.Sprintf("issue_type = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(reference ILIKE $%d OR subject ILIKE $%d)", len(args), len(args)))
	}
	if filter.CreatedGTE != nil {
		args = append(args, *filter.CreatedGTE)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedLTE != nil {
		args = append(args, *filter.CreatedLTE)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM grievances WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		grievanceColumns, whereClause, size, offset)
	var grievances []models.Grievance
	if err := r.db.SelectContext(ctx, &grievances, query, args...); err != nil {
		return nil, 0, database.Classify(err, "list grievances")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM grievances WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, database.Classify(err, "count grievances")
	}
	return grievances, total, nil
}

// Exists is a cheap existence probe.
func (r *GrievanceRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM grievances WHERE id = $1)", id); err != nil {
		return false, database.Classify(err, "grievance exists")
	}
	return exists, nil
}

// CreatedAt returns the grievance creation timestamp for duration metrics.
func (r *GrievanceRepository) CreatedAt(ctx context.Context, id string) (time.Time, error) {
	var createdAt time.Time
	if err := r.db.GetContext(ctx, &createdAt, "SELECT created_at FROM grievances WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return time.Time{}, database.Classify(err, "grievance created at")
	}
	return createdAt, nil
}

package repository

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-grievance-api/internal/models"
	appErrors "github.com/noah-isme/campus-grievance-api/pkg/errors"
)

func grievanceRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "reference", "student_id", "campus_id", "department_id",
		"issue_type", "subject", "description", "has_attachments", "created_at",
	})
}

func TestGrievanceRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newTrackingRepoMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(newTestPool(db))

	now := time.Now().UTC()
	reference := fmt.Sprintf("GRV-%d-000042", now.Year())

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT nextval('grievance_ref_seq')")).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(42))
	mock.ExpectQuery("INSERT INTO grievances").
		WillReturnRows(grievanceRows().
			AddRow("grv-1", reference, "stu-1", "campus-north", "dept-cs", "FACILITIES", "Broken projector", "Out of order", false, now))
	mock.ExpectQuery("INSERT INTO tracking").
		WillReturnRows(trackingRows().
			AddRow(1, "grv-1", "Grievance submitted", "NEW", "SUBMITTED", "SYSTEM", now, nil, nil, false, false))
	mock.ExpectCommit()

	grievance := &models.Grievance{
		StudentID:    "stu-1",
		CampusID:     "campus-north",
		DepartmentID: "dept-cs",
		IssueType:    "FACILITIES",
		Subject:      "Broken projector",
		Description:  "Out of order",
	}
	initial, err := repo.Create(context.Background(), grievance)
	require.NoError(t, err)
	assert.Equal(t, reference, grievance.Reference)
	assert.Equal(t, models.AdminStatusNew, initial.AdminStatus)
	assert.Equal(t, models.StudentStatusSubmitted, initial.StudentStatus)
	assert.Equal(t, models.SystemActor, initial.ResponseBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceRepositoryCreateRollsBackOnTrackingFailure(t *testing.T) {
	db, mock, cleanup := newTrackingRepoMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(newTestPool(db))

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT nextval('grievance_ref_seq')")).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(43))
	mock.ExpectQuery("INSERT INTO grievances").
		WillReturnRows(grievanceRows().
			AddRow("grv-2", "GRV-2025-000043", "stu-1", "campus-north", "dept-cs", "FACILITIES", "Subject", "Desc", false, now))
	mock.ExpectQuery("INSERT INTO tracking").
		WillReturnError(fmt.Errorf("connection reset"))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), &models.Grievance{
		StudentID:    "stu-1",
		CampusID:     "campus-north",
		DepartmentID: "dept-cs",
		IssueType:    "FACILITIES",
		Subject:      "Subject",
		Description:  "Desc",
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newTrackingRepoMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(newTestPool(db))

	mock.ExpectQuery("SELECT (.+) FROM grievances WHERE id = \\$1").
		WithArgs("grv-missing").
		WillReturnRows(grievanceRows())

	_, err := repo.FindByID(context.Background(), "grv-missing")
	require.True(t, appErrors.IsKind(err, appErrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceRepositoryListScoped(t *testing.T) {
	db, mock, cleanup := newTrackingRepoMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(newTestPool(db))

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, reference, student_id, campus_id, department_id, issue_type, subject, description, has_attachments, created_at FROM grievances WHERE 1=1 AND campus_id = $1 AND department_id = $2 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("campus-north", "dept-cs").
		WillReturnRows(grievanceRows().
			AddRow("grv-1", "GRV-2025-000042", "stu-1", "campus-north", "dept-cs", "FACILITIES", "Subject", "Desc", false, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM grievances WHERE 1=1 AND campus_id = $1 AND department_id = $2")).
		WithArgs("campus-north", "dept-cs").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.GrievanceFilter{
		Scope: models.QueryScope{CampusID: "campus-north", DepartmentID: "dept-cs"},
	})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceRepositoryListSearch(t *testing.T) {
	db, mock, cleanup := newTrackingRepoMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(newTestPool(db))

	mock.ExpectQuery(regexp.QuoteMeta("(reference ILIKE $1 OR subject ILIKE $1)")).
		WithArgs("%projector%").
		WillReturnRows(grievanceRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM grievances")).
		WithArgs("%projector%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	list, total, err := repo.List(context.Background(), models.GrievanceFilter{Search: "projector"})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-grievance-api/internal/models"
)

func adminRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "full_name", "role",
		"campus_id", "department_id", "active", "last_login", "created_at", "updated_at",
	})
}

func TestAdminRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newTrackingRepoMock(t)
	defer cleanup()
	repo := NewAdminRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM admins WHERE email = \\$1").
		WithArgs("admin@campus.edu").
		WillReturnRows(adminRows().
			AddRow("adm-1", "admin@campus.edu", "hash", "Dana Admin", "CAMPUS_ADMIN", "campus-north", nil, true, nil, now, now))

	admin, err := repo.FindByEmail(context.Background(), "admin@campus.edu")
	require.NoError(t, err)
	assert.Equal(t, "adm-1", admin.ID)
	assert.Equal(t, models.RoleCampusAdmin, admin.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminRepositoryFindByEmailMissingReturnsRawError(t *testing.T) {
	db, mock, cleanup := newTrackingRepoMock(t)
	defer cleanup()
	repo := NewAdminRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM admins WHERE email = \\$1").
		WithArgs("ghost@campus.edu").
		WillReturnRows(adminRows())

	_, err := repo.FindByEmail(context.Background(), "ghost@campus.edu")
	require.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminRepositoryUpdateLastLogin(t *testing.T) {
	db, mock, cleanup := newTrackingRepoMock(t)
	defer cleanup()
	repo := NewAdminRepository(db)

	ts := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE admins SET last_login = $1, updated_at = $1 WHERE id = $2")).
		WithArgs(ts, "adm-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateLastLogin(context.Background(), "adm-1", ts))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminRepositoryCreateAuditLog(t *testing.T) {
	db, mock, cleanup := newTrackingRepoMock(t)
	defer cleanup()
	repo := NewAdminRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	adminID := "adm-1"
	log := &models.AuditLog{
		AdminID:  &adminID,
		Action:   models.AuditActionTrackingCreate,
		Resource: "tracking",
	}
	require.NoError(t, repo.CreateAuditLog(context.Background(), log))
	assert.NotEmpty(t, log.ID)
	assert.False(t, log.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-grievance-api/internal/models"
	"github.com/noah-isme/campus-grievance-api/pkg/database"
	appErrors "github.com/noah-isme/campus-grievance-api/pkg/errors"
)

const trackingColumns = `id, grievance_id, response_text, admin_status, student_status, response_by, response_at, redirect_to, redirect_from, is_redirect, has_attachments`

// TrackingRepository persists the append-only grievance history. Rows are
// never updated or deleted; the latest row by response_at is the
// authoritative current status.
type TrackingRepository struct {
	db   *sqlx.DB
	pool *database.Pool
}

// NewTrackingRepository constructs the repository. Writes go through the
// pool so acquisition is bounded; single-statement reads use the handle
// directly.
func NewTrackingRepository(pool *database.Pool) *TrackingRepository {
	return &TrackingRepository{db: pool.DB(), pool: pool}
}

// TransitionGuard runs inside the creation transaction, after the current
// status has been read under the grievance row lock and before the insert.
// Returning an error aborts the transaction without persisting anything.
type TransitionGuard func(current *models.TrackingEntry) error

// Create appends one tracking entry. Inside a single transaction it locks
// the grievance row, verifies the responding admin (and redirect target)
// exists and is active, re-reads the current status, runs the guard and
// inserts the new row with a database-assigned response_at. The row lock
// serializes concurrent writers on the same grievance, so two transitions
// can never both commit against the same stale current status. The pool
// bounds transaction acquisition, so pool exhaustion surfaces as a
// Transient error instead of queueing the writer indefinitely.
func (r *TrackingRepository) Create(ctx context.Context, entry *models.TrackingEntry, guard TransitionGuard) (*models.TrackingEntry, error) {
	defer r.pool.ObserveSince("tracking_create", time.Now())
	err := r.pool.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		var lockedID string
		if err := tx.GetContext(ctx, &lockedID, "SELECT id FROM grievances WHERE id = $1 FOR UPDATE", entry.GrievanceID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
			}
			return database.Classify(err, "lock grievance")
		}

		if entry.ResponseBy != models.SystemActor {
			active, err := adminActiveTx(ctx, tx, entry.ResponseBy)
			if err != nil {
				return database.Classify(err, "check responding admin")
			}
			if !active {
				return appErrors.Clone(appErrors.ErrNotFound, "responding admin not found or inactive")
			}
		}
		if entry.RedirectTo != nil {
			active, err := adminActiveTx(ctx, tx, *entry.RedirectTo)
			if err != nil {
				return database.Classify(err, "check redirect target")
			}
			if !active {
				return appErrors.Clone(appErrors.ErrNotFound, "redirect target admin not found or inactive")
			}
		}

		current, err := latestTx(ctx, tx, entry.GrievanceID)
		if err != nil {
			return database.Classify(err, "read current status")
		}
		if guard != nil {
			if err := guard(current); err != nil {
				return err
			}
		}

		return insertTrackingTx(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// LatestByGrievance returns the entry with the greatest response_at, or nil
// when the grievance has no history yet.
func (r *TrackingRepository) LatestByGrievance(ctx context.Context, grievanceID string) (*models.TrackingEntry, error) {
	defer r.pool.ObserveSince("tracking_latest", time.Now())
	query := fmt.Sprintf("SELECT %s FROM tracking WHERE grievance_id = $1 ORDER BY response_at DESC, id DESC LIMIT 1", trackingColumns)
	var entry models.TrackingEntry
	if err := r.db.GetContext(ctx, &entry, query, grievanceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, database.Classify(err, "latest tracking entry")
	}
	return &entry, nil
}

// HistoryByGrievance returns all entries ordered oldest first.
func (r *TrackingRepository) HistoryByGrievance(ctx context.Context, grievanceID string) ([]models.TrackingEntry, error) {
	defer r.pool.ObserveSince("tracking_history", time.Now())
	query := fmt.Sprintf("SELECT %s FROM tracking WHERE grievance_id = $1 ORDER BY response_at ASC, id ASC", trackingColumns)
	var entries []models.TrackingEntry
	if err := r.db.SelectContext(ctx, &entries, query, grievanceID); err != nil {
		return nil, database.Classify(err, "tracking history")
	}
	return entries, nil
}

// ExistsGrievance is a cheap existence probe.
func (r *TrackingRepository) ExistsGrievance(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM grievances WHERE id = $1)", id); err != nil {
		return false, database.Classify(err, "grievance exists")
	}
	return exists, nil
}

// ExistsActiveAdmin reports whether the admin exists and is active.
func (r *TrackingRepository) ExistsActiveAdmin(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM admins WHERE id = $1 AND active = true)", id); err != nil {
		return false, database.Classify(err, "admin exists")
	}
	return exists, nil
}

func adminActiveTx(ctx context.Context, tx *sqlx.Tx, adminID string) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM admins WHERE id = $1 AND active = true)", adminID)
	return exists, err
}

func latestTx(ctx context.Context, tx *sqlx.Tx, grievanceID string) (*models.TrackingEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM tracking WHERE grievance_id = $1 ORDER BY response_at DESC, id DESC LIMIT 1", trackingColumns)
	var entry models.TrackingEntry
	if err := tx.GetContext(ctx, &entry, query, grievanceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// insertTrackingTx appends the row with a server-assigned timestamp that is
// strictly greater than every committed entry for the grievance, keeping
// response_at monotonically non-decreasing per grievance.
func insertTrackingTx(ctx context.Context, tx *sqlx.Tx, entry *models.TrackingEntry) error {
	query := fmt.Sprintf(`INSERT INTO tracking
	(grievance_id, response_text, admin_status, student_status, response_by, response_at, redirect_to, redirect_from, is_redirect, has_attachments)
	VALUES ($1, $2, $3, $4, $5,
	GREATEST(clock_timestamp(), (SELECT COALESCE(MAX(response_at) + interval '1 microsecond', clock_timestamp()) FROM tracking WHERE grievance_id = $1)),
	$6, $7, $8, $9)
	RETURNING %s`, trackingColumns)
	row := tx.QueryRowxContext(ctx, query,
		entry.GrievanceID,
		entry.ResponseText,
		entry.AdminStatus,
		entry.StudentStatus,
		entry.ResponseBy,
		entry.RedirectTo,
		entry.RedirectFrom,
		entry.IsRedirect,
		entry.HasAttachments,
	)
	if err := row.StructScan(entry); err != nil {
		return database.Classify(err, "insert tracking entry")
	}
	return nil
}

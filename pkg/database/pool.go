package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/campus-grievance-api/pkg/config"
	appErrors "github.com/noah-isme/campus-grievance-api/pkg/errors"
)

// PoolStatus is a snapshot of the connection pool.
type PoolStatus struct {
	Total   int `json:"total"`
	Idle    int `json:"idle"`
	InUse   int `json:"in_use"`
	Waiting int `json:"waiting"`
}

// Observer receives the name and duration of completed database operations.
type Observer func(op string, d time.Duration)

// Pool wraps the sqlx handle with transaction scoping, bounded acquisition
// and introspection. It is the only shared mutable resource in the service.
type Pool struct {
	db             *sqlx.DB
	acquireTimeout time.Duration
	queryTimeout   time.Duration
	observe        Observer
}

// NewPool builds a Pool around an open database handle.
func NewPool(db *sqlx.DB, cfg config.DatabaseConfig) *Pool {
	acquire := cfg.AcquireTimeout
	if acquire <= 0 {
		acquire = 3 * time.Second
	}
	query := cfg.QueryTimeout
	if query <= 0 {
		query = 5 * time.Second
	}
	return &Pool{db: db, acquireTimeout: acquire, queryTimeout: query}
}

// DB exposes the underlying handle for single-statement execution.
func (p *Pool) DB() *sqlx.DB {
	return p.db
}

// SetObserver registers a callback for per-operation timings. Must be
// called before the pool is shared.
func (p *Pool) SetObserver(fn Observer) {
	p.observe = fn
}

// ObserveSince reports a completed named operation to the observer.
func (p *Pool) ObserveSince(op string, start time.Time) {
	if p.observe == nil {
		return
	}
	p.observe(op, time.Since(start))
}

// Status reports current pool utilisation.
func (p *Pool) Status() PoolStatus {
	stats := p.db.Stats()
	return PoolStatus{
		Total:   stats.OpenConnections,
		Idle:    stats.Idle,
		InUse:   stats.InUse,
		Waiting: int(stats.WaitCount),
	}
}

// HealthCheck verifies a connection can be acquired and the server responds.
func (p *Pool) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()
	if err := p.db.PingContext(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, "database unreachable")
	}
	return nil
}

// WithTx runs fn inside a dedicated transaction. The transaction begins
// under a bounded acquisition deadline so pool exhaustion fails fast
// instead of queueing indefinitely. On any error (including a panic in fn)
// the transaction is rolled back and the connection returned to the pool
// before the error is re-raised.
func (p *Pool) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	beginCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	tx, err := p.db.BeginTxx(beginCtx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, "failed to acquire transaction")
	}
	return runTx(ctx, tx, fn, p.queryTimeout)
}

// WithTxOn mirrors WithTx against an arbitrary handle without the pool's
// deadlines, for callers that manage their own.
func WithTxOn(ctx context.Context, db *sqlx.DB, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, "failed to acquire transaction")
	}
	return runTx(ctx, tx, fn, 0)
}

func runTx(ctx context.Context, tx *sqlx.Tx, fn func(ctx context.Context, tx *sqlx.Tx) error, timeout time.Duration) (err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback() //nolint:errcheck
			panic(r)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, "failed to commit transaction")
	}
	return nil
}

// IsTransient reports whether err looks like a connectivity or timeout
// failure that is safe to retry once the transaction rolled back.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		// 08: connection exceptions, 53: insufficient resources,
		// 57014: query_canceled (statement timeout), 40001/40P01:
		// serialization failure and deadlock.
		switch {
		case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "53"):
			return true
		case code == "57014", code == "40001", code == "40P01":
			return true
		}
	}
	return false
}

// Classify wraps a raw database error into the matching domain kind.
func Classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, fmt.Sprintf("%s: temporary database failure", op))
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, fmt.Sprintf("%s: duplicate entry", op))
		case "23503":
			return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, fmt.Sprintf("%s: referenced row missing", op))
		}
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("%s failed", op))
}

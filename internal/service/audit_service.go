package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-grievance-api/internal/models"
	"github.com/noah-isme/campus-grievance-api/pkg/config"
	"github.com/noah-isme/campus-grievance-api/pkg/jobs"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditService is the fire-and-forget audit sink. Writes go through an
// in-memory queue so they never sit inside a tracking transaction, and a
// failed write is logged and dropped rather than surfaced to the caller.
type AuditService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService constructs the sink around the given writer.
func NewAuditService(writer auditWriter, cfg config.AuditConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AuditService{logger: logger}
	svc.queue = jobs.NewQueue("audit", func(ctx context.Context, job jobs.Job) error {
		log, ok := job.Payload.(*models.AuditLog)
		if !ok {
			return fmt.Errorf("audit job %s carries unexpected payload %T", job.ID, job.Payload)
		}
		return writer.CreateAuditLog(ctx, log)
	}, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	})
	return svc
}

// Start launches the queue workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record enqueues an audit entry. It never returns an error: audit failures
// must not abort the operation being audited.
func (s *AuditService) Record(log *models.AuditLog) {
	if s == nil || log == nil {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{Type: log.Action, Payload: log}); err != nil {
		s.logger.Warn("audit log dropped",
			zap.String("action", log.Action),
			zap.String("resource", log.Resource),
			zap.Error(err),
		)
	}
}

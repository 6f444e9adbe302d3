package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-grievance-api/internal/models"
	appErrors "github.com/noah-isme/campus-grievance-api/pkg/errors"
	"github.com/noah-isme/campus-grievance-api/pkg/export"
	"github.com/noah-isme/campus-grievance-api/pkg/storage"
)

type historyReader interface {
	GetHistory(ctx context.Context, grievanceID string) (*models.TrackingHistory, error)
}

// ExportService renders a grievance's tracking history to CSV or PDF,
// persists it outside any database transaction and hands back a signed
// download token.
type ExportService struct {
	tracking historyReader
	store    *storage.ExportStore
	signer   *storage.SignedURLSigner
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	audit    auditSink
	logger   *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(tracking historyReader, store *storage.ExportStore, signer *storage.SignedURLSigner, audit auditSink, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		tracking: tracking,
		store:    store,
		signer:   signer,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		audit:    audit,
		logger:   logger,
	}
}

// ExportResult describes a rendered history document.
type ExportResult struct {
	Token     string    `json:"token"`
	Filename  string    `json:"filename"`
	Format    string    `json:"format"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportHistory renders and stores the history document. The history read
// and the rendering both happen outside any database transaction.
func (s *ExportService) ExportHistory(ctx context.Context, grievanceID, format, adminID string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format "+format)
	}

	history, err := s.tracking.GetHistory(ctx, grievanceID)
	if err != nil {
		return nil, err
	}
	if history == nil || len(history.Entries) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance has no history to export")
	}

	dataset := historyDataset(history.Entries)
	var rendered []byte
	switch format {
	case "csv":
		rendered, err = s.csv.Render(dataset)
	case "pdf":
		rendered, err = s.pdf.Render(dataset, fmt.Sprintf("Grievance %s history", grievanceID))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render history export")
	}

	filename := fmt.Sprintf("tracking/%s-%d.%s", grievanceID, time.Now().UTC().Unix(), format)
	if _, err := s.store.Save(filename, rendered); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store history export")
	}

	token, expiresAt, err := s.signer.Generate(grievanceID, filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}

	if s.audit != nil {
		s.audit.Record(&models.AuditLog{
			AdminID:    &adminID,
			Action:     models.AuditActionHistoryExport,
			Resource:   "tracking",
			ResourceID: &grievanceID,
			Details:    []byte(fmt.Sprintf(`{"format":%q}`, format)),
		})
	}

	return &ExportResult{Token: token, Filename: filename, Format: format, ExpiresAt: expiresAt}, nil
}

// Resolve validates a download token and opens the stored file.
func (s *ExportService) Resolve(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}
	return file, relPath, nil
}

func historyDataset(entries []models.TrackingEntry) export.Dataset {
	headers := []string{"#", "Admin Status", "Student Status", "Response By", "Response At", "Redirect To", "Response"}
	rows := make([][]string, 0, len(entries))
	for i, entry := range entries {
		redirectTo := ""
		if entry.RedirectTo != nil {
			redirectTo = *entry.RedirectTo
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			string(entry.AdminStatus),
			string(entry.StudentStatus),
			entry.ResponseBy,
			entry.ResponseAt.UTC().Format(time.RFC3339),
			redirectTo,
			entry.ResponseText,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-grievance-api/internal/models"
	appErrors "github.com/noah-isme/campus-grievance-api/pkg/errors"
	"github.com/noah-isme/campus-grievance-api/pkg/storage"
)

type fakeHistoryReader struct {
	histories map[string]*models.TrackingHistory
}

func (f *fakeHistoryReader) GetHistory(_ context.Context, grievanceID string) (*models.TrackingHistory, error) {
	history, ok := f.histories[grievanceID]
	if !ok {
		return &models.TrackingHistory{}, nil
	}
	return history, nil
}

func newExportFixture(t *testing.T) (*ExportService, *recordingSink) {
	t.Helper()
	store, err := storage.NewExportStore(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("export-secret", time.Hour)

	target := "adm-2"
	reader := &fakeHistoryReader{histories: map[string]*models.TrackingHistory{
		"grv-1": {
			Entries: []models.TrackingEntry{
				{
					GrievanceID:   "grv-1",
					ResponseText:  "Grievance submitted",
					AdminStatus:   models.AdminStatusNew,
					StudentStatus: models.StudentStatusSubmitted,
					ResponseBy:    models.SystemActor,
					ResponseAt:    time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
				},
				{
					GrievanceID:   "grv-1",
					ResponseText:  "Routing to campus admin",
					AdminStatus:   models.AdminStatusRedirected,
					StudentStatus: models.StudentStatusUnderReview,
					ResponseBy:    "adm-1",
					ResponseAt:    time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC),
					RedirectTo:    &target,
					IsRedirect:    true,
				},
			},
		},
	}}
	sink := &recordingSink{}
	return NewExportService(reader, store, signer, sink, nil), sink
}

func TestExportHistoryCSV(t *testing.T) {
	svc, sink := newExportFixture(t)

	result, err := svc.ExportHistory(context.Background(), "grv-1", "csv", "adm-1")
	require.NoError(t, err)
	require.Equal(t, "csv", result.Format)
	require.NotEmpty(t, result.Token)
	require.True(t, result.ExpiresAt.After(time.Now()))

	file, name, err := svc.Resolve(result.Token)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	require.Equal(t, result.Filename, name)

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	require.Contains(t, string(content), "Admin Status")
	require.Contains(t, string(content), "REDIRECTED")
	require.Contains(t, string(content), "Routing to campus admin")

	require.Len(t, sink.logs, 1)
	require.Equal(t, models.AuditActionHistoryExport, sink.logs[0].Action)
}

func TestExportHistoryPDF(t *testing.T) {
	svc, _ := newExportFixture(t)

	result, err := svc.ExportHistory(context.Background(), "grv-1", "pdf", "adm-1")
	require.NoError(t, err)

	file, _, err := svc.Resolve(result.Token)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	header := make([]byte, 4)
	_, err = io.ReadFull(file, header)
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(header))
}

func TestExportHistoryDefaultsToCSV(t *testing.T) {
	svc, _ := newExportFixture(t)

	result, err := svc.ExportHistory(context.Background(), "grv-1", "", "adm-1")
	require.NoError(t, err)
	require.Equal(t, "csv", result.Format)
}

func TestExportHistoryUnsupportedFormat(t *testing.T) {
	svc, _ := newExportFixture(t)

	_, err := svc.ExportHistory(context.Background(), "grv-1", "xlsx", "adm-1")
	require.True(t, appErrors.IsKind(err, appErrors.ErrValidation))
}

func TestExportHistoryEmpty(t *testing.T) {
	svc, _ := newExportFixture(t)

	_, err := svc.ExportHistory(context.Background(), "grv-empty", "csv", "adm-1")
	require.True(t, appErrors.IsKind(err, appErrors.ErrNotFound))
}

func TestResolveRejectsBadToken(t *testing.T) {
	svc, _ := newExportFixture(t)

	_, _, err := svc.Resolve("not-a-token")
	require.True(t, appErrors.IsKind(err, appErrors.ErrUnauthorized))
}

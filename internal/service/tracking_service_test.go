package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-grievance-api/internal/models"
	"github.com/noah-isme/campus-grievance-api/internal/repository"
	appErrors "github.com/noah-isme/campus-grievance-api/pkg/errors"
)

// fakeTrackingStore mirrors the repository contract in memory: the guard
// runs against the latest entry before the append, and response_at is
// strictly increasing per grievance.
type fakeTrackingStore struct {
	entries      map[string][]models.TrackingEntry
	grievances   map[string]bool
	activeAdmins map[string]bool
	nextID       int64
	clock        time.Time
}

func newFakeTrackingStore() *fakeTrackingStore {
	return &fakeTrackingStore{
		entries:      make(map[string][]models.TrackingEntry),
		grievances:   make(map[string]bool),
		activeAdmins: make(map[string]bool),
		clock:        time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeTrackingStore) Create(_ context.Context, entry *models.TrackingEntry, guard repository.TransitionGuard) (*models.TrackingEntry, error) {
	if !f.grievances[entry.GrievanceID] {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
	}
	if entry.ResponseBy != models.SystemActor && !f.activeAdmins[entry.ResponseBy] {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "responding admin not found or inactive")
	}
	if entry.RedirectTo != nil && !f.activeAdmins[*entry.RedirectTo] {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "redirect target admin not found or inactive")
	}

	var current *models.TrackingEntry
	if history := f.entries[entry.GrievanceID]; len(history) > 0 {
		current = &history[len(history)-1]
	}
	if guard != nil {
		if err := guard(current); err != nil {
			return nil, err
		}
	}

	f.nextID++
	f.clock = f.clock.Add(time.Hour)
	entry.ID = f.nextID
	entry.ResponseAt = f.clock
	f.entries[entry.GrievanceID] = append(f.entries[entry.GrievanceID], *entry)
	return entry, nil
}

func (f *fakeTrackingStore) LatestByGrievance(_ context.Context, grievanceID string) (*models.TrackingEntry, error) {
	history := f.entries[grievanceID]
	if len(history) == 0 {
		return nil, nil
	}
	latest := history[len(history)-1]
	return &latest, nil
}

func (f *fakeTrackingStore) HistoryByGrievance(_ context.Context, grievanceID string) ([]models.TrackingEntry, error) {
	return f.entries[grievanceID], nil
}

func (f *fakeTrackingStore) ExistsGrievance(_ context.Context, id string) (bool, error) {
	return f.grievances[id], nil
}

func (f *fakeTrackingStore) ExistsActiveAdmin(_ context.Context, id string) (bool, error) {
	return f.activeAdmins[id], nil
}

type recordingSink struct {
	logs []*models.AuditLog
}

func (r *recordingSink) Record(log *models.AuditLog) {
	r.logs = append(r.logs, log)
}

func newTrackingFixture() (*TrackingService, *fakeTrackingStore, *recordingSink) {
	store := newFakeTrackingStore()
	store.grievances["grv-1"] = true
	store.activeAdmins["adm-1"] = true
	store.activeAdmins["adm-2"] = true
	sink := &recordingSink{}
	svc := NewTrackingService(store, nil, sink, nil, nil, nil)
	return svc, store, sink
}

func entryRequest(status models.AdminStatus, studentStatus models.StudentStatus) CreateTrackingEntryRequest {
	return CreateTrackingEntryRequest{
		GrievanceID:   "grv-1",
		ResponseText:  "Looking into it",
		AdminStatus:   string(status),
		StudentStatus: string(studentStatus),
		ResponseBy:    "adm-1",
	}
}

func TestCreateTrackingEntryFirstEntry(t *testing.T) {
	svc, _, sink := newTrackingFixture()

	created, err := svc.CreateTrackingEntry(context.Background(), entryRequest(models.AdminStatusNew, models.StudentStatusSubmitted), "adm-1")
	require.NoError(t, err)
	require.Equal(t, models.AdminStatusNew, created.AdminStatus)
	require.False(t, created.ResponseAt.IsZero())
	require.Len(t, sink.logs, 1)
	require.Equal(t, models.AuditActionTrackingCreate, sink.logs[0].Action)
}

func TestCreateTrackingEntryActingAdminMismatch(t *testing.T) {
	svc, store, _ := newTrackingFixture()

	_, err := svc.CreateTrackingEntry(context.Background(), entryRequest(models.AdminStatusNew, models.StudentStatusSubmitted), "adm-2")
	require.True(t, appErrors.IsKind(err, appErrors.ErrUnauthorized))
	require.Empty(t, store.entries["grv-1"])
}

func TestCreateTrackingEntryValidatesPayload(t *testing.T) {
	svc, _, _ := newTrackingFixture()

	req := entryRequest(models.AdminStatusNew, models.StudentStatusSubmitted)
	req.ResponseText = ""
	_, err := svc.CreateTrackingEntry(context.Background(), req, "adm-1")
	require.True(t, appErrors.IsKind(err, appErrors.ErrValidation))

	req = entryRequest("ARCHIVED", models.StudentStatusSubmitted)
	_, err = svc.CreateTrackingEntry(context.Background(), req, "adm-1")
	require.True(t, appErrors.IsKind(err, appErrors.ErrValidation))

	req = entryRequest(models.AdminStatusNew, "DONE")
	_, err = svc.CreateTrackingEntry(context.Background(), req, "adm-1")
	require.True(t, appErrors.IsKind(err, appErrors.ErrValidation))
}

func TestCreateTrackingEntryInvalidTransition(t *testing.T) {
	svc, _, _ := newTrackingFixture()
	ctx := context.Background()

	_, err := svc.CreateTrackingEntry(ctx, entryRequest(models.AdminStatusNew, models.StudentStatusSubmitted), "adm-1")
	require.NoError(t, err)

	// NEW -> RESOLVED skips PENDING and must be refused.
	_, err = svc.CreateTrackingEntry(ctx, entryRequest(models.AdminStatusResolved, models.StudentStatusResolved), "adm-1")
	require.True(t, appErrors.IsKind(err, appErrors.ErrInvalidTransition))
	require.Contains(t, err.Error(), "cannot move from NEW to RESOLVED")
}

func TestCreateTrackingEntryTerminalLock(t *testing.T) {
	svc, _, _ := newTrackingFixture()
	ctx := context.Background()

	steps := []struct {
		admin   models.AdminStatus
		student models.StudentStatus
	}{
		{models.AdminStatusNew, models.StudentStatusSubmitted},
		{models.AdminStatusPending, models.StudentStatusInProgress},
		{models.AdminStatusResolved, models.StudentStatusResolved},
	}
	for _, step := range steps {
		_, err := svc.CreateTrackingEntry(ctx, entryRequest(step.admin, step.student), "adm-1")
		require.NoError(t, err)
	}

	for _, next := range []models.AdminStatus{models.AdminStatusPending, models.AdminStatusRejected, models.AdminStatusResolved} {
		req := entryRequest(next, models.StudentStatusInProgress)
		if next == models.AdminStatusRejected || next == models.AdminStatusResolved {
			req.StudentStatus = string(models.StudentStatusRejected)
		}
		_, err := svc.CreateTrackingEntry(ctx, req, "adm-1")
		require.Truef(t, appErrors.IsKind(err, appErrors.ErrInvalidTransition), "RESOLVED -> %s: %v", next, err)
	}
}

func TestCreateTrackingEntryRedirectShape(t *testing.T) {
	svc, _, _ := newTrackingFixture()
	ctx := context.Background()
	target := "adm-2"
	self := "adm-1"

	// Redirect without a target.
	req := entryRequest(models.AdminStatusRedirected, models.StudentStatusUnderReview)
	req.IsRedirect = true
	_, err := svc.CreateTrackingEntry(ctx, req, "adm-1")
	require.True(t, appErrors.IsKind(err, appErrors.ErrInvalidRedirect))

	// Redirect flag with a non-redirect status.
	req = entryRequest(models.AdminStatusPending, models.StudentStatusInProgress)
	req.IsRedirect = true
	req.RedirectTo = &target
	_, err = svc.CreateTrackingEntry(ctx, req, "adm-1")
	require.True(t, appErrors.IsKind(err, appErrors.ErrInvalidRedirect))

	// REDIRECTED status without the redirect flag.
	req = entryRequest(models.AdminStatusRedirected, models.StudentStatusUnderReview)
	_, err = svc.CreateTrackingEntry(ctx, req, "adm-1")
	require.True(t, appErrors.IsKind(err, appErrors.ErrInvalidRedirect))

	// Target set on a plain entry.
	req = entryRequest(models.AdminStatusPending, models.StudentStatusInProgress)
	req.RedirectTo = &target
	_, err = svc.CreateTrackingEntry(ctx, req, "adm-1")
	require.True(t, appErrors.IsKind(err, appErrors.ErrInvalidRedirect))

	// Redirecting to yourself.
	req = entryRequest(models.AdminStatusRedirected, models.StudentStatusUnderReview)
	req.IsRedirect = true
	req.RedirectTo = &self
	_, err = svc.CreateTrackingEntry(ctx, req, "adm-1")
	require.True(t, appErrors.IsKind(err, appErrors.ErrSelfRedirect))
}

func TestRedirectGrievance(t *testing.T) {
	svc, store, sink := newTrackingFixture()
	ctx := context.Background()

	_, err := svc.CreateTrackingEntry(ctx, entryRequest(models.AdminStatusNew, models.StudentStatusSubmitted), "adm-1")
	require.NoError(t, err)

	created, err := svc.RedirectGrievance(ctx, "grv-1", "adm-1", "adm-2", "")
	require.NoError(t, err)
	require.Equal(t, models.AdminStatusRedirected, created.AdminStatus)
	require.Equal(t, models.StudentStatusUnderReview, created.StudentStatus)
	require.True(t, created.IsRedirect)
	require.Equal(t, "adm-2", *created.RedirectTo)
	require.Equal(t, "adm-1", *created.RedirectFrom)
	require.Equal(t, "Grievance redirected", created.ResponseText)

	require.Len(t, store.entries["grv-1"], 2)

	// One audit row per admin action: the initial entry audits as a
	// create, the redirect audits once as a redirect.
	require.Len(t, sink.logs, 2)
	require.Equal(t, models.AuditActionTrackingCreate, sink.logs[0].Action)
	require.Equal(t, models.AuditActionRedirect, sink.logs[1].Action)
}

func TestRedirectGrievanceSelf(t *testing.T) {
	svc, _, _ := newTrackingFixture()

	_, err := svc.RedirectGrievance(context.Background(), "grv-1", "adm-1", "adm-1", "")
	require.True(t, appErrors.IsKind(err, appErrors.ErrSelfRedirect))
}

func TestRedirectGrievanceMissingReferences(t *testing.T) {
	svc, _, _ := newTrackingFixture()
	ctx := context.Background()

	_, err := svc.RedirectGrievance(ctx, "grv-unknown", "adm-1", "adm-2", "")
	require.True(t, appErrors.IsKind(err, appErrors.ErrNotFound))

	_, err = svc.RedirectGrievance(ctx, "grv-1", "adm-1", "adm-gone", "")
	require.True(t, appErrors.IsKind(err, appErrors.ErrNotFound))
}

func TestGetCurrentStatusEmptyHistory(t *testing.T) {
	svc, _, _ := newTrackingFixture()

	entry, err := svc.GetCurrentStatus(context.Background(), "grv-1")
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestGetHistorySummary(t *testing.T) {
	svc, _, _ := newTrackingFixture()
	ctx := context.Background()

	// Lifecycle of GRV-2025-000123: filed, picked up, redirected, resolved.
	_, err := svc.CreateTrackingEntry(ctx, entryRequest(models.AdminStatusNew, models.StudentStatusSubmitted), "adm-1")
	require.NoError(t, err)
	_, err = svc.CreateTrackingEntry(ctx, entryRequest(models.AdminStatusPending, models.StudentStatusInProgress), "adm-1")
	require.NoError(t, err)
	_, err = svc.RedirectGrievance(ctx, "grv-1", "adm-1", "adm-2", "Facilities issue, routing to campus admin")
	require.NoError(t, err)

	req := entryRequest(models.AdminStatusResolved, models.StudentStatusResolved)
	req.ResponseBy = "adm-2"
	_, err = svc.CreateTrackingEntry(ctx, req, "adm-2")
	require.NoError(t, err)

	history, err := svc.GetHistory(ctx, "grv-1")
	require.NoError(t, err)
	require.Len(t, history.Entries, 4)

	summary := history.Summary
	require.NotNil(t, summary)
	require.Equal(t, 4, summary.TotalEntries)
	require.Equal(t, models.AdminStatusResolved, summary.AdminStatus)
	require.Equal(t, models.StudentStatusResolved, summary.StudentStatus)
	require.Equal(t, 1, summary.RedirectCount)
	require.Equal(t, history.Entries[0].ResponseAt, summary.CreatedAt)
	require.Equal(t, history.Entries[3].ResponseAt, summary.LastUpdated)

	// The fake clock advances one hour per entry.
	require.NotNil(t, summary.ResolutionTime)
	require.Equal(t, "3h0m0s", *summary.ResolutionTime)
}

func TestGetHistoryOpenGrievanceHasNoResolutionTime(t *testing.T) {
	svc, _, _ := newTrackingFixture()
	ctx := context.Background()

	_, err := svc.CreateTrackingEntry(ctx, entryRequest(models.AdminStatusNew, models.StudentStatusSubmitted), "adm-1")
	require.NoError(t, err)
	_, err = svc.CreateTrackingEntry(ctx, entryRequest(models.AdminStatusPending, models.StudentStatusInProgress), "adm-1")
	require.NoError(t, err)

	history, err := svc.GetHistory(ctx, "grv-1")
	require.NoError(t, err)
	require.NotNil(t, history.Summary)
	require.Nil(t, history.Summary.ResolutionTime)
}

func TestGetHistoryEmpty(t *testing.T) {
	svc, _, _ := newTrackingFixture()

	history, err := svc.GetHistory(context.Background(), "grv-1")
	require.NoError(t, err)
	require.Empty(t, history.Entries)
	require.Nil(t, history.Summary)
}

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demesis221/PawRescue/internal/model"
)

func newTestRepo(t *testing.T) *ReportRepo {
	t.Helper()
	db, err := OpenMemory()
	require.NoError(t, err)
	return NewReportRepo(db)
}

func sampleReport(urgency model.Urgency, status model.Status) *model.Report {
	return &model.Report{
		AnimalType:   model.AnimalDog,
		Description:  "Limping dog near the bakery",
		LocationName: "Lahug",
		Latitude:     10.3157,
		Longitude:    123.8854,
		Urgency:      urgency,
		Status:       status,
	}
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	r := sampleReport(model.UrgencyHigh, "")
	require.NoError(t, repo.Create(ctx, r))

	assert.NotEqual(t, uuid.Nil, r.ID, "storage layer must assign the id")
	assert.Equal(t, model.StatusReported, r.Status)
	assert.False(t, r.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, model.AnimalDog, got.AnimalType)
	assert.Equal(t, "Lahug", got.LocationName)
	assert.Equal(t, 10.3157, got.Latitude)
	assert.Equal(t, 123.8854, got.Longitude)
	assert.Equal(t, model.StatusReported, got.Status)
	assert.Empty(t, got.ImageURLs)
	assert.Nil(t, got.UserID)
}

func TestGetByIDMissing(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListFiltersAndOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := sampleReport(model.UrgencyHigh, model.StatusRescued)
	require.NoError(t, repo.Create(ctx, first))
	time.Sleep(5 * time.Millisecond)

	second := sampleReport(model.UrgencyLow, model.StatusRescued)
	require.NoError(t, repo.Create(ctx, second))
	time.Sleep(5 * time.Millisecond)

	third := sampleReport(model.UrgencyHigh, model.StatusRescued)
	require.NoError(t, repo.Create(ctx, third))

	cat := sampleReport(model.UrgencyHigh, model.StatusRescued)
	cat.AnimalType = model.AnimalCat
	require.NoError(t, repo.Create(ctx, cat))

	all, err := repo.List(ctx, model.ReportFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	// Both predicates applied, newest first
	got, err := repo.List(ctx, model.ReportFilter{Status: "rescued", Urgency: "high", AnimalType: "dog"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, third.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)

	none, err := repo.List(ctx, model.ReportFilter{Status: "adopted"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestApplyStatusWritesAudit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	r := sampleReport(model.UrgencyMedium, "")
	require.NoError(t, repo.Create(ctx, r))

	actor := uuid.New()
	updated, err := repo.ApplyStatus(ctx, r.ID, model.StatusReported, model.StatusInProgress, &actor, "rescuer en route")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, updated.Status)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	history, err := repo.StatusHistory(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.StatusReported, history[0].OldStatus)
	assert.Equal(t, model.StatusInProgress, history[0].NewStatus)
	require.NotNil(t, history[0].ActorID)
	assert.Equal(t, actor, *history[0].ActorID)
	assert.Equal(t, "rescuer en route", history[0].Comment)
}

func TestApplyStatusGuardsOnOldStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	r := sampleReport(model.UrgencyMedium, "")
	require.NoError(t, repo.Create(ctx, r))

	// The row is "reported"; a caller that read a stale "in_progress" loses
	_, err := repo.ApplyStatus(ctx, r.ID, model.StatusInProgress, model.StatusRescued, nil, "")
	assert.ErrorIs(t, err, ErrStatusChanged)

	history, err := repo.StatusHistory(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, history, "losing update must not leave an audit row")
}

func TestSetImages(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	r := sampleReport(model.UrgencyLow, "")
	require.NoError(t, repo.Create(ctx, r))

	url := "http://localhost:5000/uploads/" + r.ID.String() + "/1.png"
	require.NoError(t, repo.SetImages(ctx, r.ID, []string{url}, false))

	got, err := repo.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{url}, []string(got.ImageURLs))
	assert.False(t, got.MediaPending)

	require.NoError(t, repo.SetImages(ctx, r.ID, nil, true))
	got, err = repo.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ImageURLs)
	assert.True(t, got.MediaPending)
}

func TestDeleteMissingReportsFalse(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	deleted, err := repo.Delete(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, deleted)

	r := sampleReport(model.UrgencyLow, "")
	require.NoError(t, repo.Create(ctx, r))

	deleted, err = repo.Delete(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err := repo.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleReport(model.UrgencyHigh, model.StatusReported)))
	require.NoError(t, repo.Create(ctx, sampleReport(model.UrgencyHigh, model.StatusRescued)))
	require.NoError(t, repo.Create(ctx, sampleReport(model.UrgencyLow, model.StatusAdopted)))
	require.NoError(t, repo.Create(ctx, sampleReport(model.UrgencyCritical, model.StatusInProgress)))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.TotalReports)
	assert.Equal(t, int64(1), stats.ByStatus[model.StatusReported])
	assert.Equal(t, int64(1), stats.ByStatus[model.StatusRescued])
	assert.Equal(t, int64(1), stats.ByStatus[model.StatusAdopted])
	assert.Equal(t, int64(1), stats.ByStatus[model.StatusInProgress])
	assert.Equal(t, int64(2), stats.ByUrgency[model.UrgencyHigh])
	assert.Equal(t, float64(50), stats.SuccessRate)
}

func TestStatsEmpty(t *testing.T) {
	repo := newTestRepo(t)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalReports)
	assert.Equal(t, float64(0), stats.SuccessRate)
}

func TestListIncludesReporterProfile(t *testing.T) {
	db, err := OpenMemory()
	require.NoError(t, err)
	repo := NewReportRepo(db)
	profiles := NewProfileRepo(db)
	ctx := context.Background()

	profile := &model.Profile{
		Email:    "maria.santos@example.com",
		Username: "maria.santos",
		Password: "not-a-real-hash",
		FullName: "Maria Santos",
		Role:     "user",
	}
	require.NoError(t, profiles.Create(ctx, profile))

	owned := sampleReport(model.UrgencyHigh, model.StatusReported)
	owned.UserID = &profile.ID
	require.NoError(t, repo.Create(ctx, owned))
	require.NoError(t, repo.Create(ctx, sampleReport(model.UrgencyLow, model.StatusReported)))

	reports, err := repo.List(ctx, model.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	var withOwner, anonymous *model.Report
	for i := range reports {
		if reports[i].UserID != nil {
			withOwner = &reports[i]
		} else {
			anonymous = &reports[i]
		}
	}
	require.NotNil(t, withOwner)
	require.NotNil(t, withOwner.Reporter, "listing must join the reporter profile")
	assert.Equal(t, "Maria Santos", withOwner.Reporter.FullName)
	require.NotNil(t, anonymous)
	assert.Nil(t, anonymous.Reporter)
}

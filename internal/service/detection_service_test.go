package service

import (
	"context"
	"testing"
	"time"

	"pestid/internal/dto"
	"pestid/internal/models"
	"pestid/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDetectionForTest(t *testing.T) (*DetectionService, *repository.UserRepository) {
	t.Helper()
	db := newTestDB(t)
	users := repository.NewUserRepository(db)
	cache := NewUserCache(users, time.Minute)
	return NewDetectionService(db, cache, newTestLogger()), users
}

func floatPtr(f float64) *float64 { return &f }

func TestCreateDetectionStoresMetadata(t *testing.T) {
	svc, _ := newDetectionForTest(t)

	ts := time.Date(2024, 7, 1, 9, 0, 0, 0, time.FixedZone("CST", 8*3600))
	detection, err := svc.Create(context.Background(), &dto.CreateDetectionRequest{
		Confidence:       92,
		PestType:         "fall armyworm",
		Timestamp:        &ts,
		ImageLatitude:    floatPtr(23.1),
		ImageLongitude:   floatPtr(113.3),
		ScientificName:   "Spodoptera frugiperda",
		CandidateSpecies: []string{"Spodoptera frugiperda", "Spodoptera litura"},
		Box:              []float64{0.1, 0.2, 0.3, 0.4},
	})
	require.NoError(t, err)
	assert.Len(t, detection.ID, 36)
	assert.InDelta(t, 0.92, detection.Confidence, 1e-9)
	assert.Equal(t, models.StatusPending, detection.CurVeriStatus)
	assert.Equal(t, time.UTC, detection.Timestamp.Location())

	stored, err := svc.detectionRepo.GetByID(detection.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Metadata)
	assert.True(t, stored.Metadata.HasImageLocation())
	assert.JSONEq(t, `["Spodoptera frugiperda","Spodoptera litura"]`, string(stored.Metadata.CandidateSpecies))
	assert.JSONEq(t, `[0.1,0.2,0.3,0.4]`, string(stored.Metadata.Box))
}

func TestCreateDetectionRejectsDuplicateID(t *testing.T) {
	svc, _ := newDetectionForTest(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &dto.CreateDetectionRequest{ID: "det-001", PestType: "aphid"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, &dto.CreateDetectionRequest{ID: "det-001", PestType: "mite"})
	require.ErrorIs(t, err, ErrDetectionExists)

	_, err = svc.CreateBatch(ctx, []dto.CreateDetectionRequest{
		{ID: "det-002", PestType: "locust"},
		{ID: "det-002", PestType: "locust"},
	})
	require.ErrorIs(t, err, ErrDetectionExists)

	exists, err := svc.detectionRepo.Exists("det-002")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMapPointsSkipRowsWithoutCoordinates(t *testing.T) {
	svc, _ := newDetectionForTest(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &dto.CreateDetectionRequest{PestType: "aphid", ImageLatitude: floatPtr(1), ImageLongitude: floatPtr(2), ImagePlaceName: "Field A"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &dto.CreateDetectionRequest{PestType: "mite", UserLatitude: floatPtr(3), UserLongitude: floatPtr(4), UserPlaceName: "Farm B"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &dto.CreateDetectionRequest{PestType: "weevil"})
	require.NoError(t, err)

	points, err := svc.MapPoints("")
	require.NoError(t, err)
	require.Len(t, points, 2)

	byType := map[string]dto.MapPoint{}
	for _, p := range points {
		byType[p.PestType] = p
	}
	assert.Equal(t, "Field A", byType["aphid"].PlaceName)
	assert.Equal(t, 3.0, byType["mite"].Lat)
	assert.Equal(t, "Farm B", byType["mite"].PlaceName)

	points, err = svc.MapPoints(models.StatusVerified)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestChartZeroFillsDays(t *testing.T) {
	svc, _ := newDetectionForTest(t)
	now := time.Date(2024, 8, 10, 15, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for _, ts := range []time.Time{
		now.Add(-1 * time.Hour),
		now.Add(-2 * time.Hour),
		now.AddDate(0, 0, -2),
		now.AddDate(0, 0, -30),
	} {
		ts := ts
		_, err := svc.Create(ctx, &dto.CreateDetectionRequest{PestType: "aphid", Timestamp: &ts})
		require.NoError(t, err)
	}

	chart, err := svc.Chart(7, now)
	require.NoError(t, err)
	require.Len(t, chart.Daily, 7)
	assert.Equal(t, "2024-08-04", chart.Daily[0].Date)
	assert.Equal(t, "2024-08-10", chart.Daily[6].Date)
	assert.EqualValues(t, 2, chart.Daily[6].Count)
	assert.EqualValues(t, 1, chart.Daily[4].Count)
	assert.EqualValues(t, 0, chart.Daily[5].Count)
	require.Len(t, chart.PestTypes, 1)
	assert.EqualValues(t, 3, chart.PestTypes[0].Count)

	chart, err = svc.Chart(0, now)
	require.NoError(t, err)
	assert.Equal(t, DefaultChartDays, chart.Days)
}

func TestStatsPercentages(t *testing.T) {
	stats := buildStats(map[string]int64{
		models.StatusPending:  2,
		models.StatusVerified: 1,
		models.StatusRejected: 1,
	}, 0.61234, []string{"aphid"})

	assert.EqualValues(t, 4, stats.Total)
	assert.Equal(t, 50.0, stats.Percentages[models.StatusPending])
	assert.Equal(t, 25.0, stats.Percentages[models.StatusVerified])
	assert.Equal(t, 0.0, stats.Percentages[models.StatusNotPest])
	assert.EqualValues(t, 0, stats.Counts[models.StatusNotPest])
	assert.Equal(t, 0.612, stats.AverageConfidence)

	empty := buildStats(map[string]int64{}, 0, nil)
	assert.Zero(t, empty.Total)
	assert.Equal(t, 0.0, empty.Percentages[models.StatusVerified])
	assert.NotNil(t, empty.PestTypes)
}

func TestDetailResolvesOwnerName(t *testing.T) {
	svc, users := newDetectionForTest(t)
	ctx := context.Background()

	owner := &models.User{Username: "grower", DisplayName: "Li Grower", PasswordHash: "x", IsActive: true}
	require.NoError(t, users.Create(owner))

	created, err := svc.Create(ctx, &dto.CreateDetectionRequest{PestType: "aphid", UserID: owner.ID})
	require.NoError(t, err)

	detail, err := svc.Detail(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Owner)
	assert.Equal(t, "Li Grower", detail.Owner.Name)
	assert.Nil(t, detail.Verification)
	assert.Empty(t, detail.RecentHistory)

	_, err = svc.Detail(ctx, "missing")
	assert.ErrorIs(t, err, ErrDetectionNotFound)
}

package repository

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"pestid/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 0, 123456789, time.UTC)
	encoded := EncodeCursor(ts, "abc-123")

	c, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.True(t, c.Time.Equal(ts))
	assert.Equal(t, "abc-123", c.Key)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	cases := []string{
		"%%%",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte("yesterday|id")),
		base64.RawURLEncoding.EncodeToString([]byte("2024-05-01T00:00:00Z|")),
	}
	for _, in := range cases {
		_, err := DecodeCursor(in)
		assert.ErrorIs(t, err, ErrInvalidCursor, in)
	}

	c, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultPageLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultPageLimit, NormalizeLimit(-3))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, MaxPageLimit, NormalizeLimit(5000))
}

func TestDetectionCursorWalkVisitsEveryRowOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewDetectionRepository(db)

	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	total := 23
	for i := 0; i < total; i++ {
		// 每三条共用一个时间戳，检验同一时间下按 id 排序
		ts := base.Add(time.Duration(i/3) * time.Minute)
		d := &models.Detection{
			ID:            fmt.Sprintf("det-%02d", i),
			CurVeriStatus: models.StatusPending,
			PestType:      "aphid",
			Timestamp:     ts,
		}
		require.NoError(t, repo.Create(d, nil))
	}

	var seen []string
	cursor := ""
	for pages := 0; pages < 10; pages++ {
		c, err := DecodeCursor(cursor)
		require.NoError(t, err)

		page, err := repo.List(DetectionFilter{}, c, 5)
		require.NoError(t, err)
		for _, d := range page.Items {
			seen = append(seen, d.ID)
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	require.Len(t, seen, total)

	unique := make(map[string]struct{}, total)
	for _, id := range seen {
		unique[id] = struct{}{}
	}
	assert.Len(t, unique, total)

	// 时间倒序，同一时间 id 倒序
	assert.Equal(t, "det-22", seen[0])
	assert.Equal(t, "det-21", seen[1])
	assert.Equal(t, "det-20", seen[2])
	assert.Equal(t, "det-00", seen[total-1])
}

func TestFullLastPageReportsHasMore(t *testing.T) {
	db := newTestDB(t)
	repo := NewDetectionRepository(db)

	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Create(&models.Detection{
			ID:        fmt.Sprintf("det-%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}, nil))
	}

	first, err := repo.List(DetectionFilter{}, nil, 2)
	require.NoError(t, err)
	assert.True(t, first.HasMore)

	c, err := DecodeCursor(first.NextCursor)
	require.NoError(t, err)
	second, err := repo.List(DetectionFilter{}, c, 2)
	require.NoError(t, err)
	assert.Len(t, second.Items, 2)
	// 页满即报告还有更多，下一页为空
	assert.True(t, second.HasMore)

	c, err = DecodeCursor(second.NextCursor)
	require.NoError(t, err)
	third, err := repo.List(DetectionFilter{}, c, 2)
	require.NoError(t, err)
	assert.Empty(t, third.Items)
	assert.False(t, third.HasMore)
	assert.Empty(t, third.NextCursor)
}

func TestDetectionListFilters(t *testing.T) {
	db := newTestDB(t)
	repo := NewDetectionRepository(db)

	now := time.Now().UTC()
	require.NoError(t, repo.Create(&models.Detection{ID: "a", PestType: "aphid", CurVeriStatus: models.StatusPending, UserID: 1, Timestamp: now}, nil))
	require.NoError(t, repo.Create(&models.Detection{ID: "b", PestType: "beetle", CurVeriStatus: models.StatusVerified, UserID: 2, Timestamp: now}, nil))
	require.NoError(t, repo.Create(&models.Detection{ID: "c", PestType: "aphid", CurVeriStatus: models.StatusVerified, UserID: 2, Timestamp: now}, nil))

	page, err := repo.List(DetectionFilter{PestType: "aphid", Status: models.StatusVerified}, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "c", page.Items[0].ID)

	page, err = repo.List(DetectionFilter{UserID: 2}, nil, 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
}

func TestSpeciesListOrdersByLastSeen(t *testing.T) {
	db := newTestDB(t)
	repo := NewSpeciesRepository(db)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.Species{
		{ScientificName: "Aphis gossypii", InstanceCount: 50, LastSeen: base},
		{ScientificName: "Myzus persicae", InstanceCount: 2, LastSeen: base.Add(48 * time.Hour)},
		{ScientificName: "Spodoptera frugiperda", InstanceCount: 10, LastSeen: base.Add(24 * time.Hour)},
	}
	require.NoError(t, db.Create(&rows).Error)

	first, err := repo.List(nil, 2)
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "Myzus persicae", first.Items[0].ScientificName)
	assert.Equal(t, "Spodoptera frugiperda", first.Items[1].ScientificName)
	require.True(t, first.HasMore)

	cursor, err := DecodeCursor(first.NextCursor)
	require.NoError(t, err)
	second, err := repo.List(cursor, 2)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "Aphis gossypii", second.Items[0].ScientificName)
	assert.False(t, second.HasMore)
}

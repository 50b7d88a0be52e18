package service

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"pestid/internal/dto"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHistoryIDFormat(t *testing.T) {
	now := time.UnixMilli(1718000000123)
	pattern := regexp.MustCompile(`^analysis-1718000000123-[0-9a-z]{9}$`)
	for i := 0; i < 50; i++ {
		assert.Regexp(t, pattern, newHistoryID(now))
	}
}

func TestHistorySavePushesAndTrims(t *testing.T) {
	client, mock := redismock.NewClientMock()
	svc := NewHistoryService(client, 100, newTestLogger())
	svc.now = func() time.Time { return time.UnixMilli(1718000000000) }

	anyArgs := func(expected, actual []interface{}) error {
		if len(actual) != 3 || actual[0] != "lpush" || actual[1] != "pestid-analysis-history:9" {
			return errors.New("unexpected lpush")
		}
		return nil
	}
	mock.CustomMatch(anyArgs).ExpectLPush("pestid-analysis-history:9", "").SetVal(1)
	mock.ExpectLTrim("pestid-analysis-history:9", 0, 99).SetVal("OK")

	entry, err := svc.Save(context.Background(), 9, &dto.HistorySaveRequest{
		Mode:    "battle",
		Models:  []string{"gpt-4o", "ollama:llava"},
		Summary: "2 detections",
		Result:  map[string]interface{}{"winner": "left"},
	})
	require.NoError(t, err)
	assert.Equal(t, "battle", entry.Mode)
	assert.JSONEq(t, `{"winner":"left"}`, string(entry.Result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryListSkipsCorruptEntries(t *testing.T) {
	client, mock := redismock.NewClientMock()
	svc := NewHistoryService(client, 0, newTestLogger())

	good, err := json.Marshal(HistoryEntry{ID: "analysis-1-000000001", Mode: "single", Models: []string{"m"}})
	require.NoError(t, err)
	mock.ExpectLRange("pestid-analysis-history:1", 0, -1).SetVal([]string{string(good), "{broken"})

	entries, err := svc.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "analysis-1-000000001", entries[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryDeleteRemovesMatchingEntry(t *testing.T) {
	client, mock := redismock.NewClientMock()
	svc := NewHistoryService(client, 0, newTestLogger())

	a := `{"id":"analysis-1-aaaaaaaaa","mode":"single"}`
	b := `{"id":"analysis-2-bbbbbbbbb","mode":"single"}`
	mock.ExpectLRange("pestid-analysis-history:4", 0, -1).SetVal([]string{a, b})
	mock.ExpectLRem("pestid-analysis-history:4", 1, b).SetVal(1)

	removed, err := svc.Delete(context.Background(), 4, "analysis-2-bbbbbbbbb")
	require.NoError(t, err)
	assert.True(t, removed)

	mock.ExpectLRange("pestid-analysis-history:4", 0, -1).SetVal([]string{a})
	removed, err = svc.Delete(context.Background(), 4, "missing")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryClear(t *testing.T) {
	client, mock := redismock.NewClientMock()
	svc := NewHistoryService(client, 0, newTestLogger())

	mock.ExpectDel("pestid-analysis-history:2").SetVal(1)
	require.NoError(t, svc.Clear(context.Background(), 2))

	mock.ExpectDel("pestid-analysis-history:2").SetErr(errors.New("connection reset"))
	assert.Error(t, svc.Clear(context.Background(), 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryWithoutRedis(t *testing.T) {
	svc := NewHistoryService(nil, 0, newTestLogger())
	_, err := svc.List(context.Background(), 1)
	assert.ErrorIs(t, err, ErrHistoryUnavailable)
	assert.ErrorIs(t, svc.Clear(context.Background(), 1), ErrHistoryUnavailable)
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"pestid/internal/dto"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// historyKeyPrefix 分析历史在 Redis 中的键前缀，后接用户ID
const historyKeyPrefix = "pestid-analysis-history:"

// DefaultHistoryCapacity 每个用户保留的最大条数
const DefaultHistoryCapacity = 100

// 36^9，生成 9 位 36 进制随机串
const historySuffixSpace = 101559956668416

// HistoryEntry 一条分析历史
type HistoryEntry struct {
	ID        string          `json:"id"`
	Mode      string          `json:"mode"`
	Models    []string        `json:"models"`
	CreatedAt time.Time       `json:"createdAt"`
	Summary   string          `json:"summary,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// HistoryService 分析历史环形缓冲，新记录在前，超出容量的旧记录被裁掉
type HistoryService struct {
	client   *redis.Client
	capacity int
	logger   *logrus.Logger
	now      func() time.Time
}

// NewHistoryService 创建历史服务，client 为 nil 时所有操作返回 ErrHistoryUnavailable
func NewHistoryService(client *redis.Client, capacity int, logger *logrus.Logger) *HistoryService {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &HistoryService{
		client:   client,
		capacity: capacity,
		logger:   logger,
		now:      time.Now,
	}
}

func historyKey(userID uint) string {
	return historyKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

// newHistoryID analysis-<毫秒时间戳>-<9位随机串>
func newHistoryID(now time.Time) string {
	suffix := strconv.FormatInt(rand.Int64N(historySuffixSpace), 36)
	if len(suffix) < 9 {
		suffix = strings.Repeat("0", 9-len(suffix)) + suffix
	}
	return fmt.Sprintf("analysis-%d-%s", now.UnixMilli(), suffix)
}

// Save 写入一条历史
func (s *HistoryService) Save(ctx context.Context, userID uint, req *dto.HistorySaveRequest) (*HistoryEntry, error) {
	if s.client == nil {
		return nil, ErrHistoryUnavailable
	}

	now := s.now().UTC()
	entry := &HistoryEntry{
		ID:        newHistoryID(now),
		Mode:      req.Mode,
		Models:    req.Models,
		CreatedAt: now,
		Summary:   req.Summary,
	}
	if req.Result != nil {
		result, err := json.Marshal(req.Result)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		entry.Result = result
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("序列化历史失败: %w", err)
	}

	key := historyKey(userID)
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, int64(s.capacity-1))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("保存历史失败: %w", err)
	}
	return entry, nil
}

// List 按时间倒序返回全部历史，无法解析的条目被跳过
func (s *HistoryService) List(ctx context.Context, userID uint) ([]HistoryEntry, error) {
	if s.client == nil {
		return nil, ErrHistoryUnavailable
	}

	raw, err := s.client.LRange(ctx, historyKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("读取历史失败: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var entry HistoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			s.logger.WithFields(logrus.Fields{
				"user_id": userID,
				"error":   err.Error(),
			}).Warn("跳过无法解析的历史记录")
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Delete 删除指定ID的历史，不存在时返回 false
func (s *HistoryService) Delete(ctx context.Context, userID uint, id string) (bool, error) {
	if s.client == nil {
		return false, ErrHistoryUnavailable
	}

	key := historyKey(userID)
	raw, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("读取历史失败: %w", err)
	}

	for _, item := range raw {
		var entry struct {
			ID string `json:"id"`
		}
		if json.Unmarshal([]byte(item), &entry) != nil || entry.ID != id {
			continue
		}
		removed, err := s.client.LRem(ctx, key, 1, item).Result()
		if err != nil {
			return false, fmt.Errorf("删除历史失败: %w", err)
		}
		return removed > 0, nil
	}
	return false, nil
}

// Clear 清空用户的全部历史
func (s *HistoryService) Clear(ctx context.Context, userID uint) error {
	if s.client == nil {
		return ErrHistoryUnavailable
	}
	if err := s.client.Del(ctx, historyKey(userID)).Err(); err != nil {
		return fmt.Errorf("清空历史失败: %w", err)
	}
	return nil
}

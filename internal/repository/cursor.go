package repository

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// 分页参数
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// ErrInvalidCursor 游标无法解析
var ErrInvalidCursor = errors.New("无效的游标")

// Cursor 上一页最后一条记录的位置：排序时间 + 唯一键
type Cursor struct {
	Time time.Time
	Key  string
}

// Page 游标分页结果
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
}

// EncodeCursor 生成不透明游标
func EncodeCursor(t time.Time, key string) string {
	raw := t.UTC().Format(time.RFC3339Nano) + "|" + key
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor 解析游标，空串返回 nil
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, ErrInvalidCursor
	}

	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{Time: t.UTC(), Key: parts[1]}, nil
}

// NormalizeLimit 限制每页条数
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

// applyCursor 按 (timeCol DESC, keyCol DESC) 取游标之后的记录
func applyCursor(db *gorm.DB, timeCol, keyCol string, c *Cursor) *gorm.DB {
	query := db.Order(timeCol + " DESC").Order(keyCol + " DESC")
	if c == nil {
		return query
	}
	return query.Where(
		fmt.Sprintf("((%s < ?) OR (%s = ? AND %s < ?))", timeCol, timeCol, keyCol),
		c.Time, c.Time, c.Key,
	)
}

// buildPage 组装分页结果；页满即认为还有下一页
func buildPage[T any](items []T, limit int, position func(T) (time.Time, string)) Page[T] {
	page := Page[T]{Items: items}
	if page.Items == nil {
		page.Items = []T{}
	}
	if len(items) == 0 {
		return page
	}

	page.HasMore = len(items) == limit
	if page.HasMore {
		t, key := position(items[len(items)-1])
		page.NextCursor = EncodeCursor(t, key)
	}
	return page
}

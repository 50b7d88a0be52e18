package service

import (
	"context"
	"strconv"
	"time"

	"pestid/internal/models"

	"github.com/patrickmn/go-cache"
)

// UserLoader 缓存未命中时加载用户
type UserLoader interface {
	GetByID(id uint) (*models.User, error)
}

// UserCache 带过期时间的用户缓存，用户信息变更时需调用 Invalidate
type UserCache struct {
	loader UserLoader
	cache  *cache.Cache
}

// NewUserCache 创建用户缓存
func NewUserCache(loader UserLoader, ttl time.Duration) *UserCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &UserCache{
		loader: loader,
		cache:  cache.New(ttl, ttl*2),
	}
}

// Get 获取用户，未命中时从数据库加载
func (c *UserCache) Get(ctx context.Context, id uint) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := strconv.FormatUint(uint64(id), 10)
	if cached, ok := c.cache.Get(key); ok {
		if user, ok := cached.(*models.User); ok {
			return user, nil
		}
	}

	user, err := c.loader.GetByID(id)
	if err != nil {
		return nil, err
	}

	c.cache.SetDefault(key, user)
	return user, nil
}

// DisplayName 用户展示名，查不到时返回空串
func (c *UserCache) DisplayName(ctx context.Context, id uint) string {
	if id == 0 {
		return ""
	}
	user, err := c.Get(ctx, id)
	if err != nil {
		return ""
	}
	return user.Name()
}

// Invalidate 移除缓存
func (c *UserCache) Invalidate(id uint) {
	c.cache.Delete(strconv.FormatUint(uint64(id), 10))
}

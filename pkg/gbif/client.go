// Package gbif 是 GBIF 物种接口的只读客户端，带本地缓存。
package gbif

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// ErrNotFound 条目不存在
var ErrNotFound = errors.New("GBIF 条目不存在")

// Config 客户端配置
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		BaseURL:  "https://api.gbif.org/v1",
		Timeout:  30 * time.Second,
		CacheTTL: 24 * time.Hour,
	}
}

// CacheObserver 缓存命中统计
type CacheObserver interface {
	CacheHit()
	CacheMiss()
}

// Client GBIF 客户端
type Client struct {
	config     Config
	httpClient *http.Client
	cache      *cache.Cache
	observer   CacheObserver
}

// NewClient 创建客户端，未填写的配置使用默认值
func NewClient(config Config) *Client {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		cache: cache.New(config.CacheTTL, config.CacheTTL*2),
	}
}

// WithObserver 设置缓存统计
func (c *Client) WithObserver(observer CacheObserver) *Client {
	c.observer = observer
	return c
}

// HTTPClient 底层 HTTP 客户端，测试中用于挂载 mock
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Match 按学名模糊匹配
func (c *Client) Match(ctx context.Context, name string) (*MatchResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("名称不能为空")
	}

	cacheKey := "match:" + strings.ToLower(name)
	if cached, ok := c.fromCache(cacheKey); ok {
		if result, ok := cached.(*MatchResult); ok {
			return result, nil
		}
	}

	params := url.Values{}
	params.Set("name", name)

	var result MatchResult
	if err := c.get(ctx, "/species/match", params, &result); err != nil {
		return nil, err
	}

	c.cache.Set(cacheKey, &result, cache.DefaultExpiration)
	return &result, nil
}

// Search 全文检索
func (c *Client) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("查询内容不能为空")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	cacheKey := fmt.Sprintf("search:%s:%d", strings.ToLower(query), limit)
	if cached, ok := c.fromCache(cacheKey); ok {
		if result, ok := cached.(*SearchResult); ok {
			return result, nil
		}
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	var result SearchResult
	if err := c.get(ctx, "/species/search", params, &result); err != nil {
		return nil, err
	}
	if result.Results == nil {
		result.Results = []NameUsage{}
	}

	c.cache.Set(cacheKey, &result, cache.DefaultExpiration)
	return &result, nil
}

// Get 按 key 获取条目
func (c *Client) Get(ctx context.Context, key int64) (*NameUsage, error) {
	cacheKey := fmt.Sprintf("usage:%d", key)
	if cached, ok := c.fromCache(cacheKey); ok {
		if usage, ok := cached.(*NameUsage); ok {
			return usage, nil
		}
	}

	var usage NameUsage
	if err := c.get(ctx, "/species/"+strconv.FormatInt(key, 10), nil, &usage); err != nil {
		return nil, err
	}

	c.cache.Set(cacheKey, &usage, cache.DefaultExpiration)
	return &usage, nil
}

func (c *Client) fromCache(key string) (interface{}, bool) {
	cached, found := c.cache.Get(key)
	if c.observer != nil {
		if found {
			c.observer.CacheHit()
		} else {
			c.observer.CacheMiss()
		}
	}
	return cached, found
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := c.config.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GBIF 请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GBIF 返回错误: status=%d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("解析 GBIF 响应失败: %w", err)
	}
	return nil
}

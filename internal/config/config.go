package config

import (
	"fmt"
	"time"
)

// Config 应用配置结构
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis_service"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Admin       AdminConfig       `mapstructure:"admin"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Frontend    FrontendConfig    `mapstructure:"frontend"`
	Providers   ProvidersConfig   `mapstructure:"providers"`
	GBIF        GBIFConfig        `mapstructure:"gbif"`
	Cache       CacheConfig       `mapstructure:"cache"`
	History     HistoryConfig     `mapstructure:"history"`
	Upload      UploadConfig      `mapstructure:"upload"`
	InternalAPI InternalAPIConfig `mapstructure:"internal_api"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	ProductionMode bool   `mapstructure:"production_mode"`
}

// GetAddress 获取服务器地址
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled               bool   `mapstructure:"enabled"`
	Host                  string `mapstructure:"host"`
	Port                  int    `mapstructure:"port"`
	DB                    int    `mapstructure:"db"`
	Password              string `mapstructure:"password"`
	DefaultMaxConcurrency int    `mapstructure:"default_max_concurrency"`
}

// GetAddress 获取Redis地址
func (r *RedisConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig JWT配置
type JWTConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	Algorithm     string `mapstructure:"algorithm"`
	ExpireMinutes int    `mapstructure:"expire_minutes"`
}

// GetExpireDuration 获取过期时间
func (j *JWTConfig) GetExpireDuration() time.Duration {
	return time.Duration(j.ExpireMinutes) * time.Minute
}

// AdminConfig 管理员配置
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CORSConfig CORS配置
type CORSConfig struct {
	Origins          []string `mapstructure:"origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
}

// FrontendConfig 前端配置
type FrontendConfig struct {
	URL string `mapstructure:"url"`
}

// ProvidersConfig 识别模型服务配置
type ProvidersConfig struct {
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
	Ollama     OllamaConfig     `mapstructure:"ollama"`
}

// GeminiConfig Gemini配置
type GeminiConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	MaxDetections int    `mapstructure:"max_detections"`
}

// OpenRouterConfig OpenRouter配置
type OpenRouterConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	DefaultModel string `mapstructure:"default_model"`
	SiteName     string `mapstructure:"site_name"`
	Timeout      int    `mapstructure:"timeout"`
	MaxTokens    int    `mapstructure:"max_tokens"`
}

// GetTimeout 获取请求超时
func (o *OpenRouterConfig) GetTimeout() time.Duration {
	return time.Duration(o.Timeout) * time.Second
}

// OllamaConfig Ollama配置
type OllamaConfig struct {
	DefaultBaseURL  string `mapstructure:"default_base_url"`
	RouteTimeout    int    `mapstructure:"route_timeout"`
	ServiceTimeout  int    `mapstructure:"service_timeout"`
	GenerateTimeout int    `mapstructure:"generate_timeout"`
}

// GetRouteTimeout 路由层连通性检查超时
func (o *OllamaConfig) GetRouteTimeout() time.Duration {
	return time.Duration(o.RouteTimeout) * time.Second
}

// GetServiceTimeout 服务层单次请求超时
func (o *OllamaConfig) GetServiceTimeout() time.Duration {
	return time.Duration(o.ServiceTimeout) * time.Second
}

// GetGenerateTimeout 推理请求超时
func (o *OllamaConfig) GetGenerateTimeout() time.Duration {
	return time.Duration(o.GenerateTimeout) * time.Second
}

// GBIFConfig GBIF接口配置
type GBIFConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Timeout  int    `mapstructure:"timeout"`
	CacheTTL int    `mapstructure:"cache_ttl"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	UserTTL int `mapstructure:"user_ttl"`
}

// GetUserTTL 用户缓存有效期
func (c *CacheConfig) GetUserTTL() time.Duration {
	return time.Duration(c.UserTTL) * time.Second
}

// HistoryConfig 分析历史配置
type HistoryConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// UploadConfig 上传图片配置
type UploadConfig struct {
	MaxBytes     int64 `mapstructure:"max_bytes"`
	MaxDimension int   `mapstructure:"max_dimension"`
	JPEGQuality  int   `mapstructure:"jpeg_quality"`
}

// InternalAPIConfig 内部接入配置（现场设备批量上报）
type InternalAPIConfig struct {
	Key string `mapstructure:"key"`
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

var (
	globalConfig *Config
	once         sync.Once
	configPath   string
)

// envBindings 沿用前端部署时的环境变量名
var envBindings = map[string]string{
	"providers.gemini.api_key":     "GOOGLE_GENERATIVE_AI_API_KEY",
	"providers.openrouter.api_key": "OPENROUTER_API_KEY",
	"frontend.url":                 "NEXT_PUBLIC_APP_URL",
	"internal_api.key":             "INTERNAL_API_KEY",
	"jwt.secret_key":               "JWT_SECRET_KEY",
}

// LoadConfig 加载配置文件
func LoadConfig(configFile string) (*Config, error) {
	var err error
	var cfg *Config

	once.Do(func() {
		cfg, err = loadConfigFromFile(configFile)
		if err == nil {
			globalConfig = cfg
		}
		configPath = configFile
	})

	return globalConfig, err
}

// loadConfigFromFile 从文件加载配置
func loadConfigFromFile(configFile string) (*Config, error) {
	v := viper.New()

	// 设置配置文件路径
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		// 默认查找 config.yaml
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// 读取环境变量，PESTID_SERVER_PORT 形式覆盖嵌套键
	v.SetEnvPrefix("PESTID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("绑定环境变量失败: %w", err)
		}
	}

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 设置默认值
	setDefaults(&cfg)

	// 验证配置
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 18080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./database/pestid.db"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.DefaultMaxConcurrency == 0 {
		cfg.Redis.DefaultMaxConcurrency = 4
	}
	if cfg.JWT.Algorithm == "" {
		cfg.JWT.Algorithm = "HS256"
	}
	if cfg.JWT.ExpireMinutes == 0 {
		cfg.JWT.ExpireMinutes = 43200 // 30天
	}
	if cfg.Admin.Username == "" {
		cfg.Admin.Username = "admin"
	}
	if cfg.CORS.AllowMethods == nil {
		cfg.CORS.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	if cfg.CORS.AllowHeaders == nil {
		cfg.CORS.AllowHeaders = []string{"*"}
	}
	if cfg.Providers.Gemini.Model == "" {
		cfg.Providers.Gemini.Model = "gemini-2.0-flash"
	}
	if cfg.Providers.Gemini.MaxDetections == 0 {
		cfg.Providers.Gemini.MaxDetections = 20
	}
	if cfg.Providers.OpenRouter.BaseURL == "" {
		cfg.Providers.OpenRouter.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Providers.OpenRouter.SiteName == "" {
		cfg.Providers.OpenRouter.SiteName = "PestID Dashboard"
	}
	if cfg.Providers.OpenRouter.Timeout == 0 {
		cfg.Providers.OpenRouter.Timeout = 120
	}
	if cfg.Providers.OpenRouter.MaxTokens == 0 {
		cfg.Providers.OpenRouter.MaxTokens = 2048
	}
	if cfg.Providers.Ollama.DefaultBaseURL == "" {
		cfg.Providers.Ollama.DefaultBaseURL = "http://localhost:11434"
	}
	if cfg.Providers.Ollama.RouteTimeout == 0 {
		cfg.Providers.Ollama.RouteTimeout = 15
	}
	if cfg.Providers.Ollama.ServiceTimeout == 0 {
		cfg.Providers.Ollama.ServiceTimeout = 10
	}
	if cfg.Providers.Ollama.GenerateTimeout == 0 {
		cfg.Providers.Ollama.GenerateTimeout = 300
	}
	if cfg.GBIF.BaseURL == "" {
		cfg.GBIF.BaseURL = "https://api.gbif.org/v1"
	}
	if cfg.GBIF.Timeout == 0 {
		cfg.GBIF.Timeout = 30
	}
	if cfg.GBIF.CacheTTL == 0 {
		cfg.GBIF.CacheTTL = 86400
	}
	if cfg.Cache.UserTTL == 0 {
		cfg.Cache.UserTTL = 600
	}
	if cfg.History.Capacity == 0 {
		cfg.History.Capacity = 100
	}
	if cfg.Upload.MaxBytes == 0 {
		cfg.Upload.MaxBytes = 20 << 20
	}
	if cfg.Upload.MaxDimension == 0 {
		cfg.Upload.MaxDimension = 1024
	}
	if cfg.Upload.JPEGQuality == 0 {
		cfg.Upload.JPEGQuality = 85
	}
}

// validateConfig 验证配置
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("无效的服务器端口: %d", cfg.Server.Port)
	}

	if cfg.JWT.SecretKey == "" {
		return fmt.Errorf("JWT密钥不能为空")
	}

	if cfg.Admin.Password == "" {
		return fmt.Errorf("管理员密码不能为空")
	}

	if cfg.Upload.JPEGQuality < 1 || cfg.Upload.JPEGQuality > 100 {
		return fmt.Errorf("无效的JPEG质量: %d", cfg.Upload.JPEGQuality)
	}

	// 检查数据库目录是否存在
	dbDir := filepath.Dir(cfg.Database.Path)
	if _, err := os.Stat(dbDir); os.IsNotExist(err) {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	return nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	return globalConfig
}

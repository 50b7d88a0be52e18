package models

import (
	"time"
)

// 识别模型来源
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

// ModelConfig 可用于识别/对战的模型登记
type ModelConfig struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	Name          string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Provider      string    `gorm:"size:20;not null;default:'openrouter'" json:"provider"`
	ModelPath     string    `gorm:"size:255;not null;index" json:"model_path"`
	APIURL        string    `gorm:"size:255" json:"api_url"`
	MaxConcurrent int       `gorm:"default:4" json:"max_concurrent"`
	MaxTokens     int       `gorm:"default:2048" json:"max_tokens"`
	Temperature   float64   `gorm:"default:0.2" json:"temperature"`
	Timeout       int       `gorm:"default:120" json:"timeout"`
	SupportsBoxes bool      `gorm:"default:false" json:"supports_boxes"`
	Description   string    `gorm:"type:text" json:"description"`
	IsActive      bool      `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName 指定表名
func (ModelConfig) TableName() string {
	return "model_configs"
}

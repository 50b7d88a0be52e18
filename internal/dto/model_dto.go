package dto

// CreateModelConfigRequest 创建模型配置请求
type CreateModelConfigRequest struct {
	Name          string  `json:"name" binding:"required"`
	Provider      string  `json:"provider" binding:"required,oneof=openrouter ollama gemini"`
	ModelPath     string  `json:"model_path" binding:"required"`
	APIURL        string  `json:"api_url"`
	MaxConcurrent int     `json:"max_concurrent"`
	MaxTokens     int     `json:"max_tokens"`
	Temperature   float64 `json:"temperature"`
	Timeout       int     `json:"timeout"`
	SupportsBoxes bool    `json:"supports_boxes"`
	Description   string  `json:"description"`
	IsActive      bool    `json:"is_active"`
}

// UpdateModelConfigRequest 更新模型配置请求
type UpdateModelConfigRequest struct {
	Name          *string  `json:"name"`
	Provider      *string  `json:"provider" binding:"omitempty,oneof=openrouter ollama gemini"`
	ModelPath     *string  `json:"model_path"`
	APIURL        *string  `json:"api_url"`
	MaxConcurrent *int     `json:"max_concurrent"`
	MaxTokens     *int     `json:"max_tokens"`
	Temperature   *float64 `json:"temperature"`
	Timeout       *int     `json:"timeout"`
	SupportsBoxes *bool    `json:"supports_boxes"`
	Description   *string  `json:"description"`
	IsActive      *bool    `json:"is_active"`
}

// ModelConfigResponse 模型配置响应
type ModelConfigResponse struct {
	ID            uint    `json:"id"`
	Name          string  `json:"name"`
	Provider      string  `json:"provider"`
	ModelPath     string  `json:"model_path"`
	APIURL        string  `json:"api_url"`
	MaxConcurrent int     `json:"max_concurrent"`
	MaxTokens     int     `json:"max_tokens"`
	Temperature   float64 `json:"temperature"`
	Timeout       int     `json:"timeout"`
	SupportsBoxes bool    `json:"supports_boxes"`
	Description   string  `json:"description"`
	IsActive      bool    `json:"is_active"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// Message 消息，Content 为字符串或 ContentPart 数组
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// ContentPart 多模态消息片段
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL 图片地址，可以是 data URI
type ImageURL struct {
	URL string `json:"url"`
}

// ModelCallResponse 模型调用响应
type ModelCallResponse struct {
	ID      string   `json:"id,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage,omitempty"`
}

// Choice 选择
type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Usage 使用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

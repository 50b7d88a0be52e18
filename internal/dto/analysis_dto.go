package dto

// VoteRequest 对战投票
type VoteRequest struct {
	LeftModel  string `json:"leftModel" binding:"required,max=200"`
	RightModel string `json:"rightModel" binding:"required,max=200"`
	Winner     string `json:"winner" binding:"required,oneof=left right tie both-bad"`
	ImageID    string `json:"imageId" binding:"max=100"`
	BattleID   string `json:"battleId" binding:"max=100"`
	Prompt     string `json:"prompt"`
}

// HistorySaveRequest 保存一条分析历史
type HistorySaveRequest struct {
	Mode    string      `json:"mode" binding:"required,oneof=single battle"`
	Models  []string    `json:"models" binding:"required,min=1,max=2"`
	Summary string      `json:"summary" binding:"max=500"`
	Result  interface{} `json:"result"`
}

// OllamaUsage Ollama 调用用量
type OllamaUsage struct {
	PromptTokens     int   `json:"promptTokens"`
	CompletionTokens int   `json:"completionTokens"`
	TotalDuration    int64 `json:"totalDuration"`
}

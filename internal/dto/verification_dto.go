package dto

// VerificationFields 审核结论字段，布尔项必须显式给出
type VerificationFields struct {
	Status            string `json:"status" binding:"required,oneof=verified rejected"`
	Category          string `json:"category" binding:"required,oneof=unrelated google-sourced real-pest unknown-species"`
	Confidence        *int   `json:"confidence" binding:"required,min=0,max=100"`
	NeedsExpertReview *bool  `json:"needsExpertReview" binding:"required"`
	CanReuseForAI     *bool  `json:"canReuseForAI" binding:"required"`
	CorrectedSpecies  string `json:"correctedSpecies" binding:"max=255"`
	Notes             string `json:"notes"`
	Reason            string `json:"reason"`
}

// VerificationRequest 提交审核结论
type VerificationRequest struct {
	DetectionID string `json:"detectionId" binding:"required,max=36"`
	VerificationFields
}

// VerificationUpdateRequest 修改已有审核结论，必须填写原因
type VerificationUpdateRequest struct {
	VerificationFields
}

// ConsistencyResponse 检测状态与审核日志是否一致
type ConsistencyResponse struct {
	DetectionID   string `json:"detectionId"`
	CurrentStatus string `json:"currentStatus"`
	LatestStatus  string `json:"latestStatus,omitempty"`
	HistoryCount  int64  `json:"historyCount"`
	Consistent    bool   `json:"consistent"`
}

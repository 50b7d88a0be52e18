package models

import (
	"time"
)

// 审核分类
const (
	CategoryUnrelated      = "unrelated"
	CategoryGoogleSourced  = "google-sourced"
	CategoryRealPest       = "real-pest"
	CategoryUnknownSpecies = "unknown-species"
)

// Verification 人工审核结论，每条检测至多一条，修改时原地更新
type Verification struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id"`
	DetectionID       string    `gorm:"uniqueIndex;size:36;not null" json:"detectionId"`
	Status            string    `gorm:"size:20;not null" json:"status"`
	Category          string    `gorm:"size:30;not null" json:"category"`
	Confidence        int       `gorm:"default:0" json:"confidence"`
	CorrectedSpecies  string    `gorm:"size:255" json:"correctedSpecies"`
	ReviewerID        uint      `gorm:"index" json:"reviewerId"`
	ReviewerName      string    `gorm:"size:100" json:"reviewerName"`
	NeedsExpertReview bool      `json:"needsExpertReview"`
	CanReuseForAI     bool      `json:"canReuseForAI"`
	Notes             string    `gorm:"type:text" json:"notes"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Verification) TableName() string {
	return "verifications"
}

// VerificationHistory 审核状态变更日志，只追加
type VerificationHistory struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	DetectionID    string    `gorm:"index;size:36;not null" json:"detectionId"`
	VerificationID string    `gorm:"size:36" json:"verificationId"`
	PreviousStatus string    `gorm:"size:20" json:"previousStatus"`
	NewStatus      string    `gorm:"size:20;not null" json:"newStatus"`
	ChangedByID    uint      `json:"changedById"`
	ChangedBy      string    `gorm:"size:100" json:"changedBy"`
	ChangedAt      time.Time `gorm:"index;not null" json:"changedAt"`
	Reason         string    `gorm:"type:text" json:"reason"`
}

// TableName 指定表名
func (VerificationHistory) TableName() string {
	return "verification_history"
}

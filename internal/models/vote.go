package models

import (
	"time"
)

// 对战投票结果
const (
	WinnerLeft    = "left"
	WinnerRight   = "right"
	WinnerTie     = "tie"
	WinnerBothBad = "both-bad"
)

// Vote 对战模式下的一次投票
type Vote struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	LeftModel  string    `gorm:"size:200;not null;index:idx_vote_pair" json:"leftModel"`
	RightModel string    `gorm:"size:200;not null;index:idx_vote_pair" json:"rightModel"`
	Winner     string    `gorm:"size:20;not null" json:"winner"`
	ImageID    string    `gorm:"size:100" json:"imageId,omitempty"`
	BattleID   string    `gorm:"size:100;index" json:"battleId,omitempty"`
	Prompt     string    `gorm:"type:text" json:"prompt,omitempty"`
	UserID     uint      `json:"userId"`
	CreatedAt  time.Time `json:"timestamp"`
}

// TableName 指定表名
func (Vote) TableName() string {
	return "analysis_votes"
}

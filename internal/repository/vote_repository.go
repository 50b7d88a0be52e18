package repository

import (
	"pestid/internal/models"

	"gorm.io/gorm"
)

// VoteRepository 对战投票数据访问层
type VoteRepository struct {
	db *gorm.DB
}

// NewVoteRepository 创建投票Repository
func NewVoteRepository(db *gorm.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

// Create 保存投票
func (r *VoteRepository) Create(vote *models.Vote) error {
	return r.db.Create(vote).Error
}

// ListAll 全部投票，按时间正序
func (r *VoteRepository) ListAll() ([]models.Vote, error) {
	var votes []models.Vote
	err := r.db.Order("created_at ASC").Find(&votes).Error
	return votes, err
}

package repository

import (
	"errors"
	"time"

	"pestid/internal/models"

	"gorm.io/gorm"
)

// VerificationRepository 审核记录数据访问层
type VerificationRepository struct {
	db *gorm.DB
}

// NewVerificationRepository 创建审核记录Repository
func NewVerificationRepository(db *gorm.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// GetByID 根据ID获取审核记录
func (r *VerificationRepository) GetByID(id string) (*models.Verification, error) {
	var v models.Verification
	if err := r.db.Where("id = ?", id).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// FindByDetectionID 获取检测对应的审核记录，不存在时返回 nil
func (r *VerificationRepository) FindByDetectionID(detectionID string) (*models.Verification, error) {
	var v models.Verification
	err := r.db.Where("detection_id = ?", detectionID).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Save 创建或更新审核记录
func (r *VerificationRepository) Save(v *models.Verification) error {
	return r.db.Save(v).Error
}

// AppendHistory 追加状态变更日志
func (r *VerificationRepository) AppendHistory(h *models.VerificationHistory) error {
	return r.db.Create(h).Error
}

// ListHistory 按变更时间倒序分页
func (r *VerificationRepository) ListHistory(detectionID string, cursor *Cursor, limit int) (Page[models.VerificationHistory], error) {
	limit = NormalizeLimit(limit)

	query := r.db.Model(&models.VerificationHistory{})
	if detectionID != "" {
		query = query.Where("detection_id = ?", detectionID)
	}
	query = applyCursor(query, "changed_at", "id", cursor)

	var entries []models.VerificationHistory
	if err := query.Limit(limit).Find(&entries).Error; err != nil {
		return Page[models.VerificationHistory]{}, err
	}

	return buildPage(entries, limit, func(h models.VerificationHistory) (time.Time, string) {
		return h.ChangedAt, h.ID
	}), nil
}

// LatestHistory 最近一条变更日志，没有时返回 nil
func (r *VerificationRepository) LatestHistory(detectionID string) (*models.VerificationHistory, error) {
	var h models.VerificationHistory
	err := r.db.Where("detection_id = ?", detectionID).
		Order("changed_at DESC").Order("id DESC").
		First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// CountHistory 检测的变更日志条数
func (r *VerificationRepository) CountHistory(detectionID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.VerificationHistory{}).Where("detection_id = ?", detectionID).Count(&count).Error
	return count, err
}

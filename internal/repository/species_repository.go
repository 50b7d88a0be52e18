package repository

import (
	"time"

	"pestid/internal/models"

	"gorm.io/gorm"
)

// SpeciesRepository 物种数据访问层
type SpeciesRepository struct {
	db *gorm.DB
}

// NewSpeciesRepository 创建物种Repository
func NewSpeciesRepository(db *gorm.DB) *SpeciesRepository {
	return &SpeciesRepository{db: db}
}

// ReplaceAll 清空后写入新的聚合结果，调用方负责事务
func (r *SpeciesRepository) ReplaceAll(species []models.Species) error {
	if err := r.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Species{}).Error; err != nil {
		return err
	}
	if len(species) == 0 {
		return nil
	}
	return r.db.CreateInBatches(species, 100).Error
}

// List 按最近出现时间倒序分页
func (r *SpeciesRepository) List(cursor *Cursor, limit int) (Page[models.Species], error) {
	limit = NormalizeLimit(limit)

	query := applyCursor(r.db.Model(&models.Species{}), "last_seen", "scientific_name", cursor)

	var species []models.Species
	if err := query.Limit(limit).Find(&species).Error; err != nil {
		return Page[models.Species]{}, err
	}

	return buildPage(species, limit, func(s models.Species) (time.Time, string) {
		return s.LastSeen, s.ScientificName
	}), nil
}

// All 全部物种，按分类排序
func (r *SpeciesRepository) All() ([]models.Species, error) {
	var species []models.Species
	err := r.db.Order("order_name ASC").Order("family ASC").Order("genus ASC").Order("scientific_name ASC").
		Find(&species).Error
	return species, err
}

// GetByScientificName 按学名查找
func (r *SpeciesRepository) GetByScientificName(name string) (*models.Species, error) {
	var s models.Species
	if err := r.db.Where("scientific_name = ?", name).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

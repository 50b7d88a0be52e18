package repository

import (
	"database/sql"
	"time"

	"pestid/internal/models"

	"gorm.io/gorm"
)

// DetectionFilter 检测列表过滤条件
type DetectionFilter struct {
	Status   string
	PestType string
	UserID   uint
}

// MapPointRow 地图点位查询结果
type MapPointRow struct {
	ID             string
	PestType       string
	CurVeriStatus  string
	Confidence     float64
	Timestamp      time.Time
	ImageLatitude  *float64
	ImageLongitude *float64
	UserLatitude   *float64
	UserLongitude  *float64
	ImagePlaceName string
	UserPlaceName  string
}

// SpeciesSourceRow 物种聚合的原始行
type SpeciesSourceRow struct {
	DetectionID    string
	PestType       string
	ScientificName string
	Family         string
	Genus          string
	InputImageURL  string
	Timestamp      time.Time
}

// TimelineRow 图表统计的原始行
type TimelineRow struct {
	PestType  string
	Timestamp time.Time
}

// DetectionRepository 检测结果数据访问层
type DetectionRepository struct {
	db *gorm.DB
}

// NewDetectionRepository 创建检测结果Repository
func NewDetectionRepository(db *gorm.DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// Create 创建检测结果及其附加信息
func (r *DetectionRepository) Create(detection *models.Detection, metadata *models.DetectionMetadata) error {
	if err := r.db.Omit("Metadata").Create(detection).Error; err != nil {
		return err
	}
	if metadata == nil {
		return nil
	}
	metadata.DetectionID = detection.ID
	return r.db.Create(metadata).Error
}

// GetByID 根据ID获取检测结果（含附加信息）
func (r *DetectionRepository) GetByID(id string) (*models.Detection, error) {
	var detection models.Detection
	err := r.db.Preload("Metadata").Where("id = ?", id).First(&detection).Error
	if err != nil {
		return nil, err
	}
	return &detection, nil
}

// Exists 检查ID是否已存在
func (r *DetectionRepository) Exists(id string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Detection{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateStatus 更新当前审核状态
func (r *DetectionRepository) UpdateStatus(id, status string) error {
	result := r.db.Model(&models.Detection{}).Where("id = ?", id).Update("cur_veri_status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List 按时间倒序的游标分页
func (r *DetectionRepository) List(filter DetectionFilter, cursor *Cursor, limit int) (Page[models.Detection], error) {
	limit = NormalizeLimit(limit)

	query := r.filtered(filter).Preload("Metadata")
	query = applyCursor(query, "timestamp", "id", cursor)

	var detections []models.Detection
	if err := query.Limit(limit).Find(&detections).Error; err != nil {
		return Page[models.Detection]{}, err
	}

	return buildPage(detections, limit, func(d models.Detection) (time.Time, string) {
		return d.Timestamp, d.ID
	}), nil
}

// MapPoints 地图点位
func (r *DetectionRepository) MapPoints(status string) ([]MapPointRow, error) {
	var rows []MapPointRow
	query := r.db.Table("predictions AS p").
		Select(`p.id, p.pest_type, p.cur_veri_status, p.confidence, p.timestamp,
			m.image_latitude, m.image_longitude, m.user_latitude, m.user_longitude,
			m.image_place_name, m.user_place_name`).
		Joins("JOIN prediction_metadata AS m ON m.detection_id = p.id")
	if status != "" {
		query = query.Where("p.cur_veri_status = ?", status)
	}
	err := query.Order("p.timestamp DESC").Scan(&rows).Error
	return rows, err
}

// CountByStatus 按审核状态计数
func (r *DetectionRepository) CountByStatus() (map[string]int64, error) {
	var rows []struct {
		CurVeriStatus string
		Count         int64
	}
	err := r.db.Model(&models.Detection{}).
		Select("cur_veri_status, COUNT(*) AS count").
		Group("cur_veri_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.CurVeriStatus] = row.Count
	}
	return counts, nil
}

// AverageConfidence 平均置信度
func (r *DetectionRepository) AverageConfidence() (float64, error) {
	var avg sql.NullFloat64
	err := r.db.Model(&models.Detection{}).Select("AVG(confidence)").Row().Scan(&avg)
	if err != nil {
		return 0, err
	}
	return avg.Float64, nil
}

// DistinctPestTypes 出现过的害虫类型
func (r *DetectionRepository) DistinctPestTypes() ([]string, error) {
	var types []string
	err := r.db.Model(&models.Detection{}).
		Where("pest_type <> ''").
		Distinct().
		Order("pest_type ASC").
		Pluck("pest_type", &types).Error
	return types, err
}

// Timeline 指定时间之后的检测时间与类型
func (r *DetectionRepository) Timeline(since time.Time) ([]TimelineRow, error) {
	var rows []TimelineRow
	err := r.db.Model(&models.Detection{}).
		Select("pest_type, timestamp").
		Where("timestamp >= ?", since.UTC()).
		Order("timestamp ASC").
		Scan(&rows).Error
	return rows, err
}

// SpeciesSource 物种聚合所需的检测与学名
func (r *DetectionRepository) SpeciesSource() ([]SpeciesSourceRow, error) {
	var rows []SpeciesSourceRow
	err := r.db.Table("predictions AS p").
		Select(`p.id AS detection_id, p.pest_type, p.input_image_url, p.timestamp,
			m.scientific_name, m.family, m.genus`).
		Joins("LEFT JOIN prediction_metadata AS m ON m.detection_id = p.id").
		Where("p.cur_veri_status <> ?", models.StatusNotPest).
		Scan(&rows).Error
	return rows, err
}

func (r *DetectionRepository) filtered(filter DetectionFilter) *gorm.DB {
	query := r.db.Model(&models.Detection{})
	if filter.Status != "" {
		query = query.Where("cur_veri_status = ?", filter.Status)
	}
	if filter.PestType != "" {
		query = query.Where("pest_type = ?", filter.PestType)
	}
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	return query
}

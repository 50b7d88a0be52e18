package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"pestid/internal/dto"
	"pestid/internal/models"
	"pestid/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 图表统计天数
const (
	DefaultChartDays = 30
	MaxChartDays     = 365
)

// recentHistoryLimit 详情页附带的审核日志条数
const recentHistoryLimit = 10

// DetectionDetail 检测详情
type DetectionDetail struct {
	Detection     *models.Detection            `json:"detection"`
	Verification  *models.Verification         `json:"verification"`
	RecentHistory []models.VerificationHistory `json:"recentHistory"`
	Owner         *dto.OwnerInfo               `json:"owner,omitempty"`
}

// DetectionService 检测结果读写
type DetectionService struct {
	db               *gorm.DB
	detectionRepo    *repository.DetectionRepository
	verificationRepo *repository.VerificationRepository
	userCache        *UserCache
	logger           *logrus.Logger
}

// NewDetectionService 创建检测服务
func NewDetectionService(db *gorm.DB, userCache *UserCache, logger *logrus.Logger) *DetectionService {
	return &DetectionService{
		db:               db,
		detectionRepo:    repository.NewDetectionRepository(db),
		verificationRepo: repository.NewVerificationRepository(db),
		userCache:        userCache,
		logger:           logger,
	}
}

// Create 写入检测及附加信息，两者在同一事务中
func (s *DetectionService) Create(ctx context.Context, req *dto.CreateDetectionRequest) (*models.Detection, error) {
	detection, metadata, err := newDetectionRecord(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertDetection(repository.NewDetectionRepository(tx), detection, metadata)
	})
	if errors.Is(err, ErrDetectionExists) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("保存检测结果失败: %w", err)
	}

	detection.Metadata = metadata
	return detection, nil
}

// CreateBatch 现场设备批量上报，全部成功或全部回滚
func (s *DetectionService) CreateBatch(ctx context.Context, reqs []dto.CreateDetectionRequest) ([]string, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: 上报列表为空", ErrInvalidInput)
	}

	ids := make([]string, 0, len(reqs))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewDetectionRepository(tx)
		for i := range reqs {
			detection, metadata, err := newDetectionRecord(&reqs[i])
			if err != nil {
				return fmt.Errorf("%w: 第 %d 条: %v", ErrInvalidInput, i+1, err)
			}
			if err := insertDetection(repo, detection, metadata); err != nil {
				return fmt.Errorf("保存第 %d 条失败: %w", i+1, err)
			}
			ids = append(ids, detection.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("count", len(ids)).Info("批量上报检测结果")
	return ids, nil
}

// List 游标分页
func (s *DetectionService) List(query *dto.DetectionListQuery) (repository.Page[models.Detection], error) {
	cursor, err := repository.DecodeCursor(query.Cursor)
	if err != nil {
		return repository.Page[models.Detection]{}, err
	}

	filter := repository.DetectionFilter{
		Status:   query.Status,
		PestType: query.PestType,
		UserID:   query.UserID,
	}
	page, err := s.detectionRepo.List(filter, cursor, query.Limit)
	if err != nil {
		return page, fmt.Errorf("查询检测列表失败: %w", err)
	}
	return page, nil
}

// MapPoints 地图点位，优先使用图片坐标，其次上传者坐标，都没有则跳过
func (s *DetectionService) MapPoints(status string) ([]dto.MapPoint, error) {
	rows, err := s.detectionRepo.MapPoints(status)
	if err != nil {
		return nil, fmt.Errorf("查询地图点位失败: %w", err)
	}

	points := make([]dto.MapPoint, 0, len(rows))
	for _, row := range rows {
		point := dto.MapPoint{
			ID:         row.ID,
			PestType:   row.PestType,
			Status:     row.CurVeriStatus,
			Confidence: row.Confidence,
			Timestamp:  row.Timestamp,
		}
		switch {
		case row.ImageLatitude != nil && row.ImageLongitude != nil:
			point.Lat, point.Lng = *row.ImageLatitude, *row.ImageLongitude
			point.PlaceName = row.ImagePlaceName
		case row.UserLatitude != nil && row.UserLongitude != nil:
			point.Lat, point.Lng = *row.UserLatitude, *row.UserLongitude
			point.PlaceName = row.UserPlaceName
		default:
			continue
		}
		points = append(points, point)
	}
	return points, nil
}

// Chart 最近 days 天的每日数量与害虫类型分布，缺失的日期补 0
func (s *DetectionService) Chart(days int, now time.Time) (*dto.ChartResponse, error) {
	if days <= 0 {
		days = DefaultChartDays
	}
	if days > MaxChartDays {
		days = MaxChartDays
	}

	today := now.UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(days - 1))

	rows, err := s.detectionRepo.Timeline(since)
	if err != nil {
		return nil, fmt.Errorf("查询图表数据失败: %w", err)
	}

	daily := make([]dto.DailyCount, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		date := since.AddDate(0, 0, i).Format("2006-01-02")
		daily[i] = dto.DailyCount{Date: date}
		index[date] = i
	}

	byType := make(map[string]int64)
	for _, row := range rows {
		if i, ok := index[row.Timestamp.UTC().Format("2006-01-02")]; ok {
			daily[i].Count++
		}
		pestType := row.PestType
		if pestType == "" {
			pestType = "unknown"
		}
		byType[pestType]++
	}

	pestTypes := make([]dto.PestTypeCount, 0, len(byType))
	for pestType, count := range byType {
		pestTypes = append(pestTypes, dto.PestTypeCount{PestType: pestType, Count: count})
	}
	sort.Slice(pestTypes, func(i, j int) bool {
		if pestTypes[i].Count != pestTypes[j].Count {
			return pestTypes[i].Count > pestTypes[j].Count
		}
		return pestTypes[i].PestType < pestTypes[j].PestType
	})

	return &dto.ChartResponse{Days: days, Daily: daily, PestTypes: pestTypes}, nil
}

// Stats 各状态数量与占比
func (s *DetectionService) Stats() (*dto.StatsResponse, error) {
	counts, err := s.detectionRepo.CountByStatus()
	if err != nil {
		return nil, fmt.Errorf("统计检测状态失败: %w", err)
	}
	avg, err := s.detectionRepo.AverageConfidence()
	if err != nil {
		return nil, fmt.Errorf("统计平均置信度失败: %w", err)
	}
	pestTypes, err := s.detectionRepo.DistinctPestTypes()
	if err != nil {
		return nil, fmt.Errorf("统计害虫类型失败: %w", err)
	}

	return buildStats(counts, avg, pestTypes), nil
}

func buildStats(counts map[string]int64, avg float64, pestTypes []string) *dto.StatsResponse {
	var total int64
	for _, c := range counts {
		total += c
	}

	resp := &dto.StatsResponse{
		Total:             total,
		Counts:            make(map[string]int64, len(models.DetectionStatuses)),
		Percentages:       make(map[string]float64, len(models.DetectionStatuses)),
		AverageConfidence: math.Round(avg*1000) / 1000,
		PestTypes:         pestTypes,
		PestTypeCount:     len(pestTypes),
	}
	if resp.PestTypes == nil {
		resp.PestTypes = []string{}
	}
	for _, status := range models.DetectionStatuses {
		resp.Counts[status] = counts[status]
		if total > 0 {
			resp.Percentages[status] = math.Round(float64(counts[status])*1000/float64(total)) / 10
		} else {
			resp.Percentages[status] = 0
		}
	}
	return resp
}

// Detail 检测详情，附带审核结论、最近的审核日志和上传者名称
func (s *DetectionService) Detail(ctx context.Context, id string) (*DetectionDetail, error) {
	detection, err := s.detectionRepo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDetectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询检测失败: %w", err)
	}

	verification, err := s.verificationRepo.FindByDetectionID(id)
	if err != nil {
		return nil, fmt.Errorf("查询审核记录失败: %w", err)
	}

	history, err := s.verificationRepo.ListHistory(id, nil, recentHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("查询审核日志失败: %w", err)
	}

	detail := &DetectionDetail{
		Detection:     detection,
		Verification:  verification,
		RecentHistory: history.Items,
	}
	if detection.UserID != 0 {
		detail.Owner = &dto.OwnerInfo{
			ID:   detection.UserID,
			Name: s.userCache.DisplayName(ctx, detection.UserID),
		}
	}
	return detail, nil
}

// insertDetection 调用方指定的ID重复时返回 ErrDetectionExists
func insertDetection(repo *repository.DetectionRepository, detection *models.Detection, metadata *models.DetectionMetadata) error {
	exists, err := repo.Exists(detection.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDetectionExists, detection.ID)
	}
	return repo.Create(detection, metadata)
}

// newDetectionRecord 由上报请求构造记录
func newDetectionRecord(req *dto.CreateDetectionRequest) (*models.Detection, *models.DetectionMetadata, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	timestamp := time.Now().UTC()
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		timestamp = req.Timestamp.UTC()
	}
	confidence := req.Confidence
	if confidence > 1 {
		confidence /= 100
	}

	detection := &models.Detection{
		ID:                 id,
		Confidence:         confidence,
		CurVeriStatus:      models.StatusPending,
		InputImageURL:      req.InputImageURL,
		PredictionImageURL: req.PredictionImageURL,
		PestType:           req.PestType,
		Timestamp:          timestamp,
		UserID:             req.UserID,
		Provider:           req.Provider,
		Model:              req.Model,
	}

	candidates, err := jsonColumn(req.CandidateSpecies)
	if err != nil {
		return nil, nil, err
	}
	box, err := jsonColumn(req.Box)
	if err != nil {
		return nil, nil, err
	}

	metadata := &models.DetectionMetadata{
		DetectionID:      id,
		ImageLatitude:    req.ImageLatitude,
		ImageLongitude:   req.ImageLongitude,
		UserLatitude:     req.UserLatitude,
		UserLongitude:    req.UserLongitude,
		ImagePlaceName:   req.ImagePlaceName,
		UserPlaceName:    req.UserPlaceName,
		ScientificName:   req.ScientificName,
		Family:           req.Family,
		Genus:            req.Genus,
		FunFacts:         req.FunFacts,
		Reasoning:        req.Reasoning,
		CandidateSpecies: candidates,
		Box:              box,
	}
	return detection, metadata, nil
}

// jsonColumn 序列化为 JSON 列，空值存 NULL
func jsonColumn(v interface{}) (datatypes.JSON, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []string:
		if len(val) == 0 {
			return nil, nil
		}
	case []float64:
		if len(val) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	return datatypes.JSON(data), nil
}

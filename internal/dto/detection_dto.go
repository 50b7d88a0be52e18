package dto

import "time"

// CreateDetectionRequest 现场设备或识别代理上报的检测结果
type CreateDetectionRequest struct {
	ID                 string     `json:"id" binding:"omitempty,max=36"`
	Confidence         float64    `json:"confidence" binding:"min=0,max=100"`
	PestType           string     `json:"pestType" binding:"required,max=200"`
	InputImageURL      string     `json:"inputImageUrl" binding:"omitempty,max=1024"`
	PredictionImageURL string     `json:"predictionImageUrl" binding:"omitempty,max=1024"`
	Timestamp          *time.Time `json:"timestamp"`
	UserID             uint       `json:"userId"`
	Provider           string     `json:"provider" binding:"max=50"`
	Model              string     `json:"model" binding:"max=200"`

	ImageLatitude    *float64  `json:"imageLatitude" binding:"omitempty,latitude"`
	ImageLongitude   *float64  `json:"imageLongitude" binding:"omitempty,longitude"`
	UserLatitude     *float64  `json:"userLatitude" binding:"omitempty,latitude"`
	UserLongitude    *float64  `json:"userLongitude" binding:"omitempty,longitude"`
	ImagePlaceName   string    `json:"imagePlaceName"`
	UserPlaceName    string    `json:"userPlaceName"`
	ScientificName   string    `json:"scientificName"`
	Family           string    `json:"family"`
	Genus            string    `json:"genus"`
	FunFacts         string    `json:"funFacts"`
	Reasoning        string    `json:"reasoning"`
	CandidateSpecies []string  `json:"candidateSpecies"`
	Box              []float64 `json:"box" binding:"omitempty,len=4"`
}

// DetectionListQuery 检测列表查询参数
type DetectionListQuery struct {
	CursorQuery
	Status   string `form:"status" binding:"omitempty,oneof=pending verified rejected 'not pest'"`
	PestType string `form:"pestType"`
	UserID   uint   `form:"userId"`
}

// MapPoint 地图点位
type MapPoint struct {
	ID         string    `json:"id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	PestType   string    `json:"pestType"`
	Status     string    `json:"status"`
	Confidence float64   `json:"confidence"`
	PlaceName  string    `json:"placeName,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// DailyCount 每日检测数
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// PestTypeCount 各害虫类型检测数
type PestTypeCount struct {
	PestType string `json:"pestType"`
	Count    int64  `json:"count"`
}

// ChartResponse 图表数据
type ChartResponse struct {
	Days      int             `json:"days"`
	Daily     []DailyCount    `json:"daily"`
	PestTypes []PestTypeCount `json:"pestTypes"`
}

// StatsResponse 检测统计
type StatsResponse struct {
	Total             int64              `json:"total"`
	Counts            map[string]int64   `json:"counts"`
	Percentages       map[string]float64 `json:"percentages"`
	AverageConfidence float64            `json:"averageConfidence"`
	PestTypes         []string           `json:"pestTypes"`
	PestTypeCount     int                `json:"pestTypeCount"`
}

// OwnerInfo 检测上传者
type OwnerInfo struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// 检测状态
const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusRejected = "rejected"
	StatusNotPest  = "not pest"
)

// DetectionStatuses 全部检测状态
var DetectionStatuses = []string{StatusPending, StatusVerified, StatusRejected, StatusNotPest}

// Detection 识别结果，一条记录对应一次物种识别
type Detection struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id"`
	Confidence         float64   `gorm:"default:0" json:"confidence"`
	CurVeriStatus      string    `gorm:"size:20;default:'pending';index" json:"curVeriStatus"`
	InputImageURL      string    `gorm:"size:1024" json:"inputImageUrl"`
	PredictionImageURL string    `gorm:"size:1024" json:"predictionImageUrl"`
	PestType           string    `gorm:"size:200;index" json:"pestType"`
	Timestamp          time.Time `gorm:"index;not null" json:"timestamp"`
	UserID             uint      `gorm:"index" json:"userId"`
	Provider           string    `gorm:"size:50" json:"provider"`
	Model              string    `gorm:"size:200" json:"model"`

	// 关联
	Metadata *DetectionMetadata `gorm:"foreignKey:DetectionID;references:ID" json:"metadata,omitempty"`
}

// TableName 指定表名
func (Detection) TableName() string {
	return "predictions"
}

// DetectionMetadata 识别结果的附加信息，与 Detection 一对一，创建后不再修改
type DetectionMetadata struct {
	ID               uint           `gorm:"primarykey" json:"-"`
	DetectionID      string         `gorm:"uniqueIndex;size:36;not null" json:"detectionId"`
	ImageLatitude    *float64       `json:"imageLatitude,omitempty"`
	ImageLongitude   *float64       `json:"imageLongitude,omitempty"`
	UserLatitude     *float64       `json:"userLatitude,omitempty"`
	UserLongitude    *float64       `json:"userLongitude,omitempty"`
	ImagePlaceName   string         `gorm:"size:255" json:"imagePlaceName"`
	UserPlaceName    string         `gorm:"size:255" json:"userPlaceName"`
	ScientificName   string         `gorm:"size:255;index" json:"scientificName"`
	Family           string         `gorm:"size:100" json:"family"`
	Genus            string         `gorm:"size:100" json:"genus"`
	FunFacts         string         `gorm:"type:text" json:"funFacts"`
	Reasoning        string         `gorm:"type:text" json:"reasoning"`
	CandidateSpecies datatypes.JSON `json:"candidateSpecies,omitempty"`
	Box              datatypes.JSON `json:"box,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// TableName 指定表名
func (DetectionMetadata) TableName() string {
	return "prediction_metadata"
}

// HasImageLocation 是否带有图片坐标
func (m *DetectionMetadata) HasImageLocation() bool {
	return m != nil && m.ImageLatitude != nil && m.ImageLongitude != nil
}

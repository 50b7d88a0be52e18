package models

import (
	"time"
)

// Species 物种汇总数据，由批量聚合重建
type Species struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	ScientificName string    `gorm:"uniqueIndex;size:255;not null" json:"scientificName"`
	CommonName     string    `gorm:"size:255" json:"commonName"`
	Order          string    `gorm:"column:order_name;size:100;index" json:"order"`
	Family         string    `gorm:"size:100;index" json:"family"`
	Genus          string    `gorm:"size:100" json:"genus"`
	Rank           string    `gorm:"size:30" json:"rank"`
	GBIFKey        int64     `json:"gbifKey,omitempty"`
	InstanceCount  int64     `gorm:"default:0" json:"instanceCount"`
	ImageCount     int64     `gorm:"default:0" json:"imageCount"`
	LastSeen       time.Time `gorm:"index" json:"lastSeen"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Species) TableName() string {
	return "species"
}

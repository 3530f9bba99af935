package model

import (
	"time"

	"gorm.io/gorm"
)

type Product struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	//価格（最小通貨単位）
	Price int64 `gorm:"not null" json:"price"`

	Category string `gorm:"type:varchar(100);not null;index" json:"category"`

	// /uploads/xxx.jpg のような相対パス
	Image string `gorm:"type:varchar(512)" json:"image"`

	Rating float64 `gorm:"not null;default:0" json:"rating"`

	IsActive  bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

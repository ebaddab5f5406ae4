package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PackageModel struct {
	ID          string `gorm:"type:uuid;primary_key"`
	Name        string `gorm:"type:varchar(200);not null"`
	Description string
	PriceCents  int  `gorm:"not null;default:0"`
	Yaks        int  `gorm:"not null;default:0"`
	BonusYaks   int  `gorm:"not null;default:0"`
	Enabled     bool `gorm:"not null;default:true;index"`
	Position    int  `gorm:"not null;default:0;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (PackageModel) TableName() string {
	return "yak_packages"
}

func (p *PackageModel) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

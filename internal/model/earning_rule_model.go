package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EarningRuleModel struct {
	ID            string `gorm:"type:uuid;primary_key"`
	ActionKey     string `gorm:"type:varchar(100);uniqueIndex;not null"`
	ActionName    string `gorm:"type:varchar(200);not null"`
	Description   string
	Amount        int                    `gorm:"not null;default:0"`
	DailyCap      int                    `gorm:"not null;default:0"`
	MinTrustLevel int                    `gorm:"not null;default:1"`
	Enabled       bool                   `gorm:"not null;default:true"`
	Settings      map[string]interface{} `gorm:"type:jsonb;serializer:json"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (EarningRuleModel) TableName() string {
	return "yak_earning_rules"
}

func (r *EarningRuleModel) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

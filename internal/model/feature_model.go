package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FeatureModel struct {
	ID          string `gorm:"type:uuid;primary_key"`
	FeatureKey  string `gorm:"type:varchar(100);uniqueIndex;not null"`
	FeatureName string `gorm:"type:varchar(200);not null"`
	Description string
	Cost        int                    `gorm:"not null"`
	Category    string                 `gorm:"type:varchar(50);index"`
	Enabled     bool                   `gorm:"default:true;index"`
	Settings    map[string]interface{} `gorm:"type:jsonb;serializer:json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (FeatureModel) TableName() string {
	return "yak_features"
}

func (f *FeatureModel) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}

type FeatureUseModel struct {
	ID             string  `gorm:"type:uuid;primary_key"`
	UserID         string  `gorm:"type:uuid;not null;index"`
	FeatureID      string  `gorm:"type:uuid;not null;index"`
	TransactionID  string  `gorm:"type:uuid;not null"`
	RelatedPostID  *string `gorm:"type:uuid;index"`
	RelatedTopicID *string `gorm:"type:uuid;index"`
	ExpiresAt      *time.Time
	FeatureData    map[string]interface{} `gorm:"type:jsonb;serializer:json"`
	// ProcessedAt is write-once: null until expiry effects are removed.
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (FeatureUseModel) TableName() string {
	return "yak_feature_uses"
}

func (u *FeatureUseModel) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

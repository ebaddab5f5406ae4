package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// The platform owns users, posts and topics; these models cover only the
// columns the yaks core reads or writes (trust level, raw text, the
// custom-fields bag, topic pin state, and the cached yak_balance).

type UserModel struct {
	ID           string                 `gorm:"type:uuid;primary_key"`
	Username     string                 `gorm:"uniqueIndex;not null"`
	TrustLevel   int                    `gorm:"not null;default:0"`
	YakBalance   int                    `gorm:"not null;default:0"`
	FlairName    string                 `gorm:"type:varchar(100)"`
	FlairColor   string                 `gorm:"type:varchar(50)"`
	CustomFields map[string]interface{} `gorm:"type:jsonb;serializer:json"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string {
	return "users"
}

func (u *UserModel) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

type PostModel struct {
	ID           string                 `gorm:"type:uuid;primary_key"`
	TopicID      string                 `gorm:"type:uuid;index"`
	UserID       string                 `gorm:"type:uuid;index"`
	Raw          string                 `gorm:"type:text"`
	CustomFields map[string]interface{} `gorm:"type:jsonb;serializer:json"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (PostModel) TableName() string {
	return "posts"
}

func (p *PostModel) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

type TopicModel struct {
	ID             string `gorm:"type:uuid;primary_key"`
	UserID         string `gorm:"type:uuid;index"`
	Title          string
	PinnedUntil    *time.Time
	PinnedGlobally bool                   `gorm:"not null;default:false"`
	CustomFields   map[string]interface{} `gorm:"type:jsonb;serializer:json"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (TopicModel) TableName() string {
	return "topics"
}

func (t *TopicModel) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

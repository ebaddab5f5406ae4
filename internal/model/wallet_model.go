package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WalletModel struct {
	ID             string    `gorm:"type:uuid;primary_key"`
	UserID         string    `gorm:"type:uuid;uniqueIndex;not null"`
	Balance        int       `gorm:"not null;default:0"`
	LifetimeEarned int       `gorm:"not null;default:0"`
	LifetimeSpent  int       `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (WalletModel) TableName() string {
	return "yak_wallets"
}

func (w *WalletModel) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	return nil
}

type TransactionModel struct {
	ID             string `gorm:"type:uuid;primary_key"`
	UserID         string `gorm:"type:uuid;not null;index"`
	WalletID       string `gorm:"type:uuid;not null;index"`
	Amount         int    `gorm:"not null"`
	Type           string `gorm:"column:transaction_type;type:varchar(50);not null;index"`
	Source         string `gorm:"type:varchar(100);index"`
	Description    string
	Metadata       map[string]interface{} `gorm:"type:jsonb;serializer:json"`
	RelatedPostID  *string                `gorm:"type:uuid;index"`
	RelatedTopicID *string                `gorm:"type:uuid"`
	// RefundOfID links a refund to the debit it reverses; the unique index
	// is what makes double refunds impossible.
	RefundOfID *string   `gorm:"type:uuid;uniqueIndex"`
	CreatedAt  time.Time `gorm:"index"`
}

func (TransactionModel) TableName() string {
	return "yak_transactions"
}

func (t *TransactionModel) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

package persistent

import (
	"errors"
	"time"

	"yaks/internal/entity"
	"yaks/internal/model"

	"gorm.io/gorm"
)

// Target identifies what a purchased feature applies to. Both fields empty
// means the feature applies to the buyer themselves.
type Target struct {
	PostID  string
	TopicID string
}

type FeatureUseRepository interface {
	CreatePurchase(userID string, feature *entity.Feature, target Target, expiresAt *time.Time, featureData map[string]interface{}) (*entity.FeatureUse, *entity.Transaction, error)
	HasActiveUse(userID string, featureID string, target Target) (bool, error)
	GetActiveUse(userID, featureKey string) (*entity.FeatureUse, error)
	GetByID(id string) (*entity.FeatureUse, error)
	MarkProcessed(id string) (bool, error)
	ListExpiredUnprocessed(now time.Time, limit int) ([]*entity.FeatureUse, error)
}

type featureUseRepository struct {
	db *gorm.DB
}

func NewFeatureUseRepository(db *gorm.DB) FeatureUseRepository {
	return &featureUseRepository{db: db}
}

// CreatePurchase debits the wallet and records the feature use in one
// database transaction. The debit takes the wallet row lock first, so the
// duplicate-use check that follows cannot race another purchase by the
// same user.
func (r *featureUseRepository) CreatePurchase(userID string, feature *entity.Feature, target Target, expiresAt *time.Time, featureData map[string]interface{}) (*entity.FeatureUse, *entity.Transaction, error) {
	var (
		use model.FeatureUseModel
		txn *model.TransactionModel
	)
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = debitWallet(tx, userID, feature.Cost, feature.Key, "Purchased: "+feature.Name, TxParams{
			RelatedPostID:  target.PostID,
			RelatedTopicID: target.TopicID,
		})
		if err != nil {
			return err
		}

		active, err := hasActiveUse(tx, userID, feature.ID, target, time.Now())
		if err != nil {
			return err
		}
		if active {
			return entity.ErrAlreadyApplied
		}

		use = model.FeatureUseModel{
			UserID:         userID,
			FeatureID:      feature.ID,
			TransactionID:  txn.ID,
			RelatedPostID:  strPtr(target.PostID),
			RelatedTopicID: strPtr(target.TopicID),
			ExpiresAt:      expiresAt,
			FeatureData:    featureData,
		}
		return tx.Create(&use).Error
	})
	if err != nil {
		return nil, nil, err
	}

	row := featureUseRow{FeatureUseModel: use, FeatureKey: feature.Key}
	return toFeatureUseEntity(&row), toTransactionEntity(txn), nil
}

func (r *featureUseRepository) HasActiveUse(userID string, featureID string, target Target) (bool, error) {
	return hasActiveUse(r.db, userID, featureID, target, time.Now())
}

// GetActiveUse returns the user's live use of the given feature key,
// regardless of target. Cosmetic features like flair are looked up this way.
func (r *featureUseRepository) GetActiveUse(userID, featureKey string) (*entity.FeatureUse, error) {
	var row featureUseRow
	err := r.db.Model(&model.FeatureUseModel{}).
		Select("yak_feature_uses.*, yak_features.feature_key").
		Joins("JOIN yak_features ON yak_features.id = yak_feature_uses.feature_id").
		Where("yak_feature_uses.user_id = ?", userID).
		Where("yak_features.feature_key = ?", featureKey).
		Where("yak_feature_uses.processed_at IS NULL").
		Where("yak_feature_uses.expires_at IS NULL OR yak_feature_uses.expires_at > ?", time.Now()).
		Order("yak_feature_uses.created_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toFeatureUseEntity(&row), nil
}

func (r *featureUseRepository) GetByID(id string) (*entity.FeatureUse, error) {
	var row featureUseRow
	err := r.db.Model(&model.FeatureUseModel{}).
		Select("yak_feature_uses.*, yak_features.feature_key").
		Joins("JOIN yak_features ON yak_features.id = yak_feature_uses.feature_id").
		Where("yak_feature_uses.id = ?", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrFeatureNotFound
		}
		return nil, err
	}
	return toFeatureUseEntity(&row), nil
}

// MarkProcessed stamps processed_at exactly once. It reports false when
// another worker already claimed the row.
func (r *featureUseRepository) MarkProcessed(id string) (bool, error) {
	res := r.db.Model(&model.FeatureUseModel{}).
		Where("id = ? AND processed_at IS NULL", id).
		Update("processed_at", time.Now())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *featureUseRepository) ListExpiredUnprocessed(now time.Time, limit int) ([]*entity.FeatureUse, error) {
	query := r.db.Model(&model.FeatureUseModel{}).
		Select("yak_feature_uses.*, yak_features.feature_key").
		Joins("JOIN yak_features ON yak_features.id = yak_feature_uses.feature_id").
		Where("yak_feature_uses.processed_at IS NULL").
		Where("yak_feature_uses.expires_at IS NOT NULL AND yak_feature_uses.expires_at <= ?", now).
		Order("yak_feature_uses.expires_at")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []featureUseRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	uses := make([]*entity.FeatureUse, len(rows))
	for i := range rows {
		uses[i] = toFeatureUseEntity(&rows[i])
	}
	return uses, nil
}

func hasActiveUse(tx *gorm.DB, userID, featureID string, target Target, now time.Time) (bool, error) {
	query := tx.Model(&model.FeatureUseModel{}).
		Where("user_id = ?", userID).
		Where("feature_id = ?", featureID).
		Where("processed_at IS NULL").
		Where("expires_at IS NULL OR expires_at > ?", now)
	if target.PostID != "" {
		query = query.Where("related_post_id = ?", target.PostID)
	}
	if target.TopicID != "" {
		query = query.Where("related_topic_id = ?", target.TopicID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

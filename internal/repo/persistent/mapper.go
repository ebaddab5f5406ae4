package persistent

import (
	"yaks/internal/entity"
	"yaks/internal/model"
)

func toWalletEntity(m *model.WalletModel) *entity.Wallet {
	if m == nil {
		return nil
	}

	return &entity.Wallet{
		ID:             m.ID,
		UserID:         m.UserID,
		Balance:        m.Balance,
		LifetimeEarned: m.LifetimeEarned,
		LifetimeSpent:  m.LifetimeSpent,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toTransactionEntity(m *model.TransactionModel) *entity.Transaction {
	if m == nil {
		return nil
	}

	return &entity.Transaction{
		ID:             m.ID,
		UserID:         m.UserID,
		WalletID:       m.WalletID,
		Amount:         m.Amount,
		Type:           entity.TransactionType(m.Type),
		Source:         m.Source,
		Description:    m.Description,
		Metadata:       m.Metadata,
		RelatedPostID:  strValue(m.RelatedPostID),
		RelatedTopicID: strValue(m.RelatedTopicID),
		RefundOfID:     strValue(m.RefundOfID),
		CreatedAt:      m.CreatedAt,
	}
}

func toFeatureEntity(m *model.FeatureModel) *entity.Feature {
	if m == nil {
		return nil
	}

	return &entity.Feature{
		ID:          m.ID,
		Key:         m.FeatureKey,
		Name:        m.FeatureName,
		Description: m.Description,
		Cost:        m.Cost,
		Category:    entity.FeatureCategory(m.Category),
		Enabled:     m.Enabled,
		Settings:    m.Settings,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toFeatureModel(e *entity.Feature) *model.FeatureModel {
	if e == nil {
		return nil
	}

	return &model.FeatureModel{
		ID:          e.ID,
		FeatureKey:  e.Key,
		FeatureName: e.Name,
		Description: e.Description,
		Cost:        e.Cost,
		Category:    string(e.Category),
		Enabled:     e.Enabled,
		Settings:    e.Settings,
	}
}

// featureUseRow carries the joined feature_key alongside the use columns.
type featureUseRow struct {
	model.FeatureUseModel
	FeatureKey string
}

func toFeatureUseEntity(r *featureUseRow) *entity.FeatureUse {
	if r == nil {
		return nil
	}

	return &entity.FeatureUse{
		ID:             r.ID,
		UserID:         r.UserID,
		FeatureID:      r.FeatureID,
		FeatureKey:     r.FeatureKey,
		TransactionID:  r.TransactionID,
		RelatedPostID:  strValue(r.RelatedPostID),
		RelatedTopicID: strValue(r.RelatedTopicID),
		ExpiresAt:      r.ExpiresAt,
		FeatureData:    r.FeatureData,
		ProcessedAt:    r.ProcessedAt,
		CreatedAt:      r.CreatedAt,
	}
}

func toEarningRuleEntity(m *model.EarningRuleModel) *entity.EarningRule {
	if m == nil {
		return nil
	}

	return &entity.EarningRule{
		ID:            m.ID,
		ActionKey:     m.ActionKey,
		ActionName:    m.ActionName,
		Description:   m.Description,
		Amount:        m.Amount,
		DailyCap:      m.DailyCap,
		MinTrustLevel: m.MinTrustLevel,
		Enabled:       m.Enabled,
		Settings:      m.Settings,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toPackageEntity(m *model.PackageModel) *entity.Package {
	if m == nil {
		return nil
	}

	return &entity.Package{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		PriceCents:  m.PriceCents,
		Yaks:        m.Yaks,
		BonusYaks:   m.BonusYaks,
		Enabled:     m.Enabled,
		Position:    m.Position,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toPostEntity(m *model.PostModel) *entity.Post {
	if m == nil {
		return nil
	}

	return &entity.Post{
		ID:           m.ID,
		TopicID:      m.TopicID,
		UserID:       m.UserID,
		Raw:          m.Raw,
		CustomFields: m.CustomFields,
		CreatedAt:    m.CreatedAt,
	}
}

func toTopicEntity(m *model.TopicModel) *entity.Topic {
	if m == nil {
		return nil
	}

	return &entity.Topic{
		ID:             m.ID,
		UserID:         m.UserID,
		Title:          m.Title,
		PinnedUntil:    m.PinnedUntil,
		PinnedGlobally: m.PinnedGlobally,
		CustomFields:   m.CustomFields,
		CreatedAt:      m.CreatedAt,
	}
}

func toUserEntity(m *model.UserModel) *entity.User {
	if m == nil {
		return nil
	}

	return &entity.User{
		ID:           m.ID,
		Username:     m.Username,
		TrustLevel:   m.TrustLevel,
		YakBalance:   m.YakBalance,
		FlairName:    m.FlairName,
		FlairColor:   m.FlairColor,
		CustomFields: m.CustomFields,
		CreatedAt:    m.CreatedAt,
	}
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

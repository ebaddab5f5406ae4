package persistent

import (
	"errors"
	"fmt"

	"yaks/internal/entity"
	"yaks/internal/model"

	"gorm.io/gorm"
)

type EarningRuleRepository interface {
	GetEnabled(actionKey string) (*entity.EarningRule, error)
	GetByKey(actionKey string) (*entity.EarningRule, error)
	List() ([]*entity.EarningRule, error)
	Create(rule *entity.EarningRule) (*entity.EarningRule, error)
	Update(rule *entity.EarningRule) (*entity.EarningRule, error)
}

type earningRuleRepository struct {
	db *gorm.DB
}

func NewEarningRuleRepository(db *gorm.DB) EarningRuleRepository {
	return &earningRuleRepository{db: db}
}

func (r *earningRuleRepository) GetEnabled(actionKey string) (*entity.EarningRule, error) {
	var m model.EarningRuleModel
	err := r.db.Where("action_key = ? AND enabled = ?", actionKey, true).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrRuleNotFound
		}
		return nil, err
	}
	return toEarningRuleEntity(&m), nil
}

func (r *earningRuleRepository) GetByKey(actionKey string) (*entity.EarningRule, error) {
	var m model.EarningRuleModel
	err := r.db.Where("action_key = ?", actionKey).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrRuleNotFound
		}
		return nil, err
	}
	return toEarningRuleEntity(&m), nil
}

func (r *earningRuleRepository) List() ([]*entity.EarningRule, error) {
	var rows []model.EarningRuleModel
	if err := r.db.Order("action_key").Find(&rows).Error; err != nil {
		return nil, err
	}

	rules := make([]*entity.EarningRule, len(rows))
	for i := range rows {
		rules[i] = toEarningRuleEntity(&rows[i])
	}
	return rules, nil
}

func (r *earningRuleRepository) Create(rule *entity.EarningRule) (*entity.EarningRule, error) {
	m := model.EarningRuleModel{
		ID:            rule.ID,
		ActionKey:     rule.ActionKey,
		ActionName:    rule.ActionName,
		Description:   rule.Description,
		Amount:        rule.Amount,
		DailyCap:      rule.DailyCap,
		MinTrustLevel: rule.MinTrustLevel,
		Enabled:       rule.Enabled,
		Settings:      rule.Settings,
	}
	if err := r.db.Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("action key %q already exists", rule.ActionKey)
		}
		return nil, err
	}
	return toEarningRuleEntity(&m), nil
}

func (r *earningRuleRepository) Update(rule *entity.EarningRule) (*entity.EarningRule, error) {
	var m model.EarningRuleModel
	if err := r.db.Where("action_key = ?", rule.ActionKey).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrRuleNotFound
		}
		return nil, err
	}

	m.ActionName = rule.ActionName
	m.Description = rule.Description
	m.Amount = rule.Amount
	m.DailyCap = rule.DailyCap
	m.MinTrustLevel = rule.MinTrustLevel
	m.Enabled = rule.Enabled
	m.Settings = rule.Settings

	if err := r.db.Save(&m).Error; err != nil {
		return nil, err
	}
	return toEarningRuleEntity(&m), nil
}

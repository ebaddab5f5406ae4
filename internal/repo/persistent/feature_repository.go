package persistent

import (
	"errors"
	"fmt"

	"yaks/internal/entity"
	"yaks/internal/model"

	"gorm.io/gorm"
)

type FeatureRepository interface {
	FindEnabled(featureKey string) (*entity.Feature, error)
	GetByID(id string) (*entity.Feature, error)
	ListEnabled() ([]*entity.Feature, error)
	List() ([]*entity.Feature, error)
	Create(feature *entity.Feature) (*entity.Feature, error)
	Update(feature *entity.Feature) (*entity.Feature, error)
}

type featureRepository struct {
	db *gorm.DB
}

func NewFeatureRepository(db *gorm.DB) FeatureRepository {
	return &featureRepository{db: db}
}

func (r *featureRepository) FindEnabled(featureKey string) (*entity.Feature, error) {
	var m model.FeatureModel
	err := r.db.Where("feature_key = ? AND enabled = ?", featureKey, true).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrFeatureNotFound
		}
		return nil, err
	}
	return toFeatureEntity(&m), nil
}

func (r *featureRepository) GetByID(id string) (*entity.Feature, error) {
	var m model.FeatureModel
	err := r.db.First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrFeatureNotFound
		}
		return nil, err
	}
	return toFeatureEntity(&m), nil
}

func (r *featureRepository) ListEnabled() ([]*entity.Feature, error) {
	var rows []model.FeatureModel
	if err := r.db.Where("enabled = ?", true).Order("cost").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toFeatureEntities(rows), nil
}

func (r *featureRepository) List() ([]*entity.Feature, error) {
	var rows []model.FeatureModel
	if err := r.db.Order("category, cost").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toFeatureEntities(rows), nil
}

func (r *featureRepository) Create(feature *entity.Feature) (*entity.Feature, error) {
	m := toFeatureModel(feature)
	if err := r.db.Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("feature key %q already exists", feature.Key)
		}
		return nil, err
	}
	return toFeatureEntity(m), nil
}

func (r *featureRepository) Update(feature *entity.Feature) (*entity.Feature, error) {
	var m model.FeatureModel
	if err := r.db.First(&m, "id = ?", feature.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrFeatureNotFound
		}
		return nil, err
	}

	m.FeatureName = feature.Name
	m.Description = feature.Description
	m.Cost = feature.Cost
	m.Enabled = feature.Enabled
	m.Settings = feature.Settings

	if err := r.db.Save(&m).Error; err != nil {
		return nil, err
	}
	return toFeatureEntity(&m), nil
}

func toFeatureEntities(rows []model.FeatureModel) []*entity.Feature {
	features := make([]*entity.Feature, len(rows))
	for i := range rows {
		features[i] = toFeatureEntity(&rows[i])
	}
	return features
}

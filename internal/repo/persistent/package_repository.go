package persistent

import (
	"errors"

	"yaks/internal/entity"
	"yaks/internal/model"

	"gorm.io/gorm"
)

type PackageRepository interface {
	ListEnabled() ([]*entity.Package, error)
	List() ([]*entity.Package, error)
	GetByID(id string) (*entity.Package, error)
	Create(pkg *entity.Package) (*entity.Package, error)
	Update(pkg *entity.Package) (*entity.Package, error)
	Delete(id string) error
}

type packageRepository struct {
	db *gorm.DB
}

func NewPackageRepository(db *gorm.DB) PackageRepository {
	return &packageRepository{db: db}
}

func (r *packageRepository) ListEnabled() ([]*entity.Package, error) {
	var rows []model.PackageModel
	if err := r.db.Where("enabled = ?", true).Order("position").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toPackageEntities(rows), nil
}

func (r *packageRepository) List() ([]*entity.Package, error) {
	var rows []model.PackageModel
	if err := r.db.Order("position").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toPackageEntities(rows), nil
}

func (r *packageRepository) GetByID(id string) (*entity.Package, error) {
	var m model.PackageModel
	err := r.db.First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrPackageNotFound
		}
		return nil, err
	}
	return toPackageEntity(&m), nil
}

func (r *packageRepository) Create(pkg *entity.Package) (*entity.Package, error) {
	m := model.PackageModel{
		ID:          pkg.ID,
		Name:        pkg.Name,
		Description: pkg.Description,
		PriceCents:  pkg.PriceCents,
		Yaks:        pkg.Yaks,
		BonusYaks:   pkg.BonusYaks,
		Enabled:     pkg.Enabled,
		Position:    pkg.Position,
	}
	if err := r.db.Create(&m).Error; err != nil {
		return nil, err
	}
	return toPackageEntity(&m), nil
}

func (r *packageRepository) Update(pkg *entity.Package) (*entity.Package, error) {
	var m model.PackageModel
	if err := r.db.First(&m, "id = ?", pkg.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrPackageNotFound
		}
		return nil, err
	}

	m.Name = pkg.Name
	m.Description = pkg.Description
	m.PriceCents = pkg.PriceCents
	m.Yaks = pkg.Yaks
	m.BonusYaks = pkg.BonusYaks
	m.Enabled = pkg.Enabled
	m.Position = pkg.Position

	if err := r.db.Save(&m).Error; err != nil {
		return nil, err
	}
	return toPackageEntity(&m), nil
}

func (r *packageRepository) Delete(id string) error {
	res := r.db.Delete(&model.PackageModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return entity.ErrPackageNotFound
	}
	return nil
}

func toPackageEntities(rows []model.PackageModel) []*entity.Package {
	packages := make([]*entity.Package, len(rows))
	for i := range rows {
		packages[i] = toPackageEntity(&rows[i])
	}
	return packages
}

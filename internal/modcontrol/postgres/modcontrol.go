package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	mdm "github.com/rmaulana/iam-service/internal/core/datamodel/modcontrol"
	"github.com/rmaulana/iam-service/internal/modcontrol"
)

type ModuleRepository struct {
	db *gorm.DB
}

func NewModuleRepository(db *gorm.DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

func (r *ModuleRepository) List(ctx context.Context) ([]mdm.Module, error) {
	var modules []mdm.Module
	err := r.db.WithContext(ctx).Order("title ASC").Find(&modules).Error
	if err != nil {
		return nil, err
	}
	return modules, nil
}

func (r *ModuleRepository) GetByID(ctx context.Context, id int64) (*mdm.Module, error) {
	var module mdm.Module
	err := r.db.WithContext(ctx).First(&module, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, modcontrol.ErrNotFound
		}
		return nil, err
	}
	return &module, nil
}

func (r *ModuleRepository) GetByKey(ctx context.Context, moduleKey string) (*mdm.Module, error) {
	var module mdm.Module
	err := r.db.WithContext(ctx).Where("module_key = ?", moduleKey).First(&module).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, modcontrol.ErrNotFound
		}
		return nil, err
	}
	return &module, nil
}

func (r *ModuleRepository) GetByIDs(ctx context.Context, ids []int64) ([]mdm.Module, error) {
	var modules []mdm.Module
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("title ASC").Find(&modules).Error
	if err != nil {
		return nil, err
	}
	return modules, nil
}

func (r *ModuleRepository) EntitiesForModule(ctx context.Context, moduleID int64) ([]mdm.ModuleEntity, error) {
	var entities []mdm.ModuleEntity
	err := r.db.WithContext(ctx).Where("module_id = ?", moduleID).Order("name ASC").Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return entities, nil
}

package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-qms/internal/qms/entity"
	"gorm.io/gorm"
)

// MaterialInputRepository 投料记录仓库。投料记录是追溯账本，只增不改。
type MaterialInputRepository struct {
	db *gorm.DB
}

func NewMaterialInputRepository(db *gorm.DB) *MaterialInputRepository {
	return &MaterialInputRepository{db: db}
}

// Create 创建投料记录
func (r *MaterialInputRepository) Create(ctx context.Context, input *entity.MaterialInput) error {
	return r.db.WithContext(ctx).Create(input).Error
}

// FindByID 根据ID查找投料记录
func (r *MaterialInputRepository) FindByID(ctx context.Context, id string) (*entity.MaterialInput, error) {
	var input entity.MaterialInput
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&input).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &input, nil
}

// FindByWork 查询某配料作业的全部投料记录
func (r *MaterialInputRepository) FindByWork(ctx context.Context, workID string) ([]entity.MaterialInput, error) {
	var inputs []entity.MaterialInput
	err := r.db.WithContext(ctx).
		Where("blending_work_id = ?", workID).
		Order("input_time ASC").
		Find(&inputs).Error
	return inputs, err
}

// FindByWorkAndPowder 查询某作业某粉末的投料记录
func (r *MaterialInputRepository) FindByWorkAndPowder(ctx context.Context, workID, powderName string) (*entity.MaterialInput, error) {
	var input entity.MaterialInput
	err := r.db.WithContext(ctx).
		Where("blending_work_id = ? AND powder_name = ?", workID, powderName).
		First(&input).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &input, nil
}

// FindByLotElement 按原料LOT号正向追溯投料记录。
// material_lot 为逗号拼接，先用LIKE粗筛再逐项精确匹配，
// 避免"12"误中"112"这类子串误报。
func (r *MaterialInputRepository) FindByLotElement(ctx context.Context, lotNumber string) ([]entity.MaterialInput, error) {
	var candidates []entity.MaterialInput
	err := r.db.WithContext(ctx).
		Where("material_lot LIKE ?", "%"+lotNumber+"%").
		Order("input_time ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	inputs := make([]entity.MaterialInput, 0, len(candidates))
	for _, in := range candidates {
		if in.ContainsLot(lotNumber) {
			inputs = append(inputs, in)
		}
	}
	return inputs, nil
}

// FindByPowderAndLotElement 按 (粉末, LOT) 追溯，用于同LOT号多粉末时消歧
func (r *MaterialInputRepository) FindByPowderAndLotElement(ctx context.Context, powderName, lotNumber string) ([]entity.MaterialInput, error) {
	var candidates []entity.MaterialInput
	err := r.db.WithContext(ctx).
		Where("powder_name = ? AND material_lot LIKE ?", powderName, "%"+lotNumber+"%").
		Order("input_time ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	inputs := make([]entity.MaterialInput, 0, len(candidates))
	for _, in := range candidates {
		if in.ContainsLot(lotNumber) {
			inputs = append(inputs, in)
		}
	}
	return inputs, nil
}

// DeleteByWork 删除某作业的全部投料记录（仅供管理员撤销整个作业时级联）
func (r *MaterialInputRepository) DeleteByWork(ctx context.Context, workID string) error {
	return r.db.WithContext(ctx).
		Where("blending_work_id = ?", workID).
		Delete(&entity.MaterialInput{}).Error
}

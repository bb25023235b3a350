package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-qms/internal/qms/blending"
	"github.com/bitfantasy/nimo-qms/internal/qms/entity"
	"gorm.io/gorm"
)

// InspectionRepository 来料检验仓库，同时实现配料侧的 blending.Ledger
type InspectionRepository struct {
	db *gorm.DB
}

func NewInspectionRepository(db *gorm.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

// FindAll 查询检验记录列表
func (r *InspectionRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.InspectionRecord, int64, error) {
	var items []entity.InspectionRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.InspectionRecord{})

	if powder := filters["powder_name"]; powder != "" {
		query = query.Where("powder_name = ?", powder)
	}
	if lot := filters["lot_number"]; lot != "" {
		query = query.Where("lot_number = ?", lot)
	}
	if result := filters["final_result"]; result != "" {
		query = query.Where("final_result = ?", result)
	}
	if category := filters["category"]; category != "" {
		query = query.Where("category = ?", category)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("inspection_time DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找检验记录
func (r *InspectionRepository) FindByID(ctx context.Context, id string) (*entity.InspectionRecord, error) {
	var rec entity.InspectionRecord
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// FindByPowderAndLot 精确匹配 (粉末, LOT)，区分大小写。
// 实现 blending.Ledger，缺失时返回 blending.ErrLedgerNotFound。
func (r *InspectionRepository) FindByPowderAndLot(ctx context.Context, powderName, lotNumber string) (*entity.InspectionRecord, error) {
	var rec entity.InspectionRecord
	err := r.db.WithContext(ctx).
		Where("powder_name = ? AND lot_number = ?", powderName, lotNumber).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, blending.ErrLedgerNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// FindByLot 仅按LOT号查找，用于异种粉末提示
func (r *InspectionRepository) FindByLot(ctx context.Context, lotNumber string) (*entity.InspectionRecord, error) {
	var rec entity.InspectionRecord
	err := r.db.WithContext(ctx).
		Where("lot_number = ?", lotNumber).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, blending.ErrLedgerNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Create 创建检验记录
func (r *InspectionRepository) Create(ctx context.Context, rec *entity.InspectionRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// Update 更新检验记录
func (r *InspectionRepository) Update(ctx context.Context, rec *entity.InspectionRecord) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

// Delete 删除检验记录
func (r *InspectionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&entity.InspectionRecord{}, "id = ?", id).Error
}

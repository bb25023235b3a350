package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-qms/internal/qms/entity"
	"gorm.io/gorm"
)

// BlendingWorkRepository 配料作业仓库
type BlendingWorkRepository struct {
	db *gorm.DB
}

func NewBlendingWorkRepository(db *gorm.DB) *BlendingWorkRepository {
	return &BlendingWorkRepository{db: db}
}

// FindAll 查询配料作业列表
func (r *BlendingWorkRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.BlendingWork, int64, error) {
	var items []entity.BlendingWork
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.BlendingWork{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if product := filters["product_name"]; product != "" {
		query = query.Where("product_name = ?", product)
	}
	if batchLot := filters["batch_lot"]; batchLot != "" {
		query = query.Where("batch_lot = ?", batchLot)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找配料作业
func (r *BlendingWorkRepository) FindByID(ctx context.Context, id string) (*entity.BlendingWork, error) {
	var work entity.BlendingWork
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&work).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &work, nil
}

// FindByWorkOrder 根据工单号查找配料作业
func (r *BlendingWorkRepository) FindByWorkOrder(ctx context.Context, workOrder string) (*entity.BlendingWork, error) {
	var work entity.BlendingWork
	err := r.db.WithContext(ctx).
		Where("work_order = ?", workOrder).
		First(&work).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &work, nil
}

// FindByBatchLot 根据批次LOT查找配料作业
func (r *BlendingWorkRepository) FindByBatchLot(ctx context.Context, batchLot string) (*entity.BlendingWork, error) {
	var work entity.BlendingWork
	err := r.db.WithContext(ctx).
		Where("batch_lot = ?", batchLot).
		First(&work).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &work, nil
}

// Create 创建配料作业
func (r *BlendingWorkRepository) Create(ctx context.Context, work *entity.BlendingWork) error {
	return r.db.WithContext(ctx).Create(work).Error
}

// Update 更新配料作业
func (r *BlendingWorkRepository) Update(ctx context.Context, work *entity.BlendingWork) error {
	return r.db.WithContext(ctx).Save(work).Error
}

// Delete 删除配料作业及其投料记录
func (r *BlendingWorkRepository) Delete(ctx context.Context, id string) error {
	tx := r.db.WithContext(ctx).Begin()
	if err := tx.Where("blending_work_id = ?", id).Delete(&entity.MaterialInput{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Delete(&entity.BlendingWork{}, "id = ?", id).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// GenerateBatchLot 生成批次LOT BATCH-{yyyyMMdd}-{3位}
func (r *BlendingWorkRepository) GenerateBatchLot(ctx context.Context) (string, error) {
	day := time.Now().Format("20060102")
	prefix := fmt.Sprintf("BATCH-%s-", day)

	var maxLot string
	err := r.db.WithContext(ctx).
		Model(&entity.BlendingWork{}).
		Select("COALESCE(MAX(batch_lot), '')").
		Where("batch_lot LIKE ?", prefix+"%").
		Scan(&maxLot).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxLot != "" {
		fmt.Sscanf(maxLot, "BATCH-"+day+"-%03d", &seq)
	}
	seq++
	return fmt.Sprintf("BATCH-%s-%03d", day, seq), nil
}

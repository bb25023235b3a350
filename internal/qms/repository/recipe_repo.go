package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-qms/internal/qms/entity"
	"gorm.io/gorm"
)

// RecipeRepository 配方仓库
type RecipeRepository struct {
	db *gorm.DB
}

func NewRecipeRepository(db *gorm.DB) *RecipeRepository {
	return &RecipeRepository{db: db}
}

// ListProducts 列出所有有配方的产品名（去重）
func (r *RecipeRepository) ListProducts(ctx context.Context) ([]string, error) {
	var products []string
	err := r.db.WithContext(ctx).
		Model(&entity.RecipeLine{}).
		Where("is_active = ?", true).
		Distinct("product_name").
		Order("product_name ASC").
		Pluck("product_name", &products).Error
	return products, err
}

// FindByProduct 查询某产品的全部配方行
func (r *RecipeRepository) FindByProduct(ctx context.Context, productName string) ([]entity.RecipeLine, error) {
	var lines []entity.RecipeLine
	err := r.db.WithContext(ctx).
		Where("product_name = ? AND is_active = ?", productName, true).
		Order("is_main DESC, ratio DESC, powder_name ASC").
		Find(&lines).Error
	return lines, err
}

// FindByID 根据ID查找配方行
func (r *RecipeRepository) FindByID(ctx context.Context, id string) (*entity.RecipeLine, error) {
	var line entity.RecipeLine
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &line, nil
}

// Create 创建配方行
func (r *RecipeRepository) Create(ctx context.Context, line *entity.RecipeLine) error {
	return r.db.WithContext(ctx).Create(line).Error
}

// Update 更新配方行
func (r *RecipeRepository) Update(ctx context.Context, line *entity.RecipeLine) error {
	return r.db.WithContext(ctx).Save(line).Error
}

// ReplaceProduct 整产品替换配方：旧行置为失效，新行整组写入
func (r *RecipeRepository) ReplaceProduct(ctx context.Context, productName string, lines []entity.RecipeLine) error {
	tx := r.db.WithContext(ctx).Begin()
	if err := tx.Model(&entity.RecipeLine{}).
		Where("product_name = ?", productName).
		Update("is_active", false).Error; err != nil {
		tx.Rollback()
		return err
	}
	if len(lines) > 0 {
		if err := tx.Create(&lines).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit().Error
}

// Delete 删除配方行
func (r *RecipeRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&entity.RecipeLine{}, "id = ?", id).Error
}

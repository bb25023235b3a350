package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	Recipe        *RecipeRepository
	BlendingWork  *BlendingWorkRepository
	MaterialInput *MaterialInputRepository
	Inspection    *InspectionRepository
	ActivityLog   *ActivityLogRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Recipe:        NewRecipeRepository(db),
		BlendingWork:  NewBlendingWorkRepository(db),
		MaterialInput: NewMaterialInputRepository(db),
		Inspection:    NewInspectionRepository(db),
		ActivityLog:   NewActivityLogRepository(db),
	}
}

package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bitfantasy/nimo-qms/internal/qms/blending"
	"github.com/bitfantasy/nimo-qms/internal/qms/entity"
	"github.com/bitfantasy/nimo-qms/internal/qms/repository"
)

// RecipeService 配方服务
type RecipeService struct {
	repo *repository.RecipeRepository
}

func NewRecipeService(repo *repository.RecipeRepository) *RecipeService {
	return &RecipeService{repo: repo}
}

// ListProducts 列出所有有配方的产品
func (s *RecipeService) ListProducts(ctx context.Context) ([]string, error) {
	return s.repo.ListProducts(ctx)
}

// GetRecipe 获取某产品的配方行
func (s *RecipeService) GetRecipe(ctx context.Context, productName string) ([]entity.RecipeLine, error) {
	lines, err := s.repo.FindByProduct(ctx, productName)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, &blending.RecipeError{ProductName: productName, Reason: "产品无配方"}
	}
	return lines, nil
}

// RecipeLineRequest 配方行录入
type RecipeLineRequest struct {
	PowderName       string  `json:"powder_name" binding:"required"`
	Ratio            float64 `json:"ratio" binding:"required"`
	TolerancePercent float64 `json:"tolerance_percent"`
	IsMain           bool    `json:"is_main"`
}

// SaveRecipeRequest 整产品配方保存请求
type SaveRecipeRequest struct {
	ProductName string              `json:"product_name" binding:"required"`
	ProductCode string              `json:"product_code"`
	Lines       []RecipeLineRequest `json:"lines" binding:"required"`
}

// SaveRecipe 整产品保存配方。先整组校验，任何一行不合法都不落库。
func (s *RecipeService) SaveRecipe(ctx context.Context, userID string, req *SaveRecipeRequest) ([]entity.RecipeLine, error) {
	lines := make([]entity.RecipeLine, 0, len(req.Lines))
	seen := make(map[string]bool, len(req.Lines))
	for _, lr := range req.Lines {
		if seen[lr.PowderName] {
			return nil, &blending.RecipeError{
				ProductName: req.ProductName,
				Reason:      fmt.Sprintf("粉末 %s 重复", lr.PowderName),
			}
		}
		seen[lr.PowderName] = true

		tol := lr.TolerancePercent
		if tol <= 0 {
			tol = entity.DefaultTolerancePercent
		}
		lines = append(lines, entity.RecipeLine{
			ID:               uuid.New().String()[:32],
			ProductName:      req.ProductName,
			ProductCode:      req.ProductCode,
			PowderName:       lr.PowderName,
			Ratio:            lr.Ratio,
			TolerancePercent: tol,
			IsMain:           lr.IsMain,
			IsActive:         true,
			CreatedBy:        userID,
		})
	}

	if err := entity.ValidateRecipe(lines); err != nil {
		return nil, &blending.RecipeError{ProductName: req.ProductName, Reason: err.Error()}
	}

	if err := s.repo.ReplaceProduct(ctx, req.ProductName, lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// PreviewWorksheet 按配方和目标总重试算分配表，不落库。
// 操作工开工前用它确认各粉末目标重量与允差窗口。
func (s *RecipeService) PreviewWorksheet(ctx context.Context, productName string, targetTotal float64, mainWeights map[string]float64) (*blending.Worksheet, error) {
	lines, err := s.GetRecipe(ctx, productName)
	if err != nil {
		return nil, err
	}
	return blending.Allocate(lines, targetTotal, mainWeights)
}

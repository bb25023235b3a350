package entity

import (
	"fmt"
	"math"
	"time"
)

// RecipeLine 产品配方行：一个产品由多条粉末配比组成
type RecipeLine struct {
	ID               string    `json:"id" gorm:"primaryKey;size:32"`
	ProductName      string    `json:"product_name" gorm:"size:100;not null;index:idx_recipe_product"`
	ProductCode      string    `json:"product_code" gorm:"size:50"`
	PowderName       string    `json:"powder_name" gorm:"size:100;not null"`
	Ratio            float64   `json:"ratio" gorm:"type:decimal(5,2);not null"`            // 配比 0-100
	TolerancePercent float64   `json:"tolerance_percent" gorm:"type:decimal(5,2);default:5"` // 重量允差 ±%
	IsMain           bool      `json:"is_main" gorm:"default:false"` // 主粉：按整吨选重，其余按比例折算
	IsActive         bool      `json:"is_active" gorm:"default:true"`
	CreatedBy        string    `json:"created_by" gorm:"size:50"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (RecipeLine) TableName() string {
	return "qms_recipe_lines"
}

const (
	// DefaultTolerancePercent 配方行未指定允差时的默认值
	DefaultTolerancePercent = 5.0
	// RatioSumTolerance 配比之和允许偏离100的范围
	RatioSumTolerance = 0.1
	// MaxMainLines 一个产品最多允许的主粉行数
	MaxMainLines = 2
)

// ValidateRecipe 校验一个产品的配方行：配比之和≈100，主粉不超过上限
func ValidateRecipe(lines []RecipeLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("配方为空")
	}

	var ratioSum float64
	mains := 0
	for _, line := range lines {
		ratioSum += line.Ratio
		if line.IsMain {
			mains++
		}
	}

	if math.Abs(ratioSum-100.0) > RatioSumTolerance {
		return fmt.Errorf("配比之和为 %.2f%%，应为 100%%（允差 ±%.1f）", ratioSum, RatioSumTolerance)
	}
	if mains > MaxMainLines {
		return fmt.Errorf("主粉行数 %d 超过上限 %d", mains, MaxMainLines)
	}

	return nil
}

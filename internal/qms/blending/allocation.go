package blending

import (
	"math"

	"github.com/bitfantasy/nimo-qms/internal/qms/entity"
)

// Allocation 一条粉末行的目标重量与允差窗口（作业工单的一行）
type Allocation struct {
	PowderName       string  `json:"powder_name"`
	PowderCategory   string  `json:"powder_category"` // main/sub
	Ratio            float64 `json:"ratio"`
	Weight           float64 `json:"calculated_weight"` // 目标重量 kg
	MinWeight        float64 `json:"min_weight"`
	MaxWeight        float64 `json:"max_weight"`
	TolerancePercent float64 `json:"tolerance_percent"`
}

// Worksheet 重量分配结果：各行分配 + 反推出的整批实际目标总重
type Worksheet struct {
	Allocations       []Allocation `json:"allocations"`
	ActualTotalWeight float64      `json:"actual_total_weight"` // kg
}

// Allocate 把配方配比+目标总重换算成逐行目标重量与允差窗口。
//
// 主粉按整吨档位选重（mainWeights，kg），总重由主粉选重反推：
//   actual_total = sum(主粉选重) / (sum(主粉配比)/100)
// 反推总重与名义目标的偏离是刻意的（主粉只能选整吨）。
// 辅粉按反推总重乘配比折算。无主粉（或主粉配比和为0）时全部按
// targetTotal 纯比例拆分。计算全程保留浮点精度，只在展示/落库时舍入。
func Allocate(lines []entity.RecipeLine, targetTotal float64, mainWeights map[string]float64) (*Worksheet, error) {
	if err := entity.ValidateRecipe(lines); err != nil {
		product := ""
		if len(lines) > 0 {
			product = lines[0].ProductName
		}
		return nil, &RecipeError{ProductName: product, Reason: err.Error()}
	}

	var mains, subs []entity.RecipeLine
	var mainRatioSum float64
	for _, line := range lines {
		if line.IsMain {
			mains = append(mains, line)
			mainRatioSum += line.Ratio
		} else {
			subs = append(subs, line)
		}
	}

	ws := &Worksheet{Allocations: make([]Allocation, 0, len(lines))}

	// 主粉配比和为0时无法反推总重，退回纯比例拆分
	if len(mains) == 0 || mainRatioSum == 0 {
		ws.ActualTotalWeight = targetTotal
		for _, line := range lines {
			ws.Allocations = append(ws.Allocations, newAllocation(line, targetTotal*line.Ratio/100, entity.PowderCategorySub))
		}
		return ws, nil
	}

	var mainWeightSum float64
	mainAllocs := make([]Allocation, 0, len(mains))
	for _, line := range mains {
		var w float64
		if chosen, ok := mainWeights[line.PowderName]; ok && chosen > 0 {
			w = chosen
		} else if len(mains) == 1 {
			w = targetTotal
		} else {
			// 未逐一选重的多主粉按自身配比占主粉配比和的份额拆分
			w = targetTotal * line.Ratio / mainRatioSum
		}
		mainWeightSum += w
		mainAllocs = append(mainAllocs, newAllocation(line, w, entity.PowderCategoryMain))
	}
	ws.Allocations = append(ws.Allocations, mainAllocs...)

	ws.ActualTotalWeight = mainWeightSum / (mainRatioSum / 100)

	for _, line := range subs {
		ws.Allocations = append(ws.Allocations, newAllocation(line, ws.ActualTotalWeight*line.Ratio/100, entity.PowderCategorySub))
	}

	return ws, nil
}

func newAllocation(line entity.RecipeLine, weight float64, category string) Allocation {
	tol := line.TolerancePercent
	if tol <= 0 {
		tol = entity.DefaultTolerancePercent
	}
	return Allocation{
		PowderName:       line.PowderName,
		PowderCategory:   category,
		Ratio:            line.Ratio,
		Weight:           weight,
		MinWeight:        weight * (1 - tol/100),
		MaxWeight:        weight * (1 + tol/100),
		TolerancePercent: tol,
	}
}

// Find 按粉末名取分配行
func (w *Worksheet) Find(powderName string) (Allocation, bool) {
	for _, a := range w.Allocations {
		if a.PowderName == powderName {
			return a, true
		}
	}
	return Allocation{}, false
}

// Round2 展示/落库边界的两位小数舍入。允差比较必须用未舍入值。
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

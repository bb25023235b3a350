package blending

import (
	"math"

	"github.com/bitfantasy/nimo-qms/internal/qms/entity"
)

// 粉末行状态机：pending → measuring → judged_pass | judged_fail。
// judged_fail 与 measuring 可反复（增删LOT后重新判定），judged_pass 为锁定态。
const (
	LineStatePending    = "pending"
	LineStateMeasuring  = "measuring"
	LineStateJudgedPass = "judged_pass"
	LineStateJudgedFail = "judged_fail"
)

// Judgment 一次称量判定。判定是本行LOT集合的纯函数：
// 不依赖历史判定结果，增删LOT后重判得到的结论只取决于当前集合。
type Judgment struct {
	PowderName string  `json:"powder_name"`
	Sum        float64 `json:"actual_weight"`     // 各LOT实称之和 kg
	Deviation  float64 `json:"weight_deviation"`  // 相对目标的偏差%
	Passed     bool    `json:"passed"`
	Message    string  `json:"message,omitempty"`
}

// Judge 以闭区间 [MinWeight, MaxWeight] 判定实称合计。
// 恰好落在边界视为合格。只做重量判定，LOT准入由 Validator 先行把关。
func Judge(alloc Allocation, lots []LotEntry) Judgment {
	sum := SumWeights(lots)

	j := Judgment{
		PowderName: alloc.PowderName,
		Sum:        sum,
	}
	if alloc.Weight > 0 {
		j.Deviation = (sum - alloc.Weight) / alloc.Weight * 100
	}

	if sum >= alloc.MinWeight && sum <= alloc.MaxWeight {
		j.Passed = true
		return j
	}

	j.Passed = false
	j.Message = (&ToleranceError{
		PowderName: alloc.PowderName,
		Sum:        sum,
		MinWeight:  alloc.MinWeight,
		MaxWeight:  alloc.MaxWeight,
	}).Error()
	return j
}

// LineStatus 从已落库投料反推一行的状态：落库即 judged_pass，否则
// pending。measuring/judged_fail 只存在于单次判定请求内，不落库。
func LineStatus(powderName string, inputs []entity.MaterialInput) string {
	for _, in := range inputs {
		if in.PowderName == powderName {
			return LineStateJudgedPass
		}
	}
	return LineStatePending
}

// Progress 整批进度：合格行数 / 配方总行数
type Progress struct {
	PassedLines int     `json:"passed_lines"`
	TotalLines  int     `json:"total_lines"`
	Percent     float64 `json:"percent"`
}

// ComputeProgress 按已落库投料统计整批进度
func ComputeProgress(lines []entity.RecipeLine, inputs []entity.MaterialInput) Progress {
	done := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		done[in.PowderName] = true
	}

	p := Progress{TotalLines: len(lines)}
	for _, line := range lines {
		if done[line.PowderName] {
			p.PassedLines++
		}
	}
	if p.TotalLines > 0 {
		p.Percent = float64(p.PassedLines) / float64(p.TotalLines) * 100
	}
	return p
}

// TonBoxes 吨箱视图：完成量向下取整、需求量向上取整，
// 进度条永远不高估完成、不低估剩余。
func TonBoxes(completedKg, requiredKg float64) (done, total int) {
	done = int(math.Floor(completedKg / 1000))
	total = int(math.Ceil(requiredKg / 1000))
	if done > total {
		done = total
	}
	return done, total
}

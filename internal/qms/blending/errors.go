package blending

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrBatchAlreadyCompleted 已完成作业的投料变更请求直接拒绝，
	// 纠错只能由管理员整批删除重做
	ErrBatchAlreadyCompleted = errors.New("配料作业已完成，投料记录不可变更")

	// ErrAmbiguousLotLookup 同一LOT号被多种粉末使用，需调用方指明粉末名
	ErrAmbiguousLotLookup = errors.New("该LOT号被多种粉末使用，请指定粉末名")
)

// RecipeError 配方结构性错误：配比不为100、主粉无法解析等，作业无法开始
type RecipeError struct {
	ProductName string
	Reason      string
}

func (e *RecipeError) Error() string {
	return fmt.Sprintf("产品 %s 配方无效: %s", e.ProductName, e.Reason)
}

// LotRejectedError 原料LOT准入被拒：无检验记录、检验不合格或异种粉末
type LotRejectedError struct {
	PowderName    string
	LotNumber     string
	Reason        string
	WrongMaterial bool // 异种粉末：LOT实际粉末与投入粉末不一致
}

func (e *LotRejectedError) Error() string {
	return fmt.Sprintf("LOT %s 不允许投入 %s: %s", e.LotNumber, e.PowderName, e.Reason)
}

// ToleranceError 称量合计超出允差窗口，该行保持可编辑并可重新判定
type ToleranceError struct {
	PowderName string
	Sum        float64 // 各LOT实称之和 kg
	MinWeight  float64
	MaxWeight  float64
}

// Deviation 带符号的超窗量：负数为不足，正数为超出
func (e *ToleranceError) Deviation() float64 {
	if e.Sum < e.MinWeight {
		return e.Sum - e.MinWeight
	}
	if e.Sum > e.MaxWeight {
		return e.Sum - e.MaxWeight
	}
	return 0
}

func (e *ToleranceError) Error() string {
	d := e.Deviation()
	if d < 0 {
		return fmt.Sprintf("%s 实称合计 %.2fkg 低于下限 %.2fkg，不足 %.2fkg",
			e.PowderName, e.Sum, e.MinWeight, math.Abs(d))
	}
	return fmt.Sprintf("%s 实称合计 %.2fkg 高于上限 %.2fkg，超出 %.2fkg",
		e.PowderName, e.Sum, e.MaxWeight, d)
}

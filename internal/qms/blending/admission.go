package blending

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-qms/internal/qms/entity"
)

// Ledger 来料检验台账（只读）。配料侧只查询、永不回写，
// 保证准入判定始终可以从台账历史复现。
type Ledger interface {
	// FindByPowderAndLot 精确匹配 (粉末, LOT)，区分大小写
	FindByPowderAndLot(ctx context.Context, powderName, lotNumber string) (*entity.InspectionRecord, error)
	// FindByLot 仅按LOT号查找（用于异种粉末提示）
	FindByLot(ctx context.Context, lotNumber string) (*entity.InspectionRecord, error)
}

// ErrLedgerNotFound Ledger实现在记录缺失时返回的哨兵
var ErrLedgerNotFound = errors.New("inspection record not found")

// LotEntry 操作工录入的一个LOT及其实称重量
type LotEntry struct {
	LotNumber string  `json:"lot_number"`
	Weight    float64 `json:"weight"` // kg
}

// SumWeights 各LOT实称之和
func SumWeights(lots []LotEntry) float64 {
	var sum float64
	for _, l := range lots {
		sum += l.Weight
	}
	return sum
}

// Validator 原料LOT准入校验器
type Validator struct {
	ledger Ledger
}

func NewValidator(ledger Ledger) *Validator {
	return &Validator{ledger: ledger}
}

// AdmitLot 单LOT准入判定：有 (粉末, LOT) 的PASS检验结论才放行。
// 返回nil即准入；否则返回 *LotRejectedError 说明具体原因。
func (v *Validator) AdmitLot(ctx context.Context, powderName, lotNumber string) error {
	rec, err := v.ledger.FindByPowderAndLot(ctx, powderName, lotNumber)
	if err != nil {
		if !errors.Is(err, ErrLedgerNotFound) {
			return err
		}
		// 该粉末下没有此LOT：若LOT属于别的粉末，给出异种粉末提示
		if other, otherErr := v.ledger.FindByLot(ctx, lotNumber); otherErr == nil && other.PowderName != powderName {
			return &LotRejectedError{
				PowderName:    powderName,
				LotNumber:     lotNumber,
				Reason:        fmt.Sprintf("异种粉末：该LOT的实际粉末为 %s", other.PowderName),
				WrongMaterial: true,
			}
		}
		return &LotRejectedError{
			PowderName: powderName,
			LotNumber:  lotNumber,
			Reason:     "无来料检验记录",
		}
	}

	if rec.FinalResult != entity.InspectionResultPass {
		return &LotRejectedError{
			PowderName: powderName,
			LotNumber:  lotNumber,
			Reason:     "来料检验不合格",
		}
	}

	return nil
}

// AdmitAll 判定一组LOT。任一LOT被拒即整组不可判定——
// 单个不合格LOT会阻塞该粉末行的判定，与合计重量无关。
func (v *Validator) AdmitAll(ctx context.Context, powderName string, lots []LotEntry) error {
	if len(lots) == 0 {
		return &LotRejectedError{PowderName: powderName, Reason: "未录入任何LOT"}
	}
	for _, lot := range lots {
		if err := v.AdmitLot(ctx, powderName, lot.LotNumber); err != nil {
			return err
		}
	}
	return nil
}

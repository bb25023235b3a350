package blending

import (
	"context"
	"errors"
	"testing"

	"github.com/bitfantasy/nimo-qms/internal/qms/entity"
)

// fakeLedger 内存台账，键为 (powder, lot) 精确匹配
type fakeLedger struct {
	records []entity.InspectionRecord
}

func (f *fakeLedger) FindByPowderAndLot(_ context.Context, powderName, lotNumber string) (*entity.InspectionRecord, error) {
	for i := range f.records {
		if f.records[i].PowderName == powderName && f.records[i].LotNumber == lotNumber {
			return &f.records[i], nil
		}
	}
	return nil, ErrLedgerNotFound
}

func (f *fakeLedger) FindByLot(_ context.Context, lotNumber string) (*entity.InspectionRecord, error) {
	for i := range f.records {
		if f.records[i].LotNumber == lotNumber {
			return &f.records[i], nil
		}
	}
	return nil, ErrLedgerNotFound
}

func testLedger() *fakeLedger {
	return &fakeLedger{records: []entity.InspectionRecord{
		{PowderName: "纯铁粉", LotNumber: "A100", FinalResult: entity.InspectionResultPass},
		{PowderName: "纯铁粉", LotNumber: "A101", FinalResult: entity.InspectionResultPass},
		{PowderName: "纯铁粉", LotNumber: "A102", FinalResult: entity.InspectionResultFail},
		{PowderName: "铜粉", LotNumber: "C200", FinalResult: entity.InspectionResultPass},
	}}
}

func TestAdmitLotPass(t *testing.T) {
	v := NewValidator(testLedger())

	if err := v.AdmitLot(context.Background(), "纯铁粉", "A100"); err != nil {
		t.Fatalf("expected admission, got %v", err)
	}
}

func TestAdmitLotFailedInspection(t *testing.T) {
	v := NewValidator(testLedger())

	err := v.AdmitLot(context.Background(), "纯铁粉", "A102")
	if err == nil {
		t.Fatal("expected rejection for failed inspection")
	}
	var rej *LotRejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("expected *LotRejectedError, got %T", err)
	}
	if rej.WrongMaterial {
		t.Fatal("failed inspection should not be flagged as wrong material")
	}
}

func TestAdmitLotNotFound(t *testing.T) {
	v := NewValidator(testLedger())

	err := v.AdmitLot(context.Background(), "纯铁粉", "X999")
	var rej *LotRejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("expected *LotRejectedError, got %v", err)
	}
}

// TestAdmitLotWrongMaterial 异种粉末：LOT存在但属于别的粉末
func TestAdmitLotWrongMaterial(t *testing.T) {
	v := NewValidator(testLedger())

	err := v.AdmitLot(context.Background(), "纯铁粉", "C200")
	var rej *LotRejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("expected *LotRejectedError, got %v", err)
	}
	if !rej.WrongMaterial {
		t.Fatal("expected wrong material flag")
	}
}

// TestAdmitLotCaseSensitive LOT号区分大小写，不做模糊匹配
func TestAdmitLotCaseSensitive(t *testing.T) {
	v := NewValidator(testLedger())

	if err := v.AdmitLot(context.Background(), "纯铁粉", "a100"); err == nil {
		t.Fatal("expected rejection: lot numbers are case-sensitive")
	}
}

// TestAdmitAllBlockedBySingleLot 一组LOT里只要有一个被拒，整组不可判定
func TestAdmitAllBlockedBySingleLot(t *testing.T) {
	v := NewValidator(testLedger())

	lots := []LotEntry{
		{LotNumber: "A100", Weight: 600},
		{LotNumber: "A102", Weight: 420}, // 检验不合格
	}
	if err := v.AdmitAll(context.Background(), "纯铁粉", lots); err == nil {
		t.Fatal("expected rejection: one failed lot blocks the whole line")
	}

	lots[1].LotNumber = "A101"
	if err := v.AdmitAll(context.Background(), "纯铁粉", lots); err != nil {
		t.Fatalf("expected admission after substituting lot, got %v", err)
	}
}

func TestAdmitAllEmpty(t *testing.T) {
	v := NewValidator(testLedger())

	if err := v.AdmitAll(context.Background(), "纯铁粉", nil); err == nil {
		t.Fatal("expected rejection for empty lot list")
	}
}

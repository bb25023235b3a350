package entity

import "time"

// InspectionRecord 来料检验结果：配料投料只读取，不回写
// 一个 (粉末, LOT) 只有一条最终结论，是LOT准入的唯一依据
type InspectionRecord struct {
	ID             string    `json:"id" gorm:"primaryKey;size:32"`
	PowderName     string    `json:"powder_name" gorm:"size:100;not null;uniqueIndex:idx_inspection_powder_lot,priority:1"`
	LotNumber      string    `json:"lot_number" gorm:"size:50;not null;uniqueIndex:idx_inspection_powder_lot,priority:2;index:idx_inspection_lot"`
	Category       string    `json:"category" gorm:"size:20;default:incoming"` // incoming/outgoing
	InspectionType string    `json:"inspection_type" gorm:"size:50"`
	Inspector      string    `json:"inspector" gorm:"size:50"`
	InspectionTime time.Time `json:"inspection_time" gorm:"autoCreateTime"`
	FinalResult    string    `json:"final_result" gorm:"size:10;not null"` // PASS/FAIL
	Notes          string    `json:"notes" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (InspectionRecord) TableName() string {
	return "qms_inspection_records"
}

// 检验最终结论
const (
	InspectionResultPass = "PASS"
	InspectionResultFail = "FAIL"
)

// 检验类别
const (
	InspectionCategoryIncoming = "incoming"
	InspectionCategoryOutgoing = "outgoing"
)

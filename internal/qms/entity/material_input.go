package entity

import (
	"strings"
	"time"
)

// MaterialInput 投料记录：一个粉末行判定合格后落库，一粉一条（多LOT合并）
// 只增不改：落库后不允许修改（追溯账本）
type MaterialInput struct {
	ID               string    `json:"id" gorm:"primaryKey;size:32"`
	BlendingWorkID   string    `json:"blending_work_id" gorm:"size:32;not null;index:idx_material_input_work;uniqueIndex:idx_work_powder,priority:1"`
	PowderName       string    `json:"powder_name" gorm:"size:100;not null;uniqueIndex:idx_work_powder,priority:2"`
	PowderCategory   string    `json:"powder_category" gorm:"size:20;default:sub"` // main/sub
	MaterialLot      string    `json:"material_lot" gorm:"size:200;not null;index:idx_material_input_lot"` // 逗号分隔的LOT列表
	TargetWeight     float64   `json:"target_weight" gorm:"type:decimal(10,2);not null"`
	ActualWeight     float64   `json:"actual_weight" gorm:"type:decimal(10,2);not null"` // 各LOT实称之和
	WeightDeviation  float64   `json:"weight_deviation" gorm:"type:decimal(5,2)"`        // 偏差%
	TolerancePercent float64   `json:"tolerance_percent" gorm:"type:decimal(5,2)"`
	IsValid          bool      `json:"is_valid" gorm:"default:true"`
	ValidationMessage string   `json:"validation_message" gorm:"type:text"`
	InputBy          string    `json:"input_by" gorm:"size:50"`
	InputTime        time.Time `json:"input_time" gorm:"autoCreateTime"`
}

func (MaterialInput) TableName() string {
	return "qms_material_inputs"
}

// 粉末类别
const (
	PowderCategoryMain = "main"
	PowderCategorySub  = "sub"
)

// MaterialLotSeparator 投料记录中多LOT的拼接符
const MaterialLotSeparator = ","

// JoinLots 将多个LOT号拼成落库格式
func JoinLots(lots []string) string {
	return strings.Join(lots, MaterialLotSeparator)
}

// SplitLots 拆出投料记录中的各LOT号（去除空白项）
func SplitLots(joined string) []string {
	parts := strings.Split(joined, MaterialLotSeparator)
	lots := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			lots = append(lots, p)
		}
	}
	return lots
}

// ContainsLot LOT号精确逐项匹配，避免"12"误中"112"这类子串误报
func (m *MaterialInput) ContainsLot(lotNumber string) bool {
	for _, lot := range SplitLots(m.MaterialLot) {
		if lot == lotNumber {
			return true
		}
	}
	return false
}

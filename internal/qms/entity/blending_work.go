package entity

import (
	"time"

	"gorm.io/datatypes"
)

// BlendingWork 配料作业：一次多粉末混配，产出一个批次LOT
type BlendingWork struct {
	ID                string     `json:"id" gorm:"primaryKey;size:32"`
	WorkOrder         string     `json:"work_order" gorm:"size:50;uniqueIndex;not null"`
	ProductName       string     `json:"product_name" gorm:"size:100;not null"`
	ProductCode       string     `json:"product_code" gorm:"size:50"`
	BatchLot          string     `json:"batch_lot" gorm:"size:50;uniqueIndex;not null"`
	TargetTotalWeight float64    `json:"target_total_weight" gorm:"type:decimal(10,2)"`
	ActualTotalWeight float64    `json:"actual_total_weight" gorm:"type:decimal(10,2)"`
	MainPowderWeights datatypes.JSONMap `json:"main_powder_weights" gorm:"type:jsonb"` // 主粉选重 powder→kg
	Operator          string     `json:"operator" gorm:"size:50"`
	Status            string     `json:"status" gorm:"size:20;default:in_progress"` // in_progress/completed
	StartTime         time.Time  `json:"start_time" gorm:"autoCreateTime"`
	EndTime           *time.Time `json:"end_time"`
	Notes             string     `json:"notes" gorm:"type:text"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (BlendingWork) TableName() string {
	return "qms_blending_works"
}

// 配料作业状态
const (
	WorkStatusInProgress = "in_progress"
	WorkStatusCompleted  = "completed" // 终态：投料记录不可再变更
)

// IsCompleted 作业是否已终结
func (w *BlendingWork) IsCompleted() bool {
	return w.Status == WorkStatusCompleted
}

package entity

import "time"

// ActivityLog 操作日志：记录配料判定、完成、删除等关键动作
type ActivityLog struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	EntityType string    `json:"entity_type" gorm:"size:50;not null;index:idx_activity_entity"` // blending_work/material_input/inspection
	EntityID   string    `json:"entity_id" gorm:"size:32;not null;index:idx_activity_entity"`
	EntityCode string    `json:"entity_code" gorm:"size:50"`
	Action     string    `json:"action" gorm:"size:50;not null"`
	FromStatus string    `json:"from_status" gorm:"size:20"`
	ToStatus   string    `json:"to_status" gorm:"size:20"`
	Content    string    `json:"content" gorm:"type:text"`
	OperatorID string    `json:"operator_id" gorm:"size:50"`
	Notes      string    `json:"notes" gorm:"size:500"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "qms_activity_logs"
}

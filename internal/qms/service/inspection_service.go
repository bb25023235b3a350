package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bitfantasy/nimo-qms/internal/qms/cache"
	"github.com/bitfantasy/nimo-qms/internal/qms/entity"
	"github.com/bitfantasy/nimo-qms/internal/qms/repository"
)

// InspectionService 来料检验服务。检验结论是LOT准入的唯一依据，
// 任何结论变更都要立即失效缓存，避免配料侧用到过期结论。
type InspectionService struct {
	repo            *repository.InspectionRepository
	lotCache        *cache.LotCache
	activityLogRepo *repository.ActivityLogRepository
}

func NewInspectionService(repo *repository.InspectionRepository, lotCache *cache.LotCache) *InspectionService {
	return &InspectionService{
		repo:     repo,
		lotCache: lotCache,
	}
}

// SetActivityLogRepo 注入操作日志仓库
func (s *InspectionService) SetActivityLogRepo(repo *repository.ActivityLogRepository) {
	s.activityLogRepo = repo
}

// ListRecords 获取检验记录列表
func (s *InspectionService) ListRecords(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.InspectionRecord, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

// GetRecord 获取检验记录详情
func (s *InspectionService) GetRecord(ctx context.Context, id string) (*entity.InspectionRecord, error) {
	return s.repo.FindByID(ctx, id)
}

// CreateRecordRequest 检验记录录入
type CreateRecordRequest struct {
	PowderName     string `json:"powder_name" binding:"required"`
	LotNumber      string `json:"lot_number" binding:"required"`
	Category       string `json:"category"`
	InspectionType string `json:"inspection_type"`
	FinalResult    string `json:"final_result" binding:"required"` // PASS/FAIL
	Notes          string `json:"notes"`
}

// CreateRecord 录入检验结论
func (s *InspectionService) CreateRecord(ctx context.Context, userID string, req *CreateRecordRequest) (*entity.InspectionRecord, error) {
	if req.FinalResult != entity.InspectionResultPass && req.FinalResult != entity.InspectionResultFail {
		return nil, fmt.Errorf("检验结论必须为 %s 或 %s", entity.InspectionResultPass, entity.InspectionResultFail)
	}

	category := req.Category
	if category == "" {
		category = entity.InspectionCategoryIncoming
	}

	rec := &entity.InspectionRecord{
		ID:             uuid.New().String()[:32],
		PowderName:     req.PowderName,
		LotNumber:      req.LotNumber,
		Category:       category,
		InspectionType: req.InspectionType,
		Inspector:      userID,
		FinalResult:    req.FinalResult,
		Notes:          req.Notes,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.lotCache.Invalidate(ctx, rec.PowderName, rec.LotNumber)

	if s.activityLogRepo != nil {
		s.activityLogRepo.LogActivity(ctx, "inspection", rec.ID, rec.LotNumber,
			"inspect", "", rec.FinalResult,
			fmt.Sprintf("检验: %s LOT %s %s", rec.PowderName, rec.LotNumber, rec.FinalResult), userID)
	}

	return rec, nil
}

// UpdateResultRequest 检验结论修订
type UpdateResultRequest struct {
	FinalResult string `json:"final_result" binding:"required"`
	Notes       string `json:"notes"`
}

// UpdateResult 修订检验结论（复检改判）
func (s *InspectionService) UpdateResult(ctx context.Context, id, userID string, req *UpdateResultRequest) (*entity.InspectionRecord, error) {
	if req.FinalResult != entity.InspectionResultPass && req.FinalResult != entity.InspectionResultFail {
		return nil, fmt.Errorf("检验结论必须为 %s 或 %s", entity.InspectionResultPass, entity.InspectionResultFail)
	}

	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fromResult := rec.FinalResult
	rec.FinalResult = req.FinalResult
	if req.Notes != "" {
		rec.Notes = req.Notes
	}
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}

	s.lotCache.Invalidate(ctx, rec.PowderName, rec.LotNumber)

	if s.activityLogRepo != nil {
		s.activityLogRepo.LogActivity(ctx, "inspection", rec.ID, rec.LotNumber,
			"revise", fromResult, rec.FinalResult,
			fmt.Sprintf("改判: %s LOT %s %s → %s", rec.PowderName, rec.LotNumber, fromResult, rec.FinalResult), userID)
	}

	return rec, nil
}

// DeleteRecord 删除检验记录（仅管理员）
func (s *InspectionService) DeleteRecord(ctx context.Context, id, userID string) error {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.lotCache.Invalidate(ctx, rec.PowderName, rec.LotNumber)

	if s.activityLogRepo != nil {
		s.activityLogRepo.LogActivity(ctx, "inspection", rec.ID, rec.LotNumber,
			"delete", rec.FinalResult, "", "删除检验记录", userID)
	}
	return nil
}

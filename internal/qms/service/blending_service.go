package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bitfantasy/nimo-qms/internal/qms/blending"
	"github.com/bitfantasy/nimo-qms/internal/qms/entity"
	"github.com/bitfantasy/nimo-qms/internal/qms/repository"
	"github.com/bitfantasy/nimo-qms/internal/qms/sse"
)

// BlendingService 配料作业服务
type BlendingService struct {
	workRepo        *repository.BlendingWorkRepository
	recipeRepo      *repository.RecipeRepository
	inputRepo       *repository.MaterialInputRepository
	validator       *blending.Validator
	activityLogRepo *repository.ActivityLogRepository
}

func NewBlendingService(
	workRepo *repository.BlendingWorkRepository,
	recipeRepo *repository.RecipeRepository,
	inputRepo *repository.MaterialInputRepository,
	validator *blending.Validator,
) *BlendingService {
	return &BlendingService{
		workRepo:   workRepo,
		recipeRepo: recipeRepo,
		inputRepo:  inputRepo,
		validator:  validator,
	}
}

// SetActivityLogRepo 注入操作日志仓库
func (s *BlendingService) SetActivityLogRepo(repo *repository.ActivityLogRepository) {
	s.activityLogRepo = repo
}

// ListWorks 获取配料作业列表
func (s *BlendingService) ListWorks(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.BlendingWork, int64, error) {
	return s.workRepo.FindAll(ctx, page, pageSize, filters)
}

// StartWorkRequest 开工请求
type StartWorkRequest struct {
	WorkOrder         string             `json:"work_order" binding:"required"`
	ProductName       string             `json:"product_name" binding:"required"`
	ProductCode       string             `json:"product_code"`
	TargetTotalWeight float64            `json:"target_total_weight" binding:"required"`
	MainPowderWeights map[string]float64 `json:"main_powder_weights"`
	Notes             string             `json:"notes"`
}

// StartWork 开工：校验配方、试算分配表、签发批次LOT。
// 配方不合法直接拒绝开工，不产生任何作业记录。
func (s *BlendingService) StartWork(ctx context.Context, userID string, req *StartWorkRequest) (*entity.BlendingWork, *blending.Worksheet, error) {
	lines, err := s.recipeRepo.FindByProduct(ctx, req.ProductName)
	if err != nil {
		return nil, nil, err
	}
	if len(lines) == 0 {
		return nil, nil, &blending.RecipeError{ProductName: req.ProductName, Reason: "产品无配方"}
	}

	ws, err := blending.Allocate(lines, req.TargetTotalWeight, req.MainPowderWeights)
	if err != nil {
		return nil, nil, err
	}

	if _, err := s.workRepo.FindByWorkOrder(ctx, req.WorkOrder); err == nil {
		return nil, nil, fmt.Errorf("工单 %s 已存在", req.WorkOrder)
	} else if err != repository.ErrNotFound {
		return nil, nil, err
	}

	batchLot, err := s.workRepo.GenerateBatchLot(ctx)
	if err != nil {
		return nil, nil, err
	}

	// 落库的是分配表解析后的主粉选重（未选重时含默认值），这样之后
	// 用 TargetTotalWeight + MainPowderWeights 重算分配表与开工时完全一致
	mainWeights := make(map[string]interface{})
	for _, alloc := range ws.Allocations {
		if alloc.PowderCategory == entity.PowderCategoryMain {
			mainWeights[alloc.PowderName] = alloc.Weight
		}
	}

	work := &entity.BlendingWork{
		ID:                uuid.New().String()[:32],
		WorkOrder:         req.WorkOrder,
		ProductName:       req.ProductName,
		ProductCode:       req.ProductCode,
		BatchLot:          batchLot,
		TargetTotalWeight: ws.ActualTotalWeight,
		MainPowderWeights: mainWeights,
		Operator:          userID,
		Status:            entity.WorkStatusInProgress,
		Notes:             req.Notes,
	}
	if err := s.workRepo.Create(ctx, work); err != nil {
		return nil, nil, err
	}

	if s.activityLogRepo != nil {
		s.activityLogRepo.LogActivity(ctx, "blending_work", work.ID, work.BatchLot,
			"start", "", entity.WorkStatusInProgress,
			fmt.Sprintf("开工: %s 目标总重 %.2fkg", work.ProductName, ws.ActualTotalWeight), userID)
	}
	sse.PublishWorkUpdate(work.ID, work.BatchLot, "started")

	return work, ws, nil
}

// LineView 作业详情中的一行粉末
type LineView struct {
	Allocation blending.Allocation   `json:"allocation"`
	Status     string                `json:"status"`
	Input      *entity.MaterialInput `json:"input,omitempty"`
}

// WorkDetail 配料作业详情
type WorkDetail struct {
	Work        *entity.BlendingWork `json:"work"`
	Lines       []LineView           `json:"lines"`
	Progress    blending.Progress    `json:"progress"`
	TonBoxDone  int                  `json:"ton_box_done"`
	TonBoxTotal int                  `json:"ton_box_total"`
}

// GetWork 作业详情：分配表、各行状态、整批进度、吨箱视图
func (s *BlendingService) GetWork(ctx context.Context, id string) (*WorkDetail, error) {
	work, err := s.workRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(ctx, work)
}

// GetWorkByBatchLot 按批次LOT取作业详情
func (s *BlendingService) GetWorkByBatchLot(ctx context.Context, batchLot string) (*WorkDetail, error) {
	work, err := s.workRepo.FindByBatchLot(ctx, batchLot)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(ctx, work)
}

func (s *BlendingService) buildDetail(ctx context.Context, work *entity.BlendingWork) (*WorkDetail, error) {
	lines, err := s.recipeRepo.FindByProduct(ctx, work.ProductName)
	if err != nil {
		return nil, err
	}
	ws, err := blending.Allocate(lines, work.TargetTotalWeight, mainWeightsOf(work))
	if err != nil {
		return nil, err
	}
	inputs, err := s.inputRepo.FindByWork(ctx, work.ID)
	if err != nil {
		return nil, err
	}

	views := make([]LineView, 0, len(ws.Allocations))
	var completedKg float64
	for _, alloc := range ws.Allocations {
		view := LineView{
			Allocation: alloc,
			Status:     blending.LineStatus(alloc.PowderName, inputs),
		}
		for i := range inputs {
			if inputs[i].PowderName == alloc.PowderName {
				view.Input = &inputs[i]
				completedKg += inputs[i].ActualWeight
				break
			}
		}
		views = append(views, view)
	}

	done, total := blending.TonBoxes(completedKg, ws.ActualTotalWeight)
	return &WorkDetail{
		Work:        work,
		Lines:       views,
		Progress:    blending.ComputeProgress(lines, inputs),
		TonBoxDone:  done,
		TonBoxTotal: total,
	}, nil
}

// mainWeightsOf 从落库的JSONB还原主粉选重
func mainWeightsOf(work *entity.BlendingWork) map[string]float64 {
	if len(work.MainPowderWeights) == 0 {
		return nil
	}
	weights := make(map[string]float64, len(work.MainPowderWeights))
	for k, v := range work.MainPowderWeights {
		if f, ok := v.(float64); ok {
			weights[k] = f
		}
	}
	return weights
}

// JudgeRequest 一行粉末的判定请求
type JudgeRequest struct {
	PowderName string              `json:"powder_name" binding:"required"`
	Lots       []blending.LotEntry `json:"lots" binding:"required"`
}

// JudgeResult 判定结果。Passed时投料记录已落库且不可再改。
type JudgeResult struct {
	Judgment blending.Judgment     `json:"judgment"`
	Input    *entity.MaterialInput `json:"input,omitempty"`
	Progress blending.Progress     `json:"progress"`
}

// JudgeMaterialInput 判定一行粉末：先LOT准入，再允差判定。
// 合格即落库为投料记录；不合格只返回结论，不产生任何持久化变化，
// 操作工调整LOT后可重新判定。
func (s *BlendingService) JudgeMaterialInput(ctx context.Context, workID, userID string, req *JudgeRequest) (*JudgeResult, error) {
	work, err := s.workRepo.FindByID(ctx, workID)
	if err != nil {
		return nil, err
	}
	if work.IsCompleted() {
		return nil, blending.ErrBatchAlreadyCompleted
	}

	lines, err := s.recipeRepo.FindByProduct(ctx, work.ProductName)
	if err != nil {
		return nil, err
	}
	ws, err := blending.Allocate(lines, work.TargetTotalWeight, mainWeightsOf(work))
	if err != nil {
		return nil, err
	}
	alloc, ok := ws.Find(req.PowderName)
	if !ok {
		return nil, fmt.Errorf("粉末 %s 不在产品 %s 的配方中", req.PowderName, work.ProductName)
	}

	if _, err := s.inputRepo.FindByWorkAndPowder(ctx, workID, req.PowderName); err == nil {
		return nil, fmt.Errorf("粉末 %s 已判定合格，投料记录不可变更", req.PowderName)
	} else if err != repository.ErrNotFound {
		return nil, err
	}

	// LOT准入：任一LOT无PASS检验结论即整行阻塞
	if err := s.validator.AdmitAll(ctx, req.PowderName, req.Lots); err != nil {
		return nil, err
	}

	judgment := blending.Judge(alloc, req.Lots)
	inputs, err := s.inputRepo.FindByWork(ctx, workID)
	if err != nil {
		return nil, err
	}

	result := &JudgeResult{
		Judgment: judgment,
		Progress: blending.ComputeProgress(lines, inputs),
	}

	if !judgment.Passed {
		if s.activityLogRepo != nil {
			s.activityLogRepo.LogActivity(ctx, "blending_work", work.ID, work.BatchLot,
				"judge_fail", "", blending.LineStateJudgedFail,
				judgment.Message, userID)
		}
		sse.PublishJudgment(work.ID, req.PowderName, false, result.Progress.Percent)
		return result, nil
	}

	lots := make([]string, 0, len(req.Lots))
	for _, l := range req.Lots {
		lots = append(lots, l.LotNumber)
	}
	input := &entity.MaterialInput{
		ID:               uuid.New().String()[:32],
		BlendingWorkID:   work.ID,
		PowderName:       req.PowderName,
		PowderCategory:   alloc.PowderCategory,
		MaterialLot:      entity.JoinLots(lots),
		TargetWeight:     alloc.Weight,
		ActualWeight:     judgment.Sum,
		WeightDeviation:  blending.Round2(judgment.Deviation),
		TolerancePercent: alloc.TolerancePercent,
		IsValid:          true,
		InputBy:          userID,
	}
	if err := s.inputRepo.Create(ctx, input); err != nil {
		return nil, err
	}

	inputs = append(inputs, *input)
	result.Input = input
	result.Progress = blending.ComputeProgress(lines, inputs)

	// 作业实际总重随投料累计
	work.ActualTotalWeight += input.ActualWeight
	if err := s.workRepo.Update(ctx, work); err != nil {
		return nil, err
	}

	if s.activityLogRepo != nil {
		s.activityLogRepo.LogActivity(ctx, "material_input", input.ID, work.BatchLot,
			"judge_pass", blending.LineStateMeasuring, blending.LineStateJudgedPass,
			fmt.Sprintf("投料: %s %.2fkg (LOT: %s)", input.PowderName, input.ActualWeight, input.MaterialLot), userID)
	}
	sse.PublishJudgment(work.ID, req.PowderName, true, result.Progress.Percent)

	return result, nil
}

// CompleteWork 完成作业：全部粉末行合格后才允许，完成为终态
func (s *BlendingService) CompleteWork(ctx context.Context, workID, userID string) (*entity.BlendingWork, error) {
	work, err := s.workRepo.FindByID(ctx, workID)
	if err != nil {
		return nil, err
	}
	// 重复完成按幂等处理，直接返回当前终态
	if work.IsCompleted() {
		return work, nil
	}

	lines, err := s.recipeRepo.FindByProduct(ctx, work.ProductName)
	if err != nil {
		return nil, err
	}
	inputs, err := s.inputRepo.FindByWork(ctx, work.ID)
	if err != nil {
		return nil, err
	}
	progress := blending.ComputeProgress(lines, inputs)
	if progress.PassedLines < progress.TotalLines {
		return nil, fmt.Errorf("还有 %d 行粉末未判定合格，不能完成",
			progress.TotalLines-progress.PassedLines)
	}

	now := time.Now()
	work.Status = entity.WorkStatusCompleted
	work.EndTime = &now
	if err := s.workRepo.Update(ctx, work); err != nil {
		return nil, err
	}

	if s.activityLogRepo != nil {
		s.activityLogRepo.LogActivity(ctx, "blending_work", work.ID, work.BatchLot,
			"complete", entity.WorkStatusInProgress, entity.WorkStatusCompleted,
			fmt.Sprintf("完成配料: 实际总重 %.2fkg", work.ActualTotalWeight), userID)
	}
	sse.PublishWorkUpdate(work.ID, work.BatchLot, "completed")

	return work, nil
}

// DeleteWork 删除作业及其投料记录。管理员专用：撤销误开工单，
// 或整批重做已完成但称量有误的批次（完成后没有逐行修改通道）。
// 删除动作本身写入操作日志，审计链不中断。
func (s *BlendingService) DeleteWork(ctx context.Context, workID, userID string) error {
	work, err := s.workRepo.FindByID(ctx, workID)
	if err != nil {
		return err
	}

	if err := s.workRepo.Delete(ctx, workID); err != nil {
		return err
	}

	if s.activityLogRepo != nil {
		s.activityLogRepo.LogActivity(ctx, "blending_work", work.ID, work.BatchLot,
			"delete", work.Status, "", "删除配料作业", userID)
	}
	sse.PublishWorkUpdate(work.ID, work.BatchLot, "deleted")

	return nil
}

package service

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-qms/internal/qms/blending"
	"github.com/bitfantasy/nimo-qms/internal/qms/entity"
	"github.com/bitfantasy/nimo-qms/internal/qms/repository"
)

// TraceabilityService 批次追溯服务。追溯结论全部从投料账本现算，
// 不信任落库时写入的判定快照。
type TraceabilityService struct {
	workRepo       *repository.BlendingWorkRepository
	recipeRepo     *repository.RecipeRepository
	inputRepo      *repository.MaterialInputRepository
	inspectionRepo *repository.InspectionRepository
}

func NewTraceabilityService(
	workRepo *repository.BlendingWorkRepository,
	recipeRepo *repository.RecipeRepository,
	inputRepo *repository.MaterialInputRepository,
	inspectionRepo *repository.InspectionRepository,
) *TraceabilityService {
	return &TraceabilityService{
		workRepo:       workRepo,
		recipeRepo:     recipeRepo,
		inputRepo:      inputRepo,
		inspectionRepo: inspectionRepo,
	}
}

// LotDetail 一个原料LOT及其来料检验出处
type LotDetail struct {
	LotNumber      string     `json:"lot_number"`
	Inspector      string     `json:"inspector,omitempty"`
	InspectionTime *time.Time `json:"inspection_time,omitempty"`
	FinalResult    string     `json:"final_result,omitempty"`
}

// BackwardItem 反向追溯中的一条投料
type BackwardItem struct {
	PowderName      string      `json:"powder_name"`
	PowderCategory  string      `json:"powder_category"`
	Lots            []LotDetail `json:"lots"`
	TargetWeight    float64     `json:"target_weight"`
	ActualWeight    float64     `json:"actual_weight"`
	WeightDeviation float64     `json:"weight_deviation"`
	MinWeight       float64     `json:"min_weight"`
	MaxWeight       float64     `json:"max_weight"`
	IsValid         bool        `json:"is_valid"`
	Message         string      `json:"message,omitempty"`
}

// BackwardTrace 批次LOT → 原料LOT
type BackwardTrace struct {
	Work  *entity.BlendingWork `json:"work"`
	Items []BackwardItem       `json:"items"`
}

// lotDetails 逐LOT补上来料检验出处，台账缺失时只留LOT号
func (s *TraceabilityService) lotDetails(ctx context.Context, powderName, joined string) []LotDetail {
	lots := entity.SplitLots(joined)
	details := make([]LotDetail, 0, len(lots))
	for _, lot := range lots {
		d := LotDetail{LotNumber: lot}
		if rec, err := s.inspectionRepo.FindByPowderAndLot(ctx, powderName, lot); err == nil {
			d.Inspector = rec.Inspector
			t := rec.InspectionTime
			d.InspectionTime = &t
			d.FinalResult = rec.FinalResult
		}
		details = append(details, d)
	}
	return details
}

// Backward 反向追溯：给定批次LOT，列出投了哪些原料LOT及其检验出处。
// is_valid 按当前分配表重新判定，历史快照与现算结论不一致时以现算为准。
func (s *TraceabilityService) Backward(ctx context.Context, batchLot string) (*BackwardTrace, error) {
	work, err := s.workRepo.FindByBatchLot(ctx, batchLot)
	if err != nil {
		return nil, err
	}
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

	items := make([]BackwardItem, 0, len(inputs))
	for _, in := range inputs {
		item := BackwardItem{
			PowderName:      in.PowderName,
			PowderCategory:  in.PowderCategory,
			Lots:            s.lotDetails(ctx, in.PowderName, in.MaterialLot),
			TargetWeight:    in.TargetWeight,
			ActualWeight:    in.ActualWeight,
			WeightDeviation: in.WeightDeviation,
			IsValid:         true,
		}
		if alloc, ok := ws.Find(in.PowderName); ok {
			item.MinWeight = alloc.MinWeight
			item.MaxWeight = alloc.MaxWeight
			// 偏差%与结论一样按当前分配表现算，不用落库快照
			j := blending.Judge(alloc, []blending.LotEntry{{LotNumber: in.MaterialLot, Weight: in.ActualWeight}})
			item.WeightDeviation = blending.Round2(j.Deviation)
			item.IsValid = j.Passed
			item.Message = j.Message
		}
		items = append(items, item)
	}

	return &BackwardTrace{Work: work, Items: items}, nil
}

// ForwardItem 正向追溯中的一个去向批次
type ForwardItem struct {
	BatchLot    string  `json:"batch_lot"`
	WorkOrder   string  `json:"work_order"`
	ProductName string  `json:"product_name"`
	PowderName  string  `json:"powder_name"`
	Weight      float64 `json:"weight"`
	Status      string  `json:"status"`
}

// ForwardTrace 原料LOT → 批次，附该LOT的来料检验出处
type ForwardTrace struct {
	Inspection *entity.InspectionRecord `json:"inspection,omitempty"`
	Batches    []ForwardItem            `json:"batches"`
}

// Forward 正向追溯：给定原料LOT，列出它进了哪些批次。
// 同一LOT号被多种粉末使用时必须带 powderName 消歧，否则返回
// blending.ErrAmbiguousLotLookup。
func (s *TraceabilityService) Forward(ctx context.Context, lotNumber, powderName string) (*ForwardTrace, error) {
	var inputs []entity.MaterialInput
	var err error
	if powderName != "" {
		inputs, err = s.inputRepo.FindByPowderAndLotElement(ctx, powderName, lotNumber)
	} else {
		inputs, err = s.inputRepo.FindByLotElement(ctx, lotNumber)
	}
	if err != nil {
		return nil, err
	}

	if powderName == "" {
		powders := make(map[string]bool, len(inputs))
		for _, in := range inputs {
			powders[in.PowderName] = true
		}
		if len(powders) > 1 {
			return nil, blending.ErrAmbiguousLotLookup
		}
		for p := range powders {
			powderName = p
		}
	}

	trace := &ForwardTrace{Batches: make([]ForwardItem, 0, len(inputs))}
	if powderName != "" {
		if rec, err := s.inspectionRepo.FindByPowderAndLot(ctx, powderName, lotNumber); err == nil {
			trace.Inspection = rec
		}
	}

	for _, in := range inputs {
		work, err := s.workRepo.FindByID(ctx, in.BlendingWorkID)
		if err != nil {
			if err == repository.ErrNotFound {
				continue
			}
			return nil, err
		}
		trace.Batches = append(trace.Batches, ForwardItem{
			BatchLot:    work.BatchLot,
			WorkOrder:   work.WorkOrder,
			ProductName: work.ProductName,
			PowderName:  in.PowderName,
			Weight:      in.ActualWeight,
			Status:      work.Status,
		})
	}
	return trace, nil
}

// SearchHit 综合检索的一条命中
type SearchHit struct {
	FoundAs     string `json:"found_as"` // batch_lot / material_lot
	BatchLot    string `json:"batch_lot"`
	WorkOrder   string `json:"work_order"`
	ProductName string `json:"product_name"`
	PowderName  string `json:"powder_name,omitempty"`
	Status      string `json:"status"`
}

// Search 综合检索：一个LOT号既可能是批次LOT也可能是原料LOT，
// 两边都查，found_as 标明命中来源，绝不静默二选一。
func (s *TraceabilityService) Search(ctx context.Context, lotNumber string) ([]SearchHit, error) {
	hits := make([]SearchHit, 0, 4)

	work, err := s.workRepo.FindByBatchLot(ctx, lotNumber)
	if err == nil {
		hits = append(hits, SearchHit{
			FoundAs:     "batch_lot",
			BatchLot:    work.BatchLot,
			WorkOrder:   work.WorkOrder,
			ProductName: work.ProductName,
			Status:      work.Status,
		})
	} else if err != repository.ErrNotFound {
		return nil, err
	}

	inputs, err := s.inputRepo.FindByLotElement(ctx, lotNumber)
	if err != nil {
		return nil, err
	}
	for _, in := range inputs {
		w, err := s.workRepo.FindByID(ctx, in.BlendingWorkID)
		if err != nil {
			if err == repository.ErrNotFound {
				continue
			}
			return nil, err
		}
		hits = append(hits, SearchHit{
			FoundAs:     "material_lot",
			BatchLot:    w.BatchLot,
			WorkOrder:   w.WorkOrder,
			ProductName: w.ProductName,
			PowderName:  in.PowderName,
			Status:      w.Status,
		})
	}

	return hits, nil
}

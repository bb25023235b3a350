package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/bitfantasy/nimo-qms/internal/qms/blending"
	"github.com/bitfantasy/nimo-qms/internal/qms/entity"
	"github.com/bitfantasy/nimo-qms/internal/qms/repository"
)

// ExportService 配料报表导出
type ExportService struct {
	workRepo    *repository.BlendingWorkRepository
	recipeRepo  *repository.RecipeRepository
	inputRepo   *repository.MaterialInputRepository
	minioClient *minio.Client
	bucket      string
}

func NewExportService(
	workRepo *repository.BlendingWorkRepository,
	recipeRepo *repository.RecipeRepository,
	inputRepo *repository.MaterialInputRepository,
	minioClient *minio.Client,
	bucket string,
) *ExportService {
	return &ExportService{
		workRepo:    workRepo,
		recipeRepo:  recipeRepo,
		inputRepo:   inputRepo,
		minioClient: minioClient,
		bucket:      bucket,
	}
}

func (s *ExportService) loadWork(ctx context.Context, workID string) (*entity.BlendingWork, *blending.Worksheet, []entity.MaterialInput, error) {
	work, err := s.workRepo.FindByID(ctx, workID)
	if err != nil {
		return nil, nil, nil, err
	}
	lines, err := s.recipeRepo.FindByProduct(ctx, work.ProductName)
	if err != nil {
		return nil, nil, nil, err
	}
	ws, err := blending.Allocate(lines, work.TargetTotalWeight, mainWeightsOf(work))
	if err != nil {
		return nil, nil, nil, err
	}
	inputs, err := s.inputRepo.FindByWork(ctx, work.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	return work, ws, inputs, nil
}

// ExportWorkReport 导出配料报表xlsx：分配表 + 实际投料 + 追溯LOT
func (s *ExportService) ExportWorkReport(ctx context.Context, workID string) (*excelize.File, string, error) {
	work, ws, inputs, err := s.loadWork(ctx, workID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheet := "配料报表"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"粉末", "类别", "配比%", "目标重量kg", "允差下限kg", "允差上限kg", "实际重量kg", "偏差%", "原料LOT", "投料时间"}
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s1", col)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	inputByPowder := make(map[string]*entity.MaterialInput, len(inputs))
	for i := range inputs {
		inputByPowder[inputs[i].PowderName] = &inputs[i]
	}

	row := 2
	for _, alloc := range ws.Allocations {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), alloc.PowderName)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), alloc.PowderCategory)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), alloc.Ratio)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), blending.Round2(alloc.Weight))
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), blending.Round2(alloc.MinWeight))
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), blending.Round2(alloc.MaxWeight))
		if in, ok := inputByPowder[alloc.PowderName]; ok {
			f.SetCellValue(sheet, fmt.Sprintf("G%d", row), in.ActualWeight)
			f.SetCellValue(sheet, fmt.Sprintf("H%d", row), in.WeightDeviation)
			f.SetCellValue(sheet, fmt.Sprintf("I%d", row), in.MaterialLot)
			f.SetCellValue(sheet, fmt.Sprintf("J%d", row), in.InputTime.Format("2006-01-02 15:04"))
		}
		row++
	}

	summaryRow := row + 1
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), "汇总")
	f.SetCellValue(sheet, fmt.Sprintf("C%d", summaryRow),
		fmt.Sprintf("批次: %s 产品: %s", work.BatchLot, work.ProductName))
	f.SetCellValue(sheet, fmt.Sprintf("D%d", summaryRow), blending.Round2(ws.ActualTotalWeight))
	f.SetCellValue(sheet, fmt.Sprintf("G%d", summaryRow), work.ActualTotalWeight)

	filename := fmt.Sprintf("%s_配料报表.xlsx", work.BatchLot)
	return f, filename, nil
}

// ExportInputsCSV 导出投料CSV（GBK编码，兼容车间老Excel）
func (s *ExportService) ExportInputsCSV(ctx context.Context, workID string) ([]byte, string, error) {
	work, _, inputs, err := s.loadWork(ctx, workID)
	if err != nil {
		return nil, "", err
	}

	var utf8Buf bytes.Buffer
	w := csv.NewWriter(&utf8Buf)
	w.Write([]string{"批次LOT", "粉末", "类别", "原料LOT", "目标重量kg", "实际重量kg", "偏差%", "投料人", "投料时间"})
	for _, in := range inputs {
		w.Write([]string{
			work.BatchLot,
			in.PowderName,
			in.PowderCategory,
			in.MaterialLot,
			fmt.Sprintf("%.2f", in.TargetWeight),
			fmt.Sprintf("%.2f", in.ActualWeight),
			fmt.Sprintf("%.2f", in.WeightDeviation),
			in.InputBy,
			in.InputTime.Format("2006-01-02 15:04"),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", err
	}

	// UTF-8 → GBK
	var gbkBuf bytes.Buffer
	tw := transform.NewWriter(&gbkBuf, simplifiedchinese.GBK.NewEncoder())
	if _, err := tw.Write(utf8Buf.Bytes()); err != nil {
		return nil, "", err
	}
	if err := tw.Close(); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("%s_投料记录.csv", work.BatchLot)
	return gbkBuf.Bytes(), filename, nil
}

// ArchiveWorkReport 报表归档到MinIO，返回对象名
func (s *ExportService) ArchiveWorkReport(ctx context.Context, workID string) (string, error) {
	if s.minioClient == nil {
		return "", fmt.Errorf("对象存储未配置，无法归档")
	}

	f, _, err := s.ExportWorkReport(ctx, workID)
	if err != nil {
		return "", err
	}
	work, err := s.workRepo.FindByID(ctx, workID)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return "", err
	}

	objectName := fmt.Sprintf("blending-reports/%s/%s.xlsx",
		time.Now().Format("2006/01"), work.BatchLot)
	_, err = s.minioClient.PutObject(ctx, s.bucket, objectName, &buf, int64(buf.Len()),
		minio.PutObjectOptions{ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"})
	if err != nil {
		return "", err
	}
	return objectName, nil
}

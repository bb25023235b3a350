package handler

import (
	"fmt"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-qms/internal/qms/service"
)

// ExportHandler 报表导出处理器
type ExportHandler struct {
	svc *service.ExportService
}

func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{svc: svc}
}

// ExportWorkReport 导出配料报表xlsx
// GET /api/v1/qms/blending-works/:id/export
func (h *ExportHandler) ExportWorkReport(c *gin.Context) {
	f, filename, err := h.svc.ExportWorkReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondBlendingError(c, err)
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition",
		fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(filename)))
	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "写入报表失败: "+err.Error())
	}
}

// ExportInputsCSV 导出投料CSV（GBK编码）
// GET /api/v1/qms/blending-works/:id/export-csv
func (h *ExportHandler) ExportInputsCSV(c *gin.Context) {
	data, filename, err := h.svc.ExportInputsCSV(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondBlendingError(c, err)
		return
	}

	c.Header("Content-Disposition",
		fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(filename)))
	c.Data(200, "text/csv; charset=gbk", data)
}

// ArchiveWorkReport 报表归档到对象存储
// POST /api/v1/qms/blending-works/:id/archive
func (h *ExportHandler) ArchiveWorkReport(c *gin.Context) {
	objectName, err := h.svc.ArchiveWorkReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondBlendingError(c, err)
		return
	}
	Success(c, gin.H{"object_name": objectName})
}

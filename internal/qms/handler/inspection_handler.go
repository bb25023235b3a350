package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-qms/internal/qms/service"
)

// InspectionHandler 来料检验处理器
type InspectionHandler struct {
	svc *service.InspectionService
}

func NewInspectionHandler(svc *service.InspectionService) *InspectionHandler {
	return &InspectionHandler{svc: svc}
}

// ListRecords 检验记录列表
// GET /api/v1/qms/inspections?powder_name=xxx&lot_number=xxx&final_result=xxx&category=xxx
func (h *InspectionHandler) ListRecords(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"powder_name":  c.Query("powder_name"),
		"lot_number":   c.Query("lot_number"),
		"final_result": c.Query("final_result"),
		"category":     c.Query("category"),
	}

	items, total, err := h.svc.ListRecords(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取检验记录失败: "+err.Error())
		return
	}
	paginate(c, items, total, page, pageSize)
}

// GetRecord 检验记录详情
// GET /api/v1/qms/inspections/:id
func (h *InspectionHandler) GetRecord(c *gin.Context) {
	rec, err := h.svc.GetRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "检验记录不存在")
		return
	}
	Success(c, rec)
}

// CreateRecord 录入检验结论
// POST /api/v1/qms/inspections
func (h *InspectionHandler) CreateRecord(c *gin.Context) {
	var req service.CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	rec, err := h.svc.CreateRecord(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		BadRequest(c, "录入检验结论失败: "+err.Error())
		return
	}
	Created(c, rec)
}

// UpdateResult 修订检验结论
// PUT /api/v1/qms/inspections/:id/result
func (h *InspectionHandler) UpdateResult(c *gin.Context) {
	var req service.UpdateResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	rec, err := h.svc.UpdateResult(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		respondBlendingError(c, err)
		return
	}
	Success(c, rec)
}

// DeleteRecord 删除检验记录（仅管理员）
// DELETE /api/v1/qms/inspections/:id
func (h *InspectionHandler) DeleteRecord(c *gin.Context) {
	if err := h.svc.DeleteRecord(c.Request.Context(), c.Param("id"), GetUserID(c)); err != nil {
		respondBlendingError(c, err)
		return
	}
	Success(c, nil)
}

package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-qms/internal/qms/blending"
	"github.com/bitfantasy/nimo-qms/internal/qms/repository"
	"github.com/bitfantasy/nimo-qms/internal/qms/service"
)

// BlendingHandler 配料作业处理器
type BlendingHandler struct {
	svc *service.BlendingService
}

func NewBlendingHandler(svc *service.BlendingService) *BlendingHandler {
	return &BlendingHandler{svc: svc}
}

// respondBlendingError 把配料域错误映射到响应码
func respondBlendingError(c *gin.Context, err error) {
	var recipeErr *blending.RecipeError
	var lotErr *blending.LotRejectedError

	switch {
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, "记录不存在")
	case errors.Is(err, blending.ErrBatchAlreadyCompleted):
		Conflict(c, err.Error())
	case errors.Is(err, blending.ErrAmbiguousLotLookup):
		BadRequest(c, err.Error())
	case errors.As(err, &recipeErr):
		UnprocessableEntity(c, recipeErr.Error())
	case errors.As(err, &lotErr):
		UnprocessableEntity(c, lotErr.Error())
	default:
		InternalError(c, err.Error())
	}
}

// ListWorks 配料作业列表
// GET /api/v1/qms/blending-works?status=xxx&product_name=xxx&batch_lot=xxx
func (h *BlendingHandler) ListWorks(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"status":       c.Query("status"),
		"product_name": c.Query("product_name"),
		"batch_lot":    c.Query("batch_lot"),
	}

	items, total, err := h.svc.ListWorks(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取配料作业列表失败: "+err.Error())
		return
	}
	paginate(c, items, total, page, pageSize)
}

// StartWork 开工
// POST /api/v1/qms/blending-works
func (h *BlendingHandler) StartWork(c *gin.Context) {
	var req service.StartWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	work, ws, err := h.svc.StartWork(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		respondBlendingError(c, err)
		return
	}

	Created(c, gin.H{
		"work":      work,
		"worksheet": ws,
	})
}

// GetWork 作业详情
// GET /api/v1/qms/blending-works/:id
func (h *BlendingHandler) GetWork(c *gin.Context) {
	detail, err := h.svc.GetWork(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondBlendingError(c, err)
		return
	}
	Success(c, detail)
}

// JudgeMaterialInput 判定一行粉末
// POST /api/v1/qms/blending-works/:id/judge
func (h *BlendingHandler) JudgeMaterialInput(c *gin.Context) {
	var req service.JudgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.svc.JudgeMaterialInput(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		respondBlendingError(c, err)
		return
	}
	Success(c, result)
}

// CompleteWork 完成作业
// POST /api/v1/qms/blending-works/:id/complete
func (h *BlendingHandler) CompleteWork(c *gin.Context) {
	work, err := h.svc.CompleteWork(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		respondBlendingError(c, err)
		return
	}
	Success(c, work)
}

// DeleteWork 删除作业（仅管理员）
// DELETE /api/v1/qms/blending-works/:id
func (h *BlendingHandler) DeleteWork(c *gin.Context) {
	if err := h.svc.DeleteWork(c.Request.Context(), c.Param("id"), GetUserID(c)); err != nil {
		respondBlendingError(c, err)
		return
	}
	Success(c, nil)
}

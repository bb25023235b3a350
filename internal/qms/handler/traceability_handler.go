package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-qms/internal/qms/service"
)

// TraceabilityHandler 批次追溯处理器
type TraceabilityHandler struct {
	svc *service.TraceabilityService
}

func NewTraceabilityHandler(svc *service.TraceabilityService) *TraceabilityHandler {
	return &TraceabilityHandler{svc: svc}
}

// Backward 反向追溯：批次LOT → 原料LOT
// GET /api/v1/qms/trace/backward/:batchLot
func (h *TraceabilityHandler) Backward(c *gin.Context) {
	trace, err := h.svc.Backward(c.Request.Context(), c.Param("batchLot"))
	if err != nil {
		respondBlendingError(c, err)
		return
	}
	Success(c, trace)
}

// Forward 正向追溯：原料LOT → 批次
// GET /api/v1/qms/trace/forward/:lotNumber?powder_name=xxx
func (h *TraceabilityHandler) Forward(c *gin.Context) {
	items, err := h.svc.Forward(c.Request.Context(), c.Param("lotNumber"), c.Query("powder_name"))
	if err != nil {
		respondBlendingError(c, err)
		return
	}
	Success(c, items)
}

// Search 综合检索：LOT号同时查批次LOT和原料LOT
// GET /api/v1/qms/trace/search?lot=xxx
func (h *TraceabilityHandler) Search(c *gin.Context) {
	lot := c.Query("lot")
	if lot == "" {
		BadRequest(c, "lot 不能为空")
		return
	}

	hits, err := h.svc.Search(c.Request.Context(), lot)
	if err != nil {
		respondBlendingError(c, err)
		return
	}
	Success(c, hits)
}

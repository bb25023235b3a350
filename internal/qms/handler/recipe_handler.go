package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-qms/internal/qms/service"
)

// RecipeHandler 配方处理器
type RecipeHandler struct {
	svc *service.RecipeService
}

func NewRecipeHandler(svc *service.RecipeService) *RecipeHandler {
	return &RecipeHandler{svc: svc}
}

// ListProducts 有配方的产品列表
// GET /api/v1/qms/recipes
func (h *RecipeHandler) ListProducts(c *gin.Context) {
	products, err := h.svc.ListProducts(c.Request.Context())
	if err != nil {
		InternalError(c, "获取产品列表失败: "+err.Error())
		return
	}
	Success(c, products)
}

// GetRecipe 某产品的配方
// GET /api/v1/qms/recipes/:product
func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	lines, err := h.svc.GetRecipe(c.Request.Context(), c.Param("product"))
	if err != nil {
		respondBlendingError(c, err)
		return
	}
	Success(c, lines)
}

// SaveRecipe 整产品保存配方（仅管理员）
// POST /api/v1/qms/recipes
func (h *RecipeHandler) SaveRecipe(c *gin.Context) {
	var req service.SaveRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	lines, err := h.svc.SaveRecipe(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		respondBlendingError(c, err)
		return
	}
	Created(c, lines)
}

// PreviewWorksheet 开工前试算分配表
// GET /api/v1/qms/recipes/:product/worksheet?target_total=5000&main.纯铁粉=3000
func (h *RecipeHandler) PreviewWorksheet(c *gin.Context) {
	targetTotal, err := strconv.ParseFloat(c.Query("target_total"), 64)
	if err != nil || targetTotal <= 0 {
		BadRequest(c, "target_total 必须为正数")
		return
	}

	mainWeights := make(map[string]float64)
	for key, vals := range c.Request.URL.Query() {
		if len(key) > 5 && key[:5] == "main." && len(vals) > 0 {
			if w, err := strconv.ParseFloat(vals[0], 64); err == nil {
				mainWeights[key[5:]] = w
			}
		}
	}

	ws, err := h.svc.PreviewWorksheet(c.Request.Context(), c.Param("product"), targetTotal, mainWeights)
	if err != nil {
		respondBlendingError(c, err)
		return
	}
	Success(c, ws)
}

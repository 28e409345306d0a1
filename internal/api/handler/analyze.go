package handler

import (
	"errors"
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/food_go_server/config"
	"github.com/qs3c/food_go_server/internal/model"
	"github.com/qs3c/food_go_server/internal/model/dto"
	"github.com/qs3c/food_go_server/internal/pkg/imagesource"
	"github.com/qs3c/food_go_server/internal/pkg/response"
	"github.com/qs3c/food_go_server/internal/service"
)

// AnalyzeHandler 同步分析接口。不落库不排队，调用方等待分析完成。
type AnalyzeHandler struct {
	resolver  *imagesource.Resolver
	vision    *service.VisionService
	nutrition *service.NutritionService
	cfg       *config.Config
}

func NewAnalyzeHandler(
	resolver *imagesource.Resolver,
	vision *service.VisionService,
	nutrition *service.NutritionService,
	cfg *config.Config,
) *AnalyzeHandler {
	return &AnalyzeHandler{
		resolver:  resolver,
		vision:    vision,
		nutrition: nutrition,
		cfg:       cfg,
	}
}

// Analyze 同步识别图片中的菜品
// POST /api/v1/analyze
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	var req dto.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	src := imagesource.Source{
		Path:     req.ImagePath,
		Base64:   req.ImageBase64,
		Filename: req.Filename,
	}
	if err := src.Validate(); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	imagePath, temporary, err := h.resolver.Resolve(c.Request.Context(), src)
	if err != nil {
		response.ParamError(c, err.Error())
		return
	}
	if temporary {
		defer func() {
			if err := os.Remove(imagePath); err != nil {
				log.Printf("Failed to remove temp image %s: %v", imagePath, err)
			}
		}()
	}

	// 识别失败体现在返回值的 error 字段里，HTTP 层面仍是成功
	result := h.vision.Analyze(c.Request.Context(), imagePath)
	response.Success(c, result)
}

// AnalyzeNutrients 同步查询单道菜的营养成分
// POST /api/v1/analyze-nutrients
func (h *AnalyzeHandler) AnalyzeNutrients(c *gin.Context) {
	var req dto.AnalyzeNutrientsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	amount := req.Amount
	if amount == 0 {
		amount = 100
	}
	unit := req.Unit
	if unit == "" {
		unit = model.UnitGram
	}

	record, err := h.nutrition.Lookup(c.Request.Context(), req.Dish, amount, unit)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrLookupUnavailable),
			errors.Is(err, service.ErrAnalysisUnavailable):
			response.UpstreamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, record)
}

// Health 健康检查
// GET /api/v1/health
func (h *AnalyzeHandler) Health(c *gin.Context) {
	keySet := h.cfg.OpenAI.APIKey != ""
	edamamSet := h.cfg.Edamam.AppID != "" && h.cfg.Edamam.AppKey != ""

	response.Success(c, &dto.HealthResponse{
		Status:                 "ok",
		ImageAnalyzerReady:     keySet,
		NutrientsAnalyzerReady: keySet && edamamSet,
		OpenAIKeySet:           keySet,
	})
}

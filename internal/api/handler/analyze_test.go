package handler

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/food_go_server/config"
	"github.com/qs3c/food_go_server/internal/pkg/edamam"
	"github.com/qs3c/food_go_server/internal/pkg/imagesource"
	"github.com/qs3c/food_go_server/internal/pkg/response"
	"github.com/qs3c/food_go_server/internal/service"
)

// fakeLLM 固定返回内容的模型客户端
type fakeLLM struct {
	visionResp string
	visionErr  error
	chatResp   string
	chatErr    error
}

func (f *fakeLLM) Chat(ctx context.Context, opts config.ModelConfig, system, user string) (string, error) {
	return f.chatResp, f.chatErr
}

func (f *fakeLLM) ChatVision(ctx context.Context, opts config.ModelConfig, prompt, imageURL string) (string, error) {
	return f.visionResp, f.visionErr
}

// fakeFoodSource 固定返回候选的数据源
type fakeFoodSource struct {
	matches []edamam.FoodMatch
	err     error
}

func (f *fakeFoodSource) Search(ctx context.Context, query string) ([]edamam.FoodMatch, error) {
	return f.matches, f.err
}

func setupAnalyzeHandler(t *testing.T, llm *fakeLLM, foods *fakeFoodSource) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		OpenAI: config.OpenAIConfig{APIKey: "sk-test"},
		Edamam: config.EdamamConfig{AppID: "id", AppKey: "key"},
		Upload: config.UploadConfig{
			TempDir:           t.TempDir(),
			AllowedExtensions: []string{".jpg", ".jpeg", ".png"},
		},
	}

	resolver := imagesource.NewResolver(&cfg.Upload)
	vision := service.NewVisionService(llm, cfg)
	nutrition := service.NewNutritionService(foods, llm, cfg)
	handler := NewAnalyzeHandler(resolver, vision, nutrition, cfg)

	router := gin.New()
	router.POST("/api/v1/analyze", handler.Analyze)
	router.POST("/api/v1/analyze-nutrients", handler.AnalyzeNutrients)
	router.GET("/api/v1/health", handler.Health)
	return router
}

func TestAnalyzeHandler_Analyze(t *testing.T) {
	llm := &fakeLLM{
		visionResp: `{"dishes":[{"name":"煎蛋","name_en":"Fried egg","unit_type":"piece","amount":2}],"confidence":0.88}`,
	}
	router := setupAnalyzeHandler(t, llm, &fakeFoodSource{})

	encoded := base64.StdEncoding.EncodeToString([]byte("fake image"))
	w, resp := doJSON(t, router, "POST", "/api/v1/analyze", gin.H{
		"image_base64": encoded,
		"filename":     "breakfast.jpg",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	data := resp.Data.(map[string]interface{})
	dishes := data["dishes"].([]interface{})
	require.Len(t, dishes, 1)
	dish := dishes[0].(map[string]interface{})
	assert.Equal(t, "Fried egg", dish["name_en"])
	assert.Equal(t, 0.88, data["confidence"])
	_, hasError := data["error"]
	assert.False(t, hasError)
}

func TestAnalyzeHandler_Analyze_VisionFailure(t *testing.T) {
	// 识别失败不报 HTTP 错误，失败原因在返回体的 error 字段里
	llm := &fakeLLM{visionResp: "this is not json"}
	router := setupAnalyzeHandler(t, llm, &fakeFoodSource{})

	encoded := base64.StdEncoding.EncodeToString([]byte("fake image"))
	w, resp := doJSON(t, router, "POST", "/api/v1/analyze", gin.H{
		"image_base64": encoded,
		"filename":     "lunch.jpg",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	data := resp.Data.(map[string]interface{})
	assert.NotEmpty(t, data["error"])
}

func TestAnalyzeHandler_Analyze_InvalidSource(t *testing.T) {
	router := setupAnalyzeHandler(t, &fakeLLM{}, &fakeFoodSource{})

	w, resp := doJSON(t, router, "POST", "/api/v1/analyze", gin.H{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestAnalyzeHandler_AnalyzeNutrients(t *testing.T) {
	llm := &fakeLLM{
		chatResp: `[{"id":0,"dish_name":"Rice, cooked","calories":130,"protein":2.7,"fat":0.3,"carbohydrates":28.2,"fiber":0.4}]`,
	}
	foods := &fakeFoodSource{matches: []edamam.FoodMatch{
		{Label: "Rice, cooked", Nutrients: edamam.Nutrients{Energy: 130}},
	}}
	router := setupAnalyzeHandler(t, llm, foods)

	w, resp := doJSON(t, router, "POST", "/api/v1/analyze-nutrients", gin.H{
		"dish":   "rice",
		"amount": 100,
		"unit":   "gram",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "Rice, cooked", data["dish_name"])
	assert.Equal(t, 130.0, data["calories"])
	assert.Equal(t, 100.0, data["amount"])
	assert.Equal(t, "gram", data["unit"])
}

func TestAnalyzeHandler_AnalyzeNutrients_Defaults(t *testing.T) {
	llm := &fakeLLM{
		chatResp: `[{"id":0,"dish_name":"Rice, cooked","calories":130,"protein":2.7,"fat":0.3,"carbohydrates":28.2,"fiber":0.4}]`,
	}
	foods := &fakeFoodSource{matches: []edamam.FoodMatch{
		{Label: "Rice, cooked", Nutrients: edamam.Nutrients{Energy: 130}},
	}}
	router := setupAnalyzeHandler(t, llm, foods)

	// 不带 amount/unit 时默认 100 克
	w, resp := doJSON(t, router, "POST", "/api/v1/analyze-nutrients", gin.H{
		"dish": "rice",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, 100.0, data["amount"])
	assert.Equal(t, "gram", data["unit"])
}

func TestAnalyzeHandler_AnalyzeNutrients_MissingDish(t *testing.T) {
	router := setupAnalyzeHandler(t, &fakeLLM{}, &fakeFoodSource{})

	w, resp := doJSON(t, router, "POST", "/api/v1/analyze-nutrients", gin.H{
		"amount": 100,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestAnalyzeHandler_AnalyzeNutrients_UpstreamFailure(t *testing.T) {
	foods := &fakeFoodSource{err: assert.AnError}
	router := setupAnalyzeHandler(t, &fakeLLM{}, foods)

	w, resp := doJSON(t, router, "POST", "/api/v1/analyze-nutrients", gin.H{
		"dish": "rice",
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, response.CodeUpstreamError, resp.Code)
}

func TestAnalyzeHandler_Health(t *testing.T) {
	router := setupAnalyzeHandler(t, &fakeLLM{}, &fakeFoodSource{})

	w, resp := doJSON(t, router, "GET", "/api/v1/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, true, data["image_analyzer_ready"])
	assert.Equal(t, true, data["nutrients_analyzer_ready"])
	assert.Equal(t, true, data["openai_key_set"])
}

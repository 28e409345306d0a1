package dto

// AnalyzeRequest 同步图片分析请求（不走任务队列）
type AnalyzeRequest struct {
	ImagePath   string `json:"image_path,omitempty" binding:"omitempty,max=500"`
	ImageBase64 string `json:"image_base64,omitempty"`
	Filename    string `json:"filename,omitempty" binding:"omitempty,max=260"`
}

// AnalyzeNutrientsRequest 同步单菜营养分析请求
type AnalyzeNutrientsRequest struct {
	Dish   string  `json:"dish" binding:"required,max=200"`
	Amount float64 `json:"amount" binding:"omitempty,gt=0"`
	Unit   string  `json:"unit" binding:"omitempty,oneof=piece gram cup chunk slice"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status                 string `json:"status"`
	ImageAnalyzerReady     bool   `json:"image_analyzer_ready"`
	NutrientsAnalyzerReady bool   `json:"nutrients_analyzer_ready"`
	OpenAIKeySet           bool   `json:"openai_key_set"`
}

package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qs3c/food_go_server/config"
	"github.com/qs3c/food_go_server/internal/model"
)

// ChatClient 语言模型客户端。两个分析服务共用一个实现，测试时注入桩。
type ChatClient interface {
	Chat(ctx context.Context, opts config.ModelConfig, system, user string) (string, error)
	ChatVision(ctx context.Context, opts config.ModelConfig, prompt, imageURL string) (string, error)
}

// 视觉识别提示词。要求模型按固定 JSON 结构返回中英双语菜名。
const visionPrompt = `你是营养与烹饪领域的专家。分析这张食物图片，识别其中的所有菜品和食物。

对每道菜给出：
1. name：中文名称
2. name_en：英文名称（用于食品数据库检索）
3. description：中文简要描述
4. description_en：英文简要描述
5. unit_type：计量单位，只能是 piece、gram、cup、chunk、slice 之一
   （整个的食物如鸡蛋、苹果用 piece，散装或按重量估的用 gram，饮品和汤用 cup，块状如红烧肉用 chunk，片状如面包、披萨用 slice）
6. amount：按 unit_type 计的数量估计（gram 时为克数）

规则：
- 尽量准确识别菜品，份量估计要符合实际
- 多个相同的食物合并为一条，amount 填总数
- confidence 为整体识别的置信度，0 到 1 之间

只返回如下格式的 JSON，不要任何其它文字：
{"dishes":[{"name":"...","name_en":"...","description":"...","description_en":"...","unit_type":"...","amount":0}],"confidence":0.0}`

// VisionService 食物图片识别服务
type VisionService struct {
	llm         ChatClient
	opts        config.ModelConfig
	allowedExts map[string]struct{}
}

func NewVisionService(llm ChatClient, cfg *config.Config) *VisionService {
	exts := make(map[string]struct{}, len(cfg.Upload.AllowedExtensions))
	for _, ext := range cfg.Upload.AllowedExtensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	return &VisionService{
		llm:         llm,
		opts:        cfg.OpenAI.Vision,
		allowedExts: exts,
	}
}

// Analyze 识别图片中的菜品。任何失败都体现为返回值里的 Error 字段，
// 不抛错误；调用方必须检查 Error。单次失败不重试。
func (s *VisionService) Analyze(ctx context.Context, imagePath string) *model.VisionResult {
	ext := strings.ToLower(filepath.Ext(imagePath))
	if _, ok := s.allowedExts[ext]; !ok {
		return errorResult(fmt.Sprintf("不支持的图片格式: %s", ext))
	}

	dataURL, err := encodeImage(imagePath, ext)
	if err != nil {
		return errorResult(err.Error())
	}

	raw, err := s.llm.ChatVision(ctx, s.opts, visionPrompt, dataURL)
	if err != nil {
		return errorResult(err.Error())
	}

	result, err := parseVisionResponse(raw)
	if err != nil {
		return errorResult(err.Error())
	}

	return result
}

func errorResult(msg string) *model.VisionResult {
	return &model.VisionResult{
		Dishes:     []model.DetectedDish{},
		Confidence: 0,
		Error:      msg,
	}
}

// encodeImage 把图片文件编码为 data URL
func encodeImage(imagePath, ext string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("读取图片失败: %v", err)
	}

	mime := "image/jpeg"
	switch ext {
	case ".png":
		mime = "image/png"
	case ".gif":
		mime = "image/gif"
	case ".webp":
		mime = "image/webp"
	}

	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}

// parseVisionResponse 严格解析模型输出。任何不符合约定结构的响应
// 一律视为失败，不做尽力而为的部分解析。
func parseVisionResponse(raw string) (*model.VisionResult, error) {
	cleaned := StripCodeFence(raw)

	var result model.VisionResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("视觉模型返回无法解析: %v", err)
	}

	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("视觉模型返回的 confidence 超出范围: %v", result.Confidence)
	}
	for i, d := range result.Dishes {
		if _, ok := model.ValidUnitTypes[d.UnitType]; !ok {
			return nil, fmt.Errorf("视觉模型返回了未知的 unit_type: %q (dish %d)", d.UnitType, i)
		}
		if d.Amount <= 0 {
			return nil, fmt.Errorf("视觉模型返回的 amount 非法: %v (dish %d)", d.Amount, i)
		}
	}

	if result.Dishes == nil {
		result.Dishes = []model.DetectedDish{}
	}
	result.Error = ""

	return &result, nil
}

// StripCodeFence 去掉模型输出外层的 markdown 代码块标记
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

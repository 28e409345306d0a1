package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/qs3c/food_go_server/config"
	"github.com/qs3c/food_go_server/internal/model"
	"github.com/qs3c/food_go_server/internal/pkg/edamam"
)

var (
	// ErrLookupUnavailable 食品数据库查询失败（网络错误或无匹配结果）
	ErrLookupUnavailable = errors.New("食品数据库查询失败")
	// ErrAnalysisUnavailable 营养换算失败（模型调用失败或返回无法解析）
	ErrAnalysisUnavailable = errors.New("营养换算失败")
)

// FoodSource 食品营养数据源
type FoodSource interface {
	Search(ctx context.Context, query string) ([]edamam.FoodMatch, error)
}

const nutrientsSystemPrompt = `你是营养计算助手。给定若干菜品、每道菜在食品数据库中的候选匹配（含每 100 克营养值和常见份量的克重），以及用户要求的数量和单位，为每道菜：

1. 从候选中选出最贴合菜名的一条（注意生熟状态，cooked 对应熟食）
2. 把数量换算成克。优先使用候选自带的份量克重；没有时按经验估计，
   常用缺省值：piece 约 100 克，cup 约 240 克，chunk 约 50 克，
   slice 约 30 克，gram 即克数本身
3. 按换算出的克数折算总营养值

对输入里的每一项都必须输出一条结果，id 与输入一致，顺序与输入一致。
只返回如下格式的 JSON 数组，不要任何其它文字：
[{"id":0,"dish_name":"...","calories":0.0,"protein":0.0,"fat":0.0,"carbohydrates":0.0,"fiber":0.0}]`

// NutritionService 营养分析服务。先查食品数据库取候选，再由模型换算。
type NutritionService struct {
	foods FoodSource
	llm   ChatClient
	opts  config.ModelConfig
}

func NewNutritionService(foods FoodSource, llm ChatClient, cfg *config.Config) *NutritionService {
	return &NutritionService{
		foods: foods,
		llm:   llm,
		opts:  cfg.OpenAI.Nutrients,
	}
}

// LookupItem 一次营养查询的输入
type LookupItem struct {
	Dish   string
	Amount float64
	Unit   string
}

// lookupCandidate 送入模型的单道菜：查询项加数据库候选
type lookupCandidate struct {
	ID         int                `json:"id"`
	Dish       string             `json:"dish"`
	Amount     float64            `json:"amount"`
	Unit       string             `json:"unit"`
	Candidates []edamam.FoodMatch `json:"candidates"`
}

type rescaledEntry struct {
	ID            int     `json:"id"`
	DishName      string  `json:"dish_name"`
	Calories      float64 `json:"calories"`
	Protein       float64 `json:"protein"`
	Fat           float64 `json:"fat"`
	Carbohydrates float64 `json:"carbohydrates"`
	Fiber         float64 `json:"fiber"`
}

// Lookup 查询单道菜的营养值
func (s *NutritionService) Lookup(ctx context.Context, dish string, amount float64, unit string) (*model.NutrientRecord, error) {
	matches, err := s.search(ctx, dish)
	if err != nil {
		return nil, err
	}

	entries, err := s.rescale(ctx, []lookupCandidate{{
		ID:         0,
		Dish:       dish,
		Amount:     amount,
		Unit:       unit,
		Candidates: matches,
	}})
	if err != nil {
		return nil, err
	}

	record := toRecord(entries[0], amount, unit)
	return &record, nil
}

// LookupBatch 批量查询。每道菜独立查数据库，换算合并为一次模型调用；
// 单道菜的失败记入该条的 Error 字段，不影响其它条目。
// 返回切片与 items 等长且顺序一致。
func (s *NutritionService) LookupBatch(ctx context.Context, items []LookupItem) []model.NutrientRecord {
	records := make([]model.NutrientRecord, len(items))
	var candidates []lookupCandidate

	for i, item := range items {
		records[i] = model.NutrientRecord{
			DishName: item.Dish,
			Amount:   item.Amount,
			Unit:     item.Unit,
		}

		matches, err := s.search(ctx, item.Dish)
		if err != nil {
			records[i].Error = err.Error()
			continue
		}
		candidates = append(candidates, lookupCandidate{
			ID:         i,
			Dish:       item.Dish,
			Amount:     item.Amount,
			Unit:       item.Unit,
			Candidates: matches,
		})
	}

	if len(candidates) == 0 {
		return records
	}

	entries, err := s.rescale(ctx, candidates)
	if err != nil {
		for _, c := range candidates {
			records[c.ID].Error = err.Error()
		}
		return records
	}

	resolved := make(map[int]bool, len(entries))
	for _, e := range entries {
		if e.ID < 0 || e.ID >= len(records) || resolved[e.ID] {
			continue
		}
		resolved[e.ID] = true
		records[e.ID] = toRecord(e, records[e.ID].Amount, records[e.ID].Unit)
	}
	for _, c := range candidates {
		if !resolved[c.ID] {
			records[c.ID].Error = fmt.Sprintf("%v: 模型未返回该条结果", ErrAnalysisUnavailable)
		}
	}

	return records
}

func (s *NutritionService) search(ctx context.Context, dish string) ([]edamam.FoodMatch, error) {
	matches, err := s.foods.Search(ctx, rewriteQuery(dish))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: 未找到匹配食品: %s", ErrLookupUnavailable, dish)
	}
	return matches, nil
}

// rescale 调用模型换算营养值并严格校验
func (s *NutritionService) rescale(ctx context.Context, candidates []lookupCandidate) ([]rescaledEntry, error) {
	payload, err := json.Marshal(candidates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}

	raw, err := s.llm.Chat(ctx, s.opts, nutrientsSystemPrompt, string(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}

	var entries []rescaledEntry
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &entries); err != nil {
		return nil, fmt.Errorf("%w: 模型返回无法解析: %v", ErrAnalysisUnavailable, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: 模型返回为空", ErrAnalysisUnavailable)
	}
	for _, e := range entries {
		if e.Calories < 0 || e.Protein < 0 || e.Fat < 0 || e.Carbohydrates < 0 || e.Fiber < 0 {
			return nil, fmt.Errorf("%w: 模型返回了负的营养值", ErrAnalysisUnavailable)
		}
	}

	return entries, nil
}

func toRecord(e rescaledEntry, amount float64, unit string) model.NutrientRecord {
	return model.NutrientRecord{
		DishName:      e.DishName,
		Amount:        amount,
		Unit:          unit,
		Calories:      round1(e.Calories),
		Protein:       round1(e.Protein),
		Fat:           round1(e.Fat),
		Carbohydrates: round1(e.Carbohydrates),
		Fiber:         round1(e.Fiber),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// rewriteQuery 依据菜名提示的生熟状态补全检索词，提高数据库命中质量
func rewriteQuery(dish string) string {
	lower := strings.ToLower(dish)
	if strings.Contains(lower, "cooked") || strings.Contains(lower, "raw") {
		return dish
	}
	for _, hint := range []string{"boiled", "steamed", "fried", "grilled", "roasted", "煮", "蒸", "炒", "烤", "炸", "熟"} {
		if strings.Contains(lower, hint) {
			return dish + " cooked"
		}
	}
	if strings.Contains(lower, "生") {
		return dish + " raw"
	}
	return dish
}

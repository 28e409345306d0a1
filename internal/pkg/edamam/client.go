package edamam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/qs3c/food_go_server/config"
)

// Client Edamam Food Database 查询客户端。
// 返回的营养数值统一按 100g 基准，换算到具体份量由调用方完成。
type Client struct {
	httpClient *http.Client
	baseURL    string
	appID      string
	appKey     string
	maxResults int
}

// Nutrients 100g 基准的宏量营养素
type Nutrients struct {
	Energy  float64 `json:"ENERC_KCAL"` // 千卡
	Protein float64 `json:"PROCNT"`     // 克
	Fat     float64 `json:"FAT"`        // 克
	Carbs   float64 `json:"CHOCDF"`     // 克
	Fiber   float64 `json:"FIBTG"`      // 克
}

// Measure 数据库给出的份量单位（如 serving、cup），Weight 为对应克数
type Measure struct {
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

// FoodMatch 一条候选食品记录
type FoodMatch struct {
	Label     string    `json:"label"`
	Category  string    `json:"category"`
	Nutrients Nutrients `json:"nutrients"`
	Measures  []Measure `json:"measures,omitempty"`
}

type parserResponse struct {
	Text   string `json:"text"`
	Parsed []struct {
		Food foodEntry `json:"food"`
	} `json:"parsed"`
	Hints []struct {
		Food     foodEntry `json:"food"`
		Measures []Measure `json:"measures"`
	} `json:"hints"`
}

type foodEntry struct {
	FoodID    string    `json:"foodId"`
	Label     string    `json:"label"`
	Category  string    `json:"category"`
	Nutrients Nutrients `json:"nutrients"`
}

func NewClient(cfg *config.EdamamConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL:    cfg.BaseURL,
		appID:      cfg.AppID,
		appKey:     cfg.AppKey,
		maxResults: cfg.MaxResults,
	}
}

// Search 按名称检索食品，返回不超过 max_results 条候选
func (c *Client) Search(ctx context.Context, query string) ([]FoodMatch, error) {
	params := url.Values{}
	params.Set("app_id", c.appID)
	params.Set("app_key", c.appKey)
	params.Set("ingr", query)
	params.Set("nutrition-type", "logging")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query edamam: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("edamam API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var parsed parserResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	matches := make([]FoodMatch, 0, c.maxResults)

	// parsed 是精确匹配，排在前面
	for _, p := range parsed.Parsed {
		matches = append(matches, FoodMatch{
			Label:     p.Food.Label,
			Category:  p.Food.Category,
			Nutrients: p.Food.Nutrients,
		})
	}
	for _, h := range parsed.Hints {
		if len(matches) >= c.maxResults {
			break
		}
		matches = append(matches, FoodMatch{
			Label:     h.Food.Label,
			Category:  h.Food.Category,
			Nutrients: h.Food.Nutrients,
			Measures:  h.Measures,
		})
	}

	if len(matches) > c.maxResults {
		matches = matches[:c.maxResults]
	}

	return matches, nil
}

package model

// 计量单位，与视觉模型约定的五种取值
const (
	UnitPiece = "piece"
	UnitGram  = "gram"
	UnitCup   = "cup"
	UnitChunk = "chunk"
	UnitSlice = "slice"
)

// ValidUnitTypes 视觉结果允许的 unit_type 集合
var ValidUnitTypes = map[string]struct{}{
	UnitPiece: {},
	UnitGram:  {},
	UnitCup:   {},
	UnitChunk: {},
	UnitSlice: {},
}

// UnitGrams 无份量元数据时的单位换算兜底（克）
var UnitGrams = map[string]float64{
	UnitPiece: 100,
	UnitGram:  1,
	UnitCup:   240,
	UnitChunk: 50,
	UnitSlice: 30,
}

// DetectedDish 视觉识别出的一道菜。创建后不再修改，作为营养分析的输入。
type DetectedDish struct {
	Name          string  `json:"name"`    // 本地语言名称
	NameEN        string  `json:"name_en"` // 英文名称，供食品数据库检索
	Description   string  `json:"description"`
	DescriptionEN string  `json:"description_en"`
	UnitType      string  `json:"unit_type"` // piece, gram, cup, chunk, slice
	Amount        float64 `json:"amount"`
}

// UsableName 营养查询用的名称，优先英文；两种名称都为空时返回空串
func (d *DetectedDish) UsableName() string {
	if d.NameEN != "" {
		return d.NameEN
	}
	return d.Name
}

// VisionResult 一次视觉分析的结果。失败时 Error 非空、Dishes 为空、Confidence 为 0，
// 调用方必须检查 Error 字段而不是依赖错误返回值。
type VisionResult struct {
	Dishes     []DetectedDish `json:"dishes"`
	Confidence float64        `json:"confidence"`
	Error      string         `json:"error,omitempty"`
}

// NutrientRecord 按请求份量换算后的营养成分。每次从上游 100g 基准数据重新计算。
type NutrientRecord struct {
	DishName      string  `json:"dish_name"`
	Amount        float64 `json:"amount"`
	Unit          string  `json:"unit"`
	Calories      float64 `json:"calories"`
	Protein       float64 `json:"protein"`
	Fat           float64 `json:"fat"`
	Carbohydrates float64 `json:"carbohydrates"`
	Fiber         float64 `json:"fiber"`
	Error         string  `json:"error,omitempty"` // 单项失败不影响批次内其它条目
}

// AnalysisResult 任务终态 done 时保存的结果载荷
type AnalysisResult struct {
	Dishes      []DetectedDish   `json:"dishes"`
	Confidence  float64          `json:"confidence"`
	TotalDishes int              `json:"total_dishes"`
	Nutrients   []NutrientRecord `json:"nutrients,omitempty"`
}

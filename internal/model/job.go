package model

import (
	"time"
)

// 任务状态
const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
	JobStatusError      = "error"
)

// 分析模式
const (
	ModeAnalysis = "analysis" // 仅识别
	ModeFull     = "full"     // 识别 + 营养分析
)

// 图片来源类型
const (
	SourcePath   = "path"
	SourceBase64 = "base64"
	SourceURL    = "url"
)

// AnalysisJob 一次图片分析任务。参数列在创建后不再修改，重跑会建新任务。
type AnalysisJob struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	Status         string     `gorm:"size:20;default:queued;index" json:"status"` // queued, processing, done, error
	Mode           string     `gorm:"size:20;not null" json:"mode"`
	SourceType     string     `gorm:"size:20;not null" json:"source_type"` // path, base64, url
	ImagePath      string     `gorm:"size:500" json:"image_path,omitempty"`
	ImageURL       string     `gorm:"size:1000" json:"image_url,omitempty"`
	ImageBase64    string     `gorm:"type:text" json:"-"`
	Filename       string     `gorm:"size:260" json:"filename,omitempty"`
	Result         string     `gorm:"type:text" json:"-"` // 终态 done 时的结果 JSON
	ResultURL      string     `gorm:"size:500" json:"result_url,omitempty"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ElapsedSeconds int        `json:"elapsed_seconds,omitempty"`
}

func (AnalysisJob) TableName() string {
	return "analysis_jobs"
}

// Terminal 是否已到终态
func (j *AnalysisJob) Terminal() bool {
	return j.Status == JobStatusDone || j.Status == JobStatusError
}

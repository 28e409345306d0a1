package dto

import "github.com/qs3c/food_go_server/internal/model"

// SubmitJobRequest 提交分析任务请求，图片来源三选一
type SubmitJobRequest struct {
	ImagePath   string `json:"image_path,omitempty" binding:"omitempty,max=500"`
	ImageBase64 string `json:"image_base64,omitempty"`
	Filename    string `json:"filename,omitempty" binding:"omitempty,max=260"`
	ImageURL    string `json:"image_url,omitempty" binding:"omitempty,url"`
	Mode        string `json:"mode" binding:"omitempty,oneof=analysis full"`
}

// SubmitJobResponse 提交分析任务响应
type SubmitJobResponse struct {
	JobID  int64  `json:"job_id"`
	Status string `json:"status"`
}

// JobDetail 任务详情。Result 与 Error 互斥，客户端按 Error 是否存在判断结果。
type JobDetail struct {
	ID             int64                 `json:"id"`
	Status         string                `json:"status"`
	Mode           string                `json:"mode"`
	SourceType     string                `json:"source_type"`
	Error          string                `json:"error,omitempty"`
	Result         *model.AnalysisResult `json:"result,omitempty"`
	ResultURL      string                `json:"result_url,omitempty"`
	CreatedAt      string                `json:"created_at"`
	UpdatedAt      string                `json:"updated_at"`
	StartedAt      string                `json:"started_at,omitempty"`
	CompletedAt    string                `json:"completed_at,omitempty"`
	ElapsedSeconds int                   `json:"elapsed_seconds,omitempty"`
}

// JobListItem 任务列表项
type JobListItem struct {
	ID        int64  `json:"id"`
	Status    string `json:"status"`
	Mode      string `json:"mode"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

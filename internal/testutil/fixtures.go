package testutil

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/food_go_server/internal/model"
)

// TestJob 创建测试任务
func TestJob(t *testing.T, db *gorm.DB, opts ...func(*model.AnalysisJob)) *model.AnalysisJob {
	t.Helper()

	job := &model.AnalysisJob{
		Status:     model.JobStatusQueued,
		Mode:       model.ModeFull,
		SourceType: model.SourcePath,
		ImagePath:  "/tmp/test_food.jpg",
	}

	for _, opt := range opts {
		opt(job)
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}

	return job
}

// WithStatus 设置任务状态
func WithStatus(status string) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.Status = status
	}
}

// WithMode 设置分析模式
func WithMode(mode string) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.Mode = mode
	}
}

// WithBase64Source 设置 base64 图片来源
func WithBase64Source(data, filename string) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.SourceType = model.SourceBase64
		j.ImagePath = ""
		j.ImageBase64 = data
		j.Filename = filename
	}
}

// WithURLSource 设置 URL 图片来源
func WithURLSource(url string) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.SourceType = model.SourceURL
		j.ImagePath = ""
		j.ImageURL = url
	}
}

// WithResult 设置任务为完成状态并附结果
func WithResult(resultJSON string) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		now := time.Now()
		j.Status = model.JobStatusDone
		j.Result = resultJSON
		j.StartedAt = &now
		j.CompletedAt = &now
	}
}

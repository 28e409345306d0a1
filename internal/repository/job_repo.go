package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/food_go_server/internal/model"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.AnalysisJob) error {
	return r.db.Create(job).Error
}

func (r *JobRepository) GetByID(id int64) (*model.AnalysisJob, error) {
	var job model.AnalysisJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkProcessing 置为 processing 并记录开始时间。
// 必须在任何外部调用之前落库，崩溃时留下可见的中间状态。
func (r *JobRepository) MarkProcessing(id int64) error {
	now := time.Now()
	result := r.db.Model(&model.AnalysisJob{}).
		Where("id = ? AND status = ?", id, model.JobStatusQueued).
		Updates(map[string]interface{}{
			"status":     model.JobStatusProcessing,
			"started_at": &now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Complete 置为终态 done 并写入结果。状态和结果在同一条 UPDATE 里落库，
// 不允许出现结果已写而状态未变的中间态。
func (r *JobRepository) Complete(id int64, resultJSON, resultURL string, startedAt *time.Time) error {
	now := time.Now()
	values := map[string]interface{}{
		"status":       model.JobStatusDone,
		"result":       resultJSON,
		"result_url":   resultURL,
		"completed_at": &now,
	}
	if startedAt != nil {
		values["elapsed_seconds"] = int(now.Sub(*startedAt).Seconds())
	}

	result := r.db.Model(&model.AnalysisJob{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Fail 置为终态 error 并写入错误消息，同样是单条 UPDATE
func (r *JobRepository) Fail(id int64, message string, startedAt *time.Time) error {
	now := time.Now()
	values := map[string]interface{}{
		"status":        model.JobStatusError,
		"error_message": message,
		"completed_at":  &now,
	}
	if startedAt != nil {
		values["elapsed_seconds"] = int(now.Sub(*startedAt).Seconds())
	}

	result := r.db.Model(&model.AnalysisJob{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List 按创建时间倒序分页
func (r *JobRepository) List(page, pageSize int) ([]*model.AnalysisJob, int64, error) {
	var jobs []*model.AnalysisJob
	var total int64

	if err := r.db.Model(&model.AnalysisJob{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&jobs).Error
	return jobs, total, err
}

// GetPendingJobs 获取仍在 queued 状态的任务，worker 启动时用来补投队列
func (r *JobRepository) GetPendingJobs(limit int) ([]*model.AnalysisJob, error) {
	var jobs []*model.AnalysisJob
	err := r.db.Where("status = ?", model.JobStatusQueued).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// ListLocalResults 获取结果仍在本地的已完成任务，后台补传用
func (r *JobRepository) ListLocalResults() ([]*model.AnalysisJob, error) {
	var jobs []*model.AnalysisJob
	err := r.db.Where("status = ? AND result_url LIKE ?", model.JobStatusDone, "local://%").
		Find(&jobs).Error
	return jobs, err
}

// UpdateResultURL 更新任务结果的归档地址
func (r *JobRepository) UpdateResultURL(id int64, resultURL string) error {
	return r.db.Model(&model.AnalysisJob{}).
		Where("id = ?", id).
		Update("result_url", resultURL).Error
}

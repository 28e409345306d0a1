package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/food_go_server/internal/model"
	"github.com/qs3c/food_go_server/internal/model/dto"
	"github.com/qs3c/food_go_server/internal/pkg/imagesource"
	"github.com/qs3c/food_go_server/internal/pkg/queue"
	"github.com/qs3c/food_go_server/internal/repository"
)

// ErrJobNotFound 任务不存在
var ErrJobNotFound = errors.New("任务不存在")

// JobQueue 任务入队接口
type JobQueue interface {
	Push(ctx context.Context, msg *queue.JobMessage) error
}

// JobService 分析任务服务
type JobService struct {
	jobRepo *repository.JobRepository
	queue   JobQueue
}

func NewJobService(jobRepo *repository.JobRepository, q JobQueue) *JobService {
	return &JobService{jobRepo: jobRepo, queue: q}
}

// Submit 提交分析任务。图片来源非法时直接拒绝，不落库。
func (s *JobService) Submit(ctx context.Context, req *dto.SubmitJobRequest) (*dto.SubmitJobResponse, error) {
	mode := req.Mode
	if mode == "" {
		mode = model.ModeFull
	}

	src := imagesource.Source{
		Path:     req.ImagePath,
		Base64:   req.ImageBase64,
		Filename: req.Filename,
		URL:      req.ImageURL,
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}

	job := &model.AnalysisJob{
		Status:      model.JobStatusQueued,
		Mode:        mode,
		SourceType:  sourceType(&src),
		ImagePath:   req.ImagePath,
		ImageBase64: req.ImageBase64,
		Filename:    req.Filename,
		ImageURL:    req.ImageURL,
	}
	if err := s.jobRepo.Create(job); err != nil {
		return nil, err
	}

	if err := s.queue.Push(ctx, &queue.JobMessage{JobID: job.ID, Mode: mode}); err != nil {
		// 入队失败不回滚任务：任务已持久化为 queued，补偿扫描会重新入队
		log.Printf("Failed to enqueue job %d: %v", job.ID, err)
	}

	return &dto.SubmitJobResponse{JobID: job.ID, Status: job.Status}, nil
}

// Get 查询任务详情
func (s *JobService) Get(id int64) (*dto.JobDetail, error) {
	job, err := s.jobRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return toJobDetail(job)
}

// List 分页查询任务列表
func (s *JobService) List(page, pageSize int) ([]*dto.JobListItem, int64, error) {
	jobs, total, err := s.jobRepo.List(page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.JobListItem, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, &dto.JobListItem{
			ID:        job.ID,
			Status:    job.Status,
			Mode:      job.Mode,
			CreatedAt: job.CreatedAt.Format(time.RFC3339),
			UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
		})
	}
	return items, total, nil
}

func toJobDetail(job *model.AnalysisJob) (*dto.JobDetail, error) {
	detail := &dto.JobDetail{
		ID:             job.ID,
		Status:         job.Status,
		Mode:           job.Mode,
		SourceType:     job.SourceType,
		Error:          job.ErrorMessage,
		ResultURL:      job.ResultURL,
		ElapsedSeconds: job.ElapsedSeconds,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      job.UpdatedAt.Format(time.RFC3339),
	}
	if job.StartedAt != nil {
		detail.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		detail.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}

	if job.Status == model.JobStatusDone && job.Result != "" {
		var result model.AnalysisResult
		if err := json.Unmarshal([]byte(job.Result), &result); err != nil {
			return nil, err
		}
		detail.Result = &result
	}

	return detail, nil
}

func sourceType(src *imagesource.Source) string {
	switch {
	case src.Path != "":
		return model.SourcePath
	case src.Base64 != "":
		return model.SourceBase64
	default:
		return model.SourceURL
	}
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/food_go_server/config"
	"github.com/qs3c/food_go_server/internal/model"
	"github.com/qs3c/food_go_server/internal/pkg/imagesource"
	"github.com/qs3c/food_go_server/internal/pkg/pubsub"
	"github.com/qs3c/food_go_server/internal/pkg/queue"
	"github.com/qs3c/food_go_server/internal/repository"
	"github.com/qs3c/food_go_server/internal/service"
)

// ResultArchiver 分析结果归档存储
type ResultArchiver interface {
	UploadResult(jobID int64, data []byte) (string, error)
}

// ProgressPublisher 进度推送
type ProgressPublisher interface {
	PublishProgress(ctx context.Context, msg *pubsub.ProgressMessage) error
}

// Processor 任务处理器
type Processor struct {
	jobRepo   *repository.JobRepository
	resolver  *imagesource.Resolver
	vision    *service.VisionService
	nutrition *service.NutritionService
	archiver  ResultArchiver
	publisher ProgressPublisher
	cfg       *config.Config
}

// NewProcessor 创建任务处理器。archiver 为 nil 时结果保存到本地。
func NewProcessor(
	jobRepo *repository.JobRepository,
	resolver *imagesource.Resolver,
	vision *service.VisionService,
	nutrition *service.NutritionService,
	archiver ResultArchiver,
	publisher ProgressPublisher,
	cfg *config.Config,
) *Processor {
	return &Processor{
		jobRepo:   jobRepo,
		resolver:  resolver,
		vision:    vision,
		nutrition: nutrition,
		archiver:  archiver,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Process 处理分析任务。任务以单条带状态前置条件的 UPDATE 抢占，
// 同一任务被重复投递时后到的一方静默退出。
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) error {
	job, err := p.jobRepo.GetByID(msg.JobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Job %d: not found, dropping message", msg.JobID)
			return nil
		}
		return fmt.Errorf("failed to get job: %w", err)
	}

	// 抢占任务：仅当仍为 queued 时转入 processing
	if err := p.jobRepo.MarkProcessing(job.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Job %d: already claimed (status=%s), skipping", job.ID, job.Status)
			return nil
		}
		return fmt.Errorf("failed to mark job processing: %w", err)
	}
	startedAt := time.Now()

	publishProgress := func(step string) {
		if p.publisher == nil {
			return
		}
		p.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
			JobID:  job.ID,
			Status: model.JobStatusProcessing,
			Step:   step,
		})
	}

	// 失败终态：单条 UPDATE 同时写 status 和 error_message
	handleError := func(step string, err error) error {
		errMsg := err.Error()
		if dbErr := p.jobRepo.Fail(job.ID, errMsg, &startedAt); dbErr != nil {
			log.Printf("Job %d: failed to persist error state: %v", job.ID, dbErr)
		}
		if p.publisher != nil {
			p.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
				JobID:  job.ID,
				Status: model.JobStatusError,
				Step:   step,
				Error:  errMsg,
			})
		}
		return err
	}

	// Step 1: 解析图片来源
	log.Printf("Job %d: resolving image source (%s)", job.ID, job.SourceType)
	publishProgress(pubsub.StepResolving)

	src := imagesource.Source{
		Path:     job.ImagePath,
		Base64:   job.ImageBase64,
		Filename: job.Filename,
		URL:      job.ImageURL,
	}
	imagePath, temporary, err := p.resolver.Resolve(ctx, src)
	if err != nil {
		return handleError(pubsub.StepResolving, err)
	}
	if temporary {
		defer func() {
			if err := os.Remove(imagePath); err != nil {
				log.Printf("Job %d: failed to remove temp image %s: %v", job.ID, imagePath, err)
			}
		}()
	}

	// Step 2: 视觉识别
	log.Printf("Job %d: analyzing image", job.ID)
	publishProgress(pubsub.StepAnalyzing)

	vr := p.vision.Analyze(ctx, imagePath)
	if vr.Error != "" {
		return handleError(pubsub.StepAnalyzing, errors.New(vr.Error))
	}

	result := &model.AnalysisResult{
		Dishes:      vr.Dishes,
		Confidence:  vr.Confidence,
		TotalDishes: len(vr.Dishes),
	}
	if result.Dishes == nil {
		result.Dishes = []model.DetectedDish{}
	}

	// Step 3: 营养分析（仅 full 模式，且识别出菜品时）
	if job.Mode == model.ModeFull && len(vr.Dishes) > 0 {
		log.Printf("Job %d: looking up nutrients for %d dishes", job.ID, len(vr.Dishes))
		publishProgress(pubsub.StepNutrients)

		var items []service.LookupItem
		for _, d := range vr.Dishes {
			name := d.UsableName()
			if name == "" {
				// 无名菜品无法检索，跳过
				continue
			}
			items = append(items, service.LookupItem{
				Dish:   name,
				Amount: d.Amount,
				Unit:   d.UnitType,
			})
		}
		if len(items) > 0 {
			result.Nutrients = p.nutrition.LookupBatch(ctx, items)
		}
	}

	// Step 4: 归档结果
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return handleError(pubsub.StepArchiving, fmt.Errorf("failed to encode result: %w", err))
	}

	var resultURL string
	if p.archiver != nil {
		publishProgress(pubsub.StepArchiving)
		resultURL, err = p.archiver.UploadResult(job.ID, resultJSON)
		if err != nil {
			// 归档失败降级到本地，不影响任务完成
			log.Printf("Job %d: failed to upload result, falling back to local: %v", job.ID, err)
			resultURL, err = p.saveLocal(job.ID, resultJSON)
		}
	} else {
		resultURL, err = p.saveLocal(job.ID, resultJSON)
	}
	if err != nil {
		return handleError(pubsub.StepArchiving, err)
	}

	// Step 5: 完成终态：单条 UPDATE 同时写 status 和 result
	if err := p.jobRepo.Complete(job.ID, string(resultJSON), resultURL, &startedAt); err != nil {
		return handleError(pubsub.StepDone, fmt.Errorf("failed to update database: %w", err))
	}

	if p.publisher != nil {
		p.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
			JobID:  job.ID,
			Status: model.JobStatusDone,
			Step:   pubsub.StepDone,
		})
	}

	log.Printf("Job %d: completed, found %d dishes", job.ID, result.TotalDishes)
	return nil
}

// saveLocal 把结果 JSON 保存到本地，返回 local:// 标记的地址
func (p *Processor) saveLocal(jobID int64, data []byte) (string, error) {
	localDir := filepath.Join(p.cfg.Upload.TempDir, "results")
	if err := os.MkdirAll(localDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create result dir: %w", err)
	}
	localPath := filepath.Join(localDir, fmt.Sprintf("%d.json", jobID))
	if err := os.WriteFile(localPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save result locally: %w", err)
	}
	return fmt.Sprintf("local://%d", jobID), nil
}

package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/qs3c/food_go_server/config"
	"github.com/qs3c/food_go_server/internal/pkg/oss"
	"github.com/qs3c/food_go_server/internal/repository"
)

const reuploadInterval = 5 * time.Minute

// Reuploader 后台异步补传本地结果归档到 OSS
type Reuploader struct {
	jobRepo   *repository.JobRepository
	ossClient *oss.Client
	cfg       *config.Config
}

// NewReuploader 创建补传器
func NewReuploader(
	jobRepo *repository.JobRepository,
	ossClient *oss.Client,
	cfg *config.Config,
) *Reuploader {
	return &Reuploader{
		jobRepo:   jobRepo,
		ossClient: ossClient,
		cfg:       cfg,
	}
}

// Start 启动后台补传循环
func (r *Reuploader) Start(ctx context.Context) {
	// 启动后先执行一次
	r.run()

	ticker := time.NewTicker(reuploadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Reuploader stopped")
			return
		case <-ticker.C:
			r.run()
		}
	}
}

func (r *Reuploader) run() {
	jobs, err := r.jobRepo.ListLocalResults()
	if err != nil {
		log.Printf("Reuploader: failed to query local results: %v", err)
		return
	}

	if len(jobs) == 0 {
		return
	}

	log.Printf("Reuploader: found %d local results to re-upload", len(jobs))

	for _, job := range jobs {
		localPath := filepath.Join(r.cfg.Upload.TempDir, "results", fmt.Sprintf("%d.json", job.ID))
		data, err := os.ReadFile(localPath)
		if err != nil {
			log.Printf("Reuploader: failed to read local result %d: %v", job.ID, err)
			continue
		}

		ossURL, err := r.ossClient.UploadResultWithRetry(job.ID, data)
		if err != nil {
			log.Printf("Reuploader: failed to re-upload result %d: %v", job.ID, err)
			continue
		}

		if err := r.jobRepo.UpdateResultURL(job.ID, ossURL); err != nil {
			log.Printf("Reuploader: failed to update DB for result %d: %v", job.ID, err)
			continue
		}

		os.Remove(localPath)
		log.Printf("Reuploader: successfully re-uploaded result %d to OSS", job.ID)
	}
}

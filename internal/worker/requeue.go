package worker

import (
	"context"
	"log"
	"time"

	"github.com/qs3c/food_go_server/internal/pkg/queue"
	"github.com/qs3c/food_go_server/internal/repository"
)

const (
	requeueInterval  = time.Minute
	requeueBatchSize = 100
	// 入队后超过这个时间仍是 queued 才补投，避免跟正常消费赛跑
	requeueMinAge = time.Minute
)

// Requeuer 补投丢失的队列消息。任务落库后入队失败（或 Redis 丢数据）时，
// 任务会停留在 queued 状态且队列里没有对应消息，周期扫描把它们重新入队。
// 重复投递是安全的：处理端以状态前置条件抢占，后到的一方直接跳过。
type Requeuer struct {
	jobRepo  *repository.JobRepository
	jobQueue *queue.Queue
}

func NewRequeuer(jobRepo *repository.JobRepository, jobQueue *queue.Queue) *Requeuer {
	return &Requeuer{jobRepo: jobRepo, jobQueue: jobQueue}
}

// Start 启动补投循环
func (r *Requeuer) Start(ctx context.Context) {
	ticker := time.NewTicker(requeueInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Requeuer stopped")
			return
		case <-ticker.C:
			r.run(ctx)
		}
	}
}

func (r *Requeuer) run(ctx context.Context) {
	jobs, err := r.jobRepo.GetPendingJobs(requeueBatchSize)
	if err != nil {
		log.Printf("Requeuer: failed to query pending jobs: %v", err)
		return
	}

	cutoff := time.Now().Add(-requeueMinAge)
	requeued := 0
	for _, job := range jobs {
		if job.CreatedAt.After(cutoff) {
			continue
		}
		msg := &queue.JobMessage{JobID: job.ID, Mode: job.Mode}
		if err := r.jobQueue.Push(ctx, msg); err != nil {
			log.Printf("Requeuer: failed to requeue job %d: %v", job.ID, err)
			continue
		}
		requeued++
	}

	if requeued > 0 {
		log.Printf("Requeuer: requeued %d stale jobs", requeued)
	}
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qs3c/food_go_server/config"
	"github.com/qs3c/food_go_server/internal/database"
	"github.com/qs3c/food_go_server/internal/pkg/edamam"
	"github.com/qs3c/food_go_server/internal/pkg/imagesource"
	"github.com/qs3c/food_go_server/internal/pkg/llm"
	"github.com/qs3c/food_go_server/internal/pkg/oss"
	"github.com/qs3c/food_go_server/internal/pkg/pubsub"
	"github.com/qs3c/food_go_server/internal/pkg/queue"
	"github.com/qs3c/food_go_server/internal/repository"
	"github.com/qs3c/food_go_server/internal/service"
	"github.com/qs3c/food_go_server/internal/worker"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化 OSS（可选）
	var ossClient *oss.Client
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("Warning: Failed to init OSS client: %v", err)
		} else {
			log.Println("OSS client initialized")
		}
	}

	// 初始化 Queue 和 Pub/Sub
	jobQueue := queue.NewQueue(rdb, cfg.Queue.JobQueue)
	publisher := pubsub.NewPublisher(rdb)

	// 初始化 Repository 和领域服务
	jobRepo := repository.NewJobRepository(db)
	llmClient := llm.NewClient(&cfg.OpenAI)
	foodClient := edamam.NewClient(&cfg.Edamam)
	resolver := imagesource.NewResolver(&cfg.Upload)
	visionSvc := service.NewVisionService(llmClient, cfg)
	nutritionSvc := service.NewNutritionService(foodClient, llmClient, cfg)

	// 创建任务处理器
	var archiver worker.ResultArchiver
	if ossClient != nil {
		archiver = ossClient
	}
	processor := worker.NewProcessor(jobRepo, resolver, visionSvc, nutritionSvc, archiver, publisher, cfg)

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	// 启动补投循环：把入队失败的 queued 任务重新投递
	requeuer := worker.NewRequeuer(jobRepo, jobQueue)
	go requeuer.Start(ctx)

	// OSS 可用时启动本地结果补传循环
	if ossClient != nil {
		reuploader := worker.NewReuploader(jobRepo, ossClient, cfg)
		go reuploader.Start(ctx)
	}

	log.Printf("Worker started, max workers: %d", cfg.Queue.MaxWorkers)

	// 启动 worker 循环
	for i := 0; i < cfg.Queue.MaxWorkers; i++ {
		go func(workerID int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("Worker %d shutting down", workerID)
					return
				default:
					// 从队列获取任务
					msg, err := jobQueue.Pop(ctx, 5*time.Second)
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						log.Printf("Worker %d: failed to pop job: %v", workerID, err)
						continue
					}

					if msg == nil {
						continue // 超时，继续等待
					}

					log.Printf("Worker %d: processing job %d", workerID, msg.JobID)
					if err := processor.Process(ctx, msg); err != nil {
						log.Printf("Worker %d: job %d failed: %v", workerID, msg.JobID, err)
					}
				}
			}
		}(i)
	}

	// 等待 context 取消
	<-ctx.Done()
	log.Println("Worker shutdown complete")
}

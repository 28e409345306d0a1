package main

import (
	"context"
	"fmt"
	"log"

	"github.com/qs3c/food_go_server/config"
	"github.com/qs3c/food_go_server/internal/api"
	"github.com/qs3c/food_go_server/internal/api/handler"
	"github.com/qs3c/food_go_server/internal/database"
	"github.com/qs3c/food_go_server/internal/pkg/cron"
	"github.com/qs3c/food_go_server/internal/pkg/edamam"
	"github.com/qs3c/food_go_server/internal/pkg/imagesource"
	"github.com/qs3c/food_go_server/internal/pkg/llm"
	"github.com/qs3c/food_go_server/internal/pkg/pubsub"
	"github.com/qs3c/food_go_server/internal/pkg/queue"
	"github.com/qs3c/food_go_server/internal/pkg/ws"
	"github.com/qs3c/food_go_server/internal/repository"
	"github.com/qs3c/food_go_server/internal/service"
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

	// 初始化 Queue
	jobQueue := queue.NewQueue(rdb, cfg.Queue.JobQueue)

	// 初始化 WebSocket Hub，并把 Redis 进度消息转发给在线客户端
	wsHub := ws.NewHub()
	subscriber := pubsub.NewSubscriber(rdb)
	go func() {
		err := subscriber.SubscribeProgress(context.Background(), func(msg *pubsub.ProgressMessage) {
			wsHub.Broadcast(&ws.Message{Type: "job_progress", Data: msg})
		})
		if err != nil {
			log.Printf("Progress subscription stopped: %v", err)
		}
	}()
	log.Println("WebSocket hub started")

	// 初始化 Repository 和 Service
	jobRepo := repository.NewJobRepository(db)
	jobService := service.NewJobService(jobRepo, jobQueue)

	llmClient := llm.NewClient(&cfg.OpenAI)
	foodClient := edamam.NewClient(&cfg.Edamam)
	resolver := imagesource.NewResolver(&cfg.Upload)
	visionService := service.NewVisionService(llmClient, cfg)
	nutritionService := service.NewNutritionService(foodClient, llmClient, cfg)

	// 初始化 Handler
	jobHandler := handler.NewJobHandler(jobService)
	analyzeHandler := handler.NewAnalyzeHandler(resolver, visionService, nutritionService, cfg)
	websocketHandler := handler.NewWebSocketHandler(wsHub)

	// 启动定时清理
	cronService := cron.NewService(jobRepo, cfg.Upload.TempDir, cfg.Upload.ExpireHours)
	cronService.Start()
	defer cronService.Stop()

	// 初始化 Router
	router := api.NewRouter(jobHandler, analyzeHandler, websocketHandler, cfg)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

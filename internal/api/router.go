package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/food_go_server/config"
	"github.com/qs3c/food_go_server/internal/api/handler"
	"github.com/qs3c/food_go_server/internal/api/middleware"
)

type Router struct {
	jobHandler       *handler.JobHandler
	analyzeHandler   *handler.AnalyzeHandler
	websocketHandler *handler.WebSocketHandler
	cfg              *config.Config
}

func NewRouter(
	jobHandler *handler.JobHandler,
	analyzeHandler *handler.AnalyzeHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		jobHandler:       jobHandler,
		analyzeHandler:   analyzeHandler,
		websocketHandler: websocketHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.Logger())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// WebSocket 进度推送
		api.GET("/ws", r.websocketHandler.Handle)

		// 健康检查
		api.GET("/health", r.analyzeHandler.Health)

		// 异步任务
		jobs := api.Group("/jobs")
		{
			jobs.POST("", r.jobHandler.Submit)
			jobs.GET("", r.jobHandler.List)
			jobs.GET("/:id", r.jobHandler.Get)
		}

		// 同步分析
		api.POST("/analyze", r.analyzeHandler.Analyze)
		api.POST("/analyze-nutrients", r.analyzeHandler.AnalyzeNutrients)
	}

	return engine
}

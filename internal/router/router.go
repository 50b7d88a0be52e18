package router

import (
	"time"

	"pestid/internal/config"
	"pestid/internal/handler"
	"pestid/internal/metrics"
	"pestid/internal/middleware"
	"pestid/internal/repository"
	"pestid/internal/service"
	"pestid/internal/utils"
	"pestid/pkg/gbif"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Dependencies 由 main 创建的外部依赖，redisClient 和 vision 可以为 nil
type Dependencies struct {
	Config      *config.Config
	JWTManager  *utils.JWTManager
	Logger      *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	Metrics     *metrics.Metrics
	Vision      service.VisionModel
}

// NewGBIFClient 按配置创建 GBIF 客户端并接入缓存指标
func NewGBIFClient(cfg *config.Config, m *metrics.Metrics) *gbif.Client {
	return gbif.NewClient(gbif.Config{
		BaseURL:  cfg.GBIF.BaseURL,
		Timeout:  time.Duration(cfg.GBIF.Timeout) * time.Second,
		CacheTTL: time.Duration(cfg.GBIF.CacheTTL) * time.Second,
	}).WithObserver(m)
}

// SetupRouter 设置路由
func SetupRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	logger := deps.Logger
	db := deps.DB

	// 设置Gin模式
	if cfg.Server.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// 全局中间件
	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(middleware.MetricsMiddleware(deps.Metrics))
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(cfg))

	// 健康检查
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "害虫识别分析平台 API",
			"version": "1.0.0",
		})
	})
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	// 初始化Repository
	userRepo := repository.NewUserRepository(db)
	modelConfigRepo := repository.NewModelConfigRepository(db)
	voteRepo := repository.NewVoteRepository(db)

	// 初始化Service
	userCache := service.NewUserCache(userRepo, cfg.Cache.GetUserTTL())
	authService := service.NewAuthService(userRepo, userCache, deps.JWTManager, cfg)
	modelService := service.NewModelService(modelConfigRepo, deps.RedisClient, cfg.Redis.DefaultMaxConcurrency, logger)
	analysisService := service.NewAnalysisService(deps.Vision, cfg.Providers.Gemini.Model, cfg.Providers.Gemini.MaxDetections, db, deps.Metrics, logger)
	openRouterService := service.NewOpenRouterService(cfg.Providers.OpenRouter, cfg.Frontend.URL, modelService, deps.Metrics, logger)
	ollamaService := service.NewOllamaService(cfg.Providers.Ollama, modelService, deps.Metrics, logger)
	battleService := service.NewBattleService(openRouterService, ollamaService)
	voteService := service.NewVoteService(voteRepo)
	historyService := service.NewHistoryService(deps.RedisClient, cfg.History.Capacity, logger)
	detectionService := service.NewDetectionService(db, userCache, logger)
	verificationService := service.NewVerificationService(db, deps.Metrics, logger)
	speciesService := service.NewSpeciesService(db, NewGBIFClient(cfg, deps.Metrics), logger)

	// 初始化Handler
	authHandler := handler.NewAuthHandler(authService)
	modelHandler := handler.NewModelHandler(modelService)
	adminHandler := handler.NewAdminHandler(userRepo, authService, speciesService)
	analysisHandler := handler.NewAnalysisHandler(analysisService, openRouterService, battleService, voteService, historyService, cfg.Upload)
	ollamaHandler := handler.NewOllamaHandler(ollamaService, cfg.Providers.Ollama.GetRouteTimeout(), cfg.Upload)
	detectionHandler := handler.NewDetectionHandler(detectionService)
	verificationHandler := handler.NewVerificationHandler(verificationService, userCache)
	speciesHandler := handler.NewSpeciesHandler(speciesService)

	// API路由组
	api := r.Group("/api")
	{
		// 公开路由
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)

		// 内部API（现场设备批量上报，使用内部密钥认证）
		api.POST("/fbdetection/ingest", middleware.InternalAPIAuth(cfg.InternalAPI.Key), detectionHandler.Ingest)

		// 认证路由
		authorized := api.Group("")
		authorized.Use(middleware.AuthMiddleware(deps.JWTManager))
		{
			// 用户信息
			authorized.GET("/me", authHandler.GetMe)
			authorized.PUT("/me", authHandler.UpdateProfile)
			authorized.POST("/logout", authHandler.Logout)

			// 模型接口
			authorized.GET("/models", modelHandler.GetModels)

			// 图片识别
			analysis := authorized.Group("/analysis")
			{
				analysis.POST("/model-testing", analysisHandler.ModelTesting)
				analysis.POST("/openrouter", analysisHandler.OpenRouter)
				analysis.POST("/battle", analysisHandler.Battle)
				analysis.GET("/votes", analysisHandler.VoteSummary)
				analysis.POST("/votes", analysisHandler.SubmitVote)
				analysis.GET("/history", analysisHandler.ListHistory)
				analysis.POST("/history", analysisHandler.SaveHistory)
				analysis.DELETE("/history", analysisHandler.DeleteHistory)
				analysis.GET("/ollama", ollamaHandler.Probe)
				analysis.POST("/ollama", ollamaHandler.Analyze)
			}

			// 检测记录
			detections := authorized.Group("/fbdetection")
			{
				detections.GET("", detectionHandler.List)
				detections.POST("", detectionHandler.Create)
				detections.GET("/map", detectionHandler.Map)
				detections.GET("/chart", detectionHandler.Chart)
				detections.GET("/stats", detectionHandler.Stats)
				detections.GET("/:id", detectionHandler.Detail)
			}

			// 人工审核
			verification := authorized.Group("/verification")
			{
				verification.GET("", verificationHandler.Get)
				verification.POST("", verificationHandler.Submit)
				verification.PATCH("", verificationHandler.Update)
				verification.GET("/history", verificationHandler.History)
				verification.GET("/consistency", verificationHandler.Consistency)
			}

			// 物种
			species := authorized.Group("/species")
			{
				species.GET("", speciesHandler.List)
				species.GET("/tree", speciesHandler.Tree)
				species.GET("/gbif/search", speciesHandler.SearchGBIF)
				species.GET("/gbif/match", speciesHandler.MatchGBIF)
				species.GET("/gbif/:key", speciesHandler.GetGBIF)
				species.POST("/aggregate", middleware.AdminMiddleware(), adminHandler.AggregateSpecies)
			}

			// 管理员接口
			adminGroup := authorized.Group("/admin")
			adminGroup.Use(middleware.AdminMiddleware())
			{
				adminGroup.GET("/users", adminHandler.ListUsers)
				adminGroup.DELETE("/users/:id", adminHandler.DeleteUser)

				adminGroup.GET("/models", modelHandler.GetAllModels)
				adminGroup.POST("/models", modelHandler.CreateModel)
				adminGroup.PUT("/models/:id", modelHandler.UpdateModel)
				adminGroup.DELETE("/models/:id", modelHandler.DeleteModel)
			}
		}
	}

	return r
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pestid/internal/config"
	"pestid/internal/metrics"
	"pestid/internal/models"
	"pestid/internal/repository"
	"pestid/internal/router"
	"pestid/internal/service"
	"pestid/internal/utils"
	"pestid/pkg/gemini"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:           "pestid",
		Short:         "害虫识别分析平台后端",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "./config/config.yaml", "配置文件路径")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "启动 HTTP 服务",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "执行数据库迁移",
			RunE:  runMigrate,
		},
		&cobra.Command{
			Use:   "aggregate-species",
			Short: "从检测记录重建物种表",
			RunE:  runAggregateSpecies,
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap 加载配置、初始化日志和数据库
func bootstrap() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}

	// 初始化日志
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)
	if !cfg.Server.ProductionMode {
		logger.SetLevel(logrus.DebugLevel)
	}

	// 初始化数据库
	if err := models.InitDB(cfg); err != nil {
		return nil, nil, fmt.Errorf("初始化数据库失败: %w", err)
	}

	return cfg, logger, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	_, logger, err := bootstrap()
	if err != nil {
		return err
	}
	if err := models.AutoMigrate(models.GetDB()); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	logger.Info("数据库迁移完成")
	return nil
}

func runAggregateSpecies(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}

	db := models.GetDB()
	if err := models.AutoMigrate(db); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	speciesService := service.NewSpeciesService(db, router.NewGBIFClient(cfg, nil), logger)
	report, err := speciesService.Aggregate(cmd.Context())
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"species":  report.Species,
		"enriched": report.Enriched,
		"failed":   report.Failed,
	}).Info("物种汇总完成")
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	db := models.GetDB()
	if err := models.AutoMigrate(db); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	if err := utils.InitValidator(); err != nil {
		return fmt.Errorf("初始化校验器失败: %w", err)
	}

	// 初始化Redis，未启用时并发控制退化为进程内限流，分析历史不可用
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddress(),
			DB:       cfg.Redis.DB,
			Password: cfg.Redis.Password,
		})
		if err := redisClient.Ping(cmd.Context()).Err(); err != nil {
			logger.Warnf("Redis 连接失败: %v", err)
		}
		defer redisClient.Close()
	}

	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("注册指标失败: %w", err)
	}

	// 初始化工具
	jwtManager := utils.NewJWTManager(
		cfg.JWT.SecretKey,
		cfg.JWT.Algorithm,
		cfg.JWT.GetExpireDuration(),
	)

	// 初始化管理员账户
	userRepo := repository.NewUserRepository(db)
	authService := service.NewAuthService(userRepo, service.NewUserCache(userRepo, cfg.Cache.GetUserTTL()), jwtManager, cfg)
	if err := authService.InitAdmin(); err != nil {
		logger.Warnf("初始化管理员失败: %v", err)
	}

	var vision service.VisionModel
	if cfg.Providers.Gemini.APIKey != "" {
		client, err := gemini.NewClient(cmd.Context(), cfg.Providers.Gemini.APIKey, cfg.Providers.Gemini.Model)
		if err != nil {
			logger.Warnf("初始化 Gemini 失败: %v", err)
		} else {
			vision = client
		}
	} else {
		logger.Warn("未配置 Gemini API Key，两阶段识别不可用")
	}

	// 设置路由
	r := router.SetupRouter(router.Dependencies{
		Config:      cfg,
		JWTManager:  jwtManager,
		Logger:      logger,
		DB:          db,
		RedisClient: redisClient,
		Metrics:     m,
		Vision:      vision,
	})

	// 启动服务器
	addr := cfg.Server.GetAddress()
	srv := &http.Server{Addr: addr, Handler: r}
	logger.Infof("服务器启动在 %s", addr)
	if !cfg.Server.ProductionMode {
		logger.Infof("开发模式: 管理员账号 %s", cfg.Admin.Username)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("启动服务器失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("正在关闭服务器")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

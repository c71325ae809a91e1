package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"medbook/config"
	_ "medbook/docs"
	"medbook/internal/broker"
	"medbook/internal/cache"
	"medbook/internal/repository"
	"medbook/internal/service"
	"medbook/internal/storage"
	"medbook/internal/transport/rest"
	"medbook/internal/transport/websocket"
	"medbook/pkg/auth"
	"medbook/pkg/database"
	"medbook/pkg/logger"
	"medbook/pkg/validator"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP-сервер",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), skipMigrations)
		},
	}

	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "не применять миграции при запуске")

	return cmd
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	return cfg, log, nil
}

func serve(ctx context.Context, skipMigrations bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := validator.RegisterBindings(); err != nil {
		logger.Error("Не удалось зарегистрировать правила валидации", zap.Error(err))
		return err
	}

	db, err := database.NewPostgresDB(ctx, cfg.Postgres)
	if err != nil {
		logger.Error("Не удалось подключиться к БД", zap.Error(err))
		return err
	}
	defer db.Close()

	if !skipMigrations {
		logger.Info("Запуск миграций базы данных")
		if err := database.RunMigrations(ctx, db, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Error("Ошибка при выполнении миграций", zap.Error(err))
			return err
		}
		logger.Info("Миграции успешно выполнены")
	}

	var fileStorage storage.FileStorage
	if cfg.S3.Endpoint != "" {
		s3Storage, err := storage.NewS3Storage(ctx, cfg.S3, logger)
		if err != nil {
			logger.Error("Не удалось инициализировать S3 хранилище", zap.Error(err))
			return err
		}
		fileStorage = s3Storage
		logger.Info("S3 хранилище успешно инициализировано", zap.String("endpoint", cfg.S3.Endpoint))
	} else {
		logger.Warn("S3 хранилище не настроено, загрузка файлов недоступна")
	}

	availability, err := cache.NewAvailabilityCache(cfg.Cache, logger)
	if err != nil {
		return err
	}

	publisher, err := broker.NewPublisher(cfg.RabbitMQ, logger)
	if err != nil {
		logger.Error("Не удалось подключиться к RabbitMQ", zap.Error(err))
		return err
	}
	defer publisher.Close()

	listener, err := broker.NewListener(cfg.RabbitMQ, availability, logger)
	if err != nil {
		logger.Error("Не удалось запустить слушатель событий", zap.Error(err))
		return err
	}
	if listener != nil {
		if err := listener.Start(ctx); err != nil {
			logger.Error("Ошибка запуска слушателя событий", zap.Error(err))
			return err
		}
		defer listener.Stop()
	}

	tokens := auth.NewTokenManager(cfg.JWT.SigningKey, cfg.JWT.AccessTokenTTL)

	hub := websocket.NewHub(tokens, logger)
	go hub.Run(ctx)

	services := service.NewServices(service.Deps{
		Repos:       repository.NewRepositories(db),
		Logger:      logger,
		Config:      cfg,
		FileStorage: fileStorage,
		Tokens:      tokens,
		Hasher:      auth.NewHasher(auth.DefaultParams),
		Cache:       availability,
		Publisher:   publisher,
		Pusher:      hub,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	rest.NewHandler(services, logger, cfg, hub).InitRoutes(router)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/swagger", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})

	srv := &http.Server{
		Addr:           ":" + cfg.HTTP.Port,
		Handler:        router,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderMB << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("Сервер запущен", zap.String("addr", srv.Addr), zap.String("env", cfg.Environment))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("Ошибка запуска сервера", zap.Error(err))
		return err
	}

	logger.Info("Выключение сервера...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка при остановке сервера", zap.Error(err))
		return err
	}

	logger.Info("Сервер успешно остановлен")

	return nil
}

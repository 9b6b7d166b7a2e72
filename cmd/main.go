package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"nestdrive/internal/auth"
	"nestdrive/internal/config"
	"nestdrive/internal/handler"
	"nestdrive/internal/repository"
	"nestdrive/internal/service"
	"nestdrive/internal/service/s3"
)

func connectWithRetry(dsn string, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	var db *sqlx.DB
	var err error
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}
		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", cfg.Database.GetURL())
		if err == nil {
			break
		}
		log.Printf("Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
	}
	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Printf("Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// logNotifier пишет сигнал о малом остатке места в лог. Доставка
// пользовательских уведомлений — отдельный сервис.
type logNotifier struct{}

func (logNotifier) NotifyLowSpace(_ context.Context, userID string) {
	log.Printf("[Notify] User %s is running low on storage space", userID)
}

func main() {
	// Загружаем конфигурации
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Подключаемся к базе данных
	db, err := connectWithRetry(appConfig.Database.GetDSN(), 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Инициализация S3 клиента
	s3Config, err := s3.NewConfig(".s3.env")
	if err != nil {
		log.Fatalf("Failed to load S3 config: %v", err)
	}
	s3Client, err := s3.NewClient(s3Config)
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}

	// Подключение к redis для кэша квот
	redisClient := redis.NewClient(&redis.Options{
		Addr:     appConfig.Redis.Addr,
		Password: appConfig.Redis.Password,
		DB:       appConfig.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	// Инициализация репозиториев
	elementRepo := repository.NewElementRepository(db)
	quotaRepo := repository.NewQuotaRepository(db, appConfig.Quota.DefaultLimitBytes)

	// Инициализация сервисов
	quotaService := service.NewStorageQuotaService(quotaRepo)
	sessionCache := service.NewRedisSessionCache(redisClient)
	folderService := service.NewFolderService(elementRepo, s3Client)
	manager := service.NewQuotaFolderManager(
		folderService,
		elementRepo,
		quotaService,
		sessionCache,
		logNotifier{},
		appConfig.Quota.NotifyThresholdPct,
	)

	// Инициализация хендлеров
	workspaceHandler := handler.NewWorkspaceHandler(manager, s3Client)
	quotaHandler := handler.NewQuotaHandler(quotaService)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.HeaderUserID, auth.HeaderUserName, auth.HeaderUserGroups},
		ExposedHeaders:   []string{"Link", "Content-Disposition", "ETag"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.Middleware)

	// HTTP маршруты
	r.Route("/v1", func(r chi.Router) {
		r.Post("/folders", workspaceHandler.CreateFolder)
		r.Get("/folders/{id}/list", workspaceHandler.ListFolder)

		r.Post("/documents", workspaceHandler.UploadFile)
		r.Put("/documents/{id}", workspaceHandler.UpdateFile)

		r.Get("/elements/tree", workspaceHandler.GetTree)
		r.Post("/elements/query", workspaceHandler.Query)
		r.Get("/elements/download", workspaceHandler.DownloadMany)
		r.Put("/elements/move", workspaceHandler.MoveAll)
		r.Post("/elements/copy", workspaceHandler.CopyAll)
		r.Put("/elements/share", workspaceHandler.ShareAll)

		r.Route("/elements/{id}", func(r chi.Router) {
			r.Get("/", workspaceHandler.GetInfo)
			r.Delete("/", workspaceHandler.Delete)
			r.Put("/rename", workspaceHandler.Rename)
			r.Put("/move", workspaceHandler.Move)
			r.Post("/copy", workspaceHandler.Copy)
			r.Put("/share", workspaceHandler.Share)
			r.Put("/trash", workspaceHandler.Trash)
			r.Put("/restore", workspaceHandler.Restore)
			r.Get("/download", workspaceHandler.Download)
		})

		r.Route("/quota", func(r chi.Router) {
			r.Get("/", quotaHandler.GetQuotaInfo)
			r.Put("/limit", quotaHandler.UpdateQuotaLimit)
		})
	})

	// Создаем HTTP сервер
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}
	if err := db.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}

	log.Println("Server exited properly")
}

package di

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/dekalouis/v0-drive/application/serviceimpl"
	"github.com/dekalouis/v0-drive/domain/repositories"
	"github.com/dekalouis/v0-drive/domain/services"
	"github.com/dekalouis/v0-drive/infrastructure/gemini"
	"github.com/dekalouis/v0-drive/infrastructure/googledrive"
	"github.com/dekalouis/v0-drive/infrastructure/postgres"
	"github.com/dekalouis/v0-drive/infrastructure/queue"
	"github.com/dekalouis/v0-drive/infrastructure/worker"
	"github.com/dekalouis/v0-drive/interfaces/api/handlers"
	"github.com/dekalouis/v0-drive/pkg/config"
	"github.com/dekalouis/v0-drive/pkg/logger"
	"github.com/dekalouis/v0-drive/pkg/ratelimit"
)

type Container struct {
	// Configuration
	Config *config.Config

	// Infrastructure
	DB          *gorm.DB
	RedisClient *redis.Client
	GoogleDrive *googledrive.DriveClient
	Gemini      *gemini.Client
	Queue       queue.Queue

	// Vector backend state, decided once at startup
	VectorAvailable bool

	// Repositories
	FolderRepository      repositories.FolderRepository
	ImageRepository       repositories.ImageRepository
	ScanReceiptRepository repositories.ScanReceiptRepository

	// Services
	FolderService services.FolderService
	SearchService services.SearchService

	// Workers
	FolderWorker       *worker.FolderWorker
	ImageWorker        *worker.ImageWorker
	RecoverySupervisor *worker.RecoverySupervisor

	// Limiters
	CaptionLimiter *ratelimit.Limiter
	DriveLimiter   *ratelimit.Limiter
}

func NewContainer() *Container {
	return &Container{}
}

func (c *Container) Initialize() error {
	if err := c.initConfig(); err != nil {
		return err
	}
	if err := c.initInfrastructure(); err != nil {
		return err
	}
	c.initRepositories()
	c.initServices()
	c.initWorkers()
	return nil
}

func (c *Container) initConfig() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.Config = cfg
	logger.Startup("config_loaded", "Configuration loaded", nil)
	return nil
}

func (c *Container) initInfrastructure() error {
	db, err := postgres.NewDatabase(c.Config.Database.DSN())
	if err != nil {
		return err
	}
	c.DB = db
	logger.Startup("db_connected", "Database connected", nil)

	if err := postgres.Migrate(db, c.Config.Gemini.EmbeddingDim); err != nil {
		return err
	}
	c.VectorAvailable = postgres.EnsureVectorInfra(db, c.Config.Gemini.EmbeddingDim) == nil
	logger.Startup("db_migrated", "Migrations applied", map[string]interface{}{
		"vector_available": c.VectorAvailable,
	})

	c.RedisClient = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.RedisClient.Ping(pingCtx).Err(); err != nil {
		return err
	}
	c.Queue = queue.NewRedisQueue(c.RedisClient)
	logger.Startup("redis_connected", "Redis connected", nil)

	c.CaptionLimiter = ratelimit.New(ratelimit.Config{
		MaxPerWindow: c.Config.Limits.CaptionRateMax,
		Window:       time.Duration(c.Config.Limits.CaptionRateWindowMs) * time.Millisecond,
		BurstMax:     c.Config.Limits.CaptionBurstMax,
		BurstWindow:  time.Duration(c.Config.Limits.CaptionBurstWindowMs) * time.Millisecond,
	})
	c.DriveLimiter = ratelimit.New(ratelimit.Config{
		MaxPerWindow: c.Config.Limits.DriveRateMax,
		Window:       time.Duration(c.Config.Limits.DriveRateWindowMs) * time.Millisecond,
	})

	c.GoogleDrive = googledrive.NewDriveClient(c.Config.Drive.APIKey, c.DriveLimiter)

	geminiClient, err := gemini.NewClient(context.Background(), gemini.Config{
		APIKey:       c.Config.Gemini.APIKey,
		Model:        c.Config.Gemini.Model,
		EmbedModel:   c.Config.Gemini.EmbedModel,
		EmbeddingDim: c.Config.Gemini.EmbeddingDim,
	})
	if err != nil {
		return err
	}
	c.Gemini = geminiClient
	logger.Startup("clients_ready", "Drive and Gemini clients ready", nil)
	return nil
}

func (c *Container) initRepositories() {
	c.FolderRepository = postgres.NewFolderRepository(c.DB)
	c.ImageRepository = postgres.NewImageRepository(c.DB)
	c.ScanReceiptRepository = postgres.NewScanReceiptRepository(c.DB)
}

func (c *Container) initServices() {
	c.FolderService = serviceimpl.NewFolderService(
		c.GoogleDrive, c.Queue, c.FolderRepository, c.ImageRepository, c.ScanReceiptRepository,
		c.Config.Limits.MaxImagesPerFolder)
	c.SearchService = serviceimpl.NewSearchService(
		c.Gemini, c.FolderRepository, c.ImageRepository, c.VectorAvailable)
}

func (c *Container) initWorkers() {
	c.FolderWorker = worker.NewFolderWorker(
		c.Queue, c.FolderRepository, c.ImageRepository,
		c.Config.Workers.FolderConcurrency)

	c.ImageWorker = worker.NewImageWorker(
		c.GoogleDrive, c.Gemini, c.Queue, c.ImageRepository, c.FolderRepository,
		c.CaptionLimiter, c.VectorAvailable,
		c.Config.Workers.ImageConcurrency)

	c.RecoverySupervisor = worker.NewRecoverySupervisor(
		c.Queue, c.FolderRepository, c.ImageRepository, c.FolderService)
}

// StartWorkers launches the background processing pool.
func (c *Container) StartWorkers() error {
	c.FolderWorker.Start()
	c.ImageWorker.Start()
	return c.RecoverySupervisor.Start()
}

// Shutdown stops workers and closes connections in dependency order.
func (c *Container) Shutdown() {
	if c.RecoverySupervisor != nil {
		c.RecoverySupervisor.Stop()
	}
	if c.ImageWorker != nil {
		c.ImageWorker.Stop()
	}
	if c.FolderWorker != nil {
		c.FolderWorker.Stop()
	}
	if c.RedisClient != nil {
		c.RedisClient.Close()
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	logger.Startup("shutdown", "Container shut down", nil)
}

// GetHandlerServices bundles the services the HTTP layer consumes.
func (c *Container) GetHandlerServices() *handlers.Services {
	return &handlers.Services{
		FolderService: c.FolderService,
		SearchService: c.SearchService,
	}
}

func (c *Container) GetConfig() *config.Config {
	return c.Config
}

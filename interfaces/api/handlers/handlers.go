package handlers

import (
	"github.com/dekalouis/v0-drive/domain/services"
	"github.com/dekalouis/v0-drive/infrastructure/googledrive"
	"github.com/dekalouis/v0-drive/infrastructure/queue"
	"gorm.io/gorm"

	"github.com/redis/go-redis/v9"
)

// Services contains all the services needed for handlers
type Services struct {
	FolderService services.FolderService
	SearchService services.SearchService
}

// Handlers contains all HTTP handlers
type Handlers struct {
	Folder    *FolderHandler
	Search    *SearchHandler
	Thumbnail *ThumbnailHandler
	Health    *HealthHandler
}

// NewHandlers creates a new instance of Handlers with all dependencies
func NewHandlers(svcs *Services, drive *googledrive.DriveClient, q queue.Queue, db *gorm.DB, redisClient *redis.Client) *Handlers {
	return &Handlers{
		Folder:    NewFolderHandler(svcs.FolderService),
		Search:    NewSearchHandler(svcs.SearchService),
		Thumbnail: NewThumbnailHandler(drive),
		Health:    NewHealthHandler(db, redisClient, q),
	}
}

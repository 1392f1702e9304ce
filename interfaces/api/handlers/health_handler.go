package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/dekalouis/v0-drive/infrastructure/queue"
)

type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
	queue queue.Queue
}

func NewHealthHandler(db *gorm.DB, redisClient *redis.Client, q queue.Queue) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, queue: q}
}

// Check reports dependency health and queue depths.
// GET /health
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := fiber.StatusOK
	checks := fiber.Map{}

	dbOK := false
	if h.db != nil {
		if sqlDB, err := h.db.DB(); err == nil {
			dbOK = sqlDB.PingContext(c.Context()) == nil
		}
	}
	checks["database"] = healthWord(dbOK)

	redisOK := false
	if h.redis != nil {
		redisOK = h.redis.Ping(c.Context()).Err() == nil
	}
	checks["redis"] = healthWord(redisOK)

	if redisOK && h.queue != nil {
		queues := fiber.Map{}
		for _, name := range []string{queue.QueueFolders, queue.QueueImages} {
			if counts, err := h.queue.Counts(c.Context(), name); err == nil {
				queues[name] = counts
			}
		}
		checks["queues"] = queues
	}

	if !dbOK || !redisOK {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"status": healthWord(dbOK && redisOK),
		"checks": checks,
	})
}

func healthWord(ok bool) string {
	if ok {
		return "ok"
	}
	return "unavailable"
}

package postgres

import (
	"fmt"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dekalouis/v0-drive/domain/models"
	"github.com/dekalouis/v0-drive/pkg/apperrors"
	"github.com/dekalouis/v0-drive/pkg/logger"
)

func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}
	return db, nil
}

// vectorInfra memoizes the one-time pgvector setup. Every caller gets the
// same answer; a missing extension is reported once and cached.
type vectorInfra struct {
	once sync.Once
	err  error
}

var vecInfra vectorInfra

// EnsureVectorInfra creates the pgvector extension and the HNSW index on
// the caption vector column. When the extension cannot be installed it
// returns a VectorBackendUnavailable error and the pipeline runs degraded.
func EnsureVectorInfra(db *gorm.DB, dim int) error {
	vecInfra.once.Do(func() {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			vecInfra.err = apperrors.Wrap(apperrors.KindVectorBackendUnavailable,
				"pgvector extension unavailable", err)
			return
		}
		stmts := []string{
			fmt.Sprintf(`ALTER TABLE images ADD COLUMN IF NOT EXISTS caption_vec vector(%d)`, dim),
			`CREATE INDEX IF NOT EXISTS idx_images_caption_vec ON images
				USING hnsw (caption_vec vector_cosine_ops) WITH (m = 16, ef_construction = 64)`,
		}
		for _, sql := range stmts {
			if err := db.Exec(sql).Error; err != nil {
				vecInfra.err = apperrors.Wrap(apperrors.KindVectorBackendUnavailable,
					"failed to prepare vector column", err)
				return
			}
		}
	})
	return vecInfra.err
}

// ResetVectorInfraForTest clears the memoized state between tests.
func ResetVectorInfraForTest() {
	vecInfra = vectorInfra{}
}

func Migrate(db *gorm.DB, embeddingDim int) error {
	vecErr := EnsureVectorInfra(db, embeddingDim)
	if vecErr != nil {
		logger.StartupWarn("migrate", "vector backend unavailable, search runs lexical-only",
			map[string]interface{}{"error": vecErr.Error()})
	}

	if vecErr == nil {
		if err := db.AutoMigrate(
			&models.Folder{},
			&models.Image{},
			&models.ScanReceipt{},
		); err != nil {
			return fmt.Errorf("failed to run auto migrations: %v", err)
		}
		return nil
	}

	// Without the extension AutoMigrate would choke on the vector column,
	// so the tables are created manually without it.
	return migrateWithoutVector(db)
}

func migrateWithoutVector(db *gorm.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS folders (
			id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
			drive_folder_id text NOT NULL,
			name text,
			owner_email text,
			status text DEFAULT 'pending',
			total_images integer DEFAULT 0,
			processed_images integer DEFAULT 0,
			error_message text,
			last_synced_at timestamptz,
			created_at timestamptz,
			updated_at timestamptz
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_folders_drive_folder_id ON folders(drive_folder_id)`,
		`CREATE INDEX IF NOT EXISTS idx_folders_status ON folders(status)`,
		`CREATE INDEX IF NOT EXISTS idx_folders_owner_email ON folders(owner_email)`,

		`CREATE TABLE IF NOT EXISTS images (
			id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
			folder_id uuid NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
			drive_file_id text NOT NULL,
			file_name text,
			mime_type text,
			file_size bigint,
			thumbnail_url text,
			web_view_url text,
			version_token text,
			status text DEFAULT 'pending',
			caption text,
			tags text,
			error_message text,
			processed_at timestamptz,
			created_at timestamptz,
			updated_at timestamptz
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_images_drive_file_id ON images(drive_file_id)`,
		`CREATE INDEX IF NOT EXISTS idx_images_folder_id ON images(folder_id)`,
		`CREATE INDEX IF NOT EXISTS idx_images_status ON images(status)`,
		`CREATE INDEX IF NOT EXISTS idx_images_file_name ON images(file_name)`,

		`CREATE TABLE IF NOT EXISTS scan_receipts (
			id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
			folder_id uuid NOT NULL,
			images_seen integer DEFAULT 0,
			images_added integer DEFAULT 0,
			images_removed integer DEFAULT 0,
			images_changed integer DEFAULT 0,
			duration_ms bigint DEFAULT 0,
			trigger text,
			created_at timestamptz
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_receipts_folder_id ON scan_receipts(folder_id)`,
	}

	for _, sql := range migrations {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to run degraded migration: %v", err)
		}
	}
	return nil
}

package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS sites (
		id              TEXT PRIMARY KEY,
		lat_min         DOUBLE PRECISION NOT NULL,
		lat_max         DOUBLE PRECISION NOT NULL,
		lng_min         DOUBLE PRECISION NOT NULL,
		lng_max         DOUBLE PRECISION NOT NULL,
		img_width       INT NOT NULL,
		img_height      INT NOT NULL,
		homography      JSONB NOT NULL,
		polygon         JSONB,
		capacity        INT NOT NULL DEFAULT 0,
		convention      TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (lat_min < lat_max),
		CHECK (lng_min < lng_max)
	);`,
	`CREATE TABLE IF NOT EXISTS markers (
		id              BIGSERIAL PRIMARY KEY,
		site_id         TEXT NOT NULL,
		marker_index    INT NOT NULL,
		plate_text      TEXT NOT NULL,
		pixel_x         DOUBLE PRECISION NOT NULL,
		pixel_y         DOUBLE PRECISION NOT NULL,
		lat             DOUBLE PRECISION NOT NULL,
		lng             DOUBLE PRECISION NOT NULL,
		match_distance  DOUBLE PRECISION NOT NULL DEFAULT 0,
		image_filename  TEXT NOT NULL,
		run_id          UUID,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_markers_site_id ON markers(site_id);`,
	`CREATE INDEX IF NOT EXISTS idx_markers_run_id ON markers(run_id);`,
	`CREATE TABLE IF NOT EXISTS area_counts (
		site_id         TEXT PRIMARY KEY,
		count           INT NOT NULL,
		source_image    TEXT NOT NULL,
		observed_at     TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS image_uploads (
		id              BIGSERIAL PRIMARY KEY,
		filename        TEXT NOT NULL,
		location        TEXT,
		status          TEXT NOT NULL DEFAULT 'uploaded',
		processed       BOOLEAN NOT NULL DEFAULT false,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_image_uploads_pending ON image_uploads(created_at) WHERE processed = false;`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parkmap-service/internal/domain/parking"
	"parkmap-service/internal/recordsync"
)

type ParkingRepository struct {
	db *gorm.DB
}

func NewParkingRepository(db *gorm.DB) *ParkingRepository {
	return &ParkingRepository{db: db}
}

type Site struct {
	ID         string `gorm:"primaryKey"`
	LatMin     float64
	LatMax     float64
	LngMin     float64
	LngMax     float64
	ImgWidth   int
	ImgHeight  int
	Homography datatypes.JSONType[[9]float64]
	Polygon    datatypes.JSONType[[4]parking.Point]
	Capacity   int
	Convention *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Marker struct {
	ID            int64  `gorm:"primaryKey"`
	SiteID        string `gorm:"not null;index"`
	MarkerIndex   int    `gorm:"not null"`
	PlateText     string `gorm:"not null"`
	PixelX        float64
	PixelY        float64
	Lat           float64
	Lng           float64
	MatchDistance float64
	ImageFilename string `gorm:"not null"`
	RunID         *uuid.UUID
	CreatedAt     time.Time
}

type AreaCount struct {
	SiteID      string `gorm:"primaryKey"`
	Count       int    `gorm:"not null"`
	SourceImage string `gorm:"not null"`
	ObservedAt  time.Time
}

type ImageUpload struct {
	ID        int64  `gorm:"primaryKey"`
	Filename  string `gorm:"not null"`
	Location  *string
	Status    string `gorm:"not null"`
	Processed bool   `gorm:"not null"`
	CreatedAt time.Time
}

// Models lists the tables owned by this repository.
func Models() []any {
	return []any{&Site{}, &Marker{}, &AreaCount{}, &ImageUpload{}}
}

var _ recordsync.TxStore = (*ParkingRepository)(nil)

func (r *ParkingRepository) UpsertSite(ctx context.Context, site parking.Site) error {
	row := Site{
		ID:         site.ID,
		LatMin:     site.Bounds.LatMin,
		LatMax:     site.Bounds.LatMax,
		LngMin:     site.Bounds.LngMin,
		LngMax:     site.Bounds.LngMax,
		ImgWidth:   site.Width,
		ImgHeight:  site.Height,
		Homography: datatypes.NewJSONType(site.Homography),
		Polygon:    datatypes.NewJSONType(site.Polygon),
		Capacity:   site.Capacity,
		UpdatedAt:  time.Now(),
	}
	if site.Convention != "" {
		c := string(site.Convention)
		row.Convention = &c
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"lat_min", "lat_max", "lng_min", "lng_max",
				"img_width", "img_height", "homography", "polygon",
				"capacity", "convention", "updated_at",
			}),
		}).
		Create(&row).Error
}

// GetSite returns nil when the site has no calibration.
func (r *ParkingRepository) GetSite(ctx context.Context, id string) (*parking.Site, error) {
	var row Site
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	site := row.toDomain()
	return &site, nil
}

func (r *ParkingRepository) ListSites(ctx context.Context) ([]parking.Site, error) {
	var rows []Site
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	sites := make([]parking.Site, 0, len(rows))
	for _, row := range rows {
		sites = append(sites, row.toDomain())
	}
	return sites, nil
}

func (r *ParkingRepository) DeleteMarkers(ctx context.Context, siteID string) error {
	return r.db.WithContext(ctx).Where("site_id = ?", siteID).Delete(&Marker{}).Error
}

func (r *ParkingRepository) InsertMarkers(ctx context.Context, markers []parking.Marker) error {
	if len(markers) == 0 {
		return nil
	}
	rows := make([]Marker, 0, len(markers))
	for _, m := range markers {
		row := Marker{
			SiteID:        m.SiteID,
			MarkerIndex:   m.Index,
			PlateText:     m.PlateText,
			PixelX:        m.X,
			PixelY:        m.Y,
			Lat:           m.Lat,
			Lng:           m.Lng,
			MatchDistance: m.MatchDistance,
			ImageFilename: m.ImageFilename,
			CreatedAt:     m.CreatedAt,
		}
		if id, err := uuid.Parse(m.RunID); err == nil {
			row.RunID = &id
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = time.Now()
		}
		rows = append(rows, row)
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *ParkingRepository) UpsertAreaCount(ctx context.Context, count parking.AreaCount) error {
	row := AreaCount{
		SiteID:      count.SiteID,
		Count:       count.Count,
		SourceImage: count.SourceImage,
		ObservedAt:  count.ObservedAt,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "site_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"count", "source_image", "observed_at"}),
		}).
		Create(&row).Error
}

func (r *ParkingRepository) InTx(ctx context.Context, fn func(recordsync.Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ParkingRepository{db: tx})
	})
}

// FindMarkers returns stored markers, optionally for one site, ordered by
// site, index and age.
func (r *ParkingRepository) FindMarkers(ctx context.Context, siteID *string) ([]parking.Marker, error) {
	query := r.db.WithContext(ctx).Model(&Marker{})
	if siteID != nil {
		query = query.Where("site_id = ?", *siteID)
	}

	var rows []Marker
	if err := query.Order("site_id, marker_index, created_at").Find(&rows).Error; err != nil {
		return nil, err
	}

	markers := make([]parking.Marker, 0, len(rows))
	for _, row := range rows {
		m := parking.Marker{
			SiteID:        row.SiteID,
			Index:         row.MarkerIndex,
			PlateText:     row.PlateText,
			X:             row.PixelX,
			Y:             row.PixelY,
			Lat:           row.Lat,
			Lng:           row.Lng,
			MatchDistance: row.MatchDistance,
			ImageFilename: row.ImageFilename,
			CreatedAt:     row.CreatedAt,
		}
		if row.RunID != nil {
			m.RunID = row.RunID.String()
		}
		markers = append(markers, m)
	}
	return markers, nil
}

func (r *ParkingRepository) ListAreaCounts(ctx context.Context) ([]parking.AreaCount, error) {
	var rows []AreaCount
	if err := r.db.WithContext(ctx).Order("site_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	counts := make([]parking.AreaCount, 0, len(rows))
	for _, row := range rows {
		counts = append(counts, parking.AreaCount{
			SiteID:      row.SiteID,
			Count:       row.Count,
			SourceImage: row.SourceImage,
			ObservedAt:  row.ObservedAt,
		})
	}
	return counts, nil
}

func (r *ParkingRepository) CreateImageUpload(ctx context.Context, upload *parking.ImageUpload) error {
	row := ImageUpload{
		Filename:  upload.Filename,
		Status:    string(parking.UploadStatusUploaded),
		CreatedAt: upload.CreatedAt,
	}
	if upload.Location != "" {
		row.Location = &upload.Location
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}

	*upload = row.toDomain()
	return nil
}

// FindPendingUploads returns unprocessed uploads, oldest first.
func (r *ParkingRepository) FindPendingUploads(ctx context.Context) ([]parking.ImageUpload, error) {
	var rows []ImageUpload
	err := r.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return uploadsToDomain(rows), nil
}

func (r *ParkingRepository) FindUploads(ctx context.Context, limit, offset int) ([]parking.ImageUpload, error) {
	query := r.db.WithContext(ctx).Model(&ImageUpload{}).Order("created_at DESC, id DESC")

	if limit > 0 {
		query = query.Limit(limit)
		if limit > 100 {
			query = query.Limit(100)
		}
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []ImageUpload
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return uploadsToDomain(rows), nil
}

// MarkUpload records the outcome of a run. Every status but uploaded and
// processing takes the upload out of the pending queue.
func (r *ParkingRepository) MarkUpload(ctx context.Context, id int64, status parking.UploadStatus) error {
	processed := status != parking.UploadStatusUploaded && status != parking.UploadStatusProcessing
	return r.db.WithContext(ctx).
		Model(&ImageUpload{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": string(status), "processed": processed}).Error
}

func (r *ParkingRepository) SetUploadLocation(ctx context.Context, id int64, location string) error {
	return r.db.WithContext(ctx).
		Model(&ImageUpload{}).
		Where("id = ?", id).
		Update("location", location).Error
}

func (row Site) toDomain() parking.Site {
	site := parking.Site{
		ID: row.ID,
		Bounds: parking.GeoBounds{
			LatMin: row.LatMin,
			LatMax: row.LatMax,
			LngMin: row.LngMin,
			LngMax: row.LngMax,
		},
		Width:      row.ImgWidth,
		Height:     row.ImgHeight,
		Homography: row.Homography.Data(),
		Polygon:    row.Polygon.Data(),
		Capacity:   row.Capacity,
		UpdatedAt:  row.UpdatedAt,
	}
	if row.Convention != nil {
		site.Convention = parking.Convention(*row.Convention)
	}
	return site
}

func (row ImageUpload) toDomain() parking.ImageUpload {
	u := parking.ImageUpload{
		ID:        row.ID,
		Filename:  row.Filename,
		Status:    parking.UploadStatus(row.Status),
		Processed: row.Processed,
		CreatedAt: row.CreatedAt,
	}
	if row.Location != nil {
		u.Location = *row.Location
	}
	return u
}

func uploadsToDomain(rows []ImageUpload) []parking.ImageUpload {
	out := make([]parking.ImageUpload, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}

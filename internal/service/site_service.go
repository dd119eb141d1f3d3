package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"parkmap-service/internal/availability"
	"parkmap-service/internal/calibration"
	"parkmap-service/internal/domain/parking"
	"parkmap-service/internal/recordsync"
)

// SiteInput describes a calibration. Each part may be given directly or
// derived: bounds from a raw geo boundary, the homography from four camera
// pixels matching the normalized corners, the polygon from geo corners.
type SiteInput struct {
	Bounds          *parking.GeoBounds `json:"bounds,omitempty"`
	GeoBoundary     []parking.LatLng   `json:"geo_boundary,omitempty"`
	Width           int                `json:"width"`
	Height          int                `json:"height"`
	Homography      *[9]float64        `json:"homography,omitempty"`
	ReferencePoints *[4]parking.Point  `json:"reference_points,omitempty"`
	Polygon         *[4]parking.Point  `json:"polygon,omitempty"`
	GeoPolygon      *[4]parking.LatLng `json:"geo_polygon,omitempty"`
	Capacity        int                `json:"capacity"`
	Convention      parking.Convention `json:"convention,omitempty"`
}

func (s *PipelineService) ConfigureSite(ctx context.Context, id string, in SiteInput) (*parking.Site, error) {
	id = normalizeSiteID(id)
	if id == "" {
		return nil, fmt.Errorf("%w: site id is required", ErrInvalidInput)
	}
	if in.Width <= 0 || in.Height <= 0 {
		return nil, fmt.Errorf("%w: width and height must be positive", ErrInvalidInput)
	}
	if in.Capacity < 0 {
		return nil, fmt.Errorf("%w: capacity must not be negative", ErrInvalidInput)
	}

	site := parking.Site{
		ID:         id,
		Width:      in.Width,
		Height:     in.Height,
		Capacity:   in.Capacity,
		Convention: in.Convention,
	}

	switch {
	case in.Bounds != nil:
		site.Bounds = *in.Bounds
	case len(in.GeoBoundary) > 0:
		b, err := calibration.BoundsFromGeoPolygon(in.GeoBoundary)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		site.Bounds = b
	default:
		return nil, fmt.Errorf("%w: bounds or geo_boundary is required", ErrInvalidInput)
	}

	switch {
	case in.Homography != nil:
		site.Homography = *in.Homography
	case in.ReferencePoints != nil:
		corners := calibration.SignedUnitCorners
		if in.Convention == parking.ConventionUnitSquare {
			corners = calibration.UnitSquareCorners
		}
		h, err := calibration.EstimateHomography(*in.ReferencePoints, corners)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		site.Homography = h
	default:
		return nil, fmt.Errorf("%w: homography or reference_points is required", ErrInvalidInput)
	}

	cal, err := calibration.New(site)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	switch {
	case in.Polygon != nil:
		site.Polygon = *in.Polygon
	case in.GeoPolygon != nil:
		poly, err := cal.PolygonFromGeo(*in.GeoPolygon)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		site.Polygon = poly
	}

	if err := s.repo.UpsertSite(ctx, site); err != nil {
		s.log.Error().Err(err).Str("site_id", id).Msg("failed to upsert site")
		return nil, fmt.Errorf("failed to upsert site: %w", err)
	}

	s.log.Info().
		Str("site_id", id).
		Int("width", site.Width).
		Int("height", site.Height).
		Str("convention", string(cal.Convention())).
		Msg("site calibration stored")

	return &site, nil
}

func (s *PipelineService) ListSites(ctx context.Context) ([]parking.Site, error) {
	sites, err := s.repo.ListSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	return sites, nil
}

// SiteMarkers returns the marker document of one site, one entry per index
// with the newest record winning.
func (s *PipelineService) SiteMarkers(ctx context.Context, siteID string) ([]parking.MarkerView, error) {
	siteID = normalizeSiteID(siteID)
	if siteID == "" {
		return nil, fmt.Errorf("%w: site id is required", ErrInvalidInput)
	}

	markers, err := s.repo.FindMarkers(ctx, &siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to find markers: %w", err)
	}
	if len(markers) == 0 {
		site, err := s.repo.GetSite(ctx, siteID)
		if err != nil {
			return nil, fmt.Errorf("failed to load site: %w", err)
		}
		if site == nil {
			return nil, fmt.Errorf("%w: site %s", ErrNotFound, siteID)
		}
	}
	return markerViews(markers), nil
}

func (s *PipelineService) AllMarkers(ctx context.Context) ([]parking.MarkerView, error) {
	markers, err := s.repo.FindMarkers(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to find markers: %w", err)
	}
	return markerViews(markers), nil
}

func (s *PipelineService) Availability(ctx context.Context) ([]availability.Area, error) {
	sites, err := s.repo.ListSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	counts, err := s.repo.ListAreaCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list area counts: %w", err)
	}
	return availability.Areas(sites, counts), nil
}

func (s *PipelineService) GroupAvailability(ctx context.Context) ([]availability.Group, error) {
	areas, err := s.Availability(ctx)
	if err != nil {
		return nil, err
	}
	return availability.Groups(areas), nil
}

func (s *PipelineService) ListUploads(ctx context.Context, limit, offset int) ([]parking.ImageUpload, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	uploads, err := s.repo.FindUploads(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to find uploads: %w", err)
	}
	return uploads, nil
}

type markerKey struct {
	site  string
	index int
}

func markerViews(markers []parking.Marker) []parking.MarkerView {
	latest := recordsync.SelectLatest(markers,
		func(m parking.Marker) markerKey { return markerKey{m.SiteID, m.Index} },
		func(m parking.Marker) time.Time { return m.CreatedAt },
	)
	sort.SliceStable(latest, func(i, j int) bool {
		if latest[i].SiteID != latest[j].SiteID {
			return latest[i].SiteID < latest[j].SiteID
		}
		return latest[i].Index < latest[j].Index
	})

	views := make([]parking.MarkerView, 0, len(latest))
	for _, m := range latest {
		views = append(views, parking.MarkerView{
			Index:         m.Index,
			PlateText:     m.PlateText,
			PixelX:        int(math.Round(m.X)),
			PixelY:        int(math.Round(m.Y)),
			Lat:           m.Lat,
			Lng:           m.Lng,
			SiteID:        m.SiteID,
			ImageFilename: m.ImageFilename,
		})
	}
	return views
}

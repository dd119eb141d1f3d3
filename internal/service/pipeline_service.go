package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"parkmap-service/internal/align"
	"parkmap-service/internal/calibration"
	"parkmap-service/internal/domain/parking"
	"parkmap-service/internal/matcher"
	"parkmap-service/internal/metrics"
	"parkmap-service/internal/projector"
	"parkmap-service/internal/recordsync"
	"parkmap-service/internal/repository"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrRunInProgress = errors.New("pipeline run already in progress")
)

type Options struct {
	Matcher    matcher.Config
	Aligner    align.PointAligner
	UploadsDir string
}

type PipelineService struct {
	repo       *repository.ParkingRepository
	syncer     *recordsync.Synchronizer
	matcher    *matcher.Matcher
	aligner    align.PointAligner
	detector   parking.Detector
	recognizer parking.Recognizer
	classifier parking.SiteClassifier
	metrics    *metrics.Metrics
	uploadsDir string
	now        func() time.Time
	runMu      sync.Mutex
	log        zerolog.Logger
}

// NewPipelineService wires the pipeline. classifier may be nil, in which
// case uploads without a location fail.
func NewPipelineService(
	repo *repository.ParkingRepository,
	detector parking.Detector,
	recognizer parking.Recognizer,
	classifier parking.SiteClassifier,
	opts Options,
	m *metrics.Metrics,
	log zerolog.Logger,
) *PipelineService {
	aligner := opts.Aligner
	if aligner == nil {
		aligner = align.DefaultCenterline()
	}
	if m == nil {
		m = metrics.New()
	}
	return &PipelineService{
		repo:       repo,
		syncer:     recordsync.New(repo, log),
		matcher:    matcher.New(opts.Matcher),
		aligner:    aligner,
		detector:   detector,
		recognizer: recognizer,
		classifier: classifier,
		metrics:    m,
		uploadsDir: opts.UploadsDir,
		now:        time.Now,
		log:        log,
	}
}

func (s *PipelineService) RegisterImage(ctx context.Context, payload parking.ImagePayload) (*parking.ImageUpload, error) {
	filename := strings.TrimSpace(payload.Filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}
	if filepath.Base(filename) != filename || filename == "." || filename == ".." {
		return nil, fmt.Errorf("%w: filename must not contain a path", ErrInvalidInput)
	}

	upload := &parking.ImageUpload{
		Filename:  filename,
		Location:  normalizeSiteID(payload.Location),
		CreatedAt: payload.CreatedAt,
	}
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = s.now()
	}

	if err := s.repo.CreateImageUpload(ctx, upload); err != nil {
		s.log.Error().Err(err).Str("filename", filename).Msg("failed to register image")
		return nil, fmt.Errorf("failed to register image: %w", err)
	}

	s.log.Info().
		Int64("upload_id", upload.ID).
		Str("filename", upload.Filename).
		Str("location", upload.Location).
		Time("created_at", upload.CreatedAt).
		Msg("registered image upload")

	return upload, nil
}

// BuildMarkers runs detection, matching, projection and alignment for one
// image. An empty result means no viable vehicle/plate pair was found.
func (s *PipelineService) BuildMarkers(ctx context.Context, cal *calibration.Calibration, imagePath string) ([]parking.Marker, error) {
	detections, err := s.detector.Detect(ctx, imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect: %w", err)
	}
	vehicles, plates := matcher.SplitDetections(detections)
	if len(vehicles) == 0 || len(plates) == 0 {
		return nil, nil
	}

	texts, err := s.recognizer.Recognize(ctx, imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to recognize text: %w", err)
	}

	matches := s.matcher.Match(vehicles, plates, texts)
	if len(matches) == 0 {
		return nil, nil
	}

	markers, err := projector.Project(cal, matches, s.matcher.Config().UnknownText)
	if err != nil {
		return nil, err
	}

	points := make([]parking.Point, len(markers))
	for i, m := range markers {
		points[i] = m.Position()
	}
	aligned := s.aligner.Align(points, cal.Polygon())

	for i := range markers {
		ll, err := cal.CanonicalPixelToGeo(aligned[i].X, aligned[i].Y)
		if err != nil {
			return nil, err
		}
		markers[i].X, markers[i].Y = aligned[i].X, aligned[i].Y
		markers[i].Lat, markers[i].Lng = ll.Lat, ll.Lng
	}
	return markers, nil
}

// ProcessImage builds and commits the markers of one image for its site.
// Images without a viable match leave the site's stored markers untouched.
func (s *PipelineService) ProcessImage(ctx context.Context, site parking.Site, upload parking.ImageUpload, runID string) (int, error) {
	cal, err := calibration.New(site)
	if err != nil {
		return 0, err
	}

	markers, err := s.BuildMarkers(ctx, cal, filepath.Join(s.uploadsDir, upload.Filename))
	if err != nil {
		return 0, err
	}
	if len(markers) == 0 {
		s.log.Info().
			Str("site_id", site.ID).
			Str("filename", upload.Filename).
			Msg("no viable matches, keeping previous markers")
		return 0, nil
	}

	createdAt := s.now()
	for i := range markers {
		markers[i].ImageFilename = upload.Filename
		markers[i].RunID = runID
		markers[i].CreatedAt = createdAt
	}

	if err := s.syncer.Commit(ctx, site.ID, markers, upload.Filename, upload.CreatedAt); err != nil {
		return 0, err
	}
	s.metrics.SiteCommitted(site.ID, len(markers))

	s.log.Info().
		Str("site_id", site.ID).
		Str("filename", upload.Filename).
		Str("run_id", runID).
		Int("markers", len(markers)).
		Msg("committed site markers")

	return len(markers), nil
}

// RunPending processes the queue of unprocessed uploads. Only the newest
// upload of each site is processed; older ones are marked skipped. A failure
// on one site never stops the others.
func (s *PipelineService) RunPending(ctx context.Context) (*parking.BatchResult, error) {
	if !s.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	done := s.metrics.RunStarted()
	defer done()

	runID := uuid.NewString()
	log := s.log.With().Str("run_id", runID).Logger()

	pending, err := s.repo.FindPendingUploads(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending uploads: %w", err)
	}

	result := &parking.BatchResult{RunID: runID, Results: make([]parking.RunResult, 0, len(pending))}
	if len(pending) == 0 {
		log.Debug().Msg("no pending uploads")
		return result, nil
	}

	located := make([]parking.ImageUpload, 0, len(pending))
	for _, u := range pending {
		if u.Location != "" {
			located = append(located, u)
			continue
		}
		siteID, err := s.locate(ctx, u)
		if err != nil {
			result.Results = append(result.Results, s.finish(ctx, log, u, "", parking.UploadStatusFailed, 0, err))
			continue
		}
		u.Location = siteID
		located = append(located, u)
	}

	latest, superseded := recordsync.Partition(located,
		func(u parking.ImageUpload) string { return u.Location },
		func(u parking.ImageUpload) time.Time { return u.CreatedAt },
	)

	for _, u := range superseded {
		result.Results = append(result.Results, s.finish(ctx, log, u, u.Location, parking.UploadStatusSkipped, 0, nil))
		result.Skipped++
	}

	for _, u := range latest {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Results = append(result.Results, s.processUpload(ctx, log, u, runID))
	}

	log.Info().
		Int("pending", len(pending)).
		Int("processed", len(latest)).
		Int("skipped", result.Skipped).
		Msg("pipeline run finished")

	return result, nil
}

func (s *PipelineService) processUpload(ctx context.Context, log zerolog.Logger, u parking.ImageUpload, runID string) parking.RunResult {
	site, err := s.repo.GetSite(ctx, u.Location)
	if err != nil {
		return s.finish(ctx, log, u, u.Location, parking.UploadStatusFailed, 0, fmt.Errorf("failed to load site: %w", err))
	}
	if site == nil {
		return s.finish(ctx, log, u, u.Location, parking.UploadStatusFailed, 0, fmt.Errorf("%w: site %s has no calibration", ErrNotFound, u.Location))
	}

	if err := s.repo.MarkUpload(ctx, u.ID, parking.UploadStatusProcessing); err != nil {
		return s.finish(ctx, log, u, u.Location, parking.UploadStatusFailed, 0, fmt.Errorf("failed to mark upload: %w", err))
	}

	n, err := s.ProcessImage(ctx, *site, u, runID)
	if err != nil {
		return s.finish(ctx, log, u, u.Location, parking.UploadStatusFailed, 0, err)
	}
	return s.finish(ctx, log, u, u.Location, parking.UploadStatusCompleted, n, nil)
}

func (s *PipelineService) locate(ctx context.Context, u parking.ImageUpload) (string, error) {
	if s.classifier == nil {
		return "", fmt.Errorf("%w: upload %d has no location", ErrInvalidInput, u.ID)
	}
	siteID, ok, err := s.classifier.Classify(ctx, filepath.Join(s.uploadsDir, u.Filename))
	if err != nil {
		return "", fmt.Errorf("failed to classify image: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: no site resembles %s", ErrNotFound, u.Filename)
	}
	siteID = normalizeSiteID(siteID)
	if err := s.repo.SetUploadLocation(ctx, u.ID, siteID); err != nil {
		return "", fmt.Errorf("failed to store inferred location: %w", err)
	}
	s.log.Info().Int64("upload_id", u.ID).Str("site_id", siteID).Msg("inferred upload location")
	return siteID, nil
}

// finish records the final status of an upload and reports it.
func (s *PipelineService) finish(ctx context.Context, log zerolog.Logger, u parking.ImageUpload, siteID string, status parking.UploadStatus, markers int, cause error) parking.RunResult {
	res := parking.RunResult{
		UploadID: u.ID,
		SiteID:   siteID,
		Filename: u.Filename,
		Status:   status,
		Markers:  markers,
	}
	if cause != nil {
		res.Error = cause.Error()
		log.Error().
			Err(cause).
			Int64("upload_id", u.ID).
			Str("site_id", siteID).
			Str("filename", u.Filename).
			Msg("failed to process upload")
	}

	if err := s.repo.MarkUpload(ctx, u.ID, status); err != nil {
		log.Error().Err(err).Int64("upload_id", u.ID).Str("status", string(status)).Msg("failed to update upload status")
	}
	s.metrics.ImageProcessed(string(status))
	return res
}

func normalizeSiteID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

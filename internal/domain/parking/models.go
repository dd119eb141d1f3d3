package parking

import (
	"context"
	"math"
	"time"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

func (p Point) Scale(k float64) Point { return Point{X: p.X * k, Y: p.Y * k} }

func (p Point) Dot(q Point) float64 { return p.X*q.X + p.Y*q.Y }

// Cross returns the z component of the 2-D cross product.
func (p Point) Cross(q Point) float64 { return p.X*q.Y - p.Y*q.X }

func (p Point) Len() float64 { return math.Hypot(p.X, p.Y) }

func (p Point) DistanceTo(q Point) float64 { return p.Sub(q).Len() }

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type GeoBounds struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LngMin float64 `json:"lng_min"`
	LngMax float64 `json:"lng_max"`
}

// Convention selects how the homography's target space is laid out.
type Convention string

const (
	// ConventionSignedUnit maps [-1,+1] on both axes, origin at the center, y up.
	ConventionSignedUnit Convention = "signed_unit"
	// ConventionUnitSquare maps [0,1] on both axes in image orientation.
	ConventionUnitSquare Convention = "unit_square"
)

// Site is the per-camera calibration record.
type Site struct {
	ID         string     `json:"id"`
	Bounds     GeoBounds  `json:"bounds"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Homography [9]float64 `json:"homography"`
	Polygon    [4]Point   `json:"polygon"`
	Capacity   int        `json:"capacity"`
	Convention Convention `json:"convention,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type DetectionClass string

const (
	ClassVehicle DetectionClass = "vehicle"
	ClassPlate   DetectionClass = "plate"
)

type Box struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

func (b Box) Centroid() Point {
	return Point{X: (b.XMin + b.XMax) / 2, Y: (b.YMin + b.YMax) / 2}
}

type Detection struct {
	Box   Box            `json:"box"`
	Class DetectionClass `json:"class"`
}

type TextRegion struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"conf"`
	Center     Point   `json:"center"`
}

// Match pairs a vehicle with a plate from the same image. TextIndex is -1
// when no recognized text qualified and Text holds the placeholder.
type Match struct {
	VehicleIndex    int     `json:"vehicle_index"`
	PlateIndex      int     `json:"plate_index"`
	Text            string  `json:"text"`
	TextIndex       int     `json:"text_index"`
	Distance        float64 `json:"distance"`
	VehicleCentroid Point   `json:"vehicle_centroid"`
}

type Marker struct {
	SiteID        string    `json:"site_id"`
	Index         int       `json:"index"`
	PlateText     string    `json:"plate_text"`
	X             float64   `json:"x"`
	Y             float64   `json:"y"`
	Lat           float64   `json:"lat"`
	Lng           float64   `json:"lng"`
	MatchDistance float64   `json:"match_distance"`
	ImageFilename string    `json:"image_filename"`
	RunID         string    `json:"run_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func (m Marker) Position() Point { return Point{X: m.X, Y: m.Y} }

// MarkerView is one entry of the per-site JSON document served to map clients.
type MarkerView struct {
	Index         int     `json:"index"`
	PlateText     string  `json:"plate_text"`
	PixelX        int     `json:"pixel_x"`
	PixelY        int     `json:"pixel_y"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	SiteID        string  `json:"site_id"`
	ImageFilename string  `json:"image_filename"`
}

type AreaCount struct {
	SiteID      string    `json:"site_id"`
	Count       int       `json:"count"`
	SourceImage string    `json:"source_image"`
	ObservedAt  time.Time `json:"observed_at"`
}

type UploadStatus string

const (
	UploadStatusUploaded   UploadStatus = "uploaded"
	UploadStatusProcessing UploadStatus = "processing"
	UploadStatusCompleted  UploadStatus = "completed"
	UploadStatusSkipped    UploadStatus = "skipped"
	UploadStatusFailed     UploadStatus = "failed"
)

type ImageUpload struct {
	ID        int64        `json:"id"`
	Filename  string       `json:"filename"`
	Location  string       `json:"location,omitempty"`
	Status    UploadStatus `json:"status"`
	Processed bool         `json:"processed"`
	CreatedAt time.Time    `json:"created_at"`
}

type ImagePayload struct {
	Filename  string    `json:"filename"`
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Detector returns class-tagged boxes for one image.
type Detector interface {
	Detect(ctx context.Context, imagePath string) ([]Detection, error)
}

// Recognizer returns text regions for one image.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) ([]TextRegion, error)
}

// SiteClassifier guesses which site an image was taken at.
type SiteClassifier interface {
	Classify(ctx context.Context, imagePath string) (string, bool, error)
}

type RunResult struct {
	UploadID int64        `json:"upload_id"`
	SiteID   string       `json:"site_id"`
	Filename string       `json:"filename"`
	Status   UploadStatus `json:"status"`
	Markers  int          `json:"markers"`
	Error    string       `json:"error,omitempty"`
}

type BatchResult struct {
	RunID   string      `json:"run_id"`
	Results []RunResult `json:"results"`
	Skipped int         `json:"skipped"`
}

package vision

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
)

const thumbnailSize = 32

var baseImageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

type reference struct {
	siteID  string
	feature []float64
}

// ThumbnailClassifier picks the site whose reference image looks most like
// the query. Images are compared as mean-centred grayscale thumbnails by
// cosine similarity.
type ThumbnailClassifier struct {
	refs          []reference
	minSimilarity float64
	log           zerolog.Logger
}

// NewThumbnailClassifier loads every reference image in dir. The site id is
// the file name without extension and without an "_output" suffix.
func NewThumbnailClassifier(dir string, minSimilarity float64, log zerolog.Logger) (*ThumbnailClassifier, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list base images: %w", err)
	}

	c := &ThumbnailClassifier{minSimilarity: minSimilarity, log: log}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || !baseImageExts[ext] {
			continue
		}
		siteID := strings.TrimSuffix(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())), "_output")

		feature, err := thumbnailFeature(filepath.Join(dir, e.Name()))
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name()).Msg("skipping unreadable base image")
			continue
		}
		c.refs = append(c.refs, reference{siteID: siteID, feature: feature})
	}
	sort.Slice(c.refs, func(i, j int) bool { return c.refs[i].siteID < c.refs[j].siteID })

	log.Info().Int("sites", len(c.refs)).Str("dir", dir).Msg("loaded base images")
	return c, nil
}

func (c *ThumbnailClassifier) Classify(ctx context.Context, imagePath string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	query, err := thumbnailFeature(imagePath)
	if err != nil {
		return "", false, err
	}

	best, bestSim := "", -1.0
	for _, ref := range c.refs {
		sim := cosine(query, ref.feature)
		c.log.Debug().Str("site_id", ref.siteID).Float64("similarity", sim).Msg("base image similarity")
		if sim > bestSim {
			best, bestSim = ref.siteID, sim
		}
	}

	if best == "" || bestSim < c.minSimilarity {
		return "", false, nil
	}
	return best, true, nil
}

func thumbnailFeature(path string) ([]float64, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return featureOf(img), nil
}

func featureOf(img image.Image) []float64 {
	thumb := imaging.Grayscale(imaging.Resize(img, thumbnailSize, thumbnailSize, imaging.Linear))

	feature := make([]float64, thumbnailSize*thumbnailSize)
	for i := range feature {
		feature[i] = float64(thumb.Pix[i*4])
	}
	mean := floats.Sum(feature) / float64(len(feature))
	floats.AddConst(-mean, feature)
	return feature
}

func cosine(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

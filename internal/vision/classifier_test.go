package vision

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int, horizontal bool) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(255 * y / (h - 1))
			if horizontal {
				v = uint8(255 * x / (w - 1))
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func saveImage(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, imaging.Save(img, path))
}

func TestThumbnailClassifier(t *testing.T) {
	base := t.TempDir()
	saveImage(t, filepath.Join(base, "A01_output.png"), gradient(128, 96, true))
	saveImage(t, filepath.Join(base, "B02.png"), gradient(128, 96, false))

	c, err := NewThumbnailClassifier(base, 0.9, zerolog.Nop())
	require.NoError(t, err)

	query := filepath.Join(t.TempDir(), "upload.png")
	saveImage(t, query, gradient(256, 192, true))

	site, ok, err := c.Classify(context.Background(), query)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A01", site)

	saveImage(t, query, gradient(200, 200, false))
	site, ok, err = c.Classify(context.Background(), query)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "B02", site)
}

func TestThumbnailClassifier_BelowThreshold(t *testing.T) {
	base := t.TempDir()
	saveImage(t, filepath.Join(base, "A01.png"), gradient(64, 64, true))

	c, err := NewThumbnailClassifier(base, 0.9, zerolog.Nop())
	require.NoError(t, err)

	query := filepath.Join(t.TempDir(), "upload.png")
	saveImage(t, query, gradient(64, 64, false))

	_, ok, err := c.Classify(context.Background(), query)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestThumbnailClassifier_NoReferences(t *testing.T) {
	c, err := NewThumbnailClassifier(t.TempDir(), 0, zerolog.Nop())
	require.NoError(t, err)

	query := filepath.Join(t.TempDir(), "upload.png")
	saveImage(t, query, gradient(64, 64, true))

	_, ok, err := c.Classify(context.Background(), query)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestThumbnailClassifier_MissingDir(t *testing.T) {
	_, err := NewThumbnailClassifier(filepath.Join(t.TempDir(), "absent"), 0.5, zerolog.Nop())
	assert.Error(t, err)
}

func TestCosine_FlatImage(t *testing.T) {
	flat := featureOf(image.NewGray(image.Rect(0, 0, 40, 40)))
	assert.Equal(t, 0.0, cosine(flat, flat))
}

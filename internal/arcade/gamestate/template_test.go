package gamestate

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slicebot/slicebot/internal/arcade/s1frames"
	"github.com/slicebot/slicebot/internal/cv"
)

// bannerScene builds a textured screen with a high-contrast banner at
// (30,20), and returns the scene plus the banner crop used as template.
func bannerScene() (*image.RGBA, *image.RGBA) {
	scene := image.NewRGBA(image.Rect(0, 0, 120, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 120; x++ {
			scene.SetRGBA(x, y, color.RGBA{R: uint8(x * 2), G: uint8(y * 3), B: uint8((x + y) % 256), A: 255})
		}
	}
	for y := 0; y < 12; y++ {
		for x := 0; x < 24; x++ {
			v := uint8(0)
			if (x/4+y/4)%2 == 0 {
				v = 255
			}
			scene.SetRGBA(30+x, 20+y, color.RGBA{R: v, G: 255 - v, B: v, A: 255})
		}
	}
	tmpl := cv.CropRegion(scene, image.Rect(30, 20, 54, 32))
	return scene, tmpl
}

func grabberFor(img image.Image) Grabber {
	return func(context.Context) (image.Image, error) { return img, nil }
}

func TestTemplateChecker_FindsBanner(t *testing.T) {
	t.Parallel()

	scene, tmpl := bannerScene()
	checker := NewTemplateCheckerFromImage(grabberFor(scene), tmpl, 0.9)

	state, err := checker.Check(context.Background(), s1frames.Frame{})
	require.NoError(t, err)
	assert.Equal(t, StateGameOver, state)
}

func TestTemplateChecker_NoBannerMeansPlaying(t *testing.T) {
	t.Parallel()

	_, tmpl := bannerScene()
	flat := image.NewRGBA(image.Rect(0, 0, 120, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 120; x++ {
			flat.SetRGBA(x, y, color.RGBA{R: 90, G: 90, B: 90, A: 255})
		}
	}
	checker := NewTemplateCheckerFromImage(grabberFor(flat), tmpl, 0.9)

	state, err := checker.Check(context.Background(), s1frames.Frame{})
	require.NoError(t, err)
	assert.Equal(t, StatePlaying, state)
}

func TestTemplateChecker_SearchRegionExcludesBanner(t *testing.T) {
	t.Parallel()

	scene, tmpl := bannerScene()
	checker := NewTemplateCheckerFromImage(grabberFor(scene), tmpl, 0.9)
	checker.SetSearchRegion(image.Rect(60, 40, 120, 80))

	state, err := checker.Check(context.Background(), s1frames.Frame{})
	require.NoError(t, err)
	assert.Equal(t, StatePlaying, state)
}

func TestTemplateChecker_GrabFailureIsUnknown(t *testing.T) {
	t.Parallel()

	_, tmpl := bannerScene()
	grab := func(context.Context) (image.Image, error) {
		return nil, errors.New("capture device busy")
	}
	checker := NewTemplateCheckerFromImage(grab, tmpl, 0.9)

	state, err := checker.Check(context.Background(), s1frames.Frame{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grab screen")
	assert.Equal(t, StateUnknown, state)
}

func TestNewTemplateChecker_LoadsPNG(t *testing.T) {
	t.Parallel()

	scene, tmpl := bannerScene()
	path := filepath.Join(t.TempDir(), "banner.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, tmpl))
	require.NoError(t, f.Close())

	checker, err := NewTemplateChecker(grabberFor(scene), path, 0.9)
	require.NoError(t, err)

	state, err := checker.Check(context.Background(), s1frames.Frame{})
	require.NoError(t, err)
	assert.Equal(t, StateGameOver, state)
}

func TestNewTemplateChecker_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewTemplateChecker(grabberFor(nil), filepath.Join(t.TempDir(), "absent.png"), 0.9)
	require.Error(t, err)
}

// Package cv implements the small amount of pure-Go image matching the bot
// needs: locating a known template (the game-over banner) inside a frame
// grab. No external CV dependency; frames are small and the search regions
// smaller, so a direct scan is fast enough.
package cv

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"os"
)

// MatchMethod selects the template matching algorithm.
type MatchMethod int

const (
	// MatchSAD - sum of absolute differences (fastest)
	MatchSAD MatchMethod = iota
	// MatchSSD - sum of squared differences (balanced)
	MatchSSD
	// MatchNCC - normalized cross-correlation (most robust to lighting)
	MatchNCC
)

// MatchConfig configures a template search.
type MatchConfig struct {
	Method       MatchMethod
	Threshold    float64          // 0.0-1.0, higher = more strict
	SearchRegion *image.Rectangle // optional: limit search area
}

// DefaultMatchConfig returns recommended settings.
func DefaultMatchConfig() *MatchConfig {
	return &MatchConfig{
		Method:    MatchNCC,
		Threshold: 0.8,
	}
}

// MatchResult describes the best template position found.
type MatchResult struct {
	Found      bool
	Location   image.Point
	Confidence float64
}

var (
	ErrTemplateTooLarge = fmt.Errorf("template larger than search image")
	ErrInvalidImage     = fmt.Errorf("invalid image provided")
)

// FindTemplate scans haystack for the best placement of needle and reports
// whether the best score clears the configured threshold.
func FindTemplate(haystack, needle *image.RGBA, config *MatchConfig) *MatchResult {
	if config == nil {
		config = DefaultMatchConfig()
	}

	hb := haystack.Bounds()
	nb := needle.Bounds()
	nw, nh := nb.Dx(), nb.Dy()

	if nw > hb.Dx() || nh > hb.Dy() {
		return &MatchResult{Found: false}
	}

	search := hb
	if config.SearchRegion != nil {
		search = config.SearchRegion.Intersect(hb)
		if search.Empty() {
			return &MatchResult{Found: false}
		}
	}

	// Last placement where the needle still fits entirely inside the search
	// area; <= below is deliberate.
	maxY := search.Max.Y - nh
	maxX := search.Max.X - nw
	if maxY < search.Min.Y || maxX < search.Min.X {
		return &MatchResult{Found: false}
	}

	bestScore := 0.0
	bestLoc := image.Point{}
	for y := search.Min.Y; y <= maxY; y++ {
		for x := search.Min.X; x <= maxX; x++ {
			score := scoreAt(haystack, needle, x, y, config.Method)
			if score > bestScore {
				bestScore = score
				bestLoc = image.Point{X: x, Y: y}
			}
		}
	}

	return &MatchResult{
		Found:      bestScore >= config.Threshold,
		Location:   bestLoc,
		Confidence: bestScore,
	}
}

func scoreAt(haystack, needle *image.RGBA, x, y int, method MatchMethod) float64 {
	nb := needle.Bounds()
	nw, nh := nb.Dx(), nb.Dy()

	switch method {
	case MatchSAD:
		return scoreSAD(haystack, needle, x, y, nw, nh)
	case MatchNCC:
		return scoreNCC(haystack, needle, x, y, nw, nh)
	default:
		return scoreSSD(haystack, needle, x, y, nw, nh)
	}
}

func scoreSAD(haystack, needle *image.RGBA, x, y, w, h int) float64 {
	var sad uint64
	for ny := 0; ny < h; ny++ {
		for nx := 0; nx < w; nx++ {
			hIdx := (y+ny-haystack.Rect.Min.Y)*haystack.Stride + (x+nx-haystack.Rect.Min.X)*4
			nIdx := ny*needle.Stride + nx*4
			sad += uint64(iabs(int(haystack.Pix[hIdx]) - int(needle.Pix[nIdx])))
			sad += uint64(iabs(int(haystack.Pix[hIdx+1]) - int(needle.Pix[nIdx+1])))
			sad += uint64(iabs(int(haystack.Pix[hIdx+2]) - int(needle.Pix[nIdx+2])))
		}
	}
	maxSAD := float64(w * h * 3 * 255)
	return 1.0 - float64(sad)/maxSAD
}

func scoreSSD(haystack, needle *image.RGBA, x, y, w, h int) float64 {
	var ssd uint64
	for ny := 0; ny < h; ny++ {
		for nx := 0; nx < w; nx++ {
			hIdx := (y+ny-haystack.Rect.Min.Y)*haystack.Stride + (x+nx-haystack.Rect.Min.X)*4
			nIdx := ny*needle.Stride + nx*4
			dr := int(haystack.Pix[hIdx]) - int(needle.Pix[nIdx])
			dg := int(haystack.Pix[hIdx+1]) - int(needle.Pix[nIdx+1])
			db := int(haystack.Pix[hIdx+2]) - int(needle.Pix[nIdx+2])
			ssd += uint64(dr*dr + dg*dg + db*db)
		}
	}
	maxSSD := float64(w * h * 3 * 255 * 255)
	return 1.0 - float64(ssd)/maxSSD
}

func scoreNCC(haystack, needle *image.RGBA, x, y, w, h int) float64 {
	var sumH, sumN, sumHN, sumHH, sumNN float64
	n := float64(w * h * 3)

	for ny := 0; ny < h; ny++ {
		for nx := 0; nx < w; nx++ {
			hIdx := (y+ny-haystack.Rect.Min.Y)*haystack.Stride + (x+nx-haystack.Rect.Min.X)*4
			nIdx := ny*needle.Stride + nx*4
			for c := 0; c < 3; c++ {
				hv := float64(haystack.Pix[hIdx+c])
				nv := float64(needle.Pix[nIdx+c])
				sumH += hv
				sumN += nv
				sumHN += hv * nv
				sumHH += hv * hv
				sumNN += nv * nv
			}
		}
	}

	numerator := sumHN - sumH*sumN/n
	denomH := math.Sqrt(sumHH - sumH*sumH/n)
	denomN := math.Sqrt(sumNN - sumN*sumN/n)
	if denomH == 0 || denomN == 0 {
		return 0
	}

	// Correlation is in [-1,1]; map to [0,1] so all methods share a scale.
	return (numerator/(denomH*denomN) + 1.0) / 2.0
}

func iabs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// CropRegion extracts a rectangular region from an image.
func CropRegion(img *image.RGBA, rect image.Rectangle) *image.RGBA {
	cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(cropped, cropped.Bounds(), img, rect.Min, draw.Src)
	return cropped
}

// LoadPNG reads a PNG file into an RGBA image, converting if needed.
func LoadPNG(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open template: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	return ToRGBA(img), nil
}

// ToRGBA converts any image to RGBA with a zero-origin bounds.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

package gamestate

import (
	"context"
	"fmt"
	"image"

	"github.com/slicebot/slicebot/internal/arcade/s1frames"
	"github.com/slicebot/slicebot/internal/cv"
)

// Grabber captures the current screen region the bot plays in.
type Grabber func(ctx context.Context) (image.Image, error)

// TemplateChecker detects the end screen by locating a known banner
// template in a fresh screen grab. A grab failure yields StateUnknown with
// the error; the caller decides whether to keep cycling.
type TemplateChecker struct {
	grab     Grabber
	template *image.RGBA
	config   *cv.MatchConfig
}

// NewTemplateChecker loads the banner template from the PNG at
// templatePath. threshold overrides the default match threshold when > 0.
func NewTemplateChecker(grab Grabber, templatePath string, threshold float64) (*TemplateChecker, error) {
	tmpl, err := cv.LoadPNG(templatePath)
	if err != nil {
		return nil, err
	}
	return NewTemplateCheckerFromImage(grab, tmpl, threshold), nil
}

// NewTemplateCheckerFromImage builds a checker around an in-memory
// template.
func NewTemplateCheckerFromImage(grab Grabber, tmpl image.Image, threshold float64) *TemplateChecker {
	config := cv.DefaultMatchConfig()
	if threshold > 0 {
		config.Threshold = threshold
	}
	return &TemplateChecker{grab: grab, template: cv.ToRGBA(tmpl), config: config}
}

// SetSearchRegion limits the banner search to region, usually the center
// band of the screen.
func (c *TemplateChecker) SetSearchRegion(region image.Rectangle) {
	c.config.SearchRegion = &region
}

// Check grabs the screen and scans it for the banner. Banner present means
// game over; banner absent means gameplay is still on screen.
func (c *TemplateChecker) Check(ctx context.Context, _ s1frames.Frame) (State, error) {
	img, err := c.grab(ctx)
	if err != nil {
		return StateUnknown, fmt.Errorf("grab screen: %w", err)
	}

	res := cv.FindTemplate(cv.ToRGBA(img), c.template, c.config)
	if res.Found {
		debugf("end banner at %v, score %.3f", res.Location, res.Confidence)
		return StateGameOver, nil
	}
	return StatePlaying, nil
}

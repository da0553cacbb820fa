package images

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// AspectRatio represents an aspect ratio by name (e.g., "16:9").
type AspectRatio string

const (
	AspectRatio169 AspectRatio = "16:9"
	AspectRatio43  AspectRatio = "4:3"
	AspectRatio54  AspectRatio = "5:4"
)

// Resolution is a named frame size used to benchmark the detector at the
// sizes cameras and datasets actually produce.
type Resolution struct {
	Name        string      `json:"name" yaml:"name"`
	AspectRatio AspectRatio `json:"aspectRatio" yaml:"aspectRatio"`
	Width       int         `json:"width" yaml:"width"`
	Height      int         `json:"height" yaml:"height"`
}

// MegaPixels returns the pixel count in millions, rounded to two decimals.
func (r Resolution) MegaPixels() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	mp := float64(r.Width*r.Height) / 1_000_000.0
	return math.Round(mp*100) / 100
}

func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", r.Name, r.Width, r.Height, r.MegaPixels())
}

// Resolutions lists the benchmark sizes, smallest first. "voc" is the
// typical Pascal VOC image and "warmup" the synthetic warm-up image.
var Resolutions = []Resolution{
	{Name: "warmup", Width: 500, Height: 300},
	{Name: "voc", AspectRatio: AspectRatio43, Width: 500, Height: 375},
	{Name: "nHD", AspectRatio: AspectRatio169, Width: 640, Height: 360},
	{Name: "VGA", AspectRatio: AspectRatio43, Width: 640, Height: 480},
	{Name: "720p", AspectRatio: AspectRatio169, Width: 1280, Height: 720},
	{Name: "1MP", AspectRatio: AspectRatio54, Width: 1280, Height: 1024},
	{Name: "1080p", AspectRatio: AspectRatio169, Width: 1920, Height: 1080},
	{Name: "4K", AspectRatio: AspectRatio169, Width: 3840, Height: 2160},
}

// ResolutionByName finds a resolution by name, ignoring case.
func ResolutionByName(name string) (Resolution, error) {
	for _, r := range Resolutions {
		if strings.EqualFold(r.Name, name) {
			return r, nil
		}
	}
	return Resolution{}, errors.Errorf("unknown resolution %q", name)
}

// ParseResolutions resolves a comma-separated list of names. Empty means all.
func ParseResolutions(list string) ([]Resolution, error) {
	if strings.TrimSpace(list) == "" {
		return Resolutions, nil
	}
	var out []Resolution
	for _, name := range strings.Split(list, ",") {
		r, err := ResolutionByName(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

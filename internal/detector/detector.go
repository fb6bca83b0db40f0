// Package detector isolates laser-coloured pixels in a video frame by
// thresholding its hue, saturation and value channels.
package detector

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

var (
	// ErrInvalidConfig is returned by New when the configuration cannot be used.
	ErrInvalidConfig = errors.New("invalid detector config")

	// ErrEmptyFrame is returned when Detect is given a nil or empty frame.
	ErrEmptyFrame = errors.New("frame is empty")

	// ErrFrameSize is returned when a frame does not match the configured size.
	ErrFrameSize = errors.New("frame size does not match configuration")

	// ErrFrameFormat is returned when a frame is not 8-bit, 3-channel BGR.
	ErrFrameFormat = errors.New("frame is not 8-bit BGR")
)

// Range is an inclusive [Min, Max] bound on one 8-bit channel.
// A range with Min > Max matches nothing.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// Config holds the frame geometry and channel ranges used by a Detector.
type Config struct {
	// Width and Height are the expected frame dimensions in pixels.
	Width  int
	Height int

	// Hue, Saturation and Value are the per-channel ranges. Hue follows the
	// OpenCV 8-bit convention of 0-179.
	Hue        Range
	Saturation Range
	Value      Range

	// IncludeSaturation ANDs the saturation mask into the laser mask.
	// The saturation mask is always computed for display either way.
	IncludeSaturation bool
}

// DefaultConfig returns ranges tuned for a red laser pointer on a 640x480 camera.
func DefaultConfig() Config {
	return Config{
		Width:      640,
		Height:     480,
		Hue:        Range{Min: 5, Max: 6},
		Saturation: Range{Min: 50, Max: 100},
		Value:      Range{Min: 250, Max: 256},
	}
}

// Detector runs the HSV threshold pipeline on single frames.
// It keeps no state between calls and is safe to reuse.
type Detector struct {
	config Config
}

// New creates a Detector. The configuration is copied and never changes.
func New(config Config) (*Detector, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidConfig, config.Width, config.Height)
	}
	return &Detector{config: config}, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config {
	return d.config
}

// Detect converts frame to HSV, thresholds each channel and combines the
// hue and value masks (and saturation, if enabled) into the laser mask.
// The caller owns the returned Masks and must Close them.
func (d *Detector) Detect(frame *gocv.Mat) (*Masks, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}
	if frame.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("%w: type %v", ErrFrameFormat, frame.Type())
	}
	if frame.Cols() != d.config.Width || frame.Rows() != d.config.Height {
		return nil, fmt.Errorf("%w: got %dx%d, want %dx%d",
			ErrFrameSize, frame.Cols(), frame.Rows(), d.config.Width, d.config.Height)
	}

	hsv, err := ToHSV(*frame)
	if err != nil {
		return nil, err
	}
	defer hsv.Close()

	channels := SplitChannels(hsv)
	defer func() {
		for i := range channels {
			channels[i].Close()
		}
	}()

	m := &Masks{
		Hue:        Threshold(channels[0], d.config.Hue),
		Saturation: Threshold(channels[1], d.config.Saturation),
		Value:      Threshold(channels[2], d.config.Value),
	}

	m.Laser = Combine(m.Hue, m.Value)
	if d.config.IncludeSaturation {
		withSat := Combine(m.Laser, m.Saturation)
		m.Laser.Close()
		m.Laser = withSat
	}

	m.HSV = Merge(m.Hue, m.Saturation, m.Value)

	return m, nil
}

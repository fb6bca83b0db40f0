package capture

import (
	"image"
	"image/color"
	"math"
	"sync"

	"gocv.io/x/gocv"
)

// DotColor is the colour drawn by SyntheticCamera. In HSV it has hue 5 and
// full saturation and value, which the default red-laser ranges accept.
var DotColor = color.RGBA{R: 255, G: 43, B: 0, A: 0}

// SyntheticCamera draws a dot orbiting the frame centre on a black
// background. It needs no hardware and is used for demos and tests.
type SyntheticCamera struct {
	width   int
	height  int
	radius  int
	limit   int
	frame   int
	fps     int
	running bool
	mu      sync.Mutex
}

// NewSyntheticCamera creates a synthetic source of width x height frames.
// A positive limit ends the stream with ErrNoFrame after that many frames.
func NewSyntheticCamera(width, height, limit int) *SyntheticCamera {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	radius := min(width, height) / 80
	if radius < 1 {
		radius = 1
	}
	return &SyntheticCamera{
		width:  width,
		height: height,
		radius: radius,
		limit:  limit,
		fps:    DefaultFPS,
	}
}

func (c *SyntheticCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.frame = 0
	return nil
}

func (c *SyntheticCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

// ReadFrame renders the next frame.
func (c *SyntheticCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}
	if c.limit > 0 && c.frame >= c.limit {
		return nil, ErrNoFrame
	}

	mat := gocv.Zeros(c.height, c.width, gocv.MatTypeCV8UC3)
	gocv.Circle(&mat, c.dotAt(c.frame), c.radius, DotColor, -1)
	c.frame++

	return &mat, nil
}

// DotAt returns the dot centre for frame n.
func (c *SyntheticCamera) DotAt(n int) image.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dotAt(n)
}

func (c *SyntheticCamera) dotAt(n int) image.Point {
	// one orbit every 120 frames
	angle := 2 * math.Pi * float64(n%120) / 120
	orbit := float64(min(c.width, c.height)) / 3
	return image.Pt(
		c.width/2+int(math.Round(orbit*math.Cos(angle))),
		c.height/2+int(math.Round(orbit*math.Sin(angle))),
	)
}

func (c *SyntheticCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *SyntheticCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *SyntheticCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *SyntheticCamera) Size() image.Point {
	return image.Pt(c.width, c.height)
}

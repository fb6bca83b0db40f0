// Package capture provides frame sources for the laser tracker: camera devices
// and video files via GoCV (OpenCV), plus synthetic and playback sources.
package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/lasertracker/internal/log"
)

// Default camera settings
const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")

	// ErrNoFrame is returned when the source cannot produce another frame.
	// Callers treat it as the end of the stream.
	ErrNoFrame = errors.New("no frame available")
)

// Camera defines the interface for frame sources.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame blocks for the next BGR frame. The caller must close it.
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
	// Size is the frame size the source delivers: the negotiated size for
	// devices, the native size for files once opened.
	Size() image.Point
}

// Source identifies a capture device index or a video file.
type Source struct {
	Device int
	File   string
}

// DeviceSource returns a Source for the camera with the given index.
func DeviceSource(id int) Source {
	return Source{Device: id}
}

// FileSource returns a Source that plays the video file at path.
func FileSource(path string) Source {
	return Source{File: path}
}

// String implements fmt.Stringer.
func (s Source) String() string {
	if s.File != "" {
		return s.File
	}
	return fmt.Sprintf("device %d", s.Device)
}

// cameraImpl manages video capture from a device or file using GoCV.
type cameraImpl struct {
	source  Source
	width   int
	height  int
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	fps     int
}

// NewCamera creates a new Camera for source. width and height are requested
// from the device when it is opened; files keep their native size.
func NewCamera(source Source, width, height int) Camera {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &cameraImpl{
		source: source,
		width:  width,
		height: height,
		fps:    DefaultFPS,
	}
}

// Open opens the source for capturing frames.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	var (
		capture *gocv.VideoCapture
		err     error
	)
	if c.source.File != "" {
		capture, err = gocv.VideoCaptureFile(c.source.File)
	} else {
		capture, err = gocv.OpenVideoCapture(c.source.Device)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", c.source, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open %s: capture device not available", c.source)
	}

	// Resolution must be set before the first read.
	if c.source.File == "" {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(c.width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(c.height))
		capture.Set(gocv.VideoCaptureFPS, float64(c.fps))
	}

	requested := image.Pt(c.width, c.height)
	got := negotiatedSize(requested,
		capture.Get(gocv.VideoCaptureFrameWidth),
		capture.Get(gocv.VideoCaptureFrameHeight))
	if c.source.File == "" && got != requested {
		log.Warn("Camera did not accept requested size",
			"source", c.source, "requested", requested, "actual", got)
	}
	c.width, c.height = got.X, got.Y

	c.capture = capture
	c.running = true

	return nil
}

// negotiatedSize is the size a capture reports after opening. Backends that
// cannot report a dimension return 0; the requested value stands in for it.
func negotiatedSize(requested image.Point, width, height float64) image.Point {
	got := requested
	if w := int(width); w > 0 {
		got.X = w
	}
	if h := int(height); h > 0 {
		got.Y = h
	}
	return got
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame. A failed or empty read is reported as ErrNoFrame.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, ErrNoFrame
	}

	return &mat, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

// Size returns the frame size.
func (c *cameraImpl) Size() image.Point {
	c.mu.Lock()
	defer c.mu.Unlock()

	return image.Pt(c.width, c.height)
}

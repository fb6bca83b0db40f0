// Package app runs the capture, detect and display loop of the laser tracker.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ayusman/lasertracker/internal/capture"
	"github.com/ayusman/lasertracker/internal/detector"
	"github.com/ayusman/lasertracker/internal/display"
	"github.com/ayusman/lasertracker/internal/log"
	"gocv.io/x/gocv"
)

// ErrAcquisition is returned when the frame source cannot be started.
var ErrAcquisition = errors.New("frame acquisition failed")

// Detector turns one frame into detection masks.
type Detector interface {
	Detect(frame *gocv.Mat) (*detector.Masks, error)
}

// Config holds the collaborators of an App.
type Config struct {
	Camera   capture.Camera
	Detector Detector
	Display  display.Display
}

// Stats summarises a run so far.
type Stats struct {
	Frames      int
	LaserPixels int
}

// App is the single-threaded run loop: capture, detect, display, check quit.
type App struct {
	config Config
	mu     sync.RWMutex
	stats  Stats
}

// New creates a new App. All collaborators are required.
func New(config Config) (*App, error) {
	switch {
	case config.Camera == nil:
		return nil, errors.New("app: camera is required")
	case config.Detector == nil:
		return nil, errors.New("app: detector is required")
	case config.Display == nil:
		return nil, errors.New("app: display is required")
	}
	return &App{config: config}, nil
}

// Run processes frames until the source runs dry, the display requests quit
// or ctx is cancelled; all three return nil. Cancellation is checked once
// per frame. The camera is opened if needed and closed if Run opened it.
func (a *App) Run(ctx context.Context) error {
	log.Info("Using OpenCV", "opencv", gocv.OpenCVVersion(), "gocv", gocv.Version())

	cam := a.config.Camera
	if !cam.IsOpen() {
		if err := cam.Open(); err != nil {
			return fmt.Errorf("%w: %w", ErrAcquisition, err)
		}
		defer func() {
			if err := cam.Close(); err != nil {
				log.Warn("Error closing camera", "err", err)
			}
		}()
	}

	log.Info("Detection loop started", "size", cam.Size())

	for {
		select {
		case <-ctx.Done():
			log.Info("Detection loop cancelled", "frames", a.Stats().Frames)
			return nil
		default:
		}

		quit, err := a.step()
		if errors.Is(err, capture.ErrNoFrame) {
			log.Info("No more frames, stopping", "frames", a.Stats().Frames)
			return nil
		}
		if err != nil {
			return err
		}
		if quit {
			log.Info("Quit requested", "frames", a.Stats().Frames)
			return nil
		}
	}
}

// step runs one capture, detect, display cycle and polls for quit.
func (a *App) step() (bool, error) {
	frame, err := a.config.Camera.ReadFrame()
	if err != nil {
		if errors.Is(err, capture.ErrNoFrame) {
			return false, err
		}
		return false, fmt.Errorf("%w: %w", ErrAcquisition, err)
	}
	defer frame.Close()

	masks, err := a.config.Detector.Detect(frame)
	if err != nil {
		return false, fmt.Errorf("detect: %w", err)
	}
	defer masks.Close()

	if err := a.config.Display.Show(*frame, masks); err != nil {
		return false, fmt.Errorf("display: %w", err)
	}

	pixels := masks.LaserPixels()
	a.mu.Lock()
	a.stats.Frames++
	a.stats.LaserPixels = pixels
	a.mu.Unlock()

	log.Debug("Frame processed", "laser_pixels", pixels)

	return a.config.Display.QuitRequested(), nil
}

// Stats returns the frames processed so far and the last laser pixel count.
func (a *App) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats
}

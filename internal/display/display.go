// Package display presents the camera frame and detection masks.
package display

import (
	"errors"

	"github.com/ayusman/lasertracker/internal/detector"
	"gocv.io/x/gocv"
)

// Display receives the original frame and its masks once per cycle.
type Display interface {
	// Show presents one frame. It must not retain frame or masks after returning.
	Show(frame gocv.Mat, masks *detector.Masks) error

	// QuitRequested reports whether the user asked to stop.
	// It is polled once per cycle after Show.
	QuitRequested() bool

	// Close releases any resources held by the display.
	Close() error
}

// Multi fans frames out to several displays.
type Multi []Display

// Show calls Show on every display and joins the errors.
func (m Multi) Show(frame gocv.Mat, masks *detector.Masks) error {
	var errs []error
	for _, d := range m {
		if err := d.Show(frame, masks); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// QuitRequested is true if any display requested quit. Every display is
// polled so window event loops keep running.
func (m Multi) QuitRequested() bool {
	quit := false
	for _, d := range m {
		if d.QuitRequested() {
			quit = true
		}
	}
	return quit
}

// Close closes every display and joins the errors.
func (m Multi) Close() error {
	var errs []error
	for _, d := range m {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

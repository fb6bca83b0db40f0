package display

import (
	"fmt"
	"sync"

	"github.com/ayusman/lasertracker/internal/detector"
	"gocv.io/x/gocv"
)

// Quit keys
const (
	KeyEsc = 27
	KeyQ   = 'q'
)

// WaitKeyMs is how long QuitRequested waits for a key press.
const WaitKeyMs = 10

// WindowSpec places one view on screen.
type WindowSpec struct {
	Title string
	View  detector.View
	X, Y  int
}

// Layout returns the window arrangement for frames of width x height:
// the thresholded HSV image and the camera frame side by side, the three
// channel masks underneath and the laser mask in the corner.
func Layout(width, height int) []WindowSpec {
	return []WindowSpec{
		{Title: "Thresholded_HSV_Image", View: detector.ViewHSV, X: 10, Y: 10},
		{Title: "RGB_VideoFrame", View: detector.ViewFrame, X: 10 + width, Y: 10},
		{Title: "Hue", View: detector.ViewHue, X: 10, Y: 10 + height},
		{Title: "Saturation", View: detector.ViewSaturation, X: 210, Y: 10 + height},
		{Title: "Value", View: detector.ViewValue, X: 410, Y: 10 + height},
		{Title: "LaserPointer", View: detector.ViewLaser, X: 0, Y: 0},
	}
}

// IsQuitKey reports whether a WaitKey result is Esc or q.
func IsQuitKey(key int) bool {
	if key < 0 {
		return false
	}
	key &= 0xFF
	return key == KeyEsc || key == KeyQ
}

type window struct {
	spec WindowSpec
	win  *gocv.Window
}

// WindowDisplay shows every view in its own OpenCV HighGUI window.
// HighGUI must be driven from the goroutine that created the windows.
type WindowDisplay struct {
	windows []window
	mu      sync.Mutex
	closed  bool
}

// NewWindowDisplay creates and positions one autosized window per view.
// Autosized windows take the size of the image shown in them.
func NewWindowDisplay(width, height int) *WindowDisplay {
	d := &WindowDisplay{}
	for _, spec := range Layout(width, height) {
		w := gocv.NewWindow(spec.Title)
		w.SetWindowProperty(gocv.WindowPropertyAutosize, gocv.WindowAutosize)
		w.MoveWindow(spec.X, spec.Y)
		d.windows = append(d.windows, window{spec: spec, win: w})
	}
	return d
}

// Show draws the frame and every mask.
func (d *WindowDisplay) Show(frame gocv.Mat, masks *detector.Masks) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("window display is closed")
	}

	for _, w := range d.windows {
		if w.spec.View == detector.ViewFrame {
			w.win.IMShow(frame)
			continue
		}
		mat, ok := masks.Get(w.spec.View)
		if !ok {
			continue
		}
		w.win.IMShow(mat)
	}
	return nil
}

// QuitRequested pumps the HighGUI event loop and checks for Esc or q.
func (d *WindowDisplay) QuitRequested() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || len(d.windows) == 0 {
		return false
	}
	return IsQuitKey(d.windows[0].win.WaitKey(WaitKeyMs))
}

// Close destroys all windows.
func (d *WindowDisplay) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	var firstErr error
	for _, w := range d.windows {
		if err := w.win.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.windows = nil
	return firstErr
}

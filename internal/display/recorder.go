package display

import (
	"sync"

	"github.com/ayusman/lasertracker/internal/detector"
	"gocv.io/x/gocv"
)

// Recorder is an in-memory Display that remembers what it was shown.
// It is used in tests.
type Recorder struct {
	mu          sync.Mutex
	shown       int
	laserPixels []int
	quitAfter   int
	closed      bool
	err         error
}

// NewRecorder returns a Recorder. A positive quitAfter requests quit once
// that many frames have been shown.
func NewRecorder(quitAfter int) *Recorder {
	return &Recorder{quitAfter: quitAfter}
}

// SetError makes every subsequent Show return err.
func (r *Recorder) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Show records the frame.
func (r *Recorder) Show(frame gocv.Mat, masks *detector.Masks) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	r.shown++
	r.laserPixels = append(r.laserPixels, masks.LaserPixels())
	return nil
}

// QuitRequested implements Display.
func (r *Recorder) QuitRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quitAfter > 0 && r.shown >= r.quitAfter
}

// Close implements Display.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Shown returns the number of frames shown.
func (r *Recorder) Shown() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shown
}

// LaserPixels returns the laser pixel count of every frame shown.
func (r *Recorder) LaserPixels() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.laserPixels...)
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

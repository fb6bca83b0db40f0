package app

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/ayusman/lasertracker/internal/capture"
	"github.com/ayusman/lasertracker/internal/detector"
	"github.com/ayusman/lasertracker/internal/display"
	"gocv.io/x/gocv"
)

// brokenCamera fails to open, like a missing capture device.
type brokenCamera struct {
	capture.Camera
	opens int
}

func (c *brokenCamera) IsOpen() bool { return false }
func (c *brokenCamera) Open() error {
	c.opens++
	return errors.New("device busy")
}

func newDetector(t *testing.T, width, height int) *detector.Detector {
	t.Helper()

	cfg := detector.DefaultConfig()
	cfg.Width, cfg.Height = width, height
	d, err := detector.New(cfg)
	if err != nil {
		t.Fatalf("detector.New() error = %v", err)
	}
	return d
}

// blackFrames returns n black frames closed at the end of the test.
func blackFrames(t *testing.T, n, width, height int) []*gocv.Mat {
	t.Helper()

	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.Zeros(height, width, gocv.MatTypeCV8UC3)
		frames[i] = &m
		t.Cleanup(func() { m.Close() })
	}
	return frames
}

func TestNew_RequiresCollaborators(t *testing.T) {
	cam := capture.NewMockCamera(nil, false)
	det := newDetector(t, 4, 4)
	disp := display.NewRecorder(0)

	tests := []struct {
		name   string
		config Config
	}{
		{name: "no camera", config: Config{Detector: det, Display: disp}},
		{name: "no detector", config: Config{Camera: cam, Display: disp}},
		{name: "no display", config: Config{Camera: cam, Detector: det}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.config); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func TestApp_Run_StopsWhenSourceIsExhausted(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		// the source is absent on call n, so n-1 frames are processed
		cam := capture.NewMockCamera(blackFrames(t, n-1, 8, 6), false)
		rec := display.NewRecorder(0)

		a, err := New(Config{Camera: cam, Detector: newDetector(t, 8, 6), Display: rec})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		if err := a.Run(context.Background()); err != nil {
			t.Fatalf("n=%d: Run() error = %v, want nil", n, err)
		}

		if rec.Shown() != n-1 {
			t.Errorf("n=%d: Shown() = %d, want %d", n, rec.Shown(), n-1)
		}
		if cam.Reads() != n {
			t.Errorf("n=%d: Reads() = %d, want %d", n, cam.Reads(), n)
		}
		if a.Stats().Frames != n-1 {
			t.Errorf("n=%d: Stats().Frames = %d, want %d", n, a.Stats().Frames, n-1)
		}
		if cam.IsOpen() {
			t.Errorf("n=%d: camera should be closed after Run", n)
		}
	}
}

func TestApp_Run_QuitRequested(t *testing.T) {
	cam := capture.NewMockCamera(blackFrames(t, 1, 8, 6), true)
	rec := display.NewRecorder(3)

	a, _ := New(Config{Camera: cam, Detector: newDetector(t, 8, 6), Display: rec})

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rec.Shown() != 3 {
		t.Errorf("Shown() = %d, want 3", rec.Shown())
	}
	if cam.Reads() != 3 {
		t.Errorf("Reads() = %d, want 3 (no read after quit)", cam.Reads())
	}
}

func TestApp_Run_ContextCancelled(t *testing.T) {
	cam := capture.NewMockCamera(blackFrames(t, 1, 8, 6), true)
	rec := display.NewRecorder(0)

	a, _ := New(Config{Camera: cam, Detector: newDetector(t, 8, 6), Display: rec})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if cam.Reads() != 0 {
		t.Errorf("Reads() = %d, want 0 after cancel", cam.Reads())
	}
}

func TestApp_Run_DetectsLaser(t *testing.T) {
	cam := capture.NewSyntheticCamera(160, 120, 4)
	rec := display.NewRecorder(0)

	a, _ := New(Config{Camera: cam, Detector: newDetector(t, 160, 120), Display: rec})

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	pixels := rec.LaserPixels()
	if len(pixels) != 4 {
		t.Fatalf("frames shown = %d, want 4", len(pixels))
	}
	for i, n := range pixels {
		if n == 0 {
			t.Errorf("frame %d: no laser pixels found", i)
		}
	}
	if a.Stats().LaserPixels == 0 {
		t.Error("Stats().LaserPixels should report the last frame")
	}
}

func TestApp_Run_FrameSizeMismatchIsFatal(t *testing.T) {
	cam := capture.NewMockCamera(blackFrames(t, 2, 8, 6), false)
	rec := display.NewRecorder(0)

	// detector configured with width and height swapped
	a, _ := New(Config{Camera: cam, Detector: newDetector(t, 6, 8), Display: rec})

	err := a.Run(context.Background())
	if !errors.Is(err, detector.ErrFrameSize) {
		t.Fatalf("Run() error = %v, want ErrFrameSize", err)
	}
	if rec.Shown() != 0 {
		t.Errorf("Shown() = %d, want 0", rec.Shown())
	}
}

func TestApp_Run_AcquisitionFailure(t *testing.T) {
	cam := &brokenCamera{}
	a, _ := New(Config{Camera: cam, Detector: newDetector(t, 8, 6), Display: display.NewRecorder(0)})

	err := a.Run(context.Background())
	if !errors.Is(err, ErrAcquisition) {
		t.Fatalf("Run() error = %v, want ErrAcquisition", err)
	}
	if cam.opens != 1 {
		t.Errorf("Open() called %d times, want 1", cam.opens)
	}
}

func TestApp_Run_DisplayError(t *testing.T) {
	cam := capture.NewMockCamera(blackFrames(t, 3, 8, 6), false)
	rec := display.NewRecorder(0)
	boom := errors.New("window gone")
	rec.SetError(boom)

	a, _ := New(Config{Camera: cam, Detector: newDetector(t, 8, 6), Display: rec})

	if err := a.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if cam.Reads() != 1 {
		t.Errorf("Reads() = %d, want 1", cam.Reads())
	}
}

func TestApp_Run_LeavesOpenCameraOpen(t *testing.T) {
	cam := capture.NewMockCamera(blackFrames(t, 1, 8, 6), false)
	cam.Open()
	defer cam.Close()

	a, _ := New(Config{Camera: cam, Detector: newDetector(t, 8, 6), Display: display.NewRecorder(0)})
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !cam.IsOpen() {
		t.Error("Run() should not close a camera it did not open")
	}
	if got := cam.Size(); got != image.Pt(8, 6) {
		t.Errorf("Size() = %v, want (8,6)", got)
	}
}

func TestApp_Run_TwiceReplaysSource(t *testing.T) {
	cam := capture.NewMockCamera(blackFrames(t, 3, 8, 6), false)
	rec := display.NewRecorder(0)

	a, _ := New(Config{Camera: cam, Detector: newDetector(t, 8, 6), Display: rec})

	for run := 1; run <= 2; run++ {
		if err := a.Run(context.Background()); err != nil {
			t.Fatalf("run %d: Run() error = %v", run, err)
		}
		if got, want := rec.Shown(), 3*run; got != want {
			t.Errorf("run %d: Shown() = %d, want %d", run, got, want)
		}
	}
	if cam.IsOpen() {
		t.Error("Run should close the camera it opened")
	}
}

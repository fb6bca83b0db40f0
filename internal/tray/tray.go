// Package tray shows detection status in the system tray for headless runs.
// The tray and OpenCV HighGUI each need the main thread, so the two are
// never used together.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
	"gocv.io/x/gocv"

	"github.com/ayusman/lasertracker/internal/detector"
)

// Tray is a display.Display backed by a system tray menu. Show updates the
// laser pixel count in the menu; choosing Quit makes QuitRequested true.
type Tray struct {
	mu          sync.RWMutex
	enabled     bool
	quit        bool
	frames      int
	laserPixels int

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuLaser  *systray.MenuItem

	// exit stops the tray event loop; systray.Quit outside tests.
	exit     func()
	exitOnce sync.Once
}

// New creates a new Tray with status updates enabled.
func New() *Tray {
	return &Tray{
		enabled: true,
		exit:    systray.Quit,
	}
}

// Run starts the tray event loop on the calling goroutine, which must be the
// main one, and calls start on a new goroutine once the menu is ready.
// It blocks until Close is called.
func (t *Tray) Run(start func()) {
	systray.Run(func() {
		t.onReady()
		if start != nil {
			go start()
		}
	}, t.onExit)
}

// onReady sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Laser")
	systray.SetTooltip("lasertracker")

	toggle := systray.AddMenuItem("● Updating", "Toggle live status updates")
	systray.AddSeparator()

	laser := systray.AddMenuItem(laserTitle(0), "Laser pixels in the last frame")
	laser.Disable()
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Stop lasertracker")

	t.mu.Lock()
	t.menuToggle = toggle
	t.menuLaser = laser
	t.mu.Unlock()

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-toggle.ClickedCh:
				t.handleToggle()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func laserTitle(pixels int) string {
	return fmt.Sprintf("Laser: %d px", pixels)
}

// handleToggle pauses or resumes menu updates.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.enabled = !t.enabled
	if t.menuToggle == nil {
		return
	}
	if t.enabled {
		t.menuToggle.SetTitle("● Updating")
	} else {
		t.menuToggle.SetTitle("○ Paused")
	}
}

// handleQuit records the request. The run loop sees it on its next cycle
// and the tray closes after the loop has stopped.
func (t *Tray) handleQuit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.quit = true
}

// Show records the laser pixel count of the frame and updates the menu.
func (t *Tray) Show(frame gocv.Mat, masks *detector.Masks) error {
	pixels := masks.LaserPixels()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.frames++
	t.laserPixels = pixels
	if t.enabled && t.menuLaser != nil {
		t.menuLaser.SetTitle(laserTitle(pixels))
	}
	return nil
}

// QuitRequested reports whether Quit was chosen from the menu.
func (t *Tray) QuitRequested() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.quit
}

// Close ends the tray event loop, releasing Run. It is safe to call twice.
func (t *Tray) Close() error {
	t.exitOnce.Do(t.exit)
	return nil
}

// LaserPixels returns the count shown for the last frame.
func (t *Tray) LaserPixels() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.laserPixels
}

// Frames returns how many frames were shown.
func (t *Tray) Frames() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frames
}

// IsEnabled returns whether menu updates are active.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ayusman/lasertracker/internal/detector"
	"github.com/ayusman/lasertracker/internal/log"
	"gocv.io/x/gocv"
)

// Detection is the summary published for every processed frame.
type Detection struct {
	Seq         uint64 `json:"seq"`
	LaserPixels int    `json:"laser_pixels"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Timestamp   int64  `json:"timestamp"`
}

// StreamDisplay publishes each processed frame to HTTP clients: JPEG views
// for MJPEG streams and a Detection for websocket subscribers. It implements
// display.Display and never requests quit.
//
// Show copies everything it needs before returning, so handlers never touch
// Mats owned by the run loop.
type StreamDisplay struct {
	mu      sync.Mutex
	seq     uint64
	jpegs   map[detector.View][]byte
	viewers map[detector.View]int
	updated chan struct{}
	last    Detection

	clients map[chan Detection]struct{}
	closed  bool
}

// NewStreamDisplay creates an empty StreamDisplay.
func NewStreamDisplay() *StreamDisplay {
	return &StreamDisplay{
		jpegs:   make(map[detector.View][]byte),
		viewers: make(map[detector.View]int),
		updated: make(chan struct{}),
		clients: make(map[chan Detection]struct{}),
	}
}

// Show encodes the views that currently have viewers and notifies subscribers.
// Frames shown after Close are dropped.
func (d *StreamDisplay) Show(frame gocv.Mat, masks *detector.Masks) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	var views []detector.View
	for v, n := range d.viewers {
		if n > 0 {
			views = append(views, v)
		}
	}
	d.mu.Unlock()

	// Encoding happens outside the lock; only the run loop calls Show.
	encoded := make(map[detector.View][]byte, len(views))
	for _, v := range views {
		mat := frame
		if v != detector.ViewFrame {
			m, ok := masks.Get(v)
			if !ok {
				continue
			}
			mat = m
		}
		buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
		if err != nil {
			return fmt.Errorf("encode %s: %w", v, err)
		}
		encoded[v] = bytes.Clone(buf.GetBytes())
		buf.Close()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.seq++
	d.last = Detection{
		Seq:         d.seq,
		LaserPixels: masks.LaserPixels(),
		Width:       frame.Cols(),
		Height:      frame.Rows(),
		Timestamp:   time.Now().UnixMilli(),
	}
	for v, b := range encoded {
		d.jpegs[v] = b
	}

	close(d.updated)
	d.updated = make(chan struct{})

	for ch := range d.clients {
		select {
		case ch <- d.last:
		default:
			// Slow client; it picks up the next one.
		}
	}

	return nil
}

// QuitRequested always returns false.
func (d *StreamDisplay) QuitRequested() bool {
	return false
}

// Close disconnects all stream and websocket clients.
func (d *StreamDisplay) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	close(d.updated)
	for ch := range d.clients {
		close(ch)
		delete(d.clients, ch)
	}
	return nil
}

// Seq returns the number of frames shown so far.
func (d *StreamDisplay) Seq() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seq
}

// Last returns the most recent Detection.
func (d *StreamDisplay) Last() Detection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Viewers returns the number of MJPEG clients watching v.
func (d *StreamDisplay) Viewers(v detector.View) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewers[v]
}

// Subscribers returns the number of connected detection subscribers.
func (d *StreamDisplay) Subscribers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}

func (d *StreamDisplay) watch(v detector.View) {
	d.mu.Lock()
	d.viewers[v]++
	d.mu.Unlock()
}

func (d *StreamDisplay) unwatch(v detector.View) {
	d.mu.Lock()
	d.viewers[v]--
	d.mu.Unlock()
}

// next returns the JPEG for v once it is newer than seq, the channel to wait
// on otherwise, and whether the display is closed.
func (d *StreamDisplay) next(v detector.View, seq uint64) ([]byte, uint64, <-chan struct{}, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, seq, nil, true
	}
	if b, ok := d.jpegs[v]; ok && d.seq > seq {
		return b, d.seq, nil, false
	}
	return nil, seq, d.updated, false
}

func (d *StreamDisplay) subscribe() (chan Detection, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, false
	}
	ch := make(chan Detection, 8)
	d.clients[ch] = struct{}{}
	return ch, true
}

func (d *StreamDisplay) unsubscribe(ch chan Detection) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.clients[ch]; ok {
		delete(d.clients, ch)
		close(ch)
	}
}

// StreamHandler serves MJPEG streams of a StreamDisplay's views at
// /api/stream/{view}.
type StreamHandler struct {
	display *StreamDisplay
}

// NewStreamHandler creates a new StreamHandler for d.
func NewStreamHandler(d *StreamDisplay) *StreamHandler {
	return &StreamHandler{display: d}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/stream")
	name = strings.Trim(name, "/")
	view, ok := detector.ParseView(name)
	if !ok {
		http.Error(w, "Unknown view", http.StatusNotFound)
		return
	}

	h.display.watch(view)
	defer h.display.unwatch(view)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	var seq uint64
	for {
		jpeg, next, wait, closed := h.display.next(view, seq)
		if closed {
			return
		}
		if wait != nil {
			select {
			case <-r.Context().Done():
				return
			case <-wait:
			}
			continue
		}
		seq = next

		// Write MJPEG frame
		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpeg))
		if _, err := w.Write(jpeg); err != nil {
			log.Debug("stream client gone", "view", view, "error", err)
			return
		}
		fmt.Fprintf(w, "\r\n")

		if flusher != nil {
			flusher.Flush()
		}
	}
}

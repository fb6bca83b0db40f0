package server

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/ayusman/lasertracker/internal/capture"
	"github.com/ayusman/lasertracker/internal/detector"
)

const (
	testWidth  = 160
	testHeight = 120
)

// detectFrame runs the detector on one synthetic frame with a laser dot.
func detectFrame(t *testing.T) (gocv.Mat, *detector.Masks) {
	t.Helper()

	cam := capture.NewSyntheticCamera(testWidth, testHeight, 0)
	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer cam.Close()

	frame, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	t.Cleanup(func() { frame.Close() })

	cfg := detector.DefaultConfig()
	cfg.Width, cfg.Height = testWidth, testHeight
	d, err := detector.New(cfg)
	if err != nil {
		t.Fatalf("detector.New() error = %v", err)
	}

	masks, err := d.Detect(frame)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	t.Cleanup(masks.Close)

	return *frame, masks
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamDisplay_Show(t *testing.T) {
	frame, masks := detectFrame(t)
	d := NewStreamDisplay()
	defer d.Close()

	ch, ok := d.subscribe()
	if !ok {
		t.Fatal("subscribe on open display failed")
	}

	for i := 1; i <= 3; i++ {
		if err := d.Show(frame, masks); err != nil {
			t.Fatalf("Show() error = %v", err)
		}
		if got := d.Seq(); got != uint64(i) {
			t.Errorf("Seq() = %d, want %d", got, i)
		}
	}

	det := <-ch
	if det.Seq != 1 {
		t.Errorf("first detection Seq = %d, want 1", det.Seq)
	}
	if det.Width != testWidth || det.Height != testHeight {
		t.Errorf("detection size = %dx%d, want %dx%d", det.Width, det.Height, testWidth, testHeight)
	}
	if det.LaserPixels != masks.LaserPixels() {
		t.Errorf("LaserPixels = %d, want %d", det.LaserPixels, masks.LaserPixels())
	}
	if det.LaserPixels == 0 {
		t.Error("expected the synthetic dot to be detected")
	}
	if det.Timestamp == 0 {
		t.Error("expected timestamp")
	}

	if last := d.Last(); last.Seq != 3 {
		t.Errorf("Last().Seq = %d, want 3", last.Seq)
	}
	if d.QuitRequested() {
		t.Error("QuitRequested() = true, want false")
	}
}

func TestStreamDisplay_EncodesOnlyWatchedViews(t *testing.T) {
	frame, masks := detectFrame(t)
	d := NewStreamDisplay()
	defer d.Close()

	if err := d.Show(frame, masks); err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	if len(d.jpegs) != 0 {
		t.Errorf("encoded %d views with no viewers", len(d.jpegs))
	}

	d.watch(detector.ViewLaser)
	d.watch(detector.ViewFrame)
	if err := d.Show(frame, masks); err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	for _, v := range []detector.View{detector.ViewLaser, detector.ViewFrame} {
		b := d.jpegs[v]
		if len(b) < 2 || b[0] != 0xFF || b[1] != 0xD8 {
			t.Errorf("view %s is not a JPEG", v)
		}
	}
	if _, ok := d.jpegs[detector.ViewHue]; ok {
		t.Error("unwatched hue view was encoded")
	}

	d.unwatch(detector.ViewLaser)
	if got := d.Viewers(detector.ViewLaser); got != 0 {
		t.Errorf("Viewers() = %d, want 0", got)
	}
}

func TestStreamDisplay_Close(t *testing.T) {
	frame, masks := detectFrame(t)
	d := NewStreamDisplay()

	ch, _ := d.subscribe()

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if _, ok := <-ch; ok {
		t.Error("subscriber channel should be closed")
	}
	if _, ok := d.subscribe(); ok {
		t.Error("subscribe after Close should fail")
	}

	if err := d.Show(frame, masks); err != nil {
		t.Errorf("Show() after Close error = %v", err)
	}
	if d.Seq() != 0 {
		t.Errorf("Seq() = %d, want 0 after Close", d.Seq())
	}

	// Unsubscribing a channel already released by Close must not panic.
	d.unsubscribe(ch)
}

func TestStreamHandler_MJPEG(t *testing.T) {
	frame, masks := detectFrame(t)
	d := NewStreamDisplay()
	defer d.Close()

	ts := httptest.NewServer(New(Config{Stream: d}))
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/stream/laser")
	if err != nil {
		t.Fatalf("GET /api/stream/laser error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "multipart/x-mixed-replace; boundary=frame" {
		t.Errorf("Content-Type = %q", ct)
	}

	waitFor(t, "laser viewer", func() bool { return d.Viewers(detector.ViewLaser) == 1 })

	if err := d.Show(frame, masks); err != nil {
		t.Fatalf("Show() error = %v", err)
	}

	r := bufio.NewReader(resp.Body)
	readLine := func() string {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read part header: %v", err)
		}
		return line
	}

	if got := readLine(); got != "--frame\r\n" {
		t.Fatalf("boundary = %q", got)
	}
	if got := readLine(); got != "Content-Type: image/jpeg\r\n" {
		t.Fatalf("part Content-Type = %q", got)
	}
	lengthLine := readLine()
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(lengthLine, "Content-Length:")))
	if err != nil || n <= 0 {
		t.Fatalf("bad Content-Length line %q", lengthLine)
	}
	if got := readLine(); got != "\r\n" {
		t.Fatalf("header terminator = %q", got)
	}

	jpeg := make([]byte, n)
	if _, err := io.ReadFull(r, jpeg); err != nil {
		t.Fatalf("read JPEG: %v", err)
	}
	if jpeg[0] != 0xFF || jpeg[1] != 0xD8 {
		t.Errorf("part is not a JPEG: % x", jpeg[:2])
	}
}

func TestStreamHandler_MethodNotAllowed(t *testing.T) {
	h := NewStreamHandler(NewStreamDisplay())

	req := httptest.NewRequest(http.MethodPost, "/api/stream/laser", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestStreamHandler_EndsOnClose(t *testing.T) {
	d := NewStreamDisplay()

	ts := httptest.NewServer(New(Config{Stream: d}))
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/stream/hue")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	d.Close()

	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(io.Discard, resp.Body)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("stream ended with error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after Close")
	}
}

func TestDetectionsHandler(t *testing.T) {
	frame, masks := detectFrame(t)
	d := NewStreamDisplay()

	ts := httptest.NewServer(New(Config{Stream: d}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/detections"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%s) error = %v", url, err)
	}
	defer conn.Close()

	waitFor(t, "detections subscriber", func() bool { return d.Subscribers() == 1 })

	for i := 0; i < 2; i++ {
		if err := d.Show(frame, masks); err != nil {
			t.Fatalf("Show() error = %v", err)
		}
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for want := uint64(1); want <= 2; want++ {
		var det Detection
		if err := conn.ReadJSON(&det); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if det.Seq != want {
			t.Errorf("Seq = %d, want %d", det.Seq, want)
		}
		if det.Width != testWidth || det.Height != testHeight {
			t.Errorf("size = %dx%d", det.Width, det.Height)
		}
	}

	d.Close()

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("expected going-away close, got %v", err)
	}
}

func TestDetectionsHandler_ClientDisconnect(t *testing.T) {
	d := NewStreamDisplay()
	defer d.Close()

	ts := httptest.NewServer(New(Config{Stream: d}))
	defer ts.Close()

	url := fmt.Sprintf("ws%s/api/detections", strings.TrimPrefix(ts.URL, "http"))
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial error = %v", err)
	}

	waitFor(t, "subscriber", func() bool { return d.Subscribers() == 1 })
	conn.Close()
	waitFor(t, "unsubscribe", func() bool { return d.Subscribers() == 0 })
}

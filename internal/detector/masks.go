package detector

import "gocv.io/x/gocv"

// View names one of the images produced per frame.
type View string

// Views shown for every frame, in display order.
const (
	ViewFrame      View = "frame"
	ViewHSV        View = "hsv"
	ViewHue        View = "hue"
	ViewSaturation View = "saturation"
	ViewValue      View = "value"
	ViewLaser      View = "laser"
)

// Views lists every View in display order.
var Views = []View{ViewHSV, ViewFrame, ViewHue, ViewSaturation, ViewValue, ViewLaser}

// ParseView returns the View named s.
func ParseView(s string) (View, bool) {
	for _, v := range Views {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// Masks holds the per-channel results of one Detect call.
// Hue, Saturation, Value and Laser are 8-bit single-channel and 0 or 255;
// HSV is the three thresholded channels merged back into one image.
type Masks struct {
	Hue        gocv.Mat
	Saturation gocv.Mat
	Value      gocv.Mat
	Laser      gocv.Mat
	HSV        gocv.Mat
}

// Get returns the mask for v. ViewFrame is not a mask and yields false.
func (m *Masks) Get(v View) (gocv.Mat, bool) {
	switch v {
	case ViewHSV:
		return m.HSV, true
	case ViewHue:
		return m.Hue, true
	case ViewSaturation:
		return m.Saturation, true
	case ViewValue:
		return m.Value, true
	case ViewLaser:
		return m.Laser, true
	}
	return gocv.Mat{}, false
}

// LaserPixels counts the set pixels in the laser mask.
func (m *Masks) LaserPixels() int {
	if m == nil {
		return 0
	}
	return gocv.CountNonZero(m.Laser)
}

// Close releases every Mat. It is safe to call on nil.
func (m *Masks) Close() {
	if m == nil {
		return
	}
	m.Hue.Close()
	m.Saturation.Close()
	m.Value.Close()
	m.Laser.Close()
	m.HSV.Close()
}

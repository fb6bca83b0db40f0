// Package testdata builds BGR frames with known laser dots for tests.
package testdata

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Laser is BGR (0, 43, 255): hue 5, saturation 255, value 255 in OpenCV HSV.
var Laser = color.RGBA{R: 255, G: 43, B: 0}

// Background is a dim reddish grey that no default range accepts.
var Background = color.RGBA{R: 60, G: 40, B: 40}

// LoadFrame builds a width x height frame filled with Background and a
// single Laser pixel at each point. The caller must close it.
func LoadFrame(width, height int, dots ...image.Point) (*gocv.Mat, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("frame size %dx%d must be positive", width, height)
	}

	bg := gocv.NewScalar(float64(Background.B), float64(Background.G), float64(Background.R), 0)
	mat := gocv.NewMatWithSizeFromScalar(bg, height, width, gocv.MatTypeCV8UC3)

	for _, p := range dots {
		if !p.In(image.Rect(0, 0, width, height)) {
			mat.Close()
			return nil, fmt.Errorf("dot %v outside %dx%d frame", p, width, height)
		}
		mat.SetUCharAt(p.Y, p.X*3, Laser.B)
		mat.SetUCharAt(p.Y, p.X*3+1, Laser.G)
		mat.SetUCharAt(p.Y, p.X*3+2, Laser.R)
	}

	return &mat, nil
}

// LoadSequence builds one frame per entry in paths, each with a single dot.
func LoadSequence(width, height int, path []image.Point) ([]*gocv.Mat, error) {
	var frames []*gocv.Mat
	for _, p := range path {
		frame, err := LoadFrame(width, height, p)
		if err != nil {
			// Clean up already built frames
			for _, f := range frames {
				f.Close()
			}
			return nil, err
		}
		frames = append(frames, frame)
	}

	return frames, nil
}

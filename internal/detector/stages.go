package detector

import (
	"gocv.io/x/gocv"
)

// ToHSV returns a new HSV copy of a BGR frame. The input is not modified.
// On error the returned Mat is the zero value and owns nothing.
func ToHSV(frame gocv.Mat) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.Mat{}, ErrEmptyFrame
	}

	hsv := gocv.NewMat()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)
	return hsv, nil
}

// SplitChannels splits a 3-channel image into hue, saturation and value Mats.
// The caller must close all three.
func SplitChannels(hsv gocv.Mat) [3]gocv.Mat {
	parts := gocv.Split(hsv)

	var out [3]gocv.Mat
	for i := range out {
		if i < len(parts) {
			out[i] = parts[i]
		} else {
			out[i] = gocv.Zeros(hsv.Rows(), hsv.Cols(), gocv.MatTypeCV8U)
		}
	}
	// Anything past the third plane (e.g. alpha) is unused.
	for i := len(out); i < len(parts); i++ {
		parts[i].Close()
	}

	return out
}

// Threshold returns a binary mask of channel: 255 where the sample lies in r,
// 0 elsewhere. Bounds are inclusive.
func Threshold(channel gocv.Mat, r Range) gocv.Mat {
	if r.Min > r.Max {
		return gocv.Zeros(channel.Rows(), channel.Cols(), gocv.MatTypeCV8U)
	}

	mask := gocv.NewMat()
	lower := gocv.NewScalar(float64(r.Min), 0, 0, 0)
	upper := gocv.NewScalar(float64(r.Max), 0, 0, 0)
	gocv.InRangeWithScalar(channel, lower, upper, &mask)
	return mask
}

// Combine returns the pixel-wise AND of two masks of equal size.
func Combine(a, b gocv.Mat) gocv.Mat {
	out := gocv.NewMat()
	gocv.BitwiseAnd(a, b, &out)
	return out
}

// Merge stacks three single-channel masks into one 3-channel image.
func Merge(hue, saturation, value gocv.Mat) gocv.Mat {
	out := gocv.NewMat()
	gocv.Merge([]gocv.Mat{hue, saturation, value}, &out)
	return out
}

package testdata

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrame(t *testing.T) {
	frame, err := LoadFrame(4, 3, image.Pt(2, 1))
	require.NoError(t, err)
	defer frame.Close()

	assert.Equal(t, 4, frame.Cols())
	assert.Equal(t, 3, frame.Rows())
	assert.Equal(t, 3, frame.Channels())

	v := frame.GetVecbAt(1, 2)
	assert.Equal(t, []uint8{Laser.B, Laser.G, Laser.R}, []uint8{v[0], v[1], v[2]}, "dot pixel")

	v = frame.GetVecbAt(0, 0)
	assert.Equal(t, []uint8{Background.B, Background.G, Background.R}, []uint8{v[0], v[1], v[2]}, "background pixel")
}

func TestLoadFrame_Errors(t *testing.T) {
	_, err := LoadFrame(0, 3)
	assert.Error(t, err, "zero width")

	_, err = LoadFrame(4, 3, image.Pt(4, 0))
	assert.Error(t, err, "dot outside frame")
}

func TestLoadSequence(t *testing.T) {
	frames, err := LoadSequence(8, 8, []image.Point{{1, 1}, {2, 2}, {3, 3}})
	require.NoError(t, err)
	defer func() {
		for _, f := range frames {
			f.Close()
		}
	}()

	assert.Len(t, frames, 3)

	_, err = LoadSequence(8, 8, []image.Point{{1, 1}, {9, 9}})
	assert.Error(t, err, "out-of-bounds dot")
}

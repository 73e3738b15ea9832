package charart

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func countDark(img image.Image) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if g.Y < 128 {
				n++
			}
		}
	}
	return n
}

func TestGrid(t *testing.T) {
	r := New()
	cw, ch := r.Cell()
	assert.Equal(t, 7, cw)
	assert.Equal(t, 13, ch)

	cols, rows := r.Grid(10, 10, 0.5)
	assert.Equal(t, 5, cols)
	assert.Equal(t, 3, rows)

	cols, rows = r.Grid(1, 1, 0.01)
	assert.Equal(t, 1, cols)
	assert.Equal(t, 1, rows)
}

func TestRenderDarkAndLight(t *testing.T) {
	r := New()
	p := Params{Ratio: 1, Ramp: []rune("@ ")}

	dark, err := r.Render(solid(14, 26, color.Black), p)
	require.NoError(t, err)
	cols, rows := r.Grid(14, 26, 1)
	assert.Equal(t, image.Rect(0, 0, cols*7, rows*13), dark.Bounds())
	assert.Greater(t, countDark(dark), 0)

	light, err := r.Render(solid(14, 26, color.White), p)
	require.NoError(t, err)
	assert.Equal(t, 0, countDark(light))
}

func TestRenderKeepSize(t *testing.T) {
	r := New()
	out, err := r.Render(solid(10, 10, color.Gray{Y: 90}), Params{Ratio: 0.5, Ramp: []rune("#*. "), KeepSize: true})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 10), out.Bounds())
}

func TestRenderRejectsBadParams(t *testing.T) {
	r := New()
	src := solid(4, 4, color.White)

	_, err := r.Render(src, Params{Ratio: 0, Ramp: []rune("ab")})
	assert.Error(t, err)
	_, err = r.Render(src, Params{Ratio: 1.5, Ramp: []rune("ab")})
	assert.Error(t, err)
	_, err = r.Render(src, Params{Ratio: 0.5, Ramp: []rune("aa")})
	assert.Error(t, err)
	_, err = r.Render(image.NewRGBA(image.Rectangle{}), Params{Ratio: 0.5, Ramp: []rune("ab")})
	assert.Error(t, err)
}

func TestWithColors(t *testing.T) {
	r := New(WithColors(color.White, color.Black))
	out, err := r.Render(solid(7, 13, color.White), Params{Ratio: 1, Ramp: []rune("@ ")})
	require.NoError(t, err)
	// background is black and the white source maps to the blank glyph
	assert.Equal(t, out.Bounds().Dx()*out.Bounds().Dy(), countDark(out))
}

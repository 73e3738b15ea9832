// Package charart turns raster images into character-art images.
//
// The source is sampled down to a grid of cells, each cell's luminance picks a
// glyph from a caller supplied ramp, and the glyphs are drawn onto a blank
// canvas with a monospaced face. The ramp is ordered from the densest glyph,
// used for the darkest cells, to the lightest.
package charart

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"unicode"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Params control one rendering.
type Params struct {
	// Ratio is the fraction of source pixels sampled per axis, in (0,1].
	Ratio float64
	Ramp  []rune
	// KeepSize scales the character canvas back to the source size.
	KeepSize bool
}

func (p Params) Validate() error {
	if !(p.Ratio > 0 && p.Ratio <= 1) {
		return fmt.Errorf("charart: ratio must be in (0,1], got %v", p.Ratio)
	}
	seen := make(map[rune]struct{}, len(p.Ramp))
	for _, r := range p.Ramp {
		seen[r] = struct{}{}
	}
	if len(seen) < 2 {
		return errors.New("charart: ramp needs at least 2 distinct characters")
	}
	return nil
}

// Renderer renders a single frame. Implementations must be safe for concurrent use.
type Renderer interface {
	Render(src image.Image, p Params) (image.Image, error)
}

// FrameRenderer is the default Renderer, drawing glyphs of a fixed-size face.
type FrameRenderer struct {
	face   font.Face
	cellW  int
	cellH  int
	ascent int
	fg     color.Color
	bg     color.Color
}

type Option func(*FrameRenderer)

// WithFace replaces the bundled 7x13 ASCII face. The face must be monospaced
// and safe for concurrent use.
func WithFace(face font.Face) Option {
	return func(r *FrameRenderer) { r.face = face }
}

func WithColors(fg, bg color.Color) Option {
	return func(r *FrameRenderer) {
		r.fg = fg
		r.bg = bg
	}
}

func New(opts ...Option) *FrameRenderer {
	r := &FrameRenderer{
		face: basicfont.Face7x13,
		fg:   color.Black,
		bg:   color.White,
	}
	for _, opt := range opts {
		opt(r)
	}
	m := r.face.Metrics()
	adv, ok := r.face.GlyphAdvance('M')
	if !ok || adv <= 0 {
		adv = m.Height / 2
	}
	r.cellW = max(1, adv.Ceil())
	r.cellH = max(1, m.Height.Ceil())
	r.ascent = m.Ascent.Ceil()
	return r
}

// Cell returns the glyph cell size in pixels.
func (r *FrameRenderer) Cell() (w, h int) {
	return r.cellW, r.cellH
}

// Grid returns the number of glyph columns and rows used for a source of the
// given size. Rows are corrected for the cell aspect so the picture keeps its
// proportions.
func (r *FrameRenderer) Grid(width, height int, ratio float64) (cols, rows int) {
	cols = max(1, int(math.Round(float64(width)*ratio)))
	rows = max(1, int(math.Round(float64(height)*ratio*float64(r.cellW)/float64(r.cellH))))
	return cols, rows
}

func (r *FrameRenderer) Render(src image.Image, p Params) (image.Image, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, errors.New("charart: empty source image")
	}

	cols, rows := r.Grid(b.Dx(), b.Dy(), p.Ratio)
	samples := image.NewGray(image.Rect(0, 0, cols, rows))
	draw.ApproxBiLinear.Scale(samples, samples.Bounds(), src, b, draw.Src, nil)

	canvas := image.NewRGBA(image.Rect(0, 0, cols*r.cellW, rows*r.cellH))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(r.bg), image.Point{}, draw.Src)

	d := &font.Drawer{Dst: canvas, Src: image.NewUniform(r.fg), Face: r.face}
	last := len(p.Ramp) - 1
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			lum := int(samples.GrayAt(x, y).Y)
			ch := p.Ramp[(lum*last+127)/255]
			if unicode.IsSpace(ch) {
				continue
			}
			d.Dot = fixed.P(x*r.cellW, y*r.cellH+r.ascent)
			d.DrawString(string(ch))
		}
	}

	if !p.KeepSize {
		return canvas, nil
	}
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.CatmullRom.Scale(out, out.Bounds(), canvas, canvas.Bounds(), draw.Src, nil)
	return out, nil
}

// Package texttex rasterizes lines of text into grayscale coverage
// images suitable for upload as single-channel textures.
package texttex

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"unicode"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// FaceConfig configures text rasterization.
type FaceConfig struct {
	// PixelHeight is the em height in pixels. If zero a reasonable value
	// is chosen.
	PixelHeight int
	// Padding is the margin in pixels added on every side of the
	// rendered line.
	Padding int
}

// Face implements font parsing and text-line rasterization.
type Face struct {
	ttf *truetype.Font
	cfg FaceConfig
}

// NewFace parses a TTF file blob into a ready Face. A nil blob loads the
// bundled Go Regular font.
func NewFace(ttf []byte, cfg FaceConfig) (*Face, error) {
	if ttf == nil {
		ttf = goregular.TTF
	}
	fnt, err := truetype.Parse(ttf)
	if err != nil {
		return nil, err
	}
	if cfg.PixelHeight <= 0 {
		cfg.PixelHeight = 64
	}
	if cfg.Padding < 0 {
		return nil, errors.New("negative padding")
	}
	return &Face{ttf: fnt, cfg: cfg}, nil
}

func (f *Face) scale() fixed.Int26_6 {
	return fixed.I(f.cfg.PixelHeight)
}

// Kern returns the horizontal adjustment in pixels for the given glyph
// pair. A positive kern means to move the glyphs further apart.
func (f *Face) Kern(c0, c1 rune) float32 {
	k := f.ttf.Kern(f.scale(), f.ttf.Index(c0), f.ttf.Index(c1))
	return float32(k) / 64
}

// AdvanceWidth returns the horizontal advance of a glyph in pixels.
func (f *Face) AdvanceWidth(c rune) float32 {
	hm := f.ttf.HMetric(f.scale(), f.ttf.Index(c))
	return float32(hm.AdvanceWidth) / 64
}

// MeasureLine returns the pixel width of a single line of text taking
// kerning and advance width into account for letter spacing.
func (f *Face) MeasureLine(s string) (int, error) {
	scale := f.scale()
	var idxPrev truetype.Index
	var width fixed.Int26_6
	for _, c := range s {
		if !unicode.IsGraphic(c) && !unicode.IsSpace(c) {
			return 0, fmt.Errorf("char %q not graphic", c)
		}
		idx := f.ttf.Index(c)
		hm := f.ttf.HMetric(scale, idx)
		if c == '\t' {
			hm.AdvanceWidth *= 4
		}
		width += f.ttf.Kern(scale, idxPrev, idx)
		width += hm.AdvanceWidth
		idxPrev = idx
	}
	return width.Ceil(), nil
}

// RenderLine rasterizes a single line of text into a grayscale coverage
// image. The image is tightly sized to the measured line width plus the
// configured padding; glyphs sit on a baseline one em above the bottom
// padding edge.
func (f *Face) RenderLine(s string) (*image.Gray, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("no text provided")
	}
	width, err := f.MeasureLine(s)
	if err != nil {
		return nil, err
	}
	if width == 0 {
		return nil, errors.New("no text provided")
	}
	h := f.cfg.PixelHeight
	pad := f.cfg.Padding
	// The em height does not bound descenders exactly; a quarter em of
	// slack below the baseline covers common latin fonts.
	dst := image.NewGray(image.Rect(0, 0, width+2*pad, h+h/4+2*pad))

	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(f.ttf)
	c.SetFontSize(float64(h))
	c.SetClip(dst.Bounds())
	c.SetDst(dst)
	c.SetSrc(image.White)
	c.SetHinting(font.HintingNone)

	pt := freetype.Pt(pad, pad+h)
	if _, err := c.DrawString(s, pt); err != nil {
		return nil, fmt.Errorf("rasterize %q: %w", s, err)
	}
	return dst, nil
}

package texttex

import (
	"testing"
)

func TestRenderLine(t *testing.T) {
	f, err := NewFace(nil, FaceConfig{PixelHeight: 32, Padding: 2})
	if err != nil {
		t.Fatal(err)
	}
	img, err := f.RenderLine("eg")
	if err != nil {
		t.Fatal(err)
	}
	b := img.Bounds()
	if b.Dx() <= 4 || b.Dy() <= 4 {
		t.Fatalf("image %v too small for two glyphs plus padding", b)
	}
	covered := 0
	for _, px := range img.Pix {
		if px != 0 {
			covered++
		}
	}
	if covered == 0 {
		t.Error("rendered line has no glyph coverage")
	}
}

func TestMeasureLine(t *testing.T) {
	f, err := NewFace(nil, FaceConfig{PixelHeight: 32})
	if err != nil {
		t.Fatal(err)
	}
	w1, err := f.MeasureLine("i")
	if err != nil {
		t.Fatal(err)
	}
	w2, err := f.MeasureLine("iii")
	if err != nil {
		t.Fatal(err)
	}
	if w2 <= w1 {
		t.Errorf("three glyphs measure %d, want wider than one glyph at %d", w2, w1)
	}
	wtab, err := f.MeasureLine("\t")
	if err != nil {
		t.Fatal(err)
	}
	wsp, err := f.MeasureLine(" ")
	if err != nil {
		t.Fatal(err)
	}
	if wtab < 3*wsp {
		t.Errorf("tab measures %d, want at least three spaces at %d", wtab, 3*wsp)
	}
	if _, err := f.RenderLine(" "); err == nil {
		t.Error("whitespace-only line should not render")
	}
}

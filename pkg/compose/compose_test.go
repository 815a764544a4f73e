package compose

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/printlab/arcpress/pkg/arctext"
	"github.com/printlab/arcpress/pkg/fontkit"
)

func testFace(t *testing.T, size int) *fontkit.Face {
	t.Helper()
	p := fontkit.NewProvider()
	face, err := p.Resolve(nil, size)
	if err != nil {
		t.Fatalf("resolve face: %v", err)
	}
	return face
}

func solidBase(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestRenderGlyphVisible(t *testing.T) {
	face := testFace(t, 48)

	glyph := RenderGlyph(face, 'A', color.NRGBA{R: 255, A: 255}, Stroke{})
	if glyph == nil {
		t.Fatal("expected bitmap for 'A'")
	}

	opaque := false
	b := glyph.Bounds()
	for y := b.Min.Y; y < b.Max.Y && !opaque; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if glyph.NRGBAAt(x, y).A > 0 {
				opaque = true
				break
			}
		}
	}
	if !opaque {
		t.Error("glyph bitmap has no visible pixels")
	}
}

func TestRenderGlyphSpace(t *testing.T) {
	face := testFace(t, 48)

	if glyph := RenderGlyph(face, ' ', color.NRGBA{A: 255}, Stroke{}); glyph != nil {
		t.Errorf("expected nil for space, got %v bitmap", glyph.Bounds())
	}
}

func TestRenderGlyphStrokePadding(t *testing.T) {
	face := testFace(t, 48)

	plain := RenderGlyph(face, 'O', color.NRGBA{A: 255}, Stroke{})
	stroked := RenderGlyph(face, 'O', color.NRGBA{A: 255}, Stroke{Width: 4, Fill: color.NRGBA{B: 255, A: 255}})
	if plain == nil || stroked == nil {
		t.Fatal("expected bitmaps for 'O'")
	}
	if stroked.Bounds().Dx() <= plain.Bounds().Dx() {
		t.Errorf("stroked width %d not larger than plain %d", stroked.Bounds().Dx(), plain.Bounds().Dx())
	}
}

func TestCompositeEmptyPlacements(t *testing.T) {
	face := testFace(t, 48)
	base := solidBase(40, 40, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	out := Composite(base, nil, face, color.NRGBA{A: 255}, Stroke{})

	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			if out.NRGBAAt(x, y) != base.NRGBAAt(x, y) {
				t.Fatalf("pixel (%d,%d) differs from base", x, y)
			}
		}
	}
}

func TestCompositeDoesNotMutateBase(t *testing.T) {
	face := testFace(t, 64)
	base := solidBase(200, 200, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
	before := append([]uint8(nil), base.Pix...)

	placements := []arctext.Placement{
		{Char: 'X', Pos: arctext.Point{X: 100, Y: 100}, RotationDeg: 30},
	}
	out := Composite(base, placements, face, color.NRGBA{A: 255}, Stroke{})

	if !bytes.Equal(before, base.Pix) {
		t.Error("base image was mutated")
	}

	changed := false
	for i := range out.Pix {
		if out.Pix[i] != base.Pix[i] {
			changed = true
			break
		}
	}
	if !changed {
		t.Error("composite with a visible glyph left the copy unchanged")
	}
}

func TestCopyVerbatim(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	dst := filepath.Join(dir, "dst.png")

	var buf bytes.Buffer
	if err := png.Encode(&buf, solidBase(8, 8, color.NRGBA{R: 1, A: 255})); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyVerbatim(src, dst); err != nil {
		t.Fatalf("copy: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, buf.Bytes()) {
		t.Error("copied file differs from source bytes")
	}
}

func TestCopyVerbatimMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyVerbatim(filepath.Join(dir, "absent.png"), filepath.Join(dir, "out.png")); err == nil {
		t.Error("expected error for missing source")
	}
}

// Package compose burns laid-out glyphs into artwork bitmaps.
//
// Each glyph is rendered to a minimal-padding transparent bitmap, rotated
// about its own center, and alpha-composited onto a working copy of the base
// artwork at its computed position. The source image is never mutated. An
// empty personalization never reaches the glyph path at all: the pipeline
// short-circuits to CopyVerbatim, which emits a byte-identical copy of the
// source file.
package compose

import (
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"os"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/printlab/arcpress/pkg/arctext"
	"github.com/printlab/arcpress/pkg/fontkit"
)

// Stroke describes an optional outline drawn around each glyph.
type Stroke struct {
	Width int
	Fill  color.NRGBA
}

// RenderGlyph draws a single glyph onto a tight transparent bitmap with
// padding max(2, stroke+1) on every side, leaving room for the stroke and
// for resampling during rotation. Returns nil for glyphs with no visible
// extent (spaces, uncovered runes); callers skip those placements.
func RenderGlyph(face *fontkit.Face, r rune, fill color.NRGBA, stroke Stroke) *image.NRGBA {
	b, ok := face.Bounds(r)
	if !ok {
		return nil
	}
	w := int(math.Ceil(b.Width()))
	h := int(math.Ceil(b.Height()))
	if w <= 0 || h <= 0 {
		return nil
	}

	pad := 2
	if stroke.Width+1 > pad {
		pad = stroke.Width + 1
	}

	dc := gg.NewContext(w+2*pad, h+2*pad)
	dc.SetFontFace(face.Raw())

	// Baseline position that puts the glyph's tight box at the pad offset.
	x := float64(pad) - b.MinX
	y := float64(pad) - b.MinY
	s := string(r)

	if stroke.Width > 0 {
		dc.SetColor(stroke.Fill)
		sw := stroke.Width
		for dy := -sw; dy <= sw; dy++ {
			for dx := -sw; dx <= sw; dx++ {
				if dx*dx+dy*dy > sw*sw {
					continue
				}
				dc.DrawString(s, x+float64(dx), y+float64(dy))
			}
		}
	}

	dc.SetColor(fill)
	dc.DrawString(s, x, y)

	return imaging.Clone(dc.Image())
}

// Composite renders every placement onto a copy of base and returns the
// copy. base is read-only; the returned image is freshly allocated even when
// placements is empty.
func Composite(base image.Image, placements []arctext.Placement, face *fontkit.Face, fill color.NRGBA, stroke Stroke) *image.NRGBA {
	out := imaging.Clone(base)

	for _, pl := range placements {
		glyph := RenderGlyph(face, pl.Char, fill, stroke)
		if glyph == nil {
			continue
		}

		// Counter-clockwise rotation with bounds expansion, transparent fill.
		rotated := imaging.Rotate(glyph, pl.RotationDeg, color.NRGBA{})

		gw := rotated.Bounds().Dx()
		gh := rotated.Bounds().Dy()
		px := int(pl.Pos.X - float64(gw)/2)
		py := int(pl.Pos.Y - float64(gh)/2)

		draw.Draw(out, image.Rect(px, py, px+gw, py+gh), rotated, image.Point{}, draw.Over)
	}

	return out
}

// LoadArtwork opens a base artwork image.
func LoadArtwork(path string) (image.Image, error) {
	return imaging.Open(path)
}

// SaveArtifact writes a composited artifact; the format follows the file
// extension.
func SaveArtifact(img image.Image, path string) error {
	return imaging.Save(img, path)
}

// CopyVerbatim copies src to dst byte for byte. This is the required
// empty-personalization path: the output must be pixel-identical to the
// source, so no decode/encode round trip is allowed.
func CopyVerbatim(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

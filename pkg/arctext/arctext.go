// Package arctext computes glyph placements along a circular arc.
//
// Given a string and a set of curve parameters, Layout returns the position
// and rotation of every glyph so that the text follows the arc, reading left
// to right, angularly centered on the configured base angle. Two variants
// exist: the plain symmetric formula (constant radius for every glyph) and
// an asymmetric variant that grows the radius for trailing glyphs and nudges
// the base angle for long strings, compensating for source artwork drawn in
// forced perspective.
//
// The engine is pure geometry: glyph widths come from a Measurer (typically
// a fontkit.Face) and rendering is someone else's problem.
package arctext

import (
	"math"

	"github.com/printlab/arcpress/pkg/errors"
)

// Measurer provides per-glyph advance widths in pixels.
type Measurer interface {
	Advance(r rune) float64
}

// Point is a position in image coordinates (y grows downward).
type Point struct {
	X, Y float64
}

// Placement is one glyph's computed position and rotation. The position is
// the glyph's center on the arc; rotation is degrees counter-clockwise.
type Placement struct {
	Char        rune
	Pos         Point
	RotationDeg float64
}

// AsymParams tunes the asymmetric variant. All values were measured against
// one fixed set of template artwork; treat them as configuration.
type AsymParams struct {
	// GlyphGrowthFrom is the glyph index at which the per-glyph radius
	// starts growing; glyph i >= GlyphGrowthFrom is placed at
	// radius + (i - GlyphGrowthFrom + 1) pixels.
	GlyphGrowthFrom int

	// ShortLength and LongLength are the text lengths beyond which the
	// length-based adjustments below kick in.
	ShortLength int
	LongLength  int

	// SpanRadiusPerChar adjusts the radius used for the total angular span
	// by this much per character over ShortLength; past LongLength,
	// SpanRadiusPerCharLong replaces it (per character over LongLength).
	SpanRadiusPerChar     float64
	SpanRadiusPerCharLong float64

	// AngleNudgePerChar rotates the base angle per character over
	// ShortLength-1; past LongLength, AngleNudgePerCharLong replaces it.
	AngleNudgePerChar     float64
	AngleNudgePerCharLong float64

	// XDriftPerChar and YDriftPerChar shift every glyph per character over
	// ShortLength.
	XDriftPerChar float64
	YDriftPerChar float64
}

// DefaultAsym returns the asymmetric tuning used by the paired style.
func DefaultAsym() AsymParams {
	return AsymParams{
		GlyphGrowthFrom:       6,
		ShortLength:           6,
		LongLength:            10,
		SpanRadiusPerChar:     -6,
		SpanRadiusPerCharLong: -11,
		AngleNudgePerChar:     0.5,
		AngleNudgePerCharLong: 1,
		XDriftPerChar:         0.8,
		YDriftPerChar:         2,
	}
}

// Params describes one arc layout style. One instance per style; read-only.
type Params struct {
	Center       Point
	Radius       float64
	BaseAngleDeg float64
	Kerning      float64

	// Outward orients glyph tops away from the center; inward (false)
	// orients them toward it.
	Outward bool

	// Reversed lays the runes out in reverse order. Outward arcs across the
	// top of a circle read right-to-left without it.
	Reversed bool

	// FontSize is the base pixel size; the adaptive-scaling fields below
	// shrink it for texts longer than ReferenceLength.
	FontSize    int
	MinFontSize int
	MaxFontSize int

	ReferenceLength    int
	FontScalePerChar   float64
	RadiusScalePerChar float64
	YScalePerChar      float64

	// Asymmetric selects the forced-perspective variant tuned by Asym.
	// A zero Asym is replaced by DefaultAsym.
	Asymmetric bool
	Asym       AsymParams
}

// Scaled returns the effective font size, radius, and center for a text of n
// runes. Texts at or under ReferenceLength keep the base values; longer
// texts shrink the font (clamped to [MinFontSize, MaxFontSize]), widen the
// radius, and shift the vertical center, keeping long names inside the
// artwork.
//
// Callers resolve their font face at the returned size before measuring;
// Layout applies the same scaling internally for radius and center.
func (p Params) Scaled(n int) (fontSize int, radius float64, center Point) {
	fontSize, radius, center = p.FontSize, p.Radius, p.Center

	d := n - p.ReferenceLength
	if d <= 0 {
		return fontSize, radius, center
	}

	fontSize = p.FontSize - int(float64(d)*p.FontScalePerChar)
	if p.MaxFontSize > 0 && fontSize > p.MaxFontSize {
		fontSize = p.MaxFontSize
	}
	if fontSize < p.MinFontSize {
		fontSize = p.MinFontSize
	}
	radius = p.Radius + float64(d)*p.RadiusScalePerChar
	center.Y = p.Center.Y + float64(d)*p.YScalePerChar
	return fontSize, radius, center
}

// Layout computes one placement per rune of text along the arc described by
// p. An empty text returns an empty list and no error: the caller treats
// that as "no rendering needed". A non-positive radius is a configuration
// error and fails fast.
func (p Params) Layout(text string, m Measurer) ([]Placement, error) {
	if p.Radius <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "arc radius must be > 0, got %g", p.Radius)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	if p.Reversed {
		reverse(runes)
	}

	n := len(runes)
	_, radius, center := p.Scaled(n)

	asym := p.Asym
	if p.Asymmetric && asym == (AsymParams{}) {
		asym = DefaultAsym()
	}

	// Advance per glyph, kerning between glyphs only.
	advances := make([]float64, n)
	textWidth := 0.0
	for i, r := range runes {
		advances[i] = m.Advance(r)
		if i < n-1 {
			advances[i] += p.Kerning
		}
		textWidth += advances[i]
	}

	// The angular span can use a different radius than glyph placement in
	// the asymmetric variant; both start from the length-scaled radius.
	spanRadius := radius
	angle := p.BaseAngleDeg
	var xDrift, yDrift float64
	if p.Asymmetric {
		if n > asym.ShortLength {
			spanRadius = radius + float64(n-asym.ShortLength)*asym.SpanRadiusPerChar
			if n > asym.LongLength {
				spanRadius = radius + float64(n-asym.LongLength)*asym.SpanRadiusPerCharLong
			}
			xDrift = float64(n-asym.ShortLength) * asym.XDriftPerChar
			yDrift = float64(n-asym.ShortLength) * asym.YDriftPerChar
			angle += float64(n-asym.ShortLength+1) * asym.AngleNudgePerChar
			if n > asym.LongLength {
				angle = p.BaseAngleDeg + float64(n-asym.LongLength)*asym.AngleNudgePerCharLong
			}
		}
	}
	if spanRadius <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "asymmetric span radius collapsed to %g for length %d", spanRadius, n)
	}

	thetaTotal := textWidth / spanRadius
	thetaStart := deg2rad(angle) - thetaTotal/2

	placements := make([]Placement, 0, n)
	cum := 0.0
	for i, r := range runes {
		mid := cum + advances[i]/2
		theta := thetaStart + mid/radius

		posRadius := radius
		if p.Asymmetric && i >= asym.GlyphGrowthFrom {
			posRadius = radius + float64(i-asym.GlyphGrowthFrom+1)
		}

		// Image y axis is inverted relative to the unit circle.
		pos := Point{
			X: center.X + posRadius*math.Cos(theta) - xDrift,
			Y: center.Y - posRadius*math.Sin(theta) - yDrift,
		}

		rot := rad2deg(theta) - 90
		if !p.Outward {
			rot = rad2deg(theta) + 90
		}

		placements = append(placements, Placement{Char: r, Pos: pos, RotationDeg: rot})
		cum += advances[i]
	}

	return placements, nil
}

func reverse(rs []rune) {
	for i, j := 0, len(rs)-1; i < j; i, j = i+1, j-1 {
		rs[i], rs[j] = rs[j], rs[i]
	}
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

// Package fontkit resolves and measures fonts for glyph layout.
//
// A Provider turns an ordered list of font candidates into a usable Face:
// each candidate is tried as a file path, then as a family name looked up in
// the system font directories; if every candidate fails, the embedded Go
// Regular font is used so rendering always has a glyph set. Parsed fonts and
// built faces are cached per (source, size) to avoid repeated disk access
// and face construction.
//
// Sizes are pixel sizes: faces are built at 72 DPI so one point equals one
// pixel, matching the raster compositor's coordinate space.
package fontkit

import (
	"fmt"
	"os"
	"sync"

	"github.com/flopp/go-findfont"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// BuiltinSource is the source name reported by faces backed by the embedded
// fallback font.
const BuiltinSource = "builtin:goregular"

// Box is a glyph's tight bounding box relative to the baseline origin, in
// pixels. Y grows downward; MinY is negative for glyphs above the baseline.
type Box struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width returns the box width in pixels.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height in pixels.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Face is a resolved font handle at a fixed pixel size.
type Face struct {
	face   font.Face
	source string
	size   int
}

// Source reports where the face came from: a file path or BuiltinSource.
func (f *Face) Source() string { return f.source }

// Size reports the pixel size the face was built at.
func (f *Face) Size() int { return f.size }

// Raw returns the underlying font.Face for drawing.
func (f *Face) Raw() font.Face { return f.face }

// Advance returns the horizontal advance of r in pixels. Runes the font does
// not cover fall back to the bounding-box width, with a minimum of 1 so
// layout never stalls on a zero advance.
func (f *Face) Advance(r rune) float64 {
	if adv, ok := f.face.GlyphAdvance(r); ok {
		return fixedToFloat(adv)
	}
	b, ok := f.Bounds(r)
	if !ok || b.Width() < 1 {
		return 1
	}
	return b.Width()
}

// Bounds returns the tight bounding box of r relative to the baseline
// origin. ok is false when the font has no glyph for r.
func (f *Face) Bounds(r rune) (Box, bool) {
	rect, _, ok := f.face.GlyphBounds(r)
	if !ok {
		return Box{}, false
	}
	return Box{
		MinX: fixedToFloat(rect.Min.X),
		MinY: fixedToFloat(rect.Min.Y),
		MaxX: fixedToFloat(rect.Max.X),
		MaxY: fixedToFloat(rect.Max.Y),
	}, true
}

// Metrics returns the face's vertical metrics in pixels.
func (f *Face) Metrics() (ascent, descent float64) {
	m := f.face.Metrics()
	return fixedToFloat(m.Ascent), fixedToFloat(m.Descent)
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

// faceKey identifies a cached face.
type faceKey struct {
	source string
	size   int
}

// Provider resolves font candidates and caches the results.
// Safe for concurrent use.
type Provider struct {
	mu    sync.Mutex
	fonts map[string]*opentype.Font
	faces map[faceKey]*Face
}

// NewProvider creates an empty provider.
func NewProvider() *Provider {
	return &Provider{
		fonts: make(map[string]*opentype.Font),
		faces: make(map[faceKey]*Face),
	}
}

// Resolve returns a face for the first loadable candidate at the given pixel
// size. Candidates may be file paths or installed family names. If no
// candidate loads, the embedded Go Regular font is returned; Resolve only
// errors when size is not positive.
func (p *Provider) Resolve(candidates []string, size int) (*Face, error) {
	if size <= 0 {
		return nil, fmt.Errorf("font size must be > 0, got %d", size)
	}

	for _, cand := range candidates {
		path, ok := locate(cand)
		if !ok {
			continue
		}
		if face, err := p.face(path, size, p.parseFile); err == nil {
			return face, nil
		}
	}

	return p.face(BuiltinSource, size, func(string) (*opentype.Font, error) {
		return opentype.Parse(goregular.TTF)
	})
}

// locate maps a candidate to a loadable file path: the candidate itself if
// it exists, otherwise a system font directory lookup by name.
func locate(candidate string) (string, bool) {
	if candidate == "" {
		return "", false
	}
	if _, err := os.Stat(candidate); err == nil {
		return candidate, true
	}
	if path, err := findfont.Find(candidate); err == nil {
		return path, true
	}
	return "", false
}

func (p *Provider) parseFile(path string) (*opentype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return opentype.Parse(data)
}

// face builds (or returns a cached) face for a source at a size, parsing the
// font at most once per source.
func (p *Provider) face(source string, size int, parse func(string) (*opentype.Font, error)) (*Face, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := faceKey{source: source, size: size}
	if f, ok := p.faces[key]; ok {
		return f, nil
	}

	ft, ok := p.fonts[source]
	if !ok {
		var err error
		ft, err = parse(source)
		if err != nil {
			return nil, fmt.Errorf("parse font %s: %w", source, err)
		}
		p.fonts[source] = ft
	}

	// 72 DPI makes the point size a pixel size.
	raw, err := opentype.NewFace(ft, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("build face %s@%d: %w", source, size, err)
	}

	f := &Face{face: raw, source: source, size: size}
	p.faces[key] = f
	return f, nil
}

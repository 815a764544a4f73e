// Package config holds the immutable batch configuration.
//
// All empirically tuned constants — arc curve parameters, page anchors, scale
// factors, flatten resolution, archive retention — live here as explicit
// configuration instead of package-level mutable state. A Config is
// constructed once (Default or Load) and passed by reference into each
// pipeline stage; stages only read it.
//
// Configuration files use TOML:
//
//	[pipeline]
//	artwork_dir = "artwork"
//	retention   = 10
//
//	[styles.single]
//	radius    = 2700.0
//	font_size = 120
//
// Load starts from Default and overlays the file, so a config file only needs
// to name the values it changes.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/printlab/arcpress/pkg/errors"
)

// Style names used by the two fixed page layouts.
const (
	StylePaired = "paired"
	StyleSingle = "single"
)

// Config is the complete batch configuration. Immutable after construction.
type Config struct {
	Pipeline Pipeline `toml:"pipeline"`
	Styles   Styles   `toml:"styles"`
	Layouts  Layouts  `toml:"layouts"`
}

// Styles holds the two named arc-text styles.
type Styles struct {
	Paired Style `toml:"paired"`
	Single Style `toml:"single"`
}

// Layouts holds the two fixed page layouts.
type Layouts struct {
	Paired Layout `toml:"paired"`
	Single Layout `toml:"single"`
}

// Pipeline holds paths and batch-wide settings.
type Pipeline struct {
	// ArtworkDir is the read-only directory of character artwork keyed by
	// character id (<id>.png).
	ArtworkDir string `toml:"artwork_dir"`

	// OutputDir receives the numbered per-item artifact images.
	OutputDir string `toml:"output_dir"`

	// WorkingDir receives the generated per-pair/per-single documents and
	// the master document.
	WorkingDir string `toml:"working_dir"`

	// ArchiveDir receives prior batches' documents.
	ArchiveDir string `toml:"archive_dir"`

	// FlattenDPI is the raster resolution used when flattening pages.
	FlattenDPI float64 `toml:"flatten_dpi"`

	// DigestDPI is the raster resolution used for content digests during
	// merge verification. Lower than FlattenDPI: the digest only needs to
	// discriminate content, not reproduce it.
	DigestDPI float64 `toml:"digest_dpi"`

	// Retention is the number of most recent archived master documents kept.
	Retention int `toml:"retention"`

	// SinglePatterns lists character-id substrings routed to the single-slot
	// layout (e.g. "boat-"). Everything else is paired.
	SinglePatterns []string `toml:"single_patterns"`
}

// FontOverride switches font candidates for characters whose id contains
// Pattern. SizeRatio scales the style's base font size (1.0 = unchanged).
type FontOverride struct {
	Pattern    string   `toml:"pattern"`
	Candidates []string `toml:"candidates"`
	SizeRatio  float64  `toml:"size_ratio"`
}

// Style is one named arc-text style. One instance per layout style; never
// mutated per request.
type Style struct {
	CenterX      float64 `toml:"center_x"`
	CenterY      float64 `toml:"center_y"`
	Radius       float64 `toml:"radius"`
	BaseAngleDeg float64 `toml:"base_angle_deg"`
	Kerning      float64 `toml:"kerning"`
	Outward      bool    `toml:"outward"`

	// Reversed lays glyphs out in reverse rune order. Outward top arcs read
	// right-to-left otherwise.
	Reversed bool `toml:"reversed"`

	FontSize    int `toml:"font_size"`
	MinFontSize int `toml:"min_font_size"`
	MaxFontSize int `toml:"max_font_size"`

	// Length-adaptive scaling: applied only when the text is longer than
	// ReferenceLength.
	ReferenceLength    int     `toml:"reference_length"`
	FontScalePerChar   float64 `toml:"font_scale_per_char"`
	RadiusScalePerChar float64 `toml:"radius_scale_per_char"`
	YScalePerChar      float64 `toml:"y_scale_per_char"`

	// Asymmetric enables the per-glyph radius growth and long-string angle
	// nudges that compensate for forced-perspective artwork.
	Asymmetric bool `toml:"asymmetric"`

	Fill        [4]uint8 `toml:"fill"`
	StrokeWidth int      `toml:"stroke_width"`
	StrokeFill  [4]uint8 `toml:"stroke_fill"`

	FontCandidates []string       `toml:"font_candidates"`
	FontOverrides  []FontOverride `toml:"font_overrides"`
}

// Anchor is a slot position on a template page, in PDF points measured from
// the bottom-left corner (PDF convention).
type Anchor struct {
	X float64 `toml:"x"`
	Y float64 `toml:"y"`
}

// Layout is one fixed page layout: a template document plus the placement
// geometry for its slots.
type Layout struct {
	// Template is the path to the fixed multi-page template document.
	Template string `toml:"template"`

	// Slots are the anchors artifacts are placed at, in placement order
	// (paired: top then bottom; single: one centered slot).
	Slots []Anchor `toml:"slots"`

	// ImageDPI is the resolution assumed when sizing an artifact bitmap as a
	// one-page document (pixels -> points).
	ImageDPI float64 `toml:"image_dpi"`

	// SlotWidth and DesignWidth together with ScaleFactor give the affine
	// scale applied to the artifact page: (SlotWidth/DesignWidth)*ScaleFactor.
	SlotWidth   float64 `toml:"slot_width"`
	DesignWidth float64 `toml:"design_width"`
	ScaleFactor float64 `toml:"scale_factor"`
}

// Scale returns the affine scale applied to an artifact page.
func (l Layout) Scale() float64 {
	return l.SlotWidth / l.DesignWidth * l.ScaleFactor
}

// Default returns the built-in configuration, tuned for the stock template
// artwork. The numeric values here were measured against one fixed template
// set and do not generalize; override them per deployment.
func Default() *Config {
	return &Config{
		Pipeline: Pipeline{
			ArtworkDir:     "artwork",
			OutputDir:      "outputs",
			WorkingDir:     ".",
			ArchiveDir:     "pdf_archive",
			FlattenDPI:     300,
			DigestDPI:      72,
			Retention:      10,
			SinglePatterns: []string{"boat-"},
		},
		Styles: Styles{
			Paired: Style{
				CenterX:         780,
				CenterY:         690,
				Radius:          600,
				BaseAngleDeg:    270, // bottom of circle, upward curve
				Kerning:         1.2,
				Outward:         false,
				FontSize:        100,
				MinFontSize:     40,
				MaxFontSize:     140,
				ReferenceLength: 16,
				Asymmetric:      true,
				Fill:            [4]uint8{0, 0, 0, 255},
				StrokeFill:      [4]uint8{0, 0, 0, 255},
				FontCandidates:  []string{"font/waltographUI.ttf", "font/waltograph42.otf"},
				FontOverrides: []FontOverride{
					{Pattern: "dog-", Candidates: []string{"font/blueberry.ttf"}, SizeRatio: 0.9},
					{Pattern: "rubberduck-", Candidates: []string{"font/blueberry.ttf"}, SizeRatio: 0.9},
				},
			},
			Single: Style{
				CenterX:            950,
				CenterY:            4220,
				Radius:             2700,
				BaseAngleDeg:       90, // centered at top of arc
				Kerning:            1.2,
				Outward:            true,
				Reversed:           true,
				FontSize:           120,
				MinFontSize:        60,
				MaxFontSize:        180,
				ReferenceLength:    16,
				FontScalePerChar:   4,
				RadiusScalePerChar: 50,
				YScalePerChar:      50,
				Fill:               [4]uint8{255, 255, 255, 255},
				StrokeFill:         [4]uint8{255, 255, 255, 255},
				FontCandidates:     []string{"font/waltographUI.ttf", "font/waltograph42.otf"},
			},
		},
		Layouts: Layouts{
			Paired: Layout{
				Template:    "format.pdf",
				Slots:       []Anchor{{X: 121, Y: 396}, {X: 121, Y: 36}},
				ImageDPI:    100,
				SlotWidth:   500,
				DesignWidth: 1500,
				ScaleFactor: 1.027,
			},
			Single: Layout{
				Template:    "boat_format.pdf",
				Slots:       []Anchor{{X: -9, Y: 80}},
				ImageDPI:    100,
				SlotWidth:   500,
				DesignWidth: 1500,
				ScaleFactor: 1.41,
			},
		},
	}
}

// Load reads a TOML config file, overlaying it on Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on configuration that would corrupt a batch. A
// non-positive radius is a configuration error, never silently clamped.
func (c *Config) Validate() error {
	if c.Pipeline.Retention < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "retention must be >= 1, got %d", c.Pipeline.Retention)
	}
	if c.Pipeline.FlattenDPI <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "flatten_dpi must be > 0, got %g", c.Pipeline.FlattenDPI)
	}
	if c.Pipeline.DigestDPI <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "digest_dpi must be > 0, got %g", c.Pipeline.DigestDPI)
	}
	styles := map[string]Style{StylePaired: c.Styles.Paired, StyleSingle: c.Styles.Single}
	for name, s := range styles {
		if s.Radius <= 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "style %q: radius must be > 0, got %g", name, s.Radius)
		}
		if s.FontSize <= 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "style %q: font_size must be > 0, got %d", name, s.FontSize)
		}
		if s.MinFontSize > s.MaxFontSize {
			return errors.New(errors.ErrCodeInvalidConfig, "style %q: min_font_size %d > max_font_size %d", name, s.MinFontSize, s.MaxFontSize)
		}
	}
	layouts := map[string]Layout{StylePaired: c.Layouts.Paired, StyleSingle: c.Layouts.Single}
	for name, l := range layouts {
		wantSlots := 1
		if name == StylePaired {
			wantSlots = 2
		}
		if len(l.Slots) != wantSlots {
			return errors.New(errors.ErrCodeInvalidConfig, "layout %q: expected %d slot(s), got %d", name, wantSlots, len(l.Slots))
		}
		if l.Scale() <= 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "layout %q: non-positive placement scale", name)
		}
		if l.ImageDPI <= 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "layout %q: image_dpi must be > 0", name)
		}
	}
	return nil
}

// Style returns the named style. Unknown names fall back to paired.
func (c *Config) Style(name string) Style {
	if name == StyleSingle {
		return c.Styles.Single
	}
	return c.Styles.Paired
}

// Layout returns the named layout. Unknown names fall back to paired.
func (c *Config) Layout(name string) Layout {
	if name == StyleSingle {
		return c.Layouts.Single
	}
	return c.Layouts.Paired
}

// StyleFor returns the style and layout names for a character id: single if
// the id matches a configured single pattern, paired otherwise.
func (c *Config) StyleFor(characterID string) string {
	for _, pat := range c.Pipeline.SinglePatterns {
		if pat != "" && strings.Contains(characterID, pat) {
			return StyleSingle
		}
	}
	return StylePaired
}

// String summarizes the config for debug logging.
func (c *Config) String() string {
	return fmt.Sprintf("config{retention=%d flatten_dpi=%g digest_dpi=%g}",
		c.Pipeline.Retention, c.Pipeline.FlattenDPI, c.Pipeline.DigestDPI)
}

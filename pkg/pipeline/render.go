package pipeline

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/printlab/arcpress/pkg/arctext"
	"github.com/printlab/arcpress/pkg/compose"
	"github.com/printlab/arcpress/pkg/config"
	"github.com/printlab/arcpress/pkg/errors"
	"github.com/printlab/arcpress/pkg/orders"
)

// Preview renders a single request's artifact outside a batch, for arc and
// font tuning. Returns the style name the request resolved to.
func (r *Runner) Preview(req orders.Request, outPath string) (string, error) {
	styleName := r.Config.StyleFor(req.CharacterID)
	artwork, ok := findArtwork(r.Config.Pipeline.ArtworkDir, req.CharacterID)
	if !ok {
		return "", errors.New(errors.ErrCodeArtworkNotFound, "no artwork for %s", req.CharacterID)
	}
	if err := r.renderOne(req, styleName, artwork, outPath); err != nil {
		return "", err
	}
	return styleName, nil
}

// renderedItem is one request that produced an artifact on disk.
type renderedItem struct {
	req   orders.Request
	style string // config.StylePaired or config.StyleSingle
	path  string
}

// findArtwork resolves a character id to its artwork file: exact match
// first, then a case-insensitive directory scan.
func findArtwork(dir, characterID string) (string, bool) {
	want := characterID + ".png"
	exact := filepath.Join(dir, want)
	if _, err := os.Stat(exact); err == nil {
		return exact, true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), want) {
			return filepath.Join(dir, e.Name()), true
		}
	}
	return "", false
}

// styleFont returns the font candidates and base size for a character,
// applying the first matching per-character override. A zero override ratio
// leaves the size unchanged.
func styleFont(s config.Style, characterID string) (candidates []string, baseSize int) {
	candidates, baseSize = s.FontCandidates, s.FontSize
	for _, ov := range s.FontOverrides {
		if ov.Pattern == "" || !strings.Contains(characterID, ov.Pattern) {
			continue
		}
		if len(ov.Candidates) > 0 {
			candidates = ov.Candidates
		}
		if ov.SizeRatio > 0 {
			baseSize = int(math.Round(float64(s.FontSize) * ov.SizeRatio))
		}
		break
	}
	return candidates, baseSize
}

func arcParams(s config.Style, baseSize int) arctext.Params {
	return arctext.Params{
		Center:             arctext.Point{X: s.CenterX, Y: s.CenterY},
		Radius:             s.Radius,
		BaseAngleDeg:       s.BaseAngleDeg,
		Kerning:            s.Kerning,
		Outward:            s.Outward,
		Reversed:           s.Reversed,
		FontSize:           baseSize,
		MinFontSize:        s.MinFontSize,
		MaxFontSize:        s.MaxFontSize,
		ReferenceLength:    s.ReferenceLength,
		FontScalePerChar:   s.FontScalePerChar,
		RadiusScalePerChar: s.RadiusScalePerChar,
		YScalePerChar:      s.YScalePerChar,
		Asymmetric:         s.Asymmetric,
	}
}

func nrgba(c [4]uint8) color.NRGBA {
	return color.NRGBA{R: c[0], G: c[1], B: c[2], A: c[3]}
}

// artifactPath names the per-request output image by input sequence.
func artifactPath(outputDir string, seq int) string {
	return filepath.Join(outputDir, fmt.Sprintf("output_%03d.png", seq+1))
}

// renderOne writes the personalized artifact for a single request. An empty
// personalization short-circuits to a byte-for-byte copy of the artwork.
func (r *Runner) renderOne(req orders.Request, styleName, artworkPath, outPath string) error {
	if req.Personalization == "" {
		if err := compose.CopyVerbatim(artworkPath, outPath); err != nil {
			return errors.Wrap(errors.ErrCodeRenderFailed, err, "copy artwork for %s", req.CharacterID)
		}
		return nil
	}

	style := r.Config.Style(styleName)
	candidates, baseSize := styleFont(style, req.CharacterID)
	params := arcParams(style, baseSize)

	fontSize, _, _ := params.Scaled(len([]rune(req.Personalization)))
	face, err := r.Fonts.Resolve(candidates, fontSize)
	if err != nil {
		return errors.Wrap(errors.ErrCodeRenderFailed, err, "resolve font for %s", req.CharacterID)
	}

	placements, err := params.Layout(req.Personalization, face)
	if err != nil {
		return err
	}

	base, err := compose.LoadArtwork(artworkPath)
	if err != nil {
		return errors.Wrap(errors.ErrCodeRenderFailed, err, "load artwork %s", artworkPath)
	}

	out := compose.Composite(base, placements, face, nrgba(style.Fill), compose.Stroke{
		Width: style.StrokeWidth,
		Fill:  nrgba(style.StrokeFill),
	})
	if err := compose.SaveArtifact(out, outPath); err != nil {
		return errors.Wrap(errors.ErrCodeRenderFailed, err, "write artifact %s", outPath)
	}
	return nil
}

// Package pagedoc assembles per-item documents from a fixed template.
//
// A layout names a multi-page template PDF; the target page is always the
// middle page (pageCount/2, zero-based). Assembly emits a fresh one-page
// document: the target template page is imported as the canvas and each
// artifact bitmap is drawn onto its slot anchor with the layout's affine
// scale. The template file itself is never modified.
package pagedoc

import (
	"image"
	"os"

	// Registered decoders for artifact dimension probing.
	_ "image/jpeg"
	_ "image/png"

	"github.com/gen2brain/go-fitz"
	"github.com/signintech/gopdf"

	"github.com/printlab/arcpress/pkg/config"
	"github.com/printlab/arcpress/pkg/errors"
)

// Template is a validated template document.
type Template struct {
	Path       string
	PageCount  int
	TargetPage int // zero-based
	Width      float64
	Height     float64 // target page size in points
}

// OpenTemplate validates a template path and probes its page geometry.
// A missing template aborts the whole batch, so the error is fatal-class.
func OpenTemplate(path string) (*Template, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.New(errors.ErrCodeTemplateNotFound, "template %s not found", path)
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTemplateNotFound, err, "open template %s", path)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n < 1 {
		return nil, errors.New(errors.ErrCodeTemplateNotFound, "template %s has no pages", path)
	}

	target := n / 2
	bound, err := doc.Bound(target)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTemplateNotFound, err, "template %s page %d bounds", path, target)
	}

	return &Template{
		Path:       path,
		PageCount:  n,
		TargetPage: target,
		Width:      float64(bound.Dx()),
		Height:     float64(bound.Dy()),
	}, nil
}

// Assembler places artifact bitmaps on the target page of one template.
type Assembler struct {
	layout config.Layout
	tpl    *Template
}

// NewAssembler opens the layout's template and returns an assembler bound
// to it.
func NewAssembler(layout config.Layout) (*Assembler, error) {
	tpl, err := OpenTemplate(layout.Template)
	if err != nil {
		return nil, err
	}
	return &Assembler{layout: layout, tpl: tpl}, nil
}

// Template returns the assembler's validated template.
func (a *Assembler) Template() *Template { return a.tpl }

// Assemble writes a one-page document with artifacts[i] placed at slot i.
// The artifact count must match the layout's slot count; an artifact with no
// decodable, non-zero extent leaves its slot empty and is reported in
// skipped. The template page is imported untouched as the canvas.
func (a *Assembler) Assemble(artifacts []string, outPath string) (skipped []int, err error) {
	if len(artifacts) != len(a.layout.Slots) {
		return nil, errors.New(errors.ErrCodePageAssembly,
			"layout wants %d artifact(s), got %d", len(a.layout.Slots), len(artifacts))
	}

	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: gopdf.Rect{W: a.tpl.Width, H: a.tpl.Height}})
	pdf.AddPage()

	// gopdf page numbers are 1-based.
	canvas := pdf.ImportPage(a.tpl.Path, a.tpl.TargetPage+1, "/MediaBox")
	pdf.UseImportedTemplate(canvas, 0, 0, a.tpl.Width, a.tpl.Height)

	scale := a.layout.Scale()
	for i, path := range artifacts {
		pxW, pxH, derr := imageSize(path)
		if derr != nil || pxW <= 0 || pxH <= 0 {
			skipped = append(skipped, i)
			continue
		}

		// Pixels to points at the layout's assumed DPI, then the slot scale.
		drawW := float64(pxW) * 72 / a.layout.ImageDPI * scale
		drawH := float64(pxH) * 72 / a.layout.ImageDPI * scale

		// Anchors are PDF bottom-left coordinates; gopdf draws from top-left.
		anchor := a.layout.Slots[i]
		x := anchor.X
		y := a.tpl.Height - anchor.Y - drawH

		if err := pdf.Image(path, x, y, &gopdf.Rect{W: drawW, H: drawH}); err != nil {
			return skipped, errors.Wrap(errors.ErrCodePageAssembly, err, "place artifact %s", path)
		}
	}

	if err := pdf.WritePdf(outPath); err != nil {
		return skipped, errors.Wrap(errors.ErrCodePageAssembly, err, "write %s", outPath)
	}
	return skipped, nil
}

func imageSize(path string) (w, h int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

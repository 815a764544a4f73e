// Package pdfops provides the document-level operations of the batch
// pipeline: page counting, raster flattening, ordered merging, and content
// digests.
//
// Digests are computed over a page's rendered raster, not the file bytes.
// Rebuilt documents embed fresh metadata (timestamps, object ordering), so
// byte digests never survive a flatten; raster digests discriminate content
// while staying stable across rebuilds.
package pdfops

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
	"github.com/signintech/gopdf"

	"github.com/printlab/arcpress/pkg/errors"
)

// PageCount returns the number of pages in a document.
func PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidInput, err, "open %s", path)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// Digest returns the hex sha256 of one page's raster at the probe DPI.
// Pages are zero-based.
func Digest(path string, page int, dpi float64) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeVerifyMismatch, err, "open %s", path)
	}
	defer doc.Close()

	img, err := doc.ImageDPI(page, dpi)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeVerifyMismatch, err, "render %s page %d", path, page)
	}

	sum := sha256.Sum256(img.Pix)
	return hex.EncodeToString(sum[:]), nil
}

// Flatten replaces a document in place with a raster-only rebuild: every
// page is rendered at the given DPI and re-emitted as a full-page image.
// The rebuild goes to a temp file first and renames over the original, so a
// failed flatten leaves the input untouched.
func Flatten(path string, dpi float64) error {
	doc, err := fitz.New(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFlattenFailed, err, "open %s", path)
	}
	defer doc.Close()

	pdf := gopdf.GoPdf{}
	started := false

	for i := 0; i < doc.NumPage(); i++ {
		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			return errors.Wrap(errors.ErrCodeFlattenFailed, err, "render %s page %d", path, i)
		}

		// Raster pixels back to the page's point size.
		w := float64(img.Bounds().Dx()) * 72 / dpi
		h := float64(img.Bounds().Dy()) * 72 / dpi
		size := gopdf.Rect{W: w, H: h}

		if !started {
			pdf.Start(gopdf.Config{PageSize: size})
			started = true
		}
		pdf.AddPageWithOption(gopdf.PageOption{PageSize: &size})

		if err := pdf.ImageFrom(img, 0, 0, &size); err != nil {
			return errors.Wrap(errors.ErrCodeFlattenFailed, err, "place %s page %d", path, i)
		}
	}
	if !started {
		return errors.New(errors.ErrCodeFlattenFailed, "%s has no pages", path)
	}

	tmp := path + ".flatten.tmp"
	if err := pdf.WritePdf(tmp); err != nil {
		os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeFlattenFailed, err, "write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeFlattenFailed, err, "replace %s", path)
	}
	return nil
}

// Merge concatenates the input documents into out, preserving input order
// and page order within each input. It returns the source path of every
// output page, indexed by zero-based output page number.
func Merge(paths []string, out string) (pageSources []string, err error) {
	if len(paths) == 0 {
		return nil, errors.New(errors.ErrCodeMergeFailed, "nothing to merge")
	}

	pdf := gopdf.GoPdf{}
	started := false

	for _, src := range paths {
		doc, err := fitz.New(src)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeMergeFailed, err, "open %s", src)
		}

		for p := 0; p < doc.NumPage(); p++ {
			bound, err := doc.Bound(p)
			if err != nil {
				doc.Close()
				return nil, errors.Wrap(errors.ErrCodeMergeFailed, err, "%s page %d bounds", src, p)
			}
			size := gopdf.Rect{W: float64(bound.Dx()), H: float64(bound.Dy())}

			if !started {
				pdf.Start(gopdf.Config{PageSize: size})
				started = true
			}
			pdf.AddPageWithOption(gopdf.PageOption{PageSize: &size})

			tpl := pdf.ImportPage(src, p+1, "/MediaBox")
			pdf.UseImportedTemplate(tpl, 0, 0, size.W, size.H)
			pageSources = append(pageSources, src)
		}
		doc.Close()
	}
	if !started {
		return nil, errors.New(errors.ErrCodeMergeFailed, "inputs have no pages")
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMergeFailed, err, "create output dir")
	}
	if err := pdf.WritePdf(out); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMergeFailed, err, "write %s", out)
	}
	return pageSources, nil
}

// Package orders reads the batch input list.
//
// The input is a two-column CSV: character id, personalization text. The
// personalization may be empty (the artwork ships unmodified). Each request
// gets an explicit Sequence at load time; downstream ordering works off that
// field, never off filenames.
package orders

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/printlab/arcpress/pkg/errors"
)

// Request is one line of the input list.
type Request struct {
	// Sequence is the zero-based input position. Assigned once at load;
	// the master document's page order follows it.
	Sequence int

	// CharacterID names the artwork file, without extension.
	CharacterID string

	// Personalization is the text burned into the artwork. Empty means the
	// artwork is used verbatim.
	Personalization string
}

// headerWords are first-cell values that mark a header row.
var headerWords = map[string]bool{
	"character":  true,
	"characters": true,
	"image":      true,
	"file":       true,
	"name":       true,
}

// Load reads the request list from a CSV file.
func Load(path string) ([]Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "open orders %s", path)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads requests from CSV text. A first row whose leading cell is a
// known header word is skipped; rows with an empty character id are skipped.
func Parse(r io.Reader) ([]Request, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var reqs []Request
	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read orders")
		}

		if first {
			first = false
			if len(row) > 0 && headerWords[strings.ToLower(strings.TrimSpace(row[0]))] {
				continue
			}
		}

		if len(row) == 0 {
			continue
		}
		character := strings.TrimSpace(row[0])
		if character == "" {
			continue
		}

		text := ""
		if len(row) > 1 {
			text = strings.TrimSpace(row[1])
		}

		reqs = append(reqs, Request{
			Sequence:        len(reqs),
			CharacterID:     character,
			Personalization: text,
		})
	}
	return reqs, nil
}

package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/printlab/arcpress/pkg/config"
)

// docGroup is one one-page document waiting for assembly.
type docGroup struct {
	style string
	items []renderedItem
}

// assembledDoc ties a written document to the group it was built from, so
// later stages can drop a failing document together with its sequences.
type assembledDoc struct {
	path  string
	group docGroup
}

// groupDocuments walks rendered items in sequence order. Single-style items
// each become their own document; paired-style items are grouped with the
// next paired-style item. A trailing paired item with no partner is returned
// separately and never placed.
func groupDocuments(items []renderedItem) (groups []docGroup, unpaired *renderedItem) {
	var pending *renderedItem
	for i := range items {
		it := items[i]
		if it.style == config.StyleSingle {
			groups = append(groups, docGroup{style: it.style, items: []renderedItem{it}})
			continue
		}
		if pending == nil {
			pending = &it
			continue
		}
		groups = append(groups, docGroup{style: it.style, items: []renderedItem{*pending, it}})
		pending = nil
	}
	return groups, pending
}

// sequences returns the input sequences of a group's items in placement
// order.
func (g docGroup) sequences() []int {
	seqs := make([]int, len(g.items))
	for i, it := range g.items {
		seqs[i] = it.req.Sequence
	}
	return seqs
}

func docPath(workingDir, timestamp string, n int) string {
	return filepath.Join(workingDir, fmt.Sprintf("order_output_%s_%d.pdf", timestamp, n))
}

func masterPath(workingDir, timestamp string) string {
	return filepath.Join(workingDir, fmt.Sprintf("MASTER_ORDER_%s.pdf", timestamp))
}

// clearStale removes leftovers of prior interrupted runs so a batch never
// picks up another batch's artifacts. The archive directory is never touched
// here.
func clearStale(outputDir, workingDir string) error {
	for _, pat := range []string{
		filepath.Join(outputDir, "output_*.png"),
		filepath.Join(workingDir, "order_output_*.pdf"),
		filepath.Join(workingDir, "MASTER_ORDER_*.pdf"),
	} {
		matches, err := filepath.Glob(pat)
		if err != nil {
			return err
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	return nil
}

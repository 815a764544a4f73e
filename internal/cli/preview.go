package cli

import (
	"github.com/spf13/cobra"

	"github.com/printlab/arcpress/pkg/config"
	"github.com/printlab/arcpress/pkg/orders"
	"github.com/printlab/arcpress/pkg/pagedoc"
)

// previewCommand creates the preview command for tuning arc parameters on a
// single artifact without running a batch.
func (c *CLI) previewCommand() *cobra.Command {
	var (
		configPath string
		text       string
		output     string
		doc        bool
	)

	cmd := &cobra.Command{
		Use:   "preview [character]",
		Short: "Render one personalized artifact for tuning",
		Long: `Render one personalized artifact for tuning.

Burns the given text into the named character's artwork using the style that
a real batch would pick, and writes the result next to where you stand. With
--doc the artifact is also placed on its template page so slot anchors and
scale can be checked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPreview(args[0], text, output, configPath, doc)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "TOML config file (defaults to built-in settings)")
	cmd.Flags().StringVarP(&text, "text", "t", "The Christopher Family", "personalization text to render")
	cmd.Flags().StringVarP(&output, "output", "o", "preview.png", "output image path")
	cmd.Flags().BoolVar(&doc, "doc", false, "also assemble the artifact onto its template page")

	return cmd
}

func (c *CLI) runPreview(character, text, output, configPath string, doc bool) error {
	runner, err := c.newRunner(configPath)
	if err != nil {
		return err
	}

	req := orders.Request{CharacterID: character, Personalization: text}
	styleName, err := runner.Preview(req, output)
	if err != nil {
		printError("Preview failed")
		return err
	}

	printSuccess("Rendered %q onto %s", text, character)
	printKeyValue("style", styleName)
	printFile(output)

	if !doc {
		return nil
	}

	layout := runner.Config.Layout(styleName)
	asm, err := pagedoc.NewAssembler(layout)
	if err != nil {
		return err
	}

	// The paired layout needs both slots filled; reuse the one artifact.
	artifacts := []string{output}
	if styleName == config.StylePaired {
		artifacts = []string{output, output}
	}

	docPath := output + ".pdf"
	skipped, err := asm.Assemble(artifacts, docPath)
	if err != nil {
		return err
	}
	for _, slot := range skipped {
		printWarning("slot %d left empty", slot)
	}
	printFile(docPath)
	return nil
}

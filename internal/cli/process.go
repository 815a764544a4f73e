package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/printlab/arcpress/pkg/orders"
	"github.com/printlab/arcpress/pkg/pipeline"
)

// processCommand creates the process command for running a full batch.
func (c *CLI) processCommand() *cobra.Command {
	var (
		configPath string
		keep       int
		dpi        float64
		review     bool
	)

	cmd := &cobra.Command{
		Use:   "process [orders.csv]",
		Short: "Run a personalization batch from an orders CSV",
		Long: `Run a personalization batch from an orders CSV.

The CSV has two columns: character id and personalization text. Each order's
text is rendered along the configured arc and burned into the character
artwork; artifacts are placed on template pages, flattened, merged into a
master document, verified, and archived.

Use --review to interactively include or exclude orders before the batch
starts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := orders.Load(args[0])
			if err != nil {
				return err
			}
			if review {
				reqs, err = reviewOrders(reqs)
				if err != nil {
					return err
				}
			}
			return c.runProcess(cmd.Context(), reqs, configPath, keep, dpi)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "TOML config file (defaults to built-in settings)")
	cmd.Flags().IntVar(&keep, "keep", 0, "archived masters to retain (overrides config)")
	cmd.Flags().Float64Var(&dpi, "dpi", 0, "flatten resolution (overrides config)")
	cmd.Flags().BoolVar(&review, "review", false, "interactively review orders before processing")

	return cmd
}

// reviewOrders opens the interactive order list and returns the orders left
// included. Aborting the review aborts the batch.
func reviewOrders(reqs []orders.Request) ([]orders.Request, error) {
	model := NewOrderListModel(reqs)
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, err
	}

	m, ok := final.(OrderListModel)
	if !ok || !m.Confirmed {
		return nil, fmt.Errorf("review aborted")
	}

	kept := m.Included()
	if len(kept) == 0 {
		return nil, fmt.Errorf("all orders excluded")
	}
	return kept, nil
}

// runProcess runs the batch under a spinner and prints the summary.
func (c *CLI) runProcess(ctx context.Context, reqs []orders.Request, configPath string, keep int, dpi float64) error {
	runner, err := c.newRunner(configPath)
	if err != nil {
		return err
	}

	printInfo("Processing %d order(s)", len(reqs))
	prog := newProgress(c.Logger)

	spinner := newSpinnerWithContext(ctx, "Running batch...")
	spinner.Start()

	result, err := runner.Run(ctx, pipeline.Options{
		Requests:   reqs,
		Keep:       keep,
		FlattenDPI: dpi,
		Logger:     c.Logger,
	})
	if err != nil {
		spinner.StopWithError("Batch failed")
		return err
	}
	spinner.Stop()

	prog.done(fmt.Sprintf("Processed %d order(s)", len(reqs)))
	printSuccess("Master archived")
	printFile(result.ArchivePath)
	printSummary(result.Rendered, len(result.Skipped),
		result.Documents, result.Verification.FinalPageCount)

	for _, s := range result.Skipped {
		printWarning("skipped #%d %s: %s", s.Sequence+1, s.CharacterID, s.Reason)
	}
	for _, col := range result.Verification.Collisions {
		printWarning("pages %v have identical content", col.Pages)
	}
	return nil
}

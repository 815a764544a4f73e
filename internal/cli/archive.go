package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/printlab/arcpress/pkg/pdfops"
	"github.com/printlab/arcpress/pkg/pipeline"
)

// archiveCommand creates the archive command group.
func (c *CLI) archiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect or prune archived master documents",
	}
	cmd.AddCommand(c.archiveListCommand())
	cmd.AddCommand(c.archivePruneCommand())
	return cmd
}

func (c *CLI) archiveListCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived master documents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			archived, err := pipeline.ListArchived(cfg.Pipeline.ArchiveDir)
			if err != nil {
				return err
			}
			if len(archived) == 0 {
				printInfo("Archive is empty")
				return nil
			}

			printInfo("%d archived master(s) in %s", len(archived), cfg.Pipeline.ArchiveDir)
			for _, path := range archived {
				printFile(path)
				info, serr := os.Stat(path)
				pages, perr := pdfops.PageCount(path)
				if serr == nil && perr == nil {
					printDetail("%d pages · %.1f MB · %s",
						pages,
						float64(info.Size())/(1<<20),
						info.ModTime().Format("2006-01-02 15:04"))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "TOML config file (defaults to built-in settings)")
	return cmd
}

func (c *CLI) archivePruneCommand() *cobra.Command {
	var (
		configPath string
		keep       int
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove archived masters beyond the retention count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			n := cfg.Pipeline.Retention
			if keep > 0 {
				n = keep
			}

			removed, err := pipeline.RetainRecent(cfg.Pipeline.ArchiveDir, n)
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				printInfo("Nothing to prune (retention %d)", n)
				return nil
			}

			printSuccess("%s", fmt.Sprintf("Pruned %d archived master(s)", len(removed)))
			for _, path := range removed {
				printDetail("%s", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "TOML config file (defaults to built-in settings)")
	cmd.Flags().IntVar(&keep, "keep", 0, "masters to retain (overrides config)")
	return cmd
}

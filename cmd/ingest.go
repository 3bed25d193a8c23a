package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamal-hamza/tagbox/internal/adapters/source"
	"github.com/kamal-hamza/tagbox/internal/core/ports"
	"github.com/kamal-hamza/tagbox/internal/core/services"
	"github.com/kamal-hamza/tagbox/pkg/ui"
)

var (
	ingestHandoff     string
	ingestNoClipboard bool
	ingestNoForm      bool
	ingestDryRun      bool
	ingestVerbose     bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Process the pending share",
	Long: `Run the ingestion pipeline once.

Sources are consulted in order: the staged share, the clipboard, then a
query hand-off passed with --handoff (e.g. "url=https://...&categoryId=...").
Links to supported platforms are saved straight into your default or only
category; screenshots go into a new container. Anything else opens the
manual form, prefilled with whatever was recovered.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestHandoff, "handoff", "", "Query string handed over by another app")
	ingestCmd.Flags().BoolVar(&ingestNoClipboard, "no-clipboard", false, "Do not read the clipboard")
	ingestCmd.Flags().BoolVar(&ingestNoForm, "no-form", false, "Never open the manual form")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "Show the decision without saving")
	ingestCmd.Flags().BoolVarP(&ingestVerbose, "verbose", "v", false, "Show pipeline states")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := getContext()

	var extra []ports.PayloadSource
	if appConfig.UseClipboard && !ingestNoClipboard {
		if c := source.NewClipboardSource(); c != nil {
			extra = append(extra, c)
		}
	}
	if ingestHandoff != "" {
		extra = append(extra, source.NewQueryHandoffSource(ingestHandoff))
	}

	deps := pipelineDeps(extra...)
	out, err := services.NewIngestor(deps).Run(ctx, services.RunOptions{DryRun: ingestDryRun})
	if err != nil {
		fmt.Println(ui.FormatWarning("Cancelled, the share is still pending"))
		return nil
	}

	renderOutcome(out, ingestVerbose || ingestDryRun)

	if !out.NeedsForm() || ingestNoForm || ingestDryRun || !appConfig.OpenFormOnDefer {
		return nil
	}
	if !isInteractive() {
		fmt.Println(ui.FormatMuted("Run 'tagbox ingest' in a terminal to finish in the form, or 'tagbox share clear' to discard"))
		return nil
	}

	return completeInForm(out, services.NewManualSaveService(deps))
}

// isInteractive reports whether stdin is a terminal
func isInteractive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

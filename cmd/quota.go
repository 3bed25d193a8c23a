package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/pkg/ui"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show screenshot usage against your plan",
	Args:  cobra.NoArgs,
	RunE:  runQuota,
}

func runQuota(cmd *cobra.Command, args []string) error {
	ctx := getContext()
	user, err := requireUser(ctx)
	if err != nil {
		return err
	}

	snap, err := quotaRepo.QuotaSnapshot(ctx, user.ID)
	if err != nil {
		return err
	}

	fmt.Println(ui.FormatTitle("Plan usage"))
	fmt.Println()
	fmt.Println(ui.RenderKeyValue("Screenshots", ui.RenderMeter(snap.CurrentCount, snap.MaxCount, 20)))

	storage := ui.FormatBytes(snap.CurrentBytes) + " / unlimited"
	if snap.MaxBytes != domain.Unlimited {
		storage = fmt.Sprintf("%s / %s", ui.FormatBytes(snap.CurrentBytes), ui.FormatBytes(snap.MaxBytes))
	}
	fmt.Println(ui.RenderKeyValue("Storage", storage))

	switch remaining := snap.RemainingCount(); {
	case remaining == domain.Unlimited:
	case remaining == 0:
		fmt.Println()
		fmt.Println(ui.FormatWarning("Screenshot limit reached, new screenshots open the form instead"))
	default:
		fmt.Println()
		fmt.Println(ui.FormatMuted(fmt.Sprintf("%d more screenshot(s) fit your plan", remaining)))
	}
	return nil
}

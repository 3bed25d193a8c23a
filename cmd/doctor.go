package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamal-hamza/tagbox/internal/adapters/repository"
	"github.com/kamal-hamza/tagbox/internal/adapters/source"
	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/pkg/config"
	"github.com/kamal-hamza/tagbox/pkg/ui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the health of your tagbox library",
	Long: `Diagnose issues with your tagbox setup.

Checks for:
  - Library directory integrity
  - Configuration file and database schema
  - Session and default category
  - Locally stored images that went missing
  - A pending share that was already processed`,
	Run: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) {
	ctx := getContext()

	fmt.Println(ui.FormatTitle("🏥 tagbox doctor"))
	fmt.Println()

	// 1. Library structure
	for _, dir := range []struct{ name, path string }{
		{"Library Directory", appVault.RootPath},
		{"Share Directory", appVault.SharePath},
		{"Assets Directory", appVault.AssetsPath},
		{"Inbox Directory", inboxDir()},
	} {
		checkStep(dir.name, func() error {
			if _, err := os.Stat(dir.path); os.IsNotExist(err) {
				return fmt.Errorf("missing at %s", dir.path)
			}
			return nil
		})
	}

	// 2. Config and storage
	checkStep("Configuration File", func() error {
		if _, err := os.Stat(appVault.ConfigPath); os.IsNotExist(err) {
			return fmt.Errorf("missing at %s (defaults in use)", appVault.ConfigPath)
		}
		return nil
	})

	checkStep("Database Schema", func() error {
		v, err := repository.SchemaVersion(appDB)
		if err != nil {
			return err
		}
		if v != repository.CurrentSchemaVersion {
			return fmt.Errorf("version %d, expected %d", v, repository.CurrentSchemaVersion)
		}
		return nil
	})

	checkStep("Clipboard", func() error {
		if source.NewClipboardSource() == nil {
			return fmt.Errorf("no clipboard utility found (install xclip, xsel or wl-clipboard)")
		}
		return nil
	})

	// 3. Account
	user, err := sessionRepo.CurrentUser(ctx)
	checkStep("Session", func() error {
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("not signed in, run 'tagbox login <name>'")
		}
		return nil
	})
	if err != nil || user == nil {
		return
	}

	checkStep("Default Category", func() error {
		categories, err := categoryRepo.ListCategories(ctx, user.ID)
		if err != nil {
			return err
		}
		defaultID, err := categoryRepo.DefaultCategory(ctx, user.ID)
		if err != nil {
			return err
		}
		if defaultID != "" && domain.FindCategory(categories, defaultID) == nil {
			return fmt.Errorf("points at a deleted category, set a new one with 'tagbox category default'")
		}
		if len(categories) > 1 && defaultID == "" {
			return fmt.Errorf("not set, shared links will always open the form")
		}
		return nil
	})

	fmt.Println()
	fmt.Println(ui.FormatInfo("Checking content integrity..."))

	checkStep("Stored Images", func() error {
		if appConfig.Storage.Backend != config.BackendLocal {
			return nil
		}
		keys, err := contentRepo.BlobKeys(ctx, user.ID)
		if err != nil {
			return err
		}
		var missing []string
		for _, key := range keys {
			if _, err := os.Stat(appVault.GetAssetPath(key)); os.IsNotExist(err) {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			fmt.Println()
			fmt.Print(ui.RenderSimpleList(missing))
			return fmt.Errorf("%d of %d images missing on disk", len(missing), len(keys))
		}
		return nil
	})

	checkStep("Pending Share", func() error {
		share, err := shareStore.TryRead(ctx)
		if err != nil || share == nil {
			return err
		}
		rec, err := attemptRepo.Lookup(ctx, share.ID)
		if err != nil {
			return err
		}
		if rec != nil {
			return fmt.Errorf("share %s was already processed (%s), finish it with 'tagbox ingest' or 'tagbox share clear'", share.ID, rec.State)
		}
		return nil
	})
}

// checkStep runs a check function and prints the result nicely
func checkStep(name string, check func() error) {
	if err := check(); err != nil {
		fmt.Printf("%s %s\n", ui.StyleError.Render(ui.IconError), name)
		fmt.Printf("    %s\n", ui.StyleMuted.Render(err.Error()))
		return
	}
	fmt.Printf("%s %s\n", ui.StyleSuccess.Render(ui.IconSuccess), name)
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamal-hamza/tagbox/internal/adapters/repository"
	"github.com/kamal-hamza/tagbox/pkg/config"
	"github.com/kamal-hamza/tagbox/pkg/ui"
	"github.com/kamal-hamza/tagbox/pkg/vault"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the tagbox library",
	Long: `Initialize the tagbox library directory structure.

This creates the managed library at ~/.local/share/tagbox/ (or $TAGBOX_HOME):
  - share/      : Side-channel files written by the share handler
  - assets/     : Locally stored images
  - inbox/      : Drop folder watched by 'tagbox watch'
  - cache/      : Temporary files and generated reports
  - tagbox.db   : Categories, saved content and attempt history`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	v, err := vault.New()
	if err != nil {
		fmt.Println(ui.FormatError("Failed to determine library location"))
		return err
	}

	if v.Exists() {
		fmt.Println(ui.FormatWarning("Library already initialized"))
		fmt.Println(ui.FormatMuted("Location: " + v.RootPath))
		return nil
	}

	fmt.Println(ui.FormatInbox("Initializing tagbox library..."))
	fmt.Println()

	if err := v.Initialize(); err != nil {
		fmt.Println(ui.FormatError("Failed to initialize library"))
		return err
	}

	db, err := repository.OpenDB(v.DatabasePath())
	if err != nil {
		fmt.Println(ui.FormatError("Failed to create database"))
		return err
	}
	db.Close()
	fmt.Println(ui.FormatSuccess("Database created"))

	// Config is optional; never overwrite an existing one
	if _, err := os.Stat(v.ConfigPath); os.IsNotExist(err) {
		if err := config.DefaultConfig().Save(v.ConfigPath); err != nil {
			fmt.Println(ui.FormatWarning("Failed to create default config: " + err.Error()))
		} else {
			fmt.Println(ui.FormatSuccess("Default config written"))
		}
	}

	fmt.Println(ui.FormatSuccess("Library initialized successfully!"))
	fmt.Println()
	fmt.Println(ui.RenderKeyValue("Location", v.RootPath))
	fmt.Println(ui.RenderKeyValue("Config", v.ConfigPath))
	fmt.Println()
	fmt.Println(ui.FormatInfo("Next steps:"))
	fmt.Println(ui.FormatMuted("  1. Sign in: tagbox login \"Your Name\""))
	fmt.Println(ui.FormatMuted("  2. Create a category: tagbox category add Videos"))
	fmt.Println(ui.FormatMuted("  3. Share something: tagbox share https://youtu.be/..."))
	fmt.Println(ui.FormatMuted("  4. Ingest it: tagbox ingest"))

	return nil
}

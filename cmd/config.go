package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kamal-hamza/tagbox/pkg/ui"
)

var configEdit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit the tagbox configuration",
	Long: `Print the effective configuration, after .env and TAGBOX_* overrides.

Use --edit to open the config file in $VISUAL or $EDITOR.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVarP(&configEdit, "edit", "e", false, "Open the config file in your editor")
}

func runConfig(cmd *cobra.Command, args []string) error {
	path := appVault.ConfigPath

	if configEdit {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := appConfig.Save(path); err != nil {
				return err
			}
		}
		fmt.Println(ui.FormatInfo("Opening config: " + path))
		return EditFile(path)
	}

	effective := *appConfig
	if effective.Storage.SecretKey != "" {
		effective.Storage.SecretKey = "********"
	}
	data, err := yaml.Marshal(&effective)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	fmt.Println(ui.FormatMuted("# " + path))
	fmt.Print(string(data))
	return nil
}

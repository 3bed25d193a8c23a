package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kamal-hamza/tagbox/pkg/ui"
)

var loginCmd = &cobra.Command{
	Use:   "login <name>",
	Short: "Sign in to the local library",
	Long: `Sign in as a named profile. Ingestion saves nothing while signed out.

Signing in again with the same name returns to the same library.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in profile",
	RunE:  runWhoami,
}

func runLogin(cmd *cobra.Command, args []string) error {
	user, err := sessionRepo.Login(getContext(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Println(ui.FormatSuccess("Signed in as " + ui.StyleBold.Render(user.Name)))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	if err := sessionRepo.Logout(getContext()); err != nil {
		return err
	}
	fmt.Println(ui.FormatSuccess("Signed out"))
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	user, err := sessionRepo.CurrentUser(getContext())
	if err != nil {
		return err
	}
	if user == nil {
		fmt.Println(ui.FormatWarning("Not signed in"))
		return nil
	}
	fmt.Println(ui.RenderKeyValue("Name", user.Name))
	fmt.Println(ui.RenderKeyValue("ID", user.ID))
	fmt.Println(ui.RenderKeyValue("Since", user.CreatedAt.Local().Format(appConfig.DisplayDateFormat)))
	return nil
}

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/pkg/ui"
)

var (
	categoryColor       string
	categoryDescription string
	categorySetDefault  bool
	categoryUnset       bool
)

var categoryCmd = &cobra.Command{
	Use:     "category",
	Aliases: []string{"cat"},
	Short:   "Manage categories (alias: cat)",
	Long: `List and create categories, and choose the default one.

Shared links are saved automatically when you have a single category or
a default. With several categories and no default, tagbox asks.`,
	RunE: runCategoryList,
}

var categoryListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List categories",
	Args:    cobra.NoArgs,
	RunE:    runCategoryList,
}

var categoryAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a category",
	Long: `Create a category.

Colors: ` + colorNames() + `

Examples:
  tagbox category add Recipes --color orange-sunset
  tagbox category add "Dev talks" --default`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCategoryAdd,
}

var categoryDefaultCmd = &cobra.Command{
	Use:   "default [name]",
	Short: "Set or show the default category",
	Long: `Set the category shared links are saved to when you have several.

Without a name, pick one interactively. Use --unset to clear it.`,
	RunE: runCategoryDefault,
}

func init() {
	categoryAddCmd.Flags().StringVar(&categoryColor, "color", domain.ColorBlueOcean.String(), "Category color")
	categoryAddCmd.Flags().StringVarP(&categoryDescription, "description", "d", "", "Short description")
	categoryAddCmd.Flags().BoolVar(&categorySetDefault, "default", false, "Make it the default category")
	categoryDefaultCmd.Flags().BoolVar(&categoryUnset, "unset", false, "Clear the default category")

	categoryCmd.AddCommand(categoryListCmd)
	categoryCmd.AddCommand(categoryAddCmd)
	categoryCmd.AddCommand(categoryDefaultCmd)
}

func colorNames() string {
	names := make([]string, len(domain.AllCategoryColors))
	for i, c := range domain.AllCategoryColors {
		names[i] = c.String()
	}
	return strings.Join(names, ", ")
}

func runCategoryList(cmd *cobra.Command, args []string) error {
	ctx := getContext()
	user, err := requireUser(ctx)
	if err != nil {
		return err
	}

	categories, err := categoryRepo.ListCategories(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(categories) == 0 {
		fmt.Println(ui.FormatWarning("No categories yet"))
		fmt.Println(ui.FormatInfo("Create one with: tagbox category add \"Recipes\""))
		return nil
	}
	defaultID, err := categoryRepo.DefaultCategory(ctx, user.ID)
	if err != nil {
		return err
	}

	fmt.Println(ui.FormatTitle(fmt.Sprintf("Categories (%d)", len(categories))))
	fmt.Println()

	table := ui.NewTable([]ui.TableColumn{
		{Header: "Name", Width: domain.MaxCategoryNameLength + 2, Align: "left"},
		{Header: "Color", Width: 14, Align: "left"},
		{Header: "Default", Width: 7, Align: "center"},
		{Header: "Description", Width: 30, Align: "left"},
	})
	for _, c := range categories {
		marker := ""
		if c.ID == defaultID {
			marker = ui.IconSuccess
		}
		table.AddRow([]string{
			ui.FormatSwatch(c.Name, c.Color.TerminalColor()),
			c.Color.String(),
			marker,
			ui.Truncate(c.Description, 30),
		})
	}
	fmt.Print(table.Render())
	fmt.Println()
	return nil
}

func runCategoryAdd(cmd *cobra.Command, args []string) error {
	ctx := getContext()
	name := strings.TrimSpace(strings.Join(args, " "))

	color := domain.ParseCategoryColor(categoryColor)
	if color == domain.ColorFallback {
		return fmt.Errorf("unknown color %q (choose from %s)", categoryColor, colorNames())
	}

	id, err := manualService.CreateCategory(ctx, name, categoryDescription, color)
	if err != nil {
		return err
	}
	fmt.Println(ui.FormatSuccess("Created category " + ui.FormatSwatch(name, color.TerminalColor())))

	if categorySetDefault {
		user, err := requireUser(ctx)
		if err != nil {
			return err
		}
		if err := categoryRepo.SetDefaultCategory(ctx, user.ID, id); err != nil {
			return err
		}
		fmt.Println(ui.FormatInfo("Set as default"))
	}
	return nil
}

func runCategoryDefault(cmd *cobra.Command, args []string) error {
	ctx := getContext()
	user, err := requireUser(ctx)
	if err != nil {
		return err
	}

	if categoryUnset {
		if err := categoryRepo.SetDefaultCategory(ctx, user.ID, ""); err != nil {
			return err
		}
		fmt.Println(ui.FormatSuccess("Default category cleared"))
		return nil
	}

	categories, err := categoryRepo.ListCategories(ctx, user.ID)
	if err != nil {
		return err
	}
	defaultID, err := categoryRepo.DefaultCategory(ctx, user.ID)
	if err != nil {
		return err
	}

	var chosen *domain.Category
	if len(args) > 0 {
		value := strings.TrimSpace(strings.Join(args, " "))
		if chosen = findCategory(categories, value); chosen == nil {
			return fmt.Errorf("category not found: %s", value)
		}
	} else {
		if !isInteractive() {
			if c := domain.FindCategory(categories, defaultID); c != nil {
				fmt.Println(ui.RenderKeyValue("Default", c.Name))
			} else {
				fmt.Println(ui.FormatMuted("No default category"))
			}
			return nil
		}
		chosen, err = pickCategory(categories, defaultID)
		if errors.Is(err, errPickCancelled) {
			return nil
		}
		if err != nil {
			return err
		}
	}

	if err := categoryRepo.SetDefaultCategory(ctx, user.ID, chosen.ID); err != nil {
		return err
	}
	fmt.Println(ui.FormatSuccess("Default category: " + chosen.Name))
	return nil
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/pkg/ui"
)

var (
	listCategory string
	listPlatform string
	listTag      string
	listLimit    int
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List saved containers",
	Aliases: []string{"ls"},
	Long: `List saved links and screenshots, newest first.

Examples:
  tagbox list
  tagbox list --category Recipes
  tagbox list --platform youtube --limit 10
  tagbox list --tag pasta`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listCategory, "category", "c", "", "Only this category (name or ID)")
	listCmd.Flags().StringVarP(&listPlatform, "platform", "p", "", "Only this platform (youtube, tiktok, ...)")
	listCmd.Flags().StringVar(&listTag, "tag", "", "Only containers with this tag")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Show at most n containers")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := getContext()
	user, err := requireUser(ctx)
	if err != nil {
		return err
	}

	categories, err := categoryRepo.ListCategories(ctx, user.ID)
	if err != nil {
		return err
	}
	containers, err := contentRepo.ListContainers(ctx, user.ID)
	if err != nil {
		fmt.Println(ui.FormatError("Failed to list containers"))
		return err
	}

	filter := containerFilter{tag: listTag}
	if listCategory != "" {
		c := findCategory(categories, listCategory)
		if c == nil {
			return fmt.Errorf("category not found: %s", listCategory)
		}
		filter.categoryID = c.ID
	}
	if listPlatform != "" {
		filter.platform = domain.ParsePlatform(listPlatform)
		filter.byPlatform = true
	}
	containers = filter.apply(containers)
	total := len(containers)
	if listLimit > 0 && len(containers) > listLimit {
		containers = containers[:listLimit]
	}

	if total == 0 {
		fmt.Println(ui.FormatWarning("Nothing saved yet"))
		fmt.Println(ui.FormatInfo("Share something with: tagbox share <url>"))
		return nil
	}

	fmt.Println(ui.FormatTitle("Library"))
	fmt.Println()

	table := ui.NewTable([]ui.TableColumn{
		{Header: "Date", Width: 10, Align: "left"},
		{Header: "Category", Width: 12, Align: "left"},
		{Header: "Platform", Width: 9, Align: "left"},
		{Header: "Title", Width: 28, Align: "left"},
		{Header: "Content", Width: 30, Align: "left"},
	})
	table.MaxCellWidth = cellWidth(appConfig.TableWidth, 5)

	for _, c := range containers {
		category := c.CategoryID
		if cat := domain.FindCategory(categories, c.CategoryID); cat != nil {
			category = cat.Name
		}
		platform := ""
		if c.URL != "" {
			platform = c.Platform.DisplayName()
		}
		content, err := containerContent(c)
		if err != nil {
			return err
		}
		table.AddRow([]string{
			c.CreatedAt.Local().Format(appConfig.DisplayDateFormat),
			category,
			platform,
			c.Title,
			content,
		})
	}

	fmt.Print(table.Render())
	fmt.Println()
	if total > len(containers) {
		fmt.Println(ui.FormatMuted(fmt.Sprintf("Showing %d of %d containers", len(containers), total)))
	} else {
		fmt.Println(ui.FormatMuted(fmt.Sprintf("Total: %d containers", total)))
	}
	return nil
}

type containerFilter struct {
	categoryID string
	platform   domain.Platform
	byPlatform bool
	tag        string
}

func (f containerFilter) apply(containers []domain.Container) []domain.Container {
	var out []domain.Container
	for _, c := range containers {
		if f.categoryID != "" && c.CategoryID != f.categoryID {
			continue
		}
		if f.byPlatform && (c.URL == "" || c.Platform != f.platform) {
			continue
		}
		if f.tag != "" && !hasTag(c.Tags, f.tag) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// containerContent shows the link, or the image count for screenshot containers
func containerContent(c domain.Container) (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}
	images, err := contentRepo.ListImages(getContext(), c.ID)
	if err != nil {
		return "", err
	}
	var size int64
	for _, img := range images {
		size += img.SizeBytes
	}
	return fmt.Sprintf("%s %d image(s), %s", ui.IconImage, len(images), ui.FormatBytes(size)), nil
}

// cellWidth splits a configured table width across columns; 0 means no limit
func cellWidth(tableWidth, columns int) int {
	if tableWidth <= 0 || columns <= 0 {
		return 0
	}
	w := (tableWidth - 2*(columns-1)) / columns
	if w < 8 {
		return 8
	}
	return w
}

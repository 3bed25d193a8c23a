package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/spf13/cobra"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/pkg/ui"
)

var (
	statsHTML bool
	statsOpen bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show library statistics",
	Long: `Summarize what you have saved.

Includes:
  - Containers per category and per platform
  - Screenshot count and storage used
  - 7-day activity

With --html an interactive chart page is written to the cache folder.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsHTML, "html", false, "Write an HTML chart page")
	statsCmd.Flags().BoolVar(&statsOpen, "open", false, "Open the HTML page after writing it")
}

// count is a label with a tally, sorted for display
type count struct {
	Label string
	N     int
}

// libraryStats aggregates a user's containers
type libraryStats struct {
	Containers int
	Links      int
	Images     int
	Bytes      int64
	Categories []count
	Platforms  []count
	Activity   map[string]int // "2006-01-02" -> containers
}

func runStats(cmd *cobra.Command, args []string) error {
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
		return err
	}
	snap, err := quotaRepo.QuotaSnapshot(ctx, user.ID)
	if err != nil {
		return err
	}

	stats := collectStats(categories, containers)
	stats.Images = int(snap.CurrentCount)
	stats.Bytes = snap.CurrentBytes

	fmt.Println(ui.FormatTitle("Library Analytics"))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintf(w, "%s\t%d\n", ui.StyleBold.Render("Containers:"), stats.Containers)
	fmt.Fprintf(w, "%s\t%d\n", ui.StyleBold.Render("Links:"), stats.Links)
	fmt.Fprintf(w, "%s\t%d (%s)\n", ui.StyleBold.Render("Screenshots:"), stats.Images, ui.FormatBytes(stats.Bytes))
	w.Flush()
	fmt.Println()

	renderActivity(stats.Activity, time.Now())
	fmt.Println()
	renderCounts("By Category", stats.Categories)
	renderCounts("By Platform", stats.Platforms)

	if !statsHTML {
		return nil
	}

	path := appVault.GetCachePath("stats.html")
	if err := writeStatsPage(path, stats); err != nil {
		return err
	}
	fmt.Println(ui.FormatSuccess("Chart page written: " + path))
	if statsOpen {
		return OpenFile(path)
	}
	return nil
}

func collectStats(categories []domain.Category, containers []domain.Container) libraryStats {
	stats := libraryStats{
		Containers: len(containers),
		Activity:   make(map[string]int),
	}

	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	byCategory := make(map[string]int)
	byPlatform := make(map[string]int)
	for _, c := range containers {
		name, ok := names[c.CategoryID]
		if !ok {
			name = "(deleted)"
		}
		byCategory[name]++
		if c.URL != "" {
			stats.Links++
			byPlatform[c.Platform.DisplayName()]++
		} else {
			byPlatform["Screenshots"]++
		}
		stats.Activity[c.CreatedAt.Local().Format("2006-01-02")]++
	}

	stats.Categories = sortedCounts(byCategory)
	stats.Platforms = sortedCounts(byPlatform)
	return stats
}

func sortedCounts(m map[string]int) []count {
	out := make([]count, 0, len(m))
	for k, v := range m {
		out = append(out, count{Label: k, N: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// renderActivity prints one block per day for the last week
func renderActivity(activity map[string]int, today time.Time) {
	fmt.Println(ui.StyleHeader.Render("Activity (Last 7 Days)"))

	var blocks, labels []string
	for i := 6; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		block := "⬜"
		if activity[day.Format("2006-01-02")] > 0 {
			block = "🟩"
		}
		blocks = append(blocks, block)
		labels = append(labels, fmt.Sprintf("%-4s", day.Format("Mon")))
	}
	fmt.Println(strings.Join(blocks, "  "))
	fmt.Println(ui.StyleMuted.Render(strings.Join(labels, "")))
}

// renderCounts displays a horizontal bar chart
func renderCounts(title string, counts []count) {
	if len(counts) == 0 {
		return
	}
	fmt.Println(ui.StyleHeader.Render(title))

	max := counts[0].N
	for _, c := range counts {
		bar := strings.Repeat("█", c.N*20/max)
		fmt.Printf("  %-20s %s %d\n", ui.Truncate(c.Label, 20), ui.StyleAccent.Render(bar), c.N)
	}
	fmt.Println()
}

// writeStatsPage renders the counts as an echarts page
func writeStatsPage(path string, stats libraryStats) error {
	platforms := charts.NewBar()
	platforms.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
		Title:    "Containers by platform",
		Subtitle: fmt.Sprintf("%d containers", stats.Containers),
	}))
	labels := make([]string, len(stats.Platforms))
	bars := make([]opts.BarData, len(stats.Platforms))
	for i, c := range stats.Platforms {
		labels[i] = c.Label
		bars[i] = opts.BarData{Value: c.N}
	}
	platforms.SetXAxis(labels).AddSeries("Containers", bars)

	categories := charts.NewPie()
	categories.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Containers by category"}))
	slices := make([]opts.PieData, len(stats.Categories))
	for i, c := range stats.Categories {
		slices[i] = opts.PieData{Name: c.Label, Value: c.N}
	}
	categories.AddSeries("Categories", slices)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	page := components.NewPage()
	page.AddCharts(platforms, categories)
	if err := page.Render(f); err != nil {
		return fmt.Errorf("failed to render charts: %w", err)
	}
	return nil
}

package cmd

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/ports/mocks"
	"github.com/kamal-hamza/tagbox/internal/core/services"
)

// TestCommandStructure verifies that all commands are properly registered
func TestCommandStructure(t *testing.T) {
	commands := []string{
		"init", "login", "logout", "whoami", "share", "ingest", "add",
		"category", "list", "quota", "stats", "watch", "config", "doctor", "version",
	}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			cmd, _, err := rootCmd.Find([]string{cmdName})
			if err != nil {
				t.Fatalf("Command '%s' not found: %v", cmdName, err)
			}
			if cmd == nil {
				t.Fatalf("Command '%s' is nil", cmdName)
			}
			if cmd.Use == "" {
				t.Errorf("Command '%s' has no Use field", cmdName)
			}
		})
	}
}

// TestRootCommandExists verifies the root command is properly configured
func TestRootCommandExists(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("Root command is nil")
	}

	if rootCmd.Use != "tagbox" {
		t.Errorf("Expected root command Use to be 'tagbox', got '%s'", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Root command Short description is empty")
	}
}

// TestCommandsHaveHelp verifies all commands have help text
func TestCommandsHaveHelp(t *testing.T) {
	commands := rootCmd.Commands()

	if len(commands) == 0 {
		t.Fatal("No commands registered")
	}

	for _, cmd := range commands {
		t.Run(cmd.Name(), func(t *testing.T) {
			if cmd.Short == "" {
				t.Errorf("Command '%s' has no Short description", cmd.Name())
			}
		})
	}
}

// TestSubcommands verifies specific subcommands exist
func TestSubcommands(t *testing.T) {
	tests := []struct {
		parent     string
		subcommand string
	}{
		{"share", "show"},
		{"share", "clear"},
		{"category", "list"},
		{"category", "add"},
		{"category", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.parent+"_"+tt.subcommand, func(t *testing.T) {
			parentCmd, _, err := rootCmd.Find([]string{tt.parent})
			if err != nil {
				t.Fatalf("Parent command '%s' not found: %v", tt.parent, err)
			}

			found := false
			for _, cmd := range parentCmd.Commands() {
				if cmd.Name() == tt.subcommand {
					found = true
					break
				}
			}

			if !found {
				t.Errorf("Subcommand '%s' not found under '%s'", tt.subcommand, tt.parent)
			}
		})
	}
}

// TestServiceInitialization verifies services can be initialized with mocks
func TestServiceInitialization(t *testing.T) {
	deps := services.IngestorDeps{
		Sources:     services.NewSourceChain(nil),
		Session:     mocks.NewMockSession(&domain.User{ID: "u1"}),
		Categories:  mocks.NewMockCategoryStore(),
		Preferences: mocks.NewMockPreferenceStore(),
		Content:     mocks.NewMockContentStore(),
		Quota:       mocks.NewUnlimitedQuotaSource(),
		Attempts:    mocks.NewMockAttemptTracker(),
	}

	if services.NewIngestor(deps) == nil {
		t.Error("Ingestor is nil")
	}
	if services.NewManualSaveService(deps) == nil {
		t.Error("ManualSaveService is nil")
	}
}

func TestDescribeReason(t *testing.T) {
	reasons := []domain.Reason{
		domain.ReasonSingleCategoryExists,
		domain.ReasonDefaultCategoryMatches,
		domain.ReasonMultipleCategoriesNoDefault,
		domain.ReasonQuotaExceeded,
		domain.ReasonUnsupportedPlatform,
		domain.ReasonAlreadyAttempted,
		domain.ReasonNothingToIngest,
		domain.ReasonAuthenticationRequired,
		domain.ReasonNoCategories,
		domain.ReasonPersistenceFailed,
		domain.ReasonFetchFailed,
		domain.ReasonMaterializationFailed,
		domain.ReasonManualSave,
	}

	for _, r := range reasons {
		got := describeReason(r)
		if got == "" || got == string(r) {
			t.Errorf("describeReason(%s) has no description: %q", r, got)
		}
	}

	if got := describeReason("something_new"); got != "something_new" {
		t.Errorf("unknown reasons should pass through, got %q", got)
	}
}

func TestFindCategory(t *testing.T) {
	categories := []domain.Category{
		{ID: "c1", Name: "Recipes"},
		{ID: "c2", Name: "Music"},
	}

	tests := []struct {
		value string
		want  string
	}{
		{"c2", "c2"},
		{"recipes", "c1"},
		{"MUSIC", "c2"},
		{"nope", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got := findCategory(categories, tt.value)
			if tt.want == "" {
				if got != nil {
					t.Errorf("expected no match, got %s", got.ID)
				}
				return
			}
			if got == nil || got.ID != tt.want {
				t.Errorf("findCategory(%q) = %v, want %s", tt.value, got, tt.want)
			}
		})
	}
}

func TestClassifyInboxFile(t *testing.T) {
	tests := []struct {
		path string
		want inboxKind
	}{
		{"/inbox/shot.PNG", inboxImage},
		{"/inbox/photo.jpeg", inboxImage},
		{"/inbox/link.url", inboxText},
		{"/inbox/link.webloc", inboxText},
		{"/inbox/note.txt", inboxText},
		{"/inbox/.DS_Store", inboxIgnore},
		{"/inbox/~lock.png", inboxIgnore},
		{"/inbox/report.pdf", inboxIgnore},
		{"/inbox/processed", inboxIgnore},
	}

	for _, tt := range tests {
		if got := classifyInboxFile(tt.path); got != tt.want {
			t.Errorf("classifyInboxFile(%s) = %d, want %d", tt.path, got, tt.want)
		}
	}
}

func TestHeldShare(t *testing.T) {
	ctx := context.Background()

	empty := mocks.NewMockSource(domain.SourceShareIntent, nil)
	if got := heldShare(ctx, empty); got != nil {
		t.Errorf("empty slot should not hold a share, got %+v", got)
	}

	deferred := &domain.PendingShare{ID: "s-1", RawKind: domain.RawText, RawValue: "https://vimeo.com/1"}
	slot := mocks.NewMockSource(domain.SourceShareIntent, deferred)
	got := heldShare(ctx, slot)
	if got == nil || got.ID != "s-1" {
		t.Fatalf("heldShare() = %+v, want the deferred share", got)
	}

	if err := slot.Clear(ctx, deferred); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if got := heldShare(ctx, slot); got != nil {
		t.Errorf("cleared slot should accept new files, got %+v", got)
	}
}

func TestShortcutText(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"windows shortcut", "[InternetShortcut]\r\nURL=https://youtu.be/abcdefghijk\r\n", "https://youtu.be/abcdefghijk"},
		{"webloc", "<dict>\n\t<key>URL</key>\n\t<string>https://loom.com/share/abc</string>\n</dict>", "https://loom.com/share/abc"},
		{"plain text", "  watch this https://youtu.be/x \n", "watch this https://youtu.be/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shortcutText([]byte(tt.data)); got != tt.want {
				t.Errorf("shortcutText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCellWidth(t *testing.T) {
	if got := cellWidth(0, 5); got != 0 {
		t.Errorf("expected no limit, got %d", got)
	}
	if got := cellWidth(108, 5); got != 20 {
		t.Errorf("expected 20, got %d", got)
	}
	if got := cellWidth(20, 5); got != 8 {
		t.Errorf("expected floor of 8, got %d", got)
	}
}

func TestContainerFilter(t *testing.T) {
	containers := []domain.Container{
		{ID: "1", CategoryID: "c1", URL: "https://www.youtube.com/watch?v=abcdefg", Platform: domain.PlatformYouTube, Tags: []string{"Music"}},
		{ID: "2", CategoryID: "c2", URL: "https://www.tiktok.com/@a/video/1", Platform: domain.PlatformTikTok},
		{ID: "3", CategoryID: "c1"},
	}

	ids := func(cs []domain.Container) string {
		var out []string
		for _, c := range cs {
			out = append(out, c.ID)
		}
		return strings.Join(out, ",")
	}

	tests := []struct {
		name   string
		filter containerFilter
		want   string
	}{
		{"none", containerFilter{}, "1,2,3"},
		{"category", containerFilter{categoryID: "c1"}, "1,3"},
		{"platform", containerFilter{platform: domain.PlatformTikTok, byPlatform: true}, "2"},
		{"unknown platform skips screenshots", containerFilter{platform: domain.PlatformUnknown, byPlatform: true}, ""},
		{"tag ignores case", containerFilter{tag: "music"}, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ids(tt.filter.apply(containers)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCollectStats(t *testing.T) {
	now := time.Now()
	categories := []domain.Category{{ID: "c1", Name: "Videos"}, {ID: "c2", Name: "Shots"}}
	containers := []domain.Container{
		{CategoryID: "c1", URL: "https://www.youtube.com/watch?v=abcdefg", Platform: domain.PlatformYouTube, CreatedAt: now},
		{CategoryID: "c1", URL: "https://www.youtube.com/watch?v=hijklmn", Platform: domain.PlatformYouTube, CreatedAt: now},
		{CategoryID: "c2", CreatedAt: now.AddDate(0, 0, -1)},
		{CategoryID: "gone", URL: "https://www.loom.com/share/x", Platform: domain.PlatformLoom, CreatedAt: now},
	}

	stats := collectStats(categories, containers)

	if stats.Containers != 4 || stats.Links != 3 {
		t.Errorf("expected 4 containers and 3 links, got %d and %d", stats.Containers, stats.Links)
	}
	if stats.Categories[0].Label != "Videos" || stats.Categories[0].N != 2 {
		t.Errorf("expected Videos first with 2, got %+v", stats.Categories[0])
	}
	if stats.Platforms[0].Label != "YouTube" || stats.Platforms[0].N != 2 {
		t.Errorf("expected YouTube first with 2, got %+v", stats.Platforms[0])
	}

	foundDeleted := false
	for _, c := range stats.Categories {
		if c.Label == "(deleted)" {
			foundDeleted = true
		}
	}
	if !foundDeleted {
		t.Error("containers in unknown categories should be counted as deleted")
	}
	if stats.Activity[now.Local().Format("2006-01-02")] != 3 {
		t.Errorf("expected 3 containers today, got %d", stats.Activity[now.Local().Format("2006-01-02")])
	}
}

func TestSortedCountsTieBreak(t *testing.T) {
	got := sortedCounts(map[string]int{"b": 1, "a": 1, "c": 2})
	want := []string{"c", "a", "b"}
	for i, c := range got {
		if c.Label != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, c.Label, want[i])
		}
	}
}

package cmd

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/ports"
	"github.com/kamal-hamza/tagbox/internal/core/services"
	"github.com/kamal-hamza/tagbox/pkg/ui"
)

var (
	watchNoIngest bool
	watchQuiet    bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Ingest files dropped into the inbox folder",
	Long: `Watch the inbox folder and treat every new file as a share.

  - Images are staged through the side-channel, like a shared screenshot
  - .url and .webloc shortcuts, and .txt files, are staged as text

Each staged file is ingested right away unless --no-ingest is set.
Saved files move to the inbox's processed/ folder; files that need
your input stay where they are until you finish them with 'tagbox ingest'.
While a share is pending, newer files wait in the inbox.

Files already in the inbox are picked up on start.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchNoIngest, "no-ingest", false, "Only stage files, do not ingest them")
	watchCmd.Flags().BoolVarP(&watchQuiet, "quiet", "q", false, "Only print failures")
}

// inboxKind is how a dropped file is staged
type inboxKind int

const (
	inboxIgnore inboxKind = iota
	inboxImage
	inboxText
)

var inboxImageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".heic": true, ".heif": true, ".bmp": true,
}

// classifyInboxFile decides how a file in the inbox is handled by name alone
func classifyInboxFile(path string) inboxKind {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") {
		return inboxIgnore
	}
	ext := strings.ToLower(filepath.Ext(base))
	switch {
	case inboxImageExts[ext]:
		return inboxImage
	case ext == ".url" || ext == ".webloc" || ext == ".txt":
		return inboxText
	default:
		return inboxIgnore
	}
}

// shortcutText extracts the link from a .url or .webloc shortcut; other
// text is returned trimmed
func shortcutText(data []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if v, ok := strings.CutPrefix(line, "URL="); ok {
			return strings.TrimSpace(v)
		}
		if v, ok := strings.CutPrefix(line, "<string>"); ok {
			if v, ok = strings.CutSuffix(v, "</string>"); ok {
				return strings.TrimSpace(v)
			}
		}
	}
	return strings.TrimSpace(string(data))
}

func inboxDir() string {
	if appConfig.InboxDir != "" {
		return appConfig.InboxDir
	}
	return appVault.InboxPath
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := getContext()
	dir := inboxDir()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create inbox: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch inbox: %w", err)
	}

	if !watchQuiet {
		fmt.Println(ui.FormatInbox("Watching inbox..."))
		fmt.Println(ui.FormatMuted("Folder: " + dir))
		fmt.Println(ui.FormatMuted("Press Ctrl+C to stop"))
		fmt.Println()
	}

	// Files are collected until writes settle, then processed on this goroutine
	pending := make(map[string]struct{})
	fire := make(chan struct{}, 1)
	debounce := time.Duration(appConfig.WatchDebounceMS) * time.Millisecond
	var timer *time.Timer
	schedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			select {
			case fire <- struct{}{}:
			default:
			}
		})
	}

	var waiting bool
	retry := func() {
		time.AfterFunc(watchRetryInterval, func() {
			select {
			case fire <- struct{}{}:
			default:
			}
		})
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read inbox: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && classifyInboxFile(e.Name()) != inboxIgnore {
			pending[filepath.Join(dir, e.Name())] = struct{}{}
		}
	}
	if len(pending) > 0 {
		schedule()
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if classifyInboxFile(event.Name) == inboxIgnore {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				pending[event.Name] = struct{}{}
				schedule()
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				delete(pending, event.Name)
			}

		case <-fire:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			for i, p := range paths {
				if ctx.Err() != nil {
					break
				}
				// The share slot holds one share; a deferred one stays until finished
				if held := heldShare(ctx, shareStore); held != nil {
					for _, rest := range paths[i:] {
						pending[rest] = struct{}{}
					}
					if !waiting && !watchQuiet {
						fmt.Println(ui.FormatWarning(fmt.Sprintf("%d file(s) waiting: a share is still pending (%s)", len(paths)-i, held.Preview(40))))
						fmt.Println(ui.FormatMuted("Finish it with 'tagbox ingest' or drop it with 'tagbox share clear'"))
					}
					waiting = true
					retry()
					break
				}
				waiting = false
				processInboxFile(p)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			appLog.Warn(ctx, "watcher error", "error", err)

		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			if !watchQuiet {
				fmt.Println()
				fmt.Println(ui.FormatMuted("Watch stopped"))
			}
			return nil
		}
	}
}

// watchRetryInterval is how often held inbox files are retried
const watchRetryInterval = 5 * time.Second

// heldShare returns the share occupying the slot, or nil when a new file may be staged
func heldShare(ctx context.Context, slot ports.PayloadSource) *domain.PendingShare {
	share, err := slot.TryRead(ctx)
	if err != nil {
		appLog.Warn(ctx, "could not read share slot", "error", err)
		return nil
	}
	return share
}

// processInboxFile stages one file and, unless disabled, ingests it
func processInboxFile(path string) {
	ctx := getContext()
	name := filepath.Base(path)

	if _, err := os.Stat(path); err != nil {
		return
	}

	var err error
	switch classifyInboxFile(path) {
	case inboxImage:
		_, err = stageImageFile(path, "")
	case inboxText:
		err = stageTextFile(path)
	default:
		return
	}
	if err != nil {
		fmt.Println(ui.FormatError(fmt.Sprintf("%s: %v", name, err)))
		return
	}

	if watchNoIngest {
		if !watchQuiet {
			fmt.Println(ui.FormatInbox("Staged " + name))
		}
		return
	}

	out, err := services.NewIngestor(pipelineDeps()).Run(ctx, services.RunOptions{})
	if err != nil {
		return
	}
	if !watchQuiet || out.State() == domain.StateFailed {
		fmt.Println(ui.FormatBold(name))
		renderOutcome(out, false)
	}
	if out.Saved() {
		if err := moveProcessed(path); err != nil {
			appLog.Warn(ctx, "could not move processed file", "path", path, "error", err)
		}
	}
}

func stageTextFile(path string) error {
	ctx := getContext()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read: %w", err)
	}
	text := shortcutText(data)
	if text == "" {
		return fmt.Errorf("file is empty")
	}
	if err := sideChannel.Clear(ctx); err != nil {
		return err
	}
	_, err = shareStore.Stage(ctx, domain.RawText, text, "")
	return err
}

// moveProcessed moves a saved file into the processed/ subfolder
func moveProcessed(path string) error {
	dir := filepath.Join(filepath.Dir(path), "processed")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.Rename(path, filepath.Join(dir, filepath.Base(path)))
}

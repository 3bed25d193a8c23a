package cmd

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/services"
	"github.com/kamal-hamza/tagbox/pkg/ui"
)

var (
	shareImagePath string
	shareCategory  string
)

var shareCmd = &cobra.Command{
	Use:   "share [url or text]",
	Short: "Stage a link, text or image as a pending share",
	Long: `Stage a payload the way an OS share sheet would hand it over.

Text and links are stored as the pending share. Images are written to the
side-channel store and the share carries only the IMAGE_SHARED marker.
Staging replaces any share that is still pending.

Examples:
  tagbox share https://youtu.be/dQw4w9WgXcQ
  tagbox share "look at this https://www.tiktok.com/@user/video/123"
  tagbox share --image ~/Desktop/screenshot.png`,
	RunE: runShare,
}

var shareShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the pending share",
	Args:  cobra.NoArgs,
	RunE:  runShareShow,
}

var shareClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard the pending share and its side-channel image",
	Args:  cobra.NoArgs,
	RunE:  runShareClear,
}

func init() {
	shareCmd.Flags().StringVarP(&shareImagePath, "image", "i", "", "Share an image file")
	shareCmd.Flags().StringVarP(&shareCategory, "category", "c", "", "Category to preselect in the form (name or ID)")
	shareCmd.AddCommand(shareShowCmd)
	shareCmd.AddCommand(shareClearCmd)
}

func runShare(cmd *cobra.Command, args []string) error {
	ctx := getContext()
	hint := resolveCategoryHint(shareCategory)

	if shareImagePath != "" {
		share, err := stageImageFile(shareImagePath, hint)
		if err != nil {
			return err
		}
		fmt.Println(ui.FormatInbox("Image staged: " + filepath.Base(shareImagePath)))
		fmt.Println(ui.FormatMuted("Share ID: " + share.ID))
		return nil
	}

	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return fmt.Errorf("nothing to share: pass a URL or text, or --image <file>")
	}

	// A text share must not pick up a stale image
	if err := sideChannel.Clear(ctx); err != nil {
		return err
	}
	share, err := shareStore.Stage(ctx, domain.RawText, text, hint)
	if err != nil {
		return err
	}

	fmt.Println(ui.FormatInbox("Share staged: " + share.Preview(60)))
	fmt.Println(ui.FormatMuted("Run 'tagbox ingest' to save it"))
	return nil
}

// stageImageFile writes an image to the side-channel and stages the marker share
func stageImageFile(path, hint string) (*domain.PendingShare, error) {
	ctx := getContext()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image file is empty: %s", path)
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	if len(encoded) > appConfig.MaxShareBase64Bytes() {
		return nil, fmt.Errorf("image is too large to share (%s)", ui.FormatBytes(int64(len(data))))
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%s does not look like an image (%s)", path, mimeType)
	}

	if err := sideChannel.Clear(ctx); err != nil {
		return nil, err
	}
	values := map[string]string{
		domain.SideChannelFileName: filepath.Base(path),
		domain.SideChannelMimeType: mimeType,
		domain.SideChannelBase64:   encoded,
	}
	for key, value := range values {
		if err := sideChannel.Put(ctx, key, value); err != nil {
			return nil, err
		}
	}

	return shareStore.Stage(ctx, domain.RawImageMarker, domain.ImageSharedMarker, hint)
}

func runShareShow(cmd *cobra.Command, args []string) error {
	ctx := getContext()

	share, err := shareStore.TryRead(ctx)
	if err != nil {
		return err
	}
	if share == nil {
		fmt.Println(ui.FormatMuted("No pending share"))
		return nil
	}

	fmt.Println(ui.StyleHeader.Render("Pending share"))
	fmt.Println(ui.RenderKeyValue("ID", share.ID))
	fmt.Println(ui.RenderKeyValue("Kind", string(share.RawKind)))
	fmt.Println(ui.RenderKeyValue("Captured", share.CapturedAt.Local().Format(appConfig.DisplayDateFormat+" 15:04")))
	if share.IsImage() {
		name, _, _ := sideChannel.Get(ctx, domain.SideChannelFileName)
		mimeType, _, _ := sideChannel.Get(ctx, domain.SideChannelMimeType)
		fmt.Println(ui.RenderKeyValue("Image", fmt.Sprintf("%s (%s)", name, mimeType)))
	} else {
		fmt.Println(ui.RenderKeyValue("Value", share.Preview(80)))
	}
	if share.CategoryHint != "" {
		fmt.Println(ui.RenderKeyValue("Category hint", share.CategoryHint))
	}

	rec, err := attemptRepo.Lookup(ctx, share.ID)
	if err != nil {
		return err
	}
	if rec != nil {
		status := string(rec.State)
		if rec.Reason != "" {
			status += " (" + describeReason(rec.Reason) + ")"
		}
		fmt.Println(ui.RenderKeyValue("Last attempt", status))
	}
	return nil
}

func runShareClear(cmd *cobra.Command, args []string) error {
	ingestor := services.NewIngestor(pipelineDeps())
	share, err := ingestor.ClearPending(getContext())
	if err != nil {
		return err
	}
	if share == nil {
		fmt.Println(ui.FormatMuted("No pending share"))
		return nil
	}
	fmt.Println(ui.FormatSuccess("Discarded pending share " + share.ID))
	return nil
}

// resolveCategoryHint maps a category name to its ID when signed in.
// Unknown values are kept; the form ignores hints that match nothing.
func resolveCategoryHint(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	ctx := getContext()
	user, err := sessionRepo.CurrentUser(ctx)
	if err != nil || user == nil {
		return value
	}
	categories, err := categoryRepo.ListCategories(ctx, user.ID)
	if err != nil {
		return value
	}
	if c := findCategory(categories, value); c != nil {
		return c.ID
	}
	return value
}

// findCategory matches by ID first, then by name ignoring case
func findCategory(categories []domain.Category, value string) *domain.Category {
	if c := domain.FindCategory(categories, value); c != nil {
		return c
	}
	for i := range categories {
		if strings.EqualFold(categories[i].Name, value) {
			return &categories[i]
		}
	}
	return nil
}

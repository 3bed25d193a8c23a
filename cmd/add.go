package cmd

import (
	"encoding/base64"
	"errors"
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
	addCategory string
	addTitle    string
	addNote     string
	addTags     string
	addImage    string
)

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Save a link or image directly",
	Long: `Save a link or an image without staging a share first.

Links go through the same normalization as shared links. Images may be a
local file or an http(s) URL; they are compressed under the upload limit.
Without --category you pick one interactively, unless a default is set.

Examples:
  tagbox add https://youtu.be/dQw4w9WgXcQ --category Music
  tagbox add --image ~/Desktop/receipt.png --note "March rent"
  tagbox add https://www.tiktok.com/@chef/video/123 --tags "pasta, quick"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addCategory, "category", "c", "", "Category name or ID")
	addCmd.Flags().StringVarP(&addTitle, "title", "t", "", "Container title")
	addCmd.Flags().StringVarP(&addNote, "note", "n", "", "Note to attach")
	addCmd.Flags().StringVar(&addTags, "tags", "", "Comma separated tags")
	addCmd.Flags().StringVarP(&addImage, "image", "i", "", "Image file or URL")
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := getContext()

	var link string
	if len(args) > 0 {
		link = strings.TrimSpace(args[0])
	}
	if link == "" && addImage == "" {
		return fmt.Errorf("pass a URL or --image <file>")
	}

	user, err := requireUser(ctx)
	if err != nil {
		return err
	}
	categories, err := categoryRepo.ListCategories(ctx, user.ID)
	if err != nil {
		return err
	}
	category, err := chooseCategory(categories, addCategory, user.ID)
	if err != nil {
		if errors.Is(err, errPickCancelled) {
			fmt.Println(ui.FormatMuted("Nothing saved"))
			return nil
		}
		return err
	}

	entry := services.ManualEntry{
		CategoryID: category.ID,
		Title:      addTitle,
		URL:        link,
		Note:       addNote,
		Tags:       domain.ParseTags(addTags),
	}
	if addImage != "" {
		img, err := loadImage(addImage)
		if err != nil {
			return err
		}
		entry.Image = img
	}

	res, err := manualService.Save(ctx, entry)
	if err != nil {
		return err
	}

	what := "Image"
	if link != "" {
		what = res.Platform.DisplayName() + " link"
	}
	fmt.Println(ui.FormatSuccess(fmt.Sprintf("%s saved to %s", what, category.Name)))
	for _, img := range res.Images {
		fmt.Println(ui.RenderKeyValue("  Stored", fmt.Sprintf("%s (%s)", firstURL(img.URLs), ui.FormatBytes(img.SizeBytes))))
	}
	fmt.Println(ui.FormatMuted("Container: " + res.ContainerID))
	return nil
}

// chooseCategory resolves --category, falls back to the default, then asks
func chooseCategory(categories []domain.Category, value, userID string) (*domain.Category, error) {
	if value != "" {
		if c := findCategory(categories, value); c != nil {
			return c, nil
		}
		return nil, fmt.Errorf("category not found: %s", value)
	}

	defaultID, err := categoryRepo.DefaultCategory(getContext(), userID)
	if err != nil {
		return nil, err
	}
	if c := domain.FindCategory(categories, defaultID); c != nil {
		return c, nil
	}
	if len(categories) > 1 && !isInteractive() {
		return nil, fmt.Errorf("several categories exist, pass --category")
	}
	return pickCategory(categories, defaultID)
}

// loadImage materializes a local file or an http(s) URL
func loadImage(value string) (*domain.NormalizedImage, error) {
	ctx := getContext()

	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return materializer.Materialize(ctx, domain.ImageRef{Kind: domain.ImageRefRemoteURL, Value: value})
	}

	data, err := os.ReadFile(value)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%s does not look like an image (%s)", value, mimeType)
	}
	uri := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	img, err := materializer.Materialize(ctx, domain.ImageRef{Kind: domain.ImageRefDataURI, Value: uri})
	if err != nil {
		return nil, err
	}
	img.FileName = domain.FileNameForMIME(filepath.Base(value), img.MIMEType)
	return img, nil
}

func firstURL(urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}

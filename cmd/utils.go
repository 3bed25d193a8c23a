package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	fuzzyfinder "github.com/ktr0731/go-fuzzyfinder"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
)

// errPickCancelled is returned when the user closes the picker
var errPickCancelled = errors.New("cancelled")

// GetPreferredEditor returns the editor command from env, or default
func GetPreferredEditor() string {
	if env := os.Getenv("VISUAL"); env != "" {
		return env
	}
	if env := os.Getenv("EDITOR"); env != "" {
		return env
	}
	return "vi"
}

// OpenFile opens a file or URL with the OS default application.
func OpenFile(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}

	// Start() detaches so tagbox can exit while the viewer stays open
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open '%s': %w", path, err)
	}
	return nil
}

// EditFile runs the preferred editor on path in the foreground
func EditFile(path string) error {
	fields := strings.Fields(GetPreferredEditor())
	c := exec.Command(fields[0], append(fields[1:], path)...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

// pickCategory lets the user fuzzy-search their categories
func pickCategory(categories []domain.Category, defaultID string) (*domain.Category, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("no categories yet, create one with 'tagbox category add <name>'")
	}
	if len(categories) == 1 {
		return &categories[0], nil
	}

	idx, err := fuzzyfinder.Find(
		categories,
		func(i int) string {
			return categories[i].Name
		},
		fuzzyfinder.WithPromptString("category> "),
		fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i == -1 {
				return ""
			}
			return categoryPreview(categories[i], defaultID)
		}),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return nil, errPickCancelled
		}
		return nil, err
	}
	return &categories[idx], nil
}

func categoryPreview(c domain.Category, defaultID string) string {
	var s strings.Builder
	s.WriteString(fmt.Sprintf("Name:    %s\n", c.Name))
	s.WriteString(fmt.Sprintf("Color:   %s\n", c.Color))
	s.WriteString(fmt.Sprintf("Created: %s\n", c.CreatedAt.Format("Jan 02, 2006")))
	if c.ID == defaultID {
		s.WriteString("Default: yes\n")
	}
	if c.Description != "" {
		s.WriteString("\n" + c.Description + "\n")
	}
	return s.String()
}

package domain

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MaxCategoryNameLength matches the category form limit
	MaxCategoryNameLength = 19

	// MaxNoteLength bounds the free-text note attached to a container
	MaxNoteLength = 500
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)
	slugDashes       = regexp.MustCompile(`-+`)
)

// GenerateSlug creates a file-name friendly slug
// Converts "Screen Shot 2024.PNG" -> "screen-shot-2024-png"
func GenerateSlug(title string) string {
	slug := strings.ToLower(title)
	slug = slugInvalidChars.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	return slugDashes.ReplaceAllString(slug, "-")
}

// ValidateCategoryName checks if a category name is valid
func ValidateCategoryName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("category name is required")
	}
	if len([]rune(name)) > MaxCategoryNameLength {
		return fmt.Errorf("category name must be less than %d characters", MaxCategoryNameLength+1)
	}
	return nil
}

// ValidateNote checks the optional note text
func ValidateNote(note string) error {
	if len([]rune(note)) > MaxNoteLength {
		return fmt.Errorf("note too long (max %d characters)", MaxNoteLength)
	}
	return nil
}

// ParseTags splits a comma separated tag list, dropping blanks
func ParseTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

package domain

import (
	"strings"
	"time"
)

// CategoryColor is the closed set of category gradients. ColorFallback covers
// anything unknown read back from storage.
type CategoryColor int

const (
	ColorFallback CategoryColor = iota
	ColorBlueOcean
	ColorLimeForest
	ColorGreenEmerald
	ColorTealNavy
	ColorPurpleCosmic
	ColorCyanAzure
	ColorLimeVibrant
	ColorRedFire
	ColorOrangeSunset
)

// AllCategoryColors lists the selectable colors in display order
var AllCategoryColors = []CategoryColor{
	ColorBlueOcean,
	ColorLimeForest,
	ColorGreenEmerald,
	ColorTealNavy,
	ColorPurpleCosmic,
	ColorCyanAzure,
	ColorLimeVibrant,
	ColorRedFire,
	ColorOrangeSunset,
}

// String returns the storage key for the color
func (c CategoryColor) String() string {
	switch c {
	case ColorBlueOcean:
		return "blue-ocean"
	case ColorLimeForest:
		return "lime-forest"
	case ColorGreenEmerald:
		return "green-emerald"
	case ColorTealNavy:
		return "teal-navy"
	case ColorPurpleCosmic:
		return "purple-cosmic"
	case ColorCyanAzure:
		return "cyan-azure"
	case ColorLimeVibrant:
		return "lime-vibrant"
	case ColorRedFire:
		return "red-fire"
	case ColorOrangeSunset:
		return "orange-sunset"
	default:
		return "default"
	}
}

// TerminalColor maps the gradient to an ANSI 256 color for the CLI
func (c CategoryColor) TerminalColor() string {
	switch c {
	case ColorBlueOcean:
		return "33"
	case ColorLimeForest:
		return "106"
	case ColorGreenEmerald:
		return "35"
	case ColorTealNavy:
		return "30"
	case ColorPurpleCosmic:
		return "99"
	case ColorCyanAzure:
		return "45"
	case ColorLimeVibrant:
		return "154"
	case ColorRedFire:
		return "196"
	case ColorOrangeSunset:
		return "208"
	default:
		return "8"
	}
}

// ParseCategoryColor maps a storage key back to a color
func ParseCategoryColor(s string) CategoryColor {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range AllCategoryColors {
		if c.String() == s {
			return c
		}
	}
	return ColorFallback
}

// Category is a user's content category
type Category struct {
	ID          string
	Name        string
	Description string
	Color       CategoryColor
	CreatedAt   time.Time
}

// FindCategory returns the category with the given ID, or nil
func FindCategory(categories []Category, id string) *Category {
	if id == "" {
		return nil
	}
	for i := range categories {
		if categories[i].ID == id {
			return &categories[i]
		}
	}
	return nil
}

// ContainerMeta describes a container to be created
type ContainerMeta struct {
	Title    string
	URL      string
	Platform Platform
	Note     string
	Tags     []string
}

// Container is the persisted unit an ingested payload is attached to
type Container struct {
	ID         string
	UserID     string
	CategoryID string
	Title      string
	URL        string
	Platform   Platform
	Note       string
	Tags       []string
	CreatedAt  time.Time
}

// StoredImage is an uploaded image as reported back by persistence
type StoredImage struct {
	ID          string
	ContainerID string
	URLs        []string
	SizeBytes   int64
}

// ScreenshotContainerTitle is the title given to containers created for image shares
func ScreenshotContainerTitle(now time.Time) string {
	return "Screenshots - " + now.Format("Jan 2, 2006")
}

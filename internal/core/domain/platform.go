package domain

// Platform is a known content platform. PlatformUnknown is the fallback variant.
type Platform int

const (
	PlatformUnknown Platform = iota
	PlatformYouTube
	PlatformInstagram
	PlatformTikTok
	PlatformSnapchat
	PlatformLoom
)

// AllPlatforms lists every known platform except the fallback
var AllPlatforms = []Platform{
	PlatformYouTube,
	PlatformInstagram,
	PlatformTikTok,
	PlatformSnapchat,
	PlatformLoom,
}

// String returns the stable identifier used in storage
func (p Platform) String() string {
	switch p {
	case PlatformYouTube:
		return "youtube"
	case PlatformInstagram:
		return "instagram"
	case PlatformTikTok:
		return "tiktok"
	case PlatformSnapchat:
		return "snapchat"
	case PlatformLoom:
		return "loom"
	default:
		return "unknown"
	}
}

// DisplayName returns the human-facing platform name
func (p Platform) DisplayName() string {
	switch p {
	case PlatformYouTube:
		return "YouTube"
	case PlatformInstagram:
		return "Instagram"
	case PlatformTikTok:
		return "TikTok"
	case PlatformSnapchat:
		return "Snapchat"
	case PlatformLoom:
		return "Loom"
	default:
		return "Video"
	}
}

// AutoProcessable reports whether URLs on this platform may be saved without user input
func (p Platform) AutoProcessable() bool {
	switch p {
	case PlatformYouTube, PlatformInstagram, PlatformTikTok, PlatformSnapchat, PlatformLoom:
		return true
	default:
		return false
	}
}

// ParsePlatform is the inverse of String. Unknown strings map to PlatformUnknown.
func ParsePlatform(s string) Platform {
	for _, p := range AllPlatforms {
		if p.String() == s {
			return p
		}
	}
	return PlatformUnknown
}

// DefaultTitle is the container title used when nothing better is known
func (p Platform) DefaultTitle() string {
	return p.DisplayName() + " Video"
}

// UnsupportedPlatformMessage lists the platforms that can be saved automatically
func UnsupportedPlatformMessage() string {
	return "This link can't be saved automatically. Supported platforms: YouTube, Instagram, TikTok, Snapchat, Loom."
}

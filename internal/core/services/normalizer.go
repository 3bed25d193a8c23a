package services

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
)

// CanonicalURL is a normalized URL plus what was learned while normalizing it
type CanonicalURL struct {
	URL      string
	Platform domain.Platform
	VideoID  string
}

// platformHosts maps registrable hosts to platforms. A host matches an entry
// when it equals it or is a subdomain of it.
var platformHosts = []struct {
	host     string
	platform domain.Platform
}{
	{"youtube.com", domain.PlatformYouTube},
	{"youtu.be", domain.PlatformYouTube},
	{"instagram.com", domain.PlatformInstagram},
	{"tiktok.com", domain.PlatformTikTok},
	{"snapchat.com", domain.PlatformSnapchat},
	{"loom.com", domain.PlatformLoom},
}

// canonicalHosts is the host used when rebuilding path-based platform URLs
var canonicalHosts = map[domain.Platform]string{
	domain.PlatformInstagram: "www.instagram.com",
	domain.PlatformTikTok:    "www.tiktok.com",
	domain.PlatformSnapchat:  "www.snapchat.com",
	domain.PlatformLoom:      "www.loom.com",
}

var trackingParams = map[string]bool{
	"si":     true,
	"igshid": true,
	"fbclid": true,
	"gclid":  true,
}

var (
	youtubeIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{6,}$`)
	tiktokVideoPattern = regexp.MustCompile(`/video/(\d+)`)
	instagramIDPattern = regexp.MustCompile(`/(?:p|reel|reels|tv)/([^/]+)`)
	snapSpotPattern    = regexp.MustCompile(`/spotlight/([A-Za-z0-9_-]+)`)
	loomSharePattern   = regexp.MustCompile(`/(?:share|embed)/([A-Za-z0-9_-]+)`)
)

// DetectPlatform returns the platform for a URL, or PlatformUnknown.
// Only http(s) URLs are considered.
func DetectPlatform(raw string) domain.Platform {
	u, err := parseHTTPURL(raw)
	if err != nil {
		return domain.PlatformUnknown
	}
	return platformForHost(u.Hostname())
}

func platformForHost(host string) domain.Platform {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, e := range platformHosts {
		if host == e.host || strings.HasSuffix(host, "."+e.host) {
			return e.platform
		}
	}
	return domain.PlatformUnknown
}

// IsAutoProcessable reports whether a URL may be saved without user input
func IsAutoProcessable(raw string) bool {
	return DetectPlatform(raw).AutoProcessable()
}

// Normalize canonicalizes a URL. It is deterministic and idempotent:
// Normalize(Normalize(u).URL) yields the same URL.
func Normalize(raw string) (CanonicalURL, error) {
	u, err := parseHTTPURL(raw)
	if err != nil {
		return CanonicalURL{}, err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	platform := platformForHost(u.Hostname())
	switch platform {
	case domain.PlatformYouTube:
		if c, ok := normalizeYouTube(u); ok {
			return c, nil
		}
	case domain.PlatformSnapchat:
		if strings.HasPrefix(u.Path, "/t/") {
			// Shortlinks only resolve with their original form
			return CanonicalURL{
				URL:      strings.TrimSpace(raw),
				Platform: platform,
				VideoID:  pathSegment(u.Path, 1),
			}, nil
		}
		return rebuildPathURL(u, platform, snapSpotPattern), nil
	case domain.PlatformTikTok:
		return rebuildPathURL(u, platform, tiktokVideoPattern), nil
	case domain.PlatformInstagram:
		return rebuildPathURL(u, platform, instagramIDPattern), nil
	case domain.PlatformLoom:
		return rebuildPathURL(u, platform, loomSharePattern), nil
	}

	stripTracking(u)
	return CanonicalURL{URL: u.String(), Platform: platform}, nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("url has no host")
	}
	return u, nil
}

func normalizeYouTube(u *url.URL) (CanonicalURL, bool) {
	q := u.Query()
	host := u.Hostname()

	var id string
	switch {
	case host == "youtu.be" || strings.HasSuffix(host, ".youtu.be"):
		id = pathSegment(u.Path, 0)
	case q.Get("v") != "":
		id = q.Get("v")
	default:
		for _, prefix := range []string{"embed", "v", "shorts", "live"} {
			if pathSegment(u.Path, 0) == prefix {
				id = pathSegment(u.Path, 1)
				break
			}
		}
	}

	if !youtubeIDPattern.MatchString(id) {
		return CanonicalURL{}, false
	}

	canonical := "https://www.youtube.com/watch?v=" + id
	if t := q.Get("t"); t != "" {
		canonical += "&t=" + url.QueryEscape(t)
	}
	return CanonicalURL{URL: canonical, Platform: domain.PlatformYouTube, VideoID: id}, true
}

// rebuildPathURL keeps only the path on the platform's canonical host
func rebuildPathURL(u *url.URL, platform domain.Platform, idPattern *regexp.Regexp) CanonicalURL {
	path := u.EscapedPath()
	c := CanonicalURL{
		URL:      "https://" + canonicalHosts[platform] + path,
		Platform: platform,
	}
	if m := idPattern.FindStringSubmatch(u.Path); m != nil {
		c.VideoID = m[1]
	}
	return c
}

func stripTracking(u *url.URL) {
	if u.RawQuery == "" {
		return
	}
	q := u.Query()
	for key := range q {
		lk := strings.ToLower(key)
		if strings.HasPrefix(lk, "utm_") || trackingParams[lk] {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
}

func pathSegment(path string, i int) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

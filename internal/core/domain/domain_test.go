package domain

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		title    string
		expected string
	}{
		{"Screen Shot 2024.PNG", "screen-shot-2024-png"},
		{"Complex  Spaces   ", "complex-spaces"},
		{"C++ Programming", "c-programming"},
		{"Hello/World", "hello-world"},
	}

	for _, tt := range tests {
		got := GenerateSlug(tt.title)
		if got != tt.expected {
			t.Errorf("GenerateSlug(%q) = %q, want %q", tt.title, got, tt.expected)
		}
	}
}

func TestCoerceMIMEType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"image/png", MIMEPNG},
		{"image/jpg", MIMEJPEG},
		{"IMAGE/JPEG", MIMEJPEG},
		{"image/webp", MIMEWebP},
		{"image/jpeg; charset=binary", MIMEJPEG},
		{"image/heic", MIMEPNG},
		{"application/octet-stream", MIMEPNG},
		{"", MIMEPNG},
	}

	for _, tt := range tests {
		if got := CoerceMIMEType(tt.in); got != tt.want {
			t.Errorf("CoerceMIMEType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFileNameForMIME(t *testing.T) {
	tests := []struct {
		name string
		mt   string
		want string
	}{
		{"photo.heic", MIMEPNG, "photo.png"},
		{"shot.jpg", MIMEJPEG, "shot.jpg"},
		{"shot.png", MIMEJPEG, "shot.jpg"},
		{"", MIMEWebP, "screenshot.webp"},
		{"../../etc/passwd", MIMEPNG, "passwd.png"},
	}

	for _, tt := range tests {
		if got := FileNameForMIME(tt.name, tt.mt); got != tt.want {
			t.Errorf("FileNameForMIME(%q, %q) = %q, want %q", tt.name, tt.mt, got, tt.want)
		}
	}
}

func TestNewNormalizedImage(t *testing.T) {
	img := NewNormalizedImage([]byte("abc"), "image/jpg", "a.jpeg")
	if img.MIMEType != MIMEJPEG {
		t.Errorf("MIMEType = %q, want %q", img.MIMEType, MIMEJPEG)
	}
	if img.FileName != "a.jpg" {
		t.Errorf("FileName = %q, want a.jpg", img.FileName)
	}
	if img.SizeBytes != 3 {
		t.Errorf("SizeBytes = %d, want 3", img.SizeBytes)
	}
	if !img.WithinLimit(3) || img.WithinLimit(2) {
		t.Error("WithinLimit boundary is wrong")
	}

	img.Release()
	if img.Bytes != nil {
		t.Error("Release should drop the bytes")
	}
}

func TestClassifiedPayloadChecked(t *testing.T) {
	good := ClassifiedPayload{Kind: PayloadURL, ExtractedURL: "https://example.com"}
	if got := good.Checked(); got.Kind != PayloadURL {
		t.Errorf("valid payload changed kind to %s", got.Kind)
	}

	bad := ClassifiedPayload{
		Kind:         PayloadURL,
		ExtractedURL: "https://example.com",
		ImageRef:     &ImageRef{Kind: ImageRefRemoteURL, Value: "https://example.com/a.png"},
		Text:         "raw",
	}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected validation error for payload carrying both url and image")
	}

	got := bad.Checked()
	if got.Kind != PayloadUnrecognized || got.Text != "raw" || got.ExtractedURL != "" {
		t.Errorf("degraded payload = %+v", got)
	}

	DevMode = true
	defer func() {
		DevMode = false
		if recover() == nil {
			t.Error("expected panic in dev mode")
		}
	}()
	bad.Checked()
}

func TestParseCategoryColor(t *testing.T) {
	for _, c := range AllCategoryColors {
		if got := ParseCategoryColor(c.String()); got != c {
			t.Errorf("ParseCategoryColor(%q) = %v, want %v", c.String(), got, c)
		}
	}
	if got := ParseCategoryColor("mauve-dream"); got != ColorFallback {
		t.Errorf("unknown color should map to fallback, got %v", got)
	}
}

func TestPlatformAutoProcessable(t *testing.T) {
	for _, p := range AllPlatforms {
		if !p.AutoProcessable() {
			t.Errorf("%s should be auto-processable", p)
		}
		if ParsePlatform(p.String()) != p {
			t.Errorf("ParsePlatform(%q) did not return %s", p.String(), p)
		}
	}
	if PlatformUnknown.AutoProcessable() {
		t.Error("unknown platform must not be auto-processable")
	}
}

func TestContentShareID(t *testing.T) {
	a := ContentShareID(SourceClipboard, RawText, "https://youtu.be/x ")
	b := ContentShareID(SourceClipboard, RawText, "https://youtu.be/x")
	if a != b {
		t.Errorf("surrounding whitespace should not change identity: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "clipboard-") {
		t.Errorf("id %q should carry the source prefix", a)
	}
	if c := ContentShareID(SourceQueryHandoff, RawText, "https://youtu.be/x"); c == a {
		t.Error("different sources should yield different ids")
	}
}

func TestPendingSharePreview(t *testing.T) {
	s := &PendingShare{RawValue: "data:image/png;base64,AAAABBBB"}
	if got := s.Preview(80); got != "data:image/png;base64,…" {
		t.Errorf("Preview() = %q", got)
	}

	long := &PendingShare{RawValue: strings.Repeat("a", 50)}
	if got := long.Preview(10); len(got) != 10 || !strings.HasSuffix(got, "...") {
		t.Errorf("Preview(10) = %q", got)
	}
}

func TestErrorKinds(t *testing.T) {
	base := NewError(ErrPlanLimitExceeded, "limit reached")
	wrapped := WrapError(ErrOther, "save failed", base)

	if KindOf(wrapped) != ErrOther {
		t.Errorf("KindOf(wrapped) = %s", KindOf(wrapped))
	}
	if !IsKind(base, ErrPlanLimitExceeded) {
		t.Error("IsKind should match the direct kind")
	}
	if KindOf(nil) != "" {
		t.Error("KindOf(nil) should be empty")
	}
	if base.Retryable() {
		t.Error("plan limit errors are not retryable")
	}
	if !NewError(ErrFetchFailed, "x").Retryable() {
		t.Error("fetch failures are retryable by the user")
	}
}

func TestQuotaSnapshotRemaining(t *testing.T) {
	if got := (QuotaSnapshot{CurrentCount: 5, MaxCount: 5}).RemainingCount(); got != 0 {
		t.Errorf("RemainingCount() = %d, want 0", got)
	}
	if got := (QuotaSnapshot{MaxCount: Unlimited}).RemainingCount(); got != Unlimited {
		t.Errorf("RemainingCount() = %d, want unlimited", got)
	}
}

func TestScreenshotContainerTitle(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	if got := ScreenshotContainerTitle(now); got != "Screenshots - Mar 4, 2026" {
		t.Errorf("ScreenshotContainerTitle() = %q", got)
	}
}

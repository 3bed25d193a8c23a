package services

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/ports"
	"github.com/kamal-hamza/tagbox/internal/core/ports/mocks"
	"github.com/kamal-hamza/tagbox/internal/logging"
)

type fixture struct {
	session     *mocks.MockSession
	categories  *mocks.MockCategoryStore
	prefs       *mocks.MockPreferenceStore
	content     *mocks.MockContentStore
	quota       *mocks.MockQuotaSource
	attempts    *mocks.MockAttemptTracker
	sideChannel *mocks.MockSideChannel
	fetcher     *mocks.MockFetcher
	user        *domain.User
}

func newFixture(t *testing.T, categoryNames ...string) *fixture {
	t.Helper()
	f := &fixture{
		user:        &domain.User{ID: "user-1", Name: "alex"},
		categories:  mocks.NewMockCategoryStore(),
		prefs:       mocks.NewMockPreferenceStore(),
		content:     mocks.NewMockContentStore(),
		quota:       mocks.NewUnlimitedQuotaSource(),
		attempts:    mocks.NewMockAttemptTracker(),
		sideChannel: mocks.NewMockSideChannel(nil),
		fetcher:     mocks.NewMockFetcher(nil, ""),
	}
	f.session = mocks.NewMockSession(f.user)
	for _, name := range categoryNames {
		_, err := f.categories.CreateCategory(context.Background(), f.user.ID, domain.Category{ID: name, Name: name})
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) deps(sources ...*mocks.MockSource) IngestorDeps {
	chainSources := make([]ports.PayloadSource, 0, len(sources))
	for _, s := range sources {
		chainSources = append(chainSources, s)
	}

	log := logging.Nop()
	return IngestorDeps{
		Sources:      NewSourceChain(log, chainSources...),
		SideChannel:  f.sideChannel,
		Materializer: NewMaterializer(f.sideChannel, f.fetcher, NewCompressor(DefaultCompressionOptions(), log), log),
		Session:      f.session,
		Categories:   f.categories,
		Preferences:  f.prefs,
		Content:      f.content,
		Quota:        f.quota,
		Attempts:     f.attempts,
		Log:          log,
	}
}

func (f *fixture) ingestor(sources ...*mocks.MockSource) *Ingestor {
	return NewIngestor(f.deps(sources...))
}

func clipboardShare(raw string) *domain.PendingShare {
	return &domain.PendingShare{
		ID:         domain.ContentShareID(domain.SourceClipboard, domain.RawText, raw),
		SourceKind: domain.SourceClipboard,
		RawKind:    domain.RawText,
		RawValue:   raw,
		CapturedAt: time.Now(),
	}
}

func imageShare() *domain.PendingShare {
	return &domain.PendingShare{
		ID:         "01HZY0000000000000000000AA",
		SourceKind: domain.SourceShareIntent,
		RawKind:    domain.RawImageMarker,
		RawValue:   domain.ImageSharedMarker,
		CapturedAt: time.Now(),
	}
}

func stageImage(t *testing.T, f *fixture) {
	t.Helper()
	f.sideChannel = mocks.NewMockSideChannel(map[string]string{
		domain.SideChannelBase64:   base64.StdEncoding.EncodeToString(tinyPNG(t)),
		domain.SideChannelMimeType: "image/png",
		domain.SideChannelFileName: "IMG_0001.PNG",
	})
}

func TestIngest_SingleCategoryYouTube(t *testing.T) {
	f := newFixture(t, "Videos")
	src := mocks.NewMockSource(domain.SourceClipboard, clipboardShare("https://youtu.be/dQw4w9WgXcQ?si=tracking"))

	out, err := f.ingestor(src).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.ActionAutoSaveToCategory, out.Decision.Action)
	assert.Equal(t, domain.ReasonSingleCategoryExists, out.Decision.Reason)
	assert.Equal(t, "Videos", out.Decision.CategoryID)
	assert.True(t, out.Saved())
	assert.Equal(t, []domain.PipelineState{
		domain.StateIdle, domain.StateReading, domain.StateClassifying, domain.StateURLPath,
		domain.StateDeciding, domain.StateAutoSaving, domain.StateSaved,
	}, out.States)

	containers, err := f.content.ListContainers(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Len(t, containers, 1)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", containers[0].URL)
	assert.Equal(t, domain.PlatformYouTube, containers[0].Platform)
	assert.Equal(t, "YouTube Video", containers[0].Title)
	assert.False(t, src.Pending(), "share should be cleared after save")
}

func TestIngest_MultipleCategoriesDefers(t *testing.T) {
	f := newFixture(t, "A", "B", "C")
	src := mocks.NewMockSource(domain.SourceClipboard, clipboardShare("https://www.tiktok.com/@u/video/1?utm_source=x"))

	out, err := f.ingestor(src).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.StateDeferred, out.State())
	assert.Equal(t, domain.ReasonMultipleCategoriesNoDefault, out.Decision.Reason)
	assert.Equal(t, "https://www.tiktok.com/@u/video/1", out.Decision.Prefill.URL)
	assert.True(t, out.NeedsForm())

	create, upload := f.content.Calls()
	assert.Zero(t, create)
	assert.Zero(t, upload)
	assert.True(t, src.Pending(), "deferred share must stay pending")
}

func TestIngest_DefaultCategory(t *testing.T) {
	f := newFixture(t, "A", "B", "C")
	require.NoError(t, f.prefs.SetDefaultCategory(context.Background(), f.user.ID, "B"))
	src := mocks.NewMockSource(domain.SourceClipboard, clipboardShare("https://www.loom.com/share/abc123"))

	out, err := f.ingestor(src).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.True(t, out.Saved())
	assert.Equal(t, domain.ReasonDefaultCategoryMatches, out.Decision.Reason)
	assert.Equal(t, "B", out.Decision.CategoryID)
}

func TestIngest_QuotaExceededImage(t *testing.T) {
	f := newFixture(t, "Shots")
	stageImage(t, f)
	f.quota.Set(domain.QuotaSnapshot{CurrentCount: 5, MaxCount: 5, MaxBytes: domain.Unlimited})
	src := mocks.NewMockSource(domain.SourceShareIntent, imageShare())

	out, err := f.ingestor(src).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.StateDeferred, out.State())
	assert.Equal(t, domain.ReasonQuotaExceeded, out.Decision.Reason)
	require.NotNil(t, out.Decision.Prefill.Image)
	assert.Equal(t, "IMG_0001.png", out.Decision.Prefill.Image.FileName)

	create, upload := f.content.Calls()
	assert.Zero(t, create)
	assert.Zero(t, upload)
}

func TestIngest_ImageSaved(t *testing.T) {
	f := newFixture(t, "Shots")
	stageImage(t, f)
	src := mocks.NewMockSource(domain.SourceShareIntent, imageShare())

	ing := f.ingestor(src)
	ing.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }

	out, err := ing.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.True(t, out.Saved())
	assert.Equal(t, domain.ActionAutoSaveNewContainer, out.Decision.Action)
	assert.Contains(t, out.States, domain.StateImagePath)
	require.Len(t, out.Images, 1)
	assert.Len(t, f.content.Images(out.ContainerID), 1)
	assert.Equal(t, 1, f.sideChannel.Cleared())
	assert.False(t, src.Pending())

	containers, _ := f.content.ListContainers(context.Background(), f.user.ID)
	require.Len(t, containers, 1)
	assert.Equal(t, "Screenshots - May 1, 2026", containers[0].Title)
}

func TestIngest_IdempotentAcrossRuns(t *testing.T) {
	f := newFixture(t, "Videos")
	share := clipboardShare("https://youtu.be/dQw4w9WgXcQ")

	first, err := f.ingestor(mocks.NewMockSource(domain.SourceClipboard, share)).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.True(t, first.Saved())

	// The clipboard still holds the same text on the next launch
	second, err := f.ingestor(mocks.NewMockSource(domain.SourceClipboard, share)).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNothingToIngest, second.Decision.Reason)
	assert.False(t, second.NeedsForm())

	create, _ := f.content.Calls()
	assert.Equal(t, 1, create)
}

func TestIngest_SavedClipboardFallsThroughToHandoff(t *testing.T) {
	f := newFixture(t, "Videos")
	clip := mocks.NewMockSource(domain.SourceClipboard, clipboardShare("https://youtu.be/dQw4w9WgXcQ")).KeepOnClear()
	handoff := mocks.NewMockSource(domain.SourceQueryHandoff, &domain.PendingShare{
		SourceKind: domain.SourceQueryHandoff,
		RawKind:    domain.RawText,
		RawValue:   "https://www.tiktok.com/@u/video/42",
		CapturedAt: time.Now(),
	})

	first, err := f.ingestor(clip, handoff).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.True(t, first.Saved())
	assert.Equal(t, domain.SourceClipboard, first.Source)
	assert.True(t, clip.Pending(), "clipboard keeps its content")

	second, err := f.ingestor(clip, handoff).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.True(t, second.Saved(), "state=%s reason=%s", second.State(), second.Decision.Reason)
	assert.Equal(t, domain.SourceQueryHandoff, second.Source)
	assert.Equal(t, "https://www.tiktok.com/@u/video/42", second.Decision.Prefill.URL)
	assert.Equal(t, 1, handoff.Reads())

	third, err := f.ingestor(clip, handoff).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNothingToIngest, third.Decision.Reason)
	assert.False(t, third.NeedsForm())

	create, _ := f.content.Calls()
	assert.Equal(t, 2, create)
}

func TestIngest_UploadFailureRemovesContainer(t *testing.T) {
	f := newFixture(t, "Shots")
	stageImage(t, f)
	f.content.SetUploadError(errors.New("disk full"))
	src := mocks.NewMockSource(domain.SourceShareIntent, imageShare())

	out, err := f.ingestor(src).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.StateDeferred, out.State())
	assert.Equal(t, domain.ReasonPersistenceFailed, out.Decision.Reason)
	assert.NotNil(t, out.Decision.Prefill.Image, "image stays available for the form")
	assert.True(t, src.Pending())

	containers, err := f.content.ListContainers(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, containers)
}

func TestIngest_ConcurrentRunsPersistOnce(t *testing.T) {
	f := newFixture(t, "Videos")
	share := clipboardShare("https://www.instagram.com/reel/Cxyz/")

	var wg sync.WaitGroup
	saved := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.ingestor(mocks.NewMockSource(domain.SourceClipboard, share)).Run(context.Background(), RunOptions{})
			if err == nil {
				saved <- out.Saved()
			}
		}()
	}
	wg.Wait()
	close(saved)

	count := 0
	for s := range saved {
		if s {
			count++
		}
	}
	assert.Equal(t, 1, count)
	create, _ := f.content.Calls()
	assert.Equal(t, 1, create)
}

func TestIngest_UnsupportedPlatform(t *testing.T) {
	f := newFixture(t, "Videos")
	src := mocks.NewMockSource(domain.SourceClipboard, clipboardShare("look at https://vimeo.com/123?utm_medium=x"))

	out, err := f.ingestor(src).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonUnsupportedPlatform, out.Decision.Reason)
	assert.Equal(t, "https://vimeo.com/123", out.Decision.Prefill.URL)
	assert.Equal(t, domain.PayloadFreeTextWithURL, out.Payload.Kind)
}

func TestIngest_SourcePrecedence(t *testing.T) {
	f := newFixture(t, "Videos")
	intent := mocks.NewMockSource(domain.SourceShareIntent, &domain.PendingShare{
		ID: "intent-1", SourceKind: domain.SourceShareIntent, RawKind: domain.RawText, RawValue: "https://youtu.be/dQw4w9WgXcQ",
	})
	clip := mocks.NewMockSource(domain.SourceClipboard, clipboardShare("https://www.loom.com/share/abc123"))

	// Passed out of order on purpose
	out, err := f.ingestor(clip, intent).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.SourceShareIntent, out.Source)
	assert.Equal(t, 0, clip.Reads(), "clipboard must not be consulted when a share intent exists")
}

func TestIngest_SourceErrorTreatedAsEmpty(t *testing.T) {
	f := newFixture(t, "Videos")
	broken := mocks.NewMockSource(domain.SourceShareIntent, nil)
	broken.SetError(errors.New("manifest corrupt"))
	clip := mocks.NewMockSource(domain.SourceClipboard, clipboardShare("https://youtu.be/dQw4w9WgXcQ"))

	out, err := f.ingestor(broken, clip).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceClipboard, out.Source)
	assert.True(t, out.Saved())
}

func TestIngest_Unauthenticated(t *testing.T) {
	f := newFixture(t, "Videos")
	f.session.SetUser(nil)
	src := mocks.NewMockSource(domain.SourceClipboard, clipboardShare("https://youtu.be/dQw4w9WgXcQ"))

	out, err := f.ingestor(src).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonAuthenticationRequired, out.Decision.Reason)
	assert.False(t, out.NeedsForm())
	assert.True(t, src.Pending())
}

func TestIngest_NothingToIngest(t *testing.T) {
	f := newFixture(t, "Videos")

	out, err := f.ingestor(mocks.NewMockSource(domain.SourceClipboard, nil)).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNothingToIngest, out.Decision.Reason)
	assert.True(t, out.Decision.Prefill.Empty())

	out, err = f.ingestor(mocks.NewMockSource(domain.SourceClipboard, clipboardShare("hello there"))).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNothingToIngest, out.Decision.Reason)
	assert.Equal(t, "hello there", out.Decision.Prefill.Note)
}

func TestIngest_PersistenceErrorsDowngrade(t *testing.T) {
	tests := []struct {
		kind   domain.ErrorKind
		reason domain.Reason
	}{
		{domain.ErrPlanLimitExceeded, domain.ReasonQuotaExceeded},
		{domain.ErrUnsupportedPlatform, domain.ReasonUnsupportedPlatform},
		{domain.ErrDuplicateContent, domain.ReasonPersistenceFailed},
		{domain.ErrOther, domain.ReasonPersistenceFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			f := newFixture(t, "Videos")
			f.content.SetCreateError(domain.NewError(tt.kind, "rejected"))
			share := clipboardShare("https://youtu.be/dQw4w9WgXcQ")
			src := mocks.NewMockSource(domain.SourceClipboard, share)

			out, err := f.ingestor(src).Run(context.Background(), RunOptions{})
			require.NoError(t, err)
			assert.Equal(t, domain.StateDeferred, out.State())
			assert.Equal(t, tt.reason, out.Decision.Reason)
			assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", out.Decision.Prefill.URL)
			assert.True(t, domain.IsKind(out.Err, tt.kind))
			assert.True(t, src.Pending())

			// Never retried: the next run does not write again
			again, err := f.ingestor(mocks.NewMockSource(domain.SourceClipboard, share)).Run(context.Background(), RunOptions{})
			require.NoError(t, err)
			assert.Equal(t, domain.ReasonAlreadyAttempted, again.Decision.Reason)
			create, _ := f.content.Calls()
			assert.Equal(t, 1, create)
		})
	}
}

func TestIngest_FetchFailed(t *testing.T) {
	f := newFixture(t, "Shots")
	f.fetcher.SetShouldFail(errors.New("connection refused"))
	share := imageShare()
	share.RawValue = "https://cdn.example.com/shot.png"

	out, err := f.ingestor(mocks.NewMockSource(domain.SourceShareIntent, share)).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.StateDeferred, out.State())
	assert.Equal(t, domain.ReasonFetchFailed, out.Decision.Reason)
	assert.Equal(t, "https://cdn.example.com/shot.png", out.Decision.Prefill.URL)
	assert.Len(t, f.fetcher.GetCalls(), 1)
}

func TestIngest_MalformedSideChannel(t *testing.T) {
	f := newFixture(t, "Shots")
	f.sideChannel = mocks.NewMockSideChannel(map[string]string{domain.SideChannelBase64: "%%%***"})

	out, err := f.ingestor(mocks.NewMockSource(domain.SourceShareIntent, imageShare())).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, out.State())
	assert.Equal(t, domain.ReasonMaterializationFailed, out.Decision.Reason)
	assert.True(t, domain.IsKind(out.Err, domain.ErrMalformedEncoding))
}

func TestIngest_PayloadTooLarge(t *testing.T) {
	f := newFixture(t, "Shots")
	stageImage(t, f)
	deps := f.deps(mocks.NewMockSource(domain.SourceShareIntent, imageShare()))
	deps.Materializer.SetMaxBase64Size(8)

	out, err := NewIngestor(deps).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, out.State())
	assert.True(t, domain.IsKind(out.Err, domain.ErrPayloadTooLarge))
}

func TestIngest_CancelledKeepsShare(t *testing.T) {
	f := newFixture(t, "Videos")
	src := mocks.NewMockSource(domain.SourceClipboard, clipboardShare("https://youtu.be/dQw4w9WgXcQ"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ingestor(src).Run(ctx, RunOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, src.Pending())
	create, _ := f.content.Calls()
	assert.Zero(t, create)
}

func TestIngest_DryRun(t *testing.T) {
	f := newFixture(t, "Videos")
	src := mocks.NewMockSource(domain.SourceClipboard, clipboardShare("https://youtu.be/dQw4w9WgXcQ"))

	out, err := f.ingestor(src).Run(context.Background(), RunOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionAutoSaveToCategory, out.Decision.Action)
	assert.Equal(t, domain.StateDeciding, out.State())

	create, _ := f.content.Calls()
	assert.Zero(t, create)
	rec, _ := f.attempts.Lookup(context.Background(), out.Share.ID)
	assert.Nil(t, rec)
}

func TestIngest_ClearPending(t *testing.T) {
	f := newFixture(t, "Videos")
	stageImage(t, f)
	src := mocks.NewMockSource(domain.SourceShareIntent, imageShare())

	share, err := f.ingestor(src).ClearPending(context.Background())
	require.NoError(t, err)
	require.NotNil(t, share)
	assert.False(t, src.Pending())
	assert.Equal(t, 1, f.sideChannel.Cleared())
}

package repository

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamal-hamza/tagbox/internal/adapters/blob"
	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/pkg/vault"
)

const testUser = "user-1"

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "nested", "tagbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type library struct {
	db         *sql.DB
	categories *CategoryRepository
	content    *ContentRepository
	quota      *QuotaRepository
	vault      *vault.Vault
}

func newLibrary(t *testing.T, maxCount, maxBytes int64) *library {
	t.Helper()
	db := openTestDB(t)
	v := vault.NewAt(t.TempDir(), "")
	quota := NewQuotaRepository(db, maxCount, maxBytes)
	return &library{
		db:         db,
		categories: NewCategoryRepository(db),
		content:    NewContentRepository(db, blob.NewLocalStore(v), quota),
		quota:      quota,
		vault:      v,
	}
}

func (l *library) category(t *testing.T, name string) string {
	t.Helper()
	id, err := l.categories.CreateCategory(context.Background(), testUser, domain.Category{Name: name, Color: domain.ColorTealNavy})
	require.NoError(t, err)
	return id
}

func TestOpenDB(t *testing.T) {
	db := openTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	version, err := SchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)

	for _, table := range []string{"categories", "preferences", "containers", "images", "attempts"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestOpenDB_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tagbox.db")
	db, err := OpenDB(path)
	require.NoError(t, err)
	_, err = NewCategoryRepository(db).CreateCategory(context.Background(), testUser, domain.Category{Name: "Keep"})
	require.NoError(t, err)
	db.Close()

	db, err = OpenDB(path)
	require.NoError(t, err)
	defer db.Close()

	list, err := NewCategoryRepository(db).ListCategories(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Keep", list[0].Name)
}

func TestCategoryRepository(t *testing.T) {
	repo := NewCategoryRepository(openTestDB(t))
	ctx := context.Background()

	_, err := repo.CreateCategory(ctx, testUser, domain.Category{Name: "  recipes ", Color: domain.ColorRedFire, Description: "food"})
	require.NoError(t, err)
	_, err = repo.CreateCategory(ctx, testUser, domain.Category{Name: "Dance"})
	require.NoError(t, err)
	_, err = repo.CreateCategory(ctx, "someone-else", domain.Category{Name: "Other"})
	require.NoError(t, err)

	_, err = repo.CreateCategory(ctx, testUser, domain.Category{Name: "RECIPES"})
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput), "duplicate name: %v", err)

	_, err = repo.CreateCategory(ctx, testUser, domain.Category{Name: ""})
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))

	list, err := repo.ListCategories(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Dance", list[0].Name)
	assert.Equal(t, "recipes", list[1].Name)
	assert.Equal(t, domain.ColorRedFire, list[1].Color)
	assert.Equal(t, "food", list[1].Description)
	assert.Equal(t, domain.ColorFallback, list[0].Color)
}

func TestCategoryRepository_DefaultCategory(t *testing.T) {
	repo := NewCategoryRepository(openTestDB(t))
	ctx := context.Background()

	id, err := repo.DefaultCategory(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, repo.SetDefaultCategory(ctx, testUser, "cat-a"))
	require.NoError(t, repo.SetDefaultCategory(ctx, testUser, "cat-b"))
	id, _ = repo.DefaultCategory(ctx, testUser)
	assert.Equal(t, "cat-b", id)

	require.NoError(t, repo.SetDefaultCategory(ctx, testUser, ""))
	id, _ = repo.DefaultCategory(ctx, testUser)
	assert.Empty(t, id)
}

func TestContentRepository_CreateContainer(t *testing.T) {
	lib := newLibrary(t, domain.Unlimited, domain.Unlimited)
	ctx := context.Background()
	catID := lib.category(t, "Videos")

	meta := domain.ContainerMeta{
		Title:    "YouTube Video",
		URL:      "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Platform: domain.PlatformYouTube,
		Tags:     []string{"music", "classic"},
	}
	id, err := lib.content.CreateContainer(ctx, testUser, catID, meta)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = lib.content.CreateContainer(ctx, testUser, catID, meta)
	assert.True(t, domain.IsKind(err, domain.ErrDuplicateContent), "same url twice: %v", err)

	_, err = lib.content.CreateContainer(ctx, testUser, catID, domain.ContainerMeta{Title: "x", URL: "https://vimeo.com/1"})
	assert.True(t, domain.IsKind(err, domain.ErrUnsupportedPlatform))

	_, err = lib.content.CreateContainer(ctx, testUser, "missing", domain.ContainerMeta{Title: "x"})
	assert.True(t, domain.IsKind(err, domain.ErrNotFound))

	// Image containers have no URL and never collide
	_, err = lib.content.CreateContainer(ctx, testUser, catID, domain.ContainerMeta{Title: "Screenshots"})
	require.NoError(t, err)
	_, err = lib.content.CreateContainer(ctx, testUser, catID, domain.ContainerMeta{Title: "Screenshots"})
	require.NoError(t, err)

	list, err := lib.content.ListContainers(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, id, list[2].ID, "oldest last")
	assert.Equal(t, domain.PlatformYouTube, list[2].Platform)
	assert.Equal(t, []string{"music", "classic"}, list[2].Tags)
	assert.Equal(t, catID, list[2].CategoryID)
}

func TestContentRepository_UploadImages(t *testing.T) {
	lib := newLibrary(t, 2, domain.Unlimited)
	ctx := context.Background()
	catID := lib.category(t, "Shots")

	ctr, err := lib.content.CreateContainer(ctx, testUser, catID, domain.ContainerMeta{Title: "Screenshots"})
	require.NoError(t, err)

	img := domain.NewNormalizedImage([]byte("first-image"), domain.MIMEPNG, "a.png")
	stored, err := lib.content.UploadImages(ctx, ctr, []*domain.NormalizedImage{img}, "  remember this ")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, ctr, stored[0].ContainerID)
	assert.Equal(t, int64(len("first-image")), stored[0].SizeBytes)
	require.Len(t, stored[0].URLs, 1)

	images, err := lib.content.ListImages(ctx, ctr)
	require.NoError(t, err)
	assert.Equal(t, stored, images)

	list, _ := lib.content.ListContainers(ctx, testUser)
	assert.Equal(t, "remember this", list[0].Note)

	snap, err := lib.quota.QuotaSnapshot(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.CurrentCount)
	assert.Equal(t, int64(len("first-image")), snap.CurrentBytes)

	two := []*domain.NormalizedImage{
		domain.NewNormalizedImage([]byte("second"), domain.MIMEPNG, "b.png"),
		domain.NewNormalizedImage([]byte("third"), domain.MIMEPNG, "c.png"),
	}
	_, err = lib.content.UploadImages(ctx, ctr, two, "")
	assert.True(t, domain.IsKind(err, domain.ErrPlanLimitExceeded), "2 more would exceed 2: %v", err)

	_, err = lib.content.UploadImages(ctx, "missing", two[:1], "")
	assert.True(t, domain.IsKind(err, domain.ErrNotFound))
}

func TestContentRepository_BlobKeys(t *testing.T) {
	lib := newLibrary(t, domain.Unlimited, domain.Unlimited)
	ctx := context.Background()
	catID := lib.category(t, "Shots")

	keys, err := lib.content.BlobKeys(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, keys)

	// The same bytes in two containers share one blob
	for _, title := range []string{"one", "two"} {
		ctr, err := lib.content.CreateContainer(ctx, testUser, catID, domain.ContainerMeta{Title: title})
		require.NoError(t, err)
		_, err = lib.content.UploadImages(ctx, ctr, []*domain.NormalizedImage{
			domain.NewNormalizedImage([]byte("same-bytes"), domain.MIMEPNG, "a.png"),
		}, "")
		require.NoError(t, err)
	}

	keys, err = lib.content.BlobKeys(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.FileExists(t, lib.vault.GetAssetPath(keys[0]))

	others, err := lib.content.BlobKeys(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestContentRepository_DeleteContainer(t *testing.T) {
	lib := newLibrary(t, domain.Unlimited, domain.Unlimited)
	ctx := context.Background()
	catID := lib.category(t, "Shots")

	var ids []string
	for _, title := range []string{"keep", "drop"} {
		ctr, err := lib.content.CreateContainer(ctx, testUser, catID, domain.ContainerMeta{Title: title})
		require.NoError(t, err)
		_, err = lib.content.UploadImages(ctx, ctr, []*domain.NormalizedImage{
			domain.NewNormalizedImage([]byte("shared-bytes"), domain.MIMEPNG, "a.png"),
			domain.NewNormalizedImage([]byte(title+"-only"), domain.MIMEPNG, "b.png"),
		}, "")
		require.NoError(t, err)
		ids = append(ids, ctr)
	}

	dropKeys, err := lib.content.BlobKeys(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, dropKeys, 3)

	require.NoError(t, lib.content.DeleteContainer(ctx, ids[1]))

	containers, err := lib.content.ListContainers(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, containers, 1)
	assert.Equal(t, ids[0], containers[0].ID)

	images, err := lib.content.ListImages(ctx, ids[1])
	require.NoError(t, err)
	assert.Empty(t, images)

	keys, err := lib.content.BlobKeys(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, keys, 2, "the shared blob survives")
	for _, key := range dropKeys {
		_, statErr := os.Stat(lib.vault.GetAssetPath(key))
		assert.Equal(t, slices.Contains(keys, key), statErr == nil, key)
	}

	assert.NoError(t, lib.content.DeleteContainer(ctx, "missing"))
}

type failingBlobs struct {
	inner   *blob.LocalStore
	failOn  int
	calls   int
	deleted []string
}

func (f *failingBlobs) Put(ctx context.Context, img *domain.NormalizedImage) (*domain.Asset, []string, error) {
	f.calls++
	if f.calls == f.failOn {
		return nil, nil, os.ErrPermission
	}
	return f.inner.Put(ctx, img)
}

func (f *failingBlobs) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return f.inner.Delete(ctx, key)
}

func TestContentRepository_UploadRollsBackBlobs(t *testing.T) {
	lib := newLibrary(t, domain.Unlimited, domain.Unlimited)
	ctx := context.Background()
	blobs := &failingBlobs{inner: blob.NewLocalStore(lib.vault), failOn: 2}
	lib.content = NewContentRepository(lib.db, blobs, lib.quota)

	ctr, err := lib.content.CreateContainer(ctx, testUser, lib.category(t, "Shots"), domain.ContainerMeta{Title: "Screenshots"})
	require.NoError(t, err)

	_, err = lib.content.UploadImages(ctx, ctr, []*domain.NormalizedImage{
		domain.NewNormalizedImage([]byte("one"), domain.MIMEPNG, "a.png"),
		domain.NewNormalizedImage([]byte("two"), domain.MIMEPNG, "b.png"),
	}, "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrOther))
	assert.Len(t, blobs.deleted, 1, "the first blob is removed again")

	images, _ := lib.content.ListImages(ctx, ctr)
	assert.Empty(t, images)
}

func TestQuotaRepository_ScopedToUser(t *testing.T) {
	lib := newLibrary(t, 5, 1024)
	ctx := context.Background()

	snap, err := lib.quota.QuotaSnapshot(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, domain.QuotaSnapshot{MaxCount: 5, MaxBytes: 1024}, snap)
}

func TestAttemptRepository(t *testing.T) {
	repo := NewAttemptRepository(openTestDB(t))
	ctx := context.Background()

	rec, err := repo.Lookup(ctx, "share-1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	ok, err := repo.Claim(ctx, "share-1", "attempt-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Claim(ctx, "share-1", "attempt-b")
	require.NoError(t, err)
	assert.False(t, ok, "second claim must lose")

	err = repo.Finish(ctx, "share-1", "attempt-b", domain.StateSaved, "")
	assert.True(t, domain.IsKind(err, domain.ErrNotFound), "only the claimant may finish")

	require.NoError(t, repo.Finish(ctx, "share-1", "attempt-a", domain.StateDeferred, domain.ReasonPersistenceFailed))
	rec, err = repo.Lookup(ctx, "share-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "attempt-a", rec.AttemptID)
	assert.Equal(t, domain.StateDeferred, rec.State)
	assert.Equal(t, domain.ReasonPersistenceFailed, rec.Reason)

	require.NoError(t, repo.Forget(ctx, "share-1"))
	ok, err = repo.Claim(ctx, "share-1", "attempt-c")
	require.NoError(t, err)
	assert.True(t, ok, "a forgotten share can be claimed again")
}

func TestAttemptRepository_ConcurrentClaims(t *testing.T) {
	repo := NewAttemptRepository(openTestDB(t))
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := repo.Claim(ctx, "share-x", "attempt-"+string(rune('a'+i)))
			if err == nil && ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestFileSessionRepository(t *testing.T) {
	repo := NewFileSessionRepository(filepath.Join(t.TempDir(), "state", "session.yaml"))
	ctx := context.Background()

	user, err := repo.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)

	_, err = repo.Login(ctx, "   ")
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))

	first, err := repo.Login(ctx, "Sam")
	require.NoError(t, err)
	current, err := repo.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, first.ID, current.ID)
	assert.Equal(t, "Sam", current.Name)

	require.NoError(t, repo.Logout(ctx))
	current, _ = repo.CurrentUser(ctx)
	assert.Nil(t, current)
	require.NoError(t, repo.Logout(ctx), "logging out twice is fine")

	again, err := repo.Login(ctx, "sam")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID, "same name keeps the library")
}

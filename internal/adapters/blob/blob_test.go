package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/pkg/config"
	"github.com/kamal-hamza/tagbox/pkg/vault"
)

func testImage(body string) *domain.NormalizedImage {
	return domain.NewNormalizedImage([]byte(body), domain.MIMEJPEG, "shot.jpg")
}

func TestContentKey(t *testing.T) {
	key, hash := contentKey(testImage("abc"))
	assert.Len(t, hash, 64)
	assert.Equal(t, hash[:2]+"/"+hash+".jpg", key)

	other, _ := contentKey(testImage("abd"))
	assert.NotEqual(t, key, other)
}

func TestLocalStore_PutDedupesAndDeletes(t *testing.T) {
	v := vault.NewAt(t.TempDir(), "")
	store := NewLocalStore(v)
	ctx := context.Background()

	asset, urls, err := store.Put(ctx, testImage("pixels"))
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.True(t, strings.HasPrefix(urls[0], "file://"))
	assert.Equal(t, "shot.jpg", asset.OriginalName)
	assert.Equal(t, int64(6), asset.SizeBytes)

	data, err := os.ReadFile(v.GetAssetPath(asset.Key))
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))

	again, _, err := store.Put(ctx, domain.NewNormalizedImage([]byte("pixels"), domain.MIMEJPEG, "copy.jpg"))
	require.NoError(t, err)
	assert.Equal(t, asset.Key, again.Key)
	assert.Equal(t, "copy.jpg", again.OriginalName)

	require.NoError(t, store.Delete(ctx, asset.Key))
	_, err = os.Stat(v.GetAssetPath(asset.Key))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, store.Delete(ctx, asset.Key), "deleting twice is fine")
}

func TestLocalStore_RejectsEmpty(t *testing.T) {
	store := NewLocalStore(vault.NewAt(t.TempDir(), ""))
	_, _, err := store.Put(context.Background(), &domain.NormalizedImage{MIMEType: domain.MIMEPNG})
	assert.Error(t, err)
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	headErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headErr != nil {
		return nil, f.headErr
	}
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://signed.example.com/" + *in.Key + "?sig=1"}, nil
}

func TestS3Store_PutDedupes(t *testing.T) {
	api := newFakeS3()
	store := newS3Store(api, fakePresigner{}, "shots", "https://cdn.example.com/")
	ctx := context.Background()

	asset, urls, err := store.Put(ctx, testImage("pixels"))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example.com/" + asset.Key}, urls)
	assert.True(t, bytes.Equal([]byte("pixels"), api.objects[asset.Key]))

	_, _, err = store.Put(ctx, testImage("pixels"))
	require.NoError(t, err)
	assert.Equal(t, 1, api.puts, "existing object is not uploaded again")

	require.NoError(t, store.Delete(ctx, asset.Key))
	assert.Empty(t, api.objects)
}

func TestS3Store_PresignsWithoutPublicURL(t *testing.T) {
	store := newS3Store(newFakeS3(), fakePresigner{}, "shots", "")

	asset, urls, err := store.Put(context.Background(), testImage("pixels"))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://signed.example.com/" + asset.Key + "?sig=1"}, urls)
}

func TestS3Store_HeadFailure(t *testing.T) {
	api := newFakeS3()
	api.headErr = errors.New("access denied")
	store := newS3Store(api, fakePresigner{}, "shots", "")

	_, _, err := store.Put(context.Background(), testImage("pixels"))
	require.Error(t, err)
	assert.Zero(t, api.puts)
}

func TestNew_SelectsBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	store, err := New(context.Background(), cfg, vault.NewAt(t.TempDir(), ""))
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	cfg.Storage.Backend = "ftp"
	_, err = New(context.Background(), cfg, vault.NewAt(t.TempDir(), ""))
	assert.Error(t, err)
}

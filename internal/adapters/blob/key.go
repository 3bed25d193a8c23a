package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
)

// contentKey derives the storage key from the image bytes, so identical
// images share one blob: "ab/ab12...ef.jpg"
func contentKey(img *domain.NormalizedImage) (key, hash string) {
	sum := sha256.Sum256(img.Bytes)
	hash = hex.EncodeToString(sum[:])
	return hash[:2] + "/" + hash + "." + domain.ExtensionForMIME(img.MIMEType), hash
}

func newAsset(img *domain.NormalizedImage, key, hash string) *domain.Asset {
	return &domain.Asset{
		Key:          key,
		OriginalName: img.FileName,
		MIMEType:     img.MIMEType,
		SizeBytes:    int64(len(img.Bytes)),
		Hash:         hash,
		UploadedAt:   time.Now(),
	}
}

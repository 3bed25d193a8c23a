package services

import (
	"github.com/kamal-hamza/tagbox/internal/core/domain"
)

// CheckQuota reports whether inc fits in the snapshot
func CheckQuota(snap domain.QuotaSnapshot, inc domain.QuotaIncrement) bool {
	return snap.Allows(inc)
}

// ImageIncrement is the quota cost of storing img as one new item
func ImageIncrement(img *domain.NormalizedImage) domain.QuotaIncrement {
	if img == nil {
		return domain.QuotaIncrement{Count: 1}
	}
	return domain.QuotaIncrement{Count: 1, Bytes: img.SizeBytes}
}

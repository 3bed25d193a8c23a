package domain

import "fmt"

// Unlimited marks a quota dimension without a ceiling
const Unlimited int64 = -1

// QuotaSnapshot is a read-only view of usage versus plan limits
type QuotaSnapshot struct {
	CurrentCount int64
	MaxCount     int64
	CurrentBytes int64
	MaxBytes     int64
}

// QuotaIncrement is what a pending write would add
type QuotaIncrement struct {
	Count int64
	Bytes int64
}

// RemainingCount returns how many more items fit, or -1 when unlimited
func (q QuotaSnapshot) RemainingCount() int64 {
	if q.MaxCount == Unlimited {
		return Unlimited
	}
	if r := q.MaxCount - q.CurrentCount; r > 0 {
		return r
	}
	return 0
}

// String renders the snapshot for logs
func (q QuotaSnapshot) String() string {
	count := "unlimited"
	if q.MaxCount != Unlimited {
		count = fmt.Sprintf("%d/%d", q.CurrentCount, q.MaxCount)
	}
	bytes := "unlimited"
	if q.MaxBytes != Unlimited {
		bytes = fmt.Sprintf("%d/%d", q.CurrentBytes, q.MaxBytes)
	}
	return fmt.Sprintf("count=%s bytes=%s", count, bytes)
}

// Allows reports whether inc fits. A ceiling of Unlimited always passes;
// otherwise current+inc must not exceed it. Count and bytes are checked independently.
func (q QuotaSnapshot) Allows(inc QuotaIncrement) bool {
	return fits(q.CurrentCount, inc.Count, q.MaxCount) &&
		fits(q.CurrentBytes, inc.Bytes, q.MaxBytes)
}

func fits(current, inc, limit int64) bool {
	if limit == Unlimited {
		return true
	}
	return current+inc <= limit
}

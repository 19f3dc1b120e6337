package reconcile

import (
	"time"

	"github.com/beevik/ntp"
)

const (
	defaultNTPPool      = "pool.ntp.org"
	defaultNTPThreshold = 500 * time.Millisecond
)

// ClockStatus reports host clock health. A skewed clock breaks the
// self-signed certificate's validity window, so doctor surfaces it.
type ClockStatus struct {
	Offset    time.Duration
	Healthy   bool
	Error     string
	CheckedAt time.Time
}

// CheckClock queries the NTP pool once and classifies the offset.
func CheckClock(pool string) ClockStatus {
	if pool == "" {
		pool = defaultNTPPool
	}

	resp, err := ntp.Query(pool)
	now := time.Now()
	if err != nil {
		return ClockStatus{Error: err.Error(), CheckedAt: now}
	}

	offset := resp.ClockOffset
	if offset < 0 {
		offset = -offset
	}
	return ClockStatus{
		Offset:    resp.ClockOffset,
		Healthy:   offset < defaultNTPThreshold,
		CheckedAt: now,
	}
}

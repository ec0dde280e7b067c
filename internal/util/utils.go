package util

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewBatchID tags every message created by one send call.
func NewBatchID() string {
	// ULID is sortable (nice for dashboards)
	t := time.Now().UTC()
	return "batch_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NowUTC() time.Time {
	return time.Now().UTC()
}

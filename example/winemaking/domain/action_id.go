package domain

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	actionIDMu      sync.Mutex
	actionIDEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewActionID returns a fresh action ID: a monotonic ULID, so lexicographic
// order of IDs matches the order they were handed out. This is what makes the
// action ID a valid tiebreaker between events sharing a timestamp.
func NewActionID() string {
	actionIDMu.Lock()
	defer actionIDMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), actionIDEntropy).String()
}

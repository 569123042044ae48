// Package ids generates human-facing business numbers for dispatches,
// transfers and sessions. They are lexicographically sortable by creation
// time, unlike the uuid primary keys.
package ids

import (
	"fmt"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Number returns a prefixed business number, e.g. "TRF-01J8ZQ...".
func Number(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, New())
}

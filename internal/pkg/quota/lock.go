package quota

import (
	"math/rand"
	"sync"
	"time"
)

// LockRoller decides whether a freshly created assistant message starts
// locked. It exists as an interface so tests can pin the outcome instead of
// depending on an uninjectable random source.
type LockRoller interface {
	ShouldLock(probability float64) bool
}

type randRoller struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewLockRoller returns a roller driven by a seeded random source.
func NewLockRoller(seed int64) LockRoller {
	return &randRoller{rnd: rand.New(rand.NewSource(seed))}
}

// NewDefaultLockRoller returns a time-seeded roller for production use.
func NewDefaultLockRoller() LockRoller {
	return NewLockRoller(time.Now().UnixNano())
}

func (r *randRoller) ShouldLock(probability float64) bool {
	if probability <= 0 {
		return false
	}
	if probability >= 1 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float64() < probability
}

package ring

import (
	mathrand "math/rand"
	"sync"
	"time"
)

// Random is a math/rand source safe for use by concurrent groups.
type Random struct {
	mu  sync.Mutex
	rnd *mathrand.Rand
}

func NewRandom(seed int64) *Random {
	return &Random{rnd: mathrand.New(mathrand.NewSource(seed))}
}

// Between returns a uniform value in [min, max]. It returns min when max <= min.
func (r *Random) Between(min, max float64) float64 {
	if max <= min {
		return min
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return min + r.rnd.Float64()*(max-min)
}

// Duration returns a uniform duration in [min, max].
func (r *Random) Duration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return min + time.Duration(r.rnd.Int63n(int64(max-min)+1))
}

package domain

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

const referenceSuffixes = 1000

// ReferenceGenerator produces backend payment references of the form
// PAY + yyyyMMddHHmmss + 3-digit milliseconds + 3-digit random suffix.
// References from one generator never repeat; uniqueness across processes
// is enforced by the database and the caller retries on conflict.
type ReferenceGenerator struct {
	mu     sync.Mutex
	now    func() time.Time
	sleep  func(time.Duration)
	lastMs int64
	used   map[int]struct{}
}

// NewReferenceGenerator creates a generator on the wall clock.
func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{now: time.Now, sleep: time.Sleep, used: make(map[int]struct{})}
}

// Next returns a fresh reference.
func (g *ReferenceGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		ms := g.now().UTC().UnixMilli()
		if ms < g.lastMs {
			ms = g.lastMs
		}
		if ms != g.lastMs {
			g.lastMs = ms
			clear(g.used)
		}

		if len(g.used) < referenceSuffixes {
			suffix := g.freeSuffix()
			g.used[suffix] = struct{}{}
			return formatReference(time.UnixMilli(ms).UTC(), suffix)
		}

		// Every suffix in this millisecond is taken.
		g.sleep(time.Millisecond)
		if g.now().UTC().UnixMilli() <= g.lastMs {
			g.lastMs++
			clear(g.used)
		}
	}
}

func (g *ReferenceGenerator) freeSuffix() int {
	start := rand.IntN(referenceSuffixes)
	for i := 0; i < referenceSuffixes; i++ {
		candidate := (start + i) % referenceSuffixes
		if _, taken := g.used[candidate]; !taken {
			return candidate
		}
	}
	return start
}

func formatReference(t time.Time, suffix int) string {
	return fmt.Sprintf("PAY%s%03d%03d", t.Format("20060102150405"), t.Nanosecond()/int(time.Millisecond), suffix)
}

package diskcache

import (
	"fmt"
	"sync/atomic"
)

// stats holds the cache's atomic counters: size in bytes, and the
// hit/miss counters from get. These are read and written without the
// cache's map lock, per the concurrency model's "size_bytes and the
// hit/miss counters are atomic integers" rule.
type stats struct {
	sizeBytes atomic.Int64
	maxBytes  atomic.Int64
	hits      atomic.Int64
	misses    atomic.Int64
}

func (s *stats) addSize(delta int64) {
	s.sizeBytes.Add(delta)
}

func (s *stats) hit() {
	s.hits.Add(1)
}

func (s *stats) miss() {
	s.misses.Add(1)
}

// Stats is a point-in-time snapshot of a Cache's size and hit-rate
// counters, returned by [Cache.Stats].
type Stats struct {
	MaxBytes  int64
	MaxCount  int
	SizeBytes int64
	Count     int
	Hits      int64
	Misses    int64
}

// HitRate returns Hits / (Hits + Misses) as a percentage, or 0 if there
// have been no lookups yet.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total) * 100
}

// String renders the snapshot as "Cache[max_bytes=…,hits=…,misses=…,hitRate=…%]".
func (s Stats) String() string {
	return fmt.Sprintf("Cache[max_bytes=%d,hits=%d,misses=%d,hitRate=%.2f%%]",
		s.MaxBytes, s.Hits, s.Misses, s.HitRate())
}

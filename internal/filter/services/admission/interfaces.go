package admission

import (
	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist"
)

// DecisionCache memoizes decisions by request key. Implementations must be
// safe for concurrent use.
type DecisionCache interface {
	Get(key domain.CacheKey) (blocked bool, ok bool)
	Put(key domain.CacheKey, blocked bool)
	Len() int
	Purge()
	Stats() filterlist.CacheStats
}

// Recorder observes decisions for metrics.
type Recorder interface {
	ObserveDecision(stage string, blocked bool)
}

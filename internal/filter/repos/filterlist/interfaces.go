package filterlist

import "github.com/haukened/rr-filter/internal/filter/domain"

// BloomFactory builds a Bloom filter holding keys, sized for the target
// false-positive rate. The returned probe is never written to again.
type BloomFactory interface {
	Build(keys []string, fpRate float64) domain.SuffixProbe
}

// MetaStore persists per-source fetch metadata.
type MetaStore interface {
	Get(id domain.SourceID) (domain.SourceMeta, bool, error)
	Put(id domain.SourceID, meta domain.SourceMeta) error
	Close() error
}

package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist"
)

// factory implements filterlist.BloomFactory on bits-and-blooms filters.
type factory struct{}

// NewFactory returns a BloomFactory.
func NewFactory() filterlist.BloomFactory { return factory{} }

// Build sizes a filter for len(keys) entries at fpRate, adds every key and
// returns it frozen. Rates outside (0, 1) fall back to filterlist.DefaultFPRate.
func (factory) Build(keys []string, fpRate float64) domain.SuffixProbe {
	if !(fpRate > 0 && fpRate < 1) {
		fpRate = filterlist.DefaultFPRate
	}
	n := uint(len(keys))
	if n == 0 {
		n = 1
	}
	bf := bitsbloom.NewWithEstimates(n, fpRate)
	for _, k := range keys {
		bf.AddString(k)
	}
	return &filter{bf: bf}
}

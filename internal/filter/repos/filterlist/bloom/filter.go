package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"
)

// filter is a host-suffix probe attached to a published FilterSet. It is
// immutable once Build returns, so concurrent MightContain calls need no
// locking.
type filter struct {
	bf *bitsbloom.BloomFilter
}

func (f *filter) MightContain(key []byte) bool {
	return f.bf.Test(key)
}

// params reports the bit count and hash count chosen for the filter.
func (f *filter) params() (m, k uint) {
	return f.bf.Cap(), f.bf.K()
}

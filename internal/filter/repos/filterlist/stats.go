package filterlist

// CacheStats reports lightweight cache metrics.
// All fields are best-effort snapshots and may be updated concurrently.
type CacheStats struct {
	Capacity  int    `json:"capacity"`  // configured capacity (0 for disabled cache)
	Size      int    `json:"size"`      // current number of entries
	Hits      uint64 `json:"hits"`      // total cache hits since construction
	Misses    uint64 `json:"misses"`    // total cache misses since construction
	Evictions uint64 `json:"evictions"` // total evictions since construction
}

// CompileStats summarizes one compilation.
type CompileStats struct {
	Lines        int            `json:"lines"`
	BlockRules   int            `json:"block_rules"`
	Exceptions   int            `json:"exception_rules"`
	GlobalRules  int            `json:"global_block_rules"`
	IndexedKeys  int            `json:"indexed_suffixes"`
	Rejected     map[string]int `json:"rejected"` // keyed by rejection reason
	Version      uint64         `json:"version"`
	DurationNano int64          `json:"duration_ns"`
}

// Accepted returns the number of lines that produced a rule.
func (s CompileStats) Accepted() int { return s.BlockRules + s.Exceptions }

// RejectedTotal sums rejections over all reasons.
func (s CompileStats) RejectedTotal() int {
	var n int
	for _, c := range s.Rejected {
		n += c
	}
	return n
}

package domain

import "time"

// SuffixProbe answers approximate membership for host-index keys. A false
// result means the key is definitely absent.
type SuffixProbe interface {
	MightContain(key []byte) bool
}

// FilterSet is an immutable compiled snapshot of all loaded rules.
//
// HostIndex maps a host suffix to the rules anchored on it; the slices
// reference rules in BlockRules and ExceptionRules. GlobalBlockRules holds the
// block rules without host suffixes. A nil Probe means every suffix is looked
// up in HostIndex.
type FilterSet struct {
	BlockRules       []*Rule
	ExceptionRules   []*Rule
	GlobalBlockRules []*Rule
	HostIndex        map[string][]*Rule
	Probe            SuffixProbe
	Version          uint64
	CompiledAt       time.Time
}

// EmptyFilterSet returns a set with no rules.
func EmptyFilterSet() *FilterSet {
	return &FilterSet{HostIndex: map[string][]*Rule{}}
}

// Len returns the total number of rules.
func (s *FilterSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.BlockRules) + len(s.ExceptionRules)
}

// IndexedRules returns the rules indexed under suffix, consulting the probe
// first when one is attached.
func (s *FilterSet) IndexedRules(suffix string) []*Rule {
	if s == nil || len(s.HostIndex) == 0 {
		return nil
	}
	if s.Probe != nil && !s.Probe.MightContain([]byte(suffix)) {
		return nil
	}
	return s.HostIndex[suffix]
}

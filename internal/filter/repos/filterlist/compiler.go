package filterlist

import (
	"sync/atomic"

	"github.com/haukened/rr-filter/internal/filter/common/clock"
	"github.com/haukened/rr-filter/internal/filter/common/log"
	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist/parsers"
)

// DefaultFPRate is the Bloom false-positive target used when none is set.
const DefaultFPRate = 0.01

// Compile parses lines and builds a FilterSet without a probe or version.
// Lines that do not parse are dropped.
func Compile(lines []string) *domain.FilterSet {
	set, _ := compile(lines, nil, 0)
	return set
}

// Compiler builds FilterSets, attaching a Bloom probe over the host index
// and stamping each set with a monotonically increasing version.
type Compiler struct {
	bloom   BloomFactory
	fpRate  float64
	clock   clock.Clock
	logger  log.Logger
	version atomic.Uint64
}

// CompilerOptions configures a Compiler. Nil Bloom disables the probe.
type CompilerOptions struct {
	Bloom  BloomFactory
	FPRate float64
	Clock  clock.Clock
	Logger log.Logger
}

// NewCompiler constructs a Compiler.
func NewCompiler(opts CompilerOptions) *Compiler {
	c := &Compiler{
		bloom:  opts.Bloom,
		fpRate: opts.FPRate,
		clock:  opts.Clock,
		logger: opts.Logger,
	}
	if !(c.fpRate > 0 && c.fpRate < 1) {
		c.fpRate = DefaultFPRate
	}
	if c.clock == nil {
		c.clock = &clock.RealClock{}
	}
	if c.logger == nil {
		c.logger = log.NewNoopLogger()
	}
	return c
}

// Compile builds a new FilterSet from lines. It is safe for concurrent use;
// each call produces an independent set.
func (c *Compiler) Compile(lines []string) (*domain.FilterSet, CompileStats) {
	start := c.clock.Now()
	version := c.version.Add(1)
	set, stats := compile(lines, c.bloom, c.fpRate)
	set.Version = version
	set.CompiledAt = start
	stats.Version = version
	stats.DurationNano = c.clock.Now().Sub(start).Nanoseconds()

	c.logger.Debug(map[string]any{
		"version":    version,
		"lines":      stats.Lines,
		"block":      stats.BlockRules,
		"exceptions": stats.Exceptions,
		"global":     stats.GlobalRules,
		"suffixes":   stats.IndexedKeys,
		"rejected":   stats.RejectedTotal(),
	}, "filterset_compiled")
	return set, stats
}

func compile(lines []string, factory BloomFactory, fpRate float64) (*domain.FilterSet, CompileStats) {
	stats := CompileStats{Lines: len(lines), Rejected: map[string]int{}}
	set := &domain.FilterSet{HostIndex: make(map[string][]*domain.Rule)}

	for _, line := range lines {
		r, err := parsers.Parse(line)
		if err != nil {
			stats.Rejected[string(parsers.Reason(err))]++
			continue
		}
		if r.IsBlock {
			set.BlockRules = append(set.BlockRules, r)
			if len(r.HostSuffixes) == 0 {
				set.GlobalBlockRules = append(set.GlobalBlockRules, r)
			}
		} else {
			set.ExceptionRules = append(set.ExceptionRules, r)
		}
		for _, s := range r.HostSuffixes {
			set.HostIndex[s] = append(set.HostIndex[s], r)
		}
	}

	stats.BlockRules = len(set.BlockRules)
	stats.Exceptions = len(set.ExceptionRules)
	stats.GlobalRules = len(set.GlobalBlockRules)
	stats.IndexedKeys = len(set.HostIndex)

	if factory != nil && len(set.HostIndex) > 0 {
		keys := make([]string, 0, len(set.HostIndex))
		for s := range set.HostIndex {
			keys = append(keys, s)
		}
		set.Probe = factory.Build(keys, fpRate)
	}
	return set, stats
}

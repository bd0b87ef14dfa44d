package admission

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haukened/rr-filter/internal/filter/common/log"
	"github.com/haukened/rr-filter/internal/filter/common/utils"
	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist"
)

// Engine answers admission checks against the currently published FilterSet.
// Readers copy the snapshot pointer under mu and evaluate outside it.
type Engine struct {
	mu  sync.Mutex
	set *domain.FilterSet

	cache       DecisionCache
	logger      log.Logger
	recorder    Recorder
	purgeOnSwap bool

	evaluations atomic.Uint64
	decisions   atomic.Uint64
	matchErrors atomic.Uint64
}

// Options configures an Engine. A nil Cache disables memoization; a nil
// Initial set starts the engine with no rules.
type Options struct {
	Cache            DecisionCache
	Logger           log.Logger
	Recorder         Recorder
	PurgeCacheOnSwap bool
	Initial          *domain.FilterSet
}

// Stats is a point-in-time view of engine counters.
type Stats struct {
	Evaluations    uint64                `json:"evaluations"`
	Decisions      uint64                `json:"decisions"`
	MatchErrors    uint64                `json:"match_errors"`
	Cache          filterlist.CacheStats `json:"cache"`
	Version        uint64                `json:"version"`
	CompiledAt     time.Time             `json:"compiled_at"`
	BlockRules     int                   `json:"block_rules"`
	ExceptionRules int                   `json:"exception_rules"`
	GlobalRules    int                   `json:"global_block_rules"`
}

// New constructs an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		set:         opts.Initial,
		cache:       opts.Cache,
		logger:      opts.Logger,
		recorder:    opts.Recorder,
		purgeOnSwap: opts.PurgeCacheOnSwap,
	}
	if e.set == nil {
		e.set = domain.EmptyFilterSet()
	}
	if e.cache == nil {
		e.cache = noCache{}
	}
	if e.logger == nil {
		e.logger = log.NewNoopLogger()
	}
	if e.recorder == nil {
		e.recorder = nopRecorder{}
	}
	return e
}

// ShouldBlock reports whether req must be blocked. It never performs I/O and
// never panics because of a rule.
func (e *Engine) ShouldBlock(req domain.RequestContext) bool {
	return e.Decide(req).Blocked
}

// Decide runs the admission check and returns the full decision.
//
// Order, stopping at the first answer:
// - decision cache
// - exception rules (an exception always wins)
// - block rules indexed under each label suffix of the host, most specific first
// - global block rules without a host suffix
// - allow
func (e *Engine) Decide(req domain.RequestContext) domain.Decision {
	e.decisions.Add(1)
	key := req.CacheKey()
	if blocked, ok := e.cache.Get(key); ok {
		d := domain.Decision{Blocked: blocked, Stage: domain.StageCache}
		e.recorder.ObserveDecision(d.Stage.String(), d.Blocked)
		return d
	}

	thirdParty := req.IsThirdParty()
	set := e.Snapshot()

	d := e.evaluate(set, req, thirdParty)
	e.cache.Put(key, d.Blocked)
	e.recorder.ObserveDecision(d.Stage.String(), d.Blocked)
	if d.Blocked {
		e.logger.Debug(map[string]any{
			"host":  req.Host,
			"class": d.Class.String(),
			"stage": d.Stage.String(),
		}, "request_blocked")
	}
	return d
}

func (e *Engine) evaluate(set *domain.FilterSet, req domain.RequestContext, thirdParty bool) domain.Decision {
	for _, r := range set.ExceptionRules {
		if e.matches(r, req, thirdParty) {
			return decisionFor(r, false, domain.StageException)
		}
	}

	var hit *domain.Rule
	utils.VisitSuffixes(req.Host, func(suffix string) bool {
		for _, r := range set.IndexedRules(suffix) {
			if r == nil || !r.IsBlock {
				continue
			}
			if e.matches(r, req, thirdParty) {
				hit = r
				return false
			}
		}
		return true
	})
	if hit != nil {
		return decisionFor(hit, true, domain.StageHostIndex)
	}

	for _, r := range set.GlobalBlockRules {
		if e.matches(r, req, thirdParty) {
			return decisionFor(r, true, domain.StageGlobal)
		}
	}
	return domain.AllowDecision()
}

func decisionFor(r *domain.Rule, blocked bool, stage domain.Stage) domain.Decision {
	return domain.Decision{Blocked: blocked, Stage: stage, Rule: r.Text, Class: r.Class()}
}

// matches evaluates one rule; a failing rule is a non-match.
func (e *Engine) matches(r *domain.Rule, req domain.RequestContext, thirdParty bool) bool {
	ok, err := e.safeMatch(r, req, thirdParty)
	if err != nil {
		e.matchErrors.Add(1)
		e.logger.Warn(map[string]any{"host": req.Host, "error": err}, "rule_match_failed")
		return false
	}
	return ok
}

func (e *Engine) safeMatch(r *domain.Rule, req domain.RequestContext, thirdParty bool) (matched bool, err error) {
	e.evaluations.Add(1)
	defer func() {
		if v := recover(); v != nil {
			matched, err = false, fmt.Errorf("rule %s: recovered: %v", ruleText(r), v)
		}
	}()
	return r.Matches(req, thirdParty), nil
}

func ruleText(r *domain.Rule) string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%q", r.Text)
}

// Publish atomically replaces the active FilterSet. Decisions already in
// flight finish against the set they started with. The decision cache is
// kept unless the engine was built with PurgeCacheOnSwap, so cached answers
// from the previous set may outlive it until evicted.
func (e *Engine) Publish(set *domain.FilterSet) {
	if set == nil {
		set = domain.EmptyFilterSet()
	}
	e.mu.Lock()
	prev := e.set
	e.set = set
	e.mu.Unlock()

	if e.purgeOnSwap {
		e.cache.Purge()
	}
	e.logger.Info(map[string]any{
		"version":      set.Version,
		"prev_version": prev.Version,
		"rules":        set.Len(),
		"purged_cache": e.purgeOnSwap,
	}, "filterset_published")
}

// Snapshot returns the active FilterSet.
func (e *Engine) Snapshot() *domain.FilterSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set
}

// Stats returns engine counters together with cache and snapshot details.
func (e *Engine) Stats() Stats {
	set := e.Snapshot()
	return Stats{
		Evaluations:    e.evaluations.Load(),
		Decisions:      e.decisions.Load(),
		MatchErrors:    e.matchErrors.Load(),
		Cache:          e.cache.Stats(),
		Version:        set.Version,
		CompiledAt:     set.CompiledAt,
		BlockRules:     len(set.BlockRules),
		ExceptionRules: len(set.ExceptionRules),
		GlobalRules:    len(set.GlobalBlockRules),
	}
}

type noCache struct{}

func (noCache) Get(domain.CacheKey) (bool, bool) { return false, false }
func (noCache) Put(domain.CacheKey, bool)        {}
func (noCache) Len() int                         { return 0 }
func (noCache) Purge()                           {}
func (noCache) Stats() filterlist.CacheStats     { return filterlist.CacheStats{} }

type nopRecorder struct{}

func (nopRecorder) ObserveDecision(string, bool) {}

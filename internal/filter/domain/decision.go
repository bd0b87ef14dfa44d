package domain

import "fmt"

// Stage names the step of the admission check that produced a decision.
type Stage uint8

const (
	// StageNone means no rule matched and the request is allowed.
	StageNone Stage = iota
	// StageCache means the decision came from the decision cache.
	StageCache
	// StageException means an exception rule allowed the request.
	StageException
	// StageHostIndex means a host-anchored block rule matched.
	StageHostIndex
	// StageGlobal means a block rule without a host anchor matched.
	StageGlobal
)

func (s Stage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StageCache:
		return "cache"
	case StageException:
		return "exception"
	case StageHostIndex:
		return "hostindex"
	case StageGlobal:
		return "global"
	default:
		return fmt.Sprintf("Stage(%d)", s)
	}
}

// Decision is the outcome of an admission check.
// Pure value type, no external dependencies.
type Decision struct {
	Blocked bool
	Stage   Stage
	Rule    string // original text of the deciding rule, empty for cache hits and defaults
	Class   RuleClass
}

// IsBlocked is a convenience accessor.
func (d Decision) IsBlocked() bool { return d.Blocked }

// AllowDecision returns a not-blocked decision reached without a rule match.
func AllowDecision() Decision { return Decision{Stage: StageNone} }

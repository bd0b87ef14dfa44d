package httpapi

import (
	"context"

	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist"
	"github.com/haukened/rr-filter/internal/filter/services/admission"
)

// Decider answers admission checks.
type Decider interface {
	Decide(req domain.RequestContext) domain.Decision
	Stats() admission.Stats
}

// SourceLister reports filter list sources and their refresh state.
type SourceLister interface {
	Sources() []domain.SourceStatus
}

// Refresher triggers a synchronous refresh of every source.
type Refresher interface {
	Refresh(ctx context.Context) (filterlist.CompileStats, error)
}

// CustomRuleEditor edits the user's custom rules.
type CustomRuleEditor interface {
	CustomRules() []string
	AddCustomRule(rule string) (filterlist.CompileStats, error)
	RemoveCustomRule(rule string) (filterlist.CompileStats, error)
}

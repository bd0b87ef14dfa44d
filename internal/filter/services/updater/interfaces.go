package updater

import (
	"context"

	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/gateways/fetch"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist"
)

// ListFiles reads and writes the local copies of filter lists.
type ListFiles interface {
	ReadLines(name string) ([]string, error)
	WriteAtomic(name string, data []byte) error
	EnsureFile(name string, content []byte) (bool, error)
}

// Fetcher downloads a remote list with conditional GET support.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (fetch.Result, error)
}

// Compiler turns rule lines into a FilterSet.
type Compiler interface {
	Compile(lines []string) (*domain.FilterSet, filterlist.CompileStats)
}

// Publisher receives every newly compiled FilterSet.
type Publisher interface {
	Publish(set *domain.FilterSet)
}

// Recorder observes refresh outcomes and published set sizes.
type Recorder interface {
	ObserveRefresh(source, result string)
	SetRules(block, exception, global int)
}

package updater

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/errors"

	"github.com/haukened/rr-filter/internal/filter/common/clock"
	"github.com/haukened/rr-filter/internal/filter/common/log"
	"github.com/haukened/rr-filter/internal/filter/common/utils"
	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/gateways/fetch"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist/localfs"
)

// RefreshInterval is the fixed period between remote refreshes.
const RefreshInterval = 24 * time.Hour

// Refresh outcome labels.
const (
	resultUpdated     = "updated"
	resultNotModified = "not_modified"
	resultError       = "error"
)

// DefaultSources returns the general, privacy and custom sources with the
// standard file names.
func DefaultSources(generalURL, privacyURL string) []domain.Source {
	return []domain.Source{
		{ID: domain.SourceGeneral, File: "easylist.txt", URL: generalURL},
		{ID: domain.SourcePrivacy, File: "easyprivacy.txt", URL: privacyURL},
		{ID: domain.SourceCustom, File: "custom_rules.txt"},
	}
}

// Options configures an Updater. Meta and Recorder are optional.
type Options struct {
	Sources   []domain.Source
	Files     ListFiles
	Fetcher   Fetcher
	Compiler  Compiler
	Publisher Publisher
	Meta      filterlist.MetaStore
	Recorder  Recorder
	Clock     clock.Clock
	Logger    log.Logger
}

// Updater keeps the published FilterSet in sync with local files and remote
// lists. Load and Refresh are serialized; Run drives Refresh on a schedule.
type Updater struct {
	mu sync.Mutex

	sources   []domain.Source
	files     ListFiles
	fetcher   Fetcher
	compiler  Compiler
	publisher Publisher
	meta      filterlist.MetaStore
	recorder  Recorder
	clock     clock.Clock
	logger    log.Logger

	interval time.Duration
	after    func(time.Duration) <-chan time.Time

	lines  map[domain.SourceID][]string
	status map[domain.SourceID]domain.SourceMeta
}

// New validates opts and constructs an Updater.
func New(opts Options) (*Updater, error) {
	if opts.Files == nil || opts.Compiler == nil || opts.Publisher == nil {
		return nil, fmt.Errorf("updater: files, compiler and publisher are required")
	}
	if len(opts.Sources) == 0 {
		return nil, fmt.Errorf("updater: no sources configured")
	}
	seen := map[domain.SourceID]bool{}
	for _, s := range opts.Sources {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("updater: %w", err)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("updater: duplicate source %s", s.ID)
		}
		seen[s.ID] = true
		if s.IsRemote() && opts.Fetcher == nil {
			return nil, fmt.Errorf("updater: source %s is remote but no fetcher is set", s.ID)
		}
	}

	u := &Updater{
		sources:   opts.Sources,
		files:     opts.Files,
		fetcher:   opts.Fetcher,
		compiler:  opts.Compiler,
		publisher: opts.Publisher,
		meta:      opts.Meta,
		recorder:  opts.Recorder,
		clock:     opts.Clock,
		logger:    opts.Logger,
		interval:  RefreshInterval,
		after:     time.After,
		lines:     make(map[domain.SourceID][]string),
		status:    make(map[domain.SourceID]domain.SourceMeta),
	}
	if u.clock == nil {
		u.clock = &clock.RealClock{}
	}
	if u.logger == nil {
		u.logger = log.NewNoopLogger()
	}
	if u.recorder == nil {
		u.recorder = nopRecorder{}
	}
	return u, nil
}

// Load reads every source from disk, creating the custom rules file when it
// is missing, then compiles and publishes. A source that cannot be read is
// empty for this load.
func (u *Updater) Load() filterlist.CompileStats {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, src := range u.sources {
		u.status[src.ID] = u.loadMeta(src.ID)
		if src.ID == domain.SourceCustom {
			u.ensureCustom(src)
		}
		u.lines[src.ID] = u.readSource(src)
	}
	return u.publishLocked()
}

// Refresh fetches every remote source, re-reads local-only sources and
// publishes a new FilterSet. Failed fetches keep the previous lines; their
// errors are joined into the returned error.
func (u *Updater) Refresh(ctx context.Context) (filterlist.CompileStats, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	var errs []error
	for _, src := range u.sources {
		if !src.IsRemote() {
			continue
		}
		if err := u.refreshSource(ctx, src); err != nil {
			errs = append(errs, err)
		}
	}
	for _, src := range u.sources {
		if src.IsRemote() {
			continue
		}
		if src.ID == domain.SourceCustom {
			u.ensureCustom(src)
		}
		u.lines[src.ID] = u.readSource(src)
	}
	return u.publishLocked(), errors.Join(errs...)
}

// Run refreshes immediately when a remote source is stale, then every
// RefreshInterval until ctx is cancelled. It returns ctx.Err().
func (u *Updater) Run(ctx context.Context) error {
	u.logger.Info(map[string]any{"interval": u.interval.String()}, "updater_started")
	wait := u.nextDelay()
	for {
		if wait > 0 {
			select {
			case <-ctx.Done():
				u.logger.Info(nil, "updater_stopped")
				return ctx.Err()
			case <-u.after(wait):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		stats, err := u.Refresh(ctx)
		fields := map[string]any{"version": stats.Version, "rules": stats.Accepted()}
		if err != nil {
			fields["error"] = err
			u.logger.Warn(fields, "refresh_partial_failure")
		} else {
			u.logger.Info(fields, "refresh_done")
		}
		wait = u.interval
	}
}

// Sources reports every configured source with its current metadata.
func (u *Updater) Sources() []domain.SourceStatus {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]domain.SourceStatus, 0, len(u.sources))
	for _, src := range u.sources {
		m := u.status[src.ID]
		m.Lines = len(u.lines[src.ID])
		out = append(out, domain.SourceStatus{Source: src, Meta: m})
	}
	return out
}

// nextDelay returns 0 when any remote source is stale, otherwise the time
// until the oldest remote source becomes stale.
func (u *Updater) nextDelay() time.Duration {
	u.mu.Lock()
	defer u.mu.Unlock()
	now := u.clock.Now()
	wait := u.interval
	for _, src := range u.sources {
		if !src.IsRemote() {
			continue
		}
		m, ok := u.status[src.ID]
		if !ok {
			m = u.loadMeta(src.ID)
			u.status[src.ID] = m
		}
		if m.Stale(now, u.interval) {
			return 0
		}
		if left := u.interval - now.Sub(m.LastSuccess); left < wait {
			wait = left
		}
	}
	return wait
}

func (u *Updater) refreshSource(ctx context.Context, src domain.Source) error {
	m := u.status[src.ID]
	m.LastAttempt = u.clock.Now()

	req := fetch.Request{URL: src.URL, ETag: m.ETag, LastModified: m.LastModified}
	if len(u.lines[src.ID]) == 0 {
		// Nothing to keep on a 304; ask for the full list.
		req.ETag, req.LastModified = "", ""
	}
	res, err := u.fetcher.Fetch(ctx, req)
	if err != nil {
		return u.failRefresh(src, m, err)
	}

	var lines []string
	if !res.NotModified {
		if lines, err = utils.SplitLines(res.Body); err != nil {
			return u.failRefresh(src, m, fmt.Errorf("splitting body: %w", err))
		}
	}

	m.ConsecutiveFailures = 0
	m.LastError = ""
	m.LastSuccess = m.LastAttempt
	m.ETag = res.ETag
	m.LastModified = res.LastModified

	if res.NotModified {
		u.saveMeta(src.ID, m)
		u.recorder.ObserveRefresh(string(src.ID), resultNotModified)
		u.logger.Debug(map[string]any{"source": src.ID}, "refresh_not_modified")
		return nil
	}

	if err := u.files.WriteAtomic(src.File, res.Body); err != nil {
		// The fresh lines are still used; the old file stays on disk.
		m.LastError = err.Error()
		u.logger.Error(map[string]any{"source": src.ID, "file": src.File, "error": err}, "refresh_write_failed")
	}
	u.lines[src.ID] = lines
	m.Lines = len(lines)
	u.saveMeta(src.ID, m)
	u.recorder.ObserveRefresh(string(src.ID), resultUpdated)
	u.logger.Info(map[string]any{"source": src.ID, "lines": len(lines), "bytes": len(res.Body)}, "refresh_updated")
	return nil
}

// failRefresh records a failed refresh of src. The previous lines stay in
// use.
func (u *Updater) failRefresh(src domain.Source, m domain.SourceMeta, err error) error {
	m.ConsecutiveFailures++
	m.LastError = err.Error()
	u.saveMeta(src.ID, m)
	u.recorder.ObserveRefresh(string(src.ID), resultError)
	u.logger.Warn(map[string]any{
		"source":   src.ID,
		"url":      src.URL,
		"failures": m.ConsecutiveFailures,
		"error":    err,
	}, "refresh_fetch_failed")
	return fmt.Errorf("source %s: %w", src.ID, err)
}

func (u *Updater) readSource(src domain.Source) []string {
	lines, err := u.files.ReadLines(src.File)
	switch {
	case errors.Is(err, localfs.ErrNotExist):
		u.logger.Debug(map[string]any{"source": src.ID, "file": src.File}, "source_file_missing")
		return nil
	case err != nil:
		u.logger.Error(map[string]any{"source": src.ID, "file": src.File, "error": err}, "source_read_failed")
		return nil
	}
	return lines
}

func (u *Updater) ensureCustom(src domain.Source) {
	created, err := u.files.EnsureFile(src.File, []byte(localfs.DefaultCustomRules))
	if err != nil {
		u.logger.Error(map[string]any{"file": src.File, "error": err}, "custom_rules_create_failed")
		return
	}
	if created {
		u.logger.Info(map[string]any{"file": src.File}, "custom_rules_created")
	}
}

// publishLocked concatenates sources in configured order, compiles and
// publishes. u.mu must be held.
func (u *Updater) publishLocked() filterlist.CompileStats {
	var n int
	for _, src := range u.sources {
		n += len(u.lines[src.ID])
	}
	all := make([]string, 0, n)
	for _, src := range u.sources {
		all = append(all, u.lines[src.ID]...)
	}

	set, stats := u.compiler.Compile(all)
	u.publisher.Publish(set)
	u.recorder.SetRules(stats.BlockRules, stats.Exceptions, stats.GlobalRules)
	return stats
}

func (u *Updater) loadMeta(id domain.SourceID) domain.SourceMeta {
	if u.meta == nil {
		return u.status[id]
	}
	m, ok, err := u.meta.Get(id)
	if err != nil {
		u.logger.Warn(map[string]any{"source": id, "error": err}, "source_meta_read_failed")
		return u.status[id]
	}
	if !ok {
		return u.status[id]
	}
	return m
}

func (u *Updater) saveMeta(id domain.SourceID, m domain.SourceMeta) {
	u.status[id] = m
	if u.meta == nil {
		return
	}
	if err := u.meta.Put(id, m); err != nil {
		u.logger.Warn(map[string]any{"source": id, "error": err}, "source_meta_write_failed")
	}
}

type nopRecorder struct{}

func (nopRecorder) ObserveRefresh(string, string) {}
func (nopRecorder) SetRules(int, int, int)        {}

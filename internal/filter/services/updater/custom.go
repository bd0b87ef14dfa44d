package updater

import (
	"fmt"
	"strings"

	"github.com/AdguardTeam/golibs/errors"

	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist/parsers"
)

const (
	// ErrNoCustomSource is returned when no custom source is configured.
	ErrNoCustomSource errors.Error = "no custom rules source configured"

	// ErrInvalidRule wraps the parser's reason for rejecting a custom rule.
	ErrInvalidRule errors.Error = "invalid custom rule"

	// ErrRuleExists is returned when adding a rule that is already present.
	ErrRuleExists errors.Error = "custom rule already present"

	// ErrRuleNotFound is returned when removing a rule that is not present.
	ErrRuleNotFound errors.Error = "custom rule not found"
)

// CustomRules returns the rule lines of the custom source, without comments
// and blank lines.
func (u *Updater) CustomRules() []string {
	u.mu.Lock()
	defer u.mu.Unlock()

	var out []string
	for _, line := range u.lines[domain.SourceCustom] {
		if _, ok := parsers.ParseRule(line); ok {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}

// AddCustomRule appends rule to the custom rules file and publishes a new
// FilterSet. The rule must parse; a duplicate yields ErrRuleExists.
func (u *Updater) AddCustomRule(rule string) (filterlist.CompileStats, error) {
	rule = strings.TrimSpace(rule)
	if _, err := parsers.Parse(rule); err != nil {
		return filterlist.CompileStats{}, fmt.Errorf("%w: %w", ErrInvalidRule, err)
	}

	return u.editCustom(func(lines []string) ([]string, error) {
		for _, line := range lines {
			if strings.TrimSpace(line) == rule {
				return nil, ErrRuleExists
			}
		}
		return append(lines, rule), nil
	})
}

// RemoveCustomRule drops every line equal to rule from the custom rules file
// and publishes a new FilterSet. A missing rule yields ErrRuleNotFound.
func (u *Updater) RemoveCustomRule(rule string) (filterlist.CompileStats, error) {
	rule = strings.TrimSpace(rule)

	return u.editCustom(func(lines []string) ([]string, error) {
		kept := make([]string, 0, len(lines))
		for _, line := range lines {
			if strings.TrimSpace(line) != rule {
				kept = append(kept, line)
			}
		}
		if len(kept) == len(lines) {
			return nil, ErrRuleNotFound
		}
		return kept, nil
	})
}

// editCustom re-reads the custom file, applies edit, writes the result
// atomically and publishes. Nothing changes when edit or the write fails.
func (u *Updater) editCustom(edit func([]string) ([]string, error)) (stats filterlist.CompileStats, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	src, ok := u.customSource()
	if !ok {
		return stats, ErrNoCustomSource
	}

	u.ensureCustom(src)
	current := u.readSource(src)
	lines, err := edit(current)
	if err != nil {
		return stats, err
	}

	data := strings.Join(lines, "\n")
	if len(lines) > 0 {
		data += "\n"
	}
	if err = u.files.WriteAtomic(src.File, []byte(data)); err != nil {
		u.logger.Error(map[string]any{"file": src.File, "error": err}, "custom_rules_write_failed")
		return stats, fmt.Errorf("saving custom rules: %w", err)
	}

	u.lines[src.ID] = lines
	stats = u.publishLocked()
	u.logger.Info(map[string]any{
		"file":    src.File,
		"lines":   len(lines),
		"version": stats.Version,
	}, "custom_rules_saved")
	return stats, nil
}

func (u *Updater) customSource() (domain.Source, bool) {
	for _, src := range u.sources {
		if src.ID == domain.SourceCustom {
			return src, true
		}
	}
	return domain.Source{}, false
}

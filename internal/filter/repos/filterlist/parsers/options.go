package parsers

import (
	"fmt"
	"strings"

	"github.com/haukened/rr-filter/internal/filter/common/utils"
	"github.com/haukened/rr-filter/internal/filter/domain"
)

// applyOptions loads a comma-separated option list into r. Any option the
// engine does not model rejects the whole rule with ErrUnsupported. Negated
// resource types remove types from the rule's set.
func applyOptions(r *domain.Rule, options string) error {
	var include, exclude domain.ResourceTypeSet
	for _, opt := range strings.Split(options, ",") {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		name, value, hasValue := strings.Cut(opt, "=")
		name = strings.ToLower(strings.TrimSpace(name))

		switch name {
		case "third-party", "3p", "~first-party", "~1p":
			r.ThirdParty = domain.PartyThird
		case "~third-party", "~3p", "first-party", "1p":
			r.ThirdParty = domain.PartyFirst
		case "domain":
			inc, exc := parseDomainOption(value)
			r.IncludeDomains = append(r.IncludeDomains, inc...)
			r.ExcludeDomains = append(r.ExcludeDomains, exc...)
		default:
			negated := strings.HasPrefix(name, "~")
			t, ok := domain.LookupResourceOption(strings.TrimPrefix(name, "~"))
			if !ok || hasValue {
				return fmt.Errorf("%w: option %q", ErrUnsupported, opt)
			}
			if negated {
				exclude = exclude.Add(t)
			} else {
				include = include.Add(t)
			}
		}
	}

	if !exclude.IsEmpty() {
		if include.IsEmpty() {
			include = domain.AllResourceTypes
		}
		include = include.Without(exclude)
		if include.IsEmpty() {
			return fmt.Errorf("%w: resource type options exclude every type", ErrUnsupported)
		}
	}
	r.ResourceTypes = include
	return nil
}

// parseDomainOption splits "a.com|~b.a.com" into include and exclude lists.
func parseDomainOption(value string) (include, exclude []string) {
	for _, d := range strings.Split(value, "|") {
		d = strings.TrimSpace(d)
		negated := strings.HasPrefix(d, "~")
		d = utils.CanonicalHost(strings.TrimPrefix(d, "~"))
		if d == "" {
			continue
		}
		if negated {
			exclude = append(exclude, d)
		} else {
			include = append(include, d)
		}
	}
	return include, exclude
}

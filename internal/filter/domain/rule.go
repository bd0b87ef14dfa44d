package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/haukened/rr-filter/internal/filter/common/utils"
)

// PartyConstraint restricts a rule to first- or third-party requests.
type PartyConstraint uint8

const (
	// PartyAny places no constraint.
	PartyAny PartyConstraint = iota
	// PartyThird requires a third-party request.
	PartyThird
	// PartyFirst requires a first-party request.
	PartyFirst
)

func (p PartyConstraint) String() string {
	switch p {
	case PartyAny:
		return "any"
	case PartyThird:
		return "third-party"
	case PartyFirst:
		return "first-party"
	default:
		return fmt.Sprintf("PartyConstraint(%d)", p)
	}
}

// Allows reports whether a request with the given third-party status
// satisfies the constraint.
func (p PartyConstraint) Allows(thirdParty bool) bool {
	switch p {
	case PartyThird:
		return thirdParty
	case PartyFirst:
		return !thirdParty
	default:
		return true
	}
}

// RuleClass describes how a rule matches, for logs and decisions.
type RuleClass uint8

const (
	// RuleClassHostAnchor matches by host suffix, from a "||host^" rule.
	RuleClassHostAnchor RuleClass = iota
	// RuleClassPattern matches the URL against a regular expression.
	RuleClassPattern
)

func (c RuleClass) String() string {
	switch c {
	case RuleClassHostAnchor:
		return "hostanchor"
	case RuleClassPattern:
		return "pattern"
	default:
		return fmt.Sprintf("RuleClass(%d)", c)
	}
}

// Rule is one compiled filter directive.
//
// Notes:
// - HostSuffixes are canonical host names; a request host matches when it
//   equals one of them or is a subdomain of it.
// - Pattern, when set, is matched against the full request URL.
// - IncludeDomains and ExcludeDomains apply to the page host.
type Rule struct {
	Text           string
	Pattern        *regexp.Regexp
	HostSuffixes   []string
	IsBlock        bool
	ResourceTypes  ResourceTypeSet
	ThirdParty     PartyConstraint
	IncludeDomains []string
	ExcludeDomains []string
}

// Validate checks the rule carries something to match on.
func (r *Rule) Validate() error {
	if r == nil {
		return fmt.Errorf("rule must not be nil")
	}
	if r.Pattern == nil && len(r.HostSuffixes) == 0 {
		return fmt.Errorf("rule %q has neither pattern nor host suffixes", r.Text)
	}
	for _, s := range r.HostSuffixes {
		if s == "" {
			return fmt.Errorf("rule %q has an empty host suffix", r.Text)
		}
	}
	return nil
}

// Class returns RuleClassHostAnchor for rules anchored on host suffixes and
// RuleClassPattern otherwise.
func (r *Rule) Class() RuleClass {
	if len(r.HostSuffixes) > 0 {
		return RuleClassHostAnchor
	}
	return RuleClassPattern
}

// Matches evaluates the rule against req. thirdParty is the request's
// precomputed third-party status.
func (r *Rule) Matches(req RequestContext, thirdParty bool) bool {
	if !r.pageDomainAllowed(req.PageHost) {
		return false
	}
	if !r.ThirdParty.Allows(thirdParty) {
		return false
	}
	if !r.ResourceTypes.Allows(req.ResourceType) {
		return false
	}
	if len(r.HostSuffixes) > 0 && !r.matchesHost(req.Host) {
		return false
	}
	if r.Pattern != nil && !r.Pattern.MatchString(req.URL) {
		return false
	}
	return true
}

func (r *Rule) matchesHost(host string) bool {
	for _, s := range r.HostSuffixes {
		if utils.IsDomainOrSubdomain(host, s) {
			return true
		}
	}
	return false
}

// pageDomainAllowed applies domain= restrictions. With include domains set, a
// request without a page host never matches.
func (r *Rule) pageDomainAllowed(page string) bool {
	for _, d := range r.ExcludeDomains {
		if utils.IsDomainOrSubdomain(page, d) {
			return false
		}
	}
	if len(r.IncludeDomains) == 0 {
		return true
	}
	for _, d := range r.IncludeDomains {
		if utils.IsDomainOrSubdomain(page, d) {
			return true
		}
	}
	return false
}

func (r *Rule) String() string {
	kind := "block"
	if !r.IsBlock {
		kind = "exception"
	}
	return fmt.Sprintf("%s %s %s", kind, r.Class(), strings.TrimSpace(r.Text))
}

package parsers

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/haukened/rr-filter/internal/filter/common/utils"
	"github.com/haukened/rr-filter/internal/filter/domain"
)

// ParseRule parses one filter-list line. It returns false for blank lines,
// comments, cosmetic filters and any line that does not produce a valid rule.
func ParseRule(line string) (*domain.Rule, bool) {
	r, err := Parse(line)
	return r, err == nil
}

// Parse parses one filter-list line and reports why it was rejected. The
// returned error wraps one of the package's reason constants.
//
// Supported syntax:
// - "@@" prefix marks an exception rule
// - options after the last '$': resource types (negatable), third-party,
//   first-party, domain=; any other option rejects the line
// - "||host^" becomes a host-suffix rule without a regular expression
// - '*', '^', "||" and '|' anchors are translated into a regular expression
// - anything else is a case-insensitive substring of at least three characters
func Parse(line string) (*domain.Rule, error) {
	text := strings.TrimSpace(stripLineBOM(line))
	switch {
	case text == "":
		return nil, ErrEmpty
	case isComment(text):
		return nil, ErrComment
	case isCosmetic(text):
		return nil, ErrCosmetic
	}

	r := &domain.Rule{Text: text, IsBlock: true}
	body := text
	if strings.HasPrefix(body, maskException) {
		r.IsBlock = false
		body = body[len(maskException):]
	}

	pattern := body
	if !isRegexRule(body) {
		var options string
		pattern, options = splitOptions(body)
		if err := applyOptions(r, options); err != nil {
			return nil, fmt.Errorf("rule %q: %w", text, err)
		}
	}
	pattern = strings.TrimSpace(pattern)

	if err := translatePattern(r, pattern); err != nil {
		return nil, fmt.Errorf("rule %q: %w", text, err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPattern, err)
	}
	return r, nil
}

// translatePattern sets either HostSuffixes or Pattern on r.
func translatePattern(r *domain.Rule, pattern string) error {
	if isRegexRule(pattern) {
		return ErrUnsupported
	}
	if isMatchAll(pattern) {
		return ErrMatchAll
	}
	if host, ok := domainAnchor(pattern); ok {
		r.HostSuffixes = []string{host}
		return nil
	}

	var expr string
	if needsRegex(pattern) {
		expr = patternToRegexp(pattern)
	} else {
		if utf8.RuneCountInString(pattern) < minSubstringLen {
			return ErrTooShort
		}
		expr = regexp.QuoteMeta(pattern)
	}

	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadPattern, err)
	}
	r.Pattern = re
	return nil
}

// domainAnchor recognizes "||host^" where host is a plain host name and
// returns the canonical host.
func domainAnchor(pattern string) (string, bool) {
	if !strings.HasPrefix(pattern, maskDomainStart) || !strings.HasSuffix(pattern, "^") {
		return "", false
	}
	raw := pattern[len(maskDomainStart) : len(pattern)-1]
	if raw == "" || strings.ContainsAny(raw, "*/^|:?") {
		return "", false
	}
	host := utils.CanonicalHost(raw)
	if !utils.IsValidHostname(host) {
		return "", false
	}
	return host, true
}

// patternToRegexp translates ABP wildcard syntax into a regular expression
// without the case-insensitivity flag.
func patternToRegexp(pattern string) string {
	var b strings.Builder
	switch {
	case strings.HasPrefix(pattern, maskDomainStart):
		b.WriteString(regexStartURL)
		pattern = pattern[len(maskDomainStart):]
	case strings.HasPrefix(pattern, maskPipe):
		b.WriteString("^")
		pattern = pattern[len(maskPipe):]
	}

	anchorEnd := false
	if strings.HasSuffix(pattern, maskPipe) {
		anchorEnd = true
		pattern = pattern[:len(pattern)-len(maskPipe)]
	}

	for _, c := range pattern {
		switch c {
		case '*':
			b.WriteString(regexAny)
		case '^':
			b.WriteString(regexSeparator)
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	if anchorEnd {
		b.WriteString("$")
	}
	return b.String()
}

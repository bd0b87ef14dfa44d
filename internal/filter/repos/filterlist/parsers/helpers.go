package parsers

import "strings"

const (
	maskException   = "@@"
	maskDomainStart = "||"
	maskPipe        = "|"
	maskRegexRule   = "/"
	optionsSep      = '$'
	escapeChar      = '\\'

	// regexSeparator matches an ABP separator character or the end of input.
	regexSeparator = `(?:[^\w\d_\-.%]|$)`
	// regexStartURL anchors a pattern at the host part of any scheme URL.
	regexStartURL = `^[a-z][a-z0-9+.\-]*://(?:[^/?#]*\.)?`
	regexAny      = `.*`
)

// minSubstringLen is the shortest plain substring pattern accepted.
const minSubstringLen = 3

var cosmeticMarkers = []string{"##", "#@#", "#?#", "#$#", "#%#", "#@?#", "#@$#", "#@%#"}

// stripLineBOM removes a UTF-8 BOM left over from the first line of a file.
func stripLineBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}

// isComment reports whether a trimmed line is a list comment or header.
func isComment(line string) bool {
	return strings.HasPrefix(line, "!") || strings.HasPrefix(line, "[")
}

func isCosmetic(line string) bool {
	for _, m := range cosmeticMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

// isRegexRule reports whether the pattern is a /regex/ literal.
func isRegexRule(pattern string) bool {
	return len(pattern) > 2 && strings.HasPrefix(pattern, maskRegexRule) && strings.HasSuffix(pattern, maskRegexRule)
}

// splitOptions separates the pattern from its options at the last unescaped
// '$'.
func splitOptions(text string) (pattern, options string) {
	for i := len(text) - 1; i >= 0; i-- {
		if text[i] != optionsSep {
			continue
		}
		if i > 0 && text[i-1] == escapeChar {
			continue
		}
		return text[:i], text[i+1:]
	}
	return text, ""
}

// isMatchAll reports whether nothing but wildcards and anchors remain.
func isMatchAll(pattern string) bool {
	return strings.Trim(pattern, "*^|") == ""
}

// needsRegex reports whether the pattern uses wildcard or anchor syntax.
func needsRegex(pattern string) bool {
	return strings.Contains(pattern, maskDomainStart) ||
		strings.ContainsAny(pattern, "*^") ||
		strings.HasPrefix(pattern, maskPipe) ||
		strings.HasSuffix(pattern, maskPipe)
}

package parsers

import "github.com/AdguardTeam/golibs/errors"

// Reasons a line does not yield a rule.
const (
	ErrEmpty       errors.Error = "empty line"
	ErrComment     errors.Error = "comment"
	ErrCosmetic    errors.Error = "cosmetic filter"
	ErrUnsupported errors.Error = "unsupported syntax"
	ErrMatchAll    errors.Error = "pattern matches every request"
	ErrTooShort    errors.Error = "pattern too short"
	ErrBadPattern  errors.Error = "invalid pattern"
)

// Reason returns the sentinel reason wrapped by err, or ErrBadPattern for
// errors carrying no known reason.
func Reason(err error) errors.Error {
	for _, r := range []errors.Error{
		ErrEmpty, ErrComment, ErrCosmetic, ErrUnsupported, ErrMatchAll, ErrTooShort, ErrBadPattern,
	} {
		if errors.Is(err, r) {
			return r
		}
	}
	return ErrBadPattern
}

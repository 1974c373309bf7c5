package leaderboard

import (
	"strconv"
	"strings"
)

// Limit is a requested result size. The zero value means the caller did not
// ask for one and the operation default applies.
type Limit struct {
	n   int
	set bool
}

// DefaultLimit asks for the operation default.
var DefaultLimit = Limit{}

// LimitOf is an explicit limit. It is validated when used.
func LimitOf(n int) Limit { return Limit{n: n, set: true} }

// ParseLimit reads a query parameter. Empty means omitted; anything that is
// not a base-10 integer is rejected.
func ParseLimit(raw string) (Limit, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return Limit{}, invalid("limit", raw, "must be an integer")
	}
	return LimitOf(n), nil
}

// IsSet reports whether the caller chose the limit.
func (l Limit) IsSet() bool { return l.set }

// Resolve returns def when the limit was omitted and otherwise checks it lies
// in [1, ceiling]. A ceiling <= 0 is unbounded.
func (l Limit) Resolve(def, ceiling int) (int, error) {
	if !l.set {
		return def, nil
	}
	if l.n <= 0 {
		return 0, invalid("limit", strconv.Itoa(l.n), "must be a positive integer")
	}
	if ceiling > 0 && l.n > ceiling {
		return 0, invalid("limit", strconv.Itoa(l.n), "must not exceed "+strconv.Itoa(ceiling))
	}
	return l.n, nil
}

package zipmerge

import (
	"fmt"
	"path"
	"strings"
)

// Policy resolves a name collision.
type Policy uint8

const (
	// PolicyReject fails the combine on collision.
	PolicyReject Policy = iota
	// PolicyFirstWins keeps the first occurrence and drops later ones.
	PolicyFirstWins
	// PolicyLastWins keeps only the last occurrence.
	PolicyLastWins
	// PolicyConcat merges all occurrences by byte concatenation in input order.
	PolicyConcat
)

// String returns the policy name as used in rules files.
func (p Policy) String() string {
	switch p {
	case PolicyReject:
		return "reject"
	case PolicyFirstWins:
		return "first-wins"
	case PolicyLastWins:
		return "last-wins"
	case PolicyConcat:
		return "concat"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// ParsePolicy parses a policy name as used in rules files.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "reject", "error":
		return PolicyReject, nil
	case "first-wins", "first":
		return PolicyFirstWins, nil
	case "last-wins", "last":
		return PolicyLastWins, nil
	case "concat", "concatenate":
		return PolicyConcat, nil
	default:
		return 0, fmt.Errorf("unknown policy %q (expected reject, first-wins, last-wins, or concat)", s)
	}
}

// Rule binds a name pattern to a resolution policy.
//
// A pattern ending in "/" matches every name under that prefix. Any other
// pattern is matched with path.Match semantics, so "*.properties" and
// "META-INF/services/*" work as expected; a pattern without wildcards
// matches exactly one name.
type Rule struct {
	Pattern string
	Policy  Policy
}

// Strategy is an immutable ordered rule table consulted to resolve entry
// names. The first matching rule wins; names with no matching rule are
// left to the filter's defaults, which reject collisions.
type Strategy struct {
	rules []Rule
}

// NewStrategy builds a Strategy from rules, validating each pattern.
// Rules keep their given order.
func NewStrategy(rules ...Rule) (Strategy, error) {
	for _, r := range rules {
		if r.Pattern == "" {
			return Strategy{}, fmt.Errorf("empty rule pattern")
		}
		if strings.HasSuffix(r.Pattern, "/") {
			continue
		}
		if _, err := path.Match(r.Pattern, ""); err != nil {
			return Strategy{}, fmt.Errorf("bad rule pattern %q: %w", r.Pattern, err)
		}
	}
	s := Strategy{rules: make([]Rule, len(rules))}
	copy(s.rules, rules)
	return s, nil
}

// Resolve returns the policy of the first rule matching name. The second
// return is false when no rule matches.
func (s Strategy) Resolve(name string) (Policy, bool) {
	for _, r := range s.rules {
		if matchPattern(r.Pattern, name) {
			return r.Policy, true
		}
	}
	return PolicyReject, false
}

func matchPattern(pattern, name string) bool {
	if strings.HasSuffix(pattern, "/") {
		return strings.HasPrefix(name, pattern) && name != pattern
	}
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

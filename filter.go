package zipmerge

import "strings"

// ManifestName is the jar manifest entry, reserved for front placement.
const ManifestName = "META-INF/MANIFEST.MF"

const servicesPrefix = "META-INF/services/"

type filterKind uint8

const (
	filterCopy filterKind = iota
	filterJar
)

// Filter decides what the combiner does with each incoming entry. Filters
// are values chosen from a closed set of policies, configured with a
// Strategy; Decide is a pure function of the entry, the committed-name
// set, and that strategy.
type Filter struct {
	kind     filterKind
	strategy Strategy
}

// CopyPolicy copies every entry and rejects any name collision. Use it
// when bitwise fidelity to a single logical bundle is required and no
// implicit merging is acceptable.
func CopyPolicy() Filter {
	return Filter{kind: filterCopy}
}

// JarPolicy applies jar conventions: directory entries are skipped, the
// manifest is reserved for front placement, service provider
// registrations under META-INF/services/ concatenate by default, and any
// other collision is rejected. Per-pattern overrides come from strategy.
func JarPolicy(strategy Strategy) Filter {
	return Filter{kind: filterJar, strategy: strategy}
}

// Strategy returns the strategy the filter was configured with.
func (f Filter) Strategy() Strategy { return f.strategy }

// Decide returns the action to take for entry given the names already
// committed to the output.
func (f Filter) Decide(entry *Entry, committed Committed) Decision {
	if f.kind == filterCopy {
		if committed.Has(entry.Name) {
			return Reject("duplicate entry")
		}
		return Copy()
	}

	if entry.IsDir() {
		return Skip()
	}
	// The merged manifest is written ahead of the main pass.
	if entry.Name == ManifestName {
		return Skip()
	}

	policy, ok := f.strategy.Resolve(entry.Name)
	if !ok && isServiceFile(entry.Name) {
		policy, ok = PolicyConcat, true
	}
	if !ok {
		if committed.Has(entry.Name) {
			return Reject("duplicate entry")
		}
		return Copy()
	}

	switch policy {
	case PolicyConcat:
		return Concatenate()
	case PolicyLastWins:
		return Replace()
	case PolicyFirstWins:
		if committed.Has(entry.Name) {
			return Skip()
		}
		return Copy()
	default:
		if committed.Has(entry.Name) {
			return Reject("duplicate entry")
		}
		return Copy()
	}
}

func isServiceFile(name string) bool {
	return strings.HasPrefix(name, servicesPrefix) && !strings.HasSuffix(name, "/")
}

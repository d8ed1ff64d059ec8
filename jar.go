package zipmerge

const metaInfDir = "META-INF/"

// DefaultJarRules returns the rules every jar combine is seeded with:
// service provider registrations under META-INF/services/ merge by
// concatenation.
func DefaultJarRules() []Rule {
	return []Rule{
		{Pattern: servicesPrefix, Policy: PolicyConcat},
	}
}

// NewJarCombiner builds a jar-aware Combiner. The given strategy is
// consulted first and extended with DefaultJarRules, so callers override
// the service-provider default per pattern. manifestLines are "Name:
// Value" attributes merged into the output manifest ahead of any
// attributes discovered in the inputs.
func NewJarCombiner(strategy Strategy, manifestLines []string, opts ...Option) *Combiner {
	rules := make([]Rule, 0, len(strategy.rules)+1)
	rules = append(rules, strategy.rules...)
	rules = append(rules, DefaultJarRules()...)
	seeded := Strategy{rules: rules}

	base := []Option{
		WithFilter(JarPolicy(seeded)),
		WithManifestAttributes(manifestLines...),
	}
	return New(append(base, opts...)...)
}

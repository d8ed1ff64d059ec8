// Package zipmerge combines an ordered list of zip archives and loose
// files into a single deterministic output archive.
//
// The package is the core primitive behind building one deployable
// artifact from many build outputs: every input is scanned in caller
// order, each entry is run through a [Filter] that decides what to do
// with it, and accepted entries are streamed into the output. Name
// collisions are resolved by an immutable [Strategy] table mapping name
// patterns to policies (first wins, last wins, concatenate, reject).
//
// # Quick start
//
// Merge two jars into one, concatenating service registrations:
//
//	strategy, err := zipmerge.NewStrategy(
//	    zipmerge.Rule{Pattern: "META-INF/services/", Policy: zipmerge.PolicyConcat},
//	)
//	if err != nil {
//	    return err
//	}
//	c := zipmerge.NewJarCombiner(strategy, []string{"Main-Class: com.example.Main"})
//	err = c.Combine(ctx, "out.jar", []string{"a.jar", "b.jar"}, nil)
//
// Bitwise-faithful merging with no implicit resolution:
//
//	c := zipmerge.New(zipmerge.WithFilter(zipmerge.CopyPolicy()))
//	err := c.Combine(ctx, "out.zip", inputs, nil)
//
// # Determinism
//
// Output bytes are a pure function of the input list, the loose files,
// and the configured strategy. Entries accepted for direct copy appear
// in first-acceptance order; merged entries (concatenate, last wins)
// are flushed after them, also in first-acceptance order. With
// [WithNormalizedTimestamps] enabled, repeated runs over identical
// inputs produce byte-identical archives.
//
// # Failure model
//
// Any malformed input, unresolved duplicate, or I/O failure aborts the
// whole combine: the output is written to a temporary file and renamed
// into place only on full success, so a failed run never leaves a
// partial artifact at the output path.
//
// A [Combiner] is single-use. Long-lived processes serving many combine
// requests must construct a fresh Combiner per request; a second call
// to [Combiner.Combine] fails with [ErrCombinerReused].
package zipmerge

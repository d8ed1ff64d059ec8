package zipmerge

// Compression selects how entry content reaches the output.
type Compression uint8

const (
	// CompressionPassthrough keeps each entry's recorded method and copies
	// its compressed bytes unchanged. Merged entries are deflated.
	CompressionPassthrough Compression = iota
	// CompressionDeflate recompresses stored entries with deflate; entries
	// already deflated are still copied without recompression.
	CompressionDeflate
	// CompressionStore writes every entry uncompressed.
	CompressionStore
)

// Option configures a Combiner.
type Option func(*Combiner)

// WithFilter sets the entry filter. The default is CopyPolicy.
func WithFilter(f Filter) Option {
	return func(c *Combiner) {
		c.filter = f
	}
}

// WithCompression sets the output compression mode.
// The default is CompressionPassthrough.
func WithCompression(m Compression) Option {
	return func(c *Combiner) {
		c.compression = m
	}
}

// WithNormalizedTimestamps zeroes every output entry's modification time
// to a fixed epoch so repeated builds produce byte-identical archives.
func WithNormalizedTimestamps(enabled bool) Option {
	return func(c *Combiner) {
		c.normalize = enabled
	}
}

// WithManifestAttributes enables jar mode and supplies manifest attribute
// lines ("Name: Value") that take precedence over attributes discovered in
// input manifests. Passing no lines still enables jar manifest handling.
func WithManifestAttributes(lines ...string) Option {
	return func(c *Combiner) {
		c.jar = true
		c.manifestLines = append(c.manifestLines, lines...)
	}
}

// WithStrictManifest makes conflicting attribute values between two input
// manifests a ManifestConflictError instead of letting the earlier input
// win. Caller-supplied attributes always take precedence either way.
func WithStrictManifest(enabled bool) Option {
	return func(c *Combiner) {
		c.strictManifest = enabled
	}
}

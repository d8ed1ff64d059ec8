package zipmerge

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedArchive is returned when an input archive cannot be read.
	ErrMalformedArchive = errors.New("malformed archive")

	// ErrDuplicateEntry is returned when a name collision resolves to reject.
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrManifestConflict is returned when two sources disagree on a manifest
	// attribute under strict merging.
	ErrManifestConflict = errors.New("manifest attribute conflict")

	// ErrCombinerReused is returned when Combine is called twice on the same
	// Combiner. Create a fresh Combiner per invocation.
	ErrCombinerReused = errors.New("combiner already used")
)

// MalformedArchiveError reports a corrupt or truncated input archive.
type MalformedArchiveError struct {
	Source string // path of the offending archive
	Err    error
}

func (e *MalformedArchiveError) Error() string {
	return fmt.Sprintf("%s: malformed archive: %v", e.Source, e.Err)
}

func (e *MalformedArchiveError) Unwrap() []error {
	return []error{ErrMalformedArchive, e.Err}
}

// DuplicateEntryError reports a name collision that no policy resolved.
// First and Second identify the contributing sources so the collision can
// be fixed at its origin.
type DuplicateEntryError struct {
	Name   string
	First  string
	Second string
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("duplicate entry %q (from %s and %s)", e.Name, e.First, e.Second)
}

func (e *DuplicateEntryError) Unwrap() error { return ErrDuplicateEntry }

// ManifestConflictError reports two sources supplying different values for
// the same manifest attribute under strict merging.
type ManifestConflictError struct {
	Attribute string
	First     string // value from the earlier source
	Second    string // value from the later source
}

func (e *ManifestConflictError) Error() string {
	return fmt.Sprintf("manifest attribute %q: conflicting values %q and %q",
		e.Attribute, e.First, e.Second)
}

func (e *ManifestConflictError) Unwrap() error { return ErrManifestConflict }

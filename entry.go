package zipmerge

import (
	"strings"
	"time"
)

// Entry describes one archive member as presented to a Filter. Name is the
// byte-exact path recorded in the source archive; Source identifies the
// archive or loose file the entry came from.
type Entry struct {
	Name             string
	Source           string
	Method           uint16
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	ExternalAttrs    uint32
	Modified         time.Time
}

// IsDir reports whether the entry is a directory marker.
func (e *Entry) IsDir() bool { return strings.HasSuffix(e.Name, "/") }

// Action identifies what the combiner should do with an entry.
type Action uint8

const (
	// ActionCopy writes the entry to the output under its own name.
	ActionCopy Action = iota
	// ActionSkip discards the entry.
	ActionSkip
	// ActionRename writes the entry under a different name.
	ActionRename
	// ActionConcatenate appends the entry's decompressed bytes to the
	// merged content held for its name.
	ActionConcatenate
	// ActionReplace holds the entry's decompressed bytes for its name,
	// discarding any earlier occurrence's bytes.
	ActionReplace
	// ActionReject aborts the whole combine.
	ActionReject
)

// Decision is a Filter's verdict on a single entry. Use the constructors;
// the zero value is a plain copy.
type Decision struct {
	Action Action
	Name   string // rename target, when Action is ActionRename
	Reason string // human-readable cause, when Action is ActionReject
}

// Copy accepts the entry under its own name.
func Copy() Decision { return Decision{Action: ActionCopy} }

// Skip discards the entry.
func Skip() Decision { return Decision{Action: ActionSkip} }

// Rename accepts the entry under name instead of its own.
func Rename(name string) Decision { return Decision{Action: ActionRename, Name: name} }

// Concatenate appends the entry's content to the merged entry of the same name.
func Concatenate() Decision { return Decision{Action: ActionConcatenate} }

// Replace keeps only the latest occurrence's content for the entry's name.
func Replace() Decision { return Decision{Action: ActionReplace} }

// Reject aborts the combine, citing reason.
func Reject(reason string) Decision { return Decision{Action: ActionReject, Reason: reason} }

// Committed is the read-only view of names already accepted into the
// output, consulted by filters to detect collisions.
type Committed interface {
	Has(name string) bool
}

// Package manifest reads, merges, and writes jar manifest main sections.
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// VersionAttr is the attribute every written manifest leads with.
const VersionAttr = "Manifest-Version"

// maxLine is the jar spec's limit on a physical manifest line, in bytes,
// excluding the line terminator.
const maxLine = 72

// Manifest is an ordered set of main-section attributes. Attribute names
// compare case-insensitively but keep their original spelling.
type Manifest struct {
	names  []string
	values map[string]string
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{values: make(map[string]string)}
}

// ConflictError reports two different values for one attribute.
type ConflictError struct {
	Name string
	Have string
	Want string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("manifest attribute %q: conflicting values %q and %q", e.Name, e.Have, e.Want)
}

// Parse reads the main section of a manifest. Continuation lines (leading
// space) are joined; parsing stops at the first blank line, so per-entry
// sections are ignored.
func Parse(r io.Reader) (*Manifest, error) {
	m := New()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)

	var name, value string
	flush := func() {
		if name != "" {
			m.Set(name, value)
			name, value = "", ""
		}
	}
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, " ") {
			if name == "" {
				return nil, fmt.Errorf("manifest continuation line with no attribute")
			}
			value += line[1:]
			continue
		}
		flush()
		var err error
		name, value, err = ParseAttribute(line)
		if err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return m, nil
}

// ParseAttribute splits a "Name: Value" attribute line. Only the single
// space after the colon is consumed; the value keeps its bytes exactly, so
// wrapped values reassemble without loss.
func ParseAttribute(line string) (name, value string, err error) {
	i := strings.Index(line, ":")
	if i <= 0 {
		return "", "", fmt.Errorf("malformed manifest attribute %q", line)
	}
	name = strings.TrimSpace(line[:i])
	value = strings.TrimPrefix(line[i+1:], " ")
	if name == "" || strings.ContainsAny(name, " \t") {
		return "", "", fmt.Errorf("malformed manifest attribute name %q", line[:i])
	}
	return name, value, nil
}

// Get returns the value for name, matching case-insensitively.
func (m *Manifest) Get(name string) (string, bool) {
	v, ok := m.values[strings.ToLower(name)]
	return v, ok
}

// Set stores an attribute, keeping the first-seen spelling and insertion
// position when the attribute already exists.
func (m *Manifest) Set(name, value string) {
	key := strings.ToLower(name)
	if _, ok := m.values[key]; !ok {
		m.names = append(m.names, name)
	}
	m.values[key] = value
}

// Len returns the number of attributes.
func (m *Manifest) Len() int { return len(m.names) }

// Merge folds other into m. Attributes already present in m win; with
// strict set, a differing value for an existing attribute is a
// ConflictError instead.
func (m *Manifest) Merge(other *Manifest, strict bool) error {
	for _, name := range other.names {
		want, _ := other.Get(name)
		if have, ok := m.Get(name); ok {
			if strict && have != want {
				return &ConflictError{Name: name, Have: have, Want: want}
			}
			continue
		}
		m.Set(name, want)
	}
	return nil
}

// WriteTo writes the manifest in jar wire form: Manifest-Version first
// (defaulting to 1.0), remaining attributes in insertion order, CRLF line
// endings, long values continued on space-prefixed lines, and a trailing
// blank line.
func (m *Manifest) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	version, ok := m.Get(VersionAttr)
	if !ok {
		version = "1.0"
	}
	writeAttr(&b, VersionAttr, version)
	for _, name := range m.names {
		if strings.EqualFold(name, VersionAttr) {
			continue
		}
		v, _ := m.Get(name)
		writeAttr(&b, name, v)
	}
	b.WriteString("\r\n")
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

func writeAttr(b *strings.Builder, name, value string) {
	line := name + ": " + value
	for len(line) > maxLine {
		b.WriteString(line[:maxLine])
		b.WriteString("\r\n")
		line = " " + line[maxLine:]
	}
	b.WriteString(line)
	b.WriteString("\r\n")
}

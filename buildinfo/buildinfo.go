// Package buildinfo writes Java properties files carrying build
// information, the loose-file input a deployable jar embeds to identify
// the build that produced it.
//
// Values come from workspace status files ("KEY value" per line) written
// by the build system's status command. When no status files are given,
// every key falls back to its redacted value so the output stays stable
// across builds.
package buildinfo

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Key describes one build info key's fallback values.
type Key struct {
	// Default is written when status files are present but omit the key.
	Default string
	// Redacted is written when no status files are given at all.
	Redacted string
}

// Options configures Write.
type Options struct {
	// StatusFiles are workspace status files, parsed in order; later files
	// override earlier ones.
	StatusFiles []string

	// StableKeys are always written.
	StableKeys map[string]Key

	// VolatileKeys are written only when IncludeVolatile is set, along
	// with BUILD_TIMESTAMP and BUILD_TIME.
	VolatileKeys map[string]Key

	// IncludeVolatile adds volatile keys and the build timestamp.
	IncludeVolatile bool

	// Translations maps a status key to the property name it is written
	// under. Untranslated keys keep their own name.
	Translations map[string]string

	// Now supplies the build timestamp; nil uses time.Now.
	Now func() time.Time

	// FormatTimestamp renders BUILD_TIME; nil uses a fixed UTC layout.
	FormatTimestamp func(time.Time) string
}

// Write renders the properties file to w. Property names are emitted in
// sorted order so identical inputs produce identical bytes, and no
// timestamp comment line is written.
func Write(w io.Writer, opts Options) error {
	values := make(map[string]string)
	for _, path := range opts.StatusFiles {
		parsed, err := ParseStatusFile(path)
		if err != nil {
			return err
		}
		for k, v := range parsed {
			values[k] = v
		}
	}
	redacted := len(values) == 0

	props := make(map[string]string)
	if opts.IncludeVolatile {
		addKeys(props, values, opts.VolatileKeys, redacted)
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		t := now()
		props["BUILD_TIMESTAMP"] = strconv.FormatInt(t.Unix(), 10)
		format := opts.FormatTimestamp
		if format == nil {
			format = defaultTimestampFormat
		}
		props["BUILD_TIME"] = format(t)
	}
	addKeys(props, values, opts.StableKeys, redacted)

	translated := make(map[string]string, len(props))
	for k, v := range props {
		name := k
		if t, ok := opts.Translations[k]; ok {
			name = t
		}
		translated[name] = v
	}

	names := make([]string, 0, len(translated))
	for name := range translated {
		names = append(names, name)
	}
	sort.Strings(names)

	bw := bufio.NewWriter(w)
	for _, name := range names {
		bw.WriteString(escapeKey(name))
		bw.WriteByte('=')
		bw.WriteString(escapeValue(translated[name]))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteFile renders the properties file at path.
func WriteFile(path string, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func addKeys(props, values map[string]string, keys map[string]Key, redacted bool) {
	for name, key := range keys {
		switch {
		case redacted:
			props[name] = key.Redacted
		default:
			v, ok := values[name]
			if !ok {
				v = key.Default
			}
			props[name] = v
		}
	}
}

// ParseStatus reads "KEY value" lines; the key ends at the first space,
// the rest of the line is the value. Blank lines are skipped.
func ParseStatus(r io.Reader) (map[string]string, error) {
	values := make(map[string]string)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		values[key] = value
	}
	return values, sc.Err()
}

// ParseStatusFile reads a workspace status file.
func ParseStatusFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read status file: %w", err)
	}
	defer f.Close()
	values, err := ParseStatus(f)
	if err != nil {
		return nil, fmt.Errorf("read status file %s: %w", path, err)
	}
	return values, nil
}

func defaultTimestampFormat(t time.Time) string {
	return t.UTC().Format("Mon Jan 2 15:04:05 2006 (UTC)")
}

// escapeKey escapes a property key per java.util.Properties: backslash,
// separators, comment markers, and every space.
func escapeKey(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ' ', '\\', '=', ':', '#', '!':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			writePropRune(&b, r)
		}
	}
	return b.String()
}

// escapeValue escapes a property value; only leading spaces need the
// backslash treatment.
func escapeValue(s string) string {
	var b strings.Builder
	leading := true
	for _, r := range s {
		if r == ' ' && leading {
			b.WriteString("\\ ")
			continue
		}
		leading = false
		switch r {
		case '\\':
			b.WriteString(`\\`)
		default:
			writePropRune(&b, r)
		}
	}
	return b.String()
}

func writePropRune(b *strings.Builder, r rune) {
	switch r {
	case '\n':
		b.WriteString(`\n`)
	case '\r':
		b.WriteString(`\r`)
	case '\t':
		b.WriteString(`\t`)
	case '\f':
		b.WriteString(`\f`)
	default:
		if r > unicode.MaxASCII || unicode.IsControl(r) {
			fmt.Fprintf(b, `\u%04X`, r)
		} else {
			b.WriteRune(r)
		}
	}
}

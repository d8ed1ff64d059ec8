package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	in := "Manifest-Version: 1.0\r\n" +
		"Main-Class: com.example.Main\r\n" +
		"Class-Path: lib/a.jar lib/b.jar\r\n" +
		"\r\n" +
		"Name: com/example/A.class\r\n" +
		"SHA-256-Digest: ignored\r\n"

	m, err := Parse(strings.NewReader(in))
	require.NoError(t, err)

	v, ok := m.Get("Main-Class")
	require.True(t, ok)
	assert.Equal(t, "com.example.Main", v)

	// Per-entry sections after the blank line are ignored.
	_, ok = m.Get("SHA-256-Digest")
	assert.False(t, ok)
	assert.Equal(t, 3, m.Len())
}

func TestParseContinuationLines(t *testing.T) {
	in := "Manifest-Version: 1.0\r\n" +
		"Class-Path: lib/first.jar lib/second.jar lib/third\r\n" +
		" .jar lib/fourth.jar\r\n"

	m, err := Parse(strings.NewReader(in))
	require.NoError(t, err)

	v, ok := m.Get("Class-Path")
	require.True(t, ok)
	assert.Equal(t, "lib/first.jar lib/second.jar lib/third.jar lib/fourth.jar", v)
}

func TestParseLFOnly(t *testing.T) {
	m, err := Parse(strings.NewReader("Manifest-Version: 1.0\nBuilt-By: someone\n"))
	require.NoError(t, err)
	v, ok := m.Get("Built-By")
	require.True(t, ok)
	assert.Equal(t, "someone", v)
}

func TestParseRejectsMalformedAttribute(t *testing.T) {
	_, err := Parse(strings.NewReader("no colon here\r\n"))
	assert.Error(t, err)

	_, err = Parse(strings.NewReader(" leading continuation\r\n"))
	assert.Error(t, err)
}

func TestGetIsCaseInsensitive(t *testing.T) {
	m := New()
	m.Set("Main-Class", "com.example.Main")

	v, ok := m.Get("main-class")
	require.True(t, ok)
	assert.Equal(t, "com.example.Main", v)
}

func TestMerge(t *testing.T) {
	a := New()
	a.Set("Main-Class", "com.example.A")
	b := New()
	b.Set("Main-Class", "com.example.B")
	b.Set("Built-By", "b-builder")

	require.NoError(t, a.Merge(b, false))

	v, _ := a.Get("Main-Class")
	assert.Equal(t, "com.example.A", v, "earlier value must win")
	v, _ = a.Get("Built-By")
	assert.Equal(t, "b-builder", v)
}

func TestMergeStrictConflict(t *testing.T) {
	a := New()
	a.Set("Main-Class", "com.example.A")
	b := New()
	b.Set("Main-Class", "com.example.B")

	err := a.Merge(b, true)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Main-Class", conflict.Name)
	assert.Equal(t, "com.example.A", conflict.Have)
	assert.Equal(t, "com.example.B", conflict.Want)

	// Identical values are never a conflict.
	c := New()
	c.Set("Main-Class", "com.example.A")
	require.NoError(t, a.Merge(c, true))
}

func TestWriteTo(t *testing.T) {
	m := New()
	m.Set("Main-Class", "com.example.Main")

	var b strings.Builder
	_, err := m.WriteTo(&b)
	require.NoError(t, err)

	out := b.String()
	assert.True(t, strings.HasPrefix(out, "Manifest-Version: 1.0\r\n"),
		"version attribute must come first")
	assert.Contains(t, out, "Main-Class: com.example.Main\r\n")
	assert.True(t, strings.HasSuffix(out, "\r\n\r\n"), "manifest must end with a blank line")
}

func TestWriteToWrapsLongLines(t *testing.T) {
	m := New()
	longValue := strings.Repeat("lib/some-dependency.jar ", 10)
	m.Set("Class-Path", longValue)

	var b strings.Builder
	_, err := m.WriteTo(&b)
	require.NoError(t, err)

	for _, line := range strings.Split(b.String(), "\r\n") {
		assert.LessOrEqual(t, len(line), 72, "line %q exceeds the jar limit", line)
	}

	// The wrapped form must parse back to the original value.
	parsed, err := Parse(strings.NewReader(b.String()))
	require.NoError(t, err)
	v, ok := parsed.Get("Class-Path")
	require.True(t, ok)
	assert.Equal(t, longValue, v)
}

package zipmerge

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manifestEntry(attrs ...string) testEntry {
	return testEntry{
		name: ManifestName,
		data: strings.Join(attrs, "\r\n") + "\r\n\r\n",
	}
}

func TestJarManifestCallerLinesWin(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.jar")
	writeTestZip(t, in,
		manifestEntry("Manifest-Version: 1.0", "Main-Class: com.example.Wrong", "Built-By: upstream"),
		testEntry{name: "com/example/A.class", data: "a"},
	)

	out := filepath.Join(dir, "out.jar")
	c := NewJarCombiner(Strategy{}, []string{"Main-Class: com.example.Right"})
	require.NoError(t, c.Combine(context.Background(), out, []string{in}, nil))

	manifest := readZipContents(t, out)[ManifestName]
	assert.Contains(t, manifest, "Main-Class: com.example.Right")
	assert.NotContains(t, manifest, "com.example.Wrong")
	// Non-conflicting attributes from the input survive.
	assert.Contains(t, manifest, "Built-By: upstream")
	assert.True(t, strings.HasPrefix(manifest, "Manifest-Version: 1.0\r\n"))
}

func TestJarManifestFirstInputWins(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jar")
	b := filepath.Join(dir, "b.jar")
	writeTestZip(t, a, manifestEntry("Manifest-Version: 1.0", "Main-Class: com.example.A"))
	writeTestZip(t, b, manifestEntry("Manifest-Version: 1.0", "Main-Class: com.example.B"))

	out := filepath.Join(dir, "out.jar")
	c := NewJarCombiner(Strategy{}, nil)
	require.NoError(t, c.Combine(context.Background(), out, []string{a, b}, nil))

	assert.Contains(t, readZipContents(t, out)[ManifestName], "Main-Class: com.example.A")
}

func TestJarManifestStrictConflict(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jar")
	b := filepath.Join(dir, "b.jar")
	writeTestZip(t, a, manifestEntry("Manifest-Version: 1.0", "Main-Class: com.example.A"))
	writeTestZip(t, b, manifestEntry("Manifest-Version: 1.0", "Main-Class: com.example.B"))

	out := filepath.Join(dir, "out.jar")
	c := NewJarCombiner(Strategy{}, nil, WithStrictManifest(true))
	err := c.Combine(context.Background(), out, []string{a, b}, nil)
	require.ErrorIs(t, err, ErrManifestConflict)

	var conflict *ManifestConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Main-Class", conflict.Attribute)
	assert.Equal(t, "com.example.A", conflict.First)
	assert.Equal(t, "com.example.B", conflict.Second)
}

func TestJarManifestWrittenWithoutInputs(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.jar")
	writeTestZip(t, in, testEntry{name: "com/example/A.class", data: "a"})

	out := filepath.Join(dir, "out.jar")
	c := NewJarCombiner(Strategy{}, nil)
	require.NoError(t, c.Combine(context.Background(), out, []string{in}, nil))

	manifest := readZipContents(t, out)[ManifestName]
	assert.True(t, strings.HasPrefix(manifest, "Manifest-Version: 1.0\r\n"),
		"a jar output always carries a manifest")
}

func TestDefaultJarRules(t *testing.T) {
	rules := DefaultJarRules()
	require.Len(t, rules, 1)
	assert.Equal(t, PolicyConcat, rules[0].Policy)
	assert.True(t, matchPattern(rules[0].Pattern, "META-INF/services/com.example.X"))
}

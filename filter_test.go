package zipmerge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// committedSet is a test stand-in for the combiner's registry.
type committedSet map[string]bool

func (s committedSet) Has(name string) bool { return s[name] }

func TestCopyPolicyDecide(t *testing.T) {
	f := CopyPolicy()

	d := f.Decide(&Entry{Name: "a.txt", Source: "a.zip"}, committedSet{})
	assert.Equal(t, ActionCopy, d.Action)

	// Copy policy copies directory entries too.
	d = f.Decide(&Entry{Name: "dir/", Source: "a.zip"}, committedSet{})
	assert.Equal(t, ActionCopy, d.Action)

	d = f.Decide(&Entry{Name: "a.txt", Source: "b.zip"}, committedSet{"a.txt": true})
	assert.Equal(t, ActionReject, d.Action)
}

func TestJarPolicyDecide(t *testing.T) {
	strategy, err := NewStrategy(
		Rule{Pattern: "*.properties", Policy: PolicyFirstWins},
		Rule{Pattern: "log4j2.xml", Policy: PolicyLastWins},
	)
	require.NoError(t, err)
	f := JarPolicy(strategy)

	tests := []struct {
		name      string
		entry     string
		committed committedSet
		want      Action
	}{
		{name: "new entry copies", entry: "com/example/A.class", committed: committedSet{}, want: ActionCopy},
		{name: "collision rejects by default", entry: "com/example/A.class", committed: committedSet{"com/example/A.class": true}, want: ActionReject},
		{name: "directories skipped", entry: "com/example/", committed: committedSet{}, want: ActionSkip},
		{name: "manifest reserved", entry: ManifestName, committed: committedSet{}, want: ActionSkip},
		{name: "services concatenate", entry: "META-INF/services/com.example.X", committed: committedSet{}, want: ActionConcatenate},
		{name: "first-wins new", entry: "config.properties", committed: committedSet{}, want: ActionCopy},
		{name: "first-wins collision", entry: "config.properties", committed: committedSet{"config.properties": true}, want: ActionSkip},
		{name: "last-wins buffers from the start", entry: "log4j2.xml", committed: committedSet{}, want: ActionReplace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := f.Decide(&Entry{Name: tt.entry, Source: "in.jar"}, tt.committed)
			assert.Equal(t, tt.want, d.Action)
		})
	}
}

func TestJarPolicyStrategyOverridesServiceDefault(t *testing.T) {
	strategy, err := NewStrategy(
		Rule{Pattern: "META-INF/services/com.example.Only", Policy: PolicyFirstWins},
	)
	require.NoError(t, err)
	f := JarPolicy(strategy)

	d := f.Decide(&Entry{Name: "META-INF/services/com.example.Only", Source: "in.jar"},
		committedSet{"META-INF/services/com.example.Only": true})
	assert.Equal(t, ActionSkip, d.Action, "explicit rule must beat the concat default")

	d = f.Decide(&Entry{Name: "META-INF/services/com.example.Other", Source: "in.jar"}, committedSet{})
	assert.Equal(t, ActionConcatenate, d.Action)
}

func TestDecideIsPure(t *testing.T) {
	// The same inputs must always produce the same decision.
	f := JarPolicy(Strategy{})
	entry := &Entry{Name: "com/example/A.class", Source: "in.jar"}
	first := f.Decide(entry, committedSet{})
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, f.Decide(entry, committedSet{}))
	}
}

package cli

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "arel", cmd.Use)
	assert.Contains(t, cmd.Short, "relational algebra")
	assert.Contains(t, cmd.Long, "CUE or YAML catalogs")

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"compile", "validate", "run", "test"}, names)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		path      []string // empty for persistent root flags
		flag      string
		shorthand string
		def       string
	}{
		{nil, "verbose", "v", "false"},
		{nil, "format", "", "text"},
		{nil, "seq-url", "", ""},
		{[]string{"compile"}, "output", "o", ""},
		{[]string{"compile"}, "db", "", ""},
		{[]string{"run"}, "db", "", ""},
		{[]string{"run"}, "query", "q", "[]"},
		{[]string{"run"}, "journal", "", ""},
		{[]string{"test"}, "update", "", "false"},
		{[]string{"test"}, "filter", "", ""},
	}

	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			flags := root.PersistentFlags()
			if tt.path != nil {
				sub, _, err := root.Find(tt.path)
				require.NoError(t, err)
				flags = sub.Flags()
			}

			f := flags.Lookup(tt.flag)
			require.NotNil(t, f, "flag --%s", tt.flag)
			assert.Equal(t, tt.shorthand, f.Shorthand)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestFormatValidation(t *testing.T) {
	for _, ok := range ValidFormats {
		assert.True(t, isValidFormat(ok), ok)
	}
	for _, bad := range []string{"xml", "", "TEXT"} {
		assert.False(t, isValidFormat(bad), bad)
	}
}

func TestInvalidFormatRejectedBeforeRunning(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--format", "yaml", "validate", "/nonexistent"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

package client

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScript(t *testing.T) {
	script := Script()
	require.NotEmpty(t, script)
	for _, want := range []string{`"/live"`, "lv-click", "lv-value-", `"join"`, `"heartbeat"`, "@body.class"} {
		assert.Contains(t, string(script), want)
	}
}

func TestAssets(t *testing.T) {
	assert.Equal(t, []string{ScriptName}, FileNames())

	data, err := fs.ReadFile(Assets(), ScriptName)
	require.NoError(t, err)
	assert.Equal(t, Script(), data)
}

func TestMustGetFile_Missing(t *testing.T) {
	assert.Panics(t, func() { MustGetFile("missing.js") })
}

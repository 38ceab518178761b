package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	resetFlags(t)
	defer resetFlags(t)

	out, err := captureOutput(t, func() error {
		return versionCmd.RunE(versionCmd, nil)
	})
	require.NoError(t, err)
	assert.Contains(t, out, "allocctl dev")
	assert.Contains(t, out, "commit: none")
}

func TestVersionCommand_JSON(t *testing.T) {
	resetFlags(t)
	defer resetFlags(t)
	jsonOut = true

	out, err := captureOutput(t, func() error {
		return versionCmd.RunE(versionCmd, nil)
	})
	require.NoError(t, err)

	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "dev", v["version"])
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"churn", "bench", "version"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

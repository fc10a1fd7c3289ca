package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// restoreFlags resets the package-level flag variables a test may change.
func restoreFlags(t *testing.T) {
	t.Helper()
	saved := struct {
		minMemory, maxMemory, memoryStep int
		outputFormat, configPath, match  string
		events                           []string
	}{minMemory, maxMemory, memoryStep, outputFormat, configPath, matchPattern, eventSpecs}
	t.Cleanup(func() {
		minMemory, maxMemory, memoryStep = saved.minMemory, saved.maxMemory, saved.memoryStep
		outputFormat, configPath, matchPattern = saved.outputFormat, saved.configPath, saved.match
		eventSpecs = saved.events
	})
}

// changedSet returns a Changed func reporting only the given flags as set.
func changedSet(names ...string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

// writeFile writes content to name inside a per-test directory.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

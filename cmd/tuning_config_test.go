package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambda-tuner/lambda-tuner/tuner"
	"github.com/lambda-tuner/lambda-tuner/tuner/cost"
)

func TestLoadTuningFile_OverlaysOnlyPresentFields(t *testing.T) {
	// GIVEN a file setting a few fields and a single price
	path := writeFile(t, "tuning.yaml", `
max_memory: 2048
objective: balanced
update_timeout: 30s
max_price: 25.5
pricing:
  price_per_request: 0
events:
  orders: orders.json
`)

	// WHEN it is loaded and applied to the defaults
	f, err := loadTuningFile(path)
	require.NoError(t, err)
	cfg := tuner.DefaultConfig()
	f.apply(&cfg)

	// THEN only those fields change
	assert.Equal(t, tuner.MemorySize(2048), cfg.MaxMemory)
	assert.Equal(t, tuner.MinProviderMemory, cfg.MinMemory)
	assert.Equal(t, tuner.ObjectiveBalanced, cfg.Objective)
	assert.Equal(t, 30*time.Second, cfg.UpdateTimeout)
	require.NotNil(t, cfg.MaxPrice)
	assert.Equal(t, 25.5, *cfg.MaxPrice)
	assert.Equal(t, 0.0, cfg.Pricing.PricePerRequest)
	assert.Equal(t, cost.DefaultPricePerGBSecond, cfg.Pricing.PricePerGBSecond)
	assert.Equal(t, cost.DefaultBillingIncrementMs, cfg.Pricing.BillingIncrementMs)
	assert.Equal(t, map[string]string{"orders": "orders.json"}, f.Events)
}

func TestLoadTuningFile_RejectsUnknownFields(t *testing.T) {
	path := writeFile(t, "tuning.yaml", "max_memroy: 2048\n")

	_, err := loadTuningFile(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_memroy")
}

func TestLoadTuningFile_MissingFile(t *testing.T) {
	_, err := loadTuningFile("does-not-exist.yaml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestBuildConfig_FlagsOverrideFile(t *testing.T) {
	restoreFlags(t)
	// GIVEN a file and flags that disagree on max memory and the event
	configPath = writeFile(t, "tuning.yaml", `
min_memory: 256
max_memory: 2048
events:
  orders: from-file.json
`)
	maxMemory = 1536
	eventSpecs = []string{"orders=from-flag.json"}

	// WHEN only --max-memory and --event were given
	cfg, events, err := buildConfig(changedSet("max-memory", "event"))

	// THEN the flag wins and the rest of the file applies
	require.NoError(t, err)
	assert.Equal(t, tuner.MemorySize(256), cfg.MinMemory)
	assert.Equal(t, tuner.MemorySize(1536), cfg.MaxMemory)
	assert.Equal(t, "from-flag.json", events["orders"])
}

func TestBuildConfig_UnchangedFlagsKeepDefaults(t *testing.T) {
	restoreFlags(t)
	configPath = ""
	eventSpecs = nil
	maxMemory = 4096 // not reported as changed

	cfg, events, err := buildConfig(changedSet())

	require.NoError(t, err)
	assert.Equal(t, tuner.DefaultConfig().MaxMemory, cfg.MaxMemory)
	assert.Empty(t, events)
}

func TestBuildConfig_InvalidRange(t *testing.T) {
	restoreFlags(t)
	configPath = ""
	minMemory = 100

	_, _, err := buildConfig(changedSet("min-memory"))

	var cfgErr *tuner.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
}

package tuner

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBest_CostObjectivePicksCheapest(t *testing.T) {
	cfg := DefaultConfig()
	ms := []Measurement{
		measure(t, cfg, 128, 3000), // 375 GB-ms
		measure(t, cfg, 512, 600),  // 300 GB-ms
		measure(t, cfg, 1024, 500), // 500 GB-ms
	}
	best, err := SelectBest(ms, cfg)
	require.NoError(t, err)
	assert.Equal(t, MemorySize(512), best.Memory)
}

func TestSelectBest_SpeedObjectivePicksFastest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Objective = ObjectiveSpeed
	ms := []Measurement{
		measure(t, cfg, 128, 3000),
		measure(t, cfg, 512, 600),
		measure(t, cfg, 1024, 300),
	}
	best, err := SelectBest(ms, cfg)
	require.NoError(t, err)
	assert.Equal(t, MemorySize(1024), best.Memory)
}

func TestSelectBest_TieFavoursLowerMemory(t *testing.T) {
	// GIVEN 256MB is ~0.9% cheaper than 128MB, within the default 2% tolerance
	cfg := DefaultConfig()
	ms := []Measurement{
		measure(t, cfg, 256, 495),
		measure(t, cfg, 128, 1000),
	}

	// WHEN selecting with tolerance
	best, err := SelectBest(ms, cfg)
	require.NoError(t, err)

	// THEN the lower memory size wins the tie
	assert.Equal(t, MemorySize(128), best.Memory)

	// WHEN tolerance is zero the strictly cheaper size wins
	cfg.Tolerance = 0
	best, err = SelectBest(ms, cfg)
	require.NoError(t, err)
	assert.Equal(t, MemorySize(256), best.Memory)
}

func TestSelectBest_IgnoresUnusableSizes(t *testing.T) {
	cfg := DefaultConfig()
	model := testModel(t, cfg)
	failed := NewMeasurement("fn", 128, []InvocationResult{{Success: false, ErrorKind: ErrorKindFunction}}, model, cfg)
	unconfigurable := unusableMeasurement("fn", 192, errors.New("rejected"))
	ms := []Measurement{failed, unconfigurable, measure(t, cfg, 1024, 900)}

	best, err := SelectBest(ms, cfg)
	require.NoError(t, err)
	assert.Equal(t, MemorySize(1024), best.Memory)

	scores := ScoreSet(ms, cfg)
	assert.True(t, math.IsInf(scores[128], 1))
	assert.True(t, math.IsInf(scores[192], 1))
}

func TestSelectBest_NothingEligible(t *testing.T) {
	cfg := DefaultConfig()
	model := testModel(t, cfg)

	_, err := SelectBest(nil, cfg)
	assert.ErrorIs(t, err, ErrNoUsableMemory)

	failed := NewMeasurement("fn", 128, []InvocationResult{{Success: false}}, model, cfg)
	_, err = SelectBest([]Measurement{failed}, cfg)
	assert.ErrorIs(t, err, ErrNoUsableMemory)

	ceiling := 0.5
	cfg.MaxPrice = &ceiling
	over := measure(t, cfg, 1024, 1000)
	require.True(t, over.ExceedsCeiling)
	_, err = SelectBest([]Measurement{failed, over}, cfg)
	assert.ErrorIs(t, err, ErrCeilingExceeded)
}

func TestSelectBest_UsesLatestMeasurementPerSize(t *testing.T) {
	cfg := DefaultConfig()
	ms := []Measurement{
		measure(t, cfg, 128, 100), // cheapest at first
		measure(t, cfg, 256, 100),
		measure(t, cfg, 128, 900), // re-sampled, now expensive
	}
	best, err := SelectBest(ms, cfg)
	require.NoError(t, err)
	assert.Equal(t, MemorySize(256), best.Memory)
}

func TestSelectBest_IndependentOfRecordOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Objective = ObjectiveBalanced
	a := measure(t, cfg, 128, 3000)
	b := measure(t, cfg, 512, 900)
	c := measure(t, cfg, 1024, 850)
	d := measure(t, cfg, 768, 870)

	orders := [][]Measurement{
		{a, b, c, d},
		{d, c, b, a},
		{b, d, a, c},
	}
	var picks []MemorySize
	for _, ms := range orders {
		best, err := SelectBest(ms, cfg)
		require.NoError(t, err)
		picks = append(picks, best.Memory)
	}
	assert.Equal(t, []MemorySize{picks[0], picks[0], picks[0]}, picks)
}

func TestScoreSet_BalancedIsNormalized(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Objective = ObjectiveBalanced
	ms := []Measurement{
		measure(t, cfg, 128, 3000),
		measure(t, cfg, 512, 900),
		measure(t, cfg, 1024, 850),
	}
	scores := ScoreSet(ms, cfg)
	require.Len(t, scores, 3)
	for mem, s := range scores {
		assert.GreaterOrEqual(t, s, 0.0, "score of %s", mem)
		assert.LessOrEqual(t, s, 1.0, "score of %s", mem)
	}
	// 512MB is neither the cheapest nor the fastest, yet balances both.
	assert.Less(t, scores[512], scores[128])
	assert.Less(t, scores[512], scores[1024])
}

func TestBetter_InfiniteScoresLose(t *testing.T) {
	inf := math.Inf(1)
	assert.True(t, Better(1024, 5, 128, inf, 0.02))
	assert.False(t, Better(128, inf, 1024, 5, 0.02))
	assert.True(t, Better(128, inf, 1024, inf, 0.02))
}

func TestSelectBest_BalancedTieComparesRawValues(t *testing.T) {
	// GIVEN 130MB costs within 0.1% of 128MB and runs 1.5% faster, so their
	// normalized balanced scores (0.425 vs 0.5) are far apart
	cfg := DefaultConfig()
	cfg.Objective = ObjectiveBalanced
	ms := []Measurement{
		measure(t, cfg, 128, 1000),
		measure(t, cfg, 130, 985),
		measure(t, cfg, 2048, 900),
	}
	ranker := NewRanker(ms, cfg)
	require.Greater(t, ranker.Score(128)-ranker.Score(130), cfg.Tolerance)

	// WHEN selecting with the default tolerance
	best, err := SelectBest(ms, cfg)
	require.NoError(t, err)

	// THEN raw cost and duration are both within tolerance and the lower size wins
	assert.Equal(t, MemorySize(128), best.Memory)
	assert.True(t, ranker.Better(128, 130))
	assert.False(t, ranker.Better(130, 128))

	// WHEN tolerance is zero the better balanced score wins
	cfg.Tolerance = 0
	best, err = SelectBest(ms, cfg)
	require.NoError(t, err)
	assert.Equal(t, MemorySize(130), best.Memory)
}

func TestRanker_UnknownSizeScoresInfinity(t *testing.T) {
	cfg := DefaultConfig()
	ranker := NewRanker([]Measurement{measure(t, cfg, 512, 100)}, cfg)

	assert.True(t, math.IsInf(ranker.Score(1024), 1))
	assert.True(t, ranker.Better(512, 1024))
}

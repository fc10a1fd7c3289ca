package tuner_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lambda-tuner/lambda-tuner/internal/testutil"
	"github.com/lambda-tuner/lambda-tuner/tuner"
	"github.com/lambda-tuner/lambda-tuner/tuner/cost"
)

var (
	flatteningCurve  = testutil.Curve{128: 3000, 512: 900, 1024: 850}
	superLinearCurve = testutil.Curve{128: 8000, 256: 3000, 512: 900, 1024: 850}
)

var fastRetry = tuner.WithRetryPolicy(tuner.RetryPolicy{InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond})

func testConfig() tuner.Config {
	cfg := tuner.DefaultConfig()
	cfg.SampleCount = 2
	cfg.UpdateTimeout = 2 * time.Second
	return cfg
}

func newSession(t *testing.T, cfg tuner.Config, client tuner.FunctionClient, target tuner.Target, obs tuner.Observer) *tuner.Session {
	t.Helper()
	require.NoError(t, cfg.Validate())
	model, err := cost.NewModel(cfg.Pricing)
	require.NoError(t, err)
	s, err := tuner.NewSession(cfg, target, tuner.NewInvoker(client, cfg, fastRetry), model, obs)
	require.NoError(t, err)
	return s
}

func target(id string) tuner.Target {
	return tuner.Target{Function: tuner.FunctionInformation{ID: id}, Payload: []byte(`{}`)}
}

// recorder is an Observer capturing events; onMeasurement runs after each
// recorded measurement.
type recorder struct {
	mu            sync.Mutex
	started       []string
	measurements  map[string][]tuner.Measurement
	finished      []*tuner.TuningResult
	errs          []error
	onMeasurement func(n int)
}

func newRecorder() *recorder {
	return &recorder{measurements: make(map[string][]tuner.Measurement)}
}

func (r *recorder) SessionStarted(sessionID string, fn tuner.FunctionInformation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, fn.ID)
}

func (r *recorder) MeasurementRecorded(sessionID string, m tuner.Measurement) {
	r.mu.Lock()
	r.measurements[sessionID] = append(r.measurements[sessionID], m)
	n := len(r.measurements[sessionID])
	hook := r.onMeasurement
	r.mu.Unlock()
	if hook != nil {
		hook(n)
	}
}

func (r *recorder) SessionFinished(res *tuner.TuningResult, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, res)
	r.errs = append(r.errs, err)
}

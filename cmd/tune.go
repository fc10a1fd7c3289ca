package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gobwas/glob"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lambda-tuner/lambda-tuner/tuner"
	"github.com/lambda-tuner/lambda-tuner/tuner/metrics"
	_ "github.com/lambda-tuner/lambda-tuner/tuner/search" // registers search strategies
)

var (
	// CLI flags for the tuning run
	minMemory         int           // Lowest memory size to test (MB)
	maxMemory         int           // Highest memory size to test (MB)
	memoryStep        int           // Memory grid granularity (MB)
	maxPrice          float64       // Price ceiling in $ per `invocations` invocations
	invocations       int64         // Monthly invocation volume used for monthly costs and the ceiling
	objective         string        // cost, speed or balanced
	strategy          string        // Search strategy name
	samples           int           // Invocations per memory size
	concurrency       int           // Functions tuned in parallel
	maxCandidates     int           // Memory sizes tested per function
	tolerance         float64       // Relative score difference treated as a tie
	costWeight        float64       // Weight of cost in the balanced objective
	throttleRetries   int           // Retries of a throttled invocation
	requestsPerSecond float64       // Shared AWS API call rate (0 = unlimited)
	updateTimeout     time.Duration // Wait for a memory update to be applied
	eventSpecs        []string      // Event files: PATH or FUNCTION=PATH
	configPath        string        // Optional YAML tuning configuration
	outputFormat      string        // table or json
	metricsAddr       string        // Address to serve Prometheus metrics on
	matchPattern      string        // Glob selecting functions by name
)

// tuneCmd tunes the selected functions
var tuneCmd = &cobra.Command{
	Use:   "tune [function...]",
	Short: "Tune the memory size of Lambda functions",
	Long: `Tune invokes each selected function at several memory sizes and recommends
the one that best meets the objective. Select functions by name, with --match,
or both.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, events, err := buildConfig(cmd.Flags().Changed)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if outputFormat != "table" && outputFormat != "json" {
			logrus.Fatalf("Unknown output format %q (want table or json)", outputFormat)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := newFunctionService(ctx)
		if err != nil {
			logrus.Fatalf("Unable to connect to AWS: %v", err)
		}

		observers := tuner.Observers{&progressObserver{w: cmd.ErrOrStderr()}}
		if metricsAddr != "" {
			reg := prometheus.NewRegistry()
			obs, err := metrics.NewObserver(reg)
			if err != nil {
				logrus.Fatalf("Unable to register metrics: %v", err)
			}
			addr, shutdown, err := serveMetrics(metricsAddr, reg)
			if err != nil {
				logrus.Fatalf("Unable to serve metrics: %v", err)
			}
			defer shutdown()
			logrus.Infof("Serving metrics on http://%s/metrics", addr)
			observers = append(observers, obs)
		}

		if err := runTune(ctx, svc, cmd.OutOrStdout(), args, cfg, events, observers); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// buildConfig layers defaults, the --config file and the flags the user set.
func buildConfig(changed func(name string) bool) (tuner.Config, eventSources, error) {
	cfg := tuner.DefaultConfig()
	var fileEvents map[string]string
	if configPath != "" {
		f, err := loadTuningFile(configPath)
		if err != nil {
			return cfg, nil, err
		}
		f.apply(&cfg)
		fileEvents = f.Events
	}

	if changed("min-memory") {
		cfg.MinMemory = tuner.MemorySize(minMemory)
	}
	if changed("max-memory") {
		cfg.MaxMemory = tuner.MemorySize(maxMemory)
	}
	if changed("step") {
		cfg.MemoryStep = tuner.MemorySize(memoryStep)
	}
	if changed("max-price") {
		v := maxPrice
		cfg.MaxPrice = &v
	}
	if changed("invocations") {
		cfg.InvocationsPerMonth = invocations
	}
	if changed("objective") {
		cfg.Objective = tuner.Objective(objective)
	}
	if changed("strategy") {
		cfg.Strategy = strategy
	}
	if changed("samples") {
		cfg.SampleCount = samples
	}
	if changed("concurrency") {
		cfg.Concurrency = concurrency
	}
	if changed("max-candidates") {
		cfg.MaxCandidates = maxCandidates
	}
	if changed("tolerance") {
		cfg.Tolerance = tolerance
	}
	if changed("cost-weight") {
		cfg.CostWeight = costWeight
	}
	if changed("throttle-retries") {
		cfg.ThrottleRetries = throttleRetries
	}
	if changed("requests-per-second") {
		cfg.RequestsPerSecond = requestsPerSecond
	}
	if changed("update-timeout") {
		cfg.UpdateTimeout = updateTimeout
	}

	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	events, err := parseEventSources(eventSpecs, fileEvents)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, events, nil
}

// runTune selects the functions, tunes them and renders the results. It
// returns an error when any function failed.
func runTune(ctx context.Context, svc functionService, w io.Writer, names []string, cfg tuner.Config, events eventSources, observer tuner.Observer) error {
	all, err := svc.ListFunctions(ctx)
	if err != nil {
		return fmt.Errorf("retrieve functions: %w", err)
	}
	selected, err := selectFunctions(all, names, matchPattern)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(selected))
	for _, fn := range selected {
		ids = append(ids, fn.ID)
	}
	payloads, err := events.payloads(ids)
	if err != nil {
		return err
	}
	targets := make([]tuner.Target, 0, len(selected))
	for _, fn := range selected {
		targets = append(targets, tuner.Target{Function: fn, Payload: payloads[fn.ID]})
	}

	coordinator, err := tuner.NewCoordinator(cfg, svc, observer)
	if err != nil {
		return err
	}
	logrus.Infof("Tuning %d function(s) between %s and %s", len(targets), cfg.MinMemory, cfg.MaxMemory)
	outcomes, err := coordinator.Run(ctx, targets)
	if err != nil {
		return err
	}

	reports := buildReports(outcomes)
	if outputFormat == "json" {
		if err := renderJSON(w, reports); err != nil {
			return err
		}
	} else {
		renderResults(w, reports, cfg.InvocationsPerMonth)
	}

	failed := 0
	for _, r := range reports {
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d function(s) could not be tuned cleanly", failed, len(reports))
	}
	return nil
}

// selectFunctions returns the listed functions named in names or matching
// pattern, in listing order.
func selectFunctions(all []tuner.FunctionInformation, names []string, pattern string) ([]tuner.FunctionInformation, error) {
	if len(names) == 0 && pattern == "" {
		return nil, errors.New("no functions selected: pass function names or --match")
	}
	var g glob.Glob
	if pattern != "" {
		var err error
		if g, err = glob.Compile(pattern); err != nil {
			return nil, fmt.Errorf("invalid --match pattern %q: %w", pattern, err)
		}
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var out []tuner.FunctionInformation
	for _, fn := range all {
		hit := wanted[fn.Name] || wanted[fn.ARN]
		delete(wanted, fn.Name)
		delete(wanted, fn.ARN)
		if hit || (g != nil && g.Match(fn.Name)) {
			fn.ID = fn.Name
			out = append(out, fn)
		}
	}
	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for n := range wanted {
			missing = append(missing, n)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("function(s) not found in region %s: %s", region, strings.Join(missing, ", "))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no function matches %q", pattern)
	}
	return out, nil
}

// progressObserver prints each measurement as it is recorded.
type progressObserver struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *progressObserver) SessionStarted(sessionID string, fn tuner.FunctionInformation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s tuning (currently %s)\n", truncateName(fn.ID), memoryLabel(fn.Memory))
}

func (p *progressObserver) MeasurementRecorded(sessionID string, m tuner.Measurement) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case m.ReconfigurationError != "":
		fmt.Fprintf(p.w, "%s %s unconfigurable: %s\n", truncateName(m.FunctionID), memoryLabel(m.Memory), m.ReconfigurationError)
	case !m.Usable():
		fmt.Fprintf(p.w, "%s %s all %d invocations failed\n", truncateName(m.FunctionID), memoryLabel(m.Memory), m.Count)
	default:
		fmt.Fprintf(p.w, "%s %s mean %.1f ms, %s per 1M\n", truncateName(m.FunctionID), memoryLabel(m.Memory), m.Duration.Mean, dollars(m.Cost.PerMillion))
	}
}

func (p *progressObserver) SessionFinished(res *tuner.TuningResult, err error) {}

// serveMetrics exposes reg on addr/metrics and returns the bound address.
func serveMetrics(addr string, reg *prometheus.Registry) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Warnf("metrics server stopped: %v", err)
		}
	}()
	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return ln.Addr().String(), shutdown, nil
}

func init() {
	defaults := tuner.DefaultConfig()
	tuneCmd.Flags().IntVarP(&minMemory, "min-memory", "m", int(defaults.MinMemory), "Minimum amount of memory to test (MB)")
	tuneCmd.Flags().IntVarP(&maxMemory, "max-memory", "M", int(defaults.MaxMemory), "Maximum amount of memory to test (MB)")
	tuneCmd.Flags().IntVar(&memoryStep, "step", int(defaults.MemoryStep), "Memory granularity (MB); min and max must be multiples of it")
	tuneCmd.Flags().Float64VarP(&maxPrice, "max-price", "P", 0, "Maximum price you're willing to spend per --invocations executions per month ($)")
	tuneCmd.Flags().Int64Var(&invocations, "invocations", defaults.InvocationsPerMonth, "Monthly invocations that monthly costs and --max-price refer to")
	tuneCmd.Flags().StringVar(&objective, "objective", string(defaults.Objective), "What to optimize: cost, speed or balanced")
	tuneCmd.Flags().StringVar(&strategy, "strategy", defaults.Strategy, "Search strategy: bisection or grid")
	tuneCmd.Flags().IntVar(&samples, "samples", defaults.SampleCount, "Invocations per memory size")
	tuneCmd.Flags().IntVar(&concurrency, "concurrency", defaults.Concurrency, "Functions tuned in parallel")
	tuneCmd.Flags().IntVar(&maxCandidates, "max-candidates", defaults.MaxCandidates, "Maximum memory sizes tested per function")
	tuneCmd.Flags().Float64Var(&tolerance, "tolerance", defaults.Tolerance, "Relative difference under which two sizes tie (the smaller wins)")
	tuneCmd.Flags().Float64Var(&costWeight, "cost-weight", defaults.CostWeight, "Weight of cost against duration in the balanced objective")
	tuneCmd.Flags().IntVar(&throttleRetries, "throttle-retries", defaults.ThrottleRetries, "Retries of a throttled invocation")
	tuneCmd.Flags().Float64Var(&requestsPerSecond, "requests-per-second", defaults.RequestsPerSecond, "Shared AWS API call rate across all functions (0 = unlimited)")
	tuneCmd.Flags().DurationVar(&updateTimeout, "update-timeout", defaults.UpdateTimeout, "How long to wait for a memory update to be applied")
	tuneCmd.Flags().StringArrayVar(&eventSpecs, "event", nil, "JSON event file sent to every function (PATH) or to one function (FUNCTION=PATH); repeatable")
	tuneCmd.Flags().StringVar(&configPath, "config", "", "YAML tuning configuration file")
	tuneCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table or json")
	tuneCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while tuning (e.g. :9090)")
	tuneCmd.Flags().StringVar(&matchPattern, "match", "", "Tune every function whose name matches this glob (e.g. 'orders-*')")

	rootCmd.AddCommand(tuneCmd)
}

// Package metrics records the outcome of a tuning session as Prometheus
// metrics and writes them in the node exporter textfile format.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/GoSim-25-26J-441/tuneset/internal/solver"
)

// Setting label values of the per-problem work gauge.
const (
	SettingBaseline = "baseline"
	SettingTuned    = "tuned"
)

// Collector collects the metrics of one tuning session
type Collector struct {
	mu sync.Mutex

	startTime time.Time
	endTime   time.Time
	registry  *prometheus.Registry

	runInfo      *prometheus.GaugeVec
	problems     prometheus.Gauge
	fixedParams  *prometheus.GaugeVec
	tuneStatus   prometheus.Gauge
	exitStatus   prometheus.Gauge
	duration     prometheus.Gauge
	evaluations  prometheus.Counter
	ticks        prometheus.Counter
	bestMeasure  prometheus.Gauge
	tunedParams  prometheus.Gauge
	problemTicks *prometheus.GaugeVec
}

// NewCollector creates a collector with its own registry
func NewCollector() *Collector {
	c := &Collector{
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),
		runInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tuneset_run_info",
			Help: "Constant 1 labelled with the run id, engine and tuning measure",
		}, []string{"run_id", "engine", "measure"}),
		problems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tuneset_problems",
			Help: "Number of problem files in the tuning set",
		}),
		fixedParams: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tuneset_fixed_params",
			Help: "Number of fixed parameters passed to the tuning call",
		}, []string{"type"}),
		tuneStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tuneset_tune_status",
			Help: "Tuning status: 0 complete, 1 aborted, 2 time limit, 3 deterministic time limit",
		}),
		exitStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tuneset_exit_status",
			Help: "Library status the process exits with",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tuneset_duration_seconds",
			Help: "Wall clock duration of the session",
		}),
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tuneset_evaluations_total",
			Help: "Parameter settings evaluated over the problem set",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tuneset_ticks_total",
			Help: "Deterministic work spent while tuning",
		}),
		bestMeasure: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tuneset_best_measure",
			Help: "Tuning measure of the best setting relative to the baseline",
		}),
		tunedParams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tuneset_tuned_params",
			Help: "Number of parameters changed by tuning",
		}),
		problemTicks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tuneset_problem_ticks",
			Help: "Work per problem under the baseline and tuned settings",
		}, []string{"file", "setting"}),
	}
	c.registry.MustRegister(
		c.runInfo, c.problems, c.fixedParams, c.tuneStatus, c.exitStatus,
		c.duration, c.evaluations, c.ticks, c.bestMeasure, c.tunedParams, c.problemTicks,
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Start marks the start of the session
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
}

// Stop marks the end of the session and records its duration
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTime = time.Now()
	c.duration.Set(c.endTime.Sub(c.startTime).Seconds())
}

// ObserveProblems records the size of the problem set.
func (c *Collector) ObserveProblems(n int) {
	c.problems.Set(float64(n))
}

// ObserveFixed records how many fixed parameters went into each bucket.
func (c *Collector) ObserveFixed(f solver.FixedParams) {
	c.fixedParams.WithLabelValues("int").Set(float64(len(f.IntNums)))
	c.fixedParams.WithLabelValues("double").Set(float64(len(f.DblNums)))
}

// ObserveReport records the details an engine gives about its tuning run.
// A nil report is ignored.
func (c *Collector) ObserveReport(rep *solver.TuneReport) {
	if rep == nil {
		return
	}
	c.runInfo.WithLabelValues(rep.RunID, rep.Engine, rep.Measure).Set(1)
	c.evaluations.Add(float64(rep.Evaluations))
	c.ticks.Add(rep.Ticks)
	c.bestMeasure.Set(rep.Best)
	c.tunedParams.Set(float64(len(rep.Tuned)))
	for _, p := range rep.Problems {
		c.problemTicks.WithLabelValues(p.File, SettingBaseline).Set(p.BaselineTicks)
		c.problemTicks.WithLabelValues(p.File, SettingTuned).Set(p.TunedTicks)
	}
}

// ObserveExit records the tuning status and the process exit status.
func (c *Collector) ObserveExit(tune solver.TuneStatus, code int) {
	c.tuneStatus.Set(float64(tune))
	c.exitStatus.Set(float64(code))
}

// WriteTextfile writes every metric to path atomically.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

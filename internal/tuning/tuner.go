package tuning

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/tuneset/internal/param"
	"github.com/GoSim-25-26J-441/tuneset/internal/solver"
	"github.com/GoSim-25-26J-441/tuneset/pkg/logger"
	"github.com/GoSim-25-26J-441/tuneset/pkg/utils"
)

// maxIterations bounds the number of accepted moves.
const maxIterations = 50

// ErrNoProblems is returned by Tune when the problem set is empty.
var ErrNoProblems = errors.New("tuning: no problems")

// Config controls a tuning run.
type Config struct {
	Measure int
	// TimeLimit and DetTimeLimit are in seconds and ticks. Values at or
	// above param.Infinity disable the limit.
	TimeLimit    float64
	DetTimeLimit float64
	Repeat       int
	Threads      int
	Display      int
	Output       io.Writer
	Logger       *slog.Logger
	// Explorer defaults to trying every candidate of every parameter.
	Explorer ParameterExplorer
}

// ConfigFromParams reads the tuning controls from s. Progress is written
// to out only while screen output is on. A deterministic time limit
// selects the conservative explorer, whose iterations cost fewer ticks.
func ConfigFromParams(s *param.Set, out io.Writer) Config {
	cfg := Config{
		Measure:      int(s.MustInt(param.TuneMeasure)),
		TimeLimit:    s.MustDbl(param.TuneTimeLimit),
		DetTimeLimit: s.MustDbl(param.TuneDetTimeLimit),
		Repeat:       int(s.MustInt(param.TuneRepeat)),
		Threads:      int(s.MustInt(param.Threads)),
		Output:       out,
	}
	if s.MustInt(param.ScreenOutput) == param.On {
		cfg.Display = int(s.MustInt(param.TuneDisplay))
	}
	if cfg.DetTimeLimit < param.Infinity {
		cfg.Explorer = NewConservativeExplorer()
	}
	return cfg
}

// Result is the outcome of a tuning run.
type Result struct {
	RunID       string
	Best        *param.Set
	Measure     string
	BestMeasure float64
	Status      solver.TuneStatus
	Reason      string
	Evaluations int
	Iterations  int
	Ticks       float64
	Elapsed     time.Duration
	// Tuned lists the ids whose tuned value differs from the start setting.
	Tuned          []int
	BaselineScores []ProblemScore
	BestScores     []ProblemScore
}

// Tuner searches parameter settings for a problem set.
type Tuner struct {
	problems []Problem
	cfg      Config
	solve    SolveFunc
	log      *slog.Logger
}

// NewTuner creates a tuner.
func NewTuner(problems []Problem, cfg Config) *Tuner {
	return &Tuner{problems: problems, cfg: cfg, log: logger.OrDefault(cfg.Logger)}
}

// WithSolver replaces the solve function, mainly for tests.
func (t *Tuner) WithSolver(f SolveFunc) *Tuner {
	t.solve = f
	return t
}

// run holds the state of one Tune call.
type run struct {
	*Tuner
	parent  context.Context
	limited context.Context
	measure Measure
	eval    *Evaluator

	mu          sync.Mutex
	baseline    []ProblemScore
	caps        []float64
	cache       map[string]float64
	scores      map[string][]ProblemScore
	ticks       float64
	evaluations int
	best        float64
}

// Tune starts from start, which already holds the fixed settings, and
// never varies the parameters listed in fixed. The returned settings are
// never scored worse than start.
func (t *Tuner) Tune(ctx context.Context, start *param.Set, fixed []int) (*Result, error) {
	if len(t.problems) == 0 {
		return nil, ErrNoProblems
	}
	measure, err := NewMeasure(t.cfg.Measure)
	if err != nil {
		return nil, err
	}
	began := time.Now()

	limited := ctx
	if t.cfg.TimeLimit < param.Infinity {
		var cancel context.CancelFunc
		limited, cancel = context.WithTimeout(ctx, time.Duration(t.cfg.TimeLimit*float64(time.Second)))
		defer cancel()
	}

	eval := NewEvaluator(t.problems, t.cfg.Repeat, t.cfg.Threads)
	if t.solve != nil {
		eval.WithSolver(t.solve)
	}
	r := &run{
		Tuner:   t,
		parent:  ctx,
		limited: limited,
		measure: measure,
		eval:    eval,
		cache:   make(map[string]float64),
		scores:  make(map[string][]ProblemScore),
		best:    math.Inf(1),
	}

	tunable := tunableDefs(start, fixed)
	t.printf(1, "Tuning %d problems, measure %s, %d tunable parameters.\n", len(t.problems), measure.Name(), len(tunable))
	t.log.Info("tuning started", "problems", len(t.problems), "measure", measure.Name(), "tunable", len(tunable))

	res := &Result{RunID: utils.GenerateRunID(), Measure: measure.Name(), Best: start.Clone(), BestMeasure: 1}
	if err := r.evaluateBaseline(start); err != nil {
		var stop *StopError
		if !errors.As(err, &stop) {
			return nil, err
		}
		res.Status, res.Reason = stop.Status, stop.Reason
		r.fill(res, start, began)
		t.summary(res)
		return res, nil
	}

	opt := NewOptimizer(maxIterations)
	if t.cfg.Explorer != nil {
		opt.WithExplorer(t.cfg.Explorer)
	}
	out, err := opt.Optimize(limited, start, tunable, r.evaluate)
	if err != nil {
		return nil, err
	}
	res.Best = out.BestConfig
	res.BestMeasure = out.BestScore
	res.Status = out.Status
	res.Reason = out.ConvergenceReason
	res.Iterations = out.Iterations
	r.fill(res, start, began)
	t.summary(res)
	return res, nil
}

func (r *run) fill(res *Result, start *param.Set, began time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res.Evaluations = r.evaluations
	res.Ticks = r.ticks
	res.Elapsed = time.Since(began)
	res.BaselineScores = r.baseline
	res.BestScores = r.scores[res.Best.Key()]
	for _, d := range start.Registry().Defs() {
		a, _ := start.Number(d.ID)
		b, _ := res.Best.Number(d.ID)
		if a != b {
			res.Tuned = append(res.Tuned, d.ID)
		}
	}
}

// tunableDefs returns the tunable definitions minus the fixed ones.
func tunableDefs(s *param.Set, fixed []int) []*param.Def {
	skip := make(map[int]bool, len(fixed))
	for _, id := range fixed {
		skip[id] = true
	}
	var out []*param.Def
	for _, d := range s.Registry().Tunable() {
		if !skip[d.ID] {
			out = append(out, d)
		}
	}
	return out
}

// stopCheck reports the budget that is exhausted, if any.
func (r *run) stopCheck() error {
	if r.parent.Err() != nil {
		return &StopError{Status: solver.TuneAbort, Reason: "interrupted"}
	}
	if r.limited.Err() != nil {
		return &StopError{Status: solver.TuneTimeLimit, Reason: "time limit reached"}
	}
	r.mu.Lock()
	ticks := r.ticks
	r.mu.Unlock()
	if r.cfg.DetTimeLimit < param.Infinity && ticks >= r.cfg.DetTimeLimit {
		return &StopError{Status: solver.TuneDetTimeLimit, Reason: "deterministic time limit reached"}
	}
	return nil
}

func (r *run) evaluateBaseline(start *param.Set) error {
	if err := r.stopCheck(); err != nil {
		return err
	}
	scores, interrupted, err := r.eval.Evaluate(r.limited, start, nil)
	if err != nil {
		return err
	}
	if interrupted {
		if err := r.stopCheck(); err != nil {
			return err
		}
		return &StopError{Status: solver.TuneAbort, Reason: "interrupted"}
	}

	caps := make([]float64, len(scores))
	for i, ps := range scores {
		caps[i] = math.Max(ps.Score, 1) * unsolvedPenalty
	}
	key := start.Key()
	r.mu.Lock()
	r.baseline = scores
	r.caps = caps
	r.cache[key] = 1
	r.scores[key] = scores
	r.evaluations++
	r.ticks += totalTicks(scores)
	r.best = 1
	r.mu.Unlock()

	r.printf(2, "Baseline: %s\n", start.Describe())
	r.printf(3, "  evaluation %d: %.4f %s\n", 1, 1.0, start.Describe())
	r.log.Debug("baseline evaluated", "ticks", totalTicks(scores))
	return nil
}

// evaluate is the optimizer's objective: the measure of the ratios of s to
// the baseline over the problem set.
func (r *run) evaluate(ctx context.Context, s *param.Set) (float64, error) {
	key := s.Key()
	r.mu.Lock()
	if v, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return v, nil
	}
	r.mu.Unlock()

	if err := r.stopCheck(); err != nil {
		return 0, err
	}
	scores, interrupted, err := r.eval.Evaluate(ctx, s, r.caps)
	if err != nil {
		return 0, err
	}
	if interrupted {
		if err := r.stopCheck(); err != nil {
			return 0, err
		}
		return 0, &StopError{Status: solver.TuneAbort, Reason: "interrupted"}
	}

	ratios := make([]float64, len(scores))
	for i, ps := range scores {
		ratios[i] = math.Max(ps.Score, 1) / math.Max(r.baseline[i].Score, 1)
	}
	v := r.measure.Aggregate(ratios)

	r.mu.Lock()
	r.cache[key] = v
	r.scores[key] = scores
	r.evaluations++
	r.ticks += totalTicks(scores)
	n := r.evaluations
	improved := v < r.best
	if improved {
		r.best = v
	}
	r.mu.Unlock()

	r.printf(3, "  evaluation %d: %.4f %s\n", n, v, s.Describe())
	if improved {
		r.printf(2, "New best %.4f: %s\n", v, s.Describe())
		r.log.Debug("improved setting", "measure", v, "settings", s.Describe())
	}
	return v, nil
}

func totalTicks(scores []ProblemScore) float64 {
	var sum float64
	for _, ps := range scores {
		sum += ps.Ticks
	}
	return sum
}

func (t *Tuner) printf(level int, format string, args ...any) {
	if t.cfg.Output == nil || t.cfg.Display < level {
		return
	}
	fmt.Fprintf(t.cfg.Output, format, args...)
}

func (t *Tuner) summary(res *Result) {
	t.log.Info("tuning finished",
		"status", res.Status.String(),
		"reason", res.Reason,
		"evaluations", res.Evaluations,
		"measure", res.BestMeasure,
		"ticks", res.Ticks,
	)
	t.printf(1, "Tuning %s: %s after %d evaluations, %.0f ticks.\n", res.Status, res.Reason, res.Evaluations, res.Ticks)
	t.printf(1, "Measure %s: %.4f (baseline 1.0000).\n", res.Measure, res.BestMeasure)
	names := make([]string, 0, len(res.Tuned))
	for _, id := range res.Tuned {
		d, err := res.Best.Registry().Lookup(id)
		if err != nil {
			continue
		}
		v, _ := res.Best.Number(id)
		names = append(names, fmt.Sprintf("%s = %g", d.Name, v))
	}
	sort.Strings(names)
	if len(names) == 0 {
		t.printf(1, "No parameter changes improve on the baseline.\n")
		return
	}
	t.printf(1, "Tuned parameters:\n")
	for _, n := range names {
		t.printf(1, "  %s\n", n)
	}
}

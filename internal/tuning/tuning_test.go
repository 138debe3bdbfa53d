package tuning

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/tuneset/internal/mip"
	"github.com/GoSim-25-26J-441/tuneset/internal/param"
	"github.com/GoSim-25-26J-441/tuneset/internal/problem"
	"github.com/GoSim-25-26J-441/tuneset/internal/solver"
	"github.com/GoSim-25-26J-441/tuneset/pkg/logger"
)

// recorder is a fake solve function whose work depends only on the options.
type recorder struct {
	mu    sync.Mutex
	work  func(opt mip.Options) float64
	calls []mip.Options
}

func (r *recorder) solve(ctx context.Context, m *problem.Model, opt mip.Options) (*mip.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, opt)
	r.mu.Unlock()
	if ctx.Err() != nil {
		return &mip.Result{Status: mip.StatusAborted}, nil
	}
	return &mip.Result{Status: mip.StatusOptimal, Ticks: r.work(opt)}, nil
}

func problems(names ...string) []Problem {
	out := make([]Problem, len(names))
	for i, n := range names {
		out[i] = Problem{Name: n, Model: problem.NewModel(n)}
	}
	return out
}

func testConfig() Config {
	return Config{
		Measure:      param.MeasureAverage,
		TimeLimit:    param.Infinity,
		DetTimeLimit: param.Infinity,
		Repeat:       1,
		Threads:      2,
		Logger:       logger.Discard(),
	}
}

func presolveHurts(opt mip.Options) float64 {
	if opt.Presolve {
		return 100
	}
	return 50
}

func TestTuneFindsImprovement(t *testing.T) {
	rec := &recorder{work: presolveHurts}
	start := param.NewSet(param.Builtin)

	res, err := NewTuner(problems("a", "b"), testConfig()).WithSolver(rec.solve).Tune(context.Background(), start, nil)
	require.NoError(t, err)
	assert.Equal(t, solver.TuneComplete, res.Status)
	assert.InDelta(t, 0.5, res.BestMeasure, 1e-9)
	assert.Equal(t, []int{param.Presolve}, res.Tuned)
	assert.Equal(t, int64(param.Off), res.Best.MustInt(param.Presolve))
	assert.Greater(t, res.Evaluations, 1)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.BaselineScores, 2)
	assert.InDelta(t, 100, res.BaselineScores[0].Score, 1e-9)
	require.Len(t, res.BestScores, 2)
	assert.InDelta(t, 50, res.BestScores[1].Score, 1e-9)

	// start is left untouched
	assert.Equal(t, int64(param.On), start.MustInt(param.Presolve))
}

func TestTuneNeverWorseThanBaseline(t *testing.T) {
	start := param.NewSet(param.Builtin)
	defaults := start.Key()
	rec := &recorder{}
	rec.work = func(opt mip.Options) float64 {
		d := mip.DefaultOptions()
		if opt.Presolve == d.Presolve && opt.Scale == d.Scale && opt.NodeSelect == d.NodeSelect &&
			opt.VariableSelect == d.VariableSelect && opt.BranchDirection == d.BranchDirection &&
			opt.HeuristicFreq == d.HeuristicFreq {
			return 10
		}
		return 40
	}

	res, err := NewTuner(problems("a"), testConfig()).WithSolver(rec.solve).Tune(context.Background(), start, nil)
	require.NoError(t, err)
	assert.Equal(t, solver.TuneComplete, res.Status)
	assert.InDelta(t, 1.0, res.BestMeasure, 1e-9)
	assert.Empty(t, res.Tuned)
	assert.Equal(t, defaults, res.Best.Key())
}

func TestTuneKeepsFixedParameters(t *testing.T) {
	rec := &recorder{work: presolveHurts}
	start := param.NewSet(param.Builtin)

	res, err := NewTuner(problems("a"), testConfig()).WithSolver(rec.solve).Tune(context.Background(), start, []int{param.Presolve})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.BestMeasure, 1e-9)
	for _, opt := range rec.calls {
		assert.True(t, opt.Presolve)
	}
}

func TestTuneCapsNonBaselineRuns(t *testing.T) {
	rec := &recorder{work: presolveHurts}
	_, err := NewTuner(problems("a"), testConfig()).WithSolver(rec.solve).Tune(context.Background(), param.NewSet(param.Builtin), nil)
	require.NoError(t, err)
	require.Greater(t, len(rec.calls), 1)
	assert.Zero(t, rec.calls[0].TickLimit)
	for _, opt := range rec.calls[1:] {
		assert.InDelta(t, 100*unsolvedPenalty, opt.TickLimit, 1e-9)
	}
}

func TestTuneLimits(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		rec := &recorder{work: presolveHurts}
		res, err := NewTuner(problems("a"), testConfig()).WithSolver(rec.solve).Tune(ctx, param.NewSet(param.Builtin), nil)
		require.NoError(t, err)
		assert.Equal(t, solver.TuneAbort, res.Status)
		assert.Zero(t, res.Evaluations)
		assert.Empty(t, rec.calls)
	})

	t.Run("time limit", func(t *testing.T) {
		cfg := testConfig()
		cfg.TimeLimit = 0
		rec := &recorder{work: presolveHurts}
		res, err := NewTuner(problems("a"), cfg).WithSolver(rec.solve).Tune(context.Background(), param.NewSet(param.Builtin), nil)
		require.NoError(t, err)
		assert.Equal(t, solver.TuneTimeLimit, res.Status)
	})

	t.Run("deterministic time limit", func(t *testing.T) {
		cfg := testConfig()
		cfg.DetTimeLimit = 10
		rec := &recorder{work: presolveHurts}
		start := param.NewSet(param.Builtin)
		res, err := NewTuner(problems("a", "b"), cfg).WithSolver(rec.solve).Tune(context.Background(), start, nil)
		require.NoError(t, err)
		assert.Equal(t, solver.TuneDetTimeLimit, res.Status)
		assert.Equal(t, 1, res.Evaluations)
		assert.InDelta(t, 200, res.Ticks, 1e-9)
		assert.True(t, res.Best.Equal(start))
	})
}

func TestTuneErrors(t *testing.T) {
	_, err := NewTuner(nil, testConfig()).Tune(context.Background(), param.NewSet(param.Builtin), nil)
	assert.ErrorIs(t, err, ErrNoProblems)

	cfg := testConfig()
	cfg.Measure = 7
	_, err = NewTuner(problems("a"), cfg).Tune(context.Background(), param.NewSet(param.Builtin), nil)
	var unknown *UnknownMeasureError
	assert.ErrorAs(t, err, &unknown)

	boom := errors.New("boom")
	failing := func(context.Context, *problem.Model, mip.Options) (*mip.Result, error) { return nil, boom }
	_, err = NewTuner(problems("a"), testConfig()).WithSolver(failing).Tune(context.Background(), param.NewSet(param.Builtin), nil)
	assert.ErrorIs(t, err, boom)
}

func TestTuneDisplay(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig()
	cfg.Display = 3
	cfg.Output = &buf
	rec := &recorder{work: presolveHurts}
	_, err := NewTuner(problems("a"), cfg).WithSolver(rec.solve).Tune(context.Background(), param.NewSet(param.Builtin), nil)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Tuning 1 problems, measure average")
	assert.Contains(t, out, "evaluation 2:")
	assert.Contains(t, out, "New best 0.5000: CPXPARAM_Preprocessing_Presolve=0")
	assert.Contains(t, out, "CPXPARAM_Preprocessing_Presolve = 0")

	buf.Reset()
	cfg.Display = 0
	_, err = NewTuner(problems("a"), cfg).WithSolver(rec.solve).Tune(context.Background(), param.NewSet(param.Builtin), nil)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestEvaluatorRepeatsAndPenalty(t *testing.T) {
	var mu sync.Mutex
	var seeds []int64
	unsolved := func(ctx context.Context, m *problem.Model, opt mip.Options) (*mip.Result, error) {
		mu.Lock()
		seeds = append(seeds, opt.Seed)
		mu.Unlock()
		if m.Name == "hard" {
			return &mip.Result{Status: mip.StatusTickLimit, Ticks: 30}, nil
		}
		return &mip.Result{Status: mip.StatusOptimal, Ticks: 20}, nil
	}
	s := param.NewSet(param.Builtin)
	require.NoError(t, s.SetInt(param.RandomSeed, 5))

	scores, interrupted, err := NewEvaluator(problems("easy", "hard"), 3, 0).WithSolver(unsolved).Evaluate(context.Background(), s, nil)
	require.NoError(t, err)
	assert.False(t, interrupted)
	require.Len(t, scores, 2)

	assert.True(t, scores[0].Solved)
	assert.InDelta(t, 20, scores[0].Score, 1e-9)
	assert.InDelta(t, 60, scores[0].Ticks, 1e-9)

	assert.False(t, scores[1].Solved)
	assert.Equal(t, mip.StatusTickLimit, scores[1].Status)
	assert.InDelta(t, 300, scores[1].Score, 1e-9)

	sort.Slice(seeds, func(i, j int) bool { return seeds[i] < seeds[j] })
	assert.Equal(t, []int64{5, 5, 6, 6, 7, 7}, seeds)
}

func TestEvaluatorWithRealSolver(t *testing.T) {
	m, err := problem.ReadLP(bytes.NewBufferString(`Maximize
 obj: 5 a + 4 b + 3 c
Subject To
 w: 2 a + 3 b + c <= 5
Binary
 a b c
End
`))
	require.NoError(t, err)
	scores, _, err := NewEvaluator([]Problem{{Name: "knap", Model: m}}, 1, 1).Evaluate(context.Background(), param.NewSet(param.Builtin), nil)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.True(t, scores[0].Solved)
	assert.Greater(t, scores[0].Ticks, 0.0)
}

func TestMeasures(t *testing.T) {
	ratios := []float64{0.5, 2}
	avg, err := NewMeasure(param.MeasureAverage)
	require.NoError(t, err)
	assert.InDelta(t, 1.25, avg.Aggregate(ratios), 1e-9)
	assert.Equal(t, "average", avg.Name())

	mm, err := NewMeasure(param.MeasureMinMax)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, mm.Aggregate(ratios), 1e-9)
	assert.Equal(t, param.MeasureMinMax, mm.ID())

	_, err = NewMeasure(0)
	assert.Error(t, err)
}

func TestExplorers(t *testing.T) {
	base := param.NewSet(param.Builtin)
	d, err := param.Builtin.Lookup(param.NodeSelect)
	require.NoError(t, err)
	tunable := []*param.Def{d}

	all := NewDefaultExplorer().GenerateNeighbors(base, tunable)
	var got []int64
	for _, n := range all {
		got = append(got, n.MustInt(param.NodeSelect))
	}
	assert.ElementsMatch(t, []int64{0, 2}, got)

	require.NoError(t, base.SetInt(param.NodeSelect, 0))
	near := NewConservativeExplorer().GenerateNeighbors(base, tunable)
	require.Len(t, near, 1)
	assert.Equal(t, int64(1), near[0].MustInt(param.NodeSelect))
}

func TestThresholdStrategy(t *testing.T) {
	steps := func(scores ...float64) []Step {
		out := make([]Step, len(scores))
		for i, s := range scores {
			out[i] = Step{Iteration: i, Score: s}
		}
		return out
	}
	strategy := NewThresholdStrategy(nil)

	ok, reason := strategy.CheckConvergence(steps(1, 0.999, 0.998, 0.997, 0.996))
	assert.True(t, ok)
	assert.Contains(t, reason, "below threshold")

	ok, _ = strategy.CheckConvergence(steps(1, 0.8, 0.6, 0.4, 0.2))
	assert.False(t, ok)

	// too few accepted moves
	ok, _ = strategy.CheckConvergence(steps(1, 0.999, 0.998, 0.997))
	assert.False(t, ok)

	// one large move inside the window
	ok, _ = strategy.CheckConvergence(steps(1, 0.999, 0.5, 0.499, 0.498))
	assert.False(t, ok)
}

func TestOptimizeStopsOnSmallImprovements(t *testing.T) {
	tunable := param.Builtin.Tunable()
	require.GreaterOrEqual(t, len(tunable), 5)

	score := func(_ context.Context, s *param.Set) (float64, error) {
		return 1 - 0.001*float64(len(s.Changed())), nil
	}
	res, err := NewOptimizer(0).Optimize(context.Background(), param.NewSet(param.Builtin), tunable, score)
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Contains(t, res.ConvergenceReason, "below threshold")
	assert.Equal(t, solver.TuneComplete, res.Status)
	assert.Equal(t, 4, res.Iterations)
	require.Len(t, res.History, 5)
	assert.InDelta(t, 0.996, res.BestScore, 1e-12)
	assert.Len(t, res.BestConfig.Changed(), 4)
}

func TestOptimizeStopsAtLocalOptimum(t *testing.T) {
	tunable := param.Builtin.Tunable()
	require.GreaterOrEqual(t, len(tunable), 5)

	score := func(_ context.Context, s *param.Set) (float64, error) {
		return math.Pow(0.5, float64(len(s.Changed()))), nil
	}
	res, err := NewOptimizer(0).Optimize(context.Background(), param.NewSet(param.Builtin), tunable, score)
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, "local optimum reached", res.ConvergenceReason)
	assert.Len(t, res.BestConfig.Changed(), len(tunable))
	assert.Equal(t, len(tunable)+1, res.Iterations)
}

func TestOptimizeStopsAtIterationLimit(t *testing.T) {
	tunable := param.Builtin.Tunable()
	score := func(_ context.Context, s *param.Set) (float64, error) {
		return math.Pow(0.5, float64(len(s.Changed()))), nil
	}
	res, err := NewOptimizer(2).Optimize(context.Background(), param.NewSet(param.Builtin), tunable, score)
	require.NoError(t, err)

	assert.False(t, res.Converged)
	assert.Equal(t, "max iterations reached", res.ConvergenceReason)
	assert.Len(t, res.BestConfig.Changed(), 2)
}

func TestConfigFromParams(t *testing.T) {
	s := param.NewSet(param.Builtin)
	var buf bytes.Buffer
	cfg := ConfigFromParams(s, &buf)
	assert.Zero(t, cfg.Display)
	assert.Equal(t, param.MeasureAverage, cfg.Measure)
	assert.Nil(t, cfg.Explorer)

	require.NoError(t, s.SetInt(param.ScreenOutput, param.On))
	require.NoError(t, s.SetInt(param.TuneDisplay, 2))
	require.NoError(t, s.SetInt(param.TuneMeasure, param.MeasureMinMax))
	cfg = ConfigFromParams(s, &buf)
	assert.Equal(t, 2, cfg.Display)
	assert.Equal(t, param.MeasureMinMax, cfg.Measure)

	require.NoError(t, s.SetDbl(param.TuneDetTimeLimit, 500))
	cfg = ConfigFromParams(s, &buf)
	assert.IsType(t, &ConservativeExplorer{}, cfg.Explorer)
}

package tuning

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/tuneset/internal/mip"
	"github.com/GoSim-25-26J-441/tuneset/internal/param"
	"github.com/GoSim-25-26J-441/tuneset/internal/problem"
)

// unsolvedPenalty multiplies the work of runs that end without proving
// optimality, infeasibility or unboundedness.
const unsolvedPenalty = 10

// SolveFunc solves one model. mip.Solve is used unless replaced.
type SolveFunc func(ctx context.Context, m *problem.Model, opt mip.Options) (*mip.Result, error)

// Problem is a model taking part in tuning.
type Problem struct {
	Name  string
	Model *problem.Model
}

// ProblemScore is the performance of one setting on one problem.
type ProblemScore struct {
	Name string
	// Score is the mean penalised ticks over the repeats.
	Score float64
	// Ticks is the work actually spent.
	Ticks  float64
	Solved bool
	Status mip.Status
}

// Evaluator solves the problem set under a given setting.
type Evaluator struct {
	problems []Problem
	repeat   int
	threads  int
	solve    SolveFunc
}

// NewEvaluator creates an evaluator. threads <= 0 uses every CPU.
func NewEvaluator(problems []Problem, repeat, threads int) *Evaluator {
	if repeat < 1 {
		repeat = 1
	}
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	return &Evaluator{problems: problems, repeat: repeat, threads: threads, solve: mip.Solve}
}

// WithSolver replaces the solve function.
func (e *Evaluator) WithSolver(f SolveFunc) *Evaluator {
	e.solve = f
	return e
}

// Evaluate solves every problem repeat times under s, repeat k using the
// seed RandomSeed+k. caps, when non-nil, bounds the ticks of each solve per
// problem. The boolean result reports that ctx cut a solve short, in which
// case the scores are incomplete.
func (e *Evaluator) Evaluate(ctx context.Context, s *param.Set, caps []float64) ([]ProblemScore, bool, error) {
	base := mip.OptionsFromParams(s)
	results := make([][]*mip.Result, len(e.problems))
	for i := range results {
		results[i] = make([]*mip.Result, e.repeat)
	}

	var interrupted atomic.Bool
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.threads)
	for i, p := range e.problems {
		for r := 0; r < e.repeat; r++ {
			i, p, r := i, p, r
			g.Go(func() error {
				opt := base
				opt.Seed += int64(r)
				if caps != nil {
					opt.TickLimit = caps[i]
				}
				res, err := e.solve(gctx, p.Model, opt)
				if err != nil {
					return err
				}
				if res.Status == mip.StatusAborted {
					interrupted.Store(true)
				}
				results[i][r] = res
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	scores := make([]ProblemScore, len(e.problems))
	for i, p := range e.problems {
		ps := ProblemScore{Name: p.Name, Solved: true}
		for r, res := range results[i] {
			score := res.Ticks
			if !res.Status.Proven() {
				score *= unsolvedPenalty
				ps.Solved = false
			}
			if r == 0 || !res.Status.Proven() {
				ps.Status = res.Status
			}
			ps.Score += score
			ps.Ticks += res.Ticks
		}
		ps.Score /= float64(e.repeat)
		scores[i] = ps
	}
	return scores, interrupted.Load(), nil
}

// Package builtin is a pure Go solver engine. It reads MPS and LP models,
// solves them with the mip package and tunes parameters with the tuning
// package.
package builtin

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/GoSim-25-26J-441/tuneset/internal/param"
	"github.com/GoSim-25-26J-441/tuneset/internal/problem"
	"github.com/GoSim-25-26J-441/tuneset/internal/solver"
	"github.com/GoSim-25-26J-441/tuneset/internal/tuning"
	"github.com/GoSim-25-26J-441/tuneset/pkg/logger"
)

// Name is the registered engine name.
const Name = "builtin"

func init() {
	solver.Register(Name, func() (solver.Env, error) {
		return New(os.Stdout, logger.Default), nil
	})
}

// Env is an environment of the builtin engine. It is safe for concurrent
// use, although tuning holds the lock for its whole run.
type Env struct {
	mu     sync.Mutex
	params *param.Set
	out    io.Writer
	log    *slog.Logger
	solve  tuning.SolveFunc
	last   *solver.TuneReport
	closed bool
}

// New opens an environment writing screen output to out.
func New(out io.Writer, log *slog.Logger) *Env {
	if out == nil {
		out = io.Discard
	}
	return &Env{
		params: param.NewSet(param.Builtin),
		out:    out,
		log:    logger.OrDefault(log).With("engine", Name),
	}
}

// WithSolver replaces the function used to solve each model.
func (e *Env) WithSolver(f tuning.SolveFunc) *Env {
	e.solve = f
	return e
}

// Params returns a copy of the current settings.
func (e *Env) Params() *param.Set {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params.Clone()
}

func (e *Env) lock() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return solver.Errorf(solver.StatusEnvironmentUse, "environment is closed")
	}
	return nil
}

// typed checks that id is registered with one of the given types.
func (e *Env) typed(id int, want ...param.Type) error {
	t, err := e.params.Type(id)
	if err != nil {
		return paramStatus(err)
	}
	for _, w := range want {
		if t == w {
			return nil
		}
	}
	return solver.Errorf(solver.StatusBadParamNum, "parameter %d is %s", id, t)
}

func (e *Env) SetIntParam(id int, v int32) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if err := e.typed(id, param.TypeInt); err != nil {
		return err
	}
	if err := e.params.SetInt(id, int64(v)); err != nil {
		return paramStatus(err)
	}
	return nil
}

func (e *Env) SetLongParam(id int, v int64) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if err := e.typed(id, param.TypeInt, param.TypeLong); err != nil {
		return err
	}
	if err := e.params.SetInt(id, v); err != nil {
		return paramStatus(err)
	}
	return nil
}

func (e *Env) SetDblParam(id int, v float64) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if err := e.typed(id, param.TypeDouble); err != nil {
		return err
	}
	if err := e.params.SetDbl(id, v); err != nil {
		return paramStatus(err)
	}
	return nil
}

func (e *Env) GetIntParam(id int) (int32, error) {
	if err := e.lock(); err != nil {
		return 0, err
	}
	defer e.mu.Unlock()
	if err := e.typed(id, param.TypeInt); err != nil {
		return 0, err
	}
	v, err := e.params.Int(id)
	if err != nil {
		return 0, paramStatus(err)
	}
	return int32(v), nil
}

func (e *Env) GetLongParam(id int) (int64, error) {
	if err := e.lock(); err != nil {
		return 0, err
	}
	defer e.mu.Unlock()
	if err := e.typed(id, param.TypeInt, param.TypeLong); err != nil {
		return 0, err
	}
	v, err := e.params.Int(id)
	if err != nil {
		return 0, paramStatus(err)
	}
	return v, nil
}

func (e *Env) GetDblParam(id int) (float64, error) {
	if err := e.lock(); err != nil {
		return 0, err
	}
	defer e.mu.Unlock()
	v, err := e.params.Dbl(id)
	if err != nil {
		return 0, paramStatus(err)
	}
	return v, nil
}

func (e *Env) ParamType(id int) (param.Type, error) {
	if err := e.lock(); err != nil {
		return param.TypeNone, err
	}
	defer e.mu.Unlock()
	t, err := e.params.Type(id)
	if err != nil {
		return param.TypeNone, paramStatus(err)
	}
	return t, nil
}

func (e *Env) ChangedParams() ([]int, error) {
	if err := e.lock(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	return e.params.Changed(), nil
}

func (e *Env) SetDefaults() error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	e.params.Reset()
	return nil
}

func (e *Env) ReadCopyParam(path string) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if err := param.ReadFile(path, e.params); err != nil {
		e.log.Debug("failed to read parameter file", "path", path, "error", err)
		return fileStatus(err, true)
	}
	return nil
}

func (e *Env) WriteParam(path string) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if err := param.WriteFile(path, e.params); err != nil {
		return fileStatus(err, false)
	}
	return nil
}

// TuneProbSet reads every problem file, applies the fixed settings and
// tunes. On return the environment holds the best settings found, which
// include the fixed ones.
func (e *Env) TuneProbSet(ctx context.Context, files, types []string, fixed solver.FixedParams) (solver.TuneStatus, error) {
	if err := e.lock(); err != nil {
		return solver.TuneAbort, err
	}
	defer e.mu.Unlock()

	if len(files) == 0 {
		return solver.TuneAbort, solver.Errorf(solver.StatusNoProblems, "no problem files")
	}
	if types != nil && len(types) != len(files) {
		return solver.TuneAbort, solver.Errorf(solver.StatusBadArgument, "%d file types for %d files", len(types), len(files))
	}
	if len(fixed.IntNums) != len(fixed.IntVals) || len(fixed.DblNums) != len(fixed.DblVals) {
		return solver.TuneAbort, solver.Errorf(solver.StatusBadArgument, "fixed parameter arrays differ in length")
	}

	problems := make([]tuning.Problem, 0, len(files))
	for i, f := range files {
		var override string
		if types != nil {
			override = types[i]
		}
		m, err := problem.ReadFile(f, override)
		if err != nil {
			return solver.TuneAbort, fileStatus(err, true)
		}
		e.log.Debug("problem loaded", "file", f, "rows", len(m.Rows), "columns", len(m.Columns), "mip", m.IsMIP())
		problems = append(problems, tuning.Problem{Name: f, Model: m})
	}

	start := e.params.Clone()
	ids := make([]int, 0, fixed.Len())
	for k, id := range fixed.IntNums {
		if err := start.SetInt(id, int64(fixed.IntVals[k])); err != nil {
			return solver.TuneAbort, paramStatus(err)
		}
		ids = append(ids, id)
	}
	for k, id := range fixed.DblNums {
		if err := start.SetDbl(id, fixed.DblVals[k]); err != nil {
			return solver.TuneAbort, paramStatus(err)
		}
		ids = append(ids, id)
	}

	cfg := tuning.ConfigFromParams(start, e.out)
	cfg.Logger = e.log
	tuner := tuning.NewTuner(problems, cfg)
	if e.solve != nil {
		tuner.WithSolver(e.solve)
	}
	res, err := tuner.Tune(ctx, start, ids)
	if err != nil {
		return solver.TuneAbort, tuneStatus(err)
	}
	e.params.CopyFrom(res.Best)
	e.last = newReport(res, problems)
	return res.Status, nil
}

// LastTuneReport describes the most recent TuneProbSet call, or nil.
func (e *Env) LastTuneReport() *solver.TuneReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

func (e *Env) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return solver.Errorf(solver.StatusEnvironmentUse, "environment already closed")
	}
	e.closed = true
	return nil
}

func newReport(res *tuning.Result, problems []tuning.Problem) *solver.TuneReport {
	rep := &solver.TuneReport{
		Engine:      Name,
		RunID:       res.RunID,
		Measure:     res.Measure,
		Status:      res.Status,
		Baseline:    1,
		Best:        res.BestMeasure,
		Evaluations: res.Evaluations,
		Iterations:  res.Iterations,
		Ticks:       res.Ticks,
		Reason:      res.Reason,
	}
	for _, id := range res.Tuned {
		if d, err := res.Best.Registry().Lookup(id); err == nil {
			rep.Tuned = append(rep.Tuned, d.Name)
		}
	}
	for i, p := range problems {
		pr := solver.ProblemReport{File: p.Name, MIP: p.Model.IsMIP()}
		if i < len(res.BaselineScores) {
			pr.BaselineTicks = res.BaselineScores[i].Ticks
			pr.BaselineSolve = res.BaselineScores[i].Status.String()
		}
		if i < len(res.BestScores) {
			pr.TunedTicks = res.BestScores[i].Ticks
			pr.TunedSolve = res.BestScores[i].Status.String()
		}
		rep.Problems = append(rep.Problems, pr)
	}
	return rep
}

package mip

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/GoSim-25-26J-441/tuneset/internal/problem"
)

// ErrNilModel is returned by Solve when no model is given.
var ErrNilModel = errors.New("mip: nil model")

// Solve optimizes m. Limits, infeasibility and cancellation are reported in
// the Result status; the error is reserved for invalid input.
func Solve(ctx context.Context, m *problem.Model, opt Options) (*Result, error) {
	if m == nil {
		return nil, ErrNilModel
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	res := &Result{Objective: math.NaN(), Bound: math.NaN(), Gap: math.Inf(1)}
	defer func() { res.Elapsed = time.Since(start) }()

	work := m
	var pre *presolved
	if opt.Presolve {
		pre = presolve(m, opt.IntegralityTol)
		res.Ticks += pre.ticks
		res.PresolvedRows, res.PresolvedCols = pre.rowsOut, pre.colsOut
		if pre.infeasible {
			res.Status = StatusInfeasible
			return res, nil
		}
		work = pre.model
	}

	if len(work.Columns) == 0 {
		x := pre.postsolve(nil)
		if !m.Feasible(x, feasTol) {
			res.Status = StatusInfeasible
			return res, nil
		}
		res.Status = StatusOptimal
		res.finish(m, x, float64(m.Sense)*(m.Evaluate(x)-m.ObjConst))
		return res, nil
	}

	s := newSearch(ctx, work, opt, start)
	status, bound := s.run()
	res.Status = status
	res.Nodes = s.nodes
	res.LPSolves = s.lpSolves
	res.Solutions = s.solutions
	res.Ticks += s.ticks
	if pre != nil {
		bound += pre.offset
	}

	if s.bestX != nil {
		x := s.bestX
		if pre != nil {
			x = pre.postsolve(x)
		}
		res.finish(m, x, bound)
	} else if !math.IsInf(bound, 0) {
		res.Bound = float64(m.Sense)*bound + m.ObjConst
	}
	return res, nil
}

// finish records an incumbent and the internal (minimization) bound.
func (r *Result) finish(m *problem.Model, x []float64, bound float64) {
	r.X = x
	r.Objective = m.Evaluate(x)
	internal := float64(m.Sense) * (r.Objective - m.ObjConst)
	if math.IsInf(bound, 0) || math.IsNaN(bound) {
		bound = internal
	}
	bound = math.Min(bound, internal)
	r.Bound = float64(m.Sense)*bound + m.ObjConst
	r.Gap = math.Abs(internal-bound) / (1e-10 + math.Abs(internal))
}

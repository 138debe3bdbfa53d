package mip

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/GoSim-25-26J-441/tuneset/internal/problem"
)

const (
	feasTol  = 1e-7
	pivotTol = 1e-9
	fixedTol = 1e-12
)

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpUnbounded
	lpNumerical
)

type lpResult struct {
	status lpStatus
	obj    float64
	x      []float64
	ticks  float64
	err    error
}

type entry struct {
	row int
	val float64
}

// relaxation holds a model prepared for repeated LP solves with varying
// column bounds. Costs are negated for maximization so every solve
// minimizes.
type relaxation struct {
	model      *problem.Model
	cost       []float64
	rows       []int
	colEntries [][]entry
	opt        Options
}

func newRelaxation(m *problem.Model, opt Options) *relaxation {
	r := &relaxation{
		model:      m,
		cost:       make([]float64, len(m.Columns)),
		colEntries: make([][]entry, len(m.Columns)),
		opt:        opt,
	}
	for j, c := range m.Columns {
		r.cost[j] = float64(m.Sense) * c.Cost
	}
	for i, row := range m.Rows {
		if math.IsInf(row.Lower, -1) && math.IsInf(row.Upper, 1) {
			continue
		}
		k := len(r.rows)
		r.rows = append(r.rows, i)
		for j, a := range row.Coefs {
			if a != 0 {
				r.colEntries[j] = append(r.colEntries[j], entry{row: k, val: a})
			}
		}
	}
	return r
}

// objective returns the internal (minimization) objective of x.
func (r *relaxation) objective(x []float64) float64 {
	return floats.Dot(r.cost, x)
}

// stdVar maps one bounded variable onto nonnegative standard-form columns:
// x = off + z[plus] - z[minus].
type stdVar struct {
	off   float64
	plus  int
	minus int
}

type stdForm struct {
	c    []float64
	cols [][]entry
	b    []float64
	vars []stdVar
}

func (f *stdForm) addCol(cost float64, entries []entry) int {
	f.c = append(f.c, cost)
	f.cols = append(f.cols, entries)
	return len(f.c) - 1
}

func (f *stdForm) addRow(rhs float64) int {
	f.b = append(f.b, rhs)
	return len(f.b) - 1
}

func negate(es []entry) []entry {
	out := make([]entry, len(es))
	for i, e := range es {
		out[i] = entry{row: e.row, val: -e.val}
	}
	return out
}

// addVar places a variable with bounds [lo, hi] into the standard form.
// It returns false when the bounds are inconsistent.
func (f *stdForm) addVar(cost, lo, hi float64, entries []entry) (stdVar, bool) {
	v := stdVar{plus: -1, minus: -1}
	if lo > hi+feasTol {
		return v, false
	}
	switch {
	case !math.IsInf(lo, 0) && !math.IsInf(hi, 0) && hi-lo <= fixedTol:
		v.off = lo
		for _, e := range entries {
			f.b[e.row] -= e.val * lo
		}
	case !math.IsInf(lo, 0):
		v.off = lo
		for _, e := range entries {
			f.b[e.row] -= e.val * lo
		}
		es := append([]entry(nil), entries...)
		if !math.IsInf(hi, 0) {
			br := f.addRow(hi - lo)
			es = append(es, entry{row: br, val: 1})
			f.addCol(0, []entry{{row: br, val: 1}})
		}
		v.plus = f.addCol(cost, es)
	case !math.IsInf(hi, 0):
		v.off = hi
		for _, e := range entries {
			f.b[e.row] -= e.val * hi
		}
		v.minus = f.addCol(-cost, negate(entries))
	default:
		v.plus = f.addCol(cost, entries)
		v.minus = f.addCol(-cost, negate(entries))
	}
	return v, true
}

func (f *stdForm) value(v stdVar, z []float64) float64 {
	x := v.off
	if v.plus >= 0 {
		x += z[v.plus]
	}
	if v.minus >= 0 {
		x -= z[v.minus]
	}
	return x
}

// build produces the standard form for the given column bounds. Rows with a
// range get a logical variable r with a*x - r = 0 and r in [lower, upper].
func (r *relaxation) build(lo, hi []float64) (*stdForm, bool) {
	f := &stdForm{b: make([]float64, len(r.rows))}
	for k, i := range r.rows {
		row := r.model.Rows[i]
		if row.Upper-row.Lower <= fixedTol {
			f.b[k] = row.Lower
		}
	}
	f.vars = make([]stdVar, 0, len(lo))
	for j := range lo {
		v, ok := f.addVar(r.cost[j], lo[j], hi[j], r.colEntries[j])
		if !ok {
			return nil, false
		}
		f.vars = append(f.vars, v)
	}
	for k, i := range r.rows {
		row := r.model.Rows[i]
		if row.Upper-row.Lower <= fixedTol {
			continue
		}
		if _, ok := f.addVar(0, row.Lower, row.Upper, []entry{{row: k, val: -1}}); !ok {
			return nil, false
		}
	}
	return f, true
}

// solve solves the LP relaxation under the given column bounds.
func (r *relaxation) solve(lo, hi []float64) (res lpResult) {
	f, ok := r.build(lo, hi)
	if !ok {
		return lpResult{status: lpInfeasible}
	}
	z, ticks, status, err := solveStd(f, r.opt)
	res = lpResult{status: status, ticks: ticks, err: err}
	if status != lpOptimal {
		return res
	}
	x := make([]float64, len(f.vars))
	for j, v := range f.vars {
		x[j] = f.value(v, z)
	}
	res.x = x
	res.obj = r.objective(x)
	return res
}

// solveStd reduces the standard form to a full-row-rank system without zero
// rows or columns and hands it to the simplex method.
func solveStd(f *stdForm, opt Options) (z []float64, ticks float64, status lpStatus, err error) {
	m, n := len(f.b), len(f.c)
	dense := make([][]float64, m)
	for i := range dense {
		dense[i] = make([]float64, n)
	}
	for j, es := range f.cols {
		for _, e := range es {
			dense[e.row][j] += e.val
		}
	}

	z = make([]float64, n)

	// Columns without entries sit at zero unless they improve the objective.
	liveCols := make([]int, 0, n)
	for j := 0; j < n; j++ {
		zero := true
		for i := 0; i < m; i++ {
			if dense[i][j] != 0 {
				zero = false
				break
			}
		}
		if !zero {
			liveCols = append(liveCols, j)
			continue
		}
		if f.c[j] < 0 {
			return nil, float64(m), lpUnbounded, nil
		}
	}

	// Normalize rows to unit max norm, flip to b >= 0, drop dependent rows.
	rows := make([][]float64, 0, m)
	rhs := make([]float64, 0, m)
	for i := 0; i < m; i++ {
		row := make([]float64, len(liveCols))
		scale := 0.0
		for k, j := range liveCols {
			row[k] = dense[i][j]
			scale = math.Max(scale, math.Abs(row[k]))
		}
		if scale == 0 {
			if math.Abs(f.b[i]) > feasTol {
				return nil, float64(m), lpInfeasible, nil
			}
			continue
		}
		bi := f.b[i]
		if opt.Scale >= 0 {
			floats.Scale(1/scale, row)
			bi /= scale
		}
		if bi < 0 {
			floats.Scale(-1, row)
			bi = -bi
		}
		rows = append(rows, row)
		rhs = append(rhs, bi)
	}
	keep, consistent := independentRows(rows, rhs)
	if !consistent {
		return nil, float64(m * n), lpInfeasible, nil
	}

	mm, nn := len(keep), len(liveCols)
	ticks = float64(mm*nn) + float64(m)
	if mm == 0 {
		for _, j := range liveCols {
			if f.c[j] < 0 {
				return nil, ticks, lpUnbounded, nil
			}
		}
		return z, ticks, lpOptimal, nil
	}

	a := mat.NewDense(mm, nn, nil)
	b := make([]float64, mm)
	for k, i := range keep {
		a.SetRow(k, rows[i])
		b[k] = rhs[i]
	}
	c := make([]float64, nn)
	for k, j := range liveCols {
		c[k] = f.c[j]
	}

	colScale := make([]float64, nn)
	for k := range colScale {
		colScale[k] = 1
	}
	if opt.Scale == 1 {
		for k := 0; k < nn; k++ {
			s := 0.0
			for i := 0; i < mm; i++ {
				s = math.Max(s, math.Abs(a.At(i, k)))
			}
			if s > 0 {
				colScale[k] = 1 / s
				for i := 0; i < mm; i++ {
					a.Set(i, k, a.At(i, k)*colScale[k])
				}
				c[k] *= colScale[k]
			}
		}
		ticks += float64(mm * nn)
	}

	var zz []float64
	if mm == nn {
		zz, status, err = solveSquare(a, b)
	} else {
		zz, status, err = simplex(c, a, b, opt.OptimalityTol)
	}
	if status != lpOptimal {
		return nil, ticks, status, err
	}
	for k, j := range liveCols {
		z[j] = math.Max(0, zz[k]*colScale[k])
	}
	return z, ticks, lpOptimal, nil
}

func solveSquare(a *mat.Dense, b []float64) ([]float64, lpStatus, error) {
	var x mat.VecDense
	if err := x.SolveVec(a, mat.NewVecDense(len(b), b)); err != nil {
		return nil, lpNumerical, err
	}
	out := make([]float64, len(b))
	for i := range out {
		v := x.AtVec(i)
		if v < -feasTol {
			return nil, lpInfeasible, nil
		}
		out[i] = v
	}
	return out, lpOptimal, nil
}

func simplex(c []float64, a *mat.Dense, b []float64, tol float64) (x []float64, status lpStatus, err error) {
	defer func() {
		if p := recover(); p != nil {
			x, status, err = nil, lpNumerical, fmt.Errorf("simplex panic: %v", p)
		}
	}()
	_, x, err = lp.Simplex(c, a, b, tol, nil)
	switch {
	case err == nil:
		return x, lpOptimal, nil
	case errors.Is(err, lp.ErrInfeasible):
		return nil, lpInfeasible, nil
	case errors.Is(err, lp.ErrUnbounded):
		return nil, lpUnbounded, nil
	default:
		return nil, lpNumerical, err
	}
}

// independentRows returns the indices of a maximal linearly independent
// subset of rows, and false when a dropped row contradicts the kept ones.
// Rows are expected to be normalized.
func independentRows(rows [][]float64, rhs []float64) ([]int, bool) {
	type pivot struct {
		col int
		row []float64
		rhs float64
	}
	var pivots []pivot
	keep := make([]int, 0, len(rows))
	for i, orig := range rows {
		r := append([]float64(nil), orig...)
		v := rhs[i]
		for _, p := range pivots {
			f := r[p.col] / p.row[p.col]
			if f == 0 {
				continue
			}
			floats.AddScaled(r, -f, p.row)
			v -= f * p.rhs
		}
		col, best := -1, 0.0
		for k, x := range r {
			if math.Abs(x) > best {
				col, best = k, math.Abs(x)
			}
		}
		if best <= pivotTol {
			if math.Abs(v) > feasTol*(1+math.Abs(rhs[i])) {
				return nil, false
			}
			continue
		}
		pivots = append(pivots, pivot{col: col, row: r, rhs: v})
		keep = append(keep, i)
	}
	return keep, true
}

package mip

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/GoSim-25-26J-441/tuneset/internal/problem"
)

const presolvePasses = 20

type presolveRow struct {
	coefs map[int]float64
	lo    float64
	hi    float64
	alive bool
}

// presolved is a reduced model plus what is needed to map its solutions
// back onto the original columns.
type presolved struct {
	model      *problem.Model
	colMap     []int
	fixed      []float64
	infeasible bool
	offset     float64
	ticks      float64
	rowsOut    int
	colsOut    int
}

// presolve removes fixed columns, empty and singleton rows and duplicate
// rows. It never changes the optimal objective value.
func presolve(m *problem.Model, intTol float64) *presolved {
	n := len(m.Columns)
	lo := make([]float64, n)
	hi := make([]float64, n)
	alive := make([]bool, n)
	fixed := make([]float64, n)
	for j, c := range m.Columns {
		lo[j], hi[j] = c.Lower, c.Upper
		alive[j] = true
		fixed[j] = math.NaN()
		if c.Integer {
			lo[j], hi[j] = roundBounds(lo[j], hi[j], intTol)
		}
	}
	rows := make([]*presolveRow, len(m.Rows))
	for i, r := range m.Rows {
		coefs := make(map[int]float64, len(r.Coefs))
		for j, a := range r.Coefs {
			if a != 0 {
				coefs[j] = a
			}
		}
		rows[i] = &presolveRow{coefs: coefs, lo: r.Lower, hi: r.Upper, alive: true}
	}

	p := &presolved{fixed: fixed}
	fix := func(j int, v float64) {
		alive[j] = false
		fixed[j] = v
		p.offset += float64(m.Sense) * m.Columns[j].Cost * v
		p.colsOut++
		for _, r := range rows {
			if a, ok := r.coefs[j]; ok && r.alive {
				r.lo -= a * v
				r.hi -= a * v
				delete(r.coefs, j)
			}
		}
	}

	for pass := 0; pass < presolvePasses && !p.infeasible; pass++ {
		changed := false
		for _, r := range rows {
			if !r.alive {
				continue
			}
			p.ticks += float64(len(r.coefs) + 1)
			switch len(r.coefs) {
			case 0:
				if r.lo > feasTol || r.hi < -feasTol {
					p.infeasible = true
				}
				r.alive = false
				p.rowsOut++
				changed = true
			case 1:
				for j, a := range r.coefs {
					l, u := r.lo/a, r.hi/a
					if a < 0 {
						l, u = u, l
					}
					if m.Columns[j].Integer {
						l, u = roundBounds(l, u, intTol)
					}
					lo[j] = math.Max(lo[j], l)
					hi[j] = math.Min(hi[j], u)
					if lo[j] > hi[j]+feasTol {
						p.infeasible = true
					}
				}
				r.alive = false
				p.rowsOut++
				changed = true
			}
		}
		if p.infeasible {
			break
		}

		for j := range alive {
			if !alive[j] {
				continue
			}
			if !math.IsInf(lo[j], 0) && hi[j]-lo[j] <= fixedTol {
				fix(j, lo[j])
				changed = true
			}
		}

		if removeDuplicateRows(rows, p) {
			changed = true
		}
		if p.infeasible || !changed {
			break
		}
	}
	if p.infeasible {
		return p
	}

	reduced := problem.NewModel(m.Name)
	reduced.Sense = m.Sense
	reduced.ObjName = m.ObjName
	index := make(map[int]int)
	for j, c := range m.Columns {
		if !alive[j] {
			continue
		}
		k := reduced.AddColumn(c.Name)
		reduced.Columns[k] = problem.Column{Name: c.Name, Cost: c.Cost, Lower: lo[j], Upper: hi[j], Integer: c.Integer}
		index[j] = k
		p.colMap = append(p.colMap, j)
	}
	for i, r := range rows {
		if !r.alive {
			continue
		}
		k, err := reduced.AddRow(m.Rows[i].Name)
		if err != nil {
			continue
		}
		for j, a := range r.coefs {
			reduced.Rows[k].Coefs[index[j]] = a
		}
		reduced.Rows[k].Lower, reduced.Rows[k].Upper = r.lo, r.hi
	}
	p.model = reduced
	return p
}

// postsolve maps a solution of the reduced model onto the original columns.
func (p *presolved) postsolve(x []float64) []float64 {
	out := append([]float64(nil), p.fixed...)
	for k, j := range p.colMap {
		out[j] = x[k]
	}
	return out
}

func roundBounds(lo, hi, tol float64) (float64, float64) {
	return math.Ceil(lo - tol), math.Floor(hi + tol)
}

// removeDuplicateRows merges rows that are scalar multiples of each other
// by intersecting their ranges.
func removeDuplicateRows(rows []*presolveRow, p *presolved) bool {
	seen := make(map[string]*presolveRow)
	changed := false
	for _, r := range rows {
		if !r.alive || len(r.coefs) == 0 {
			continue
		}
		cols := make([]int, 0, len(r.coefs))
		for j := range r.coefs {
			cols = append(cols, j)
		}
		sort.Ints(cols)
		f := r.coefs[cols[0]]

		var b strings.Builder
		for _, j := range cols {
			b.WriteString(strconv.Itoa(j))
			b.WriteByte(':')
			b.WriteString(strconv.FormatFloat(r.coefs[j]/f, 'g', 12, 64))
			b.WriteByte(';')
		}
		key := b.String()
		p.ticks += float64(len(cols))

		l, u := r.lo/f, r.hi/f
		if f < 0 {
			l, u = u, l
		}
		first, ok := seen[key]
		if !ok {
			seen[key] = r
			continue
		}

		ff := first.coefs[cols[0]]
		fl, fu := first.lo/ff, first.hi/ff
		if ff < 0 {
			fl, fu = fu, fl
		}
		nl, nu := math.Max(fl, l), math.Min(fu, u)
		if nl > nu+feasTol {
			p.infeasible = true
			return true
		}
		first.lo, first.hi = nl*ff, nu*ff
		if ff < 0 {
			first.lo, first.hi = first.hi, first.lo
		}
		r.alive = false
		p.rowsOut++
		changed = true
	}
	return changed
}

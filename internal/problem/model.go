// Package problem holds the in-memory representation of an LP/MIP model and
// readers for the MPS and LP file formats.
package problem

import (
	"fmt"
	"math"
)

// Sense is the objective direction.
type Sense int

const (
	Minimize Sense = 1
	Maximize Sense = -1
)

// Inf is used for absent bounds.
var Inf = math.Inf(1)

// Column is a model variable.
type Column struct {
	Name    string
	Cost    float64
	Lower   float64
	Upper   float64
	Integer bool
}

// Row is a ranged constraint Lower <= sum(Coefs[j]*x[j]) <= Upper.
type Row struct {
	Name  string
	Coefs map[int]float64
	Lower float64
	Upper float64
}

// Model is an LP or MIP.
type Model struct {
	Name      string
	Sense     Sense
	ObjName   string
	ObjConst  float64
	Columns   []Column
	Rows      []Row
	colByName map[string]int
	rowByName map[string]int
}

// NewModel returns an empty minimization model.
func NewModel(name string) *Model {
	return &Model{
		Name:      name,
		Sense:     Minimize,
		colByName: make(map[string]int),
		rowByName: make(map[string]int),
	}
}

// AddColumn adds a continuous column with bounds [0, +inf) and returns its
// index. Adding an existing name returns the existing index.
func (m *Model) AddColumn(name string) int {
	if j, ok := m.colByName[name]; ok {
		return j
	}
	m.Columns = append(m.Columns, Column{Name: name, Lower: 0, Upper: Inf})
	j := len(m.Columns) - 1
	m.colByName[name] = j
	return j
}

// AddRow adds an unbounded row and returns its index.
func (m *Model) AddRow(name string) (int, error) {
	if _, ok := m.rowByName[name]; ok {
		return 0, fmt.Errorf("duplicate row %s", name)
	}
	m.Rows = append(m.Rows, Row{Name: name, Coefs: make(map[int]float64), Lower: -Inf, Upper: Inf})
	i := len(m.Rows) - 1
	m.rowByName[name] = i
	return i, nil
}

// Column returns the index of a named column.
func (m *Model) Column(name string) (int, bool) {
	j, ok := m.colByName[name]
	return j, ok
}

// Row returns the index of a named row.
func (m *Model) Row(name string) (int, bool) {
	i, ok := m.rowByName[name]
	return i, ok
}

// NumIntegers counts integer columns.
func (m *Model) NumIntegers() int {
	n := 0
	for _, c := range m.Columns {
		if c.Integer {
			n++
		}
	}
	return n
}

// NumNonzeros counts constraint coefficients.
func (m *Model) NumNonzeros() int {
	n := 0
	for _, r := range m.Rows {
		n += len(r.Coefs)
	}
	return n
}

// IsMIP reports whether the model has integer columns.
func (m *Model) IsMIP() bool {
	return m.NumIntegers() > 0
}

// Validate checks bounds for consistency.
func (m *Model) Validate() error {
	if len(m.Columns) == 0 {
		return fmt.Errorf("model %s has no columns", m.Name)
	}
	for _, c := range m.Columns {
		if math.IsNaN(c.Lower) || math.IsNaN(c.Upper) || math.IsNaN(c.Cost) {
			return fmt.Errorf("column %s: NaN in data", c.Name)
		}
	}
	for _, r := range m.Rows {
		if math.IsNaN(r.Lower) || math.IsNaN(r.Upper) {
			return fmt.Errorf("row %s: NaN in bounds", r.Name)
		}
		for _, v := range r.Coefs {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %s: invalid coefficient", r.Name)
			}
		}
	}
	return nil
}

// Evaluate returns the objective value of x in the model's own sense.
func (m *Model) Evaluate(x []float64) float64 {
	v := m.ObjConst
	for j, c := range m.Columns {
		v += c.Cost * x[j]
	}
	return v
}

// Feasible reports whether x satisfies every bound and row within tol.
func (m *Model) Feasible(x []float64, tol float64) bool {
	for j, c := range m.Columns {
		if x[j] < c.Lower-tol || x[j] > c.Upper+tol {
			return false
		}
		if c.Integer && math.Abs(x[j]-math.Round(x[j])) > tol {
			return false
		}
	}
	for _, r := range m.Rows {
		act := 0.0
		for j, a := range r.Coefs {
			act += a * x[j]
		}
		scale := 1 + math.Abs(act)
		if act < r.Lower-tol*scale || act > r.Upper+tol*scale {
			return false
		}
	}
	return true
}

// Package mip solves linear and mixed-integer programs by branch and bound
// over LP relaxations. It is the solver behind the builtin engine; the tuning
// search measures its deterministic work counter.
package mip

import (
	"fmt"
	"math"
	"time"

	"github.com/GoSim-25-26J-441/tuneset/internal/param"
)

// Status describes how a solve ended.
type Status int

const (
	StatusOptimal Status = iota + 1
	StatusInfeasible
	StatusUnbounded
	StatusNodeLimit
	StatusSolutionLimit
	StatusTimeLimit
	StatusTickLimit
	StatusAborted
	StatusNumerical
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	case StatusNodeLimit:
		return "node limit"
	case StatusSolutionLimit:
		return "solution limit"
	case StatusTimeLimit:
		return "time limit"
	case StatusTickLimit:
		return "tick limit"
	case StatusAborted:
		return "aborted"
	case StatusNumerical:
		return "numerical difficulties"
	default:
		return fmt.Sprintf("status %d", int(s))
	}
}

// Proven reports whether the status settles the problem.
func (s Status) Proven() bool {
	return s == StatusOptimal || s == StatusInfeasible || s == StatusUnbounded
}

// Node selection strategies.
const (
	NodeSelectDepthFirst   = 0
	NodeSelectBestBound    = 1
	NodeSelectBestEstimate = 2
)

// Options control a solve. The zero value is not useful; start from
// DefaultOptions or OptionsFromParams.
type Options struct {
	Presolve        bool
	Scale           int
	OptimalityTol   float64
	IntegralityTol  float64
	MIPGap          float64
	AbsMIPGap       float64
	NodeLimit       int64
	SolutionLimit   int64
	TimeLimit       time.Duration
	TickLimit       float64
	NodeSelect      int
	VariableSelect  int
	BranchDirection int
	HeuristicFreq   int
	Seed            int64
}

// DefaultOptions mirrors the defaults of the builtin parameter registry.
func DefaultOptions() Options {
	return OptionsFromParams(param.NewSet(param.Builtin))
}

// OptionsFromParams reads solver options from a parameter set built on
// param.Builtin.
func OptionsFromParams(s *param.Set) Options {
	opt := Options{
		Presolve:        s.MustInt(param.Presolve) == param.On,
		Scale:           int(s.MustInt(param.ReadScale)),
		OptimalityTol:   s.MustDbl(param.OptimalityTol),
		IntegralityTol:  s.MustDbl(param.IntegralityTol),
		MIPGap:          s.MustDbl(param.MIPGap),
		AbsMIPGap:       s.MustDbl(param.AbsMIPGap),
		NodeLimit:       s.MustInt(param.NodeLimit),
		SolutionLimit:   s.MustInt(param.SolutionLimit),
		NodeSelect:      int(s.MustInt(param.NodeSelect)),
		VariableSelect:  int(s.MustInt(param.VariableSelect)),
		BranchDirection: int(s.MustInt(param.BranchDirection)),
		HeuristicFreq:   int(s.MustInt(param.HeuristicFreq)),
		Seed:            s.MustInt(param.RandomSeed),
	}
	if tl := s.MustDbl(param.TimeLimit); tl < param.Infinity && tl*float64(time.Second) < math.MaxInt64 {
		opt.TimeLimit = time.Duration(tl * float64(time.Second))
	}
	return opt
}

// Result is the outcome of a solve. Objective and Bound are in the model's
// own sense and include the objective constant.
type Result struct {
	Status    Status
	Objective float64
	Bound     float64
	Gap       float64
	X         []float64
	Nodes     int64
	LPSolves  int
	Solutions int64
	Ticks     float64
	Elapsed   time.Duration

	PresolvedRows int
	PresolvedCols int
}

// HasSolution reports whether an incumbent was found.
func (r *Result) HasSolution() bool {
	return r.X != nil
}

package tuning

import (
	"github.com/GoSim-25-26J-441/tuneset/internal/param"
)

// ParameterExplorer defines strategies for exploring the parameter space
type ParameterExplorer interface {
	// GenerateNeighbors creates settings that differ from base in one
	// tunable parameter.
	GenerateNeighbors(base *param.Set, tunable []*param.Def) []*param.Set
	// Name returns the name of the exploration strategy
	Name() string
}

// DefaultExplorer tries every other candidate value of every tunable
// parameter.
type DefaultExplorer struct{}

// NewDefaultExplorer creates a new default parameter explorer
func NewDefaultExplorer() *DefaultExplorer {
	return &DefaultExplorer{}
}

func (e *DefaultExplorer) Name() string {
	return "default"
}

func (e *DefaultExplorer) GenerateNeighbors(base *param.Set, tunable []*param.Def) []*param.Set {
	neighbors := make([]*param.Set, 0)
	for _, d := range tunable {
		current, err := base.Number(d.ID)
		if err != nil {
			continue
		}
		for _, c := range d.Candidates {
			if c == current {
				continue
			}
			if n := withValue(base, d.ID, c); n != nil {
				neighbors = append(neighbors, n)
			}
		}
	}
	return neighbors
}

// ConservativeExplorer only moves a parameter to the candidates adjacent to
// its current value, which keeps each iteration cheap.
type ConservativeExplorer struct{}

// NewConservativeExplorer creates a new conservative parameter explorer
func NewConservativeExplorer() *ConservativeExplorer {
	return &ConservativeExplorer{}
}

func (e *ConservativeExplorer) Name() string {
	return "conservative"
}

func (e *ConservativeExplorer) GenerateNeighbors(base *param.Set, tunable []*param.Def) []*param.Set {
	neighbors := make([]*param.Set, 0)
	for _, d := range tunable {
		current, err := base.Number(d.ID)
		if err != nil || len(d.Candidates) == 0 {
			continue
		}
		at := nearestCandidate(d.Candidates, current)
		for _, k := range []int{at - 1, at + 1} {
			if k < 0 || k >= len(d.Candidates) || d.Candidates[k] == current {
				continue
			}
			if n := withValue(base, d.ID, d.Candidates[k]); n != nil {
				neighbors = append(neighbors, n)
			}
		}
		if d.Candidates[at] != current {
			if n := withValue(base, d.ID, d.Candidates[at]); n != nil {
				neighbors = append(neighbors, n)
			}
		}
	}
	return neighbors
}

func nearestCandidate(candidates []float64, v float64) int {
	best := 0
	for i, c := range candidates {
		if abs(c-v) < abs(candidates[best]-v) {
			best = i
		}
	}
	return best
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func withValue(base *param.Set, id int, v float64) *param.Set {
	n := base.Clone()
	if err := n.SetNumber(id, v); err != nil {
		return nil
	}
	return n
}

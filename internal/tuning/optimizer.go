package tuning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/GoSim-25-26J-441/tuneset/internal/param"
	"github.com/GoSim-25-26J-441/tuneset/internal/solver"
)

// improvementTol is the relative decrease a neighbor needs to replace the
// current setting.
const improvementTol = 1e-9

// EvaluateFunc scores a setting. Lower is better.
type EvaluateFunc func(ctx context.Context, s *param.Set) (float64, error)

// StopError is returned by an EvaluateFunc when the tuning budget is spent.
// The optimizer then returns the best setting found so far.
type StopError struct {
	Status solver.TuneStatus
	Reason string
}

func (e *StopError) Error() string {
	return fmt.Sprintf("tuning stopped (%s): %s", e.Status, e.Reason)
}

// Optimizer implements a hill-climbing search over parameter settings
type Optimizer struct {
	maxIterations int
	explorer      ParameterExplorer
	convergence   ConvergenceStrategy
	mu            sync.RWMutex
	bestScore     float64
	bestConfig    *param.Set
	iteration     int
	history       []Step
}

// Step is the starting setting or an accepted move.
type Step struct {
	Iteration int
	Score     float64
	Settings  *param.Set
}

// OptimizationResult contains the final optimization result
type OptimizationResult struct {
	BestConfig        *param.Set
	BestScore         float64
	Iterations        int
	History           []Step
	Status            solver.TuneStatus
	Converged         bool
	ConvergenceReason string
}

// NewOptimizer creates a new hill-climbing optimizer
func NewOptimizer(maxIterations int) *Optimizer {
	if maxIterations <= 0 {
		maxIterations = 50
	}
	return &Optimizer{
		maxIterations: maxIterations,
		explorer:      NewDefaultExplorer(),
		convergence:   NewThresholdStrategy(nil),
		bestScore:     math.MaxFloat64,
		history:       make([]Step, 0),
	}
}

// WithExplorer sets a custom parameter exploration strategy
func (o *Optimizer) WithExplorer(explorer ParameterExplorer) *Optimizer {
	o.explorer = explorer
	return o
}

// Optimize climbs from initial, moving to the best strictly improving
// neighbor until none exists, the convergence strategy fires, or evaluate
// reports that the budget is spent.
func (o *Optimizer) Optimize(ctx context.Context, initial *param.Set, tunable []*param.Def, evaluate EvaluateFunc) (*OptimizationResult, error) {
	if initial == nil {
		return nil, fmt.Errorf("initial settings are required")
	}
	if evaluate == nil {
		return nil, fmt.Errorf("evaluation function is required")
	}

	o.mu.Lock()
	o.bestConfig = initial.Clone()
	o.bestScore = math.MaxFloat64
	o.iteration = 0
	o.history = make([]Step, 0)
	o.mu.Unlock()

	initialScore, err := evaluate(ctx, initial)
	if err != nil {
		return o.stopped(err, "failed to evaluate initial settings")
	}

	o.mu.Lock()
	o.bestScore = initialScore
	o.history = append(o.history, Step{Iteration: 0, Score: initialScore, Settings: initial.Clone()})
	o.mu.Unlock()
	current := initial.Clone()
	currentScore := initialScore

	for iteration := 1; iteration <= o.maxIterations; iteration++ {
		o.mu.Lock()
		o.iteration = iteration
		o.mu.Unlock()

		neighbors := o.explorer.GenerateNeighbors(current, tunable)
		if len(neighbors) == 0 {
			return o.buildResult(solver.TuneComplete, true, "no valid neighbors"), nil
		}

		var bestNeighbor *param.Set
		bestNeighborScore := math.MaxFloat64
		for _, neighbor := range neighbors {
			score, err := evaluate(ctx, neighbor)
			if err != nil {
				return o.stopped(err, "failed to evaluate neighbor")
			}
			if score < bestNeighborScore {
				bestNeighborScore = score
				bestNeighbor = neighbor
			}
		}

		if bestNeighbor == nil || bestNeighborScore >= currentScore*(1-improvementTol) {
			return o.buildResult(solver.TuneComplete, true, "local optimum reached"), nil
		}

		current = bestNeighbor
		currentScore = bestNeighborScore
		o.mu.Lock()
		if currentScore < o.bestScore {
			o.bestScore = currentScore
			o.bestConfig = current.Clone()
		}
		o.history = append(o.history, Step{Iteration: iteration, Score: currentScore, Settings: current.Clone()})
		history := o.history
		o.mu.Unlock()

		if converged, reason := o.convergence.CheckConvergence(history); converged {
			return o.buildResult(solver.TuneComplete, true, reason), nil
		}
	}

	return o.buildResult(solver.TuneComplete, false, "max iterations reached"), nil
}

func (o *Optimizer) stopped(err error, what string) (*OptimizationResult, error) {
	var stop *StopError
	if errors.As(err, &stop) {
		return o.buildResult(stop.Status, false, stop.Reason), nil
	}
	return nil, fmt.Errorf("%s: %w", what, err)
}

// buildResult constructs the optimization result
func (o *Optimizer) buildResult(status solver.TuneStatus, converged bool, reason string) *OptimizationResult {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return &OptimizationResult{
		BestConfig:        o.bestConfig.Clone(),
		BestScore:         o.bestScore,
		Iterations:        o.iteration,
		History:           o.history,
		Status:            status,
		Converged:         converged,
		ConvergenceReason: reason,
	}
}

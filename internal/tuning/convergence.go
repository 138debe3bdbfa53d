package tuning

import (
	"fmt"
	"math"
)

// ConvergenceStrategy decides when the climb is no longer worth its cost.
// History holds the starting setting followed by every accepted move, so
// scores in it strictly decrease.
type ConvergenceStrategy interface {
	// CheckConvergence checks if the search has converged based on history
	CheckConvergence(history []Step) (bool, string)
	// Name returns the name of the convergence strategy
	Name() string
}

// ConvergenceConfig holds configuration for convergence detection
type ConvergenceConfig struct {
	// ImprovementThreshold is the minimum relative improvement to consider significant
	ImprovementThreshold float64
	// Window is the number of consecutive accepted moves that must all fall
	// below the threshold
	Window int
	// MinIterations is the minimum number of accepted moves before convergence can be detected
	MinIterations int
}

// DefaultConvergenceConfig returns a default convergence configuration
func DefaultConvergenceConfig() *ConvergenceConfig {
	return &ConvergenceConfig{
		ImprovementThreshold: 0.005,
		Window:               3,
		MinIterations:        4,
	}
}

// ThresholdStrategy detects convergence when improvements are below threshold
type ThresholdStrategy struct {
	config *ConvergenceConfig
}

// NewThresholdStrategy creates a new improvement threshold convergence strategy
func NewThresholdStrategy(config *ConvergenceConfig) *ThresholdStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &ThresholdStrategy{config: config}
}

func (s *ThresholdStrategy) Name() string {
	return "improvement_threshold"
}

func (s *ThresholdStrategy) CheckConvergence(history []Step) (bool, string) {
	window := s.config.Window + 1
	if len(history) < s.config.MinIterations+1 || len(history) < window {
		return false, ""
	}

	recent := history[len(history)-window:]
	maxImprovement := math.Inf(-1)
	for i := 1; i < len(recent); i++ {
		if recent[i-1].Score <= 0 {
			return false, ""
		}
		imp := (recent[i-1].Score - recent[i].Score) / recent[i-1].Score
		if imp > s.config.ImprovementThreshold {
			return false, ""
		}
		maxImprovement = math.Max(maxImprovement, imp)
	}
	return true, fmt.Sprintf("improvements below threshold (max: %.4f%%, threshold: %.4f%%)", maxImprovement*100, s.config.ImprovementThreshold*100)
}

// Package tuning searches solver parameter settings that reduce the work
// needed to solve a set of problems.
package tuning

import (
	"fmt"

	"github.com/GoSim-25-26J-441/tuneset/internal/param"
	"github.com/GoSim-25-26J-441/tuneset/pkg/utils"
)

// Measure aggregates per-problem performance ratios into one score.
// Lower scores are better; the baseline settings score 1.
type Measure interface {
	// Aggregate combines the ratios of a setting to the baseline.
	Aggregate(ratios []float64) float64

	// Name returns the name of the measure.
	Name() string

	// ID returns the Tune_Measure parameter value selecting this measure.
	ID() int
}

// AverageMeasure scores a setting by its mean ratio over the problem set.
type AverageMeasure struct{}

func (AverageMeasure) Name() string { return "average" }

func (AverageMeasure) ID() int { return param.MeasureAverage }

func (AverageMeasure) Aggregate(ratios []float64) float64 {
	return utils.Mean(ratios)
}

// MinMaxMeasure scores a setting by its worst ratio, favouring settings that
// never do badly on any problem.
type MinMaxMeasure struct{}

func (MinMaxMeasure) Name() string { return "minmax" }

func (MinMaxMeasure) ID() int { return param.MeasureMinMax }

func (MinMaxMeasure) Aggregate(ratios []float64) float64 {
	return utils.MaxOf(ratios)
}

// NewMeasure returns the measure for a Tune_Measure value.
func NewMeasure(id int) (Measure, error) {
	switch id {
	case param.MeasureAverage:
		return AverageMeasure{}, nil
	case param.MeasureMinMax:
		return MinMaxMeasure{}, nil
	default:
		return nil, &UnknownMeasureError{ID: id}
	}
}

// UnknownMeasureError indicates an unknown tuning measure
type UnknownMeasureError struct {
	ID int
}

func (e *UnknownMeasureError) Error() string {
	return fmt.Sprintf("unknown tuning measure: %d", e.ID)
}

// Package solver defines the solver environment contract the tuning driver
// talks to, and a registry of engines implementing it.
package solver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/GoSim-25-26J-441/tuneset/internal/param"
)

// TuneStatus reports how a tuning call ended. Values match CPX_TUNE_*.
type TuneStatus int

const (
	TuneComplete     TuneStatus = 0
	TuneAbort        TuneStatus = 1
	TuneTimeLimit    TuneStatus = 2
	TuneDetTimeLimit TuneStatus = 3
)

func (s TuneStatus) String() string {
	switch s {
	case TuneComplete:
		return "complete"
	case TuneAbort:
		return "aborted"
	case TuneTimeLimit:
		return "time limit"
	case TuneDetTimeLimit:
		return "deterministic time limit"
	default:
		return fmt.Sprintf("tune status %d", int(s))
	}
}

// FixedParams are settings excluded from the tuning search. The tuning
// interface only accepts 32-bit integers, so LONG parameters travel in the
// integer arrays.
type FixedParams struct {
	IntNums []int
	IntVals []int32
	DblNums []int
	DblVals []float64
}

// Len returns the total number of fixed settings.
func (f FixedParams) Len() int {
	return len(f.IntNums) + len(f.DblNums)
}

// Env is an open solver environment.
type Env interface {
	SetIntParam(id int, v int32) error
	SetLongParam(id int, v int64) error
	SetDblParam(id int, v float64) error
	GetIntParam(id int) (int32, error)
	GetLongParam(id int) (int64, error)
	GetDblParam(id int) (float64, error)
	ParamType(id int) (param.Type, error)

	// ChangedParams returns the ids of parameters not at their default.
	ChangedParams() ([]int, error)
	// SetDefaults resets every parameter to its default.
	SetDefaults() error
	// ReadCopyParam reads a parameter file into the environment.
	ReadCopyParam(path string) error
	// WriteParam writes the non-default parameters to a parameter file.
	WriteParam(path string) error

	// TuneProbSet tunes parameters over a set of problem files. types may be
	// nil or hold one entry per file; an empty entry infers the type from the
	// file name. On return the environment holds the tuned settings.
	TuneProbSet(ctx context.Context, files, types []string, fixed FixedParams) (TuneStatus, error)

	Close() error
}

// Engine opens environments.
type Engine func() (Env, error)

var (
	enginesMu sync.RWMutex
	engines   = make(map[string]Engine)
)

// Register makes an engine available by name. It panics on duplicates.
func Register(name string, engine Engine) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	if engine == nil {
		panic("solver: Register engine is nil")
	}
	if _, dup := engines[name]; dup {
		panic("solver: Register called twice for engine " + name)
	}
	engines[name] = engine
}

// Engines returns the registered engine names in sorted order.
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultEngine prefers the commercial engine when it was compiled in.
func DefaultEngine() string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	if _, ok := engines["cplex"]; ok {
		return "cplex"
	}
	return "builtin"
}

// Open opens an environment of the named engine.
func Open(name string) (Env, error) {
	enginesMu.RLock()
	engine, ok := engines[name]
	enginesMu.RUnlock()
	if !ok {
		return nil, &StatusError{Code: StatusNoEnvironment, Msg: fmt.Sprintf("unknown engine %q", name)}
	}
	return engine()
}

// Reporter is implemented by engines that can describe their last tuning
// call in detail. The cplex engine does not expose this.
type Reporter interface {
	LastTuneReport() *TuneReport
}

// TuneReport summarises a tuning call.
type TuneReport struct {
	Engine      string
	RunID       string
	Measure     string
	Status      TuneStatus
	Baseline    float64
	Best        float64
	Evaluations int
	Iterations  int
	Ticks       float64
	Reason      string
	Tuned       []string
	Problems    []ProblemReport
}

// ProblemReport holds per-problem work for the baseline and tuned settings.
type ProblemReport struct {
	File          string
	MIP           bool
	BaselineTicks float64
	TunedTicks    float64
	BaselineSolve string
	TunedSolve    string
}

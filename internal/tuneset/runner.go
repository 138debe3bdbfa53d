// Package tuneset drives a parameter tuning session: it prepares a solver
// environment, hands it the problem set and saves the tuned settings.
package tuneset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/GoSim-25-26J-441/tuneset/internal/param"
	"github.com/GoSim-25-26J-441/tuneset/internal/solver"
	"github.com/GoSim-25-26J-441/tuneset/pkg/logger"
	"github.com/GoSim-25-26J-441/tuneset/pkg/utils"
)

// Options describe one tuning session.
type Options struct {
	// Files are the problem files, at least one.
	Files []string
	// Types optionally overrides the file type of each file.
	Types []string
	// FixedFile is a parameter file whose settings are excluded from tuning.
	FixedFile string
	// TunedFile receives the tuned settings when tuning completes.
	TunedFile string
	// Measure is param.MeasureAverage, param.MeasureMinMax or 0 to keep the
	// engine default.
	Measure int
	// Controls are further settings applied after the measure, such as
	// tuning time limits. They count as fixed when a fixed file is read.
	Controls []Control
}

// Control is a numeric parameter setting.
type Control struct {
	ID    int
	Value float64
}

// Outcome records what a session did.
type Outcome struct {
	Fixed      solver.FixedParams
	Tuned      bool
	TuneStatus solver.TuneStatus
	Written    bool
	Report     *solver.TuneReport
}

// Runner executes sessions against environments produced by Open.
type Runner struct {
	Open   func() (solver.Env, error)
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// NewRunner creates a runner writing to the process streams.
func NewRunner(open func() (solver.Env, error), log *slog.Logger) *Runner {
	return &Runner{Open: open, Stdout: os.Stdout, Stderr: os.Stderr, Logger: logger.OrDefault(log)}
}

func (r *Runner) out(format string, args ...any) {
	fmt.Fprintf(r.Stdout, format, args...)
}

func (r *Runner) fail(format string, args ...any) {
	fmt.Fprintf(r.Stderr, format, args...)
}

// Run performs the session. The first failing environment call ends it
// and its status is returned as a *solver.StatusError. The environment is
// always closed, and a close failure replaces any earlier error. A tuning
// run that stops early is reported but is not an error.
func (r *Runner) Run(ctx context.Context, opts Options) (out *Outcome, err error) {
	log := logger.OrDefault(r.Logger)
	out = &Outcome{}

	env, err := r.Open()
	if err != nil {
		r.fail("Could not open solver environment.\n")
		r.fail("%v\n", err)
		if solver.Code(err) == solver.StatusUnknown {
			err = solver.Wrap(solver.StatusNoEnvironment, err)
		}
		return out, err
	}
	defer func() {
		if cerr := env.Close(); cerr != nil {
			r.fail("Could not close solver environment.\n")
			r.fail("%v\n", cerr)
			err = cerr
		}
	}()

	r.out("Problem set:\n")
	for _, f := range opts.Files {
		r.out("  %s\n", f)
	}

	if err = env.SetIntParam(param.ScreenOutput, param.On); err != nil {
		r.fail("Failure to turn on screen indicator, error %d.\n", solver.Code(err))
		return out, err
	}

	if opts.Measure != 0 {
		if err = env.SetIntParam(param.TuneMeasure, int32(opts.Measure)); err != nil {
			r.fail("Failure to set tuning measure, error %d.\n", solver.Code(err))
			return out, err
		}
	}

	for _, c := range opts.Controls {
		if err = setControl(env, c); err != nil {
			r.fail("Failure to set parameter %d, error %d.\n", c.ID, solver.Code(err))
			return out, err
		}
	}

	if opts.FixedFile != "" {
		if err = env.ReadCopyParam(opts.FixedFile); err != nil {
			r.fail("Failure to read fixed parameter file\n")
			log.Warn("fixed parameter file rejected", "path", opts.FixedFile, "error", err)
			return out, err
		}
		if out.Fixed, err = ClassifyFixed(env); err != nil {
			return out, err
		}
		log.Info("fixed parameters collected", "int", len(out.Fixed.IntNums), "double", len(out.Fixed.DblNums))

		// The fixed settings travel in out.Fixed; drop them from the
		// environment so only the tuning call applies them.
		if err = env.SetDefaults(); err != nil {
			return out, err
		}
		if serr := env.SetIntParam(param.ScreenOutput, param.On); serr != nil {
			log.Warn("failed to restore screen output", "error", serr)
		}
	}

	status, err := env.TuneProbSet(ctx, opts.Files, opts.Types, out.Fixed)
	if err != nil {
		r.fail("Failed to tune, status = %d.\n", solver.Code(err))
		return out, err
	}
	out.TuneStatus = status
	if rep, ok := env.(solver.Reporter); ok {
		out.Report = rep.LastTuneReport()
	}
	if status != solver.TuneComplete {
		r.fail("Tuning incomplete, status = %d.\n", int(status))
		log.Warn("tuning stopped early", "status", status.String())
		return out, nil
	}
	out.Tuned = true
	r.out("Tuning complete.\n")

	if opts.TunedFile != "" {
		if err = env.WriteParam(opts.TunedFile); err != nil {
			r.fail("Failed to write tuned parameter file.\n")
			return out, err
		}
		out.Written = true
		r.out("Tuned parameters written to file '%s'.\n", opts.TunedFile)
	}
	return out, nil
}

func setControl(env solver.Env, c Control) error {
	t, err := env.ParamType(c.ID)
	if err != nil {
		return err
	}
	switch t {
	case param.TypeInt:
		return env.SetIntParam(c.ID, utils.ClampInt64ToInt32(int64(c.Value)))
	case param.TypeLong:
		return env.SetLongParam(c.ID, int64(c.Value))
	case param.TypeDouble:
		return env.SetDblParam(c.ID, c.Value)
	}
	return solver.Errorf(solver.StatusBadParamNum, "parameter %d is %s", c.ID, t)
}

// ClassifyFixed collects the non-default settings of env in ascending id
// order. INT and LONG values go to the integer arrays, LONG values clamped
// to the int32 range; DOUBLE values go to the double arrays. Other types
// are skipped.
func ClassifyFixed(env solver.Env) (solver.FixedParams, error) {
	var fixed solver.FixedParams
	ids, err := env.ChangedParams()
	if err != nil {
		return fixed, err
	}
	ids = append([]int(nil), ids...)
	sort.Ints(ids)

	for _, id := range ids {
		t, err := env.ParamType(id)
		if err != nil {
			return fixed, err
		}
		switch t {
		case param.TypeInt:
			v, err := env.GetIntParam(id)
			if err != nil {
				return fixed, err
			}
			fixed.IntNums = append(fixed.IntNums, id)
			fixed.IntVals = append(fixed.IntVals, v)
		case param.TypeLong:
			v, err := env.GetLongParam(id)
			if err != nil {
				return fixed, err
			}
			fixed.IntNums = append(fixed.IntNums, id)
			fixed.IntVals = append(fixed.IntVals, utils.ClampInt64ToInt32(v))
		case param.TypeDouble:
			v, err := env.GetDblParam(id)
			if err != nil {
				return fixed, err
			}
			fixed.DblNums = append(fixed.DblNums, id)
			fixed.DblVals = append(fixed.DblVals, v)
		}
	}
	return fixed, nil
}

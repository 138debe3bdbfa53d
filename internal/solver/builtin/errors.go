package builtin

import (
	"errors"
	"io/fs"

	"github.com/GoSim-25-26J-441/tuneset/internal/param"
	"github.com/GoSim-25-26J-441/tuneset/internal/problem"
	"github.com/GoSim-25-26J-441/tuneset/internal/solver"
	"github.com/GoSim-25-26J-441/tuneset/internal/tuning"
)

// paramStatus maps a parameter error onto a library status.
func paramStatus(err error) error {
	var pe *param.Error
	if !errors.As(err, &pe) {
		return solver.Wrap(solver.StatusUnknown, err)
	}
	code := solver.StatusBadParamNum
	switch pe.Kind {
	case param.ErrTooSmall:
		code = solver.StatusParamTooSmall
	case param.ErrTooBig:
		code = solver.StatusParamTooBig
	case param.ErrUnknownName:
		code = solver.StatusBadParamName
	case param.ErrBadData:
		code = solver.StatusParamFileData
	case param.ErrBadHeader:
		code = solver.StatusParamFileHead
	}
	return solver.Wrap(code, err)
}

// fileStatus maps errors from opening or parsing files. reading selects
// the status used for open failures.
func fileStatus(err error, reading bool) error {
	var pathErr *fs.PathError
	switch {
	case errors.As(err, &pathErr):
		if reading {
			return solver.Wrap(solver.StatusFailOpenRead, err)
		}
		return solver.Wrap(solver.StatusFailOpenWrite, err)
	case errors.Is(err, problem.ErrUnknownType), errors.Is(err, problem.ErrUnsupportedType):
		return solver.Wrap(solver.StatusBadFileType, err)
	}
	var pe *param.Error
	if errors.As(err, &pe) {
		return paramStatus(err)
	}
	return solver.Wrap(solver.StatusReadError, err)
}

// tuneStatus maps a failed tuning run.
func tuneStatus(err error) error {
	var unknown *tuning.UnknownMeasureError
	switch {
	case errors.Is(err, tuning.ErrNoProblems):
		return solver.Wrap(solver.StatusNoProblems, err)
	case errors.As(err, &unknown):
		return solver.Wrap(solver.StatusBadArgument, err)
	}
	return solver.Wrap(solver.StatusSolveFailure, err)
}

package solver

import (
	"errors"
	"fmt"
)

// Status codes. The numbering follows the CPLEX error codes so both engines
// report the same process exit status for the same failure.
const (
	StatusOK             = 0
	StatusNoMemory       = 1001
	StatusNoEnvironment  = 1002
	StatusBadArgument    = 1003
	StatusEnvironmentUse = 1006
	StatusBadParamNum    = 1013
	StatusParamTooSmall  = 1014
	StatusParamTooBig    = 1015
	StatusBadParamName   = 1028
	StatusFailOpenWrite  = 1422
	StatusFailOpenRead   = 1423
	StatusBadFileType    = 1424
	StatusReadError      = 1427
	StatusNoProblems     = 1560
	StatusParamFileData  = 1660
	StatusParamFileHead  = 1661
	StatusSolveFailure   = 3003
	StatusUnknown        = 9999
)

// StatusError is a failing library status.
type StatusError struct {
	Code int
	Msg  string
	Err  error
}

func (e *StatusError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = Describe(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("status %d: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("status %d: %s", e.Code, msg)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Errorf builds a StatusError with a formatted message.
func Errorf(code int, format string, args ...any) error {
	return &StatusError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a status code to err. A nil err stays nil.
func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return &StatusError{Code: code, Err: err}
}

// Code returns the status carried by err: 0 for nil, the StatusError code
// when one is in the chain, StatusUnknown otherwise.
func Code(err error) int {
	if err == nil {
		return StatusOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return StatusUnknown
}

// Describe returns the message for a status code.
func Describe(code int) string {
	switch code {
	case StatusOK:
		return "no error"
	case StatusNoMemory:
		return "out of memory"
	case StatusNoEnvironment:
		return "no environment exists"
	case StatusBadArgument:
		return "invalid argument"
	case StatusEnvironmentUse:
		return "environment is closed"
	case StatusBadParamNum:
		return "invalid parameter number"
	case StatusParamTooSmall:
		return "parameter value too small"
	case StatusParamTooBig:
		return "parameter value too big"
	case StatusBadParamName:
		return "invalid parameter name"
	case StatusFailOpenWrite:
		return "could not open file for writing"
	case StatusFailOpenRead:
		return "could not open file for reading"
	case StatusBadFileType:
		return "invalid file type"
	case StatusReadError:
		return "error reading problem file"
	case StatusNoProblems:
		return "no problems to tune"
	case StatusParamFileData:
		return "illegal parameter file data"
	case StatusParamFileHead:
		return "illegal parameter file header"
	case StatusSolveFailure:
		return "solve failure"
	default:
		return "unknown error"
	}
}

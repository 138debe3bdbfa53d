package param

import (
	"fmt"
	"math"
)

// Type is the value type of a solver parameter. The numeric values match the
// CPX_PARAMTYPE_* constants of the CPLEX callable library.
type Type int

const (
	TypeNone   Type = 0
	TypeInt    Type = 1
	TypeDouble Type = 2
	TypeString Type = 3
	TypeLong   Type = 4
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeLong:
		return "long"
	default:
		return "none"
	}
}

// Parameter identifiers. They share the numbering of the CPLEX callable
// library so the builtin and cplex engines accept the same parameter files.
const (
	ScreenOutput = 1035
	Threads      = 1067
	RandomSeed   = 1124
	TimeLimit    = 1039

	TuneMeasure      = 1110
	TuneRepeat       = 1111
	TuneTimeLimit    = 1112
	TuneDisplay      = 1113
	TuneDetTimeLimit = 1139

	Presolve      = 1030
	ReadScale     = 1034
	OptimalityTol = 1014

	MIPGap          = 2009
	AbsMIPGap       = 2008
	IntegralityTol  = 2010
	NodeLimit       = 2017
	SolutionLimit   = 2015
	NodeSelect      = 2018
	VariableSelect  = 2028
	BranchDirection = 2001
	HeuristicFreq   = 2031
)

// Tuning measures.
const (
	MeasureAverage = 1
	MeasureMinMax  = 2
)

// On and Off are the values of switch parameters such as ScreenOutput.
const (
	Off = 0
	On  = 1
)

// LongMax is the largest value a LONG parameter accepts.
const LongMax int64 = 9223372036800000000

// Infinity is the solver's representation of an unbounded double setting.
const Infinity = 1e75

// Def describes one registered parameter.
type Def struct {
	ID   int
	Name string
	Type Type

	// Integer and long parameters.
	DefInt int64
	MinInt int64
	MaxInt int64

	// Double parameters.
	DefDbl float64
	MinDbl float64
	MaxDbl float64

	// Candidates are the values a tuning search may try. A parameter without
	// candidates is never varied by tuning.
	Candidates []float64
}

// Tunable reports whether a tuning search may vary the parameter.
func (d *Def) Tunable() bool {
	return len(d.Candidates) > 0
}

func (d *Def) checkInt(v int64) error {
	if d.Type != TypeInt && d.Type != TypeLong {
		return &Error{Kind: ErrWrongType, ID: d.ID, Name: d.Name}
	}
	if v < d.MinInt {
		return &Error{Kind: ErrTooSmall, ID: d.ID, Name: d.Name, Detail: fmt.Sprintf("%d < %d", v, d.MinInt)}
	}
	if v > d.MaxInt {
		return &Error{Kind: ErrTooBig, ID: d.ID, Name: d.Name, Detail: fmt.Sprintf("%d > %d", v, d.MaxInt)}
	}
	return nil
}

func (d *Def) checkDbl(v float64) error {
	if d.Type != TypeDouble {
		return &Error{Kind: ErrWrongType, ID: d.ID, Name: d.Name}
	}
	if math.IsNaN(v) {
		return &Error{Kind: ErrBadData, ID: d.ID, Name: d.Name, Detail: "NaN"}
	}
	if v < d.MinDbl {
		return &Error{Kind: ErrTooSmall, ID: d.ID, Name: d.Name, Detail: fmt.Sprintf("%g < %g", v, d.MinDbl)}
	}
	if v > d.MaxDbl {
		return &Error{Kind: ErrTooBig, ID: d.ID, Name: d.Name, Detail: fmt.Sprintf("%g > %g", v, d.MaxDbl)}
	}
	return nil
}

// ErrorKind classifies parameter errors.
type ErrorKind int

const (
	ErrUnknownID ErrorKind = iota + 1
	ErrUnknownName
	ErrWrongType
	ErrTooSmall
	ErrTooBig
	ErrBadData
	ErrBadHeader
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnknownID:
		return "unknown parameter number"
	case ErrUnknownName:
		return "unknown parameter name"
	case ErrWrongType:
		return "wrong parameter type"
	case ErrTooSmall:
		return "parameter value too small"
	case ErrTooBig:
		return "parameter value too big"
	case ErrBadData:
		return "bad parameter data"
	case ErrBadHeader:
		return "bad parameter file header"
	default:
		return "parameter error"
	}
}

// Error is returned by registry, set and file operations.
type Error struct {
	Kind   ErrorKind
	ID     int
	Name   string
	Line   int
	Detail string
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	switch {
	case e.Name != "":
		msg += " " + e.Name
	case e.ID != 0:
		msg += fmt.Sprintf(" %d", e.ID)
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d)", e.Line)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is matches errors of the same kind so callers can test with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.ID == 0 || t.ID == e.ID)
}

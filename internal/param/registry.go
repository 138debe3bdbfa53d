package param

import (
	"math"
	"sort"
)

// Registry holds parameter definitions indexed by id and by name.
type Registry struct {
	defs   []*Def
	byID   map[int]*Def
	byName map[string]*Def
}

// NewRegistry builds a registry. Definitions are kept in ascending id order.
func NewRegistry(defs ...Def) *Registry {
	r := &Registry{
		defs:   make([]*Def, 0, len(defs)),
		byID:   make(map[int]*Def, len(defs)),
		byName: make(map[string]*Def, len(defs)),
	}
	for i := range defs {
		d := defs[i]
		r.defs = append(r.defs, &d)
		r.byID[d.ID] = &d
		r.byName[d.Name] = &d
	}
	sort.Slice(r.defs, func(i, j int) bool { return r.defs[i].ID < r.defs[j].ID })
	return r
}

// Lookup returns the definition of a parameter id.
func (r *Registry) Lookup(id int) (*Def, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, &Error{Kind: ErrUnknownID, ID: id}
	}
	return d, nil
}

// LookupName returns the definition of a parameter name.
func (r *Registry) LookupName(name string) (*Def, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, &Error{Kind: ErrUnknownName, Name: name}
	}
	return d, nil
}

// Defs returns all definitions in ascending id order.
func (r *Registry) Defs() []*Def {
	out := make([]*Def, len(r.defs))
	copy(out, r.defs)
	return out
}

// Tunable returns the definitions a tuning search may vary.
func (r *Registry) Tunable() []*Def {
	out := make([]*Def, 0)
	for _, d := range r.defs {
		if d.Tunable() {
			out = append(out, d)
		}
	}
	return out
}

func intDef(id int, name string, def, min, max int64, candidates ...float64) Def {
	return Def{ID: id, Name: name, Type: TypeInt, DefInt: def, MinInt: min, MaxInt: max, Candidates: candidates}
}

func longDef(id int, name string, def int64) Def {
	return Def{ID: id, Name: name, Type: TypeLong, DefInt: def, MinInt: 0, MaxInt: LongMax}
}

func dblDef(id int, name string, def, min, max float64, candidates ...float64) Def {
	return Def{ID: id, Name: name, Type: TypeDouble, DefDbl: def, MinDbl: min, MaxDbl: max, Candidates: candidates}
}

// Builtin is the parameter set understood by the builtin engine.
var Builtin = NewRegistry(
	intDef(ScreenOutput, "CPXPARAM_ScreenOutput", Off, Off, On),
	intDef(Threads, "CPXPARAM_Threads", 0, 0, 1024),
	intDef(RandomSeed, "CPXPARAM_RandomSeed", 201409, 0, math.MaxInt32),
	dblDef(TimeLimit, "CPXPARAM_TimeLimit", Infinity, 0, Infinity),

	intDef(TuneMeasure, "CPXPARAM_Tune_Measure", MeasureAverage, MeasureAverage, MeasureMinMax),
	intDef(TuneRepeat, "CPXPARAM_Tune_Repeat", 1, 1, math.MaxInt32),
	dblDef(TuneTimeLimit, "CPXPARAM_Tune_TimeLimit", 10000, 0, Infinity),
	intDef(TuneDisplay, "CPXPARAM_Tune_Display", 1, 0, 3),
	dblDef(TuneDetTimeLimit, "CPXPARAM_Tune_DetTimeLimit", Infinity, 0, Infinity),

	intDef(Presolve, "CPXPARAM_Preprocessing_Presolve", On, Off, On, Off, On),
	intDef(ReadScale, "CPXPARAM_Read_Scale", 0, -1, 1, -1, 0, 1),
	dblDef(OptimalityTol, "CPXPARAM_Simplex_Tolerances_Optimality", 1e-6, 1e-9, 1e-1),

	dblDef(AbsMIPGap, "CPXPARAM_MIP_Tolerances_AbsMIPGap", 1e-6, 0, Infinity),
	dblDef(MIPGap, "CPXPARAM_MIP_Tolerances_MIPGap", 1e-4, 0, 1),
	dblDef(IntegralityTol, "CPXPARAM_MIP_Tolerances_Integrality", 1e-5, 0, 0.5),
	longDef(SolutionLimit, "CPXPARAM_MIP_Limits_Solutions", LongMax),
	longDef(NodeLimit, "CPXPARAM_MIP_Limits_Nodes", LongMax),
	intDef(NodeSelect, "CPXPARAM_MIP_Strategy_NodeSelect", 1, 0, 2, 0, 1, 2),
	intDef(VariableSelect, "CPXPARAM_MIP_Strategy_VariableSelect", 0, -1, 1, -1, 0, 1),
	intDef(BranchDirection, "CPXPARAM_MIP_Strategy_Branch", 0, -1, 1, -1, 0, 1),
	intDef(HeuristicFreq, "CPXPARAM_MIP_Strategy_HeuristicFreq", 0, -1, math.MaxInt32, -1, 0, 5),
)

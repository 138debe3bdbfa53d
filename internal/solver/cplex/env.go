//go:build cplex

// Package cplex binds the solver environment contract to the CPLEX callable
// library. Build with -tags cplex and point CGO_CFLAGS and CGO_LDFLAGS at
// the CPLEX installation.
package cplex

/*
#cgo LDFLAGS: -lcplex -lm -lpthread -ldl
#include <stdlib.h>
#include <ilcplex/cplexx.h>

static int tuneset_tune(CPXENVptr env, int filecnt, char **files, char **types,
                        int intcnt, int *intnum, int *intval,
                        int dblcnt, int *dblnum, double *dblval, int *tunestat) {
	return CPXXtuneparamprobset(env, filecnt, (char const *const *)files,
	                            (char const *const *)types,
	                            intcnt, intnum, intval, dblcnt, dblnum, dblval,
	                            0, NULL, NULL, tunestat);
}
*/
import "C"

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"github.com/GoSim-25-26J-441/tuneset/internal/param"
	"github.com/GoSim-25-26J-441/tuneset/internal/solver"
)

// Name is the registered engine name.
const Name = "cplex"

func init() {
	solver.Register(Name, func() (solver.Env, error) {
		env, err := Open()
		if err != nil {
			return nil, err
		}
		return env, nil
	})
}

// Env is an open CPLEX environment.
type Env struct {
	mu   sync.Mutex
	env  C.CPXENVptr
	term *C.int
}

// Open opens a CPLEX environment.
func Open() (*Env, error) {
	var status C.int
	env := C.CPXXopenCPLEX(&status)
	if env == nil {
		return nil, statusError(nil, status)
	}
	// CPLEX keeps the terminate pointer, so the flag lives in C memory.
	term := (*C.int)(C.malloc(C.size_t(unsafe.Sizeof(C.int(0)))))
	*term = 0
	if st := C.CPXXsetterminate(env, term); st != 0 {
		C.free(unsafe.Pointer(term))
		C.CPXXcloseCPLEX(&env)
		return nil, statusError(nil, st)
	}
	return &Env{env: env, term: term}, nil
}

func statusError(env C.CPXENVptr, status C.int) error {
	buf := (*C.char)(C.malloc(C.CPXMESSAGEBUFSIZE))
	defer C.free(unsafe.Pointer(buf))
	msg := ""
	if C.CPXXgeterrorstring(env, status, buf) != nil {
		msg = strings.TrimSpace(C.GoString(buf))
	}
	return &solver.StatusError{Code: int(status), Msg: msg}
}

// call runs f under the lock and converts its status.
func (e *Env) call(f func(env C.CPXENVptr) C.int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.env == nil {
		return solver.Errorf(solver.StatusEnvironmentUse, "environment is closed")
	}
	if st := f(e.env); st != 0 {
		return statusError(e.env, st)
	}
	return nil
}

func (e *Env) SetIntParam(id int, v int32) error {
	return e.call(func(env C.CPXENVptr) C.int { return C.CPXXsetintparam(env, C.int(id), C.CPXINT(v)) })
}

func (e *Env) SetLongParam(id int, v int64) error {
	return e.call(func(env C.CPXENVptr) C.int { return C.CPXXsetlongparam(env, C.int(id), C.CPXLONG(v)) })
}

func (e *Env) SetDblParam(id int, v float64) error {
	return e.call(func(env C.CPXENVptr) C.int { return C.CPXXsetdblparam(env, C.int(id), C.double(v)) })
}

func (e *Env) GetIntParam(id int) (int32, error) {
	var v C.CPXINT
	err := e.call(func(env C.CPXENVptr) C.int { return C.CPXXgetintparam(env, C.int(id), &v) })
	return int32(v), err
}

func (e *Env) GetLongParam(id int) (int64, error) {
	var v C.CPXLONG
	err := e.call(func(env C.CPXENVptr) C.int { return C.CPXXgetlongparam(env, C.int(id), &v) })
	return int64(v), err
}

func (e *Env) GetDblParam(id int) (float64, error) {
	var v C.double
	err := e.call(func(env C.CPXENVptr) C.int { return C.CPXXgetdblparam(env, C.int(id), &v) })
	return float64(v), err
}

func (e *Env) ParamType(id int) (param.Type, error) {
	var t C.int
	err := e.call(func(env C.CPXENVptr) C.int { return C.CPXXgetparamtype(env, C.int(id), &t) })
	return param.Type(t), err
}

// ChangedParams asks for the count first, as the library reports the
// needed space through a negative surplus.
func (e *Env) ChangedParams() ([]int, error) {
	var ids []int
	err := e.call(func(env C.CPXENVptr) C.int {
		var cnt, surplus C.int
		st := C.CPXXgetchgparam(env, &cnt, nil, 0, &surplus)
		if st != 0 && st != C.CPXERR_NEGATIVE_SURPLUS {
			return st
		}
		n := -surplus
		if n <= 0 {
			return 0
		}
		buf := (*C.int)(C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(C.int(0)))))
		defer C.free(unsafe.Pointer(buf))
		if st := C.CPXXgetchgparam(env, &cnt, buf, n, &surplus); st != 0 {
			return st
		}
		for _, v := range unsafe.Slice(buf, int(cnt)) {
			ids = append(ids, int(v))
		}
		return 0
	})
	return ids, err
}

func (e *Env) SetDefaults() error {
	return e.call(func(env C.CPXENVptr) C.int { return C.CPXXsetdefaults(env) })
}

func (e *Env) ReadCopyParam(path string) error {
	cs := C.CString(path)
	defer C.free(unsafe.Pointer(cs))
	return e.call(func(env C.CPXENVptr) C.int { return C.CPXXreadcopyparam(env, cs) })
}

func (e *Env) WriteParam(path string) error {
	cs := C.CString(path)
	defer C.free(unsafe.Pointer(cs))
	return e.call(func(env C.CPXENVptr) C.int { return C.CPXXwriteparam(env, cs) })
}

// cArrays owns C copies of the tuning call arguments.
type cArrays struct {
	ptrs []unsafe.Pointer
}

func (a *cArrays) alloc(n int, size uintptr) unsafe.Pointer {
	if n == 0 {
		return nil
	}
	p := C.calloc(C.size_t(n), C.size_t(size))
	a.ptrs = append(a.ptrs, p)
	return p
}

func (a *cArrays) strings(values []string) **C.char {
	p := a.alloc(len(values), unsafe.Sizeof((*C.char)(nil)))
	if p == nil {
		return nil
	}
	out := unsafe.Slice((**C.char)(p), len(values))
	for i, v := range values {
		cs := C.CString(v)
		a.ptrs = append(a.ptrs, unsafe.Pointer(cs))
		out[i] = cs
	}
	return (**C.char)(p)
}

func (a *cArrays) ints(values []int) *C.int {
	p := a.alloc(len(values), unsafe.Sizeof(C.int(0)))
	if p == nil {
		return nil
	}
	out := unsafe.Slice((*C.int)(p), len(values))
	for i, v := range values {
		out[i] = C.int(v)
	}
	return (*C.int)(p)
}

func (a *cArrays) int32s(values []int32) *C.int {
	p := a.alloc(len(values), unsafe.Sizeof(C.int(0)))
	if p == nil {
		return nil
	}
	out := unsafe.Slice((*C.int)(p), len(values))
	for i, v := range values {
		out[i] = C.int(v)
	}
	return (*C.int)(p)
}

func (a *cArrays) doubles(values []float64) *C.double {
	p := a.alloc(len(values), unsafe.Sizeof(C.double(0)))
	if p == nil {
		return nil
	}
	out := unsafe.Slice((*C.double)(p), len(values))
	for i, v := range values {
		out[i] = C.double(v)
	}
	return (*C.double)(p)
}

func (a *cArrays) free() {
	for _, p := range a.ptrs {
		C.free(p)
	}
}

// TuneProbSet runs CPXXtuneparamprobset. Cancelling ctx raises the
// terminate flag, which makes the library return the abort status.
func (e *Env) TuneProbSet(ctx context.Context, files, types []string, fixed solver.FixedParams) (solver.TuneStatus, error) {
	if types != nil && len(types) != len(files) {
		return solver.TuneAbort, solver.Errorf(solver.StatusBadArgument, "%d file types for %d files", len(types), len(files))
	}
	var args cArrays
	defer args.free()
	cfiles := args.strings(files)
	ctypes := args.strings(types)
	inum := args.ints(fixed.IntNums)
	ival := args.int32s(fixed.IntVals)
	dnum := args.ints(fixed.DblNums)
	dval := args.doubles(fixed.DblVals)

	done := make(chan struct{})
	defer close(done)
	*e.term = 0
	go func() {
		select {
		case <-ctx.Done():
			*e.term = 1
		case <-done:
		}
	}()

	var tunestat C.int
	err := e.call(func(env C.CPXENVptr) C.int {
		return C.tuneset_tune(env, C.int(len(files)), cfiles, ctypes,
			C.int(len(fixed.IntNums)), inum, ival,
			C.int(len(fixed.DblNums)), dnum, dval, &tunestat)
	})
	if err != nil {
		return solver.TuneAbort, err
	}
	return solver.TuneStatus(tunestat), nil
}

func (e *Env) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.env == nil {
		return solver.Errorf(solver.StatusEnvironmentUse, "environment already closed")
	}
	env := e.env
	if st := C.CPXXcloseCPLEX(&e.env); st != 0 {
		return statusError(env, st)
	}
	C.free(unsafe.Pointer(e.term))
	e.term = nil
	return nil
}

func (e *Env) String() string {
	return fmt.Sprintf("cplex environment %p", e.env)
}

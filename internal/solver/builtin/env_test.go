package builtin

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/tuneset/internal/mip"
	"github.com/GoSim-25-26J-441/tuneset/internal/param"
	"github.com/GoSim-25-26J-441/tuneset/internal/problem"
	"github.com/GoSim-25-26J-441/tuneset/internal/solver"
	"github.com/GoSim-25-26J-441/tuneset/pkg/logger"
)

const knapsackLP = `Maximize
 obj: 5 a + 4 b + 3 c
Subject To
 w: 2 a + 3 b + c <= 5
Binary
 a b c
End
`

const blendLP = `Minimize
 obj: x + y
Subject To
 c: x + y >= 1
End
`

func newEnv(t *testing.T) (*Env, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return New(&buf, logger.Discard()), &buf
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// presolveHurts makes every solve cheaper without presolve.
func presolveHurts(_ context.Context, _ *problem.Model, opt mip.Options) (*mip.Result, error) {
	ticks := 50.0
	if opt.Presolve {
		ticks = 100
	}
	return &mip.Result{Status: mip.StatusOptimal, Ticks: ticks}, nil
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, solver.Engines(), Name)
	env, err := solver.Open(Name)
	require.NoError(t, err)
	require.NoError(t, env.Close())
}

func TestParamAccess(t *testing.T) {
	env, _ := newEnv(t)

	require.NoError(t, env.SetIntParam(param.ScreenOutput, param.On))
	v, err := env.GetIntParam(param.ScreenOutput)
	require.NoError(t, err)
	assert.Equal(t, int32(param.On), v)

	require.NoError(t, env.SetLongParam(param.NodeLimit, 1000))
	l, err := env.GetLongParam(param.NodeLimit)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), l)

	require.NoError(t, env.SetDblParam(param.MIPGap, 0.01))
	d, err := env.GetDblParam(param.MIPGap)
	require.NoError(t, err)
	assert.Equal(t, 0.01, d)

	typ, err := env.ParamType(param.NodeLimit)
	require.NoError(t, err)
	assert.Equal(t, param.TypeLong, typ)

	tests := []struct {
		name string
		err  error
		code int
	}{
		{"unknown id", env.SetIntParam(42, 1), solver.StatusBadParamNum},
		{"wrong type", env.SetIntParam(param.MIPGap, 1), solver.StatusBadParamNum},
		{"int on long", env.SetIntParam(param.NodeLimit, 1), solver.StatusBadParamNum},
		{"too small", env.SetIntParam(param.TuneDisplay, -1), solver.StatusParamTooSmall},
		{"too big", env.SetDblParam(param.MIPGap, 2), solver.StatusParamTooBig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			assert.Equal(t, tt.code, solver.Code(tt.err))
		})
	}
	_, err = env.GetDblParam(param.Threads)
	assert.Equal(t, solver.StatusBadParamNum, solver.Code(err))
}

func TestChangedAndDefaults(t *testing.T) {
	env, _ := newEnv(t)
	require.NoError(t, env.SetDblParam(param.MIPGap, 0.5))
	require.NoError(t, env.SetIntParam(param.Presolve, param.Off))

	changed, err := env.ChangedParams()
	require.NoError(t, err)
	assert.Equal(t, []int{param.Presolve, param.MIPGap}, changed)

	require.NoError(t, env.SetDefaults())
	changed, err = env.ChangedParams()
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestParamFiles(t *testing.T) {
	dir := t.TempDir()
	env, _ := newEnv(t)
	require.NoError(t, env.SetLongParam(param.NodeLimit, 77))
	require.NoError(t, env.SetDblParam(param.TimeLimit, 30))

	path := filepath.Join(dir, "tuned.prm")
	require.NoError(t, env.WriteParam(path))

	other, _ := newEnv(t)
	require.NoError(t, other.ReadCopyParam(path))
	assert.True(t, other.Params().Equal(env.Params()))

	tests := []struct {
		name    string
		content string
		code    int
	}{
		{"bad header", "not a parameter file\n", solver.StatusParamFileHead},
		{"bad data", param.FileHeader + "\nCPXPARAM_TimeLimit abc\n", solver.StatusParamFileData},
		{"unknown name", param.FileHeader + "\nCPXPARAM_Nothing 1\n", solver.StatusBadParamName},
		{"out of range", param.FileHeader + "\nCPXPARAM_MIP_Tolerances_MIPGap 5\n", solver.StatusParamTooBig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, dir, "bad.prm", tt.content)
			err := other.ReadCopyParam(p)
			assert.Equal(t, tt.code, solver.Code(err))
		})
	}

	err := other.ReadCopyParam(filepath.Join(dir, "missing.prm"))
	assert.Equal(t, solver.StatusFailOpenRead, solver.Code(err))
	err = other.WriteParam(filepath.Join(dir, "no", "such", "dir.prm"))
	assert.Equal(t, solver.StatusFailOpenWrite, solver.Code(err))
}

func TestTuneProbSet(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFile(t, dir, "a.lp", knapsackLP),
		writeFile(t, dir, "b.lp", blendLP),
	}
	env, out := newEnv(t)
	env.WithSolver(presolveHurts)
	require.NoError(t, env.SetIntParam(param.ScreenOutput, param.On))

	fixed := solver.FixedParams{
		IntNums: []int{param.NodeLimit},
		IntVals: []int32{5000},
		DblNums: []int{param.MIPGap},
		DblVals: []float64{0.02},
	}
	status, err := env.TuneProbSet(context.Background(), files, nil, fixed)
	require.NoError(t, err)
	assert.Equal(t, solver.TuneComplete, status)

	p := env.Params()
	assert.Equal(t, int64(param.Off), p.MustInt(param.Presolve))
	assert.Equal(t, int64(5000), p.MustInt(param.NodeLimit))
	assert.Equal(t, 0.02, p.MustDbl(param.MIPGap))
	assert.Contains(t, out.String(), "Tuning 2 problems")

	rep := env.LastTuneReport()
	require.NotNil(t, rep)
	assert.Equal(t, Name, rep.Engine)
	assert.Equal(t, "average", rep.Measure)
	assert.Equal(t, []string{"CPXPARAM_Preprocessing_Presolve"}, rep.Tuned)
	require.Len(t, rep.Problems, 2)
	assert.Equal(t, 100.0, rep.Problems[0].BaselineTicks)
	assert.Equal(t, 50.0, rep.Problems[0].TunedTicks)
	assert.True(t, rep.Problems[0].MIP)
	assert.False(t, rep.Problems[1].MIP)
}

func TestTuneProbSetRealSolver(t *testing.T) {
	dir := t.TempDir()
	files := []string{writeFile(t, dir, "k.lp", knapsackLP)}
	env, _ := newEnv(t)
	require.NoError(t, env.SetDblParam(param.TuneDetTimeLimit, 1))

	status, err := env.TuneProbSet(context.Background(), files, []string{"lp"}, solver.FixedParams{})
	require.NoError(t, err)
	assert.Equal(t, solver.TuneDetTimeLimit, status)
}

func TestTuneProbSetErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.lp", knapsackLP)
	bad := writeFile(t, dir, "bad.lp", "Minimize\n obj: x +\n")
	odd := writeFile(t, dir, "model.txt", knapsackLP)

	tests := []struct {
		name  string
		files []string
		types []string
		fixed solver.FixedParams
		code  int
	}{
		{"no files", nil, nil, solver.FixedParams{}, solver.StatusNoProblems},
		{"missing file", []string{filepath.Join(dir, "none.lp")}, nil, solver.FixedParams{}, solver.StatusFailOpenRead},
		{"unknown type", []string{odd}, nil, solver.FixedParams{}, solver.StatusBadFileType},
		{"sav", []string{good}, []string{"sav"}, solver.FixedParams{}, solver.StatusBadFileType},
		{"parse error", []string{bad}, nil, solver.FixedParams{}, solver.StatusReadError},
		{"type count", []string{good}, []string{"lp", "lp"}, solver.FixedParams{}, solver.StatusBadArgument},
		{"bad fixed", []string{good}, nil, solver.FixedParams{DblNums: []int{param.MIPGap}, DblVals: []float64{-1}}, solver.StatusParamTooSmall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, _ := newEnv(t)
			env.WithSolver(presolveHurts)
			_, err := env.TuneProbSet(context.Background(), tt.files, tt.types, tt.fixed)
			require.Error(t, err)
			assert.Equal(t, tt.code, solver.Code(err))
			assert.Nil(t, env.LastTuneReport())
		})
	}
}

func TestClosedEnvironment(t *testing.T) {
	env, _ := newEnv(t)
	require.NoError(t, env.Close())

	err := env.SetIntParam(param.ScreenOutput, param.On)
	assert.Equal(t, solver.StatusEnvironmentUse, solver.Code(err))
	assert.Contains(t, err.Error(), "environment is closed")
	_, err = env.ChangedParams()
	assert.Equal(t, solver.StatusEnvironmentUse, solver.Code(err))
	assert.Equal(t, solver.StatusEnvironmentUse, solver.Code(env.Close()))
}

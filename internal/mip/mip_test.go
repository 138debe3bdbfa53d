package mip

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/tuneset/internal/param"
	"github.com/GoSim-25-26J-441/tuneset/internal/problem"
)

func readLP(t *testing.T, text string) *problem.Model {
	t.Helper()
	m, err := problem.ReadLP(strings.NewReader(text))
	require.NoError(t, err)
	return m
}

const productionLP = `Maximize
 obj: 3 x + 2 y
Subject To
 c1: x + y <= 4
 c2: x + 3 y <= 6
Bounds
 x <= 3
End
`

const knapsackLP = `Maximize
 obj: 5 a + 4 b + 3 c
Subject To
 w: 2 a + 3 b + c <= 5
Binary
 a b c
End
`

const generalLP = `Maximize
 obj: x + y
Subject To
 c1: 2 x + 2 y <= 5
 c2: x - y <= 0.5
General
 x y
End
`

const freeLP = `Minimize
 obj: x - y
Subject To
 sum: x + y = 2
 diff: -1 <= x - y <= 1
Bounds
 x free
 y free
End
`

func TestSolveLP(t *testing.T) {
	res, err := Solve(context.Background(), readLP(t, productionLP), DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, res.Status)
	assert.InDelta(t, 11.0, res.Objective, 1e-6)
	assert.InDelta(t, 3.0, res.X[0], 1e-6)
	assert.InDelta(t, 1.0, res.X[1], 1e-6)
	assert.Equal(t, int64(1), res.Nodes)
	assert.Greater(t, res.Ticks, 0.0)
}

func TestSolveFreeAndRangedRows(t *testing.T) {
	m := readLP(t, freeLP)
	res, err := Solve(context.Background(), m, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, res.Status)
	assert.InDelta(t, -1.0, res.Objective, 1e-6)
	assert.True(t, m.Feasible(res.X, 1e-6))
}

func TestSolveMIP(t *testing.T) {
	tests := []struct {
		name string
		lp   string
		want float64
	}{
		{"knapsack", knapsackLP, 9},
		{"general integers", generalLP, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := readLP(t, tt.lp)
			res, err := Solve(context.Background(), m, DefaultOptions())
			require.NoError(t, err)
			require.Equal(t, StatusOptimal, res.Status)
			assert.InDelta(t, tt.want, res.Objective, 1e-6)
			assert.True(t, m.Feasible(res.X, 1e-6))
			assert.GreaterOrEqual(t, res.Bound, res.Objective-1e-6)
		})
	}
}

func TestStrategiesAgreeOnOptimum(t *testing.T) {
	m := readLP(t, knapsackLP)
	for _, nodeSel := range []int{NodeSelectDepthFirst, NodeSelectBestBound, NodeSelectBestEstimate} {
		for _, varSel := range []int{-1, 0, 1} {
			for _, dir := range []int{-1, 0, 1} {
				opt := DefaultOptions()
				opt.NodeSelect = nodeSel
				opt.VariableSelect = varSel
				opt.BranchDirection = dir
				opt.Presolve = nodeSel != NodeSelectBestBound
				opt.Scale = varSel
				opt.HeuristicFreq = -1

				res, err := Solve(context.Background(), m, opt)
				require.NoError(t, err)
				require.Equal(t, StatusOptimal, res.Status, "node %d var %d dir %d", nodeSel, varSel, dir)
				assert.InDelta(t, 9.0, res.Objective, 1e-6, "node %d var %d dir %d", nodeSel, varSel, dir)
			}
		}
	}
}

func TestSolveIsDeterministic(t *testing.T) {
	m := readLP(t, generalLP)
	a, err := Solve(context.Background(), m, DefaultOptions())
	require.NoError(t, err)
	b, err := Solve(context.Background(), m, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, a.Ticks, b.Ticks)
	assert.Equal(t, a.Nodes, b.Nodes)
}

func TestSolveInfeasibleAndUnbounded(t *testing.T) {
	infeasible := readLP(t, `Minimize
 obj: x + y
Subject To
 c1: x + y >= 5
Bounds
 x <= 1
 y <= 1
End
`)
	for _, presolve := range []bool{true, false} {
		opt := DefaultOptions()
		opt.Presolve = presolve
		res, err := Solve(context.Background(), infeasible, opt)
		require.NoError(t, err)
		assert.Equal(t, StatusInfeasible, res.Status)
		assert.False(t, res.HasSolution())
	}

	unbounded := readLP(t, `Minimize
 obj: - x
End
`)
	res, err := Solve(context.Background(), unbounded, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, StatusUnbounded, res.Status)
}

func TestPresolveReducesModel(t *testing.T) {
	m := readLP(t, `Minimize
 obj: x + y + z
Subject To
 fix: x = 2
 a: y + z >= 3
 b: 2 y + 2 z >= 4
 s: z <= 10
End
`)
	withPre := DefaultOptions()
	res, err := Solve(context.Background(), m, withPre)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, res.Status)
	assert.InDelta(t, 5.0, res.Objective, 1e-6)
	assert.Equal(t, 3, res.PresolvedRows)
	assert.Equal(t, 1, res.PresolvedCols)

	noPre := DefaultOptions()
	noPre.Presolve = false
	res2, err := Solve(context.Background(), m, noPre)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, res2.Objective, 1e-6)
	assert.Equal(t, 0, res2.PresolvedRows)
}

func TestSolveLimits(t *testing.T) {
	m := readLP(t, generalLP)

	opt := DefaultOptions()
	opt.NodeLimit = 1
	opt.HeuristicFreq = -1
	res, err := Solve(context.Background(), m, opt)
	require.NoError(t, err)
	assert.Equal(t, StatusNodeLimit, res.Status)
	assert.Equal(t, int64(1), res.Nodes)
	assert.False(t, res.HasSolution())
	assert.InDelta(t, 2.5, res.Bound, 1e-6)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err = Solve(ctx, m, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, StatusAborted, res.Status)

	opt = DefaultOptions()
	opt.TickLimit = 1
	res, err = Solve(context.Background(), m, opt)
	require.NoError(t, err)
	assert.Equal(t, StatusTickLimit, res.Status)
}

func TestOptionsFromParams(t *testing.T) {
	s := param.NewSet(param.Builtin)
	require.NoError(t, s.SetInt(param.Presolve, param.Off))
	require.NoError(t, s.SetInt(param.NodeSelect, NodeSelectDepthFirst))
	require.NoError(t, s.SetDbl(param.TimeLimit, 2.5))
	require.NoError(t, s.SetInt(param.RandomSeed, 7))

	opt := OptionsFromParams(s)
	assert.False(t, opt.Presolve)
	assert.Equal(t, NodeSelectDepthFirst, opt.NodeSelect)
	assert.Equal(t, int64(7), opt.Seed)
	assert.Equal(t, 2500, int(opt.TimeLimit.Milliseconds()))
	assert.Equal(t, param.LongMax, opt.NodeLimit)

	def := DefaultOptions()
	assert.True(t, def.Presolve)
	assert.Zero(t, def.TimeLimit)
}

func TestIndependentRows(t *testing.T) {
	rows := [][]float64{
		{1, 1, 0},
		{0, 1, 1},
		{1, 2, 1},
	}
	keep, ok := independentRows(rows, []float64{1, 2, 3})
	assert.True(t, ok)
	assert.Equal(t, []int{0, 1}, keep)

	_, ok = independentRows(rows, []float64{1, 2, 4})
	assert.False(t, ok)
}

package problem

import (
	"bytes"
	"compress/gzip"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-opt/lpo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const knapsackMPS = `NAME          KNAP
* a small knapsack
OBJSENSE
    MAX
ROWS
 N  profit
 L  weight
 G  cover
COLUMNS
    MARKER                 'MARKER'                 'INTORG'
    x1        profit    5.0        weight    2.0
    x1        cover     1.0
    x2        profit    4.0        weight    3.0
    MARKER                 'MARKER'                 'INTEND'
    y         profit    1.5        weight    1.0
RHS
    RHS       weight    6.0        cover     1.0
BOUNDS
 UP BND       x1        1
 UP BND       x2        4
 UP BND       y         2
ENDATA
`

func TestSplitMPSHeader(t *testing.T) {
	hdr, body, err := splitMPSHeader(strings.NewReader(knapsackMPS))
	require.NoError(t, err)
	assert.Equal(t, "KNAP", hdr.name)
	assert.Equal(t, Maximize, hdr.sense)

	text := string(body)
	assert.NotContains(t, text, "OBJSENSE")
	assert.NotContains(t, text, "MAX")
	assert.Contains(t, text, "NAME          KNAP\n")
	assert.Contains(t, text, "ROWS\n N  profit\n")
	assert.True(t, strings.HasSuffix(text, "ENDATA\n"))

	hdr, _, err = splitMPSHeader(strings.NewReader("NAME x\nOBJSENSE MINIMIZE\nROWS\n N obj\nENDATA\n"))
	require.NoError(t, err)
	assert.Equal(t, Minimize, hdr.sense)
}

func TestSplitMPSHeaderBadSense(t *testing.T) {
	_, _, err := splitMPSHeader(strings.NewReader("NAME x\nOBJSENSE\n    UP\nROWS\n"))
	var re *ReadError
	require.True(t, errors.As(err, &re), "got %v", err)
	assert.Equal(t, 3, re.Line)
}

func TestFromLPOTables(t *testing.T) {
	lpoMu.Lock()
	defer lpoMu.Unlock()
	defer lpo.InitModel()

	lpo.InitModel()
	lpo.Rows = []lpo.InputRow{
		{Name: "cost", Type: "N", RHSlo: -10},
		{Name: "cap", Type: "L", RHSlo: -lpo.Plinfy, RHSup: 6},
		{Name: "aux", Type: "N"},
		{Name: "band", Type: "E", RHSlo: 1, RHSup: 3},
	}
	lpo.Cols = []lpo.InputCol{
		{Name: "a", Type: "I", BndLo: 0, BndUp: 4},
		{Name: "b", Type: "R", BndLo: -lpo.Plinfy, BndUp: lpo.Plinfy},
	}
	lpo.Elems = []lpo.InputElem{
		{InRow: 0, InCol: 0, Value: 5},
		{InRow: 1, InCol: 0, Value: 2},
		{InRow: 2, InCol: 1, Value: 9},
		{InRow: 3, InCol: 1, Value: -1},
		{InRow: 0, InCol: 1, Value: 1.5},
	}
	lpo.ObjRow = 0

	m, err := fromLPO(mpsHeader{name: "tbl", sense: Maximize})
	require.NoError(t, err)
	assert.Equal(t, "tbl", m.Name)
	assert.Equal(t, Maximize, m.Sense)
	assert.Equal(t, "cost", m.ObjName)
	assert.Equal(t, 10.0, m.ObjConst)
	require.Len(t, m.Columns, 2)
	require.Len(t, m.Rows, 2, "free rows other than the objective are dropped")

	a, b := m.Columns[0], m.Columns[1]
	assert.True(t, a.Integer)
	assert.Equal(t, 5.0, a.Cost)
	assert.Equal(t, 4.0, a.Upper)
	assert.False(t, b.Integer)
	assert.Equal(t, 1.5, b.Cost)
	assert.True(t, math.IsInf(b.Lower, -1))
	assert.True(t, math.IsInf(b.Upper, 1))

	capRow := m.Rows[0]
	assert.True(t, math.IsInf(capRow.Lower, -1))
	assert.Equal(t, 6.0, capRow.Upper)
	assert.Equal(t, map[int]float64{0: 2}, capRow.Coefs)

	band := m.Rows[1]
	assert.Equal(t, 1.0, band.Lower)
	assert.Equal(t, 3.0, band.Upper)
	assert.Equal(t, map[int]float64{1: -1}, band.Coefs)

	lpo.Elems = append(lpo.Elems, lpo.InputElem{InRow: 7, InCol: 0, Value: 1})
	_, err = fromLPO(mpsHeader{sense: Minimize})
	var re *ReadError
	assert.True(t, errors.As(err, &re), "got %v", err)
}

func TestReadMPS(t *testing.T) {
	m, err := ReadMPS(strings.NewReader(knapsackMPS))
	require.NoError(t, err)

	assert.Equal(t, "KNAP", m.Name)
	assert.Equal(t, Maximize, m.Sense)
	assert.Equal(t, "profit", m.ObjName)
	require.Len(t, m.Columns, 3)
	require.Len(t, m.Rows, 2)
	assert.Equal(t, 2, m.NumIntegers())
	assert.Equal(t, 5, m.NumNonzeros())

	x1, ok := m.Column("x1")
	require.True(t, ok)
	assert.Equal(t, 5.0, m.Columns[x1].Cost)
	assert.Equal(t, 1.0, m.Columns[x1].Upper)

	weight, ok := m.Row("weight")
	require.True(t, ok)
	assert.True(t, math.IsInf(m.Rows[weight].Lower, -1))
	assert.Equal(t, 6.0, m.Rows[weight].Upper)
}

const productionLP = `\ production planning
Maximize
 obj: 3 x + 2 y + 0.5
Subject To
 c1: x + y <= 4
 c2: x + 3 y
     <= 6
 -1 <= x - y <= 2
Bounds
 x <= 3
 0 <= y <= 10
 z free
General
 y
Binary
 b
End
`

func TestReadLP(t *testing.T) {
	m, err := ReadLP(strings.NewReader(productionLP))
	require.NoError(t, err)

	assert.Equal(t, Maximize, m.Sense)
	assert.Equal(t, "obj", m.ObjName)
	assert.Equal(t, 0.5, m.ObjConst)
	require.Len(t, m.Rows, 3)

	xi, ok := m.Column("x")
	require.True(t, ok)
	yi, _ := m.Column("y")
	zi, ok := m.Column("z")
	require.True(t, ok)
	bi, ok := m.Column("b")
	require.True(t, ok)

	assert.Equal(t, 3.0, m.Columns[xi].Cost)
	assert.Equal(t, 3.0, m.Columns[xi].Upper)
	assert.True(t, m.Columns[yi].Integer)
	assert.Equal(t, 10.0, m.Columns[yi].Upper)
	assert.True(t, math.IsInf(m.Columns[zi].Lower, -1))
	assert.True(t, m.Columns[bi].Integer)
	assert.Equal(t, 1.0, m.Columns[bi].Upper)

	c2 := m.Rows[1]
	assert.Equal(t, "c2", c2.Name)
	assert.Equal(t, 3.0, c2.Coefs[yi])
	assert.Equal(t, 6.0, c2.Upper)

	ranged := m.Rows[2]
	assert.Equal(t, -1.0, ranged.Lower)
	assert.Equal(t, 2.0, ranged.Upper)
	assert.Equal(t, -1.0, ranged.Coefs[yi])
}

func TestReadLPErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no end", "Minimize\n obj: x\n"},
		{"no objective", "Subject To\n c1: x >= 1\nEnd\n"},
		{"no sense", "Minimize\n obj: x\nSubject To\n c1: x + y\nEnd\n"},
		{"quadratic", "Minimize\n obj: [ x ^ 2 ]\nEnd\n"},
		{"missing operator", "Minimize\n obj: x y\nEnd\n"},
		{"sos", "Minimize\n obj: x\nSOS\nEnd\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadLP(strings.NewReader(tt.input))
			var re *ReadError
			assert.True(t, errors.As(err, &re), "got %v", err)
		})
	}
}

func TestDetectType(t *testing.T) {
	tests := []struct {
		path     string
		override string
		want     FileType
		err      error
	}{
		{"a.mps", "", TypeMPS, nil},
		{"a.MPS.gz", "", TypeMPS, nil},
		{"dir/b.lp.bz2", "", TypeLP, nil},
		{"c.sav", "", TypeSAV, nil},
		{"c.txt", "lp", TypeLP, nil},
		{"c.txt", "", "", ErrUnknownType},
		{"c.mps", "xyz", "", ErrUnknownType},
	}
	for _, tt := range tests {
		got, err := DetectType(tt.path, tt.override)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err, tt.path)
			continue
		}
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestReadFileCompressedAndUnsupported(t *testing.T) {
	dir := t.TempDir()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(productionLP))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, "plan.lp.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	m, err := ReadFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, "plan.lp", m.Name)
	assert.Len(t, m.Rows, 3)

	_, err = ReadFile(filepath.Join(dir, "model.sav"), "")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = ReadFile(filepath.Join(dir, "missing.mps"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestModelEvaluateAndFeasible(t *testing.T) {
	m, err := ReadLP(strings.NewReader(productionLP))
	require.NoError(t, err)

	x := make([]float64, len(m.Columns))
	xi, _ := m.Column("x")
	yi, _ := m.Column("y")
	x[xi], x[yi] = 2, 1

	assert.Equal(t, 8.5, m.Evaluate(x))
	assert.True(t, m.Feasible(x, 1e-9))

	x[yi] = 1.5
	assert.False(t, m.Feasible(x, 1e-9), "y is integer")
}

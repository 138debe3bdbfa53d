package problem

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/go-opt/lpo"
)

// ReadError reports a syntax or consistency error in a model file.
type ReadError struct {
	Format string
	Line   int
	Msg    string
}

func (e *ReadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s line %d: %s", e.Format, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Format, e.Msg)
}

// lpo keeps the model it reads in package variables.
var lpoMu sync.Mutex

// ReadMPS parses an MPS model with lpo. lpo reads named files and knows no
// OBJSENSE section, so the sense and name are taken out first and the rest
// is staged in a temporary file.
func ReadMPS(r io.Reader) (*Model, error) {
	hdr, body, err := splitMPSHeader(r)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "tuneset-*.mps")
	if err != nil {
		return nil, err
	}
	path := f.Name()
	defer os.Remove(path)
	if _, err := f.Write(body); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	lpoMu.Lock()
	defer lpoMu.Unlock()
	lpo.InitModel()
	defer lpo.InitModel()
	if err := lpo.ReadMpsFile(path); err != nil {
		return nil, &ReadError{Format: "mps", Msg: err.Error()}
	}

	m, err := fromLPO(hdr)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, &ReadError{Format: "mps", Msg: err.Error()}
	}
	return m, nil
}

type mpsHeader struct {
	name  string
	sense Sense
}

// splitMPSHeader removes the OBJSENSE section and records the NAME card.
func splitMPSHeader(r io.Reader) (mpsHeader, []byte, error) {
	hdr := mpsHeader{sense: Minimize}
	var body bytes.Buffer
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	inSense := false
	for sc.Scan() {
		line++
		raw := sc.Text()
		fields := strings.Fields(raw)
		indented := raw != "" && (raw[0] == ' ' || raw[0] == '\t')
		switch {
		case len(fields) == 0 || strings.HasPrefix(raw, "*"):
		case !indented && fields[0] == "OBJSENSE":
			inSense = true
			if len(fields) > 1 {
				if err := hdr.setSense(fields[1], line); err != nil {
					return hdr, nil, err
				}
			}
			continue
		case inSense && indented:
			if err := hdr.setSense(fields[0], line); err != nil {
				return hdr, nil, err
			}
			continue
		case !indented:
			inSense = false
			if fields[0] == "NAME" && len(fields) > 1 {
				hdr.name = fields[1]
			}
		}
		body.WriteString(raw)
		body.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return hdr, nil, err
	}
	return hdr, body.Bytes(), nil
}

func (h *mpsHeader) setSense(s string, line int) error {
	switch strings.ToUpper(s) {
	case "MAX", "MAXIMIZE":
		h.sense = Maximize
	case "MIN", "MINIMIZE":
		h.sense = Minimize
	default:
		return &ReadError{Format: "mps", Line: line, Msg: "bad objective sense " + s}
	}
	return nil
}

// fromLPO copies lpo's row, column and element tables. The objective is
// the row at lpo.ObjRow; other free rows are dropped. Any column type
// other than "R" is integer.
func fromLPO(hdr mpsHeader) (*Model, error) {
	m := NewModel(hdr.name)
	m.Sense = hdr.sense

	cols := make([]int, len(lpo.Cols))
	for j, c := range lpo.Cols {
		k := m.AddColumn(c.Name)
		cols[j] = k
		col := &m.Columns[k]
		col.Lower, col.Upper = lpoValue(c.BndLo), lpoValue(c.BndUp)
		col.Integer = c.Type != "R"
	}

	rows := make([]int, len(lpo.Rows))
	for i, r := range lpo.Rows {
		rows[i] = -1
		if r.Type == "N" {
			if i == lpo.ObjRow {
				m.ObjName = r.Name
				if v := lpoValue(r.RHSlo); !math.IsInf(v, 0) && v != 0 {
					m.ObjConst = -v
				}
			}
			continue
		}
		k, err := m.AddRow(r.Name)
		if err != nil {
			return nil, &ReadError{Format: "mps", Msg: err.Error()}
		}
		m.Rows[k].Lower, m.Rows[k].Upper = lpoValue(r.RHSlo), lpoValue(r.RHSup)
		rows[i] = k
	}

	for _, e := range lpo.Elems {
		if e.InRow < 0 || e.InRow >= len(rows) || e.InCol < 0 || e.InCol >= len(cols) {
			return nil, &ReadError{Format: "mps", Msg: fmt.Sprintf("element outside the model at row %d column %d", e.InRow, e.InCol)}
		}
		j := cols[e.InCol]
		switch {
		case e.InRow == lpo.ObjRow:
			m.Columns[j].Cost += e.Value
		case rows[e.InRow] >= 0:
			m.Rows[rows[e.InRow]].Coefs[j] += e.Value
		}
	}
	return m, nil
}

// lpoValue maps lpo's infinity to Inf.
func lpoValue(v float64) float64 {
	switch {
	case v >= lpo.Plinfy:
		return Inf
	case v <= -lpo.Plinfy:
		return -Inf
	}
	return v
}

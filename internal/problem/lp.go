package problem

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

type lpTokenKind int

const (
	lpName lpTokenKind = iota
	lpNumber
	lpSign
	lpSense
	lpColon
)

type lpToken struct {
	kind lpTokenKind
	text string
	num  float64
	line int
}

type lpSection int

const (
	lpNone lpSection = iota
	lpObjective
	lpConstraints
	lpBounds
	lpGeneral
	lpBinary
)

// ReadLP parses the subset of the CPLEX LP format built from the sections
// Minimize/Maximize, Subject To, Bounds, General, Binary and End.
// Quadratic terms, semi-continuous and SOS sections are rejected.
func ReadLP(r io.Reader) (*Model, error) {
	streams := make(map[lpSection][]lpToken)
	section := lpNone
	seen := make(map[lpSection]bool)
	m := NewModel("")
	ended := false

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '\\'); i >= 0 {
			text = text[:i]
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		next, rest, isHeader, err := lpHeader(text)
		if err != nil {
			return nil, &ReadError{Format: "lp", Line: line, Msg: err.Error()}
		}
		if isHeader {
			if next == lpNone {
				ended = true
				break
			}
			if seen[next] && next == lpObjective {
				return nil, &ReadError{Format: "lp", Line: line, Msg: "second objective section"}
			}
			if next == lpObjective {
				if strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), "max") {
					m.Sense = Maximize
				}
			}
			seen[next] = true
			section = next
			text = rest
		}
		if section == lpNone {
			return nil, &ReadError{Format: "lp", Line: line, Msg: "data before the objective section"}
		}
		toks, err := lpTokenize(text, line)
		if err != nil {
			return nil, err
		}
		streams[section] = append(streams[section], toks...)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !ended {
		return nil, &ReadError{Format: "lp", Line: line, Msg: "missing End"}
	}
	if !seen[lpObjective] {
		return nil, &ReadError{Format: "lp", Msg: "missing objective section"}
	}

	p := &lpParser{m: m}
	if err := p.objective(streams[lpObjective]); err != nil {
		return nil, err
	}
	if err := p.constraints(streams[lpConstraints]); err != nil {
		return nil, err
	}
	if err := p.bounds(streams[lpBounds]); err != nil {
		return nil, err
	}
	if err := p.integers(streams[lpGeneral], false); err != nil {
		return nil, err
	}
	if err := p.integers(streams[lpBinary], true); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, &ReadError{Format: "lp", Msg: err.Error()}
	}
	return m, nil
}

// lpHeader recognises a section keyword at the start of a line. End is
// reported as lpNone with isHeader set.
func lpHeader(text string) (lpSection, string, bool, error) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	word, rest := lower, ""
	if i := strings.IndexFunc(lower, unicode.IsSpace); i >= 0 {
		word, rest = lower[:i], strings.TrimSpace(lower[i:])
	}
	restOrig := ""
	if len(trimmed) > len(word) {
		restOrig = strings.TrimSpace(trimmed[len(word):])
	}
	switch word {
	case "minimize", "minimum", "min", "maximize", "maximum", "max":
		return lpObjective, restOrig, true, nil
	case "subject", "such":
		if strings.HasPrefix(rest, "to") || strings.HasPrefix(rest, "that") {
			fields := strings.Fields(restOrig)
			return lpConstraints, strings.TrimSpace(strings.TrimPrefix(restOrig, fields[0])), true, nil
		}
	case "st", "s.t.", "st.":
		return lpConstraints, restOrig, true, nil
	case "bounds", "bound":
		return lpBounds, restOrig, true, nil
	case "general", "generals", "gen":
		return lpGeneral, restOrig, true, nil
	case "binary", "binaries", "bin":
		return lpBinary, restOrig, true, nil
	case "end":
		return lpNone, "", true, nil
	case "semi-continuous", "semis", "semi", "sos", "pwl", "user", "lazy":
		return lpNone, "", false, fmt.Errorf("unsupported section %s", word)
	}
	return lpNone, "", false, nil
}

func lpTokenize(text string, line int) ([]lpToken, error) {
	var toks []lpToken
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '+' || c == '-':
			toks = append(toks, lpToken{kind: lpSign, text: string(c), line: line})
			i++
		case c == ':':
			toks = append(toks, lpToken{kind: lpColon, text: ":", line: line})
			i++
		case c == '<' || c == '>' || c == '=':
			j := i + 1
			if j < len(text) && (text[j] == '=' || text[j] == '<' || text[j] == '>') {
				j++
			}
			sense, err := lpNormalizeSense(text[i:j])
			if err != nil {
				return nil, &ReadError{Format: "lp", Line: line, Msg: err.Error()}
			}
			toks = append(toks, lpToken{kind: lpSense, text: sense, line: line})
			i = j
		case c == '[' || c == ']' || c == '^':
			return nil, &ReadError{Format: "lp", Line: line, Msg: "quadratic terms are not supported"}
		case (c >= '0' && c <= '9') || (c == '.' && i+1 < len(text) && text[i+1] >= '0' && text[i+1] <= '9'):
			j := lpScanNumber(text, i)
			v, err := strconv.ParseFloat(text[i:j], 64)
			if err != nil {
				return nil, &ReadError{Format: "lp", Line: line, Msg: fmt.Sprintf("bad number %s", text[i:j])}
			}
			toks = append(toks, lpToken{kind: lpNumber, text: text[i:j], num: v, line: line})
			i = j
		default:
			j := i
			for j < len(text) && !strings.ContainsRune(" \t\r+-<>=:[]^", rune(text[j])) {
				j++
			}
			name := text[i:j]
			switch strings.ToLower(name) {
			case "inf", "infinity":
				toks = append(toks, lpToken{kind: lpNumber, text: name, num: Inf, line: line})
			default:
				toks = append(toks, lpToken{kind: lpName, text: name, line: line})
			}
			i = j
		}
	}
	return toks, nil
}

func lpScanNumber(text string, i int) int {
	j := i
	for j < len(text) && (text[j] >= '0' && text[j] <= '9' || text[j] == '.') {
		j++
	}
	if j < len(text) && (text[j] == 'e' || text[j] == 'E') {
		k := j + 1
		if k < len(text) && (text[k] == '+' || text[k] == '-') {
			k++
		}
		if k < len(text) && text[k] >= '0' && text[k] <= '9' {
			for k < len(text) && text[k] >= '0' && text[k] <= '9' {
				k++
			}
			j = k
		}
	}
	return j
}

func lpNormalizeSense(s string) (string, error) {
	switch s {
	case "<", "<=", "=<":
		return "<=", nil
	case ">", ">=", "=>":
		return ">=", nil
	case "=", "==":
		return "=", nil
	}
	return "", fmt.Errorf("bad sense %s", s)
}

type lpParser struct {
	m    *Model
	toks []lpToken
	pos  int
}

func (p *lpParser) reset(toks []lpToken) {
	p.toks = toks
	p.pos = 0
}

func (p *lpParser) peek(off int) *lpToken {
	if p.pos+off < len(p.toks) {
		return &p.toks[p.pos+off]
	}
	return nil
}

func (p *lpParser) errorf(format string, args ...any) error {
	line := 0
	if t := p.peek(0); t != nil {
		line = t.line
	} else if len(p.toks) > 0 {
		line = p.toks[len(p.toks)-1].line
	}
	return &ReadError{Format: "lp", Line: line, Msg: fmt.Sprintf(format, args...)}
}

// label consumes an optional "name:" prefix.
func (p *lpParser) label() string {
	t, c := p.peek(0), p.peek(1)
	if t != nil && c != nil && t.kind == lpName && c.kind == lpColon {
		p.pos += 2
		return t.text
	}
	return ""
}

// expr reads linear terms up to a sense token or the end of the stream.
func (p *lpParser) expr() (map[int]float64, float64, error) {
	coefs := make(map[int]float64)
	constant := 0.0
	terms := 0
	for {
		t := p.peek(0)
		if t == nil || t.kind == lpSense {
			break
		}
		sign := 1.0
		signed := false
		for t != nil && t.kind == lpSign {
			if t.text == "-" {
				sign = -sign
			}
			signed = true
			p.pos++
			t = p.peek(0)
		}
		if t == nil {
			return nil, 0, p.errorf("dangling sign")
		}
		if !signed && terms > 0 {
			return nil, 0, p.errorf("missing operator before %s", t.text)
		}
		coef := 1.0
		hasCoef := false
		if t.kind == lpNumber {
			coef = t.num
			hasCoef = true
			p.pos++
			t = p.peek(0)
		}
		if t != nil && t.kind == lpName {
			j := p.m.AddColumn(t.text)
			coefs[j] += sign * coef
			p.pos++
		} else if hasCoef {
			constant += sign * coef
		} else {
			return nil, 0, p.errorf("expected a term")
		}
		terms++
	}
	return coefs, constant, nil
}

func (p *lpParser) number() (float64, error) {
	sign := 1.0
	t := p.peek(0)
	for t != nil && t.kind == lpSign {
		if t.text == "-" {
			sign = -sign
		}
		p.pos++
		t = p.peek(0)
	}
	if t == nil || t.kind != lpNumber {
		return 0, p.errorf("expected a number")
	}
	p.pos++
	return sign * t.num, nil
}

func (p *lpParser) objective(toks []lpToken) error {
	p.reset(toks)
	if name := p.label(); name != "" {
		p.m.ObjName = name
	} else {
		p.m.ObjName = "obj"
	}
	coefs, constant, err := p.expr()
	if err != nil {
		return err
	}
	if p.peek(0) != nil {
		return p.errorf("unexpected %s in objective", p.peek(0).text)
	}
	for j, v := range coefs {
		p.m.Columns[j].Cost += v
	}
	p.m.ObjConst = constant
	return nil
}

// startsWithNumberSense reports whether the next item is "[sign] number sense",
// the opening of a ranged constraint or a bound.
func (p *lpParser) startsWithNumberSense() bool {
	k := 0
	for t := p.peek(k); t != nil && t.kind == lpSign; t = p.peek(k) {
		k++
	}
	t, s := p.peek(k), p.peek(k+1)
	return t != nil && s != nil && t.kind == lpNumber && s.kind == lpSense
}

func (p *lpParser) constraints(toks []lpToken) error {
	p.reset(toks)
	for p.peek(0) != nil {
		name := p.label()
		if name == "" {
			name = fmt.Sprintf("c%d", len(p.m.Rows)+1)
		}
		i, err := p.m.AddRow(name)
		if err != nil {
			return p.errorf("%v", err)
		}

		if p.startsWithNumberSense() {
			lo, err := p.number()
			if err != nil {
				return err
			}
			first := p.peek(0).text
			p.pos++
			coefs, constant, err := p.expr()
			if err != nil {
				return err
			}
			s := p.peek(0)
			if s == nil || s.kind != lpSense || s.text != first || first == "=" {
				return p.errorf("ranged constraint %s needs matching senses", name)
			}
			p.pos++
			hi, err := p.number()
			if err != nil {
				return err
			}
			if first == ">=" {
				lo, hi = hi, lo
			}
			r := &p.m.Rows[i]
			r.Coefs = coefs
			r.Lower, r.Upper = lo-constant, hi-constant
			continue
		}

		coefs, constant, err := p.expr()
		if err != nil {
			return err
		}
		s := p.peek(0)
		if s == nil || s.kind != lpSense {
			return p.errorf("constraint %s has no sense", name)
		}
		p.pos++
		rhs, err := p.number()
		if err != nil {
			return err
		}
		rhs -= constant
		r := &p.m.Rows[i]
		r.Coefs = coefs
		switch s.text {
		case "<=":
			r.Lower, r.Upper = -Inf, rhs
		case ">=":
			r.Lower, r.Upper = rhs, Inf
		default:
			r.Lower, r.Upper = rhs, rhs
		}
	}
	return nil
}

func (p *lpParser) bounds(toks []lpToken) error {
	p.reset(toks)
	for p.peek(0) != nil {
		if p.startsWithNumberSense() {
			v, err := p.number()
			if err != nil {
				return err
			}
			sense := p.peek(0).text
			p.pos++
			t := p.peek(0)
			if t == nil || t.kind != lpName {
				return p.errorf("bound needs a variable")
			}
			p.pos++
			j := p.m.AddColumn(t.text)
			applyBound(&p.m.Columns[j], reverseSense(sense), v)
			if s := p.peek(0); s != nil && s.kind == lpSense {
				p.pos++
				v2, err := p.number()
				if err != nil {
					return err
				}
				applyBound(&p.m.Columns[j], s.text, v2)
			}
			continue
		}

		t := p.peek(0)
		if t.kind != lpName {
			return p.errorf("unexpected %s in bounds", t.text)
		}
		p.pos++
		j := p.m.AddColumn(t.text)
		next := p.peek(0)
		if next != nil && next.kind == lpName && strings.EqualFold(next.text, "free") {
			p.pos++
			p.m.Columns[j].Lower, p.m.Columns[j].Upper = -Inf, Inf
			continue
		}
		if next == nil || next.kind != lpSense {
			return p.errorf("bound on %s needs a sense", t.text)
		}
		p.pos++
		v, err := p.number()
		if err != nil {
			return err
		}
		applyBound(&p.m.Columns[j], next.text, v)
	}
	return nil
}

func reverseSense(s string) string {
	switch s {
	case "<=":
		return ">="
	case ">=":
		return "<="
	}
	return s
}

// applyBound applies "x sense v".
func applyBound(c *Column, sense string, v float64) {
	switch sense {
	case "<=":
		c.Upper = v
	case ">=":
		c.Lower = v
	default:
		c.Lower, c.Upper = v, v
	}
}

func (p *lpParser) integers(toks []lpToken, binary bool) error {
	for _, t := range toks {
		if t.kind != lpName {
			return &ReadError{Format: "lp", Line: t.line, Msg: fmt.Sprintf("expected a variable name, got %s", t.text)}
		}
		j := p.m.AddColumn(t.text)
		c := &p.m.Columns[j]
		c.Integer = true
		if binary {
			c.Lower, c.Upper = 0, 1
		}
	}
	return nil
}

package param

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// FileHeader opens every parameter file.
const FileHeader = "CPLEX Parameter File Version 12.6.1.0"

const headerPrefix = "CPLEX Parameter File Version"

// Read parses a parameter file and copies its settings into s. Parameters not
// named in the file keep their current values. On error s is left unchanged.
func Read(r io.Reader, s *Set) error {
	staged := s.Clone()
	sc := bufio.NewScanner(r)
	line := 0
	seenHeader := false
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if !seenHeader {
			if !strings.HasPrefix(text, headerPrefix) {
				return &Error{Kind: ErrBadHeader, Line: line, Detail: text}
			}
			seenHeader = true
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return &Error{Kind: ErrBadData, Line: line, Detail: text}
		}
		d, err := staged.reg.LookupName(fields[0])
		if err != nil {
			return &Error{Kind: ErrUnknownName, Name: fields[0], Line: line}
		}
		if err := setFromText(staged, d, fields[1]); err != nil {
			if pe, ok := err.(*Error); ok {
				pe.Line = line
			}
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read parameter file: %w", err)
	}
	if !seenHeader {
		return &Error{Kind: ErrBadHeader, Detail: "empty file"}
	}
	s.CopyFrom(staged)
	return nil
}

func setFromText(s *Set, d *Def, text string) error {
	switch d.Type {
	case TypeInt, TypeLong:
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return &Error{Kind: ErrBadData, ID: d.ID, Name: d.Name, Detail: text}
		}
		return s.SetInt(d.ID, v)
	case TypeDouble:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return &Error{Kind: ErrBadData, ID: d.ID, Name: d.Name, Detail: text}
		}
		return s.SetDbl(d.ID, v)
	default:
		return &Error{Kind: ErrWrongType, ID: d.ID, Name: d.Name}
	}
}

// Write emits the header and every non-default parameter of s.
func Write(w io.Writer, s *Set) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, FileHeader)
	for _, id := range s.Changed() {
		d, _ := s.reg.Lookup(id)
		fmt.Fprintf(bw, "%-48s %s\n", d.Name, s.format(d))
	}
	return bw.Flush()
}

// ReadFile reads a parameter file from disk into s.
func ReadFile(path string, s *Set) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Read(f, s)
}

// WriteFile writes the non-default parameters of s to path.
func WriteFile(path string, s *Set) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

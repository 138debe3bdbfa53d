package param

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Set holds a value for every parameter of a registry. INT and LONG values
// share int64 storage; range checks keep INT values within 32 bits.
type Set struct {
	reg  *Registry
	ints map[int]int64
	dbls map[int]float64
}

// NewSet returns a set with every parameter at its default.
func NewSet(reg *Registry) *Set {
	s := &Set{
		reg:  reg,
		ints: make(map[int]int64),
		dbls: make(map[int]float64),
	}
	s.Reset()
	return s
}

// Registry returns the registry the set was built from.
func (s *Set) Registry() *Registry {
	return s.reg
}

// Reset restores every parameter to its default.
func (s *Set) Reset() {
	for _, d := range s.reg.defs {
		switch d.Type {
		case TypeInt, TypeLong:
			s.ints[d.ID] = d.DefInt
		case TypeDouble:
			s.dbls[d.ID] = d.DefDbl
		}
	}
}

// Type returns the value type of a parameter.
func (s *Set) Type(id int) (Type, error) {
	d, err := s.reg.Lookup(id)
	if err != nil {
		return TypeNone, err
	}
	return d.Type, nil
}

// Int returns an INT or LONG value.
func (s *Set) Int(id int) (int64, error) {
	d, err := s.reg.Lookup(id)
	if err != nil {
		return 0, err
	}
	if d.Type != TypeInt && d.Type != TypeLong {
		return 0, &Error{Kind: ErrWrongType, ID: id, Name: d.Name}
	}
	return s.ints[id], nil
}

// Dbl returns a DOUBLE value.
func (s *Set) Dbl(id int) (float64, error) {
	d, err := s.reg.Lookup(id)
	if err != nil {
		return 0, err
	}
	if d.Type != TypeDouble {
		return 0, &Error{Kind: ErrWrongType, ID: id, Name: d.Name}
	}
	return s.dbls[id], nil
}

// MustInt returns an INT or LONG value and panics on an unregistered id.
// It is meant for engine code reading its own parameters.
func (s *Set) MustInt(id int) int64 {
	v, err := s.Int(id)
	if err != nil {
		panic(err)
	}
	return v
}

// MustDbl is the DOUBLE counterpart of MustInt.
func (s *Set) MustDbl(id int) float64 {
	v, err := s.Dbl(id)
	if err != nil {
		panic(err)
	}
	return v
}

// SetInt sets an INT or LONG value after a range check.
func (s *Set) SetInt(id int, v int64) error {
	d, err := s.reg.Lookup(id)
	if err != nil {
		return err
	}
	if err := d.checkInt(v); err != nil {
		return err
	}
	s.ints[id] = v
	return nil
}

// SetDbl sets a DOUBLE value after a range check.
func (s *Set) SetDbl(id int, v float64) error {
	d, err := s.reg.Lookup(id)
	if err != nil {
		return err
	}
	if err := d.checkDbl(v); err != nil {
		return err
	}
	s.dbls[id] = v
	return nil
}

// SetNumber sets a parameter of any numeric type from a float64, which is
// how tuning candidates are stored.
func (s *Set) SetNumber(id int, v float64) error {
	d, err := s.reg.Lookup(id)
	if err != nil {
		return err
	}
	if d.Type == TypeDouble {
		return s.SetDbl(id, v)
	}
	return s.SetInt(id, int64(v))
}

// Number returns a parameter of any numeric type as a float64.
func (s *Set) Number(id int) (float64, error) {
	d, err := s.reg.Lookup(id)
	if err != nil {
		return 0, err
	}
	if d.Type == TypeDouble {
		return s.dbls[id], nil
	}
	return float64(s.ints[id]), nil
}

// IsDefault reports whether a parameter holds its default value.
func (s *Set) IsDefault(id int) bool {
	d, err := s.reg.Lookup(id)
	if err != nil {
		return true
	}
	if d.Type == TypeDouble {
		return s.dbls[id] == d.DefDbl
	}
	return s.ints[id] == d.DefInt
}

// Changed returns the ids of non-default parameters in ascending order.
func (s *Set) Changed() []int {
	out := make([]int, 0)
	for _, d := range s.reg.defs {
		if !s.IsDefault(d.ID) {
			out = append(out, d.ID)
		}
	}
	return out
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	c := &Set{
		reg:  s.reg,
		ints: make(map[int]int64, len(s.ints)),
		dbls: make(map[int]float64, len(s.dbls)),
	}
	for k, v := range s.ints {
		c.ints[k] = v
	}
	for k, v := range s.dbls {
		c.dbls[k] = v
	}
	return c
}

// CopyFrom overwrites every value with the values of other.
func (s *Set) CopyFrom(other *Set) {
	for k, v := range other.ints {
		s.ints[k] = v
	}
	for k, v := range other.dbls {
		s.dbls[k] = v
	}
}

// Equal reports whether both sets hold the same values.
func (s *Set) Equal(other *Set) bool {
	if other == nil || len(s.ints) != len(other.ints) || len(s.dbls) != len(other.dbls) {
		return false
	}
	for k, v := range s.ints {
		if ov, ok := other.ints[k]; !ok || ov != v {
			return false
		}
	}
	for k, v := range s.dbls {
		if ov, ok := other.dbls[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Key is a canonical string of the non-default values, usable as a map key.
func (s *Set) Key() string {
	var b strings.Builder
	for _, id := range s.Changed() {
		v, _ := s.Number(id)
		b.WriteString(strconv.Itoa(id))
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteByte(';')
	}
	return b.String()
}

// Describe renders non-default values as "NAME=value" pairs for display.
func (s *Set) Describe() string {
	changed := s.Changed()
	if len(changed) == 0 {
		return "(defaults)"
	}
	parts := make([]string, 0, len(changed))
	for _, id := range changed {
		d, _ := s.reg.Lookup(id)
		parts = append(parts, fmt.Sprintf("%s=%s", d.Name, s.format(d)))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func (s *Set) format(d *Def) string {
	if d.Type == TypeDouble {
		return strconv.FormatFloat(s.dbls[d.ID], 'g', -1, 64)
	}
	return strconv.FormatInt(s.ints[d.ID], 10)
}

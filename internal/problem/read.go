package problem

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileType identifies a model file format.
type FileType string

const (
	TypeMPS FileType = "MPS"
	TypeLP  FileType = "LP"
	TypeSAV FileType = "SAV"
)

var (
	// ErrUnknownType is returned when no format can be inferred.
	ErrUnknownType = errors.New("unknown file type")
	// ErrUnsupportedType is returned for formats this package cannot parse.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// DetectType resolves the format of path. A non-empty override wins over
// the file extension. Compression suffixes are ignored.
func DetectType(path, override string) (FileType, error) {
	if override != "" {
		switch t := FileType(strings.ToUpper(override)); t {
		case TypeMPS, TypeLP, TypeSAV:
			return t, nil
		default:
			return "", fmt.Errorf("%w: %s", ErrUnknownType, override)
		}
	}
	name := strings.ToLower(path)
	name = strings.TrimSuffix(strings.TrimSuffix(name, ".gz"), ".bz2")
	switch filepath.Ext(name) {
	case ".mps":
		return TypeMPS, nil
	case ".lp":
		return TypeLP, nil
	case ".sav":
		return TypeSAV, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownType, path)
}

// ReadFile reads a model from disk. Files ending in .gz or .bz2 are
// decompressed on the fly.
func ReadFile(path, override string) (*Model, error) {
	t, err := DetectType(path, override)
	if err != nil {
		return nil, err
	}
	if t == TypeSAV {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".gz"):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, &ReadError{Format: "gzip", Msg: err.Error()}
		}
		defer zr.Close()
		r = zr
	case strings.HasSuffix(strings.ToLower(path), ".bz2"):
		r = bzip2.NewReader(r)
	}

	m, err := Read(r, t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return m, nil
}

// Read parses a model of the given type.
func Read(r io.Reader, t FileType) (*Model, error) {
	switch t {
	case TypeMPS:
		return ReadMPS(r)
	case TypeLP:
		return ReadLP(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
}

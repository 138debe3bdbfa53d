// Package report renders a tuning session as a JSON document built from
// protobuf well-known types.
package report

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/tuneset/internal/solver"
)

// Session is what the report describes.
type Session struct {
	Engine     string
	Files      []string
	Fixed      solver.FixedParams
	TuneStatus solver.TuneStatus
	ExitStatus int
	TunedFile  string
	Written    bool
	Started    time.Time
	Elapsed    time.Duration
	// Tuning is nil for engines that do not describe their runs.
	Tuning *solver.TuneReport
}

// Build converts a session into a protobuf Struct.
func Build(s Session) (*structpb.Struct, error) {
	files := make([]any, len(s.Files))
	for i, f := range s.Files {
		files[i] = f
	}
	ints := make(map[string]any, len(s.Fixed.IntNums))
	for i, id := range s.Fixed.IntNums {
		ints[strconv.Itoa(id)] = float64(s.Fixed.IntVals[i])
	}
	dbls := make(map[string]any, len(s.Fixed.DblNums))
	for i, id := range s.Fixed.DblNums {
		dbls[strconv.Itoa(id)] = s.Fixed.DblVals[i]
	}

	doc := map[string]any{
		"engine":           s.Engine,
		"files":            files,
		"fixed":            map[string]any{"int": ints, "double": dbls},
		"tune_status":      float64(s.TuneStatus),
		"tune_status_text": s.TuneStatus.String(),
		"exit_status":      float64(s.ExitStatus),
		"exit_status_text": solver.Describe(s.ExitStatus),
		"written":          s.Written,
		"elapsed_seconds":  s.Elapsed.Seconds(),
	}
	if !s.Started.IsZero() {
		doc["started"] = s.Started.UTC().Format(time.RFC3339)
	}
	if s.TunedFile != "" {
		doc["tuned_file"] = s.TunedFile
	}
	if t := s.Tuning; t != nil {
		doc["tuning"] = tuning(t)
	}

	out, err := structpb.NewStruct(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}
	return out, nil
}

func tuning(t *solver.TuneReport) map[string]any {
	tuned := make([]any, len(t.Tuned))
	for i, name := range t.Tuned {
		tuned[i] = name
	}
	problems := make([]any, len(t.Problems))
	for i, p := range t.Problems {
		problems[i] = map[string]any{
			"file":           p.File,
			"mip":            p.MIP,
			"baseline_ticks": p.BaselineTicks,
			"tuned_ticks":    p.TunedTicks,
			"baseline_solve": p.BaselineSolve,
			"tuned_solve":    p.TunedSolve,
		}
	}
	return map[string]any{
		"run_id":       t.RunID,
		"engine":       t.Engine,
		"measure":      t.Measure,
		"baseline":     t.Baseline,
		"best":         t.Best,
		"evaluations":  float64(t.Evaluations),
		"iterations":   float64(t.Iterations),
		"ticks":        t.Ticks,
		"reason":       t.Reason,
		"tuned_params": tuned,
		"problems":     problems,
	}
}

// Marshal renders the report as indented JSON.
func Marshal(doc *structpb.Struct) ([]byte, error) {
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(doc)
}

// WriteFile builds the report of s and writes it to path.
func WriteFile(path string, s Session) error {
	doc, err := Build(s)
	if err != nil {
		return err
	}
	data, err := Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

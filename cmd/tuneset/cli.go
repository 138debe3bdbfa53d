package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/tuneset/internal/metrics"
	"github.com/GoSim-25-26J-441/tuneset/internal/param"
	"github.com/GoSim-25-26J-441/tuneset/internal/report"
	"github.com/GoSim-25-26J-441/tuneset/internal/solver"
	"github.com/GoSim-25-26J-441/tuneset/internal/tuneset"
	"github.com/GoSim-25-26J-441/tuneset/pkg/config"
	"github.com/GoSim-25-26J-441/tuneset/pkg/logger"
)

// exitUsage is the exit status for command line errors.
const exitUsage = 2

// app carries the process boundary so tests can replace it.
type app struct {
	stdout    io.Writer
	stderr    io.Writer
	open      func(engine string) (solver.Env, error)
	lookupEnv func(string) (string, bool)
}

// usageError is a command line mistake; the usage text is printed for it.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// exitError carries a library status out of RunE.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

type flags struct {
	average     bool
	minmax      bool
	fixedFile   string
	tunedFile   string
	configPath  string
	envFile     string
	logLevel    string
	logFormat   string
	engine      string
	metricsFile string
	reportFile  string
	types       []string
}

func (a *app) run(args []string) int {
	cmd := a.newRootCmd()
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return 0
	}

	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	// Everything else comes from argument parsing.
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
	fmt.Fprint(a.stderr, cmd.UsageString())
	return exitUsage
}

func (a *app) newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "tuneset [-a | -m] [-f fixedfile] [-o tunedfile] file1 file2 ... filen",
		Short: "Tune solver parameters over a set of problems",
		Long: `tuneset runs the solver's parameter tuning over a set of problem files.

Each file is an MPS, LP or SAV model, optionally compressed with gzip or
bzip2. Parameters read from the fixed file are excluded from tuning. When
tuning completes, the tuned settings are written to the output file.
The exit status is the solver status of the first failure, 0 on success.`,
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd, f, args)
		},
	}
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	fs := cmd.Flags()
	fs.SetInterspersed(false)
	fs.BoolVarP(&f.average, "average", "a", false, "use the average tuning measure")
	fs.BoolVarP(&f.minmax, "minmax", "m", false, "use the minmax tuning measure")
	fs.StringVarP(&f.fixedFile, "fixed", "f", "", "parameter `file` of settings excluded from tuning")
	fs.StringVarP(&f.tunedFile, "output", "o", "", "write the tuned parameters to `file`")
	fs.StringVar(&f.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&f.envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", "", "log format (text, json)")
	fs.StringVar(&f.engine, "engine", "", fmt.Sprintf("solver engine (%s)", solver.DefaultEngine()))
	fs.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	fs.StringVar(&f.reportFile, "report", "", "write a JSON report of the session to this file")
	fs.StringArrayVar(&f.types, "type", nil, "file type of the problem at the same position (mps, lp, sav); repeatable")
	// Giving both measures is rejected rather than letting the last one win.
	cmd.MarkFlagsMutuallyExclusive("average", "minmax")
	return cmd
}

// settings loads the configuration through config.Load and layers the
// flags the user set on top.
func (a *app) settings(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath, config.WithEnvFile(f.envFile), config.WithLookup(a.lookupEnv))
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if changed("engine") {
		cfg.Engine = f.engine
	}
	if changed("metrics-file") {
		cfg.Output.MetricsFile = f.metricsFile
	}
	if changed("report") {
		cfg.Output.ReportFile = f.reportFile
	}
	if changed("fixed") {
		cfg.Tuning.FixedFile = f.fixedFile
	}
	if changed("output") {
		cfg.Tuning.TunedFile = f.tunedFile
	}
	switch {
	case f.average:
		cfg.Tuning.Measure = "average"
	case f.minmax:
		cfg.Tuning.Measure = "minmax"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

func options(cfg *config.Config, files, types []string) tuneset.Options {
	opts := tuneset.Options{
		Files:     files,
		Types:     types,
		FixedFile: cfg.Tuning.FixedFile,
		TunedFile: cfg.Tuning.TunedFile,
	}
	switch cfg.Tuning.Measure {
	case "average":
		opts.Measure = param.MeasureAverage
	case "minmax":
		opts.Measure = param.MeasureMinMax
	}
	t := cfg.Tuning
	if t.TimeLimit != nil {
		opts.Controls = append(opts.Controls, tuneset.Control{ID: param.TuneTimeLimit, Value: *t.TimeLimit})
	}
	if t.DetTimeLimit != nil {
		opts.Controls = append(opts.Controls, tuneset.Control{ID: param.TuneDetTimeLimit, Value: *t.DetTimeLimit})
	}
	if t.Repeat != nil {
		opts.Controls = append(opts.Controls, tuneset.Control{ID: param.TuneRepeat, Value: float64(*t.Repeat)})
	}
	if t.Threads != nil {
		opts.Controls = append(opts.Controls, tuneset.Control{ID: param.Threads, Value: float64(*t.Threads)})
	}
	if t.Display != nil {
		opts.Controls = append(opts.Controls, tuneset.Control{ID: param.TuneDisplay, Value: float64(*t.Display)})
	}
	return opts
}

func (a *app) execute(cmd *cobra.Command, f *flags, files []string) error {
	if len(files) == 0 {
		return &usageError{msg: "no problem files given"}
	}
	if len(f.types) > 0 && len(f.types) != len(files) {
		return &usageError{msg: fmt.Sprintf("%d --type values for %d problem files", len(f.types), len(files))}
	}
	cfg, err := a.settings(cmd, f)
	if err != nil {
		return &usageError{msg: err.Error()}
	}

	log := logger.NewFormat(cfg.LogFormat, cfg.LogLevel, a.stderr)
	logger.SetDefault(log)

	engine := cfg.Engine
	if engine == "" {
		engine = solver.DefaultEngine()
	}
	log.Debug("starting tuneset", "engine", engine, "files", len(files))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()
	collector.Start()
	started := time.Now()

	runner := tuneset.NewRunner(func() (solver.Env, error) { return a.open(engine) }, log)
	runner.Stdout, runner.Stderr = a.stdout, a.stderr
	opts := options(cfg, files, f.types)
	out, runErr := runner.Run(ctx, opts)
	code := solver.Code(runErr)
	if runErr != nil {
		log.Debug("tuning session failed", "status", code, "error", runErr)
	}

	a.artifacts(log, cfg, collector, report.Session{
		Engine:     engine,
		Files:      files,
		Fixed:      out.Fixed,
		TuneStatus: out.TuneStatus,
		ExitStatus: code,
		TunedFile:  opts.TunedFile,
		Written:    out.Written,
		Started:    started,
		Elapsed:    time.Since(started),
		Tuning:     out.Report,
	})

	if runErr != nil {
		return &exitError{code: code, err: runErr}
	}
	return nil
}

// artifacts writes the optional metrics and report files. Their failures
// are logged and never change the exit status.
func (a *app) artifacts(log *slog.Logger, cfg *config.Config, c *metrics.Collector, s report.Session) {
	if path := cfg.Output.MetricsFile; path != "" {
		c.ObserveProblems(len(s.Files))
		c.ObserveFixed(s.Fixed)
		c.ObserveReport(s.Tuning)
		c.ObserveExit(s.TuneStatus, s.ExitStatus)
		c.Stop()
		if err := c.WriteTextfile(path); err != nil {
			log.Warn("failed to write metrics", "path", path, "error", err)
		}
	}
	if path := cfg.Output.ReportFile; path != "" {
		if err := report.WriteFile(path, s); err != nil {
			log.Warn("failed to write report", "path", path, "error", err)
		}
	}
}

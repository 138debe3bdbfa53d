package config

// Config represents the tuneset configuration file
type Config struct {
	LogLevel  string  `yaml:"log_level"`
	LogFormat string  `yaml:"log_format,omitempty"` // text or json
	Engine    string  `yaml:"engine,omitempty"`     // builtin or cplex; empty picks the best available
	Tuning    *Tuning `yaml:"tuning,omitempty"`
	Output    *Output `yaml:"output,omitempty"`
}

// Tuning holds tuning controls. Unset fields keep the engine defaults.
type Tuning struct {
	Measure      string   `yaml:"measure,omitempty"`        // average or minmax
	TimeLimit    *float64 `yaml:"time_limit,omitempty"`     // seconds
	DetTimeLimit *float64 `yaml:"det_time_limit,omitempty"` // ticks
	Repeat       *int     `yaml:"repeat,omitempty"`
	Threads      *int     `yaml:"threads,omitempty"`
	Display      *int     `yaml:"display,omitempty"`
	FixedFile    string   `yaml:"fixed_file,omitempty"`
	TunedFile    string   `yaml:"tuned_file,omitempty"`
}

// Output names the optional artifacts written after a run
type Output struct {
	MetricsFile string `yaml:"metrics_file,omitempty"`
	ReportFile  string `yaml:"report_file,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel:  "warn",
		LogFormat: "text",
		Tuning:    &Tuning{},
		Output:    &Output{},
	}
}

// fill replaces missing sections and fields with their defaults.
func (c *Config) fill() {
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Tuning == nil {
		c.Tuning = &Tuning{}
	}
	if c.Output == nil {
		c.Output = &Output{}
	}
}

// Validate fills missing sections and checks the configuration.
func (c *Config) Validate() error {
	c.fill()
	return validateConfig(c)
}

package types

// KnowledgeConfig holds settings for the knowledge base.
// Per prd005-knowledge-base R1.1, R2.2.
type KnowledgeConfig struct {
	// Path is the SQLite database file (default "stack-adviser.db").
	Path string `json:"path" yaml:"path"`

	// SolverDir is the directory of solver documents ingested into the
	// knowledge base.
	SolverDir string `json:"solver_dir" yaml:"solver_dir"`
}

// ResolverConfig holds settings for resolution runs.
// Per prd001-resolution R2.1-R2.5, prd002-annealing R2.1.
type ResolverConfig struct {
	// Limit is the maximum number of resolver iterations (default 10000).
	Limit int `json:"limit" yaml:"limit"`

	// Count is the number of stacks to recommend (default 3).
	Count int `json:"count" yaml:"count"`

	// BeamWidth bounds the number of partial states kept between
	// iterations (default 1000; 0 means unbounded).
	BeamWidth int `json:"beam_width" yaml:"beam_width"`

	// Seed seeds the resolution random source. 0 means derive from time.
	Seed int64 `json:"seed" yaml:"seed"`

	// Prescriptions is an optional YAML file or directory of declarative
	// pipeline units loaded in addition to the builtin catalog.
	Prescriptions string `json:"prescriptions,omitempty" yaml:"prescriptions,omitempty"`
}

// MonkeyConfig holds settings for dependency-monkey runs.
// Per prd007-dependency-monkey R1.1-R1.3.
type MonkeyConfig struct {
	// Decision selects the stack acceptance function: all or random.
	Decision string `json:"decision" yaml:"decision"`

	// StacksDir is the directory accepted stacks are written to.
	StacksDir string `json:"stacks_dir" yaml:"stacks_dir"`
}

// OutputConfig holds report formatting settings. Per prd008-cli R3.1-R3.3.
type OutputConfig struct {
	// Format selects the report encoding: json or yaml.
	Format string `json:"format" yaml:"format"`

	// NoPretty forces compact JSON on stdout even on a TTY.
	NoPretty bool `json:"no_pretty" yaml:"no_pretty"`
}

// Config groups all tool configuration, mirroring the config file layout.
type Config struct {
	Knowledge KnowledgeConfig `json:"knowledge" yaml:"knowledge"`
	Resolver  ResolverConfig  `json:"resolver" yaml:"resolver"`
	Monkey    MonkeyConfig    `json:"monkey" yaml:"monkey"`
	Output    OutputConfig    `json:"output" yaml:"output"`
}

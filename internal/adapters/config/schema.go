package config

// FileName is the name of the configuration file.
const FileName = "rebuild.yaml"

// Rebuildfile represents the structure of the rebuild.yaml configuration file.
type Rebuildfile struct {
	Version     string             `yaml:"version"`
	Root        string             `yaml:"root"`
	Hash        string             `yaml:"hash"`
	Codec       string             `yaml:"codec"`
	Parallelism int                `yaml:"parallelism"`
	ReadCache   *int               `yaml:"readCache"`
	Steps       map[string]StepDTO `yaml:"steps"`
}

// StepDTO represents a step definition in the configuration.
type StepDTO struct {
	Cmd         []string          `yaml:"cmd"`
	Input       []string          `yaml:"input"`
	Dirs        []string          `yaml:"dirs"`
	DependsOn   []string          `yaml:"dependsOn"`
	Environment map[string]string `yaml:"environment"`
}

// Overrides are the settings that can be replaced from the environment.
type Overrides struct {
	Root        string `env:"ROOT"`
	Hash        string `env:"HASH"`
	Codec       string `env:"CODEC"`
	Parallelism int    `env:"PARALLELISM"`
	ReadCache   int    `env:"READ_CACHE"`
}

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "REBUILD_"

	defaultRoot      = ".rebuild"
	defaultReadCache = 256
	currentVersion   = "1"
)

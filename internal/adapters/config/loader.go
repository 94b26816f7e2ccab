// Package config provides the configuration loader for rebuild.
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"github.com/caarlos0/env/v10"
	"go.trai.ch/rebuild/internal/core/domain"
	"go.trai.ch/rebuild/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*Loader)(nil)

var validStepNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
	// Environment replaces the process environment when reading overrides. Nil
	// means the process environment.
	Environment map[string]string
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load finds rebuild.yaml in cwd or the closest parent directory and returns the
// validated pipeline it describes.
func (l *Loader) Load(cwd string) (*domain.Pipeline, error) {
	configPath, err := findConfiguration(cwd)
	if err != nil {
		return nil, err
	}
	return l.LoadFile(configPath)
}

// LoadFile reads the configuration file at configPath.
func (l *Loader) LoadFile(configPath string) (*domain.Pipeline, error) {
	data, err := os.ReadFile(configPath) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read config file"), "path", configPath)
	}

	var file Rebuildfile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse config file"), "path", configPath)
	}

	switch file.Version {
	case currentVersion:
	case "":
		l.Logger.Warn("no version set in " + FileName + ", assuming " + currentVersion)
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrUnsupportedConfigVersion, ""), "version", file.Version)
	}

	dir, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return nil, zerr.Wrap(err, "failed to resolve config directory")
	}

	settings, err := l.settings(dir, &file)
	if err != nil {
		return nil, err
	}

	p := domain.NewPipeline(settings)
	for _, name := range sortedKeys(file.Steps) {
		step, err := buildStep(name, file.Steps[name])
		if err != nil {
			return nil, err
		}
		if err := p.AddStep(step); err != nil {
			return nil, err
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// settings merges file values, defaults and environment overrides.
func (l *Loader) settings(dir string, file *Rebuildfile) (domain.Settings, error) {
	o := Overrides{
		Root:        file.Root,
		Hash:        file.Hash,
		Codec:       file.Codec,
		Parallelism: file.Parallelism,
		ReadCache:   defaultReadCache,
	}
	if o.Root == "" {
		o.Root = defaultRoot
	}
	if file.ReadCache != nil {
		o.ReadCache = *file.ReadCache
	}

	if err := env.ParseWithOptions(&o, env.Options{
		Prefix:      EnvPrefix,
		Environment: l.Environment,
	}); err != nil {
		return domain.Settings{}, zerr.Wrap(err, "failed to parse environment overrides")
	}

	hash, err := domain.ParseHashAlgorithm(o.Hash)
	if err != nil {
		return domain.Settings{}, err
	}
	codec, err := domain.ParseCodec(o.Codec)
	if err != nil {
		return domain.Settings{}, err
	}
	if o.Parallelism < 0 {
		return domain.Settings{}, zerr.With(zerr.Wrap(domain.ErrInvalidSetting, ""), "parallelism", o.Parallelism)
	}
	if o.ReadCache < 0 {
		return domain.Settings{}, zerr.With(zerr.Wrap(domain.ErrInvalidSetting, ""), "readCache", o.ReadCache)
	}

	root := o.Root
	if !filepath.IsAbs(root) {
		root = filepath.Join(dir, root)
	}

	return domain.Settings{
		Dir:         dir,
		Root:        root,
		Hash:        hash,
		Codec:       codec,
		Parallelism: o.Parallelism,
		ReadCache:   o.ReadCache,
	}, nil
}

func findConfiguration(cwd string) (string, error) {
	currentDir := cwd
	for {
		path := filepath.Join(currentDir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root
			break
		}
		currentDir = parentDir
	}
	return "", zerr.With(zerr.Wrap(domain.ErrConfigNotFound, ""), "cwd", cwd)
}

func buildStep(name string, dto StepDTO) (*domain.Step, error) {
	if !validStepNameRegex.MatchString(name) {
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidStepName, ""), "step", name)
	}
	if len(dto.Cmd) == 0 {
		return nil, zerr.With(zerr.Wrap(domain.ErrEmptyCommand, ""), "step", name)
	}

	return &domain.Step{
		Name:         domain.NewInternedString(name),
		Command:      dto.Cmd,
		Inputs:       canonicalizeStrings(dto.Input),
		Dirs:         canonicalizeStrings(dto.Dirs),
		Dependencies: domain.NewInternedStrings(dto.DependsOn), // dependency order decides input order
		Environment:  dto.Environment,
	}, nil
}

func sortedKeys(steps map[string]StepDTO) []string {
	keys := make([]string, 0, len(steps))
	for k := range steps {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func canonicalizeStrings(strs []string) []domain.InternedString {
	if len(strs) == 0 {
		return nil
	}

	sorted := make([]string, len(strs))
	copy(sorted, strs)
	slices.Sort(sorted)

	return domain.NewInternedStrings(slices.Compact(sorted))
}

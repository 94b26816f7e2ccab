package config_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rebuild/internal/adapters/config"
	"go.trai.ch/rebuild/internal/core/domain"
	"go.trai.ch/rebuild/internal/core/ports/mocks"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(content), 0o600))
}

func newLoader(t *testing.T, environment map[string]string) *config.Loader {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Warn(gomock.Any()).AnyTimes()

	loader := config.NewLoader(mockLogger)
	if environment == nil {
		environment = map[string]string{}
	}
	loader.Environment = environment
	return loader
}

func stepNames(p *domain.Pipeline) []string {
	var names []string
	for s := range p.Walk() {
		names = append(names, s.Name.String())
	}
	return names
}

func TestLoad_Success(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `
version: "1"
hash: xxhash
codec: yaml
parallelism: 2
readCache: 16
steps:
  build:
    cmd: ["go", "build"]
    input: ["b.go", "a.go", "a.go"]
    dirs: ["assets"]
    dependsOn: ["gen", "fmt"]
    environment:
      GOOS: linux
  gen:
    cmd: ["go", "generate"]
  fmt:
    cmd: ["gofmt", "-l", "."]
`)

	p, err := newLoader(t, nil).Load(tmpDir)
	require.NoError(t, err)

	absDir, err := filepath.Abs(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, domain.Settings{
		Dir:         absDir,
		Root:        filepath.Join(absDir, ".rebuild"),
		Hash:        domain.HashXXHash,
		Codec:       domain.CodecYAML,
		Parallelism: 2,
		ReadCache:   16,
	}, p.Settings)

	build, ok := p.Step("build")
	require.True(t, ok)
	assert.Equal(t, []string{"go", "build"}, build.Command)
	assert.Equal(t, map[string]string{"GOOS": "linux"}, build.Environment)

	// Inputs are sorted and deduplicated, dependencies keep their order.
	checkSlice(t, "Inputs", []string{"a.go", "b.go"}, build.Inputs)
	checkSlice(t, "Dirs", []string{"assets"}, build.Dirs)
	checkSlice(t, "Dependencies", []string{"gen", "fmt"}, build.Dependencies)

	names := stepNames(p)
	require.Len(t, names, 3)
	assert.Equal(t, "build", names[2], "build must run after its dependencies")
}

func checkSlice(t *testing.T, name string, expected []string, actual []domain.InternedString) {
	t.Helper()
	got := make([]string, len(actual))
	for i, s := range actual {
		got[i] = s.String()
	}
	assert.Equal(t, expected, got, name)
}

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `
steps:
  only:
    cmd: ["true"]
`)

	p, err := newLoader(t, nil).Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, domain.HashSHA256, p.Settings.Hash)
	assert.Equal(t, domain.CodecJSON, p.Settings.Codec)
	assert.Equal(t, 0, p.Settings.Parallelism)
	assert.Equal(t, 256, p.Settings.ReadCache)
	assert.Equal(t, ".rebuild", filepath.Base(p.Settings.Root))
}

func TestLoad_MissingVersionWarns(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `
steps:
  only:
    cmd: ["true"]
`)

	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Warn(gomock.Any()).Times(1)

	loader := config.NewLoader(mockLogger)
	loader.Environment = map[string]string{}

	_, err := loader.Load(tmpDir)
	require.NoError(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `
version: "1"
root: state
hash: sha256
steps:
  only:
    cmd: ["true"]
`)

	absRoot := filepath.Join(t.TempDir(), "elsewhere")
	p, err := newLoader(t, map[string]string{
		"REBUILD_ROOT":        absRoot,
		"REBUILD_HASH":        "xxhash",
		"REBUILD_CODEC":       "yaml",
		"REBUILD_PARALLELISM": "8",
		"REBUILD_READ_CACHE":  "0",
	}).Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, absRoot, p.Settings.Root)
	assert.Equal(t, domain.HashXXHash, p.Settings.Hash)
	assert.Equal(t, domain.CodecYAML, p.Settings.Codec)
	assert.Equal(t, 8, p.Settings.Parallelism)
	assert.Equal(t, 0, p.Settings.ReadCache)
}

func TestLoad_Discovery(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `
version: "1"
steps:
  only:
    cmd: ["true"]
`)
	deep := filepath.Join(tmpDir, "a", "b")
	require.NoError(t, os.MkdirAll(deep, 0o750))

	p, err := newLoader(t, nil).Load(deep)
	require.NoError(t, err)

	absDir, err := filepath.Abs(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, absDir, p.Settings.Dir)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := newLoader(t, nil).Load(t.TempDir())
	require.ErrorIs(t, err, domain.ErrConfigNotFound)
}

func TestLoad_MissingDependency(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `
version: "1"
steps:
  build:
    cmd: ["make"]
    dependsOn: ["ghost"]
`)

	_, err := newLoader(t, nil).Load(tmpDir)
	require.ErrorIs(t, err, domain.ErrMissingDependency)

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	assert.Equal(t, "ghost", zErr.Metadata()["dependency"])
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{
			name:    "ReservedStepName",
			content: "steps:\n  all:\n    cmd: [\"true\"]\n",
			want:    domain.ErrReservedStepName,
		},
		{
			name:    "InvalidStepName",
			content: "steps:\n  \"a b\":\n    cmd: [\"true\"]\n",
			want:    domain.ErrInvalidStepName,
		},
		{
			name:    "EmptyCommand",
			content: "steps:\n  build:\n    input: [\"x\"]\n",
			want:    domain.ErrEmptyCommand,
		},
		{
			name:    "Cycle",
			content: "steps:\n  a:\n    cmd: [\"true\"]\n    dependsOn: [b]\n  b:\n    cmd: [\"true\"]\n    dependsOn: [a]\n",
			want:    domain.ErrCycleDetected,
		},
		{
			name:    "UnknownHash",
			content: "hash: md5\nsteps: {}\n",
			want:    domain.ErrUnknownHashAlgorithm,
		},
		{
			name:    "UnknownCodec",
			content: "codec: toml\nsteps: {}\n",
			want:    domain.ErrUnknownCodec,
		},
		{
			name:    "NegativeParallelism",
			content: "parallelism: -1\nsteps: {}\n",
			want:    domain.ErrInvalidSetting,
		},
		{
			name:    "UnsupportedVersion",
			content: "version: \"2\"\nsteps: {}\n",
			want:    domain.ErrUnsupportedConfigVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			writeConfig(t, tmpDir, tt.content)

			_, err := newLoader(t, nil).Load(tmpDir)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad_ParseError(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, "steps: [not, a, map")

	_, err := newLoader(t, nil).Load(tmpDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_BadEnvironmentOverride(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, "version: \"1\"\nsteps: {}\n")

	_, err := newLoader(t, map[string]string{"REBUILD_PARALLELISM": "many"}).Load(tmpDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse environment overrides")
}

func TestLoad_StepOrderIsStable(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `
version: "1"
steps:
  c: {cmd: ["true"]}
  a: {cmd: ["true"]}
  b: {cmd: ["true"]}
`)

	loader := newLoader(t, nil)
	first, err := loader.Load(tmpDir)
	require.NoError(t, err)
	second, err := loader.Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, stepNames(first))
	assert.True(t, slices.Equal(stepNames(first), stepNames(second)))
}

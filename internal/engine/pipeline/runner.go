package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"go.trai.ch/rebuild/internal/core/domain"
	"go.trai.ch/rebuild/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	// InputsEnv names the staging directory of a running step.
	InputsEnv = "REBUILD_INPUTS"
	// InputEnvPrefix prefixes the variables holding the path of each input, numbered
	// from zero in input order.
	InputEnvPrefix = "REBUILD_INPUT_"
)

var _ domain.Runner = (*commandRunner)(nil)

type stagedFile struct {
	file *domain.FixedFile[[]byte]
	rel  string
}

// commandRunner runs a step's command over its staged inputs and stores what the
// command printed as the step's output.
type commandRunner struct {
	step     domain.Step
	dir      string
	executor ports.Executor

	files    []stagedFile
	dirs     []*domain.FixedDir
	upstream []*domain.JobOutput[[]byte]
	output   *domain.JobOutput[[]byte]
}

func (r *commandRunner) Run(ctx context.Context, repo domain.Repository) error {
	scratch, err := os.MkdirTemp("", "rebuild-"+r.step.Name.String()+"-")
	if err != nil {
		return zerr.Wrap(err, "failed to create staging directory")
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	env := []string{InputsEnv + "=" + scratch}
	export := func(path string) {
		env = append(env, InputEnvPrefix+strconv.Itoa(len(env)-1)+"="+path)
	}

	for _, f := range r.files {
		data, err := f.file.LoadValue(repo)
		if err != nil {
			return err
		}
		dst := filepath.Join(scratch, "files", filepath.FromSlash(f.rel))
		if err := stage(dst, data); err != nil {
			return err
		}
		export(dst)
	}

	for _, d := range r.dirs {
		location, err := d.LoadValue(repo)
		if err != nil {
			return err
		}
		export(location)
	}

	for i, u := range r.upstream {
		data, err := u.LoadValue(repo)
		if err != nil {
			return err
		}
		dst := filepath.Join(scratch, "deps", strconv.Itoa(i))
		if err := stage(dst, data); err != nil {
			return err
		}
		export(dst)
	}

	stdout, err := r.executor.Execute(ctx, &r.step, r.dir, env)
	if err != nil {
		return err
	}
	if stdout == nil {
		stdout = []byte{}
	}
	return r.output.SaveValue(repo, stdout)
}

func stage(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create staging directory"), "path", path)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to stage input"), "path", path)
	}
	return nil
}

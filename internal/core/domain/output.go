package domain

import (
	"path/filepath"

	"go.trai.ch/zerr"
)

var _ Value[int] = (*JobOutput[int])(nil)

// JobOutput is the artifact a job produces. It lives in the repository cache under
// its own identity hash, so structurally identical jobs share one cache entry.
type JobOutput[T any] struct {
	nodeBase

	job  *Job
	name string
}

// Job returns the producing job.
func (o *JobOutput[T]) Job() *Job {
	return o.job
}

// Name returns the output name, empty for the default output.
func (o *JobOutput[T]) Name() string {
	return o.name
}

// Parents returns the producing job.
func (o *JobOutput[T]) Parents() []Node {
	return []Node{o.job}
}

// ParentArtifacts returns the inputs of the producing job.
func (o *JobOutput[T]) ParentArtifacts() []Artifact {
	return o.job.Inputs()
}

// ComputeIdentityHash hashes the variant and the producing job's identity. Named
// outputs also hash their name.
func (o *JobOutput[T]) ComputeIdentityHash() (Hash, error) {
	d := o.graph.digester
	jobHash, err := o.job.IdentityHash()
	if err != nil {
		return "", err
	}
	parts := [][]byte{[]byte(HashDefinition(d, jobOutputDefinition)), []byte(jobHash)}
	if o.name != DefaultOutput {
		parts = append(parts, []byte(o.name))
	}
	return d.Sum(parts...), nil
}

// Path returns the cache location of the value.
func (o *JobOutput[T]) Path(repo Repository) (string, error) {
	h, err := o.IdentityHash()
	if err != nil {
		return "", err
	}
	return filepath.Join(repo.CacheDir(), h.String()), nil
}

// IsDone reports whether the value is in the cache.
func (o *JobOutput[T]) IsDone(repo Repository) (bool, error) {
	path, err := o.Path(repo)
	if err != nil {
		return false, err
	}
	return repo.Exists(path)
}

// LoadValue reads the value from the cache.
func (o *JobOutput[T]) LoadValue(repo Repository) (T, error) {
	var v T
	path, err := o.Path(repo)
	if err != nil {
		return v, err
	}
	done, err := repo.Exists(path)
	if err != nil {
		return v, err
	}
	if !done {
		err := zerr.With(zerr.Wrap(ErrValueNotDone, ""), "node", o.String())
		return v, zerr.With(err, "path", path)
	}
	if err := repo.ReadValue(path, &v); err != nil {
		return v, err
	}
	return v, nil
}

// SaveValue writes the value into the cache.
func (o *JobOutput[T]) SaveValue(repo Repository, v T) error {
	path, err := o.Path(repo)
	if err != nil {
		return err
	}
	return repo.WriteValue(path, v)
}

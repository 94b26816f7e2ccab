package domain

import (
	"os"

	"go.trai.ch/zerr"
)

var (
	_ Value[string]      = (*FixedDir)(nil)
	_ Value[[]byte]      = (*FixedFile[[]byte])(nil)
	_ FileFormat[[]byte] = BytesFormat{}
)

// FixedDir is an artifact naming a location that exists outside the engine. Its
// identity depends on the location only, never on what is there, and its value is
// the location itself.
type FixedDir struct {
	nodeBase

	location string
}

// NewFixedDir creates a fixed directory artifact.
func NewFixedDir(g *Graph, location string) *FixedDir {
	f := &FixedDir{location: location}
	g.add(f, "dir "+location, f.ComputeIdentityHash)
	return f
}

// Location returns the fixed location.
func (f *FixedDir) Location() string {
	return f.location
}

// Parents returns nothing.
func (f *FixedDir) Parents() []Node {
	return nil
}

// ParentArtifacts returns nothing.
func (f *FixedDir) ParentArtifacts() []Artifact {
	return nil
}

// ComputeIdentityHash hashes the variant and the location string.
func (f *FixedDir) ComputeIdentityHash() (Hash, error) {
	d := f.graph.digester
	return d.Sum([]byte(HashDefinition(d, fixedDirDefinition)), []byte(f.location)), nil
}

// IsDone reports whether the location exists.
func (f *FixedDir) IsDone(repo Repository) (bool, error) {
	return repo.Exists(f.location)
}

// LoadValue returns the location.
func (f *FixedDir) LoadValue(Repository) (string, error) {
	return f.location, nil
}

// SaveValue always fails: the location is not produced by the engine.
func (f *FixedDir) SaveValue(Repository, string) error {
	return zerr.With(zerr.Wrap(ErrUnsupportedPersistence, ""), "node", f.String())
}

// FileFormat reads the value of a fixed file.
type FileFormat[T any] interface {
	// Definition identifies the format; it is part of the file's identity.
	Definition() Definition
	// Read decodes the file at path.
	Read(repo Repository, path string) (T, error)
}

// BytesFormat reads a fixed file as raw bytes.
type BytesFormat struct{}

// Definition implements FileFormat.
func (BytesFormat) Definition() Definition {
	return Definition{Kind: "format.bytes", Version: "1"}
}

// Read implements FileFormat.
func (BytesFormat) Read(_ Repository, path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a declared input
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read fixed file"), "path", path)
	}
	return data, nil
}

// DecodedFormat reads a fixed file holding a value serialized with the repository codec.
type DecodedFormat[T any] struct{}

// Definition implements FileFormat.
func (DecodedFormat[T]) Definition() Definition {
	return Definition{Kind: "format.decoded", Version: "1"}
}

// Read implements FileFormat.
func (DecodedFormat[T]) Read(repo Repository, path string) (T, error) {
	var v T
	err := repo.ReadValue(path, &v)
	return v, err
}

// FixedFile is an artifact for a file that exists outside the engine. Its identity
// depends on the file's content at construction time, not on its location.
type FixedFile[T any] struct {
	nodeBase

	location string
	format   FileFormat[T]
}

// NewFixedFile creates a fixed file artifact and hashes the file immediately, so a
// missing or unreadable file is reported here.
func NewFixedFile[T any](g *Graph, location string, format FileFormat[T]) (*FixedFile[T], error) {
	h, err := fixedFileHash(g.digester, location, format)
	if err != nil {
		return nil, err
	}

	f := &FixedFile[T]{location: location, format: format}
	g.add(f, "file "+location, f.ComputeIdentityHash)
	f.storeHash(h)
	return f, nil
}

// Location returns the file path.
func (f *FixedFile[T]) Location() string {
	return f.location
}

// Parents returns nothing.
func (f *FixedFile[T]) Parents() []Node {
	return nil
}

// ParentArtifacts returns nothing.
func (f *FixedFile[T]) ParentArtifacts() []Artifact {
	return nil
}

// ComputeIdentityHash re-reads the file, so a file edited after construction shows
// up as drift.
func (f *FixedFile[T]) ComputeIdentityHash() (Hash, error) {
	return fixedFileHash(f.graph.digester, f.location, f.format)
}

func fixedFileHash[T any](d Digester, location string, format FileFormat[T]) (Hash, error) {
	content, err := d.SumFile(location)
	if err != nil {
		return "", err
	}
	var formatHash Hash
	if format != nil {
		formatHash = HashDefinition(d, format.Definition())
	}
	return d.Sum(
		[]byte(HashDefinition(d, fixedFileDefinition)),
		[]byte(formatHash),
		[]byte(content),
	), nil
}

// IsDone reports whether the file exists.
func (f *FixedFile[T]) IsDone(repo Repository) (bool, error) {
	return repo.Exists(f.location)
}

// LoadValue reads the file through its format.
func (f *FixedFile[T]) LoadValue(repo Repository) (T, error) {
	if f.format == nil {
		var zero T
		return zero, zerr.With(zerr.Wrap(ErrUnimplementedComputation, ""), "node", f.String())
	}
	return f.format.Read(repo, f.location)
}

// SaveValue always fails: rewriting the file would change the identity the graph
// was built against.
func (f *FixedFile[T]) SaveValue(Repository, T) error {
	return zerr.With(zerr.Wrap(ErrUnsupportedPersistence, ""), "node", f.String())
}

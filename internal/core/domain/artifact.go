package domain

// Repository is the build repository: it owns the cache directory job outputs are
// stored in, keyed by identity hash, and the codec values are persisted with.
type Repository interface {
	// CacheDir returns the directory job outputs live in.
	CacheDir() string
	// Exists reports whether path exists.
	Exists(path string) (bool, error)
	// ReadValue decodes the value stored at path into dst.
	ReadValue(path string, dst any) error
	// WriteValue encodes v and stores it at path.
	WriteValue(path string, v any) error
}

// Artifact is a node standing for a value that may or may not exist yet.
type Artifact interface {
	Node
	// ParentArtifacts returns the artifacts this artifact is computed from.
	ParentArtifacts() []Artifact
	// IsDone reports whether the value is available without running anything.
	IsDone(repo Repository) (bool, error)
}

// Value is an artifact whose value has type T.
type Value[T any] interface {
	Artifact
	// LoadValue returns the value. It fails when the artifact is not done.
	LoadValue(repo Repository) (T, error)
	// SaveValue persists v, for the variants that allow it.
	SaveValue(repo Repository, v T) error
}

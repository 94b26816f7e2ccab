// Package domain contains the core model of the engine: graph nodes, artifacts, jobs
// and the identity hashes that decide whether cached results can be reused.
package domain

import (
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// Hash is a content-derived digest rendered as lowercase hex.
type Hash string

// String returns the hex form of the hash.
func (h Hash) String() string {
	return string(h)
}

// IsZero reports whether the hash is empty.
func (h Hash) IsZero() bool {
	return h == ""
}

// Short returns the first 12 characters of the hash, for display.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// HashAlgorithm names a digest implementation.
type HashAlgorithm string

const (
	// HashSHA256 is the default, collision-resistant algorithm.
	HashSHA256 HashAlgorithm = "sha256"
	// HashXXHash is a fast 64-bit non-cryptographic algorithm.
	HashXXHash HashAlgorithm = "xxhash"
)

// ParseHashAlgorithm validates an algorithm name. An empty name selects HashSHA256.
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch HashAlgorithm(strings.ToLower(s)) {
	case "", HashSHA256:
		return HashSHA256, nil
	case HashXXHash:
		return HashXXHash, nil
	default:
		return "", zerr.With(zerr.Wrap(ErrUnknownHashAlgorithm, ""), "algorithm", s)
	}
}

// Digester provides the content-hash primitives identities are built from.
type Digester interface {
	// Algorithm returns the algorithm this digester implements.
	Algorithm() HashAlgorithm

	// Sum hashes an ordered tuple of byte strings. Every part is length-prefixed,
	// so ("ab", "c") and ("a", "bc") hash differently.
	Sum(parts ...[]byte) Hash

	// SumFile hashes the bytes of the file at path.
	SumFile(path string) (Hash, error)
}

// Definition identifies the code behind a node. Kind names the computation, Version
// must change whenever the implementation changes its output, and Params carry
// literal configuration baked into the computation.
type Definition struct {
	Kind    string
	Version string
	Params  []string
}

// String returns kind@version.
func (d Definition) String() string {
	if d.Version == "" {
		return d.Kind
	}
	return d.Kind + "@" + d.Version
}

// Equal reports whether two definitions are identical.
func (d Definition) Equal(other Definition) bool {
	return d.Kind == other.Kind && d.Version == other.Version && slices.Equal(d.Params, other.Params)
}

func (d Definition) parts() [][]byte {
	parts := make([][]byte, 0, len(d.Params)+3)
	parts = append(parts, []byte(d.Kind), []byte(d.Version), countPart(len(d.Params)))
	for _, p := range d.Params {
		parts = append(parts, []byte(p))
	}
	return parts
}

// HashDefinition returns the hash of a definition under the given digester.
func HashDefinition(d Digester, def Definition) Hash {
	return d.Sum(def.parts()...)
}

func countPart(n int) []byte {
	return []byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
}

func boolPart(b bool) []byte {
	if b {
		return []byte{1}
	}
	return []byte{0}
}

// Variant definitions. Bump a version when the identity recipe of that variant changes.
var (
	thunkDefinition     = Definition{Kind: "artifact.thunk", Version: "1"}
	fixedDirDefinition  = Definition{Kind: "artifact.fixed-dir", Version: "1"}
	fixedFileDefinition = Definition{Kind: "artifact.fixed-file", Version: "1"}
	jobOutputDefinition = Definition{Kind: "artifact.job-output", Version: "1"}
	jobDefinition       = Definition{Kind: "job", Version: "1"}
)

package fs

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/rebuild/internal/core/domain"
	"go.trai.ch/rebuild/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Hasher = (*Hasher)(nil)

// Hasher hands out digesters for the supported algorithms.
type Hasher struct {
	walker *Walker
}

// NewHasher creates a new Hasher.
func NewHasher(walker *Walker) *Hasher {
	return &Hasher{walker: walker}
}

// Digester returns the digester for alg.
func (h *Hasher) Digester(alg domain.HashAlgorithm) (domain.Digester, error) {
	switch alg {
	case domain.HashSHA256:
		return &Digester{alg: alg, newHash: sha256.New, walker: h.walker}, nil
	case domain.HashXXHash:
		return &Digester{alg: alg, newHash: func() hash.Hash { return xxhash.New() }, walker: h.walker}, nil
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrUnknownHashAlgorithm, ""), "algorithm", string(alg))
	}
}

var _ domain.Digester = (*Digester)(nil)

// Digester implements domain.Digester on a hash.Hash constructor.
type Digester struct {
	alg     domain.HashAlgorithm
	newHash func() hash.Hash
	walker  *Walker
}

// Algorithm returns the algorithm name.
func (d *Digester) Algorithm() domain.HashAlgorithm {
	return d.alg
}

// Sum hashes the parts, each prefixed with its length as a big-endian uint64.
func (d *Digester) Sum(parts ...[]byte) domain.Hash {
	hasher := d.newHash()
	var size [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		_, _ = hasher.Write(size[:])
		_, _ = hasher.Write(p)
	}
	return domain.Hash(hex.EncodeToString(hasher.Sum(nil)))
}

// SumFile hashes the content of a file. A directory is hashed as the sorted list of
// its files, each contributing its path relative to the directory and its content hash.
func (d *Digester) SumFile(path string) (domain.Hash, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to stat path"), "path", path)
	}
	if !info.IsDir() {
		return d.hashFile(path)
	}

	var parts [][]byte
	for filePath := range d.walker.WalkFiles(path, nil) {
		rel, err := filepath.Rel(path, filePath)
		if err != nil {
			return "", zerr.With(zerr.Wrap(err, "failed to relativize path"), "path", filePath)
		}
		content, err := d.hashFile(filePath)
		if err != nil {
			return "", err
		}
		parts = append(parts, []byte(filepath.ToSlash(rel)), []byte(content))
	}
	return d.Sum(parts...), nil
}

func (d *Digester) hashFile(path string) (domain.Hash, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := d.newHash()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}
	return domain.Hash(hex.EncodeToString(hasher.Sum(nil))), nil
}

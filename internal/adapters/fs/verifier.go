package fs

import (
	"errors"
	iofs "io/fs"
	"os"

	"go.trai.ch/zerr"
)

// Verifier checks for the existence of paths.
type Verifier struct{}

// NewVerifier creates a new Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Exists reports whether path exists. A missing path is not an error.
func (v *Verifier) Exists(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return false, nil
		}
		return false, zerr.With(zerr.Wrap(err, "failed to stat path"), "path", path)
	}
	return true, nil
}

// ExistsAll reports whether every path exists.
func (v *Verifier) ExistsAll(paths ...string) (bool, error) {
	for _, path := range paths {
		ok, err := v.Exists(path)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

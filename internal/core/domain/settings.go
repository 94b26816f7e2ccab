package domain

import (
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"
)

// Codec names the serialization used for values in the build repository.
type Codec string

const (
	// CodecJSON stores values as JSON.
	CodecJSON Codec = "json"
	// CodecYAML stores values as YAML.
	CodecYAML Codec = "yaml"
)

// ParseCodec validates a codec name. An empty name selects CodecJSON.
func ParseCodec(s string) (Codec, error) {
	switch Codec(strings.ToLower(s)) {
	case "", CodecJSON:
		return CodecJSON, nil
	case CodecYAML:
		return CodecYAML, nil
	default:
		return "", zerr.With(zerr.Wrap(ErrUnknownCodec, ""), "codec", s)
	}
}

// Settings configure the build repository and the scheduler.
type Settings struct {
	// Dir is the directory relative input paths are resolved against.
	Dir string
	// Root is the repository root directory.
	Root  string
	Hash  HashAlgorithm
	Codec Codec
	// Parallelism bounds concurrently running jobs. Zero means one per CPU.
	Parallelism int
	// ReadCache is the number of decoded values kept in memory. Zero disables it.
	ReadCache int
}

// CacheDir is where job outputs are stored.
func (s Settings) CacheDir() string {
	return filepath.Join(s.Root, "cache")
}

// StatePath is where build records are stored.
func (s Settings) StatePath() string {
	return filepath.Join(s.Root, "state.json")
}

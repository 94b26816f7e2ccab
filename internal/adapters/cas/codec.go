package cas

import (
	"bytes"
	"encoding/base64"
	"encoding/json"

	"go.trai.ch/rebuild/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Codec serializes values stored in the repository.
type Codec interface {
	Name() domain.Codec
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, dst any) error
}

// NewCodec returns the codec called name.
func NewCodec(name domain.Codec) (Codec, error) {
	switch name {
	case domain.CodecJSON:
		return jsonCodec{}, nil
	case domain.CodecYAML:
		return yamlCodec{}, nil
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrUnknownCodec, ""), "codec", string(name))
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() domain.Codec { return domain.CodecJSON }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to marshal value")
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(dst); err != nil {
		return zerr.Wrap(err, "failed to unmarshal value")
	}
	return nil
}

type yamlCodec struct{}

func (yamlCodec) Name() domain.Codec { return domain.CodecYAML }

// Marshal writes byte slices as a single !!binary scalar. yaml.v3 would otherwise
// emit them as a sequence of integers.
func (yamlCodec) Marshal(v any) ([]byte, error) {
	if raw, ok := v.([]byte); ok {
		v = &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!binary",
			Value: base64.StdEncoding.EncodeToString(raw),
		}
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to marshal value")
	}
	return data, nil
}

func (yamlCodec) Unmarshal(data []byte, dst any) error {
	if raw, ok := dst.(*[]byte); ok {
		var decoded string
		if err := yaml.Unmarshal(data, &decoded); err != nil {
			return zerr.Wrap(err, "failed to unmarshal value")
		}
		*raw = []byte(decoded)
		return nil
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return zerr.Wrap(err, "failed to unmarshal value")
	}
	return nil
}

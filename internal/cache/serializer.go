package cache

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/mpetka/larder/internal/types"
)

// JSONSerializer encodes values as JSON. This is the default wire format
// and is safe for data of any provenance.
type JSONSerializer struct{}

// NewJSONSerializer creates a new JSON serializer.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

func (s *JSONSerializer) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSerialization, err)
	}
	return data, nil
}

func (s *JSONSerializer) Unmarshal(data []byte, dest any) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", types.ErrSerialization, err)
	}
	return nil
}

// GobSerializer encodes values with encoding/gob. It is denser and faster
// than JSON for rich Go types but must only be fed trusted data.
type GobSerializer struct{}

// NewGobSerializer creates a new gob serializer.
func NewGobSerializer() *GobSerializer {
	return &GobSerializer{}
}

func (s *GobSerializer) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSerialization, err)
	}
	return buf.Bytes(), nil
}

func (s *GobSerializer) Unmarshal(data []byte, dest any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(dest); err != nil {
		return fmt.Errorf("%w: %v", types.ErrSerialization, err)
	}
	return nil
}

// CompressedSerializer wraps another serializer and gzips its output.
// Worth it for large values on a remote backend; a waste for small ones.
type CompressedSerializer struct {
	inner types.Serializer
}

// NewCompressedSerializer wraps the given serializer with gzip.
func NewCompressedSerializer(inner types.Serializer) *CompressedSerializer {
	return &CompressedSerializer{inner: inner}
}

func (s *CompressedSerializer) Marshal(v any) ([]byte, error) {
	data, err := s.inner.Marshal(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSerialization, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSerialization, err)
	}
	return buf.Bytes(), nil
}

func (s *CompressedSerializer) Unmarshal(data []byte, dest any) error {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrSerialization, err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrSerialization, err)
	}
	if err := zr.Close(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrSerialization, err)
	}
	return s.inner.Unmarshal(raw, dest)
}

// NewSerializer builds the serializer a config asks for.
func NewSerializer(kind types.Serialization, compression bool) types.Serializer {
	var s types.Serializer
	switch kind {
	case types.SerializationBinary:
		s = NewGobSerializer()
	default:
		s = NewJSONSerializer()
	}
	if compression {
		s = NewCompressedSerializer(s)
	}
	return s
}

var (
	_ types.Serializer = (*JSONSerializer)(nil)
	_ types.Serializer = (*GobSerializer)(nil)
	_ types.Serializer = (*CompressedSerializer)(nil)
)

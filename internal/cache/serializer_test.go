package cache

import (
	"errors"
	"reflect"
	"testing"

	"github.com/mpetka/larder/internal/types"
)

type payload struct {
	Name  string
	Count int
	Tags  []string
}

func TestJSONSerializer(t *testing.T) {
	s := NewJSONSerializer()

	t.Run("round trip", func(t *testing.T) {
		in := payload{Name: "widget", Count: 3, Tags: []string{"a", "b"}}
		data, err := s.Marshal(in)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}

		var out payload
		if err := s.Unmarshal(data, &out); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if out.Name != in.Name || out.Count != in.Count || len(out.Tags) != 2 {
			t.Errorf("Unmarshal() = %+v, want %+v", out, in)
		}
	})

	t.Run("unmarshal failure wraps sentinel", func(t *testing.T) {
		var out payload
		err := s.Unmarshal([]byte("{not json"), &out)
		if !errors.Is(err, types.ErrSerialization) {
			t.Errorf("Unmarshal() error = %v, want ErrSerialization", err)
		}
	})
}

func TestGobSerializer(t *testing.T) {
	s := NewGobSerializer()

	in := payload{Name: "widget", Count: 3, Tags: []string{"a", "b"}}
	data, err := s.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var out payload
	if err := s.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("Unmarshal() = %+v, want %+v", out, in)
	}
}

func TestCompressedSerializer(t *testing.T) {
	s := NewCompressedSerializer(NewJSONSerializer())

	t.Run("round trip", func(t *testing.T) {
		in := payload{Name: "widget", Count: 3, Tags: []string{"x", "y", "z"}}
		data, err := s.Marshal(in)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}

		var out payload
		if err := s.Unmarshal(data, &out); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if out.Name != in.Name {
			t.Errorf("Unmarshal() = %+v, want %+v", out, in)
		}
	})

	t.Run("garbage input fails", func(t *testing.T) {
		var out payload
		if err := s.Unmarshal([]byte("not gzip"), &out); !errors.Is(err, types.ErrSerialization) {
			t.Errorf("Unmarshal() error = %v, want ErrSerialization", err)
		}
	})
}

func TestNewSerializer(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		if _, ok := NewSerializer(types.SerializationJSON, false).(*JSONSerializer); !ok {
			t.Error("NewSerializer(json, false) did not return a JSONSerializer")
		}
	})
	t.Run("binary", func(t *testing.T) {
		if _, ok := NewSerializer(types.SerializationBinary, false).(*GobSerializer); !ok {
			t.Error("NewSerializer(binary, false) did not return a GobSerializer")
		}
	})
	t.Run("compressed", func(t *testing.T) {
		if _, ok := NewSerializer(types.SerializationJSON, true).(*CompressedSerializer); !ok {
			t.Error("NewSerializer(json, true) did not return a CompressedSerializer")
		}
	})
}

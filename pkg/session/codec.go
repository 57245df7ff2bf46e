package session

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"

	"github.com/aretw0/kvsession/pkg/domain"
)

// Codec converts session records to and from backend values.
type Codec interface {
	Name() string
	Encode(data *domain.SessionData) ([]byte, error)
	Decode(value []byte) (*domain.SessionData, error)
}

// GobCodec preserves attribute types across a round trip.
// Custom attribute types must be registered with gob.Register.
type GobCodec struct{}

func (GobCodec) Name() string { return "gob" }

func (GobCodec) Encode(data *domain.SessionData) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GobCodec) Decode(value []byte) (*domain.SessionData, error) {
	var data domain.SessionData
	if err := gob.NewDecoder(bytes.NewReader(value)).Decode(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// JSONCodec stores readable values that other runtimes can consume.
// Numeric attributes come back as float64.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Encode(data *domain.SessionData) ([]byte, error) {
	return json.Marshal(data)
}

func (JSONCodec) Decode(value []byte) (*domain.SessionData, error) {
	var data domain.SessionData
	if err := json.Unmarshal(value, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// CodecByName resolves "gob" (the default when empty) or "json".
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "gob":
		return GobCodec{}, nil
	case "json":
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown codec %q", domain.ErrConfiguration, name)
	}
}

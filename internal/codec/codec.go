// Package codec is the versioned binary encoding of per-tick vehicle and
// traffic light maps.
//
// A blob is a 6-byte header followed by the payload:
//
//	"LSIM" | version (1 byte) | compression (1 byte) | payload
//
// The payload is protobuf wire format with fixed field numbers. Readers skip
// fields they do not know, so later versions can add fields without breaking
// existing traces.
package codec

import (
	"errors"
	"fmt"

	"github.com/azurexth/LimSim/pkg/core"
)

// Magic opens every blob.
const Magic = "LSIM"

// Version is the current format version.
const Version byte = 1

const headerLen = len(Magic) + 2

var (
	ErrBadMagic           = errors.New("codec: bad magic")
	ErrUnsupportedVersion = errors.New("codec: unsupported version")
	ErrUnknownCompression = errors.New("codec: unknown compression")
)

// Codec encodes tick maps with a fixed compression. Decoding picks the
// compression from each blob's header, so any Codec reads any blob.
type Codec struct {
	compression Compression
	compressor  Compressor
}

// New returns a codec writing blobs with the given compression.
func New(c Compression) (*Codec, error) {
	comp, err := CompressorFor(c)
	if err != nil {
		return nil, err
	}
	return &Codec{compression: c, compressor: comp}, nil
}

// MustNew is New for compile-time constant compressions.
func MustNew(c Compression) *Codec {
	codec, err := New(c)
	if err != nil {
		panic(err)
	}
	return codec
}

// Compression returns the compression used for writing.
func (c *Codec) Compression() Compression {
	return c.compression
}

// EncodeVehicles encodes a running vehicle map.
func (c *Codec) EncodeVehicles(vehicles map[int64]*core.Vehicle) ([]byte, error) {
	return c.seal(appendVehicleFrame(nil, vehicles))
}

// EncodeLights encodes a traffic light map.
func (c *Codec) EncodeLights(lights map[int64]*core.TrafficLight) ([]byte, error) {
	return c.seal(appendLightFrame(nil, lights))
}

// DecodeVehicles decodes a blob written by EncodeVehicles.
func (c *Codec) DecodeVehicles(blob []byte) (map[int64]*core.Vehicle, error) {
	payload, err := open(blob)
	if err != nil {
		return nil, err
	}
	vehicles, err := consumeVehicleFrame(payload)
	if err != nil {
		return nil, fmt.Errorf("decode vehicles: %w", err)
	}
	return vehicles, nil
}

// DecodeLights decodes a blob written by EncodeLights.
func (c *Codec) DecodeLights(blob []byte) (map[int64]*core.TrafficLight, error) {
	payload, err := open(blob)
	if err != nil {
		return nil, err
	}
	lights, err := consumeLightFrame(payload)
	if err != nil {
		return nil, fmt.Errorf("decode lights: %w", err)
	}
	return lights, nil
}

func (c *Codec) seal(payload []byte) ([]byte, error) {
	compressed, err := c.compressor.Compress(payload)
	if err != nil {
		return nil, fmt.Errorf("compress %s: %w", c.compressor.Name(), err)
	}
	blob := make([]byte, 0, headerLen+len(compressed))
	blob = append(blob, Magic...)
	blob = append(blob, Version, byte(c.compression))
	return append(blob, compressed...), nil
}

func open(blob []byte) ([]byte, error) {
	if len(blob) < headerLen || string(blob[:len(Magic)]) != Magic {
		return nil, ErrBadMagic
	}
	if v := blob[len(Magic)]; v != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	comp, err := CompressorFor(Compression(blob[len(Magic)+1]))
	if err != nil {
		return nil, err
	}
	return comp.Decompress(blob[headerLen:])
}

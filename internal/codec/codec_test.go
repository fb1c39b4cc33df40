package codec

import (
	"math"
	"testing"

	"github.com/azurexth/LimSim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func sampleVehicles() map[int64]*core.Vehicle {
	a := &core.Vehicle{
		ID: 5, ArrivalTime: 1.49, From: "0", To: "1", Direction: 1,
		Length: 5, Width: 2, DesiredSpeed: 10,
		X: 12.5, Y: -1.75, Scf: 12.5, Tcf: -1.75, Heading: 0.1,
		Velocity: 7.25, Acceleration: -0.5, Yaw: math.Copysign(0, -1), Road: "r01",
		DecisionArea: 3, Score: 88.12,
	}
	a.AppendHistory()
	a.X = 14
	a.AppendHistory()
	a.SetPlan(core.Trajectory{
		X: []float64{15, 16}, Y: []float64{-1.75, -1.75}, Heading: []float64{0, 0},
		Velocity: []float64{7, 7}, Acceleration: []float64{0, 0}, Yaw: []float64{0, 0},
		RoadID: []string{"r01", ""},
	})

	b := &core.Vehicle{ID: 9, From: "1", To: "0", Direction: -1, Length: 5, Width: 2, X: math.Pi}
	return map[int64]*core.Vehicle{5: a, 9: b}
}

func sampleLights() map[int64]*core.TrafficLight {
	return map[int64]*core.TrafficLight{
		0: {
			ID: 0, Road: "r01", Direction: 1, Offset: 2.5,
			Program: []core.LightPhase{{State: core.LightGreen, Duration: 20}, {State: core.LightRed, Duration: 17}},
			Phase:   1, State: core.LightRed, Remaining: 3.25,
		},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, comp := range []Compression{CompressionNone, CompressionSnappy, CompressionZstd} {
		t.Run(comp.String(), func(t *testing.T) {
			c := MustNew(comp)

			vb, err := c.EncodeVehicles(sampleVehicles())
			require.NoError(t, err)
			lb, err := c.EncodeLights(sampleLights())
			require.NoError(t, err)

			vehicles, err := c.DecodeVehicles(vb)
			require.NoError(t, err)
			assert.Equal(t, sampleVehicles(), vehicles)
			assert.True(t, math.Signbit(vehicles[5].Yaw))

			lights, err := c.DecodeLights(lb)
			require.NoError(t, err)
			assert.Equal(t, sampleLights(), lights)
		})
	}
}

func TestAnyCodecReadsAnyCompression(t *testing.T) {
	blob, err := MustNew(CompressionZstd).EncodeVehicles(sampleVehicles())
	require.NoError(t, err)

	vehicles, err := MustNew(CompressionNone).DecodeVehicles(blob)
	require.NoError(t, err)
	assert.Equal(t, sampleVehicles(), vehicles)
}

func TestEmptyMaps(t *testing.T) {
	c := MustNew(CompressionSnappy)
	vb, err := c.EncodeVehicles(nil)
	require.NoError(t, err)
	vehicles, err := c.DecodeVehicles(vb)
	require.NoError(t, err)
	assert.NotNil(t, vehicles)
	assert.Empty(t, vehicles)
}

func TestEncodingIsDeterministic(t *testing.T) {
	c := MustNew(CompressionNone)
	first, err := c.EncodeVehicles(sampleVehicles())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := c.EncodeVehicles(sampleVehicles())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	vehicle := appendVehicle(nil, &core.Vehicle{ID: 3, X: 1.5})
	vehicle = appendString(vehicle, 99, "future")
	vehicle = appendVarint(vehicle, 100, 7)

	payload := appendMessage(nil, fieldFrameVehicle, vehicle)
	payload = protowire.AppendTag(payload, 50, protowire.Fixed64Type)
	payload = protowire.AppendFixed64(payload, 1)

	blob := append([]byte(Magic), Version, byte(CompressionNone))
	blob = append(blob, payload...)

	vehicles, err := MustNew(CompressionNone).DecodeVehicles(blob)
	require.NoError(t, err)
	require.Contains(t, vehicles, int64(3))
	assert.Equal(t, 1.5, vehicles[3].X)
}

func TestHeaderErrors(t *testing.T) {
	c := MustNew(CompressionNone)

	_, err := c.DecodeVehicles([]byte("nope"))
	assert.ErrorIs(t, err, ErrBadMagic)

	_, err = c.DecodeVehicles([]byte("XSIM\x01\x00"))
	assert.ErrorIs(t, err, ErrBadMagic)

	_, err = c.DecodeLights([]byte("LSIM\x02\x00"))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = c.DecodeLights([]byte("LSIM\x01\x07"))
	assert.ErrorIs(t, err, ErrUnknownCompression)
}

func TestTruncatedPayload(t *testing.T) {
	c := MustNew(CompressionNone)
	blob, err := c.EncodeVehicles(sampleVehicles())
	require.NoError(t, err)

	_, err = c.DecodeVehicles(blob[:len(blob)-3])
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		name string
		want Compression
	}{
		{"", CompressionNone},
		{"none", CompressionNone},
		{"snappy", CompressionSnappy},
		{"zstd", CompressionZstd},
	}
	for _, tt := range tests {
		got, err := ParseCompression(tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseCompression("lz4")
	assert.ErrorIs(t, err, ErrUnknownCompression)
}

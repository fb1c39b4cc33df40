package demand

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/azurexth/LimSim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oneFlow(rate float64) []core.DemandRecord {
	return []core.DemandRecord{{From: "0", To: "1", Direction: 1, Rate: rate}}
}

func TestParseTable(t *testing.T) {
	input := "from,to,direction,rate\n" +
		"0,1,1,3600\n" +
		"1,0,-1,900\n" +
		"2,3,0,100\n" + // bad direction
		"4,5,1,abc\n" + // bad rate
		"6,7\n" + // too few fields
		"\n" +
		"8,9,1,100\n" // after end-of-table

	records, rowErrs := ParseTable(strings.NewReader(input))

	require.Len(t, records, 2)
	assert.Equal(t, core.DemandRecord{From: "0", To: "1", Direction: 1, Rate: 3600}, records[0])
	assert.Equal(t, core.DemandRecord{From: "1", To: "0", Direction: -1, Rate: 900}, records[1])

	require.Len(t, rowErrs, 3)
	for _, err := range rowErrs {
		assert.True(t, errors.Is(err, ErrMalformedRow))
	}
	assert.Contains(t, rowErrs[0].Error(), "line 4")
}

func TestParseTable_NoTrailingNewline(t *testing.T) {
	records, rowErrs := ParseTable(strings.NewReader("header\n0,1,1,60"))
	require.Empty(t, rowErrs)
	require.Len(t, records, 1)
	assert.Equal(t, 60.0, records[0].Rate)
}

func TestParseTable_CRLF(t *testing.T) {
	records, rowErrs := ParseTable(strings.NewReader("header\r\n0,1,-1,60\r\n\r\n"))
	require.Empty(t, rowErrs)
	require.Len(t, records, 1)
	assert.Equal(t, -1, records[0].Direction)
}

func TestParseTable_CRLFBlankLineEndsTable(t *testing.T) {
	records, rowErrs := ParseTable(strings.NewReader("hdr\r\n0,1,1,60\r\n\r\n8,9,1,100\r\n"))
	assert.Empty(t, rowErrs)
	require.Len(t, records, 1)
	assert.Equal(t, core.DemandRecord{From: "0", To: "1", Direction: 1, Rate: 60}, records[0])
}

func TestParseTable_HeaderOnly(t *testing.T) {
	records, rowErrs := ParseTable(strings.NewReader("from,to,direction,rate\n"))
	assert.Empty(t, records)
	assert.Empty(t, rowErrs)
}

func TestGenerate_Deterministic(t *testing.T) {
	opts := Options{Window: 30, Seed: 42}

	a := Generate(oneFlow(3600), opts)
	b := Generate(oneFlow(3600), opts)

	require.Equal(t, len(a), len(b))
	for id, v := range a {
		require.Contains(t, b, id)
		assert.Equal(t, v.ArrivalTime, b[id].ArrivalTime)
	}
}

func TestGenerate_KnownArrivals(t *testing.T) {
	flow := Generate(oneFlow(3600), Options{Window: 30, Seed: 42})

	require.Len(t, flow, 33)
	assert.InDelta(t, 0.99, flow[1].ArrivalTime, 1e-9)
	assert.InDelta(t, 1.49, flow[2].ArrivalTime, 1e-9)
	assert.InDelta(t, 4.62, flow[3].ArrivalTime, 1e-9)

	// the vehicle that crosses the window is still generated
	assert.GreaterOrEqual(t, flow[33].ArrivalTime, 30.0)
	assert.Less(t, flow[32].ArrivalTime, 30.0)
}

func TestGenerate_SeedChangesArrivals(t *testing.T) {
	a := Generate(oneFlow(3600), Options{Window: 30, Seed: 1})
	b := Generate(oneFlow(3600), Options{Window: 30, Seed: 2})
	assert.NotEqual(t, a[1].ArrivalTime, b[1].ArrivalTime)
}

func TestGenerate_Defaults(t *testing.T) {
	flow := Generate(oneFlow(600), Options{Window: 60, Seed: 3, DesiredSpeed: 12})
	require.NotEmpty(t, flow)

	var prev float64
	for i, id := range flow.IDs() {
		v := flow[id]
		assert.Equal(t, int64(i+1), id)
		assert.Equal(t, core.DefaultVehicleLength, v.Length)
		assert.Equal(t, core.DefaultVehicleWidth, v.Width)
		assert.Equal(t, 12.0, v.DesiredSpeed)
		assert.Equal(t, 0.0, v.Velocity)
		assert.Equal(t, "0", v.From)
		assert.Equal(t, "1", v.To)
		assert.Equal(t, 0, v.History.Len())
		assert.GreaterOrEqual(t, v.ArrivalTime, prev)
		prev = v.ArrivalTime
	}
}

func TestGenerate_InitialSpeedRange(t *testing.T) {
	flow := Generate(oneFlow(3600), Options{Window: 60, Seed: 9, SpeedMin: 5, SpeedMax: 8})
	for _, v := range flow {
		assert.GreaterOrEqual(t, v.Velocity, 5.0)
		assert.LessOrEqual(t, v.Velocity, 8.0)
	}
}

func TestGenerate_NonPositiveRate(t *testing.T) {
	records := []core.DemandRecord{
		{From: "0", To: "1", Direction: 1, Rate: 0},
		{From: "0", To: "1", Direction: 1, Rate: -5},
	}
	flow := Generate(records, Options{Window: 30, Seed: 1})
	assert.Empty(t, flow)
}

func TestGenerate_IDsAreGlobal(t *testing.T) {
	records := []core.DemandRecord{
		{From: "0", To: "1", Direction: 1, Rate: 3600},
		{From: "1", To: "0", Direction: -1, Rate: 3600},
	}
	flow := Generate(records, Options{Window: 20, Seed: 5})

	ids := flow.IDs()
	require.NotEmpty(t, ids)
	assert.Equal(t, int64(1), ids[0])
	assert.Equal(t, int64(len(ids)), ids[len(ids)-1])

	// first record's vehicles come first
	var switched bool
	for _, id := range ids {
		if flow[id].From == "1" {
			switched = true
		} else {
			assert.False(t, switched, "record order must be preserved in id assignment")
		}
	}
}

func TestGenerate_ExpectedCount(t *testing.T) {
	const (
		rate   = 1800.0
		window = 200.0
		seeds  = 200
	)
	expected := rate * window / 3600

	var total int
	for seed := int64(0); seed < seeds; seed++ {
		total += len(Generate(oneFlow(rate), Options{Window: window, Seed: seed}))
	}
	mean := float64(total) / seeds

	// one extra vehicle per run crosses the window
	assert.InDelta(t, expected+1, mean, 3*math.Sqrt(expected/seeds)+0.5)
}

func TestWindow(t *testing.T) {
	assert.InDelta(t, 30.0, Window(100, 0.3), 1e-9)
	assert.Equal(t, 0.0, Window(0, 0.3))
}

func TestAdmit_StrictBoundary(t *testing.T) {
	flow := Flow{
		1: {ID: 1, ArrivalTime: 0},
		2: {ID: 2, ArrivalTime: 0.25},
		3: {ID: 3, ArrivalTime: 1},
	}

	pending := Admit(flow, 30, 0, 4)
	assert.NotContains(t, pending, int64(1), "arrival equal to the scan offset is not admitted")
	assert.Contains(t, pending, int64(2))
	assert.Contains(t, pending, int64(3))

	pending = Admit(flow, 30, 0.25, 4)
	assert.NotContains(t, pending, int64(2))
	assert.Contains(t, pending, int64(3))
}

func TestAdmit_EmptyWindow(t *testing.T) {
	flow := Flow{1: {ID: 1, ArrivalTime: 2}}
	assert.Empty(t, Admit(flow, 0, 0, 4))
}

func TestAdmit_KeepsVehicles(t *testing.T) {
	flow := Generate(oneFlow(3600), Options{Window: 30, Seed: 42})
	pending := Admit(flow, 30, 0, 4)

	require.Len(t, pending, len(flow))
	for id, v := range pending {
		assert.Same(t, flow[id], v)
	}
}

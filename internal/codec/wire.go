package codec

import (
	"fmt"
	"math"
	"sort"

	"github.com/azurexth/LimSim/pkg/core"
	"google.golang.org/protobuf/encoding/protowire"
)

// Frame fields.
const (
	fieldFrameVehicle protowire.Number = 1
	fieldFrameLight   protowire.Number = 2
)

// Vehicle fields.
const (
	fieldVehID protowire.Number = iota + 1
	fieldVehArrival
	fieldVehFrom
	fieldVehTo
	fieldVehDirection
	fieldVehLength
	fieldVehWidth
	fieldVehDesiredSpeed
	fieldVehX
	fieldVehY
	fieldVehScf
	fieldVehTcf
	fieldVehHeading
	fieldVehVelocity
	fieldVehAcceleration
	fieldVehYaw
	fieldVehRoad
	fieldVehDecisionArea
	fieldVehScore
	fieldVehHistory
	fieldVehPlan
)

// Trajectory fields. Float sequences are packed fixed64.
const (
	fieldTrajX protowire.Number = iota + 1
	fieldTrajY
	fieldTrajHeading
	fieldTrajVelocity
	fieldTrajAcceleration
	fieldTrajYaw
	fieldTrajRoad
)

// Traffic light fields.
const (
	fieldLightID protowire.Number = iota + 1
	fieldLightRoad
	fieldLightDirection
	fieldLightOffset
	fieldLightProgram
	fieldLightPhase
	fieldLightState
	fieldLightRemaining
)

// Light phase fields.
const (
	fieldPhaseState protowire.Number = iota + 1
	fieldPhaseDuration
)

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendSint(b []byte, num protowire.Number, v int64) []byte {
	return appendVarint(b, num, protowire.EncodeZigZag(v))
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendPackedDoubles(b []byte, num protowire.Number, vs []float64) []byte {
	if len(vs) == 0 {
		return b
	}
	packed := make([]byte, 0, 8*len(vs))
	for _, v := range vs {
		packed = protowire.AppendFixed64(packed, math.Float64bits(v))
	}
	return appendMessage(b, num, packed)
}

func appendVehicleFrame(b []byte, vehicles map[int64]*core.Vehicle) []byte {
	ids := make([]int64, 0, len(vehicles))
	for id := range vehicles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		b = appendMessage(b, fieldFrameVehicle, appendVehicle(nil, vehicles[id]))
	}
	return b
}

func appendVehicle(b []byte, v *core.Vehicle) []byte {
	b = appendSint(b, fieldVehID, v.ID)
	b = appendDouble(b, fieldVehArrival, v.ArrivalTime)
	b = appendString(b, fieldVehFrom, v.From)
	b = appendString(b, fieldVehTo, v.To)
	b = appendSint(b, fieldVehDirection, int64(v.Direction))
	b = appendDouble(b, fieldVehLength, v.Length)
	b = appendDouble(b, fieldVehWidth, v.Width)
	b = appendDouble(b, fieldVehDesiredSpeed, v.DesiredSpeed)
	b = appendDouble(b, fieldVehX, v.X)
	b = appendDouble(b, fieldVehY, v.Y)
	b = appendDouble(b, fieldVehScf, v.Scf)
	b = appendDouble(b, fieldVehTcf, v.Tcf)
	b = appendDouble(b, fieldVehHeading, v.Heading)
	b = appendDouble(b, fieldVehVelocity, v.Velocity)
	b = appendDouble(b, fieldVehAcceleration, v.Acceleration)
	b = appendDouble(b, fieldVehYaw, v.Yaw)
	b = appendString(b, fieldVehRoad, v.Road)
	b = appendDouble(b, fieldVehDecisionArea, v.DecisionArea)
	b = appendDouble(b, fieldVehScore, v.Score)
	if v.History.Len() > 0 {
		b = appendMessage(b, fieldVehHistory, appendTrajectory(nil, v.History))
	}
	if v.Plan.Len() > 0 {
		b = appendMessage(b, fieldVehPlan, appendTrajectory(nil, v.Plan))
	}
	return b
}

func appendTrajectory(b []byte, t core.Trajectory) []byte {
	b = appendPackedDoubles(b, fieldTrajX, t.X)
	b = appendPackedDoubles(b, fieldTrajY, t.Y)
	b = appendPackedDoubles(b, fieldTrajHeading, t.Heading)
	b = appendPackedDoubles(b, fieldTrajVelocity, t.Velocity)
	b = appendPackedDoubles(b, fieldTrajAcceleration, t.Acceleration)
	b = appendPackedDoubles(b, fieldTrajYaw, t.Yaw)
	for _, r := range t.RoadID {
		b = appendString(b, fieldTrajRoad, r)
	}
	return b
}

func appendLightFrame(b []byte, lights map[int64]*core.TrafficLight) []byte {
	ids := make([]int64, 0, len(lights))
	for id := range lights {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		b = appendMessage(b, fieldFrameLight, appendLight(nil, lights[id]))
	}
	return b
}

func appendLight(b []byte, l *core.TrafficLight) []byte {
	b = appendSint(b, fieldLightID, l.ID)
	b = appendString(b, fieldLightRoad, l.Road)
	b = appendSint(b, fieldLightDirection, int64(l.Direction))
	b = appendDouble(b, fieldLightOffset, l.Offset)
	for _, p := range l.Program {
		var phase []byte
		phase = appendString(phase, fieldPhaseState, p.State)
		phase = appendDouble(phase, fieldPhaseDuration, p.Duration)
		b = appendMessage(b, fieldLightProgram, phase)
	}
	b = appendSint(b, fieldLightPhase, int64(l.Phase))
	b = appendString(b, fieldLightState, l.State)
	b = appendDouble(b, fieldLightRemaining, l.Remaining)
	return b
}

// fieldFunc consumes the value of one field. It returns 0 to have the field
// skipped as unknown.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func consumeMessage(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

func consumeSint(typ protowire.Type, b []byte, dst *int64) int {
	if typ != protowire.VarintType {
		return 0
	}
	v, n := protowire.ConsumeVarint(b)
	if n > 0 {
		*dst = protowire.DecodeZigZag(v)
	}
	return n
}

func consumeInt(typ protowire.Type, b []byte, dst *int) int {
	var v int64
	n := consumeSint(typ, b, &v)
	if n > 0 {
		*dst = int(v)
	}
	return n
}

func consumeDouble(typ protowire.Type, b []byte, dst *float64) int {
	if typ != protowire.Fixed64Type {
		return 0
	}
	v, n := protowire.ConsumeFixed64(b)
	if n > 0 {
		*dst = math.Float64frombits(v)
	}
	return n
}

func consumeString(typ protowire.Type, b []byte, dst *string) int {
	if typ != protowire.BytesType {
		return 0
	}
	v, n := protowire.ConsumeString(b)
	if n > 0 {
		*dst = v
	}
	return n
}

// consumeBytes returns the bytes of a length-delimited field.
func consumeBytes(typ protowire.Type, b []byte) ([]byte, int) {
	if typ != protowire.BytesType {
		return nil, 0
	}
	return protowire.ConsumeBytes(b)
}

func consumePackedDoubles(typ protowire.Type, b []byte, dst *[]float64) (int, error) {
	packed, n := consumeBytes(typ, b)
	if n <= 0 {
		return n, nil
	}
	if len(packed)%8 != 0 {
		return 0, fmt.Errorf("packed doubles of length %d", len(packed))
	}
	for len(packed) > 0 {
		v, m := protowire.ConsumeFixed64(packed)
		*dst = append(*dst, math.Float64frombits(v))
		packed = packed[m:]
	}
	return n, nil
}

func consumeVehicleFrame(b []byte) (map[int64]*core.Vehicle, error) {
	out := make(map[int64]*core.Vehicle)
	err := consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldFrameVehicle {
			return 0, nil
		}
		msg, n := consumeBytes(typ, b)
		if n <= 0 {
			return n, nil
		}
		v, err := consumeVehicle(msg)
		if err != nil {
			return 0, err
		}
		out[v.ID] = v
		return n, nil
	})
	return out, err
}

func consumeVehicle(b []byte) (*core.Vehicle, error) {
	v := &core.Vehicle{}
	err := consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldVehID:
			return consumeSint(typ, b, &v.ID), nil
		case fieldVehArrival:
			return consumeDouble(typ, b, &v.ArrivalTime), nil
		case fieldVehFrom:
			return consumeString(typ, b, &v.From), nil
		case fieldVehTo:
			return consumeString(typ, b, &v.To), nil
		case fieldVehDirection:
			return consumeInt(typ, b, &v.Direction), nil
		case fieldVehLength:
			return consumeDouble(typ, b, &v.Length), nil
		case fieldVehWidth:
			return consumeDouble(typ, b, &v.Width), nil
		case fieldVehDesiredSpeed:
			return consumeDouble(typ, b, &v.DesiredSpeed), nil
		case fieldVehX:
			return consumeDouble(typ, b, &v.X), nil
		case fieldVehY:
			return consumeDouble(typ, b, &v.Y), nil
		case fieldVehScf:
			return consumeDouble(typ, b, &v.Scf), nil
		case fieldVehTcf:
			return consumeDouble(typ, b, &v.Tcf), nil
		case fieldVehHeading:
			return consumeDouble(typ, b, &v.Heading), nil
		case fieldVehVelocity:
			return consumeDouble(typ, b, &v.Velocity), nil
		case fieldVehAcceleration:
			return consumeDouble(typ, b, &v.Acceleration), nil
		case fieldVehYaw:
			return consumeDouble(typ, b, &v.Yaw), nil
		case fieldVehRoad:
			return consumeString(typ, b, &v.Road), nil
		case fieldVehDecisionArea:
			return consumeDouble(typ, b, &v.DecisionArea), nil
		case fieldVehScore:
			return consumeDouble(typ, b, &v.Score), nil
		case fieldVehHistory:
			return consumeTrajectory(typ, b, &v.History)
		case fieldVehPlan:
			return consumeTrajectory(typ, b, &v.Plan)
		}
		return 0, nil
	})
	return v, err
}

func consumeTrajectory(typ protowire.Type, b []byte, t *core.Trajectory) (int, error) {
	msg, n := consumeBytes(typ, b)
	if n <= 0 {
		return n, nil
	}
	err := consumeMessage(msg, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldTrajX:
			return consumePackedDoubles(typ, b, &t.X)
		case fieldTrajY:
			return consumePackedDoubles(typ, b, &t.Y)
		case fieldTrajHeading:
			return consumePackedDoubles(typ, b, &t.Heading)
		case fieldTrajVelocity:
			return consumePackedDoubles(typ, b, &t.Velocity)
		case fieldTrajAcceleration:
			return consumePackedDoubles(typ, b, &t.Acceleration)
		case fieldTrajYaw:
			return consumePackedDoubles(typ, b, &t.Yaw)
		case fieldTrajRoad:
			var s string
			m := consumeString(typ, b, &s)
			if m > 0 {
				t.RoadID = append(t.RoadID, s)
			}
			return m, nil
		}
		return 0, nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func consumeLightFrame(b []byte) (map[int64]*core.TrafficLight, error) {
	out := make(map[int64]*core.TrafficLight)
	err := consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldFrameLight {
			return 0, nil
		}
		msg, n := consumeBytes(typ, b)
		if n <= 0 {
			return n, nil
		}
		l, err := consumeLight(msg)
		if err != nil {
			return 0, err
		}
		out[l.ID] = l
		return n, nil
	})
	return out, err
}

func consumeLight(b []byte) (*core.TrafficLight, error) {
	l := &core.TrafficLight{}
	err := consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldLightID:
			return consumeSint(typ, b, &l.ID), nil
		case fieldLightRoad:
			return consumeString(typ, b, &l.Road), nil
		case fieldLightDirection:
			return consumeInt(typ, b, &l.Direction), nil
		case fieldLightOffset:
			return consumeDouble(typ, b, &l.Offset), nil
		case fieldLightProgram:
			msg, n := consumeBytes(typ, b)
			if n <= 0 {
				return n, nil
			}
			var p core.LightPhase
			err := consumeMessage(msg, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch num {
				case fieldPhaseState:
					return consumeString(typ, b, &p.State), nil
				case fieldPhaseDuration:
					return consumeDouble(typ, b, &p.Duration), nil
				}
				return 0, nil
			})
			if err != nil {
				return 0, err
			}
			l.Program = append(l.Program, p)
			return n, nil
		case fieldLightPhase:
			return consumeInt(typ, b, &l.Phase), nil
		case fieldLightState:
			return consumeString(typ, b, &l.State), nil
		case fieldLightRemaining:
			return consumeDouble(typ, b, &l.Remaining), nil
		}
		return 0, nil
	})
	return l, err
}

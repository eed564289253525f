package wire

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// protoCodec writes the protobuf wire format by hand. Kinds wider than a
// byte decode as unknown. Field numbers, also pinned by the tests:
//
//	Player, Food:  1 id, 2 x, 3 y, 4 mass
//	ClientEvent:   1 seq, 2 kind, 3 player_id, 4 player, 5 dx, 6 dy
//	ServerEvent:   1 seq, 2 kind, 3 tick, 4 players, 5 foods, 6 width,
//	               7 height, 8 alive, 9 error
type protoCodec struct{}

func (protoCodec) Subprotocol() string { return SubprotocolProto }

func (protoCodec) MarshalClient(e *ClientEvent) ([]byte, error) {
	var b []byte
	b = appendVarint(b, 1, e.Seq)
	b = appendVarint(b, 2, uint64(e.Kind))
	b = appendString(b, 3, e.PlayerID)
	if e.Player != nil {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, appendEntity(nil, e.Player.ID, e.Player.X, e.Player.Y, e.Player.Mass))
	}
	b = appendDouble(b, 5, e.DX)
	b = appendDouble(b, 6, e.DY)
	return b, nil
}

func (protoCodec) UnmarshalClient(b []byte, e *ClientEvent) error {
	*e = ClientEvent{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			v, n := consumeVarint(typ, b)
			if n > 0 {
				e.Seq = v
			}
			return n
		case 2:
			v, n := consumeVarint(typ, b)
			if n > 0 && v <= math.MaxUint8 {
				e.Kind = ClientKind(v)
			}
			return n
		case 3:
			v, n := consumeBytes(typ, b)
			if n > 0 {
				e.PlayerID = string(v)
			}
			return n
		case 4:
			v, n := consumeBytes(typ, b)
			if n > 0 {
				var p Player
				if err := consumeEntity(v, &p.ID, &p.X, &p.Y, &p.Mass); err != nil {
					return -1
				}
				e.Player = &p
			}
			return n
		case 5:
			v, n := consumeDouble(typ, b)
			if n > 0 {
				e.DX = v
			}
			return n
		case 6:
			v, n := consumeDouble(typ, b)
			if n > 0 {
				e.DY = v
			}
			return n
		}
		return 0
	})
}

func (protoCodec) MarshalServer(e *ServerEvent) ([]byte, error) {
	var b []byte
	b = appendVarint(b, 1, e.Seq)
	b = appendVarint(b, 2, uint64(e.Kind))
	b = appendVarint(b, 3, uint64(e.Tick))
	var scratch []byte
	for _, p := range e.Players {
		scratch = appendEntity(scratch[:0], p.ID, p.X, p.Y, p.Mass)
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, scratch)
	}
	for _, f := range e.Foods {
		scratch = appendEntity(scratch[:0], f.ID, f.X, f.Y, f.Mass)
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, scratch)
	}
	b = appendVarint(b, 6, uint64(e.Width))
	b = appendVarint(b, 7, uint64(e.Height))
	b = appendVarint(b, 8, protowire.EncodeBool(e.Alive))
	b = appendString(b, 9, e.Error)
	return b, nil
}

func (protoCodec) UnmarshalServer(b []byte, e *ServerEvent) error {
	*e = ServerEvent{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			v, n := consumeVarint(typ, b)
			if n > 0 {
				e.Seq = v
			}
			return n
		case 2:
			v, n := consumeVarint(typ, b)
			if n > 0 && v <= math.MaxUint8 {
				e.Kind = ServerKind(v)
			}
			return n
		case 3:
			v, n := consumeVarint(typ, b)
			if n > 0 {
				e.Tick = int64(v)
			}
			return n
		case 4:
			v, n := consumeBytes(typ, b)
			if n > 0 {
				var p Player
				if err := consumeEntity(v, &p.ID, &p.X, &p.Y, &p.Mass); err != nil {
					return -1
				}
				e.Players = append(e.Players, p)
			}
			return n
		case 5:
			v, n := consumeBytes(typ, b)
			if n > 0 {
				var f Food
				if err := consumeEntity(v, &f.ID, &f.X, &f.Y, &f.Mass); err != nil {
					return -1
				}
				e.Foods = append(e.Foods, f)
			}
			return n
		case 6:
			v, n := consumeVarint(typ, b)
			if n > 0 {
				e.Width = int32(v)
			}
			return n
		case 7:
			v, n := consumeVarint(typ, b)
			if n > 0 {
				e.Height = int32(v)
			}
			return n
		case 8:
			v, n := consumeVarint(typ, b)
			if n > 0 {
				e.Alive = protowire.DecodeBool(v)
			}
			return n
		case 9:
			v, n := consumeBytes(typ, b)
			if n > 0 {
				e.Error = string(v)
			}
			return n
		}
		return 0
	})
}

func appendEntity(b []byte, ID string, x, y, mass float64) []byte {
	b = appendString(b, 1, ID)
	b = appendDouble(b, 2, x)
	b = appendDouble(b, 3, y)
	b = appendDouble(b, 4, mass)
	return b
}

func consumeEntity(b []byte, ID *string, x, y, mass *float64) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			v, n := consumeBytes(typ, b)
			if n > 0 {
				*ID = string(v)
			}
			return n
		case 2:
			v, n := consumeDouble(typ, b)
			if n > 0 {
				*x = v
			}
			return n
		case 3:
			v, n := consumeDouble(typ, b)
			if n > 0 {
				*y = v
			}
			return n
		case 4:
			v, n := consumeDouble(typ, b)
			if n > 0 {
				*mass = v
			}
			return n
		}
		return 0
	})
}

// Zero values are left out, as proto3 does.

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 && !math.Signbit(v) {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// consumeFields walks b calling field for every tag. field returns the
// number of bytes it consumed, 0 to skip the field, or a negative protowire
// error code.
func consumeFields(b []byte, field func(protowire.Number, protowire.Type, []byte) int) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m := field(num, typ, b)
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}

// The consume helpers return n == 0 on a wire type mismatch so the caller
// skips the field instead of misreading it.

func consumeVarint(typ protowire.Type, b []byte) (uint64, int) {
	if typ != protowire.VarintType {
		return 0, 0
	}
	return protowire.ConsumeVarint(b)
}

func consumeDouble(typ protowire.Type, b []byte) (float64, int) {
	if typ != protowire.Fixed64Type {
		return 0, 0
	}
	v, n := protowire.ConsumeFixed64(b)
	return math.Float64frombits(v), n
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int) {
	if typ != protowire.BytesType {
		return nil, 0
	}
	return protowire.ConsumeBytes(b)
}

package wire

import (
	"reflect"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"agar/world"
)

func TestCodecsRoundTripServerState(t *testing.T) {
	snapshot := &world.Snapshot{
		Tick:   42,
		Width:  1000,
		Height: 800,
		Players: []world.Player{
			world.NewPlayer("a", 502, 500, 130),
			world.NewPlayer("b", 0, 1000, 1),
		},
		Foods: []world.Food{
			{ID: "f1", Position: world.Vector{X: 1.5, Y: -0}, Mass: 100},
		},
	}
	for _, codec := range []Codec{Proto, Msgpack} {
		b, err := codec.MarshalServer(GameState(snapshot))
		if err != nil {
			t.Fatalf("%s: marshal: %v", codec.Subprotocol(), err)
		}
		var got ServerEvent
		if err := codec.UnmarshalServer(b, &got); err != nil {
			t.Fatalf("%s: unmarshal: %v", codec.Subprotocol(), err)
		}
		if got.Kind != ServerGameState {
			t.Fatalf("%s: kind = %v, want %v", codec.Subprotocol(), got.Kind, ServerGameState)
		}
		if !reflect.DeepEqual(got.Snapshot(), snapshot) {
			t.Fatalf("%s: snapshot = %+v, want %+v", codec.Subprotocol(), got.Snapshot(), snapshot)
		}
	}
}

func TestCodecsRoundTripClientEvents(t *testing.T) {
	events := []ClientEvent{
		{Seq: 1, Kind: ClientRegisterPlayer, Player: &Player{ID: "a", X: 1, Y: 2, Mass: 120}},
		{Seq: 2, Kind: ClientRegisterObserver, PlayerID: "a"},
		{Seq: 3, Kind: ClientSetDirection, PlayerID: "a", DX: -0.5, DY: 0.25},
		{Seq: 1 << 40, Kind: ClientIsAlive, PlayerID: "a"},
	}
	for _, codec := range []Codec{Proto, Msgpack} {
		for _, want := range events {
			b, err := codec.MarshalClient(&want)
			if err != nil {
				t.Fatalf("%s: marshal %v: %v", codec.Subprotocol(), want.Kind, err)
			}
			var got ClientEvent
			if err := codec.UnmarshalClient(b, &got); err != nil {
				t.Fatalf("%s: unmarshal %v: %v", codec.Subprotocol(), want.Kind, err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("%s: got %+v, want %+v", codec.Subprotocol(), got, want)
			}
		}
	}
}

func TestProtoSkipsUnknownFields(t *testing.T) {
	b, _ := Proto.MarshalServer(&ServerEvent{Seq: 7, Kind: ServerAlive, Alive: true})
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "from a newer server")
	b = protowire.AppendTag(b, 1, protowire.BytesType) // seq with the wrong wire type
	b = protowire.AppendString(b, "x")

	var got ServerEvent
	if err := Proto.UnmarshalServer(b, &got); err != nil {
		t.Fatal(err)
	}
	if got.Seq != 7 || got.Kind != ServerAlive || !got.Alive {
		t.Fatalf("got %+v", got)
	}
}

func TestProtoRejectsTruncatedInput(t *testing.T) {
	b, _ := Proto.MarshalClient(&ClientEvent{Kind: ClientRegisterObserver, PlayerID: "someone"})
	var got ClientEvent
	if err := Proto.UnmarshalClient(b[:len(b)-2], &got); err == nil {
		t.Fatalf("expected an error for truncated input")
	}
}

func TestForSubprotocol(t *testing.T) {
	if ForSubprotocol("") != Proto {
		t.Fatalf("empty subprotocol should use proto")
	}
	if ForSubprotocol(SubprotocolMsgpack) != Msgpack {
		t.Fatalf("msgpack subprotocol should use msgpack")
	}
}

func TestProtoOversizedKindIsUnknown(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 5)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, 256+uint64(ClientRegisterPlayer))

	var client ClientEvent
	if err := Proto.UnmarshalClient(b, &client); err != nil {
		t.Fatal(err)
	}
	if client.Kind != ClientUnknown || client.Seq != 5 {
		t.Fatalf("got %+v, want kind %v with seq 5", client, ClientUnknown)
	}

	var server ServerEvent
	if err := Proto.UnmarshalServer(b, &server); err != nil {
		t.Fatal(err)
	}
	if server.Kind != ServerUnknown {
		t.Fatalf("server kind = %v, want %v", server.Kind, ServerUnknown)
	}
}

func fieldTypes(t *testing.T, b []byte) map[protowire.Number]protowire.Type {
	t.Helper()
	fields := make(map[protowire.Number]protowire.Type)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			t.Fatal(protowire.ParseError(n))
		}
		b = b[n:]
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			t.Fatal(protowire.ParseError(m))
		}
		b = b[m:]
		fields[num] = typ
	}
	return fields
}

func TestProtoFieldNumbers(t *testing.T) {
	client, _ := Proto.MarshalClient(&ClientEvent{
		Seq: 1, Kind: ClientRegisterPlayer, PlayerID: "a",
		Player: &Player{ID: "a", X: 1, Y: 2, Mass: 3}, DX: 1, DY: 1,
	})
	want := map[protowire.Number]protowire.Type{
		1: protowire.VarintType,
		2: protowire.VarintType,
		3: protowire.BytesType,
		4: protowire.BytesType,
		5: protowire.Fixed64Type,
		6: protowire.Fixed64Type,
	}
	if got := fieldTypes(t, client); !reflect.DeepEqual(got, want) {
		t.Fatalf("client fields = %v, want %v", got, want)
	}

	server, _ := Proto.MarshalServer(&ServerEvent{
		Seq: 1, Kind: ServerGameState, Tick: 2,
		Players: []Player{{ID: "a", X: 1, Y: 1, Mass: 1}},
		Foods:   []Food{{ID: "f", X: 1, Y: 1, Mass: 1}},
		Width:   3, Height: 4, Alive: true, Error: "e",
	})
	want = map[protowire.Number]protowire.Type{
		1: protowire.VarintType,
		2: protowire.VarintType,
		3: protowire.VarintType,
		4: protowire.BytesType,
		5: protowire.BytesType,
		6: protowire.VarintType,
		7: protowire.VarintType,
		8: protowire.VarintType,
		9: protowire.BytesType,
	}
	if got := fieldTypes(t, server); !reflect.DeepEqual(got, want) {
		t.Fatalf("server fields = %v, want %v", got, want)
	}

	entity := appendEntity(nil, "a", 1, 2, 3)
	want = map[protowire.Number]protowire.Type{
		1: protowire.BytesType,
		2: protowire.Fixed64Type,
		3: protowire.Fixed64Type,
		4: protowire.Fixed64Type,
	}
	if got := fieldTypes(t, entity); !reflect.DeepEqual(got, want) {
		t.Fatalf("entity fields = %v, want %v", got, want)
	}
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"nhooyr.io/websocket"

	"agar/wire"
	"agar/world"
)

var errNoPlayer = errors.New("missing player")

// subscriber is one websocket connection. It can register as observer for
// any number of player ids; each registration gets its own observer so a
// stale one can be evicted without touching the rest.
type subscriber struct {
	c      *websocket.Conn
	codec  wire.Codec
	server *Server

	mu        sync.Mutex
	observers map[string]*observer
}

type observer struct {
	sub      *subscriber
	playerID string
}

func (o *observer) PlayerID() string { return o.playerID }

func (o *observer) UpdateGameState(ctx context.Context, s *world.Snapshot) error {
	return o.sub.write(ctx, wire.GameState(s))
}

func (o *observer) NotifyPlayerDeath(ctx context.Context) error {
	return o.sub.write(ctx, &wire.ServerEvent{Kind: wire.ServerDeath})
}

func (s *subscriber) write(ctx context.Context, e *wire.ServerEvent) error {
	b, err := s.codec.MarshalServer(e)
	if err != nil {
		return err
	}
	return s.c.Write(ctx, websocket.MessageBinary, b)
}

func (s *subscriber) observe(playerID string) *observer {
	o := &observer{sub: s, playerID: playerID}
	s.mu.Lock()
	s.observers[playerID] = o
	s.mu.Unlock()
	return o
}

func (s *subscriber) forget(playerID string) {
	s.mu.Lock()
	delete(s.observers, playerID)
	s.mu.Unlock()
}

// close evicts every player this connection was observing. A dropped
// connection counts as those players leaving.
func (s *subscriber) close() {
	s.mu.Lock()
	observers := make([]*observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.observers = make(map[string]*observer)
	s.mu.Unlock()

	for _, o := range observers {
		if s.server.world.Evict(o) {
			log.Printf("player %s left with its connection", o.playerID)
		}
	}
}

func (s *Server) onConnection(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   wire.Subprotocols(),
		OriginPatterns: s.config.Server.Origins(),
	})
	if err != nil {
		log.Println(err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "")

	err = s.handleConnection(r.Context(), c)
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		log.Println(err)
	}
}

func (s *Server) handleConnection(ctx context.Context, c *websocket.Conn) error {
	sub := &subscriber{
		c:         c,
		codec:     wire.ForSubprotocol(c.Subprotocol()),
		server:    s,
		observers: make(map[string]*observer),
	}
	defer sub.close()

	for {
		messageType, b, err := c.Read(ctx)
		if err != nil {
			return err
		}
		if messageType != websocket.MessageBinary {
			continue
		}

		var event wire.ClientEvent
		if err := sub.codec.UnmarshalClient(b, &event); err != nil {
			s.reply(ctx, sub, &wire.ServerEvent{Kind: wire.ServerError, Error: err.Error()})
			continue
		}
		if response := s.onEvent(ctx, sub, &event); response != nil {
			response.Seq = event.Seq
			s.reply(ctx, sub, response)
		}
	}
}

func (s *Server) reply(ctx context.Context, sub *subscriber, e *wire.ServerEvent) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Server.WriteTimeout())
	defer cancel()
	if err := sub.write(ctx, e); err != nil {
		log.Println(err)
	}
}

// onEvent applies one request. Acks and errors are only sent for requests
// that carry a Seq, so direction updates can be fire-and-forget.
func (s *Server) onEvent(ctx context.Context, sub *subscriber, e *wire.ClientEvent) *wire.ServerEvent {
	ack := func(err error) *wire.ServerEvent {
		if e.Seq == 0 {
			return nil
		}
		if err != nil {
			return &wire.ServerEvent{Kind: wire.ServerError, Error: fmt.Sprintf("%v: %v", e.Kind, err)}
		}
		return &wire.ServerEvent{Kind: wire.ServerAck}
	}

	switch e.Kind {
	case wire.ClientRegisterPlayer:
		if e.Player == nil {
			return ack(errNoPlayer)
		}
		return ack(s.RegisterPlayer(e.Player.World()))

	case wire.ClientRegisterObserver:
		if e.PlayerID == "" {
			return ack(errNoPlayer)
		}
		s.RegisterObserver(ctx, sub.observe(e.PlayerID))
		return ack(nil)

	case wire.ClientUnregister:
		sub.forget(e.PlayerID)
		s.UnregisterPlayer(e.PlayerID)
		return ack(nil)

	case wire.ClientSetDirection:
		s.SetPlayerDirection(e.PlayerID, e.DX, e.DY)
		return ack(nil)

	case wire.ClientGetPlayers:
		return &wire.ServerEvent{Kind: wire.ServerPlayers, Players: wire.FromPlayers(s.AllPlayers())}

	case wire.ClientGetFoods:
		return &wire.ServerEvent{Kind: wire.ServerFoods, Foods: wire.FromFoods(s.AllFoods())}

	case wire.ClientGetWorldSize:
		return &wire.ServerEvent{Kind: wire.ServerWorldSize, Width: int32(s.WorldWidth()), Height: int32(s.WorldHeight())}

	case wire.ClientIsAlive:
		return &wire.ServerEvent{Kind: wire.ServerAlive, Alive: s.IsPlayerAlive(e.PlayerID)}
	}
	return ack(wire.ErrUnknownKind)
}

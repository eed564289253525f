package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"agar/wire"
	"agar/world"
)

var (
	ErrClosed = errors.New("client closed")
	ErrRemote = errors.New("server error")
)

// readLimit bounds a single incoming frame. Full game states outgrow the
// websocket default of 32KiB once a few hundred players join.
const readLimit = 4 << 20

type Options struct {
	// Subprotocol selects the wire codec, defaults to protobuf.
	Subprotocol string
	// Timeout bounds each request/response round trip. Zero means the
	// caller's context alone decides.
	Timeout time.Duration
}

// Client is a remote handle on a game server. Requests are matched to
// responses by Seq; pushed game states and death notices are delivered
// through State, States and Deaths.
type Client struct {
	c       *websocket.Conn
	codec   wire.Codec
	timeout time.Duration

	seq     atomic.Uint64
	mu      sync.Mutex
	pending map[uint64]chan *wire.ServerEvent

	state  atomic.Pointer[world.Snapshot]
	states chan *world.Snapshot
	deaths chan struct{}

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

func Dial(ctx context.Context, url string, opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}
	protocol := opts.Subprotocol
	if protocol == "" {
		protocol = wire.SubprotocolProto
	}

	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{protocol},
	})
	if err != nil {
		return nil, err
	}
	c.SetReadLimit(readLimit)

	cl := &Client{
		c:       c,
		codec:   wire.ForSubprotocol(c.Subprotocol()),
		timeout: opts.Timeout,
		pending: make(map[uint64]chan *wire.ServerEvent),
		states:  make(chan *world.Snapshot, 1),
		deaths:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go cl.ReadMessages()
	return cl, nil
}

// ReadMessages reads until the connection drops, routing responses to
// their pending requests and keeping the latest pushed state.
func (cl *Client) ReadMessages() {
	for {
		messageType, b, err := cl.c.Read(context.Background())
		if err != nil {
			cl.finish(err)
			return
		}
		if messageType != websocket.MessageBinary || len(b) == 0 {
			continue
		}

		var event wire.ServerEvent
		if err := cl.codec.UnmarshalServer(b, &event); err != nil {
			log.Println(err)
			continue
		}
		cl.dispatch(&event)
	}
}

func (cl *Client) dispatch(e *wire.ServerEvent) {
	switch e.Kind {
	case wire.ServerGameState:
		s := e.Snapshot()
		cl.state.Store(s)
		// Only the newest state matters to a slow reader.
		for {
			select {
			case cl.states <- s:
				return
			default:
			}
			select {
			case <-cl.states:
			default:
			}
		}

	case wire.ServerDeath:
		select {
		case cl.deaths <- struct{}{}:
		default:
		}

	default:
		if e.Seq == 0 {
			if e.Kind == wire.ServerError {
				log.Printf("server: %s", e.Error)
			}
			return
		}
		cl.mu.Lock()
		ch := cl.pending[e.Seq]
		delete(cl.pending, e.Seq)
		cl.mu.Unlock()
		if ch != nil {
			ch <- e
		}
	}
}

func (cl *Client) finish(err error) {
	cl.closeOnce.Do(func() {
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			err = ErrClosed
		}
		cl.err = err
		close(cl.done)
	})
}

func (cl *Client) send(ctx context.Context, e *wire.ClientEvent) error {
	b, err := cl.codec.MarshalClient(e)
	if err != nil {
		return err
	}
	return cl.c.Write(ctx, websocket.MessageBinary, b)
}

func (cl *Client) request(ctx context.Context, e *wire.ClientEvent) (*wire.ServerEvent, error) {
	if cl.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cl.timeout)
		defer cancel()
	}

	e.Seq = cl.seq.Add(1)
	ch := make(chan *wire.ServerEvent, 1)
	cl.mu.Lock()
	cl.pending[e.Seq] = ch
	cl.mu.Unlock()
	defer func() {
		cl.mu.Lock()
		delete(cl.pending, e.Seq)
		cl.mu.Unlock()
	}()

	if err := cl.send(ctx, e); err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		if r.Kind == wire.ServerError {
			return nil, fmt.Errorf("%w: %s", ErrRemote, r.Error)
		}
		return r, nil
	case <-cl.done:
		return nil, cl.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (cl *Client) expect(ctx context.Context, e *wire.ClientEvent, kind wire.ServerKind) (*wire.ServerEvent, error) {
	r, err := cl.request(ctx, e)
	if err != nil {
		return nil, err
	}
	if r.Kind != kind {
		return nil, fmt.Errorf("%v: unexpected response %v", e.Kind, r.Kind)
	}
	return r, nil
}

func (cl *Client) RegisterPlayer(ctx context.Context, p world.Player) error {
	wp := wire.FromPlayer(p)
	_, err := cl.expect(ctx, &wire.ClientEvent{Kind: wire.ClientRegisterPlayer, Player: &wp}, wire.ServerAck)
	return err
}

// RegisterObserver subscribes this connection to state pushes on behalf of
// ID. The server sends the current state right away.
func (cl *Client) RegisterObserver(ctx context.Context, ID string) error {
	_, err := cl.expect(ctx, &wire.ClientEvent{Kind: wire.ClientRegisterObserver, PlayerID: ID}, wire.ServerAck)
	return err
}

func (cl *Client) Unregister(ctx context.Context, ID string) error {
	_, err := cl.expect(ctx, &wire.ClientEvent{Kind: wire.ClientUnregister, PlayerID: ID}, wire.ServerAck)
	return err
}

// SetDirection is fire-and-forget: the server sends nothing back.
func (cl *Client) SetDirection(ctx context.Context, ID string, dx, dy float64) error {
	return cl.send(ctx, &wire.ClientEvent{Kind: wire.ClientSetDirection, PlayerID: ID, DX: dx, DY: dy})
}

func (cl *Client) Players(ctx context.Context) ([]world.Player, error) {
	r, err := cl.expect(ctx, &wire.ClientEvent{Kind: wire.ClientGetPlayers}, wire.ServerPlayers)
	if err != nil {
		return nil, err
	}
	return wire.PlayersToWorld(r.Players), nil
}

func (cl *Client) Foods(ctx context.Context) ([]world.Food, error) {
	r, err := cl.expect(ctx, &wire.ClientEvent{Kind: wire.ClientGetFoods}, wire.ServerFoods)
	if err != nil {
		return nil, err
	}
	return wire.FoodsToWorld(r.Foods), nil
}

func (cl *Client) WorldSize(ctx context.Context) (width, height int, err error) {
	r, err := cl.expect(ctx, &wire.ClientEvent{Kind: wire.ClientGetWorldSize}, wire.ServerWorldSize)
	if err != nil {
		return 0, 0, err
	}
	return int(r.Width), int(r.Height), nil
}

func (cl *Client) IsAlive(ctx context.Context, ID string) (bool, error) {
	r, err := cl.expect(ctx, &wire.ClientEvent{Kind: wire.ClientIsAlive, PlayerID: ID}, wire.ServerAlive)
	if err != nil {
		return false, err
	}
	return r.Alive, nil
}

// State returns the last pushed game state, or nil before the first push.
func (cl *Client) State() *world.Snapshot { return cl.state.Load() }

// States delivers pushed game states, dropping any the reader fell behind on.
func (cl *Client) States() <-chan *world.Snapshot { return cl.states }

// Deaths fires when the server reports an observed player was eaten.
func (cl *Client) Deaths() <-chan struct{} { return cl.deaths }

// Done is closed once the connection is gone.
func (cl *Client) Done() <-chan struct{} { return cl.done }

// Err reports why the connection ended. Only valid after Done is closed.
func (cl *Client) Err() error {
	select {
	case <-cl.done:
		return cl.err
	default:
		return nil
	}
}

func (cl *Client) Subprotocol() string { return cl.codec.Subprotocol() }

func (cl *Client) Close() error {
	err := cl.c.Close(websocket.StatusNormalClosure, "")
	<-cl.done
	return err
}

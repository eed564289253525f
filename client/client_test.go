package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agar/server"
	"agar/utils"
	"agar/wire"
	"agar/world"
)

var epsilon = utils.DefaultConfig().Math.Float64EqualityThreshold

func newTestServer(t *testing.T) (*server.Server, string) {
	t.Helper()
	cfg := utils.DefaultConfig()
	cfg.World.InitialFood = 0
	cfg.World.MaxFood = 0
	cfg.World.Seed = 1
	s, err := server.NewServer(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	hs := httptest.NewServer(s)
	t.Cleanup(hs.Close)
	return s, "ws" + strings.TrimPrefix(hs.URL, "http")
}

func dial(t *testing.T, url, subprotocol string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := Dial(ctx, url, &Options{Subprotocol: subprotocol, Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func nextState(t *testing.T, c *Client) *world.Snapshot {
	t.Helper()
	select {
	case s := <-c.States():
		return s
	case <-time.After(time.Second):
		t.Fatalf("no state pushed")
	}
	return nil
}

func TestRegisterObserveAndDie(t *testing.T) {
	s, url := newTestServer(t)
	ctx := context.Background()
	hunter := dial(t, url, "")
	prey := dial(t, url, "")

	if err := hunter.RegisterPlayer(ctx, world.NewPlayer("a", 100, 100, 200)); err != nil {
		t.Fatal(err)
	}
	if err := prey.RegisterPlayer(ctx, world.NewPlayer("b", 105, 100, 100)); err != nil {
		t.Fatal(err)
	}
	if err := prey.RegisterObserver(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	first := nextState(t, prey)
	if len(first.Players) != 2 || first.Width != 1000 {
		t.Fatalf("initial state = %+v", first)
	}

	s.Tick()

	select {
	case <-prey.Deaths():
	case <-time.After(time.Second):
		t.Fatalf("prey was not told it died")
	}
	alive, err := hunter.IsAlive(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	if alive {
		t.Fatalf("IsAlive(b) = true after being eaten")
	}
	players, err := hunter.Players(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(players) != 1 || players[0].ID != "a" || players[0].Mass != 300 {
		t.Fatalf("players = %+v, want only a with mass 300", players)
	}
}

func TestMsgpackSubprotocol(t *testing.T) {
	s, url := newTestServer(t)
	ctx := context.Background()
	c := dial(t, url, wire.SubprotocolMsgpack)
	if c.Subprotocol() != wire.SubprotocolMsgpack {
		t.Fatalf("negotiated %q", c.Subprotocol())
	}

	width, height, err := c.WorldSize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if width != 1000 || height != 1000 {
		t.Fatalf("WorldSize() = %d, %d", width, height)
	}

	if err := c.RegisterPlayer(ctx, world.NewPlayer("m", 500, 500, 120)); err != nil {
		t.Fatal(err)
	}
	if err := c.RegisterObserver(ctx, "m"); err != nil {
		t.Fatal(err)
	}
	nextState(t, c)
	if err := c.SetDirection(ctx, "m", 0, -1); err != nil {
		t.Fatal(err)
	}
	// The direction is fire-and-forget; a round trip makes sure it landed.
	if _, err := c.IsAlive(ctx, "m"); err != nil {
		t.Fatal(err)
	}

	s.Tick()
	state := nextState(t, c)
	m, ok := state.Player("m")
	if !ok || m.Position.X != 500 || m.Position.Y != 498 {
		t.Fatalf("m = %+v, want (500,498)", m)
	}
}

func TestInvalidPlayerIsRejected(t *testing.T) {
	_, url := newTestServer(t)
	c := dial(t, url, "")
	err := c.RegisterPlayer(context.Background(), world.NewPlayer("", 1, 1, 10))
	if !errors.Is(err, ErrRemote) {
		t.Fatalf("RegisterPlayer(empty id) = %v, want ErrRemote", err)
	}
	// The connection stays usable.
	if _, err := c.Foods(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestClosingConnectionRemovesObservedPlayers(t *testing.T) {
	s, url := newTestServer(t)
	ctx := context.Background()
	c := dial(t, url, "")
	c.RegisterPlayer(ctx, world.NewPlayer("gone", 10, 10, 50))
	if err := c.RegisterObserver(ctx, "gone"); err != nil {
		t.Fatal(err)
	}
	c.Close()

	deadline := time.Now().Add(time.Second)
	for s.IsPlayerAlive("gone") {
		if time.Now().After(deadline) {
			t.Fatalf("player outlived its connection")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBotJoinsAndLeaves(t *testing.T) {
	s, url := newTestServer(t)
	c := dial(t, url, "")
	bot := NewBot(c, BotConfig{Period: 5 * time.Millisecond, Seed: 3})

	ctx, cancel := context.WithCancel(context.Background())
	if err := bot.Join(ctx); err != nil {
		t.Fatal(err)
	}
	if !s.IsPlayerAlive(bot.ID()) {
		t.Fatalf("bot %s not registered", bot.ID())
	}

	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("bot did not stop")
	}
	if s.IsPlayerAlive(bot.ID()) {
		t.Fatalf("bot still registered after leaving")
	}
}

func TestSteer(t *testing.T) {
	state := &world.Snapshot{
		Players: []world.Player{
			world.NewPlayer("me", 100, 100, 100),
			world.NewPlayer("small", 90, 100, 10),
		},
		Foods: []world.Food{
			{ID: "far", Position: world.Vector{X: 100, Y: 300}, Mass: 100},
			{ID: "near", Position: world.Vector{X: 130, Y: 100}, Mass: 100},
		},
	}
	v, ok := Steer(state, "me")
	if !ok || !utils.AlmostEqual(v.X, 1, epsilon) || !utils.AlmostEqual(v.Y, 0, epsilon) {
		t.Fatalf("Steer() = %+v, %v, want towards (1,0)", v, ok)
	}

	state.Players = append(state.Players, world.NewPlayer("big", 100, 110, 500))
	v, ok = Steer(state, "me")
	if !ok || !utils.AlmostEqual(v.X, 0, epsilon) || !utils.AlmostEqual(v.Y, -1, epsilon) {
		t.Fatalf("Steer() = %+v, %v, want away from big (0,-1)", v, ok)
	}

	if _, ok := Steer(state, "missing"); ok {
		t.Fatalf("Steer() for an unknown player should fail")
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sasha-s/go-deadlock"

	"agar/journal"
	"agar/utils"
	"agar/wire"
	"agar/world"
)

// historySize is how many past ticks /world?tick= can still serve.
const historySize = 64

// Journal is where eliminations go once a tick has applied them.
type Journal interface {
	Record(e world.Elimination)
	TopEaters(ctx context.Context, n int) ([]journal.Score, error)
	Dropped() uint64
}

// Server is the authoritative game: it owns the world, runs the tick and
// exposes the remote surface. Every exported method is safe to call from
// any number of goroutines.
type Server struct {
	config      *utils.Config
	world       *world.World
	engine      *Engine
	broadcaster *Broadcaster
	journal     Journal
	history     *world.StateBuffer
	serveMux    http.ServeMux
	failures    atomic.Uint64
	evictions   atomic.Uint64
}

func NewServer(cfg *utils.Config, j Journal) (*Server, error) {
	return newServer(cfg, rulesFromConfig(cfg), j)
}

func rulesFromConfig(cfg *utils.Config) world.Rules {
	return world.Rules{
		Speed:        cfg.World.Speed,
		EatMargin:    cfg.World.EatMargin,
		InitialFood:  cfg.World.InitialFood,
		MaxFood:      cfg.World.MaxFood,
		FoodMass:     cfg.World.FoodMass,
		MaxDirection: cfg.World.MaxDirection,
	}
}

func newServer(cfg *utils.Config, rules world.Rules, j Journal) (*Server, error) {
	bounds, err := world.NewMap(cfg.World.Width, cfg.World.Height)
	if err != nil {
		return nil, err
	}
	seed := cfg.World.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	w := world.NewWorld(bounds, rules, rand.New(rand.NewSource(seed)))

	s := &Server{
		config:      cfg,
		world:       w,
		broadcaster: NewBroadcaster(w, cfg.Server.WriteTimeout()),
		journal:     j,
		history:     world.NewStateBuffer(historySize),
	}
	s.engine = NewEngine(cfg.Server.TickPeriod(), s.onTick)
	log.Printf("world %dx%d with %d foods", cfg.World.Width, cfg.World.Height, len(w.Foods()))

	s.serveMux.HandleFunc("/", s.onConnection)
	s.serveMux.HandleFunc("/healthz", s.onHealth)
	s.serveMux.HandleFunc("/world", s.onWorld)
	s.serveMux.HandleFunc("/stats", s.onStats)
	s.serveMux.HandleFunc("/debug/pprof/", pprof.Index)
	s.serveMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	s.serveMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	s.serveMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	s.serveMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return s, nil
}

func (s *Server) Start() { s.engine.Start() }

// Stop halts the tick loop after the current tick completes.
func (s *Server) Stop() { s.engine.Stop() }

func (s *Server) World() *world.World { return s.world }

// Tick runs one simulation step right away, unless one is already running.
func (s *Server) Tick() bool { return s.engine.Tick() }

func (s *Server) onTick() {
	result := s.world.Step()
	if result.Failures > 0 {
		s.failures.Add(uint64(result.Failures))
	}
	// Observers share result.Snapshot; history keeps its own copy.
	s.history.Add(result.Snapshot.Clone())
	for _, e := range result.Eliminations {
		log.Printf("tick %d: %s ate %s (mass %.1f)", e.Tick, e.Eater, e.Victim, e.VictimMass)
		if s.journal != nil {
			s.journal.Record(e)
		}
	}

	ctx := context.Background()
	s.broadcaster.NotifyDeaths(ctx, result.Deaths)
	if evicted := s.broadcaster.NotifyAll(ctx, result.Snapshot); len(evicted) > 0 {
		s.evictions.Add(uint64(len(evicted)))
	}
}

// RegisterPlayer adds p to the world, replacing any player with the same id.
func (s *Server) RegisterPlayer(p world.Player) error {
	if err := s.world.Register(p); err != nil {
		return err
	}
	log.Printf("player %s registered. Total players: %d", p.ID, len(s.world.Players()))
	return nil
}

// RegisterObserver makes o the observer for its player id and sends it the
// current state right away. A failed first push is logged, not fatal; the
// next tick's broadcast decides whether o stays.
func (s *Server) RegisterObserver(ctx context.Context, o world.Observer) {
	s.world.RegisterObserver(o)
	log.Printf("observer %s registered", o.PlayerID())
	if err := s.broadcaster.Push(ctx, o, s.world.Snapshot()); err != nil {
		log.Printf("initial state to %s failed: %v", o.PlayerID(), err)
	}
}

func (s *Server) UnregisterPlayer(ID string) {
	if s.world.Unregister(ID) {
		log.Printf("player %s unregistered", ID)
	}
}

func (s *Server) SetPlayerDirection(ID string, dx, dy float64) {
	s.world.SetDirection(ID, world.Vector{X: dx, Y: dy})
}

func (s *Server) AllPlayers() []world.Player { return s.world.Players() }
func (s *Server) AllFoods() []world.Food     { return s.world.Foods() }
func (s *Server) WorldWidth() int            { return s.world.Width() }
func (s *Server) WorldHeight() int           { return s.world.Height() }

func (s *Server) IsPlayerAlive(ID string) bool { return s.world.IsAlive(ID) }

func (s *Server) Failures() uint64  { return s.failures.Load() }
func (s *Server) Evictions() uint64 { return s.evictions.Load() }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.serveMux.ServeHTTP(w, r)
}

func (s *Server) onHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// onWorld serves the live state, or a recent one with ?tick=.
func (s *Server) onWorld(w http.ResponseWriter, r *http.Request) {
	snapshot := s.world.Snapshot()
	if v := r.URL.Query().Get("tick"); v != "" {
		tick, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var ok bool
		if snapshot, ok = s.history.At(tick); !ok {
			http.Error(w, fmt.Sprintf("tick %d is not buffered", tick), http.StatusNotFound)
			return
		}
	}
	writeJSON(w, wire.GameState(snapshot))
}

func (s *Server) onStats(w http.ResponseWriter, r *http.Request) {
	stats := struct {
		Tick      int64           `json:"tick"`
		Ticks     uint64          `json:"ticks"`
		Skipped   uint64          `json:"skipped"`
		Failures  uint64          `json:"failures"`
		Evictions uint64          `json:"evictions"`
		Players   int             `json:"players"`
		Dropped   uint64          `json:"journal_dropped"`
		Top       []journal.Score `json:"top,omitempty"`
	}{
		Tick:      s.world.Tick(),
		Ticks:     s.engine.Ticks(),
		Skipped:   s.engine.Skipped(),
		Failures:  s.Failures(),
		Evictions: s.Evictions(),
		Players:   len(s.world.Players()),
	}
	if s.journal != nil {
		n := 10
		if v, err := strconv.Atoi(r.URL.Query().Get("top")); err == nil && v > 0 {
			n = v
		}
		top, err := s.journal.TopEaters(r.Context(), n)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		stats.Top = top
		stats.Dropped = s.journal.Dropped()
	}
	writeJSON(w, stats)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println(err)
	}
}

// loadConfig reads $AGAR_CONFIG, or config.toml when present, over the
// defaults.
func loadConfig() (*utils.Config, error) {
	path := os.Getenv("AGAR_CONFIG")
	if path == "" {
		path = "config.toml"
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return utils.DefaultConfig(), nil
		}
	}
	return utils.ReadTOML(path)
}

func Run(args []string) error {
	log.SetFlags(log.LstdFlags | log.Llongfile)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) > 1 {
		cfg.Server.Address = args[1]
	}
	deadlock.Opts.Disable = !cfg.Server.DetectDeadlocks

	var j *journal.Journal
	if cfg.Server.JournalPath != "" {
		if j, err = journal.Open(cfg.Server.JournalPath); err != nil {
			return err
		}
		defer j.Close()
	}

	l, err := net.Listen("tcp", cfg.Server.Address)
	if err != nil {
		return err
	}
	log.Printf("Listening on ws://%v", l.Addr())

	// A nil *journal.Journal must not become a non-nil Journal interface.
	var server *Server
	if j != nil {
		server, err = NewServer(cfg, j)
	} else {
		server, err = NewServer(cfg, nil)
	}
	if err != nil {
		return err
	}
	server.Start()
	defer server.Stop()

	s := &http.Server{
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- s.Serve(l)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errc:
		log.Println(err)
	case sig := <-sigs:
		log.Printf("terminating: %v", sig)
	}

	server.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

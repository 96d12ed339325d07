package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/ledring/internal/bcm"
	"github.com/coreman2200/ledring/internal/events"
	"github.com/coreman2200/ledring/internal/protocol"
	"github.com/coreman2200/ledring/internal/sector"
)

type State struct {
	mu     sync.Mutex
	store  *sector.Store
	Layout sector.Layout
	FPS    int

	Scheduler *bcm.Scheduler
	Renderer  *bcm.Renderer
	Driver    string

	frameID     uint64
	lastCommit  uint64
	startTime   time.Time
	statuses    map[string]uint64
	clients     map[*websocket.Conn]bool
	diagClients map[*websocket.Conn]bool
	unsubs      []func()
}

func NewState(store *sector.Store, layout sector.Layout, fps int) *State {
	return &State{
		store:       store,
		Layout:      layout,
		FPS:         fps,
		startTime:   time.Now(),
		statuses:    map[string]uint64{},
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
	}
}

// Watch turns bus events into diagnostics until Close.
func (s *State) Watch(bus *events.Bus) {
	s.unsubs = append(s.unsubs,
		bus.Subscribe(s.onFrame),
		bus.Subscribe(func(e events.RenderFaultEvent) {
			s.pushDiag(Diagnostic{
				Severity: Err,
				Code:     CodeRender,
				Summary:  "Render pass failed",
				Detail:   e.Error,
				Causes:   []string{"SPI device busy or unplugged", "latch GPIO not exported"},
				Evidence: map[string]any{"plane": e.Plane, "at": e.Timestamp},
			})
		}),
		bus.Subscribe(func(e events.SelfTestEvent) {
			d := Diagnostic{Severity: Info, Code: CodeTestRun, Summary: "Running test", Detail: e.Kind,
				Evidence: map[string]any{"step": e.Step}}
			if e.Done {
				d.Code, d.Summary = CodeTestDone, "Test complete"
			}
			s.pushDiag(d)
		}),
	)
}

func (s *State) onFrame(e events.FrameHandledEvent) {
	status := protocol.Status(e.Status)
	s.mu.Lock()
	s.statuses[status.String()]++
	s.mu.Unlock()
	capacity := min(s.store.Capacity(s.Layout), protocol.MaxPayload)
	d, ok := frameDiagnostic(status, e.Error, capacity)
	if !ok {
		return
	}
	d.Evidence = map[string]any{"action": e.Action, "length": e.Length, "status": e.Status, "at": e.Timestamp}
	if status == protocol.StatusLength {
		d.Evidence["capacity"] = capacity
	}
	s.pushDiag(d)
}

// Close drops event subscriptions and every websocket client.
func (s *State) Close() {
	for _, u := range s.unsubs {
		u()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.Close()
	}
	for c := range s.diagClients {
		c.Close()
	}
}

// RunBroadcastLoop pushes the sector colors to frame clients whenever they
// change, plus once a second as a keepalive.
func (s *State) RunBroadcastLoop(ctx context.Context) error {
	fps := s.FPS
	if fps <= 0 {
		fps = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	last := time.Time{}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c := s.store.Commits()
			s.mu.Lock()
			changed := c != s.lastCommit
			s.lastCommit = c
			s.mu.Unlock()
			if changed || time.Since(last) > time.Second {
				s.broadcastFrame()
				last = time.Now()
			}
		}
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (s *State) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.sendTopology(conn)
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()
	go s.readUntilClosed(conn, s.clients)
}

func (s *State) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.diagClients[conn] = true
	s.mu.Unlock()
	go s.readUntilClosed(conn, s.diagClients)
}

func (s *State) readUntilClosed(conn *websocket.Conn, set map[*websocket.Conn]bool) {
	defer func() {
		s.mu.Lock()
		delete(set, conn)
		s.mu.Unlock()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	statuses := make(map[string]uint64, len(s.statuses))
	for k, v := range s.statuses {
		statuses[k] = v
	}
	resp := map[string]any{
		"frame_id":  s.frameID,
		"uptime_s":  time.Since(s.startTime).Seconds(),
		"sectors":   s.store.Len(),
		"layout":    s.Layout.String(),
		"capacity":  s.store.Capacity(s.Layout),
		"commits":   s.store.Commits(),
		"driver":    s.Driver,
		"responses": statuses,
	}
	s.mu.Unlock()
	if s.Scheduler != nil {
		resp["ticks"] = s.Scheduler.Ticks()
		resp["overruns"] = s.Scheduler.Overruns()
		resp["tick_us"] = s.Scheduler.Period().Microseconds()
	}
	if s.Renderer != nil {
		last := s.Renderer.Last()
		resp["render_passes"] = last.Passes
		resp["last_render_us"] = last.Duration.Microseconds()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Handler routes every monitor endpoint.
func (s *State) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleFramesWS)
	mux.HandleFunc("/diag", s.HandleDiagWS)
	mux.HandleFunc("/health", s.HandleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return withCORS(mux)
}

func (s *State) sendTopology(conn *websocket.Conn) {
	top := map[string]any{
		"sectors":  s.store.Len(),
		"layout":   s.Layout.String(),
		"capacity": s.store.Capacity(s.Layout),
		"driver":   s.Driver,
	}
	b, _ := json.Marshal(top)
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

type frame struct {
	T       int64  `json:"t"`
	FrameID uint64 `json:"frame_id"`
	RGB     []byte `json:"rgb"`
}

func (s *State) broadcastFrame() {
	rgb := s.store.Bytes(sector.LayoutRGB)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameID++
	b, _ := json.Marshal(frame{T: time.Now().UnixNano(), FrameID: s.frameID, RGB: rgb})
	for c := range s.clients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("write frame")
		}
	}
}

func (s *State) pushDiag(d Diagnostic) {
	b, _ := json.Marshal(d)
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.diagClients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		_ = c.WriteMessage(websocket.TextMessage, b)
	}
}

// Serve runs an HTTP server on addr until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server starting")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}

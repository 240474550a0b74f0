// Package server exposes the runtime over a websocket: every connection
// is a session with its own VM, and every text message is a chunk.
package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"wisp/internal/config"
	"wisp/internal/errors"
	"wisp/internal/vm"
)

// Factory builds the VM for a new session. It must apply opts after its
// own options: they route output into the reply and cut the session off
// from the process stdin and stderr.
type Factory func(session string, opts ...vm.Option) *vm.VM

// Reply is the JSON document sent for every chunk.
type Reply struct {
	Session string   `json:"session"`
	OK      bool     `json:"ok"`
	Results []string `json:"results,omitempty"`
	Output  string   `json:"output,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type Server struct {
	cfg      config.ServerConfig
	factory  Factory
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*websocket.Conn
}

func New(cfg config.ServerConfig, factory Factory, logger zerolog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		factory: factory,
		logger:  logger.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*websocket.Conn),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/eval", s.serveEval)
	return mux
}

// ListenAndServe listens on the configured address until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return pkgerrors.Wrapf(err, "listen %s", s.cfg.Addr)
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is done, then shuts down and
// closes the open sessions.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info().Str("addr", l.Addr().String()).Msg("listening")
		if err := srv.Serve(l); err != http.ErrServerClosed {
			return pkgerrors.Wrap(err, "serve")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.closeSessions()
		return err
	})
	return g.Wait()
}

// Sessions is the number of open sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, conn := range s.sessions {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		delete(s.sessions, id)
	}
}

func (s *Server) serveEval(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}
	if s.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(s.cfg.MaxMessageBytes)
	}

	session := uuid.NewString()
	log := s.logger.With().Str("session", session).Logger()
	s.mu.Lock()
	s.sessions[session] = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, session)
		s.mu.Unlock()
		conn.Close()
		log.Debug().Msg("session closed")
	}()
	log.Debug().Str("remote", r.RemoteAddr).Msg("session opened")

	var output bytes.Buffer
	machine := s.factory(session, sessionOptions(&output)...)

	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		output.Reset()
		reply := s.eval(machine, session, string(msg), &output)
		if err := conn.WriteJSON(reply); err != nil {
			log.Debug().Err(err).Msg("write failed")
			return
		}
	}
}

// sessionOptions isolates a session VM. Script output is collected for
// the reply and errors already travel in Reply.Error, so stderr is
// dropped. dofile() without a path sees an empty stdin, and
// collectgarbage cannot retune the collector for the whole process.
func sessionOptions(output io.Writer) []vm.Option {
	return []vm.Option{
		vm.WithStdout(output),
		vm.WithStderr(io.Discard),
		vm.WithStdin(bytes.NewReader(nil)),
		vm.WithGCTuning(false),
	}
}

func (s *Server) eval(machine *vm.VM, session, src string, output *bytes.Buffer) Reply {
	results, err := machine.DoString(src)
	reply := Reply{Session: session, OK: err == nil, Output: output.String()}
	if err != nil {
		if se, ok := errors.As(err); ok {
			reply.Error = se.Message
		} else {
			reply.Error = err.Error()
		}
		return reply
	}
	for _, r := range results {
		reply.Results = append(reply.Results, vm.ToString(r))
	}
	return reply
}

// Package server exposes sessions over websocket connections. Each
// connection owns one session for its lifetime.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xirelogy/go-wasmrepl"
	"github.com/xirelogy/go-wasmrepl/internal/transcript"
)

// Request is one client message. Reset runs before Source; either may be
// empty.
type Request struct {
	Source string `json:"source"`
	Reset  bool   `json:"reset"`
}

// Field is a materialized field as sent to clients.
type Field struct {
	Field    string  `json:"field"`
	Value    string  `json:"value"`
	Children []Field `json:"children,omitempty"`
}

// Response answers a Request.
type Response struct {
	Output []string `json:"output"`
	Result string   `json:"result,omitempty"`
	Fields []Field  `json:"fields,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Health is the body of /healthz.
type Health struct {
	Sessions int    `json:"sessions"`
	Memory   string `json:"memory"`
	Started  string `json:"started"`
}

type Options struct {
	// Session is the configuration of every connection's session.
	Session wasmrepl.Config
	// Store, when set, records every increment. A reset starts a new transcript session.
	Store *transcript.Store
	// MaxSessions bounds concurrent connections; zero is unlimited.
	MaxSessions int
	Logger      *zap.Logger
}

type Server struct {
	opts     Options
	logger   *zap.Logger
	upgrader websocket.Upgrader
	started  time.Time

	mu       sync.Mutex
	sessions map[string]*wasmrepl.Session
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	opts.Session.Output = nil
	return &Server{
		opts:   opts,
		logger: opts.Logger.Named("server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		started:  time.Now(),
		sessions: make(map[string]*wasmrepl.Session),
	}
}

// Handler routes /repl and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/repl", s.ServeRepl)
	mux.HandleFunc("/healthz", s.ServeHealth)
	return mux
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", zap.String("addr", addr))
	select {
	case err := <-errc:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Wrap(srv.Shutdown(shutdown), "shutdown")
	}
}

func (s *Server) register(id string, sess *wasmrepl.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opts.MaxSessions > 0 && len(s.sessions) >= s.opts.MaxSessions {
		return false
	}
	s.sessions[id] = sess
	return true
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// ServeRepl upgrades the request and evaluates messages until the client
// goes away.
func (s *Server) ServeRepl(w http.ResponseWriter, r *http.Request) {
	sess, err := wasmrepl.New(s.opts.Session)
	if err != nil {
		s.logger.Error("session", zap.Error(err))
		http.Error(w, "cannot create session", http.StatusInternalServerError)
		return
	}
	key := transcript.NewSession()
	defer sess.Close(context.Background())
	if !s.register(key, sess) {
		http.Error(w, "too many sessions", http.StatusServiceUnavailable)
		return
	}
	defer s.unregister(key)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &client{
		id:     key,
		sess:   sess,
		remote: r.RemoteAddr,
	}
	c.logger = s.logger.With(zap.String("session", c.id), zap.String("remote", c.remote))
	c.logger.Info("connected")
	ctx := r.Context()
	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("read", zap.Error(err))
			}
			c.logger.Info("disconnected")
			return
		}
		resp := s.handle(ctx, c, req)
		if err := conn.WriteJSON(resp); err != nil {
			c.logger.Warn("write", zap.Error(err))
			return
		}
	}
}

// client is the per-connection state. id is replaced on every reset.
type client struct {
	id     string
	sess   *wasmrepl.Session
	remote string
	logger *zap.Logger
}

func (s *Server) handle(ctx context.Context, c *client, req Request) Response {
	resp := Response{Output: []string{}}
	sess := c.sess
	if req.Reset {
		if err := sess.Reset(ctx); err != nil {
			resp.Error = err.Error()
			return resp
		}
		c.id = transcript.NewSession()
		c.logger = s.logger.With(zap.String("session", c.id), zap.String("remote", c.remote))
		c.logger.Info("reset")
	}
	if req.Source == "" {
		return resp
	}

	before := len(sess.Output())
	v, err := sess.Run(ctx, req.Source)
	if output := sess.Output(); before < len(output) {
		resp.Output = output[before:]
	}
	entry := transcript.Entry{Session: c.id, Source: req.Source, Output: resp.Output}
	if err != nil {
		resp.Error = err.Error()
		entry.Error = resp.Error
	} else {
		resp.Result = wasmrepl.RenderTop(v)
		entry.Result = resp.Result
		if v.IsObject() {
			nodes, err := sess.Inspect(v)
			if err != nil {
				resp.Error = err.Error()
			}
			resp.Fields = convertFields(nodes)
		}
	}
	if s.opts.Store != nil {
		if _, err := s.opts.Store.Record(ctx, entry); err != nil {
			c.logger.Warn("transcript write failed", zap.Error(err))
		}
	}
	return resp
}

func convertFields(nodes []wasmrepl.FieldNode) []Field {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]Field, len(nodes))
	for i, n := range nodes {
		out[i] = Field{Field: n.Field, Value: wasmrepl.RenderTop(n.Value)}
		if n.Branch {
			out[i].Children = convertFields(n.Children)
		}
	}
	return out
}

// ServeHealth reports the live sessions and their memory.
func (s *Server) ServeHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	sessions := make([]*wasmrepl.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	var total uint64
	for _, sess := range sessions {
		// a busy session is skipped rather than waited for
		if st, err := sess.Stats(); err == nil {
			total += uint64(st.MemoryBytes)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Health{
		Sessions: len(sessions),
		Memory:   humanize.IBytes(total),
		Started:  humanize.Time(s.started),
	})
}

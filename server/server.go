package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/wfunc/picword/broadcast"
	"github.com/wfunc/picword/logger"
	"github.com/wfunc/picword/network"
	"github.com/wfunc/picword/router"
	"github.com/wfunc/picword/session"
)

// ConnObserver counts live websocket sessions. monitor.Monitor satisfies it.
type ConnObserver interface {
	IncOnlinePlayers()
	DecOnlinePlayers()
}

type nopConns struct{}

func (nopConns) IncOnlinePlayers() {}
func (nopConns) DecOnlinePlayers() {}

type Options struct {
	Heartbeat      time.Duration
	AllowedOrigins []string
	Conns          ConnObserver
	// Broadcaster reaches every connected session on shutdown. Defaults to a
	// RoomBroadcaster over the server's sessions.
	Broadcaster broadcast.Broadcaster
}

// GameServer 对外的 HTTP + WebSocket 服务，所有操作都转交给 router
type GameServer struct {
	addr           string
	engine         *gin.Engine
	handler        http.Handler
	httpServer     *http.Server
	upgrader       websocket.Upgrader
	router         *router.Router
	sessionManager *session.Manager
	heartbeat      time.Duration
	conns          ConnObserver
	broadcaster    broadcast.Broadcaster
	shutdownChan   chan struct{}
	closeOnce      sync.Once
}

func NewGameServer(addr string, rt *router.Router, sessions *session.Manager, opts Options) *GameServer {
	if opts.Conns == nil {
		opts.Conns = nopConns{}
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = broadcast.NewRoomBroadcaster(sessions)
	}
	s := &GameServer{
		addr:           addr,
		router:         rt,
		sessionManager: sessions,
		heartbeat:      opts.Heartbeat,
		conns:          opts.Conns,
		broadcaster:    opts.Broadcaster,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
	s.engine = s.newEngine()
	s.handler = withCORS(s.engine, opts.AllowedOrigins)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(r *http.Request) bool {
			return true // 允许所有跨域请求
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// Handler exposes the routed handler, mainly for tests.
func (s *GameServer) Handler() http.Handler {
	return s.handler
}

func (s *GameServer) Start() error {
	logger.Log.Infof("Game server listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownNotice is sent to every session before the server closes it.
type ShutdownNotice struct {
	Type string `json:"type"`
}

// Shutdown stops accepting requests, tells every websocket session the
// server is going away and closes it. Hijacked connections are not tracked by
// http.Server, so they are closed here explicitly.
func (s *GameServer) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.shutdownChan) })

	notice, _ := json.Marshal(ShutdownNotice{Type: "server_shutdown"})
	if err := s.broadcaster.BroadcastToAll(network.MsgTypeServerNotice, notice); err != nil {
		logger.Log.Warnf("shutdown notice: %v", err)
	}
	for _, sess := range s.sessionManager.All() {
		_ = sess.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

package manager

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ListenerConfig describes one bound transport endpoint: a TCP host:port
// or a Unix-domain socket path, each with its own default permission
// masks and pre-authentication flag for trusted local sockets (spec
// §4.3.7). There is no per-listener event mask. Banner is recorded but
// not sent: every session greets with the fixed line
// "CallWeaver Call Manager/1.0" (see Session.Run).
type ListenerConfig struct {
	Network    string // "tcp" or "unix"
	Address    string
	Banner     string
	Preauth    bool
	ReadMask   Category
	WriteMask  Category
	QueueSize  int
}

// Server owns every bound manager listener and the shared dispatch table.
type Server struct {
	Listeners  []ListenerConfig
	Users      UserStore
	Challenger *Challenger
	Dispatch   *Dispatcher

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewServer constructs a manager server over the given listener set.
func NewServer(listeners []ListenerConfig, users UserStore, dispatch *Dispatcher) *Server {
	s := &Server{
		Listeners:  listeners,
		Users:      users,
		Challenger: NewChallenger(0),
		Dispatch:   dispatch,
		sessions:   make(map[*Session]struct{}),
	}
	dispatch.Chall = s.Challenger
	dispatch.Users = users
	dispatch.BroadcastFn = s.Broadcast
	return s
}

// Run binds every configured listener and serves connections until ctx
// is cancelled, at which point every listener and session is closed.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	var listeners []net.Listener

	for _, lc := range s.Listeners {
		ln, err := net.Listen(lc.Network, lc.Address)
		if err != nil {
			return err
		}
		listeners = append(listeners, ln)
		lc := lc
		g.Go(func() error {
			return s.acceptLoop(gctx, ln, lc)
		})
	}

	go func() {
		<-gctx.Done()
		for _, ln := range listeners {
			_ = ln.Close()
		}
	}()

	return g.Wait()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, lc ListenerConfig) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("manager accept error", "listener", lc.Address, "err", err)
			continue
		}
		sess := NewSession(conn, lc.QueueSize, lc.Preauth)
		if lc.Preauth {
			sess.Authenticate("", lc.ReadMask, lc.WriteMask)
		}
		s.track(sess)
		go func() {
			defer s.untrack(sess)
			sess.Run(ctx, s.Dispatch.Handle)
		}()
	}
}

func (s *Server) track(sess *Session) {
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}

// Broadcast fans an event out to every currently-eligible session,
// skipping serialization of the event body for sessions that are not
// eligible (spec §4.3.4, lazy construction).
func (s *Server) Broadcast(eb *EventBuilder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) == 0 {
		return
	}
	msg := eb.Build()
	for sess := range s.sessions {
		if sess.Eligible(eb.Category()) {
			sess.Enqueue(msg, false)
		}
	}
}

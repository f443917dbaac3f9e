package manager

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
)

// defaultQueueSize is manager.conf's `queuesize` default (spec §4.3.3).
const defaultQueueSize = 1024

// Session is one accepted manager connection: a reader goroutine parsing
// requests, a writer goroutine draining a bounded outgoing queue, and the
// permission/category state established at Login (spec §4.3.2-3).
type Session struct {
	conn net.Conn
	w    *bufio.Writer

	mu            sync.Mutex
	authenticated bool
	username      string
	readMask      Category
	writeMask     Category
	sendEvents    Category

	out      chan *Message
	qMax     int64
	qOverflow int64

	preauth bool // accepted on a pre-authenticated local listener (spec §4.3.7)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession wraps conn, sizing the outgoing queue to queueSize (0 uses
// the manager.conf default).
func NewSession(conn net.Conn, queueSize int, preauth bool) *Session {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Session{
		conn:    conn,
		w:       bufio.NewWriter(conn),
		out:     make(chan *Message, queueSize),
		preauth: preauth,
		done:    make(chan struct{}),
	}
}

// Enqueue appends a response or event to the outgoing queue without
// blocking. A response (critical=true) that finds the queue full closes
// the session; an event (critical=false) is dropped and counted in
// q_overflow on a full queue (spec §4.3.3).
func (s *Session) Enqueue(msg *Message, critical bool) {
	select {
	case s.out <- msg:
		s.recordDepth()
		return
	default:
	}
	if critical {
		slog.Warn("manager session response dropped, closing", "remote", s.conn.RemoteAddr())
		s.Close()
		return
	}
	atomic.AddInt64(&s.qOverflow, 1)
}

func (s *Session) recordDepth() {
	depth := int64(len(s.out))
	for {
		cur := atomic.LoadInt64(&s.qMax)
		if depth <= cur || atomic.CompareAndSwapInt64(&s.qMax, cur, depth) {
			return
		}
	}
}

// QMax and QOverflow report the high-water mark and total drop count
// for diagnostics (spec §8 invariant 10).
func (s *Session) QMax() int64      { return atomic.LoadInt64(&s.qMax) }
func (s *Session) QOverflow() int64 { return atomic.LoadInt64(&s.qOverflow) }

// Authenticate records successful login state and the resulting
// permission masks.
func (s *Session) Authenticate(username string, read, write Category) {
	s.mu.Lock()
	s.authenticated = true
	s.username = username
	s.readMask = read
	s.writeMask = write
	s.mu.Unlock()
}

// Authenticated reports whether Login has succeeded, or the session was
// accepted pre-authenticated (spec §4.3.7).
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated || s.preauth
}

// Authorize reports whether the session's write mask covers required.
func (s *Session) Authorize(required Category) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preauth {
		return true
	}
	return s.writeMask.Contains(required)
}

// SetSendEvents updates the session's event subscription mask (the
// Events action).
func (s *Session) SetSendEvents(mask Category) {
	s.mu.Lock()
	s.sendEvents = mask
	s.mu.Unlock()
}

// Eligible reports whether this session should receive an event of the
// given category: (read_perm & category) == category and
// (send_events & category) == category (spec §4.3.4).
func (s *Session) Eligible(category Category) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preauth && category == CatNone {
		return true
	}
	return s.readMask.Contains(category) && s.sendEvents.Contains(category)
}

// Run starts the writer goroutine and blocks, parsing requests from the
// connection and dispatching each to handle, until the connection closes
// or ctx is cancelled.
func (s *Session) Run(ctx context.Context, handle func(ctx context.Context, s *Session, req *Message)) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	go s.writeLoop(ctx)

	s.Enqueue(NewMessage().AddLine("CallWeaver Call Manager/1.0"), true)

	r := bufio.NewReader(s.conn)
	for {
		msg, err := ReadMessage(r)
		if err != nil {
			if err != io.EOF {
				slog.Debug("manager session read error", "err", err)
			}
			break
		}
		if !msg.Has("Action") {
			continue
		}
		handle(ctx, s, msg)
	}
	s.Close()
}

func (s *Session) writeLoop(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case msg, ok := <-s.out:
			if !ok {
				return
			}
			if _, err := s.w.WriteString(msg.Encode()); err != nil {
				return
			}
			if err := s.w.Flush(); err != nil {
				return
			}
		case <-ctx.Done():
			// drain remaining queued messages before exiting (spec
			// §4.3.3: writer "exits when ... the queue is drained").
			for {
				select {
				case msg := <-s.out:
					_, _ = s.w.WriteString(msg.Encode())
					_ = s.w.Flush()
				default:
					return
				}
			}
		}
	}
}

// Close terminates the session's reader/writer and underlying socket.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	_ = s.conn.Close()
}

package relay

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/andy6609/line-relay/internal/platform/retry"
)

const (
	DefaultAddr             = "127.0.0.1:8080"
	DefaultAcceptRetryLimit = 10
	DefaultAcceptBackoffMax = time.Second

	acceptBackoffMin = 5 * time.Millisecond
)

type Options struct {
	Addr             string
	MaxLineLength    int
	AcceptRetryLimit int           // consecutive accept failures before the loop gives up
	AcceptBackoffMax time.Duration // cap of the delay between failed accepts
	Clock            clockwork.Clock
}

func (o *Options) setDefaults() {
	if o.Addr == "" {
		o.Addr = DefaultAddr
	}
	if o.MaxLineLength <= 0 {
		o.MaxLineLength = DefaultMaxLineLength
	}
	if o.AcceptRetryLimit <= 0 {
		o.AcceptRetryLimit = DefaultAcceptRetryLimit
	}
	if o.AcceptBackoffMax <= 0 {
		o.AcceptBackoffMax = DefaultAcceptBackoffMax
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
}

// Server is the listener loop: it accepts sockets and hands each one, with
// a bus subscription taken before it was accepted, to its own Handler.
type Server struct {
	opts   Options
	bus    *Bus
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
	err    error
}

func NewServer(opts Options, bus *Bus, logger *slog.Logger) *Server {
	opts.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts:   opts,
		bus:    bus,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start binds the listen address and runs the accept loop in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.Serve(ln)
	return nil
}

// Serve runs the accept loop on an existing listener in the background.
func (s *Server) Serve(ln net.Listener) {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	go s.acceptLoop(ln)
	s.logger.Info("server started", "addr", ln.Addr().String())
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	ln := s.currentListener()
	if ln == nil {
		return nil
	}
	return ln.Addr()
}

func (s *Server) currentListener() net.Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener
}

// Done is closed when the accept loop has ended.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the accept loop, or nil if it ended
// because the server was stopped. Only valid after Done is closed.
func (s *Server) Err() error {
	return s.err
}

// Stop closes the listener and the bus, then waits until every handler has
// released its socket or ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down")

	s.cancel()
	ln := s.currentListener()
	if ln != nil {
		_ = ln.Close()
	}
	s.bus.Close()

	finished := make(chan struct{})
	go func() {
		// The accept loop may still be spawning a handler.
		if ln != nil {
			<-s.done
		}
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		s.logger.Info("shutdown complete")
		return nil
	case <-ctx.Done():
		s.logger.Warn("shutdown timed out", "error", ctx.Err())
		return ctx.Err()
	}
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer close(s.done)

	policy := retry.Policy{
		MaxAttempts:    s.opts.AcceptRetryLimit,
		InitialBackoff: acceptBackoffMin,
		MaxBackoff:     s.opts.AcceptBackoffMax,
		Clock:          s.opts.Clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			s.logger.Warn("accept failed, retrying", "error", err, "attempt", attempt, "backoff", backoff)
		},
	}
	classify := func(err error) retry.Action {
		if errors.Is(err, net.ErrClosed) {
			return retry.Stop
		}
		return retry.Retry
	}
	accept := func() (net.Conn, error) {
		conn, err := ln.Accept()
		if err != nil && !errors.Is(err, net.ErrClosed) {
			AcceptErrors.Inc()
		}
		return conn, err
	}

	// The next connection's subscription exists before Accept returns it, so
	// a client still waiting in the backlog already receives its peers' lines.
	pending := s.bus.Subscribe()
	defer func() { pending.Close() }()

	for {
		conn, err := retry.Do(s.ctx, policy, classify, accept)
		if err != nil {
			// A closed listener or cancelled context means Stop was called.
			if errors.Is(err, net.ErrClosed) || s.ctx.Err() != nil {
				return
			}
			s.err = err
			s.logger.Error("accept loop stopped", "error", err)
			return
		}
		// Replace the subscription before the handler can publish anything.
		sub := pending
		pending = s.bus.Subscribe()
		s.spawn(conn, sub)
	}
}

func (s *Server) spawn(conn net.Conn, sub *Subscription) {
	ConnectionsTotal.Inc()

	logger := s.logger.With(
		"remote_addr", conn.RemoteAddr().String(),
		"conn_id", uuid.NewString(),
	)
	logger.Info("client connected")

	h := NewHandler(conn, s.bus, sub, s.opts.MaxLineLength, logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = h.Run(s.ctx)
	}()
}

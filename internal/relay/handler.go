package relay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"
)

const DefaultMaxLineLength = 64 * 1024

// Handler owns one accepted connection. Its ingress loop publishes lines
// read from the socket; its egress loop writes other connections' lines to
// the socket. When either loop ends the socket is closed in both directions.
type Handler struct {
	conn    net.Conn
	id      Identity
	bus     *Bus
	sub     *Subscription
	maxLine int
	logger  *slog.Logger
}

// NewHandler binds conn to bus through sub. sub must already be subscribed
// so that lines published by peers while the handler starts are not missed.
func NewHandler(conn net.Conn, bus *Bus, sub *Subscription, maxLine int, logger *slog.Logger) *Handler {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		conn:    conn,
		id:      IdentityOf(conn),
		bus:     bus,
		sub:     sub,
		maxLine: maxLine,
		logger:  logger,
	}
}

// Run drives both loops until one of them ends, then releases the socket and
// the subscription. The returned error is the first unexpected loop failure;
// a peer hanging up or the bus closing is not an error.
func (h *Handler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer h.sub.Close()

	ConnectedClients.Inc()
	defer ConnectedClients.Dec()

	var once sync.Once
	teardown := func() {
		once.Do(func() {
			cancel()
			_ = h.conn.Close()
		})
	}
	// Closing the socket is the only way to unblock a pending Read or Write.
	stop := context.AfterFunc(ctx, teardown)
	defer stop()

	var g errgroup.Group
	g.Go(func() error {
		defer teardown()
		return h.ingress()
	})
	g.Go(func() error {
		defer teardown()
		return h.egress(ctx)
	})

	err := g.Wait()
	if err != nil {
		h.logger.Warn("connection failed", "error", err)
		return err
	}
	h.logger.Info("client disconnected")
	return nil
}

// ingress publishes every line read from the socket. A final line without a
// terminator is still published before end-of-stream.
func (h *Handler) ingress() error {
	reader := bufio.NewReaderSize(h.conn, h.maxLine)
	for {
		line, err := reader.ReadSlice('\n')
		if len(line) > 0 && (err == nil || err == io.EOF) {
			// string() copies out of the reader's buffer.
			h.bus.Publish(Message{Text: string(line), Origin: h.id})
		}

		switch {
		case err == nil:
		case err == io.EOF, isClosed(err):
			return nil
		case errors.Is(err, bufio.ErrBufferFull):
			return fmt.Errorf("read: %w (limit %d bytes)", ErrLineTooLong, h.maxLine)
		default:
			return fmt.Errorf("read: %w", err)
		}
	}
}

// isClosed reports whether err comes from using a connection that was
// already closed locally, which is how the sibling loop stops this one.
func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}

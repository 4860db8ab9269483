package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// egress writes bus messages to the socket in publish order. Messages that
// originate from this connection are filtered here, at delivery.
func (h *Handler) egress(ctx context.Context) error {
	for {
		msg, err := h.sub.Recv(ctx)
		if err != nil {
			if errors.Is(err, ErrBusClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		if msg.Origin == h.id {
			continue
		}

		if _, err := io.WriteString(h.conn, msg.Text); err != nil {
			if isClosed(err) {
				return nil
			}
			return fmt.Errorf("write: %w", err)
		}
		MessagesDelivered.Inc()
	}
}

package ipc

import (
	"context"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/odvcencio/autotap/pkg/logging"
	"github.com/odvcencio/autotap/pkg/telemetry"
)

const (
	wsPingInterval = 20 * time.Second
	wsPingTimeout  = 5 * time.Second
)

// handleEvents streams telemetry events as JSON text frames. The optional
// type query parameter keeps only events whose type has that prefix.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSpace(r.URL.Query().Get("type"))

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		_ = s.logger.Warn(logging.CategoryServer, "events.accept_failed", err.Error(), nil)
		return
	}
	conn.SetReadLimit(maxWSReadBytesEventStream)

	filter := func(event telemetry.Event) bool {
		return prefix == "" || strings.HasPrefix(string(event.Type), prefix)
	}

	c := s.hub.register(conn, filter)
	// Clients only listen; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := conn.CloseRead(r.Context())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	startWSPing(ctx, conn)

	if err := c.writeLoop(ctx); err != nil && ctx.Err() == nil {
		_ = s.logger.Warn(logging.CategoryServer, "events.write_failed", err.Error(), nil)
	}
	s.hub.removeClient(c)
	c.close(websocket.StatusNormalClosure, "shutdown")
}

func startWSPing(ctx context.Context, conn *websocket.Conn) {
	if conn == nil {
		return
	}
	ticker := time.NewTicker(wsPingInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, wsPingTimeout)
				_ = conn.Ping(pingCtx)
				cancel()
			}
		}
	}()
}

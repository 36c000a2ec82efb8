package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stolostron/qe-intelligence/pkg/agents"
	"github.com/stolostron/qe-intelligence/pkg/hub"
	"github.com/stolostron/qe-intelligence/pkg/models"
)

const (
	wsWriteTimeout = 5 * time.Second
	// wsBuffer bounds the per-connection backlog; a stalled client drops
	// messages rather than blocking the hub.
	wsBuffer = 64
)

// streamMessages upgrades to WebSocket and streams hub messages from the
// live run: the history so far, then new broadcast traffic as it happens.
// Without an active run the connection closes immediately after an info
// frame.
func (s *Server) streamMessages(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		// Monitoring surface on a trusted network; no origin allowlist.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	// CloseRead processes control frames and cancels the context when the
	// client goes away.
	ctx := conn.CloseRead(c.Request.Context())

	var active *hub.Hub
	if s.runtime != nil {
		active = s.runtime.ActiveHub()
	}
	if active == nil {
		_ = writeFrame(ctx, conn, gin.H{"type": "info", "message": "no active run"})
		conn.Close(websocket.StatusNormalClosure, "no active run")
		return
	}

	for _, msg := range active.GetMessageHistory(hub.HistoryFilter{}) {
		if err := writeFrame(ctx, conn, msg); err != nil {
			return
		}
	}

	// Live tail: broadcast status updates from here on. A full channel means
	// the client is too slow; dropping keeps agent delivery unaffected.
	updates := make(chan *models.Message, wsBuffer)
	subID := active.Subscribe("ws-"+uuid.New().String(), []string{agents.MsgStatusUpdate},
		func(m *models.Message) {
			select {
			case updates <- m:
			default:
			}
		})
	if subID == "" {
		// The phase ended between ActiveHub and Subscribe.
		conn.Close(websocket.StatusNormalClosure, "run phase ended")
		return
	}
	defer active.Unsubscribe(subID)

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case msg := <-updates:
			if err := writeFrame(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

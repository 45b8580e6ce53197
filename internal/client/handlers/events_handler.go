package handlers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
)

const (
	writeTimeout   = 10 * time.Second
	shutdownReason = "shutdown"
)

type EventsHandler struct {
	mgr TransferManager
}

func NewEventsHandler(mgr TransferManager) *EventsHandler {
	return &EventsHandler{mgr: mgr}
}

// Stream upgrades to a websocket and writes a FileView for every state change.
// The current state of every file is sent first.
func (h *EventsHandler) Stream(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		// Accept already replied
		slog.Warn("events accept", "error", err)
		return
	}
	defer conn.CloseNow()

	updates, unsubscribe := h.mgr.Subscribe()
	defer unsubscribe()

	// nothing is read from clients; CloseRead handles control frames and cancels on close
	ctx := conn.CloseRead(c.Request.Context())

	for _, view := range h.mgr.Files() {
		if err := write(ctx, conn, view); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case view, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusGoingAway, shutdownReason)
				return
			}
			if err := write(ctx, conn, view); err != nil {
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctxWrite, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err := wsjson.Write(ctxWrite, conn, v)
	if err != nil && !errors.Is(err, context.Canceled) && websocket.CloseStatus(err) == -1 {
		slog.Debug("events write", "error", err)
	}
	return err
}

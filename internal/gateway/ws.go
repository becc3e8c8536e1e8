package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// wsWriteTimeout bounds each frame written to a websocket client.
const wsWriteTimeout = 10 * time.Second

// handleChatWS serves GET /ws/chat. Each text frame carries a ChatRequest
// and is answered with a ChatResponse or an error frame. Turns on one
// connection run one at a time.
func (g *Gateway) handleChatWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The server's write deadline would otherwise cut long sessions.
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(time.Time{})
		_ = rc.SetWriteDeadline(time.Time{})

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: g.config.WebSocket.OriginPatterns,
		})
		if err != nil {
			g.logger.Warn("websocket accept failed", append(requestAttrs(r), "error", err)...)
			return
		}
		defer func() { _ = conn.CloseNow() }()
		conn.SetReadLimit(g.config.MaxBodyBytes)

		ctx := r.Context()
		key := "chat:" + clientIP(r)
		g.logger.Debug("websocket connected", "remote", clientIP(r))

		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				g.logWSClose(err)
				return
			}
			if typ != websocket.MessageText {
				_ = conn.Close(websocket.StatusUnsupportedData, "text frames only")
				return
			}

			var resp any
			var req ChatRequest
			switch {
			case g.chatLimiter.Allow(key) != nil:
				resp = errorResponse{Error: "too many requests"}
			case json.Unmarshal(data, &req) != nil:
				resp = errorResponse{Error: "invalid JSON body"}
			default:
				res, err := g.chat.HandleChat(ctx, req.text(), strings.TrimSpace(req.ConversationID))
				if err != nil {
					code, msg := chatStatus(err)
					if code >= http.StatusInternalServerError {
						g.logger.Error("websocket turn failed", append(requestAttrs(r), "error", err)...)
					}
					resp = errorResponse{Error: msg}
				} else {
					resp = g.chatResponse(res)
				}
			}

			if err := writeFrame(ctx, conn, resp); err != nil {
				g.logWSClose(err)
				return
			}
		}
	}
}

func writeFrame(parent context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(parent, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

func (g *Gateway) logWSClose(err error) {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		g.logger.Debug("websocket closed")
		return
	}
	if errors.Is(err, context.Canceled) {
		g.logger.Debug("websocket closed", "reason", "context canceled")
		return
	}
	g.logger.Warn("websocket closed", "error", err)
}

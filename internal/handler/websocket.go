package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"deal_room/internal/repository"
	"deal_room/internal/service"
	"deal_room/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxInboundSize = 512
)

// WebSocketHandler пересылает события комнаты и личные уведомления зрителя.
// Сокет только читает: все изменения идут через REST.
type WebSocketHandler struct {
	dealRoomService service.DealRoomService
	broadcast       repository.BroadcastRepository
	upgrader        websocket.Upgrader
	log             logger.Logger
}

func NewWebSocketHandler(dealRoomService service.DealRoomService, broadcast repository.BroadcastRepository, allowedOrigins []string, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		dealRoomService: dealRoomService,
		broadcast:       broadcast,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, a := range allowedOrigins {
					if a == "*" || a == origin {
						return true
					}
				}
				return false
			},
		},
		log: log,
	}
}

func (h *WebSocketHandler) HandleDealRoom(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}

	// Проверка участия до апгрейда, чтобы посторонний получил обычный 403
	if _, err := h.dealRoomService.GetDealRoom(c.Request.Context(), roomID, actor.UserID); err != nil {
		_ = c.Error(err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub := h.broadcast.Subscribe(ctx, repository.RoomChannel(roomID), repository.UserChannel(actor.UserID))
	defer sub.Close()

	h.log.Debug("Live updates connected", "room_id", roomID, "user_id", actor.UserID)
	go h.readLoop(conn, cancel)
	h.writeLoop(ctx, conn, sub.Envelopes())
	h.log.Debug("Live updates disconnected", "room_id", roomID, "user_id", actor.UserID)
}

// readLoop нужен только для pong и обнаружения закрытия.
func (h *WebSocketHandler) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Live updates connection dropped", "error", err)
			}
			return
		}
	}
}

func (h *WebSocketHandler) writeLoop(ctx context.Context, conn *websocket.Conn, envelopes <-chan repository.Envelope) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case envelope, ok := <-envelopes:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(envelope); err != nil {
				h.log.Warn("Failed to write live update", "error", err, "event", envelope.Event)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AnshRaj112/safezone-backend/internal/apperror"
	"github.com/AnshRaj112/safezone-backend/internal/middleware"
	"github.com/AnshRaj112/safezone-backend/internal/models"
	"github.com/AnshRaj112/safezone-backend/internal/services"
)

const (
	wsReadLimit    = 16 * 1024
	wsPongWait     = 90 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteWait    = 10 * time.Second
	maxRoomMessage = 4000
)

// Hub is the realtime fan-out the sockets attach to.
type Hub interface {
	Subscribe(channel string) *services.Subscription
	PublishRoom(ctx context.Context, roomID string, ev models.RealtimeEvent) error
}

type RealtimeHandler struct {
	rooms    Rooms
	hub      Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewRealtimeHandler only upgrades requests whose Origin is in allowedOrigins
// (or that carry no Origin, like native clients).
func NewRealtimeHandler(rooms Rooms, hub Hub, allowedOrigins []string, log *zap.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		rooms: rooms,
		hub:   hub,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, origin) {
						return true
					}
				}
				return false
			},
		},
	}
}

type roomClientMessage struct {
	Type string `json:"type"` // "message" or "ping"
	Text string `json:"text"`
}

// Room relays messages between the two participants of an active room.
// Nothing is persisted.
func (h *RealtimeHandler) Room(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())
	roomID := chi.URLParam(r, "roomID")

	room, err := h.rooms.Get(r.Context(), roomID, user.ID)
	if errors.Is(err, services.ErrNotFound) {
		middleware.WriteError(w, r, apperror.NotFound("Room not found"))
		return
	}
	if err != nil {
		middleware.WriteError(w, r, apperror.Provider("Failed to load room", err))
		return
	}
	if room.Status != models.RoomActive {
		middleware.WriteError(w, r, apperror.Conflict("Room is closed"))
		return
	}

	// Subscribe before the handshake completes so nothing published after
	// the client sees 101 is missed.
	sub := h.hub.Subscribe(services.RoomChannel(roomID))
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.writeLoop(ctx, cancel, conn, sub)

	h.readLoop(conn, func(data []byte) {
		var msg roomClientMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "message" {
			return
		}
		text := strings.TrimSpace(msg.Text)
		if text == "" || len([]rune(text)) > maxRoomMessage {
			return
		}
		ev := models.RealtimeEvent{
			Type:      models.EventRoomMessage,
			RoomID:    roomID,
			SenderID:  user.ID,
			Text:      text,
			CreatedAt: time.Now().UTC(),
		}
		if err := h.hub.PublishRoom(ctx, roomID, ev); err != nil {
			h.log.Warn("room publish failed", zap.String("room_id", roomID), zap.Error(err))
		}
	})
}

// Notifications streams events addressed to the caller, such as
// emergency_match for peers.
func (h *RealtimeHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())

	sub := h.hub.Subscribe(services.UserChannel(user.ID))
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.writeLoop(ctx, cancel, conn, sub)

	h.readLoop(conn, func([]byte) {})
}

// readLoop consumes client frames until the connection drops.
func (h *RealtimeHandler) readLoop(conn *websocket.Conn, handle func([]byte)) {
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		handle(data)
	}
}

// writeLoop is the only writer on conn. It forwards hub events and pings,
// and closes conn on exit so readLoop returns. A room_closed event ends the
// session.
func (h *RealtimeHandler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sub *services.Subscription) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	defer conn.Close()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.Type == models.EventRoomClosed {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room closed"),
					time.Now().Add(wsWriteWait))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

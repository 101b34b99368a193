package realtime

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/namimod25/toko-online/internal/infrastructure/logging"
	"github.com/namimod25/toko-online/internal/infrastructure/ratelimiter"
	"github.com/namimod25/toko-online/internal/infrastructure/ws"
	"github.com/namimod25/toko-online/pkg/catalog"
)

type Handler struct {
	registry *ws.Registry
	upgrader *websocket.Upgrader
	client   ws.ClientConfig
	limiter  ratelimiter.Limiter
	logger   logging.Logger
}

func NewHandler(
	registry *ws.Registry,
	upgrader *websocket.Upgrader,
	client ws.ClientConfig,
	limiter ratelimiter.Limiter,
	logger logging.Logger,
) *Handler {
	return &Handler{
		registry: registry,
		upgrader: upgrader,
		client:   client,
		limiter:  limiter,
		logger:   logger,
	}
}

// ServeWS godoc
// @Summary      Real-time catalog feed
// @Description  Upgrades to a WebSocket. The connection starts in the global room; send
// @Description  {"action":"join-room","room":"product:42"} to follow one product.
// @Tags         realtime
// @Success      101
// @Router       /realtime [get]
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn(logging.Realtime, logging.Connection, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.ClientIp:     r.RemoteAddr,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	id := uuid.NewString()
	client := ws.NewClient(conn, id, h.client, h.logger)

	h.registry.Register(id, client)
	defer func() {
		h.registry.Unregister(id)
		h.limiter.Forget(id)
	}()

	go client.WritePump()

	h.reply(client, catalog.ConnectedChannel, "", catalog.ConnectedPayload{ConnectionID: id})
	_ = h.registry.Join(id, catalog.GlobalRoom)

	h.logger.Info(logging.Realtime, logging.Connection, "client connected", map[logging.ExtraKey]any{
		logging.ConnectionID: id,
		logging.ClientIp:     r.RemoteAddr,
	})

	client.ReadPump(func(raw []byte) {
		h.handleControl(client, raw)
	})

	h.logger.Info(logging.Realtime, logging.Connection, "client disconnected", map[logging.ExtraKey]any{
		logging.ConnectionID: id,
	})
}

func (h *Handler) handleControl(client *ws.Client, raw []byte) {
	if !h.limiter.Allow(client.ID) {
		h.replyError(client, "", catalog.CodeRateLimited, "too many control messages", true)
		return
	}

	var msg catalog.ControlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.replyError(client, "", catalog.CodeInvalidMessage, "malformed control message", false)
		return
	}

	switch msg.Action {
	case catalog.PingAction:
		h.reply(client, catalog.PongChannel, "", nil)

	case catalog.JoinRoomAction:
		if _, _, err := catalog.ParseRoom(msg.Room); err != nil {
			h.replyError(client, msg.Room, catalog.CodeInvalidRoom, err.Error(), false)
			return
		}
		if err := h.registry.Join(client.ID, msg.Room); err != nil {
			return
		}
		h.logger.Debug(logging.Realtime, logging.Subscription, "room joined", map[logging.ExtraKey]any{
			logging.ConnectionID: client.ID,
			logging.Room:         msg.Room,
		})
		h.reply(client, catalog.RoomJoinedChannel, msg.Room, catalog.RoomPayload{Room: msg.Room})

	case catalog.LeaveRoomAction:
		if _, _, err := catalog.ParseRoom(msg.Room); err != nil {
			h.replyError(client, msg.Room, catalog.CodeInvalidRoom, err.Error(), false)
			return
		}
		if err := h.registry.Leave(client.ID, msg.Room); err != nil {
			return
		}
		h.logger.Debug(logging.Realtime, logging.Subscription, "room left", map[logging.ExtraKey]any{
			logging.ConnectionID: client.ID,
			logging.Room:         msg.Room,
		})
		h.reply(client, catalog.RoomLeftChannel, msg.Room, catalog.RoomPayload{Room: msg.Room})

	default:
		h.replyError(client, msg.Room, catalog.CodeInvalidMessage, "unknown action "+msg.Action, false)
	}
}

// reply goes through the same queue as catalog events, so an ack is always seen
// before any event that depends on it.
func (h *Handler) reply(client *ws.Client, channel, room string, payload any) {
	msg, err := catalog.NewMessage(channel, room, payload)
	if err != nil {
		h.logger.Error(logging.Realtime, logging.Delivery, "failed to encode reply", map[logging.ExtraKey]any{
			logging.Channel:      channel,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	frame, err := json.Marshal(msg)
	if err != nil {
		return
	}

	if err := client.Send(frame); err != nil {
		h.logger.Warn(logging.Realtime, logging.Delivery, "failed to send reply", map[logging.ExtraKey]any{
			logging.ConnectionID: client.ID,
			logging.Channel:      channel,
			logging.ErrorMessage: err.Error(),
		})
	}
}

func (h *Handler) replyError(client *ws.Client, room, code, message string, retry bool) {
	h.reply(client, catalog.ErrorChannel, room, catalog.ErrorPayload{
		Code:    code,
		Message: message,
		Retry:   retry,
	})
}

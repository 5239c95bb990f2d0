package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/sitepulse/internal/auth"
	"github.com/isdelr/sitepulse/internal/models"
	ws "github.com/isdelr/sitepulse/internal/websocket"
)

// WebSocketHandler upgrades dashboard connections and serves live snapshots.
type WebSocketHandler struct {
	hub           *ws.Hub
	publisher     *ws.Publisher
	telemetry     TelemetryProvider
	authenticator *auth.Authenticator
	upgrader      websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. Connections are accepted
// from allowedOrigins only; "*" accepts any origin.
func NewWebSocketHandler(hub *ws.Hub, publisher *ws.Publisher, t TelemetryProvider, authenticator *auth.Authenticator, allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:           hub,
		publisher:     publisher,
		telemetry:     t,
		authenticator: authenticator,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Serve handles the WebSocket connection request.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	// Support both /ws/{name} and /ws routes.
	topic := chi.URLParam(r, "name")
	if topic == "" {
		topic = ws.GlobalTopic
	} else if _, ok := h.telemetry.Monitor(topic); !ok {
		http.Error(w, "Monitor not found", http.StatusNotFound)
		return
	}

	canWrite := h.canWrite(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn, topic)
	client.CanWrite = canWrite
	h.hub.Register <- client
	h.sendCurrent(client, topic)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		client.WritePump()
	}()
	go func() {
		defer wg.Done()
		client.ReadPump(h.handleIncomingWSMessage)
	}()

	// Cleanup on disconnect.
	go func() {
		wg.Wait()
		h.hub.Unregister <- client
	}()
}

func (h *WebSocketHandler) canWrite(r *http.Request) bool {
	if !h.authenticator.Enabled() {
		return true
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		if c, err := r.Cookie("token"); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		return false
	}
	_, err := h.authenticator.Validate(token)
	return err == nil
}

// sendCurrent pushes the present snapshot so the dashboard renders before the next change.
func (h *WebSocketHandler) sendCurrent(client *ws.Client, topic string) {
	names := []string{topic}
	if topic == ws.GlobalTopic {
		names = names[:0]
		for _, m := range h.telemetry.Monitors() {
			names = append(names, m.Name())
		}
	}
	for _, name := range names {
		if msg, ok := h.publisher.Current(name); ok {
			client.Reply(msg)
		}
	}
}

// handleIncomingWSMessage processes messages received from a websocket client.
func (h *WebSocketHandler) handleIncomingWSMessage(client *ws.Client, message []byte) {
	var msg ws.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Error().Err(err).Bytes("message", message).Msg("Error decoding websocket message")
		client.Reply(ws.NewErrorMessage("Invalid message"))
		return
	}

	m, ok := h.telemetry.Monitor(msg.Monitor)
	if !ok {
		client.Reply(ws.NewErrorMessage("Unknown monitor: " + msg.Monitor))
		return
	}

	switch msg.Action {
	case "subscribe":
		h.hub.Subscribe(client, m.Name())
		if current, ok := h.publisher.Current(m.Name()); ok {
			client.Reply(current)
		}

	case "unsubscribe":
		h.hub.Unsubscribe(client, m.Name())
		client.Reply(ws.NewMessage(ws.ActionAck, m.Name(), map[string]string{"action": msg.Action}))

	case "record":
		var req models.RecordRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			client.Reply(ws.NewErrorMessage("Invalid record payload"))
			return
		}
		event, err := m.Ingest(req)
		if err != nil {
			log.Warn().Err(err).Str("monitor", m.Name()).Msg("Rejected websocket payload")
			client.Reply(ws.NewErrorMessage(err.Error()))
			return
		}
		client.Reply(ws.NewMessage(ws.ActionRecorded, m.Name(), event))

	case "clear":
		if !client.CanWrite {
			client.Reply(ws.NewErrorMessage("Not authorized to clear monitors"))
			return
		}
		m.Clear()
		log.Info().Str("monitor", m.Name()).Msg("Monitor cleared over websocket")
		client.Reply(ws.NewMessage(ws.ActionAck, m.Name(), map[string]string{"action": msg.Action}))

	default:
		log.Warn().Str("action", msg.Action).Msg("Unknown websocket action received")
		client.Reply(ws.NewErrorMessage("Unknown action: " + msg.Action))
	}
}

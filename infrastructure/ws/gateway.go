// Package ws exposes the chat engine over a websocket endpoint plus a
// small REST surface for rooms, history, and search.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/runtime"
	"chat-hub/services"
	"chat-hub/sink"
)

const writeTimeout = 10 * time.Second

// Gateway owns the HTTP surface. Each websocket connection gets a ConnSink
// registered in the runtime registry; the fanout pushes events into it and
// the connection's write pump serializes them onto the wire.
type Gateway struct {
	log                  *slog.Logger
	service              *services.ChatService
	registry             *runtime.Registry
	validate             *validator.Validate
	upgrader             websocket.Upgrader
	connectionBufferSize int
}

func NewGateway(log *slog.Logger, service *services.ChatService,
	registry *runtime.Registry, allowedOrigins []string,
	connectionBufferSize int) *Gateway {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return &Gateway{
		log:      log,
		service:  service,
		registry: registry,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
		connectionBufferSize: connectionBufferSize,
	}
}

func (g *Gateway) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/rooms", g.handleListRooms).Methods("GET")
	r.HandleFunc("/rooms", g.handleCreateRoom).Methods("POST")
	r.HandleFunc("/rooms/{id}/messages", g.handleGetMessages).Methods("GET")
	r.HandleFunc("/rooms/{id}/search", g.handleSearch).Methods("GET")

	r.HandleFunc("/ws", g.handleWebSocket).Methods("GET")

	return r
}

// client pairs the raw socket with its event sink and an outbound lane for
// frames produced by the read loop (errors, acks). All writes go through
// the write pump so only one goroutine touches the socket.
type client struct {
	connectionID string
	conn         *websocket.Conn
	sink         *sink.ConnSink
	outbound     chan Envelope
}

func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		connectionID: uuid.NewString(),
		conn:         conn,
		sink:         sink.NewConnSink(g.log, g.connectionBufferSize),
		outbound:     make(chan Envelope, g.connectionBufferSize),
	}
	g.registry.Register(c.connectionID, c.sink)
	g.log.Info("Websocket connection opened", "connection_id", c.connectionID)

	ctx, cancel := context.WithCancel(r.Context())
	go g.writePump(ctx, c)

	g.readLoop(ctx, c)

	cancel()
	g.service.Disconnect(c.connectionID)
	_ = conn.Close()
	g.log.Info("Websocket connection closed", "connection_id", c.connectionID)
}

func (g *Gateway) readLoop(ctx context.Context, c *client) {
	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Warn("Websocket read failed", "connection_id", c.connectionID, "error", err)
			}
			return
		}
		g.dispatchFrame(ctx, c, env)
	}
}

func (g *Gateway) dispatchFrame(ctx context.Context, c *client, env Envelope) {
	switch env.Event {
	case EventJoinRoom:
		var p JoinRoomPayload
		if !g.decode(c, env.Payload, &p) {
			return
		}
		if _, err := g.service.JoinRoom(c.connectionID, p.Username, domain.RoomID(p.RoomID)); err != nil {
			g.sendError(c, err)
		}
	case EventSendMessage:
		var p SendMessagePayload
		if !g.decode(c, env.Payload, &p) {
			return
		}
		if _, err := g.service.PostMessage(ctx, c.connectionID, p.Content); err != nil {
			g.sendError(c, err)
		}
	case EventTyping:
		if err := g.service.Typing(c.connectionID); err != nil {
			g.sendError(c, err)
		}
	case EventStopTyping:
		if err := g.service.StopTyping(c.connectionID); err != nil {
			g.sendError(c, err)
		}
	case EventMessageSeen:
		if err := g.service.MarkSeen(ctx, c.connectionID); err != nil {
			g.sendError(c, err)
		}
	default:
		g.sendErrorMessage(c, "unknown event: "+env.Event)
	}
}

// decode unmarshals and validates an inbound payload, reporting problems
// to the client itself.
func (g *Gateway) decode(c *client, raw json.RawMessage, target any) bool {
	if err := json.Unmarshal(raw, target); err != nil {
		g.sendErrorMessage(c, "malformed payload")
		return false
	}
	if err := g.validate.Struct(target); err != nil {
		g.sendError(c, err)
		return false
	}
	return true
}

func (g *Gateway) writePump(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-c.sink.Events:
			env, ok := g.translate(evt)
			if !ok {
				continue
			}
			if !g.write(c, env) {
				return
			}
		case env := <-c.outbound:
			if !g.write(c, env) {
				return
			}
		}
	}
}

func (g *Gateway) write(c *client, env Envelope) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(env); err != nil {
		g.log.Warn("Websocket write failed", "connection_id", c.connectionID, "error", err)
		return false
	}
	return true
}

// translate maps a broadcast domain event onto its wire frame.
func (g *Gateway) translate(evt event.DomainEvent) (Envelope, bool) {
	switch e := evt.(type) {
	case event.UserJoined:
		return envelope(EventUserJoined, UserJoinedPayload{
			Username: e.User.Username,
			RoomID:   string(e.Room),
			Members:  g.service.MembersOf(e.Room),
			At:       e.At.UTC().Format(time.RFC3339),
		})
	case event.MessagePosted:
		return envelope(EventNewMessage, toNewMessagePayload(e.Message))
	case event.TypingStarted:
		return envelope(EventTyping, TypingPayload{Username: e.Username, RoomID: string(e.Room)})
	case event.TypingStopped:
		return envelope(EventStopTyping, TypingPayload{Username: e.Username, RoomID: string(e.Room)})
	case event.MessagesSeen:
		return envelope(EventMessagesSeen, MessagesSeenPayload{RoomID: string(e.Room), UserID: e.UserID})
	case event.UserOffline:
		return envelope(EventUserOffline, UserOfflinePayload{Username: e.Username})
	default:
		return Envelope{}, false
	}
}

func envelope(name string, payload any) (Envelope, bool) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, false
	}
	return Envelope{Event: name, Payload: data}, true
}

func (g *Gateway) sendError(c *client, err error) {
	g.sendErrorMessage(c, err.Error())
}

func (g *Gateway) sendErrorMessage(c *client, message string) {
	env, ok := envelope(EventError, ErrorPayload{Message: message})
	if !ok {
		return
	}
	select {
	case c.outbound <- env:
	default:
		g.log.Debug("Outbound buffer full, dropping error frame",
			"connection_id", c.connectionID)
	}
}

func (g *Gateway) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	rooms, err := g.service.ListRooms()
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, RoomResponse{ID: string(room.ID), Name: room.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (g *Gateway) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	if err := g.validate.Struct(req); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	room, err := g.service.CreateRoom(req.Name)
	if err != nil {
		httpError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusCreated, RoomResponse{ID: string(room.ID), Name: room.Name})
}

func (g *Gateway) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	roomID := domain.RoomID(mux.Vars(r)["id"])

	var cursor *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor = &raw
	}

	messages, next, err := g.service.GetMessages(roomID, cursor)
	if err != nil {
		httpError(w, http.StatusNotFound, err)
		return
	}
	page := MessagePageResponse{Cursor: next, Messages: make([]MessageResponse, 0, len(messages))}
	for _, m := range messages {
		page.Messages = append(page.Messages, toMessageResponse(m))
	}
	writeJSON(w, http.StatusOK, page)
}

func (g *Gateway) handleSearch(w http.ResponseWriter, r *http.Request) {
	roomID := domain.RoomID(mux.Vars(r)["id"])
	terms := r.URL.Query().Get("q")
	if terms == "" {
		httpError(w, http.StatusBadRequest, errors.ErrMissingQuery)
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	hits, err := g.service.SearchMessages(r.Context(), roomID, terms, limit)
	if err != nil {
		httpError(w, http.StatusNotFound, err)
		return
	}
	out := make([]SearchHitResponse, 0, len(hits))
	for _, hit := range hits {
		out = append(out, SearchHitResponse{
			MessageID: hit.MessageID,
			RoomID:    hit.Room,
			Username:  hit.Username,
			Content:   hit.Content,
			At:        hit.At,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func httpError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorPayload{Message: err.Error()})
}

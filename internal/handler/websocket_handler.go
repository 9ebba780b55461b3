// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tachymeter-service/internal/model"
	"tachymeter-service/internal/service"
	"tachymeter-service/internal/utils"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// WebSocketHandler streams instrument and measurement events to clients
type WebSocketHandler struct {
	upgrader          websocket.Upgrader
	connections       *ConnectionManager
	instrumentService *service.InstrumentService
	eventBus          *EventBus
	logger            *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler. Events published on
// eventBus are forwarded until the bus is closed.
func NewWebSocketHandler(
	instrumentService *service.InstrumentService,
	eventBus *EventBus,
	allowedOrigins []string,
	logger *zap.Logger,
) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(allowedOrigins, r.Header.Get("Origin"))
		},
	}

	handler := &WebSocketHandler{
		upgrader:          upgrader,
		connections:       NewConnectionManager(),
		instrumentService: instrumentService,
		eventBus:          eventBus,
		logger:            utils.NewServiceLogger(logger, "websocket-handler"),
	}

	go handler.forwardEvents(eventBus.Subscribe(AllEvents))

	return handler
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	// All instrument and run events
	router.GET("/events", h.HandleEventConnection)

	// Events of a single measurement run
	router.GET("/runs/:run_id", h.HandleRunConnection)
}

// HandleEventConnection handles general event WebSocket connections
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	client := h.upgrade(c, "events", nil)
	if client == nil {
		return
	}

	h.logger.Info("Event WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	go h.sendInitialStatus(client)
	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// HandleRunConnection handles WebSocket connections following one run
func (h *WebSocketHandler) HandleRunConnection(c *gin.Context) {
	runID := c.Param("run_id")
	if _, err := uuid.Parse(runID); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid run ID", err)
		return
	}

	client := h.upgrade(c, "run", &runID)
	if client == nil {
		return
	}

	h.logger.Info("Run WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("run_id", runID),
	)

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// upgrade upgrades the request and registers the client
func (h *WebSocketHandler) upgrade(c *gin.Context, clientType string, runID *string) *Client {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return nil
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		Type:        clientType,
		RunID:       runID,
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.connections.Register(client)
	return client
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
	}()

	client.Connection.SetReadDeadline(time.Now().Add(pongWait))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			break
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.logger.Error("Failed to parse WebSocket message",
				zap.Error(err),
				zap.String("client_id", client.ID),
			)
			h.sendError(client, "invalid message")
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "subscribe":
		h.handleSubscription(client, message, true)
	case "unsubscribe":
		h.handleSubscription(client, message, false)
	case "instrument_command":
		h.handleInstrumentCommand(client, message)
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	default:
		h.logger.Warn("Unknown message type",
			zap.String("type", message.Type),
			zap.String("client_id", client.ID),
		)
		h.sendError(client, fmt.Sprintf("unknown message type: %s", message.Type))
	}
}

// handleSubscription narrows or widens the event types a client receives
func (h *WebSocketHandler) handleSubscription(client *Client, message *WebSocketMessage, subscribe bool) {
	data, ok := message.Data.(map[string]interface{})
	if !ok {
		h.sendError(client, "topic is required")
		return
	}
	topic, ok := data["topic"].(string)
	if !ok || topic == "" {
		h.sendError(client, "topic is required")
		return
	}

	if !subscribe {
		client.Unsubscribe(topic)
		h.logger.Info("Client unsubscribed from topic",
			zap.String("client_id", client.ID),
			zap.String("topic", topic),
		)
		return
	}

	client.Subscribe(topic)
	h.logger.Info("Client subscribed to topic",
		zap.String("client_id", client.ID),
		zap.String("topic", topic),
	)

	h.sendMessage(client, &WebSocketMessage{
		Type: "subscription_confirmed",
		Data: map[string]interface{}{
			"topic": topic,
		},
		Timestamp: time.Now(),
		RequestID: message.RequestID,
	})
}

// handleInstrumentCommand handles instrument command messages
func (h *WebSocketHandler) handleInstrumentCommand(client *Client, message *WebSocketMessage) {
	data, ok := message.Data.(map[string]interface{})
	if !ok {
		h.sendError(client, "invalid command data")
		return
	}

	command, ok := data["command"].(string)
	if !ok {
		h.sendError(client, "command is required")
		return
	}

	go h.executeInstrumentCommand(client, command, message.RequestID)
}

// executeInstrumentCommand executes an instrument command
func (h *WebSocketHandler) executeInstrumentCommand(client *Client, command, requestID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	var result interface{}

	switch command {
	case "status":
		result = h.instrumentService.Status()

	case "connect":
		result, err = h.instrumentService.Connect(ctx, nil, client.RemoteAddr)

	case "disconnect":
		err = h.instrumentService.Disconnect(ctx, client.RemoteAddr)
		result = map[string]interface{}{"disconnected": err == nil}

	case "toggle_face":
		err = h.instrumentService.ToggleFace(ctx)
		result = map[string]interface{}{"toggled": err == nil}

	case "health":
		result, err = h.instrumentService.CheckHealth(ctx)

	default:
		h.sendError(client, fmt.Sprintf("unknown command: %s", command))
		return
	}

	response := map[string]interface{}{
		"command": command,
		"success": err == nil,
		"result":  result,
	}
	if err != nil {
		response["error"] = err.Error()
	}

	h.sendMessage(client, &WebSocketMessage{
		Type:      "command_response",
		Data:      response,
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// sendInitialStatus sends the current instrument state to a new client
func (h *WebSocketHandler) sendInitialStatus(client *Client) {
	h.sendMessage(client, &WebSocketMessage{
		Type:      "initial_status",
		Data:      h.instrumentService.Status(),
		Timestamp: time.Now(),
	})
}

// sendMessage sends a message to a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	dropped := h.connections.Deliver(func(c *Client) bool { return c.ID == client.ID }, messageBytes)
	if len(dropped) > 0 {
		h.logger.Warn("Client send channel full, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

// sendError sends an error message to a client
func (h *WebSocketHandler) sendError(client *Client, errorMsg string) {
	h.sendMessage(client, &WebSocketMessage{
		Type: "error",
		Data: map[string]interface{}{
			"error": errorMsg,
		},
		Timestamp: time.Now(),
	})
}

// forwardEvents relays bus events until the subscription is closed
func (h *WebSocketHandler) forwardEvents(events <-chan *model.InstrumentEvent) {
	for event := range events {
		h.BroadcastEvent(event)
	}
	h.connections.Stop()
}

// BroadcastEvent sends an event to event clients that want it and, for run
// events, to clients following that run
func (h *WebSocketHandler) BroadcastEvent(event *model.InstrumentEvent) {
	messageBytes, err := json.Marshal(&WebSocketMessage{
		Type:      "instrument_event",
		Data:      event,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	eventType := string(event.EventType)
	dropped := h.connections.Deliver(func(c *Client) bool {
		if c.Type == "run" {
			return event.RunID != nil && c.RunID != nil && *c.RunID == event.RunID.String()
		}
		return c.Wants(eventType)
	}, messageBytes)

	for _, id := range dropped {
		h.logger.Warn("Client send channel full during broadcast",
			zap.String("client_id", id),
			zap.String("event_type", eventType),
		)
	}
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}

// originAllowed accepts requests without an Origin header and any origin
// when the list is empty or contains "*"
func originAllowed(allowed []string, origin string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

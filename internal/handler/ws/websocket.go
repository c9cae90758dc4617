package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/course-advisor/backend/internal/model/chat"
	"github.com/zhouzirui/course-advisor/backend/internal/service/advisor"
	chatservice "github.com/zhouzirui/course-advisor/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// WebSocketHandler 顾问对话的WebSocket处理器
type WebSocketHandler struct {
	advisorSvc  *advisor.Service
	chatSvc     *chatservice.Service
	streaming   bool
	readTimeout time.Duration
	upgrader    websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(advisorSvc *advisor.Service, chatSvc *chatservice.Service, streaming bool) *WebSocketHandler {
	return &WebSocketHandler{
		advisorSvc:  advisorSvc,
		chatSvc:     chatSvc,
		streaming:   streaming,
		readTimeout: readTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

// ConfigMessage 配置消息, 切换上下文模式或模型
type ConfigMessage struct {
	Mode       *chat.Mode `json:"mode,omitempty"`
	Model      *string    `json:"model,omitempty"`
	StreamMode *bool      `json:"streamMode,omitempty"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// connection serializes writes; gorilla connections allow one concurrent writer.
type connection struct {
	mu         sync.Mutex
	conn       *websocket.Conn
	sessionID  string
	streamMode bool
}

func (c *connection) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	if h.chatSvc == nil || h.advisorSvc == nil {
		http.Error(w, "advisor unavailable", http.StatusServiceUnavailable)
		return
	}

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer wsConn.Close()

	conn := &connection{conn: wsConn, sessionID: sessionID, streamMode: h.streaming}
	log.Printf("[websocket] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.extendReadDeadline(wsConn)
	wsConn.SetPongHandler(func(string) error {
		h.extendReadDeadline(wsConn)
		return nil
	})

	go h.pingLoop(ctx, conn)

	h.sendInfo(conn, map[string]any{
		"type":  "connected",
		"mode":  session.Mode,
		"model": session.ModelID,
	})

	for {
		var msg inboundMessage
		if err := wsConn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(conn, "session mismatch")
			h.extendReadDeadline(wsConn)
			continue
		}

		// 问答可能跨越多次模型调用, 处理完成后再重新计时, 否则下一次读取会直接超时
		h.handleMessage(ctx, conn, &msg)
		h.extendReadDeadline(wsConn)
	}
}

func (h *WebSocketHandler) extendReadDeadline(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(h.readTimeout))
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *connection, msg *inboundMessage) {
	switch msg.Type {
	case "text":
		h.handleTextMessage(ctx, conn, msg.Data)
	case "config":
		h.handleConfigMessage(ctx, conn, msg.Data)
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) handleTextMessage(ctx context.Context, conn *connection, raw json.RawMessage) {
	var text TextMessage
	if err := json.Unmarshal(raw, &text); err != nil {
		h.sendError(conn, "invalid text payload")
		return
	}

	h.sendInfo(conn, map[string]any{
		"type": "user",
		"text": text.Text,
	})

	var opts []advisor.AskOption
	if conn.streamMode {
		opts = append(opts, advisor.WithDeltaHandler(func(delta string) {
			h.sendInfo(conn, map[string]any{
				"type": "ai_delta",
				"text": delta,
			})
		}))
	}

	reply, err := h.advisorSvc.Ask(ctx, conn.sessionID, text.Text, opts...)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}

	h.sendInfo(conn, map[string]any{
		"type":       "ai",
		"text":       reply.Turn.Content,
		"isFinal":    true,
		"failed":     reply.Failed,
		"summarized": reply.Summarized,
	})
}

func (h *WebSocketHandler) handleConfigMessage(ctx context.Context, conn *connection, raw json.RawMessage) {
	var cfg ConfigMessage
	if err := json.Unmarshal(raw, &cfg); err != nil {
		h.sendError(conn, "invalid config payload")
		return
	}

	session, err := h.applyConfig(ctx, conn, cfg)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}

	log.Printf("[websocket] config applied session=%s mode=%s model=%s", conn.sessionID, session.Mode, session.ModelID)

	h.sendInfo(conn, map[string]any{
		"type":       "config",
		"mode":       session.Mode,
		"model":      session.ModelID,
		"streamMode": conn.streamMode,
	})
}

func (h *WebSocketHandler) applyConfig(ctx context.Context, conn *connection, cfg ConfigMessage) (chat.Session, error) {
	if cfg.StreamMode != nil {
		conn.streamMode = *cfg.StreamMode
	}
	if cfg.Mode == nil && cfg.Model == nil {
		return h.chatSvc.GetSession(ctx, conn.sessionID)
	}
	return h.chatSvc.UpdateSession(ctx, conn.sessionID, chatservice.SessionUpdate{
		Mode:    cfg.Mode,
		ModelID: cfg.Model,
	})
}

func (h *WebSocketHandler) sendInfo(conn *connection, data map[string]any) {
	msg := outgoingMessage{
		Type:      "result",
		SessionID: conn.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := conn.writeJSON(msg); err != nil {
		log.Printf("[websocket] write info failed: %v", err)
	}
}

func (h *WebSocketHandler) sendError(conn *connection, message string) {
	msg := outgoingMessage{
		Type:      "error",
		SessionID: conn.sessionID,
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := conn.writeJSON(msg); err != nil {
		log.Printf("[websocket] write error failed: %v", err)
	}
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *connection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

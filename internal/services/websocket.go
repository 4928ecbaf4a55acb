package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"bomflow/internal/automation"
	"bomflow/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ErrHubStopped 通知中心未运行或已停止
var ErrHubStopped = errors.New("notification hub is not running")

type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type WebSocketClient struct {
	ID        string
	Recipient string // 为空时接收全部通知
	Conn      *websocket.Conn
	Send      chan WebSocketMessage
	Hub       *NotificationHub
}

type notificationEnvelope struct {
	message    WebSocketMessage
	recipients []string
}

// NotificationHub 通过 websocket 推送 NOTIFY 触发器产生的通知
type NotificationHub struct {
	clients    map[string]*WebSocketClient
	broadcast  chan notificationEnvelope
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	done       chan struct{}
	running    bool
	mutex      sync.RWMutex

	upgrader     websocket.Upgrader
	sendBuffer   int
	pingInterval time.Duration
	logger       *logrus.Logger
}

func NewNotificationHub(cfg config.WebSocketConfig, logger *logrus.Logger) *NotificationHub {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 54 * time.Second
	}
	return &NotificationHub{
		clients:      make(map[string]*WebSocketClient),
		broadcast:    make(chan notificationEnvelope, cfg.SendBuffer),
		register:     make(chan *WebSocketClient),
		unregister:   make(chan *WebSocketClient),
		done:         make(chan struct{}),
		upgrader:     websocket.Upgrader{CheckOrigin: originChecker(cfg.AllowedOrigins)},
		sendBuffer:   cfg.SendBuffer,
		pingInterval: cfg.PingInterval,
		logger:       logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// Run 处理注册、注销和广播，直到 ctx 结束
func (h *NotificationHub) Run(ctx context.Context) {
	h.mutex.Lock()
	h.running = true
	h.mutex.Unlock()
	defer func() {
		h.mutex.Lock()
		h.running = false
		for id, client := range h.clients {
			close(client.Send)
			delete(h.clients, id)
		}
		h.mutex.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client.ID] = client
			h.mutex.Unlock()
			h.logger.Infof("Notification client %s connected", client.ID)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
				h.logger.Infof("Notification client %s disconnected", client.ID)
			}
			h.mutex.Unlock()

		case env := <-h.broadcast:
			h.mutex.Lock()
			for _, client := range h.clients {
				if !client.accepts(env.recipients) {
					continue
				}
				select {
				case client.Send <- env.message:
				default:
					// 慢客户端直接断开
					close(client.Send)
					delete(h.clients, client.ID)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Done 在 Run 返回后关闭
func (h *NotificationHub) Done() <-chan struct{} { return h.done }

// Notify 实现 automation.Notifier；缓冲区满时丢弃并返回错误
func (h *NotificationHub) Notify(ctx context.Context, n automation.Notification) error {
	h.mutex.RLock()
	running := h.running
	h.mutex.RUnlock()
	if !running {
		return ErrHubStopped
	}
	env := notificationEnvelope{
		message:    WebSocketMessage{Type: "bom-trigger-notification", Data: n, Timestamp: time.Now()},
		recipients: n.Recipients,
	}
	select {
	case h.broadcast <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("notification buffer full")
	}
}

func (h *NotificationHub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *NotificationHub) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &WebSocketClient{
		ID:        uuid.NewString(),
		Recipient: c.Query("recipient"),
		Conn:      conn,
		Send:      make(chan WebSocketMessage, h.sendBuffer),
		Hub:       h,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *WebSocketClient) accepts(recipients []string) bool {
	if c.Recipient == "" || len(recipients) == 0 {
		return true
	}
	for _, r := range recipients {
		if r == c.Recipient {
			return true
		}
	}
	return false
}

// readPump 只用于感知断开和维持心跳，客户端消息被忽略
func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	pongWait := c.Hub.pingInterval * 10 / 9
	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Errorf("WebSocket error: %v", err)
			}
			return
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(c.Hub.pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(message); err != nil {
				c.Hub.logger.Errorf("WriteJSON error: %v", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

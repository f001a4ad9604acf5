package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"kgicweb/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// PlayCountUpdate 播放次数变化通知
type PlayCountUpdate struct {
	ID        string `json:"id"`
	PlayCount int64  `json:"playCount"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// hubClient 一个订阅播放次数的连接
type hubClient struct {
	hub  *PlayHub
	conn *websocket.Conn
	send chan []byte
}

// PlayHub fans play count updates out to every connected listener.
type PlayHub struct {
	clients map[*hubClient]bool

	register   chan *hubClient
	unregister chan *hubClient
	broadcast  chan []byte

	mu sync.RWMutex

	// Run 退出后关闭
	done chan struct{}
}

// NewPlayHub 创建 PlayHub
func NewPlayHub() *PlayHub {
	return &PlayHub{
		clients:    make(map[*hubClient]bool),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run 启动 Hub 主循环，ctx 结束时关闭所有连接
func (h *PlayHub) Run(ctx context.Context) error {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Debug("play listener registered", logger.Int("clients", h.ClientCount()))

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.fanOut(msg)

		case <-ctx.Done():
			h.cleanup()
			close(h.done)
			return nil
		}
	}
}

// removeClient 需要持有锁
func (h *PlayHub) removeClient(client *hubClient) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *PlayHub) fanOut(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			// 发送缓冲区满，断开慢连接
			h.removeClient(client)
		}
	}
}

func (h *PlayHub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[*hubClient]bool)
}

// Broadcast queues an update for every listener. It never blocks; when the
// queue is full the update is dropped.
func (h *PlayHub) Broadcast(update PlayCountUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logger.Warn("play hub queue full, dropping update", logger.String("id", update.ID))
	}
}

// ClientCount 当前连接数
func (h *PlayHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and subscribes it to play count updates.
func (h *PlayHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := &hubClient{hub: h, conn: conn, send: make(chan []byte, 16)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}

// readPump 只用于检测断开和处理 pong
func (c *hubClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("play listener read error", logger.ErrorField(err))
			}
			return
		}
	}
}

func (c *hubClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Hub 告警实时推送。客户端按用户分组订阅；
// 推送通道写满时丢弃（尽力而为，绝不阻塞升级管线）。
type Client struct {
	id    string
	users map[string]bool
	ch    chan string
	done  chan struct{}
}

type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	users    map[string]map[string]bool // user -> clientID set
	interval time.Duration
	retryMs  int
}

func NewHub(interval time.Duration) *Hub {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Hub{
		clients:  make(map[string]*Client),
		users:    make(map[string]map[string]bool),
		interval: interval,
		retryMs:  5000,
	}
}

func (h *Hub) addClient() *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &Client{
		id:    uuid.NewString(),
		users: make(map[string]bool),
		ch:    make(chan string, 64),
		done:  make(chan struct{}),
	}
	h.clients[c.id] = c
	return c
}

func (h *Hub) removeClient(id string) {
	h.mu.Lock()
	if c, ok := h.clients[id]; ok {
		close(c.done)
		for u := range c.users {
			delete(h.users[u], id)
		}
		delete(h.clients, id)
	}
	h.mu.Unlock()
}

func (h *Hub) subscribe(id, user string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	c.users[user] = true
	if h.users[user] == nil {
		h.users[user] = make(map[string]bool)
	}
	h.users[user][id] = true
}

// Publish 向订阅了某用户的全部客户端推送一个事件
func (h *Hub) Publish(user, event string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event, b)

	h.mu.RLock()
	for id := range h.users[user] {
		if c := h.clients[id]; c != nil {
			select {
			case c.ch <- msg:
			default:
				// 慢客户端直接丢
			}
		}
	}
	h.mu.RUnlock()
}

// Serve 处理一个 SSE 订阅连接；?user= 指定要关注的用户
func (h *Hub) Serve(c *gin.Context) {
	user := c.Query("user")
	if user == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user query param required"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	fmt.Fprintf(c.Writer, "retry: %d\n\n", h.retryMs)
	flusher.Flush()

	client := h.addClient()
	defer h.removeClient(client.id)
	h.subscribe(client.id, user)

	ping := time.NewTicker(h.interval)
	defer ping.Stop()

	for {
		select {
		case <-client.done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			fmt.Fprintf(c.Writer, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		case msg := <-client.ch:
			c.Writer.Write([]byte(msg))
			flusher.Flush()
		}
	}
}

package status

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	INFO = iota
	ERROR
	PROGRESS
)

const historySize = 32

type Message struct {
	Message  string
	Time     time.Time
	Type     int
	Progress float32
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump() {
	ticker := time.NewTicker(time.Second * 30)
	defer func() {
		ticker.Stop()
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[status] ws write msg error: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[status] ws write ping error: %v", err)
				return
			}
		}
	}
}

// readPump only exists to notice the peer going away.
func (c *client) readPump() {
	defer c.conn.Close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Hub fans status messages out to websocket clients and keeps a short
// history for late subscribers.
type Hub struct {
	broadcast chan *Message

	lock    sync.Mutex
	clients map[*client]bool
	history []Message
}

func NewHub() *Hub {
	h := &Hub{
		broadcast: make(chan *Message, 64),
		clients:   make(map[*client]bool),
	}
	go h.loop()
	return h
}

func (h *Hub) loop() {
	for s := range h.broadcast {
		data, err := json.Marshal(s)
		if err != nil {
			log.Printf("[status] marshal error: %v", err)
			continue
		}
		h.lock.Lock()
		for c := range h.clients {
			select {
			case c.send <- data:
			default:
				log.Printf("[status] client too slow, dropping message")
			}
		}
		h.lock.Unlock()
	}
}

func (h *Hub) registerClient(c *client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.clients[c] = true
	for _, m := range h.history {
		if data, err := json.Marshal(&m); err == nil {
			select {
			case c.send <- data:
			default:
			}
		}
	}
}

func (h *Hub) unregisterClient(c *client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) Status(msg string, _type int, progress float32) {
	if math.IsNaN(float64(progress)) || math.IsInf(float64(progress), 0) {
		progress = 0
	}
	m := &Message{
		Message:  msg,
		Time:     time.Now(),
		Type:     _type,
		Progress: progress}

	switch _type {
	case ERROR:
		log.Printf("[status] error: %s", msg)
	case PROGRESS:
		log.Printf("[status] %s (%.0f%%)", msg, progress*100)
	default:
		log.Printf("[status] %s", msg)
	}

	h.lock.Lock()
	h.history = append(h.history, *m)
	if len(h.history) > historySize {
		h.history = h.history[len(h.history)-historySize:]
	}
	h.lock.Unlock()

	select {
	case h.broadcast <- m:
	default:
		log.Printf("[status] broadcast queue full, dropping %q", msg)
	}
}

func (h *Hub) Info(format string, a ...interface{}) {
	h.Status(fmt.Sprintf(format, a...), INFO, 0.0)
}

func (h *Hub) Error(format string, a ...interface{}) {
	h.Status(fmt.Sprintf(format, a...), ERROR, 0.0)
}

func (h *Hub) Progress(progress float32, format string, a ...interface{}) {
	h.Status(fmt.Sprintf(format, a...), PROGRESS, progress)
}

// Recent returns a copy of the retained history, oldest first.
func (h *Hub) Recent() []Message {
	h.lock.Lock()
	defer h.lock.Unlock()
	return append([]Message(nil), h.history...)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeHTTP upgrades the request and subscribes the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[status] upgrade error: %v", err)
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, 32)}
	h.registerClient(c)
	go c.writePump()
	go c.readPump()
}

var defaultHub = NewHub()

func Default() *Hub {
	return defaultHub
}

func Info(format string, a ...interface{}) {
	defaultHub.Info(format, a...)
}

func Error(format string, a ...interface{}) {
	defaultHub.Error(format, a...)
}

func Progress(progress float32, format string, a ...interface{}) {
	defaultHub.Progress(progress, format, a...)
}

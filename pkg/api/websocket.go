package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/payload"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// ChannelStatus carries payload lifecycle events. Every client is
// subscribed to it on connect.
const ChannelStatus = "status"

// Event types exchanged over the socket.
const (
	EventTypePayloadLoaded = "payload_loaded"
	EventTypeReloadFailed  = "reload_failed"
	EventTypeSubscribe     = "subscribe"
	EventTypePing          = "ping"
	EventTypePong          = "pong"
	EventTypeError         = "error"
)

// WSMessage is the JSON frame sent in both directions.
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
	Channels  []string    `json:"channels,omitempty"`
}

// PayloadLoadedData announces the payload now being served.
type PayloadLoadedData struct {
	ID            string `json:"id"`
	NumLayers     int    `json:"numLayers"`
	NumMLPNeurons int    `json:"numMlpNeurons"`
	Source        string `json:"source,omitempty"`
}

// ReloadFailedData reports a reload that left the previous payload in place.
type ReloadFailedData struct {
	Source  string `json:"source"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newMessage(eventType string, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func payloadLoadedMessage(pl *payload.Payload, source string) *WSMessage {
	return newMessage(EventTypePayloadLoaded, &PayloadLoadedData{
		ID:            pl.ID().String(),
		NumLayers:     pl.NumLayers(),
		NumMLPNeurons: pl.NumMLPNeurons(),
		Source:        source,
	})
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// Client is one browser connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu            sync.RWMutex
	subscriptions map[string]bool
}

// Subscribe adds channels to the client's subscriptions.
func (c *Client) Subscribe(channels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		c.subscriptions[ch] = true
	}
}

// IsSubscribed reports whether the client listens on channel.
func (c *Client) IsSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscriptions[channel]
}

// enqueue drops msg when the client is not keeping up.
func (c *Client) enqueue(msg *WSMessage) {
	if raw, err := json.Marshal(msg); err == nil {
		select {
		case c.send <- raw:
		default:
		}
	}
}

func (c *Client) readLoop() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.enqueue(errorMessage("invalid_json", "Failed to parse message"))
			continue
		}
		switch msg.Type {
		case EventTypePing:
			c.enqueue(newMessage(EventTypePong, nil))
		case EventTypeSubscribe:
			// status is the only channel so far.
			known := 0
			for _, ch := range msg.Channels {
				if ch == ChannelStatus {
					known++
				}
			}
			if known == 0 {
				c.enqueue(errorMessage("invalid_subscribe", "No known channels specified"))
				continue
			}
			c.Subscribe(ChannelStatus)
		default:
			log.Printf("[ws] ignoring message type %q", msg.Type)
		}
	}
}

func errorMessage(code, message string) *WSMessage {
	return newMessage(EventTypeError, map[string]string{"code": code, "message": message})
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		var err error
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			err = c.conn.WriteMessage(websocket.TextMessage, raw)
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = c.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

// -----------------------------------------------------------------------------
// Hub
// -----------------------------------------------------------------------------

// Hub tracks connected clients and fans out status events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	// greeting, when set, produces the first message a new client receives.
	greeting func() *WSMessage

	upgrader websocket.Upgrader
}

// NewHub creates a hub accepting connections from any origin.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// SetCheckOrigin replaces the upgrader's origin check.
func (h *Hub) SetCheckOrigin(fn func(*http.Request) bool) {
	h.upgrader.CheckOrigin = fn
}

// Follow broadcasts state's reloads and failed reloads on the status
// channel, and greets new clients with the payload being served. Call it
// before clients connect.
func (h *Hub) Follow(state *State) {
	state.OnLoad(func(pl *payload.Payload, source string) {
		h.BroadcastToChannel(ChannelStatus, payloadLoadedMessage(pl, source))
	})
	state.OnReloadFailed(func(source string, err error) {
		data := &ReloadFailedData{Source: source, Code: tserrors.ErrInternalError, Message: err.Error()}
		if te, ok := tserrors.AsTScopeError(err); ok {
			data.Code, data.Message = te.Code, te.Message
		}
		h.BroadcastToChannel(ChannelStatus, newMessage(EventTypeReloadFailed, data))
	})
	h.greeting = func() *WSMessage {
		pl, err := state.Payload()
		if err != nil {
			return nil
		}
		return payloadLoadedMessage(pl, state.Source())
	}
}

// Run processes registrations until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("[ws] client connected (total: %d)", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("[ws] client disconnected (total: %d)", n)
		}
	}
}

// Stop shuts the hub down and closes every client. It is idempotent.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastToChannel sends msg to every client subscribed to channel.
// Slow clients miss the message rather than block the sender.
func (h *Hub) BroadcastToChannel(channel string, msg *WSMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.IsSubscribed(channel) {
			continue
		}
		select {
		case c.send <- raw:
		default:
		}
	}
	return nil
}

// ServeHTTP upgrades the connection and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	c := &Client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, sendBufferSize),
		subscriptions: map[string]bool{ChannelStatus: true},
	}
	if h.greeting != nil {
		if msg := h.greeting(); msg != nil {
			c.enqueue(msg)
		}
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writeLoop()
	go c.readLoop()
}

package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/abrezinsky/electionvote/internal/logger"
	"github.com/abrezinsky/electionvote/internal/models"
	"github.com/abrezinsky/electionvote/internal/services"
)

// Message types pushed to clients
const (
	TypeVoteTally  = "vote_tally"
	TypePollTally  = "poll_tally"
	TypePollState  = "poll_state"
	TypePollStates = "poll_states"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// PollStateSource reports the current state of every poll
type PollStateSource interface {
	PollStates(ctx context.Context) (map[string]models.PollState, error)
}

// Observer receives hub activity for metrics
type Observer interface {
	SetClients(n int)
	PollTransition(state string)
}

type nopObserver struct{}

func (nopObserver) SetClients(int)        {}
func (nopObserver) PollTransition(string) {}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	log        logger.Logger
	clients    map[*Client]bool
	broadcast  chan models.WSMessage
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	polls      PollStateSource
	observer   Observer

	// last poll states seen by the watcher
	stateMu   sync.Mutex
	lastState map[string]models.PollState
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan models.WSMessage
}

// New creates a new Hub instance with injected dependencies
func New(log logger.Logger, polls PollStateSource) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan models.WSMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		polls:      polls,
		observer:   nopObserver{},
	}
}

// SetObserver installs the metrics observer
func (h *Hub) SetObserver(o Observer) {
	h.observer = o
}

// Start begins the hub's main loop in a goroutine
func (h *Hub) Start() {
	go h.run()
}

// Stop ends the main loop and disconnects every client
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// run handles client registration/unregistration and message broadcasting
func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mutex.Unlock()
			h.observer.SetClients(n)
			h.log.Debug("Client connected", "total_clients", n)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mutex.Unlock()
			h.observer.SetClients(n)
			h.log.Debug("Client disconnected", "total_clients", n)

		case message := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's send channel is full, unregister
					go func(c *Client) {
						select {
						case h.unregister <- c:
						case <-h.quit:
						}
					}(client)
				}
			}
			h.mutex.RUnlock()

		case <-h.quit:
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			h.observer.SetClients(0)
			return
		}
	}
}

// join queues the current poll states on the client and then registers it.
// The states are loaded on the caller's goroutine so a slow store never
// holds up the main loop. It reports false if the hub has stopped.
func (h *Hub) join(ctx context.Context, client *Client) bool {
	if h.polls != nil {
		states, err := h.polls.PollStates(ctx)
		if err != nil {
			h.log.Warn("Failed to load poll states", "error", err)
		} else {
			client.send <- models.WSMessage{Type: TypePollStates, Payload: states}
		}
	}

	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

// BroadcastMessage sends a message to all connected clients. It is a no-op
// once the hub has stopped.
func (h *Hub) BroadcastMessage(msgType string, payload interface{}) {
	select {
	case h.broadcast <- models.WSMessage{Type: msgType, Payload: payload}:
	case <-h.quit:
	}
}

// BroadcastVoteTally implements services.Broadcaster
func (h *Hub) BroadcastVoteTally(candidateID string, totalVotes int) {
	h.BroadcastMessage(TypeVoteTally, map[string]interface{}{
		"candidateId": candidateID,
		"totalVotes":  totalVotes,
	})
}

// BroadcastPollTally implements services.Broadcaster
func (h *Hub) BroadcastPollTally(results *services.PollResults) {
	h.BroadcastMessage(TypePollTally, results)
}

// BroadcastPollState implements services.Broadcaster
func (h *Hub) BroadcastPollState(pollID string, state models.PollState) {
	h.stateMu.Lock()
	if h.lastState != nil {
		h.lastState[pollID] = state
	}
	h.stateMu.Unlock()

	h.BroadcastMessage(TypePollState, map[string]interface{}{
		"pollId": pollID,
		"state":  state,
	})
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("WebSocket error", "error", err)
			}
			break
		}

		// Clients only listen; anything they send is logged and dropped
		var msg models.WSMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			c.hub.log.Debug("Received message", "type", msg.Type)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs handles websocket requests from clients
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade error", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan models.WSMessage, 256),
	}
	if !h.join(r.Context(), client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// StartPollWatcher polls the state of every poll each interval and broadcasts
// a poll_state message for each one whose state changed, so that scheduled
// openings and closings reach clients without a request triggering them.
// It returns when ctx is cancelled.
func (h *Hub) StartPollWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.checkPollStates(ctx)
	for {
		select {
		case <-ctx.Done():
			h.log.Info("Poll watcher stopped")
			return
		case <-ticker.C:
			h.checkPollStates(ctx)
		}
	}
}

// checkPollStates diffs the current states against the last seen ones. The
// first call only records a baseline.
func (h *Hub) checkPollStates(ctx context.Context) {
	if h.polls == nil {
		return
	}
	states, err := h.polls.PollStates(ctx)
	if err != nil {
		h.log.Warn("Poll watcher failed to load states", "error", err)
		return
	}

	h.stateMu.Lock()
	first := h.lastState == nil
	var changed []string
	if !first {
		for id, state := range states {
			if prev, ok := h.lastState[id]; ok && prev != state {
				changed = append(changed, id)
			}
		}
	}
	h.lastState = states
	h.stateMu.Unlock()

	for _, id := range changed {
		state := states[id]
		h.observer.PollTransition(string(state))
		h.log.Info("Poll state changed", "poll_id", id, "state", state)
		h.BroadcastMessage(TypePollState, map[string]interface{}{
			"pollId": id,
			"state":  state,
		})
	}
}

var _ services.Broadcaster = (*Hub)(nil)

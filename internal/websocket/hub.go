package websocket

import (
	"encoding/json"
	"sync"

	"github.com/isdelr/tasks-be/internal/models"
	"github.com/rs/zerolog"
)

// directMessage is a reply to a single client.
type directMessage struct {
	client  *Client
	payload []byte
}

// ownerMessage is a message addressed to every socket of one owner.
type ownerMessage struct {
	owner   string
	payload []byte
}

// Hub maintains the set of active clients and fans task changes out to the
// sockets of the owning user.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Messages addressed to one owner.
	publish chan ownerMessage

	// Replies addressed to one client.
	direct chan directMessage

	// A map of owner IDs to the set of their connected clients.
	subscriptions map[string]map[*Client]bool

	done     chan struct{}
	stopOnce sync.Once
	log      zerolog.Logger
}

// NewHub creates a new Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		publish:       make(chan ownerMessage, 256),
		direct:        make(chan directMessage, 64),
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		done:          make(chan struct{}),
		log:           log.With().Str("component", "websocket").Logger(),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.Register:
			h.clients[client] = true
			h.addSubscription(client, client.Owner)
			h.log.Info().Int("total_clients", len(h.clients)).Str("user_id", client.Owner).Msg("Client connected")
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.log.Info().Int("total_clients", len(h.clients)).Str("user_id", client.Owner).Msg("Client disconnected")
			}
		case msg := <-h.publish:
			h.broadcastTo(msg.owner, msg.payload)
		case msg := <-h.direct:
			if h.clients[msg.client] {
				h.deliver(msg.client, msg.payload)
			}
		}
	}
}

// Join registers client. It returns false once the hub has stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters client. It does not block after the hub has stopped.
func (h *Hub) Leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// Reply queues payload for client alone. Only the hub writes to Send, so a
// reply can never race with the channel being closed.
func (h *Hub) Reply(client *Client, payload []byte) {
	select {
	case h.direct <- directMessage{client: client, payload: payload}:
	default:
		h.log.Warn().Str("user_id", client.Owner).Msg("Reply queue full, dropping message")
	}
}

// Stop ends Run and closes every client's send channel. It is safe to call
// more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// PublishTask queues a task change for the owner's sockets. It never blocks;
// when the queue is full the message is dropped.
func (h *Hub) PublishTask(owner, action string, task models.Task) {
	payload, err := json.Marshal(Message{Action: action, Payload: task})
	if err != nil {
		h.log.Error().Err(err).Str("action", action).Msg("Failed to encode task message")
		return
	}
	select {
	case h.publish <- ownerMessage{owner: owner, payload: payload}:
	default:
		h.log.Warn().Str("user_id", owner).Str("action", action).Msg("Publish queue full, dropping message")
	}
}

// broadcastTo sends a message to every client of owner. Slow clients whose
// buffer is full are disconnected.
func (h *Hub) broadcastTo(owner string, message []byte) {
	for client := range h.subscriptions[owner] {
		h.deliver(client, message)
	}
}

func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.Send <- message:
	default:
		h.log.Warn().Str("user_id", client.Owner).Msg("Client send buffer full, disconnecting")
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	h.removeSubscription(client)
	close(client.Send)
}

func (h *Hub) addSubscription(client *Client, owner string) {
	if h.subscriptions[owner] == nil {
		h.subscriptions[owner] = make(map[*Client]bool)
	}
	h.subscriptions[owner][client] = true
}

func (h *Hub) removeSubscription(client *Client) {
	subs, ok := h.subscriptions[client.Owner]
	if !ok {
		return
	}
	delete(subs, client)
	if len(subs) == 0 {
		delete(h.subscriptions, client.Owner)
	}
}

package websocket

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub tracks job-progress subscribers. Clients subscribe to one job ID; the
// import runner publishes a frame after every checkpoint write.
type Hub struct {
	// Subscribers by job ID
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]map[*Client]bool),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()
			log.Printf("👂 Progress subscriber attached to job %s", client.JobID)

		case client := <-h.unregister:
			h.mu.Lock()
			if subs, ok := h.clients[client.JobID]; ok {
				if subs[client] {
					delete(subs, client)
					close(client.send)
					if len(subs) == 0 {
						delete(h.clients, client.JobID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish sends a progress frame to every subscriber of a job. Slow or dead
// subscribers are skipped rather than blocking the import loop.
func (h *Hub) Publish(jobID string, message interface{}) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling progress frame: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[jobID] {
		select {
		case client.send <- jsonMsg:
		default:
		}
	}
}

// CloseJob disconnects every subscriber of a job. Called once the terminal
// frame has been published; the closed send channel makes each writePump
// send a close frame and shut the connection down.
func (h *Hub) CloseJob(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients[jobID] {
		close(client.send)
	}
	delete(h.clients, jobID)
}

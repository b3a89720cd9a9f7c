package ws

// Hub maintains the set of connected clients and broadcasts store change
// events and countdown ticks to them.
type Hub struct {
	clients    map[*Client]bool
	Broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	// OnFirstClient/OnLastClient fire when the client count rises from
	// zero or falls back to it. Used to refcount the countdown ticker.
	OnFirstClient func()
	OnLastClient  func()
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run pumps registrations and broadcasts until done is closed, then drops
// every connected client.
func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			if len(h.clients) == 1 && h.OnFirstClient != nil {
				h.OnFirstClient()
			}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				if len(h.clients) == 0 && h.OnLastClient != nil {
					h.OnLastClient()
				}
			}
		case message := <-h.Broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

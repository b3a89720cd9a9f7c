package ws

import (
	"context"
	"encoding/json"
	"log"

	"campusfeed_backend/feed"
	"campusfeed_backend/models"
	"campusfeed_backend/store"
)

// WsMessage is the JSON frame pushed to connected clients.
type WsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Forward bridges the store change feed and the countdown ticker onto the
// hub until done is closed, then unsubscribes from both collections. It
// also keeps the ticker's tracked set in sync with the post collection, so
// the countdown covers every upcoming post regardless of which feed
// sessions have it loaded.
func Forward(s store.Store, ticker *feed.CountdownTicker, hub *Hub, done <-chan struct{}) {
	posts, unsubPosts := s.Subscribe(store.Posts)
	comments, unsubComments := s.Subscribe(store.Comments)
	defer unsubPosts()
	defer unsubComments()

	// Seed the tracked set with posts scheduled before startup. The
	// subscription is already open, so nothing slips through the gap.
	if docs, err := s.List(context.Background(), store.Posts); err == nil {
		for _, d := range docs {
			var post models.Post
			if d.Unmarshal(&post) == nil {
				ticker.Observe(post)
			}
		}
	} else {
		log.Printf("ws: seeding countdown set: %v", err)
	}

	for {
		select {
		case <-done:
			return
		case ev, ok := <-posts:
			if !ok {
				return
			}
			if ev.Type == store.EventDeleted {
				ticker.Forget(ev.ID)
			} else {
				var post models.Post
				if json.Unmarshal(ev.Doc, &post) == nil {
					ticker.Observe(post)
				}
			}
			broadcast(hub, WsMessage{Type: "post_" + string(ev.Type), Data: eventPayload(ev)})
		case ev, ok := <-comments:
			if !ok {
				return
			}
			broadcast(hub, WsMessage{Type: "comment_" + string(ev.Type), Data: eventPayload(ev)})
		case updates := <-ticker.Updates():
			broadcast(hub, WsMessage{Type: "countdown", Data: updates})
		}
	}
}

func eventPayload(ev store.Event) map[string]any {
	payload := map[string]any{"id": ev.ID}
	if ev.Doc != nil {
		payload["doc"] = json.RawMessage(ev.Doc)
	}
	return payload
}

func broadcast(hub *Hub, msg WsMessage) {
	raw, err := json.Marshal(msg)
	if err != nil {
		log.Printf("ws: marshal broadcast: %v", err)
		return
	}
	select {
	case hub.Broadcast <- raw:
	default:
		// Hub is saturated; realtime frames are best effort.
	}
}

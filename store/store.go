package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Collection names, mirroring the persisted schema.
const (
	Posts         = "Posts"
	Comments      = "Comments"
	Users         = "Users"
	RefreshTokens = "RefreshTokens"
)

var ErrNotFound = errors.New("store: document not found")

type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event is a single change notification. Doc carries the document body
// after the change; it is nil for deletions.
type Event struct {
	Collection string
	Type       EventType
	ID         string
	Doc        json.RawMessage
}

type Document struct {
	ID   string
	Data json.RawMessage
}

func (d Document) Unmarshal(out any) error {
	return json.Unmarshal(d.Data, out)
}

// Cursor marks the last item of a fetched page in the
// (publishAt DESC, id DESC) total order.
type Cursor struct {
	PublishAt time.Time
	ID        string
}

// Encode renders the cursor as an opaque token safe for query strings.
func (c Cursor) Encode() string {
	raw := c.PublishAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return Cursor{}, errors.New("invalid cursor format")
	}
	at, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	return Cursor{PublishAt: at, ID: parts[1]}, nil
}

// Store is the document store the feed engine runs against. Field-level
// updates are atomic per call; there are no multi-document transactions.
// Set operations are commutative so concurrent voters never conflict.
type Store interface {
	Append(ctx context.Context, collection, id string, doc any) error
	Get(ctx context.Context, collection, id string, out any) error
	// GetPage returns up to limit documents ordered by publishAt DESC with
	// ties broken by id DESC, strictly after the cursor position. A nil
	// cursor starts from the top.
	GetPage(ctx context.Context, collection string, cursor *Cursor, limit int) ([]Document, error)
	// Find matches documents whose top-level string fields equal every
	// entry of filter.
	Find(ctx context.Context, collection string, filter map[string]string) ([]Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
	UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error
	AddToSet(ctx context.Context, collection, id, field, value string) error
	RemoveFromSet(ctx context.Context, collection, id, field, value string) error
	Delete(ctx context.Context, collection, id string) error
	// Subscribe returns a channel of change events for one collection and
	// an unsubscribe func that must be called on teardown.
	Subscribe(collection string) (<-chan Event, func())
}

// broker fans change events out to collection subscribers. Both store
// implementations publish through it.
type broker struct {
	mu   sync.Mutex
	subs map[string]map[int]chan Event
	next int
}

func newBroker() *broker {
	return &broker{subs: make(map[string]map[int]chan Event)}
}

func (b *broker) subscribe(collection string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[collection] == nil {
		b.subs[collection] = make(map[int]chan Event)
	}
	id := b.next
	b.next++
	ch := make(chan Event, 256)
	b.subs[collection][id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[collection][id]; ok {
			delete(b.subs[collection], id)
			close(sub)
		}
	}
}

func (b *broker) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[ev.Collection] {
		select {
		case ch <- ev:
		default:
			// Subscriber fell too far behind; drop rather than stall
			// every writer.
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.subs {
		for id, ch := range subs {
			delete(subs, id)
			close(ch)
		}
	}
}

// publishAtOf pulls the ordering key out of a marshaled document. Documents
// without a publishAt sort as zero time.
func publishAtOf(raw json.RawMessage) time.Time {
	var partial struct {
		PublishAt time.Time `json:"publishAt"`
	}
	_ = json.Unmarshal(raw, &partial)
	return partial.PublishAt
}

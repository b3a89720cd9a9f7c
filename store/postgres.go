package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
)

// Postgres stores every collection in a single jsonb documents table and
// turns LISTEN/NOTIFY traffic into the Store change feed, so clients of
// either implementation see the same events.
type Postgres struct {
	db       *sql.DB
	listener *pq.Listener
	broker   *broker
	done     chan struct{}
}

const notifyChannel = "document_changes"

// NewPostgres wraps an open connection. The DSN is used for a dedicated
// LISTEN connection; Close must be called to release it.
func NewPostgres(db *sql.DB, dsn string) (*Postgres, error) {
	listener := pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("store: listener event %d: %v", ev, err)
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen on %s: %w", notifyChannel, err)
	}

	p := &Postgres{
		db:       db,
		listener: listener,
		broker:   newBroker(),
		done:     make(chan struct{}),
	}
	go p.forward()
	return p, nil
}

// forward pumps NOTIFY payloads into the broker until Close.
func (p *Postgres) forward() {
	for {
		select {
		case <-p.done:
			return
		case n := <-p.listener.Notify:
			if n == nil {
				// Connection reset; pq re-establishes the LISTEN itself.
				continue
			}
			var payload struct {
				Collection string `json:"collection"`
				Op         string `json:"op"`
				ID         string `json:"id"`
			}
			if err := json.Unmarshal([]byte(n.Extra), &payload); err != nil {
				log.Printf("store: bad notify payload: %v", err)
				continue
			}
			ev := Event{Collection: payload.Collection, ID: payload.ID}
			switch payload.Op {
			case "INSERT":
				ev.Type = EventCreated
			case "UPDATE":
				ev.Type = EventUpdated
			case "DELETE":
				ev.Type = EventDeleted
			default:
				continue
			}
			if ev.Type != EventDeleted {
				var raw json.RawMessage
				err := p.db.QueryRow(
					`SELECT doc FROM documents WHERE collection = $1 AND id = $2`,
					payload.Collection, payload.ID,
				).Scan(&raw)
				if err != nil {
					// Deleted between notify and fetch; the delete event
					// follows on its own.
					continue
				}
				ev.Doc = raw
			}
			p.broker.publish(ev)
		}
	}
}

func (p *Postgres) Append(ctx context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	var publishAt sql.NullTime
	if at := publishAtOf(raw); !at.IsZero() {
		publishAt = sql.NullTime{Time: at, Valid: true}
	}
	_, err = p.db.ExecContext(ctx, `
        INSERT INTO documents (collection, id, publish_at, doc)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (collection, id) DO UPDATE SET publish_at = $3, doc = $4
    `, collection, id, publishAt, raw)
	return err
}

func (p *Postgres) Get(ctx context.Context, collection, id string, out any) error {
	var raw json.RawMessage
	err := p.db.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p *Postgres) GetPage(ctx context.Context, collection string, cursor *Cursor, limit int) ([]Document, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if cursor == nil {
		rows, err = p.db.QueryContext(ctx, `
            SELECT id, doc FROM documents
            WHERE collection = $1
            ORDER BY publish_at DESC, id DESC
            LIMIT $2
        `, collection, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `
            SELECT id, doc FROM documents
            WHERE collection = $1 AND (publish_at, id) < ($2, $3)
            ORDER BY publish_at DESC, id DESC
            LIMIT $4
        `, collection, cursor.PublishAt, cursor.ID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (p *Postgres) Find(ctx context.Context, collection string, filter map[string]string) ([]Document, error) {
	match, err := json.Marshal(filter)
	if err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `
        SELECT id, doc FROM documents
        WHERE collection = $1 AND doc @> $2::jsonb
    `, collection, match)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (p *Postgres) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, doc FROM documents WHERE collection = $1`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (p *Postgres) UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	res, err := p.db.ExecContext(ctx, `
        UPDATE documents
        SET doc = doc || $3::jsonb,
            publish_at = COALESCE(($3::jsonb ->> 'publishAt')::timestamptz, publish_at)
        WHERE collection = $1 AND id = $2
    `, collection, id, patch)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *Postgres) AddToSet(ctx context.Context, collection, id, field, value string) error {
	res, err := p.db.ExecContext(ctx, `
        UPDATE documents
        SET doc = CASE
            WHEN COALESCE(doc -> $3, '[]'::jsonb) @> to_jsonb($4::text) THEN doc
            ELSE jsonb_set(doc, ARRAY[$3], COALESCE(doc -> $3, '[]'::jsonb) || to_jsonb($4::text))
        END
        WHERE collection = $1 AND id = $2
    `, collection, id, field, value)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *Postgres) RemoveFromSet(ctx context.Context, collection, id, field, value string) error {
	res, err := p.db.ExecContext(ctx, `
        UPDATE documents
        SET doc = jsonb_set(doc, ARRAY[$3], COALESCE(doc -> $3, '[]'::jsonb) - $4)
        WHERE collection = $1 AND id = $2
    `, collection, id, field, value)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *Postgres) Subscribe(collection string) (<-chan Event, func()) {
	return p.broker.subscribe(collection)
}

func (p *Postgres) Close() error {
	close(p.done)
	p.broker.close()
	return p.listener.Close()
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Data); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

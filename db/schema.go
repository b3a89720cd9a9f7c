package db

import (
	"database/sql"
	"fmt"
)

const Schema = `
-- Create documents table
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    publish_at TIMESTAMPTZ,
    doc JSONB NOT NULL,
    PRIMARY KEY (collection, id)
);

-- Feed pages read in (publish_at DESC, id DESC) order
CREATE INDEX IF NOT EXISTS idx_documents_page
    ON documents (collection, publish_at DESC, id DESC);

-- Containment lookups (comments by post/parent, users by email)
CREATE INDEX IF NOT EXISTS idx_documents_doc
    ON documents USING GIN (doc jsonb_path_ops);

-- Change feed: every write is announced on the document_changes channel
CREATE OR REPLACE FUNCTION notify_document_change() RETURNS trigger AS $$
DECLARE
    rec documents;
BEGIN
    IF TG_OP = 'DELETE' THEN
        rec := OLD;
    ELSE
        rec := NEW;
    END IF;
    PERFORM pg_notify('document_changes', json_build_object(
        'collection', rec.collection,
        'op', TG_OP,
        'id', rec.id
    )::text);
    RETURN rec;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS documents_notify ON documents;
CREATE TRIGGER documents_notify
    AFTER INSERT OR UPDATE OR DELETE ON documents
    FOR EACH ROW EXECUTE FUNCTION notify_document_change();
`

// InitSchema creates the documents table and its change-feed trigger
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("error initializing schema: %w", err)
	}
	return nil
}

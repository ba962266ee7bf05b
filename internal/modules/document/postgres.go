package document

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Schema creates the documents table. Every collection shares the table.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	fields     JSONB       NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_items_supplier
	ON documents ((fields->>'supplierId')) WHERE collection = 'items';
`

type postgresStore struct {
	db       *sql.DB
	notifier Notifier
}

// NewPostgresStore stores documents as JSONB rows. notifier may be nil, in
// which case subscriptions only see their initial snapshot.
func NewPostgresStore(db *sql.DB, notifier Notifier) Store {
	return &postgresStore{db: db, notifier: notifier}
}

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}

func (s *postgresStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	raw, err := encodeFields(fields)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3)`,
		collection, id, string(raw))
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", collection, err)
	}
	s.changed(ctx, collection)
	return id, nil
}

func (s *postgresStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection=$1 AND id=$2`,
		collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return &Document{ID: id, Fields: fields}, nil
}

func (s *postgresStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	raw, err := encodeFields(fields)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET fields = fields || $3::jsonb, updated_at = NOW()
		WHERE collection=$1 AND id=$2`,
		collection, id, string(raw))
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	s.changed(ctx, collection)
	return nil
}

func (s *postgresStore) Increment(ctx context.Context, collection, id, field string, delta int) (int, error) {
	var value int
	err := s.db.QueryRowContext(ctx, `
		UPDATE documents
		SET fields = jsonb_set(fields, ARRAY[$3::text],
		        to_jsonb(COALESCE((fields->>$3::text)::bigint, 0) + $4::bigint)),
		    updated_at = NOW()
		WHERE collection=$1 AND id=$2
		RETURNING (fields->>$3::text)::bigint`,
		collection, id, field, delta).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		var pqErr *pq.Error
		// 22P02: invalid_text_representation, the field is not an integer.
		if errors.As(err, &pqErr) && pqErr.Code == "22P02" {
			return 0, ErrNotInteger
		}
		return 0, fmt.Errorf("increment %s/%s.%s: %w", collection, id, field, err)
	}
	s.changed(ctx, collection)
	return value, nil
}

func (s *postgresStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection=$1 AND id=$2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	s.changed(ctx, collection)
	return nil
}

func (s *postgresStore) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fields FROM documents
		WHERE collection=$1 ORDER BY created_at, id`, collection)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

func (s *postgresStore) Where(ctx context.Context, collection, field string, value any) ([]Document, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode filter value: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fields FROM documents
		WHERE collection=$1 AND fields->$2::text = $3::jsonb
		ORDER BY created_at, id`, collection, field, string(raw))
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

func (s *postgresStore) Subscribe(ctx context.Context, collection string, fn Listener) (Subscription, error) {
	var changes <-chan struct{}
	stop := func() {}
	if s.notifier != nil {
		var err error
		changes, stop, err = s.notifier.Listen(ctx, collection)
		if err != nil {
			return nil, err
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	d := &delivery{ctx: ctx, fn: fn}
	sub := newSubscription(func() {
		d.mu.Lock()
		cancel()
		d.mu.Unlock()
		stop()
	})
	go func() {
		s.deliver(d, collection)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				s.deliver(d, collection)
			}
		}
	}()
	return sub, nil
}

// delivery hands snapshots to one listener. Cancel takes mu, so no snapshot
// reaches fn once Cancel has returned. fn must not cancel its own subscription.
type delivery struct {
	mu  sync.Mutex
	ctx context.Context
	fn  Listener
}

func (s *postgresStore) deliver(d *delivery, collection string) {
	docs, err := s.List(d.ctx, collection)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx.Err() != nil {
		return
	}
	d.fn(docs, err)
}

func (s *postgresStore) changed(ctx context.Context, collection string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, collection); err != nil {
		log.Printf("document: notify %s: %v", collection, err)
	}
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		fields, err := decodeFields(raw)
		if err != nil {
			// One unreadable row must not hide the others.
			log.Printf("document: skip %s: %v", id, err)
			continue
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}
	return docs, rows.Err()
}

func encodeFields(fields Fields) ([]byte, error) {
	if fields == nil {
		fields = Fields{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return raw, nil
}

func decodeFields(raw []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields Fields
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = Fields{}
	}
	return fields, nil
}

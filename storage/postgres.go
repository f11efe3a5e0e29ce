// Package storage holds the postgres document-store driver. Documents live
// in one JSONB table; change fan-out rides LISTEN/NOTIFY on a dedicated
// connection, so watchers on other nodes see writes made by this one.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/InfiniteDev0/JoinUp/docstore"
	"github.com/InfiniteDev0/JoinUp/domain"
)

const changeChannel = "docstore_changes"

type Postgres struct {
	pool   *pgxpool.Pool
	cancel context.CancelFunc

	mu       sync.Mutex
	watchers map[string]map[int]chan docstore.Snapshot
	nextTok  int
	closed   bool
}

// NewPostgres connects the pool and starts the notification listener on its
// own connection.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	p := &Postgres{
		pool:     pool,
		cancel:   cancel,
		watchers: make(map[string]map[int]chan docstore.Snapshot),
	}

	listenConn, err := pgx.Connect(ctx, connString)
	if err != nil {
		cancel()
		pool.Close()
		return nil, err
	}
	if _, err := listenConn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		cancel()
		listenConn.Close(ctx)
		pool.Close()
		return nil, err
	}

	go p.listen(listenCtx, listenConn)
	return p, nil
}

func (p *Postgres) Close() {
	p.mu.Lock()
	p.closed = true
	for key, subs := range p.watchers {
		for tok, ch := range subs {
			delete(subs, tok)
			close(ch)
		}
		delete(p.watchers, key)
	}
	p.mu.Unlock()

	p.cancel()
	p.pool.Close()
}

func (p *Postgres) Create(ctx context.Context, collection string, data []byte) (string, error) {
	var id string
	err := p.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			"INSERT INTO documents(collection, data) VALUES($1, $2) RETURNING id::text",
			collection, data)
		if err := row.Scan(&id); err != nil {
			return wrapDBErr(err)
		}
		return notifyChange(ctx, tx, collection, id)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) Get(ctx context.Context, collection, id string) ([]byte, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, docstore.ErrNotFound
	}

	var data []byte
	row := p.pool.QueryRow(ctx,
		"SELECT data FROM documents WHERE collection = $1 AND id = $2::uuid",
		collection, id)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, docstore.ErrNotFound
		}
		return nil, wrapDBErr(err)
	}
	return data, nil
}

// Update runs transform under a row lock, so concurrent updates of one
// document serialize instead of overwriting each other.
func (p *Postgres) Update(ctx context.Context, collection, id string, transform docstore.Transform) ([]byte, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, docstore.ErrNotFound
	}

	var next []byte
	err := p.withTx(ctx, func(tx pgx.Tx) error {
		var current []byte
		row := tx.QueryRow(ctx,
			"SELECT data FROM documents WHERE collection = $1 AND id = $2::uuid FOR UPDATE",
			collection, id)
		if err := row.Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return docstore.ErrNotFound
			}
			return wrapDBErr(err)
		}

		// Transform errors pass through untouched so guard failures keep
		// their identity.
		transformed, err := transform(current)
		if err != nil {
			return err
		}
		next = transformed

		if _, err := tx.Exec(ctx,
			"UPDATE documents SET data = $1, updated_at = now() WHERE collection = $2 AND id = $3::uuid",
			next, collection, id); err != nil {
			return wrapDBErr(err)
		}
		return notifyChange(ctx, tx, collection, id)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return docstore.ErrNotFound
	}

	err := p.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			"DELETE FROM documents WHERE collection = $1 AND id = $2::uuid",
			collection, id)
		if err != nil {
			return wrapDBErr(err)
		}
		if tag.RowsAffected() == 0 {
			return docstore.ErrNotFound
		}
		return notifyChange(ctx, tx, collection, id)
	})
	return err
}

func (p *Postgres) Watch(ctx context.Context, collection, id string) (<-chan docstore.Snapshot, func(), error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, nil, docstore.ErrClosed
	}
	key := collection + "/" + id
	if p.watchers[key] == nil {
		p.watchers[key] = make(map[int]chan docstore.Snapshot)
	}
	tok := p.nextTok
	p.nextTok++
	ch := make(chan docstore.Snapshot, 16)
	p.watchers[key][tok] = ch
	p.mu.Unlock()

	// Initial snapshot so a rejoining client reconstructs state immediately.
	initial := docstore.Snapshot{ID: id, Exists: false}
	if data, err := p.Get(ctx, collection, id); err == nil {
		initial = docstore.Snapshot{ID: id, Data: data, Exists: true}
	} else if !errors.Is(err, docstore.ErrNotFound) {
		p.removeWatcher(key, tok)
		return nil, nil, err
	}
	ch <- initial

	stop := func() { p.removeWatcher(key, tok) }
	return ch, stop, nil
}

func (p *Postgres) Query(ctx context.Context, collection, field, value string) ([]docstore.Document, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT id::text, data FROM documents WHERE collection = $1 AND data->>$2 = $3",
		collection, field, value)
	if err != nil {
		return nil, wrapDBErr(err)
	}
	defer rows.Close()

	var out []docstore.Document
	for rows.Next() {
		var doc docstore.Document
		if err := rows.Scan(&doc.ID, &doc.Data); err != nil {
			return nil, wrapDBErr(err)
		}
		out = append(out, doc)
	}
	return out, wrapDBErr(rows.Err())
}

func (p *Postgres) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return wrapDBErr(err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback(ctx)
		return err
	}
	return wrapDBErr(tx.Commit(ctx))
}

// notifyChange queues the change notification inside the transaction;
// postgres delivers it to listeners only on commit.
func notifyChange(ctx context.Context, tx pgx.Tx, collection, id string) error {
	_, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", changeChannel, collection+":"+id)
	return err
}

// listen is the single notification pump. Payloads are "collection:id"; the
// current contents are re-read through the pool, so a lagging or coalesced
// notification still delivers the latest state.
func (p *Postgres) listen(ctx context.Context, conn *pgx.Conn) {
	defer conn.Close(context.Background())

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("docstore listener failed")
			return
		}

		collection, id, ok := strings.Cut(notification.Payload, ":")
		if !ok {
			continue
		}

		p.mu.Lock()
		subs := len(p.watchers[collection+"/"+id])
		p.mu.Unlock()
		if subs == 0 {
			continue
		}

		snap := docstore.Snapshot{ID: id, Exists: false}
		if data, err := p.Get(ctx, collection, id); err == nil {
			snap = docstore.Snapshot{ID: id, Data: data, Exists: true}
		} else if !errors.Is(err, docstore.ErrNotFound) {
			log.Error().Err(err).Str("id", id).Msg("failed to read changed document")
			continue
		}
		p.dispatch(collection+"/"+id, snap)
	}
}

func (p *Postgres) dispatch(key string, snap docstore.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.watchers[key] {
		select {
		case ch <- snap:
		default:
			// Lagging subscriber; it catches up on the next delivery.
		}
	}
}

func (p *Postgres) removeWatcher(key string, tok int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if subs, ok := p.watchers[key]; ok {
		if ch, ok := subs[tok]; ok {
			delete(subs, tok)
			close(ch)
		}
		if len(subs) == 0 {
			delete(p.watchers, key)
		}
	}
}

func wrapDBErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/clock"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const notifyChannel = "documents_changed"

// Postgres stores documents as JSONB rows. Live queries are woken by
// LISTEN/NOTIFY from a trigger on the documents table.
type Postgres struct {
	db       *sql.DB
	listener *pq.Listener
	stamps   *stamper
	hub      *hub
	logger   *slog.Logger

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func connString(cred config.Postgres) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)
}

func NewPostgres(cred config.Postgres, c clock.Clock, log *slog.Logger) (*Postgres, error) {
	log = logger.OrDefault(log)
	psqlconn := connString(cred)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)

	listener := pq.NewListener(psqlconn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("postgres listener event", "event", ev, "err", err)
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		db.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", notifyChannel, err)
	}

	g := &Postgres{
		db:       db,
		listener: listener,
		stamps:   newStamper(c),
		hub:      newHub(),
		logger:   log,
		done:     make(chan struct{}),
	}
	g.wg.Add(1)
	go g.dispatch()

	log.Info("connected to postgres", "host", cred.Host, "db", cred.DBName)
	return g, nil
}

func (g *Postgres) RunMigrations(cred config.Postgres) error {
	driver, err := postgres.WithInstance(g.db, &postgres.Config{
		MigrationsTable: "documents_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (g *Postgres) dispatch() {
	defer g.wg.Done()
	for {
		select {
		case <-g.done:
			return
		case n := <-g.listener.Notify:
			// nil means the connection was re-established and events may
			// have been missed.
			if n == nil {
				g.hub.notifyAll()
				continue
			}
			g.hub.notify(n.Extra)
		case <-time.After(90 * time.Second):
			go g.listener.Ping()
		}
	}
}

func (g *Postgres) WriteOnce(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}
	id := uuid.NewString()
	ts, _ := g.stamps.next()

	raw, err := json.Marshal(resolve(data, ts))
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}

	query := `INSERT INTO documents (path, collection, doc_id, data, created_at)
	          VALUES ($1, $2, $3, $4, $5)`
	if _, err := g.db.ExecContext(ctx, query, Doc(collection, id), collection, id, raw, ts); err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

func (g *Postgres) Put(ctx context.Context, docPath string, data map[string]any) error {
	collection, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}
	ts, _ := g.stamps.next()

	raw, err := json.Marshal(resolve(data, ts))
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	query := `INSERT INTO documents (path, collection, doc_id, data, created_at)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data`
	if _, err := g.db.ExecContext(ctx, query, docPath, collection, id, raw, ts); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (g *Postgres) ReadOnce(ctx context.Context, docPath string) (Document, error) {
	query := `SELECT path, doc_id, data, seq, created_at FROM documents WHERE path = $1`

	doc, err := scanDocument(g.db.QueryRowContext(ctx, query, docPath))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("query document: %w", err)
	}
	return doc, nil
}

func (g *Postgres) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	if err := validCollection(q.Collection); err != nil {
		return nil, err
	}
	select {
	case <-g.done:
		return nil, ErrClosed
	default:
	}

	changes, release := g.hub.watch(q.Collection)
	fetch := func(ctx context.Context) (Snapshot, error) {
		return g.query(ctx, q)
	}
	return startSubscription(ctx, fetch, changes, release, g.logger), nil
}

func (g *Postgres) query(ctx context.Context, q Query) (Snapshot, error) {
	query := `SELECT path, doc_id, data, seq, created_at
	          FROM documents WHERE collection = $1 ORDER BY seq`

	rows, err := g.db.QueryContext(ctx, query, q.Collection)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return Snapshot{}, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("iterate documents: %w", err)
	}

	q.sort(docs)
	return Snapshot{Collection: q.Collection, Docs: docs}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (Document, error) {
	var doc Document
	var raw []byte
	if err := s.Scan(&doc.Path, &doc.ID, &raw, &doc.Seq, &doc.CreateTime); err != nil {
		return Document{}, err
	}
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return Document{}, fmt.Errorf("unmarshal document data: %w", err)
	}
	if doc.Data == nil {
		doc.Data = map[string]any{}
	}
	doc.CreateTime = doc.CreateTime.UTC()
	return doc, nil
}

func (g *Postgres) Close() error {
	var err error
	g.closeOnce.Do(func() {
		close(g.done)
		g.wg.Wait()
		g.hub.close()
		err = errors.Join(g.listener.Close(), g.db.Close())
	})
	return err
}

// Package catalog serves the storefront templates from SQLite.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/fjod/storefront/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"
)

var ErrTemplateNotFound = errors.New("template not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
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

// List returns every template ordered by id.
func (r *Repository) List(ctx context.Context) ([]domain.CartItem, error) {
	query := `
		SELECT id, name, category, price_usd, price_inr, type
		FROM templates
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		item, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return items, nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.CartItem, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, id)
	}

	query := `
		SELECT id, name, category, price_usd, price_inr, type
		FROM templates
		WHERE id = ?
	`
	item, err := scanTemplate(r.db.QueryRowContext(ctx, query, n))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CartItem{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, id)
	}
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("failed to query template: %w", err)
	}
	return item, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTemplate(s scanner) (domain.CartItem, error) {
	var (
		item domain.CartItem
		id   int64
		typ  string
	)
	if err := s.Scan(&id, &item.Name, &item.Category, &item.PriceUSD, &item.PriceINR, &typ); err != nil {
		return domain.CartItem{}, err
	}
	item.ID = strconv.FormatInt(id, 10)
	item.Type = domain.ItemType(typ)
	return item, nil
}

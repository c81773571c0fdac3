package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-meatshop-orders/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS store_documents (
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	body       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`

// Documents implements store.Documents on a single JSONB table.
type Documents struct{ DB *pgxpool.Pool }

// Migrate creates the document table if it is missing.
func (d *Documents) Migrate(ctx context.Context) error {
	if _, err := d.DB.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create store_documents: %w", err)
	}
	return nil
}

func (d *Documents) Get(ctx context.Context, collection, id string) ([]byte, error) {
	var body []byte
	err := d.DB.QueryRow(ctx,
		`SELECT body FROM store_documents WHERE collection=$1 AND id=$2`, collection, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return body, nil
}

func (d *Documents) Put(ctx context.Context, collection, id string, body []byte) error {
	_, err := d.DB.Exec(ctx, `
		INSERT INTO store_documents(collection, id, body, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()
	`, collection, id, body)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (d *Documents) Delete(ctx context.Context, collection, id string) error {
	ct, err := d.DB.Exec(ctx, `DELETE FROM store_documents WHERE collection=$1 AND id=$2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *Documents) List(ctx context.Context, collection string) ([][]byte, error) {
	rows, err := d.DB.Query(ctx,
		`SELECT body FROM store_documents WHERE collection=$1 ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		out = append(out, body)
	}
	return out, rows.Err()
}

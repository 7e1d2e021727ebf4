package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/moviesandme/internal/domain"
	"github.com/Clark-Hu/moviesandme/internal/favorites"
)

// FavoritesRepository persists the favorites set. It satisfies favorites.Store.
type FavoritesRepository struct {
	pool *pgxpool.Pool
}

var _ favorites.Store = (*FavoritesRepository)(nil)

// Toggle removes the film when stored and inserts it otherwise, in one transaction.
func (r *FavoritesRepository) Toggle(ctx context.Context, film domain.Film) (bool, error) {
	if film.ID == 0 {
		return false, favorites.ErrInvalidFilm
	}
	payload, err := json.Marshal(film)
	if err != nil {
		return false, fmt.Errorf("encode favorite %d: %w", film.ID, err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin toggle: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serialize toggles of the same film so concurrent calls alternate.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, film.ID); err != nil {
		return false, fmt.Errorf("lock favorite %d: %w", film.ID, err)
	}

	var removed int64
	err = tx.QueryRow(ctx, `DELETE FROM favorites WHERE film_id = $1 RETURNING film_id`, film.ID).Scan(&removed)
	added := false
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		const insert = `
            INSERT INTO favorites (film_id, payload)
            VALUES ($1, $2)
            ON CONFLICT (film_id) DO NOTHING
        `
		if _, err := tx.Exec(ctx, insert, film.ID, payload); err != nil {
			return false, fmt.Errorf("insert favorite %d: %w", film.ID, err)
		}
		added = true
	case err != nil:
		return false, fmt.Errorf("delete favorite %d: %w", film.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit toggle: %w", err)
	}
	return added, nil
}

// Snapshot returns every favorite in insertion order.
func (r *FavoritesRepository) Snapshot(ctx context.Context) (favorites.Set, error) {
	const query = `SELECT payload FROM favorites ORDER BY created_at, film_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return favorites.Set{}, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	var films []domain.Film
	for rows.Next() {
		film, err := scanFavorite(rows)
		if err != nil {
			return favorites.Set{}, err
		}
		films = append(films, film)
	}
	if err := rows.Err(); err != nil {
		return favorites.Set{}, err
	}
	return favorites.NewSet(films), nil
}

// Get returns one stored favorite.
func (r *FavoritesRepository) Get(ctx context.Context, filmID int64) (domain.Film, error) {
	row := r.pool.QueryRow(ctx, `SELECT payload FROM favorites WHERE film_id = $1`, filmID)
	film, err := scanFavorite(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Film{}, ErrNotFound
	}
	return film, err
}

func scanFavorite(row pgx.Row) (domain.Film, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		return domain.Film{}, err
	}
	var film domain.Film
	if err := json.Unmarshal(payload, &film); err != nil {
		return domain.Film{}, fmt.Errorf("decode favorite payload: %w", err)
	}
	return film, nil
}

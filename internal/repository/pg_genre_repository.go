package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/editorial-workflow-service/internal/domain"
)

// Compile-time interface verification.
var _ GenreRepository = (*PgGenreRepository)(nil)

const genreColumns = `genre_id, context_id, key, name, category, dependent, supplementary, sequence, enabled`

// PgGenreRepository is a PostgreSQL implementation of GenreRepository.
type PgGenreRepository struct {
	db DBTX
}

// NewPgGenreRepository creates a new PostgreSQL genre repository.
func NewPgGenreRepository(db DBTX) *PgGenreRepository {
	return &PgGenreRepository{db: db}
}

// Create inserts a genre.
func (r *PgGenreRepository) Create(ctx context.Context, g *domain.Genre) error {
	if err := validateGenre(g); err != nil {
		return err
	}
	nameJSON, err := json.Marshal(nonNilText(g.Name))
	if err != nil {
		return fmt.Errorf("failed to marshal genre name: %w", err)
	}

	query := `
		INSERT INTO genres (context_id, key, name, category, dependent, supplementary, sequence, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING genre_id`

	err = r.db.QueryRow(ctx, query,
		g.ContextID, g.Key, nameJSON, string(g.Category), g.Dependent, g.Supplementary, g.Sequence, g.Enabled,
	).Scan(&g.ID)
	if err != nil {
		return wrapError(err, "create genre", "genre", g.Key)
	}
	return nil
}

// Get retrieves a genre by id.
func (r *PgGenreRepository) Get(ctx context.Context, id int64) (*domain.Genre, error) {
	query := `SELECT ` + genreColumns + ` FROM genres WHERE genre_id = $1`

	g, err := scanGenre(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapError(err, "get genre", "genre", idString(id))
	}
	return g, nil
}

// GetByKey retrieves a genre by key within a context.
func (r *PgGenreRepository) GetByKey(ctx context.Context, contextID int64, key string) (*domain.Genre, error) {
	query := `SELECT ` + genreColumns + ` FROM genres WHERE context_id = $1 AND key = $2`

	g, err := scanGenre(r.db.QueryRow(ctx, query, contextID, key))
	if err != nil {
		return nil, wrapError(err, "get genre by key", "genre", key)
	}
	return g, nil
}

// List returns the genres of a context.
func (r *PgGenreRepository) List(ctx context.Context, contextID int64, enabledOnly bool) ([]*domain.Genre, error) {
	query := `SELECT ` + genreColumns + `
		FROM genres
		WHERE context_id = $1 AND (enabled OR NOT $2)
		ORDER BY sequence, genre_id`

	rows, err := r.db.Query(ctx, query, contextID, enabledOnly)
	if err != nil {
		return nil, wrapError(err, "list genres", "genre", "")
	}
	genres, err := collectRows(rows, func(row pgx.Rows) (*domain.Genre, error) { return scanGenre(row) })
	if err != nil {
		return nil, fmt.Errorf("failed to scan genres: %w", err)
	}
	return genres, nil
}

// Update persists everything but the key and context.
func (r *PgGenreRepository) Update(ctx context.Context, g *domain.Genre) error {
	if err := validateGenre(g); err != nil {
		return err
	}
	nameJSON, err := json.Marshal(nonNilText(g.Name))
	if err != nil {
		return fmt.Errorf("failed to marshal genre name: %w", err)
	}

	query := `
		UPDATE genres SET
			name = $1,
			category = $2,
			dependent = $3,
			supplementary = $4,
			sequence = $5,
			enabled = $6
		WHERE genre_id = $7`

	result, err := r.db.Exec(ctx, query,
		nameJSON, string(g.Category), g.Dependent, g.Supplementary, g.Sequence, g.Enabled, g.ID)
	if err != nil {
		return wrapError(err, "update genre", "genre", idString(g.ID))
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("genre", idString(g.ID))
	}
	return nil
}

// SetEnabled enables or disables a genre.
func (r *PgGenreRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	result, err := r.db.Exec(ctx, `UPDATE genres SET enabled = $1 WHERE genre_id = $2`, enabled, id)
	if err != nil {
		return wrapError(err, "set genre enabled", "genre", idString(id))
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("genre", idString(id))
	}
	return nil
}

func validateGenre(g *domain.Genre) error {
	if g == nil {
		return domain.NewValidationError("genre", "genre cannot be nil")
	}
	if g.Key == "" {
		return domain.NewValidationError("key", "genre key is required")
	}
	if !g.Category.Valid() {
		return domain.NewValidationError("category", "unknown genre category")
	}
	return nil
}

func scanGenre(row pgx.Row) (*domain.Genre, error) {
	var (
		g        domain.Genre
		nameJSON []byte
		category string
	)
	err := row.Scan(&g.ID, &g.ContextID, &g.Key, &nameJSON, &category,
		&g.Dependent, &g.Supplementary, &g.Sequence, &g.Enabled)
	if err != nil {
		return nil, err
	}
	g.Category = domain.GenreCategory(category)
	if err := unmarshalText(nameJSON, &g.Name); err != nil {
		return nil, fmt.Errorf("failed to unmarshal genre name: %w", err)
	}
	return &g, nil
}

package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/repository"
)

// Genres manages the file-type taxonomy of each context.
type Genres struct {
	store  repository.Store
	logger zerolog.Logger
}

// NewGenres creates a genre service.
func NewGenres(store repository.Store, logger zerolog.Logger) *Genres {
	return &Genres{
		store:  store,
		logger: logger.With().Str("component", "genres").Logger(),
	}
}

// GenreInput creates or updates a genre.
type GenreInput struct {
	ContextID     int64                `validate:"required,gt=0"`
	Key           string               `validate:"required,max=64,printascii"`
	Name          domain.LocalizedText `validate:"required,min=1"`
	Category      domain.GenreCategory `validate:"required,oneof=document artwork supplementary"`
	Dependent     bool
	Supplementary bool
	Sequence      int `validate:"gte=0"`
}

// Create adds an enabled genre. Keys are unique per context.
func (g *Genres) Create(ctx context.Context, in GenreInput) (*domain.Genre, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	genre := &domain.Genre{
		ContextID:     in.ContextID,
		Key:           strings.ToUpper(in.Key),
		Name:          sanitizeText(in.Name, titlePolicy),
		Category:      in.Category,
		Dependent:     in.Dependent,
		Supplementary: in.Supplementary,
		Sequence:      in.Sequence,
		Enabled:       true,
	}
	if err := g.store.Genres().Create(ctx, genre); err != nil {
		return nil, fmt.Errorf("create genre %s: %w", genre.Key, err)
	}
	g.logger.Info().Int64("genre_id", genre.ID).Str("key", genre.Key).Msg("genre created")
	return genre, nil
}

// List returns the genres of a context in sequence order.
func (g *Genres) List(ctx context.Context, contextID int64, enabledOnly bool) ([]*domain.Genre, error) {
	return g.store.Genres().List(ctx, contextID, enabledOnly)
}

// Update changes a genre's name, category, flags and sequence. The key and
// context never change.
func (g *Genres) Update(ctx context.Context, id int64, in GenreInput) (*domain.Genre, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	genre, err := g.store.Genres().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if genre.ContextID != in.ContextID || genre.Key != strings.ToUpper(in.Key) {
		return nil, domain.NewValidationError("Key", "genre key and context are immutable")
	}

	genre.Name = sanitizeText(in.Name, titlePolicy)
	genre.Category = in.Category
	genre.Dependent = in.Dependent
	genre.Supplementary = in.Supplementary
	genre.Sequence = in.Sequence
	if err := g.store.Genres().Update(ctx, genre); err != nil {
		return nil, fmt.Errorf("update genre %d: %w", id, err)
	}
	return genre, nil
}

// SetEnabled enables or disables a genre. Genres are never deleted so
// existing files keep their classification.
func (g *Genres) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	if err := g.store.Genres().SetEnabled(ctx, id, enabled); err != nil {
		return fmt.Errorf("set genre %d enabled=%t: %w", id, enabled, err)
	}
	g.logger.Info().Int64("genre_id", id).Bool("enabled", enabled).Msg("genre availability changed")
	return nil
}

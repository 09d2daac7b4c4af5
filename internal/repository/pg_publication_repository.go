package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/editorial-workflow-service/internal/domain"
)

// Compile-time interface verification.
var _ PublicationRepository = (*PgPublicationRepository)(nil)

const publicationColumns = `publication_id, submission_id, source_publication_id, status, version,
		created_at, date_published, last_modified, title, abstract, locale, seq, doi_id`

// PgPublicationRepository is a PostgreSQL implementation of PublicationRepository.
type PgPublicationRepository struct {
	db DBTX
}

// NewPgPublicationRepository creates a new PostgreSQL publication repository.
func NewPgPublicationRepository(db DBTX) *PgPublicationRepository {
	return &PgPublicationRepository{db: db}
}

// Create inserts a publication with its authors and categories.
func (r *PgPublicationRepository) Create(ctx context.Context, p *domain.Publication) error {
	if p == nil {
		return domain.NewValidationError("publication", "publication cannot be nil")
	}
	if p.SubmissionID <= 0 {
		return domain.NewValidationError("submission_id", "submission ID is required")
	}
	if p.Version < 1 {
		p.Version = 1
	}

	titleJSON, abstractJSON, err := marshalPublicationText(p)
	if err != nil {
		return err
	}

	return inTx(ctx, r.db, func(db DBTX) error {
		query := `
			INSERT INTO publications (
				submission_id, source_publication_id, status, version,
				created_at, date_published, last_modified,
				title, abstract, locale, seq, doi_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING publication_id`

		err := db.QueryRow(ctx, query,
			p.SubmissionID, p.SourcePublicationID, string(p.Status), p.Version,
			p.CreatedAt, p.DatePublished, p.LastModified,
			titleJSON, abstractJSON, p.Locale, p.Seq, p.DOIID,
		).Scan(&p.ID)
		if err != nil {
			return wrapError(err, "create publication", "publication", "")
		}

		if err := insertAuthors(ctx, db, p); err != nil {
			return err
		}
		return insertCategories(ctx, db, p)
	})
}

// Get retrieves a publication with its authors and categories.
func (r *PgPublicationRepository) Get(ctx context.Context, id int64) (*domain.Publication, error) {
	query := `SELECT ` + publicationColumns + ` FROM publications WHERE publication_id = $1`

	p, err := scanPublication(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapError(err, "get publication", "publication", idString(id))
	}
	if err := r.hydrate(ctx, []*domain.Publication{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// ListBySubmission returns a submission's publications ordered by id.
func (r *PgPublicationRepository) ListBySubmission(ctx context.Context, submissionID int64) ([]*domain.Publication, error) {
	query := `SELECT ` + publicationColumns + `
		FROM publications
		WHERE submission_id = $1
		ORDER BY publication_id`

	rows, err := r.db.Query(ctx, query, submissionID)
	if err != nil {
		return nil, wrapError(err, "list publications", "publication", "")
	}
	pubs, err := collectRows(rows, func(row pgx.Rows) (*domain.Publication, error) { return scanPublication(row) })
	if err != nil {
		return nil, fmt.Errorf("failed to scan publications: %w", err)
	}
	if err := r.hydrate(ctx, pubs); err != nil {
		return nil, err
	}
	if pubs == nil {
		pubs = []*domain.Publication{}
	}
	return pubs, nil
}

// Update locks the publication, applies fn and writes it back.
func (r *PgPublicationRepository) Update(ctx context.Context, id int64, fn func(*domain.Publication) error) error {
	return inTx(ctx, r.db, func(db DBTX) error {
		query := `SELECT ` + publicationColumns + ` FROM publications WHERE publication_id = $1 FOR UPDATE`
		p, err := scanPublication(db.QueryRow(ctx, query, id))
		if err != nil {
			return wrapError(err, "lock publication", "publication", idString(id))
		}
		txRepo := &PgPublicationRepository{db: db}
		if err := txRepo.hydrate(ctx, []*domain.Publication{p}); err != nil {
			return err
		}

		if err := fn(p); err != nil {
			return err
		}
		p.LastModified = time.Now().UTC()

		titleJSON, abstractJSON, err := marshalPublicationText(p)
		if err != nil {
			return err
		}

		update := `
			UPDATE publications SET
				status = $1,
				date_published = $2,
				last_modified = $3,
				title = $4,
				abstract = $5,
				locale = $6,
				seq = $7,
				doi_id = $8,
				created_at = $9
			WHERE publication_id = $10`

		_, err = db.Exec(ctx, update,
			string(p.Status), p.DatePublished, p.LastModified,
			titleJSON, abstractJSON, p.Locale, p.Seq, p.DOIID,
			p.CreatedAt, id,
		)
		if err != nil {
			return wrapError(err, "update publication", "publication", idString(id))
		}

		if _, err := db.Exec(ctx, `DELETE FROM authors WHERE publication_id = $1`, id); err != nil {
			return wrapError(err, "replace authors", "publication", idString(id))
		}
		if _, err := db.Exec(ctx, `DELETE FROM publication_categories WHERE publication_id = $1`, id); err != nil {
			return wrapError(err, "replace categories", "publication", idString(id))
		}
		if err := insertAuthors(ctx, db, p); err != nil {
			return err
		}
		return insertCategories(ctx, db, p)
	})
}

// CreateDOI inserts a DOI record.
func (r *PgPublicationRepository) CreateDOI(ctx context.Context, doi *domain.DOI) error {
	if doi == nil || doi.DOI == "" {
		return domain.NewValidationError("doi", "DOI is required")
	}
	if doi.Status == "" {
		doi.Status = domain.DOIStatusUnregistered
	}
	if !doi.Status.Valid() {
		return domain.NewValidationError("status", "unknown DOI status")
	}

	query := `INSERT INTO dois (context_id, doi, status) VALUES ($1, $2, $3) RETURNING doi_id`
	if err := r.db.QueryRow(ctx, query, doi.ContextID, doi.DOI, string(doi.Status)).Scan(&doi.ID); err != nil {
		return wrapError(err, "create doi", "doi", doi.DOI)
	}
	return nil
}

// UpdateDOIStatus changes the registration status of a DOI.
func (r *PgPublicationRepository) UpdateDOIStatus(ctx context.Context, id int64, status domain.DOIStatus) error {
	if !status.Valid() {
		return domain.NewValidationError("status", "unknown DOI status")
	}
	result, err := r.db.Exec(ctx, `UPDATE dois SET status = $1 WHERE doi_id = $2`, string(status), id)
	if err != nil {
		return wrapError(err, "update doi status", "doi", idString(id))
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("doi", idString(id))
	}
	return nil
}

// hydrate loads authors and category ids for pubs.
func (r *PgPublicationRepository) hydrate(ctx context.Context, pubs []*domain.Publication) error {
	if len(pubs) == 0 {
		return nil
	}
	byID := make(map[int64]*domain.Publication, len(pubs))
	ids := make([]int64, 0, len(pubs))
	for _, p := range pubs {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	rows, err := r.db.Query(ctx, `
		SELECT author_id, publication_id, given_name, family_name, email, orcid, seq
		FROM authors
		WHERE publication_id = ANY($1)
		ORDER BY publication_id, seq, author_id`, ids)
	if err != nil {
		return wrapError(err, "load authors", "publication", "")
	}
	authors, err := collectRows(rows, scanAuthor)
	if err != nil {
		return fmt.Errorf("failed to scan authors: %w", err)
	}
	for _, a := range authors {
		if p := byID[a.PublicationID]; p != nil {
			p.Authors = append(p.Authors, a)
		}
	}

	rows, err = r.db.Query(ctx, `
		SELECT publication_id, category_id
		FROM publication_categories
		WHERE publication_id = ANY($1)
		ORDER BY publication_id, category_id`, ids)
	if err != nil {
		return wrapError(err, "load categories", "publication", "")
	}
	type pair struct{ pubID, categoryID int64 }
	pairs, err := collectRows(rows, func(row pgx.Rows) (pair, error) {
		var p pair
		err := row.Scan(&p.pubID, &p.categoryID)
		return p, err
	})
	if err != nil {
		return fmt.Errorf("failed to scan categories: %w", err)
	}
	for _, c := range pairs {
		if p := byID[c.pubID]; p != nil {
			p.CategoryIDs = append(p.CategoryIDs, c.categoryID)
		}
	}
	return nil
}

func insertAuthors(ctx context.Context, db DBTX, p *domain.Publication) error {
	for i := range p.Authors {
		a := &p.Authors[i]
		given, err := json.Marshal(nonNilText(a.GivenName))
		if err != nil {
			return fmt.Errorf("failed to marshal given name: %w", err)
		}
		family, err := json.Marshal(nonNilText(a.FamilyName))
		if err != nil {
			return fmt.Errorf("failed to marshal family name: %w", err)
		}

		err = db.QueryRow(ctx, `
			INSERT INTO authors (publication_id, given_name, family_name, email, orcid, seq)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING author_id`,
			p.ID, given, family, a.Email, nullString(a.ORCID), a.Seq,
		).Scan(&a.ID)
		if err != nil {
			return wrapError(err, "create author", "author", "")
		}
		a.PublicationID = p.ID
	}
	return nil
}

func insertCategories(ctx context.Context, db DBTX, p *domain.Publication) error {
	for _, categoryID := range p.CategoryIDs {
		_, err := db.Exec(ctx,
			`INSERT INTO publication_categories (publication_id, category_id) VALUES ($1, $2)`,
			p.ID, categoryID)
		if err != nil {
			return wrapError(err, "assign category", "publication", idString(p.ID))
		}
	}
	return nil
}

func marshalPublicationText(p *domain.Publication) ([]byte, []byte, error) {
	titleJSON, err := json.Marshal(nonNilText(p.Title))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal title: %w", err)
	}
	abstractJSON, err := json.Marshal(nonNilText(p.Abstract))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal abstract: %w", err)
	}
	return titleJSON, abstractJSON, nil
}

func scanPublication(row pgx.Row) (*domain.Publication, error) {
	var (
		p                       domain.Publication
		status                  string
		titleJSON, abstractJSON []byte
	)
	err := row.Scan(
		&p.ID, &p.SubmissionID, &p.SourcePublicationID, &status, &p.Version,
		&p.CreatedAt, &p.DatePublished, &p.LastModified,
		&titleJSON, &abstractJSON, &p.Locale, &p.Seq, &p.DOIID,
	)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PublicationStatus(status)
	if err := unmarshalText(titleJSON, &p.Title); err != nil {
		return nil, fmt.Errorf("failed to unmarshal title: %w", err)
	}
	if err := unmarshalText(abstractJSON, &p.Abstract); err != nil {
		return nil, fmt.Errorf("failed to unmarshal abstract: %w", err)
	}
	return &p, nil
}

func scanAuthor(row pgx.Rows) (domain.Author, error) {
	var (
		a             domain.Author
		given, family []byte
		orcid         *string
	)
	if err := row.Scan(&a.ID, &a.PublicationID, &given, &family, &a.Email, &orcid, &a.Seq); err != nil {
		return a, err
	}
	if orcid != nil {
		a.ORCID = *orcid
	}
	if err := unmarshalText(given, &a.GivenName); err != nil {
		return a, err
	}
	return a, unmarshalText(family, &a.FamilyName)
}

func unmarshalText(data []byte, dst *domain.LocalizedText) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func nonNilText(t domain.LocalizedText) domain.LocalizedText {
	if t == nil {
		return domain.LocalizedText{}
	}
	return t
}

// nullString returns a pointer to the string if non-empty, otherwise nil.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

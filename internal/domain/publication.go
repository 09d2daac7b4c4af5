package domain

import (
	"fmt"
	"strings"
	"time"
)

// PublicationStatus is the publication state of one version.
// These values must match the database enum publication_status.
type PublicationStatus string

const (
	PublicationStatusQueued    PublicationStatus = "queued"
	PublicationStatusScheduled PublicationStatus = "scheduled"
	PublicationStatusPublished PublicationStatus = "published"
)

// LocalizedText maps a locale code to a value. Stored as JSONB.
type LocalizedText map[string]string

// Get returns the value for locale, falling back to each fallback in order.
func (t LocalizedText) Get(locale string, fallbacks ...string) string {
	if v := t[locale]; v != "" {
		return v
	}
	for _, fb := range fallbacks {
		if v := t[fb]; v != "" {
			return v
		}
	}
	return ""
}

// Clone returns a copy of the map.
func (t LocalizedText) Clone() LocalizedText {
	if t == nil {
		return nil
	}
	out := make(LocalizedText, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Author represents a contributor attached to a publication.
type Author struct {
	ID            int64         `json:"id,omitempty"`
	PublicationID int64         `json:"publication_id,omitempty"`
	GivenName     LocalizedText `json:"given_name"`
	FamilyName    LocalizedText `json:"family_name,omitempty"`
	Email         string        `json:"email,omitempty"`
	ORCID         string        `json:"orcid,omitempty"`
	Seq           int           `json:"seq"`
}

// FullName returns "Given Family" in the requested locale.
func (a Author) FullName(locale string, fallbacks ...string) string {
	return strings.TrimSpace(a.GivenName.Get(locale, fallbacks...) + " " + a.FamilyName.Get(locale, fallbacks...))
}

// Publication is one versioned snapshot of a submission's metadata.
type Publication struct {
	ID                  int64             `json:"id"`
	SubmissionID        int64             `json:"submission_id"`
	SourcePublicationID *int64            `json:"source_publication_id,omitempty"`
	Status              PublicationStatus `json:"status"`
	Version             int               `json:"version"`
	CreatedAt           time.Time         `json:"created_at"`
	DatePublished       *time.Time        `json:"date_published,omitempty"`
	LastModified        time.Time         `json:"last_modified"`
	Title               LocalizedText     `json:"title"`
	Abstract            LocalizedText     `json:"abstract,omitempty"`
	Locale              string            `json:"locale,omitempty"`
	Seq                 float64           `json:"seq"`
	DOIID               *int64            `json:"doi_id,omitempty"`
	CategoryIDs         []int64           `json:"category_ids,omitempty"`
	Authors             []Author          `json:"authors,omitempty"`
}

// IsPublished returns true when the version is publicly published.
func (p *Publication) IsPublished() bool {
	return p.Status == PublicationStatusPublished
}

// DeriveVersion copies the mutable metadata of basis into a new, unsaved
// publication that points back at it.
func (p *Publication) DeriveVersion(now time.Time) *Publication {
	source := p.ID
	next := &Publication{
		SubmissionID:        p.SubmissionID,
		SourcePublicationID: &source,
		Status:              PublicationStatusQueued,
		Version:             p.Version + 1,
		CreatedAt:           now,
		LastModified:        now,
		Title:               p.Title.Clone(),
		Abstract:            p.Abstract.Clone(),
		Locale:              p.Locale,
		Seq:                 p.Seq,
	}
	if len(p.CategoryIDs) > 0 {
		next.CategoryIDs = append([]int64(nil), p.CategoryIDs...)
	}
	for _, a := range p.Authors {
		next.Authors = append(next.Authors, Author{
			GivenName:  a.GivenName.Clone(),
			FamilyName: a.FamilyName.Clone(),
			Email:      a.Email,
			ORCID:      a.ORCID,
			Seq:        a.Seq,
		})
	}
	return next
}

// CurrentPublication returns the publication referenced by the submission's
// currentPublicationId, or nil.
func CurrentPublication(s *Submission, pubs []*Publication) *Publication {
	if s.CurrentPublicationID == nil {
		return nil
	}
	for _, p := range pubs {
		if p.ID == *s.CurrentPublicationID && p.SubmissionID == s.ID {
			return p
		}
	}
	return nil
}

// LatestPublication returns the publication with the greatest id, or nil.
func LatestPublication(pubs []*Publication) *Publication {
	var latest *Publication
	for _, p := range pubs {
		if latest == nil || p.ID > latest.ID {
			latest = p
		}
	}
	return latest
}

// OriginalPublication returns the published publication with the lowest id, or nil.
func OriginalPublication(pubs []*Publication) *Publication {
	var original *Publication
	for _, p := range pubs {
		if !p.IsPublished() {
			continue
		}
		if original == nil || p.ID < original.ID {
			original = p
		}
	}
	return original
}

// CheckVersionChain verifies that every sourcePublicationId chain in pubs
// terminates at a root without cycling or leaving the set.
func CheckVersionChain(pubs []*Publication) error {
	byID := make(map[int64]*Publication, len(pubs))
	for _, p := range pubs {
		byID[p.ID] = p
	}

	for _, p := range pubs {
		seen := map[int64]struct{}{p.ID: {}}
		cur := p
		for cur.SourcePublicationID != nil {
			next, ok := byID[*cur.SourcePublicationID]
			if !ok {
				return NewConstraintViolationError("publication",
					fmt.Sprintf("source_publication_id %d of %d outside submission", *cur.SourcePublicationID, cur.ID))
			}
			if _, dup := seen[next.ID]; dup {
				return NewConstraintViolationError("publication",
					fmt.Sprintf("version chain cycle through %d", next.ID))
			}
			seen[next.ID] = struct{}{}
			cur = next
		}
	}
	return nil
}

// HasPublishedVersion returns true if any publication in pubs is published.
func HasPublishedVersion(pubs []*Publication) bool {
	for _, p := range pubs {
		if p.IsPublished() {
			return true
		}
	}
	return false
}

// DOI is a registered digital object identifier assigned to a publication.
type DOI struct {
	ID        int64     `json:"id"`
	ContextID int64     `json:"context_id"`
	DOI       string    `json:"doi"`
	Status    DOIStatus `json:"status"`
}

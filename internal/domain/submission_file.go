package domain

import (
	"fmt"
	"time"
)

// AssocKind discriminates what a submission file is attached to.
type AssocKind string

const (
	AssocNone       AssocKind = ""
	AssocRound      AssocKind = "review_round"
	AssocAssignment AssocKind = "review_assignment"
)

// Assoc is a typed reference from a submission file to a review round or a
// review assignment. The zero value means no association.
type Assoc struct {
	Kind AssocKind `json:"kind,omitempty"`
	ID   int64     `json:"id,omitempty"`
}

// RoundRef returns an association with a review round.
func RoundRef(id int64) Assoc { return Assoc{Kind: AssocRound, ID: id} }

// AssignmentRef returns an association with a review assignment.
func AssignmentRef(id int64) Assoc { return Assoc{Kind: AssocAssignment, ID: id} }

// IsZero reports whether the association is unset.
func (a Assoc) IsZero() bool { return a.Kind == AssocNone }

// Validate checks that the kind is known and that set associations carry an id.
func (a Assoc) Validate() error {
	switch a.Kind {
	case AssocNone:
		if a.ID != 0 {
			return NewValidationError("assoc", "id set without kind")
		}
		return nil
	case AssocRound, AssocAssignment:
		if a.ID <= 0 {
			return NewValidationError("assoc", fmt.Sprintf("%s requires a positive id", a.Kind))
		}
		return nil
	default:
		return NewValidationError("assoc", fmt.Sprintf("unknown kind %q", a.Kind))
	}
}

// SubmissionFile is a managed file attached to a submission.
type SubmissionFile struct {
	ID             int64         `json:"id"`
	SubmissionID   int64         `json:"submission_id"`
	FileStage      FileStage     `json:"file_stage"`
	GenreID        *int64        `json:"genre_id,omitempty"`
	Assoc          Assoc         `json:"assoc"`
	SourceFileID   *int64        `json:"source_submission_file_id,omitempty"`
	UploaderUserID int64         `json:"uploader_user_id"`
	Name           LocalizedText `json:"name,omitempty"`
	Viewable       bool          `json:"viewable"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`

	// CurrentFileID references the blob of the newest revision.
	CurrentFileID int64 `json:"file_id"`
}

// FileBlob is an immutable stored file.
type FileBlob struct {
	ID       int64  `json:"id"`
	Path     string `json:"path"`
	Mimetype string `json:"mimetype"`
	Size     int64  `json:"size"`
}

// FileRevision is one append-only revision of a submission file.
type FileRevision struct {
	RevisionID       int64     `json:"revision_id"`
	SubmissionFileID int64     `json:"submission_file_id"`
	FileID           int64     `json:"file_id"`
	Path             string    `json:"path"`
	Mimetype         string    `json:"mimetype"`
	CreatedAt        time.Time `json:"created_at"`
}

// LatestRevision returns the revision with the highest revision id, or nil.
func LatestRevision(revisions []*FileRevision) *FileRevision {
	var latest *FileRevision
	for _, r := range revisions {
		if latest == nil || r.RevisionID > latest.RevisionID {
			latest = r
		}
	}
	return latest
}

// RespondedAfter reports whether any file's newest revision postdates since.
// revisionsByFile maps a submission file id to its revisions.
func RespondedAfter(revisionsByFile map[int64][]*FileRevision, since time.Time) bool {
	for _, revs := range revisionsByFile {
		if latest := LatestRevision(revs); latest != nil && latest.CreatedAt.After(since) {
			return true
		}
	}
	return false
}

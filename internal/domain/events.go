package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for domain events published after commit.
const (
	EventTypeDecisionRecorded     = "decision.recorded"
	EventTypeVersionCreated       = "publication.version_created"
	EventTypePublicationPublished = "publication.published"
	EventTypeFileUploaded         = "file.uploaded"
	EventTypeFileRevised          = "file.revised"
	EventTypeFileStageChanged     = "file.stage_changed"
	EventTypeSubmissionDeleted    = "submission.deleted"
	EventTypeRoundStatusRefreshed = "review_round.status_refreshed"
)

// Event is a domain event describing a committed change to one submission.
type Event struct {
	EventID      string          `json:"event_id"`
	EventVersion int             `json:"event_version"`
	EventType    string          `json:"event_type"`
	SubmissionID int64           `json:"submission_id"`
	ContextID    int64           `json:"context_id,omitempty"`
	ActorID      int64           `json:"actor_id,omitempty"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewEvent creates a new event with the given parameters.
// The payload is JSON-serialized automatically.
func NewEvent(eventType string, submissionID int64, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventID:      uuid.New().String(),
		EventVersion: 1,
		EventType:    eventType,
		SubmissionID: submissionID,
		Payload:      payloadBytes,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// WithContext sets the owning context on the event.
func (e *Event) WithContext(contextID int64) *Event {
	e.ContextID = contextID
	return e
}

// WithActor sets the acting user on the event.
func (e *Event) WithActor(userID int64) *Event {
	e.ActorID = userID
	return e
}

// DecisionRecordedPayload is the payload for decision.recorded events.
type DecisionRecordedPayload struct {
	DecisionID    int64            `json:"decision_id"`
	Decision      DecisionCode     `json:"decision"`
	StageID       Stage            `json:"stage_id"`
	ReviewRoundID *int64           `json:"review_round_id,omitempty"`
	RoundStatus   RoundStatus      `json:"round_status,omitempty"`
	NewStageID    Stage            `json:"new_stage_id"`
	Status        SubmissionStatus `json:"status"`
	NewRoundID    *int64           `json:"new_round_id,omitempty"`
	NewVersionID  *int64           `json:"new_publication_id,omitempty"`
}

// VersionCreatedPayload is the payload for publication.version_created events.
type VersionCreatedPayload struct {
	PublicationID       int64 `json:"publication_id"`
	SourcePublicationID int64 `json:"source_publication_id"`
	Version             int   `json:"version"`
}

// PublicationPublishedPayload is the payload for publication.published events.
type PublicationPublishedPayload struct {
	PublicationID int64             `json:"publication_id"`
	Status        PublicationStatus `json:"status"`
	DatePublished *time.Time        `json:"date_published,omitempty"`
}

// FileEventPayload is the payload for file.* events.
type FileEventPayload struct {
	SubmissionFileID int64     `json:"submission_file_id"`
	RevisionID       int64     `json:"revision_id,omitempty"`
	FileStage        FileStage `json:"file_stage"`
	PreviousStage    FileStage `json:"previous_stage,omitempty"`
}

// RoundStatusRefreshedPayload is the payload for review_round.status_refreshed events.
type RoundStatusRefreshedPayload struct {
	ReviewRoundID int64       `json:"review_round_id"`
	From          RoundStatus `json:"from"`
	To            RoundStatus `json:"to"`
}

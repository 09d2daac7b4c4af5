// Package domain provides domain models and business logic for the Editorial Workflow Service.
package domain

import "fmt"

// SubmissionStatus represents the publication status of a submission.
// These values must match the database enum submission_status.
type SubmissionStatus string

const (
	SubmissionStatusQueued    SubmissionStatus = "queued"
	SubmissionStatusPublished SubmissionStatus = "published"
	SubmissionStatusDeclined  SubmissionStatus = "declined"
	SubmissionStatusScheduled SubmissionStatus = "scheduled"
)

// Valid reports whether s is a known submission status.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionStatusQueued, SubmissionStatusPublished, SubmissionStatusDeclined, SubmissionStatusScheduled:
		return true
	default:
		return false
	}
}

// IsArchived returns true for statuses that remove a submission from the active queues.
func (s SubmissionStatus) IsArchived() bool {
	return s == SubmissionStatusPublished || s == SubmissionStatusDeclined
}

// Stage identifies a workflow stage. Stage ids are stored as integers.
type Stage int

const (
	StageSubmission     Stage = 1
	StageInternalReview Stage = 2
	StageExternalReview Stage = 3
	StageCopyediting    Stage = 4
	StageProduction     Stage = 5
)

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return s >= StageSubmission && s <= StageProduction
}

// IsReview returns true for the stages that run review rounds.
func (s Stage) IsReview() bool {
	return s == StageInternalReview || s == StageExternalReview
}

// String returns the stage's path name.
func (s Stage) String() string {
	switch s {
	case StageSubmission:
		return "submission"
	case StageInternalReview:
		return "internal-review"
	case StageExternalReview:
		return "external-review"
	case StageCopyediting:
		return "copyediting"
	case StageProduction:
		return "production"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// FileStage is the stage a submission file currently sits in.
// These values must match the database enum file_stage.
type FileStage string

const (
	FileStageSubmission       FileStage = "submission"
	FileStageNote             FileStage = "note"
	FileStageReviewFile       FileStage = "review-file"
	FileStageReviewAttachment FileStage = "review-attachment"
	FileStageReviewRevision   FileStage = "review-revision"
	FileStageFinal            FileStage = "final"
	FileStageCopyedit         FileStage = "copyedit"
	FileStageProof            FileStage = "proof"
	FileStageProductionReady  FileStage = "production-ready"
	FileStageAttachment       FileStage = "attachment"
	FileStageDependent        FileStage = "dependent"
	FileStageQuery            FileStage = "query"
)

var validFileStages = map[FileStage]struct{}{
	FileStageSubmission:       {},
	FileStageNote:             {},
	FileStageReviewFile:       {},
	FileStageReviewAttachment: {},
	FileStageReviewRevision:   {},
	FileStageFinal:            {},
	FileStageCopyedit:         {},
	FileStageProof:            {},
	FileStageProductionReady:  {},
	FileStageAttachment:       {},
	FileStageDependent:        {},
	FileStageQuery:            {},
}

// Valid reports whether s is a known file stage.
func (s FileStage) Valid() bool {
	_, ok := validFileStages[s]
	return ok
}

// RequiresRound returns true for file stages that must carry exactly one
// review_round_files association.
func (s FileStage) RequiresRound() bool {
	switch s {
	case FileStageReviewFile, FileStageReviewAttachment, FileStageReviewRevision:
		return true
	default:
		return false
	}
}

// RoundStatus is the derived status of a review round.
// These values must match the database enum review_round_status.
type RoundStatus string

const (
	RoundStatusOpen                 RoundStatus = "open"
	RoundStatusUnderReview          RoundStatus = "under_review"
	RoundStatusRevisionsRequested   RoundStatus = "revisions_requested"
	RoundStatusResubmittedForReview RoundStatus = "resubmitted_for_review"
	RoundStatusSentToExternal       RoundStatus = "sent_to_external"
	RoundStatusAccepted             RoundStatus = "accepted"
	RoundStatusDeclined             RoundStatus = "declined"
)

// IsActive returns true while reviewer work on the round can still be overdue.
func (s RoundStatus) IsActive() bool {
	switch s {
	case RoundStatusResubmittedForReview, RoundStatusSentToExternal, RoundStatusAccepted, RoundStatusDeclined:
		return false
	default:
		return true
	}
}

// InactiveRoundStatuses lists the round statuses excluded from overdue checks.
func InactiveRoundStatuses() []RoundStatus {
	return []RoundStatus{
		RoundStatusResubmittedForReview,
		RoundStatusSentToExternal,
		RoundStatusAccepted,
		RoundStatusDeclined,
	}
}

// RoleID identifies a user group role. Values are stable integers shared with the role store.
type RoleID int

const (
	RoleSiteAdmin RoleID = 1
	RoleManager   RoleID = 16
	RoleSubEditor RoleID = 17
	RoleAssistant RoleID = 4097
	RoleReviewer  RoleID = 4096
	RoleAuthor    RoleID = 65536
)

// IsEditorial returns true for the roles that count as an editorial assignment.
func (r RoleID) IsEditorial() bool {
	return r == RoleManager || r == RoleSubEditor
}

// DOIStatus is the registration state of a publication DOI.
// These values must match the database enum doi_status.
type DOIStatus string

const (
	DOIStatusUnregistered DOIStatus = "unregistered"
	DOIStatusSubmitted    DOIStatus = "submitted"
	DOIStatusRegistered   DOIStatus = "registered"
	DOIStatusError        DOIStatus = "error"
	DOIStatusStale        DOIStatus = "stale"
)

// Valid reports whether s is a known DOI status.
func (s DOIStatus) Valid() bool {
	switch s {
	case DOIStatusUnregistered, DOIStatusSubmitted, DOIStatusRegistered, DOIStatusError, DOIStatusStale:
		return true
	default:
		return false
	}
}

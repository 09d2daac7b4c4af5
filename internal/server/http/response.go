package httpserver

import (
	"context"

	"github.com/helixir/editorial-workflow-service/internal/dashboard"
	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/locale"
	"github.com/helixir/editorial-workflow-service/internal/workflow"
)

// Response types for JSON serialization. Entities are rendered with their
// own JSON tags; the types below add derived fields.

type submissionResponse struct {
	domain.Submission
	Title               string              `json:"title"`
	CurrentPublication  *domain.Publication `json:"current_publication,omitempty"`
	LatestPublication   *domain.Publication `json:"latest_publication,omitempty"`
	OriginalPublication *domain.Publication `json:"original_publication,omitempty"`
}

type listSubmissionsResponse struct {
	Submissions []submissionResponse `json:"submissions"`
	TotalCount  int64                `json:"total_count"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

type dashboardResponse struct {
	Views []dashboard.Summary `json:"views"`
}

type decisionResponse struct {
	Decision       *domain.EditorialDecision `json:"decision"`
	Submission     *domain.Submission        `json:"submission"`
	ReviewRound    *domain.ReviewRound       `json:"review_round,omitempty"`
	NewReviewRound *domain.ReviewRound       `json:"new_review_round,omitempty"`
	NewPublication *domain.Publication       `json:"new_publication,omitempty"`
}

type listDecisionsResponse struct {
	Decisions []*domain.EditorialDecision `json:"decisions"`
}

type listRoundsResponse struct {
	Rounds []*domain.ReviewRound `json:"review_rounds"`
}

type listFilesResponse struct {
	Files []*domain.SubmissionFile `json:"files"`
}

type listRevisionsResponse struct {
	Revisions []*domain.FileRevision `json:"revisions"`
}

type listGenresResponse struct {
	Genres []*domain.Genre `json:"genres"`
}

// Converter functions

// toSubmissionResponse renders a hydrated submission. withPublications keeps
// the full version list; listings omit it.
func toSubmissionResponse(ctx context.Context, locales *locale.Resolver, sub *domain.Submission, withPublications bool) submissionResponse {
	pubs := sub.Publications
	resp := submissionResponse{
		Submission:          *sub,
		CurrentPublication:  domain.CurrentPublication(sub, pubs),
		LatestPublication:   domain.LatestPublication(pubs),
		OriginalPublication: domain.OriginalPublication(pubs),
	}
	if !withPublications {
		resp.Publications = nil
	}
	if resp.CurrentPublication != nil {
		chain := []string{sub.Locale}
		if locales != nil {
			chain = locales.Chain(ctx, sub.Locale, sub.ContextID)
		}
		resp.Title = locale.Localize(resp.CurrentPublication.Title, chain...)
	}
	return resp
}

func toDecisionResponse(res *workflow.DecisionResult) decisionResponse {
	return decisionResponse{
		Decision:       res.Decision,
		Submission:     res.Submission,
		ReviewRound:    res.Round,
		NewReviewRound: res.NewRound,
		NewPublication: res.NewPublication,
	}
}

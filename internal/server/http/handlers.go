package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/editorial-workflow-service/internal/collector"
	"github.com/helixir/editorial-workflow-service/internal/dashboard"
	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/identity"
	"github.com/helixir/editorial-workflow-service/internal/observability"
	"github.com/helixir/editorial-workflow-service/internal/workflow"
)

// Request size limits.
const (
	maxRequestBodySize   = 1 << 20  // 1 MB limit for JSON request bodies
	defaultMaxUploadSize = 64 << 20 // 64 MB limit for file uploads
)

// conflictRetryAfter is the Retry-After hint, in seconds, sent with 409 Conflict.
const conflictRetryAfter = "1"

var editorialRoles = []domain.RoleID{domain.RoleSiteAdmin, domain.RoleManager, domain.RoleSubEditor}

// createSubmissionRequest is the JSON request body for starting a submission.
type createSubmissionRequest struct {
	Locale      string               `json:"locale,omitempty"`
	Progress    int                  `json:"progress,omitempty"`
	Title       domain.LocalizedText `json:"title"`
	Abstract    domain.LocalizedText `json:"abstract,omitempty"`
	Authors     []domain.Author      `json:"authors,omitempty"`
	CategoryIDs []int64              `json:"category_ids,omitempty"`
}

// recordDecisionRequest is the JSON request body for recording a decision.
type recordDecisionRequest struct {
	Decision      domain.DecisionCode `json:"decision"`
	ReviewRoundID int64               `json:"review_round_id,omitempty"`
	NewVersion    bool                `json:"new_version,omitempty"`
}

// createVersionRequest is the JSON request body for deriving a publication version.
type createVersionRequest struct {
	BasisPublicationID int64 `json:"basis_publication_id,omitempty"`
	MakeCurrent        bool  `json:"make_current,omitempty"`
}

// listSubmissions handles GET /submissions.
// Users without a privileged role only see submissions they are assigned to.
func (s *Server) listSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, contextID := actor(ctx)

	c := collector.New()
	if err := applyFilters(c, r.URL.Query(), userID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	privileged, err := s.hasRole(ctx, userID, contextID, domain.RoleSiteAdmin, domain.RoleManager)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !privileged {
		c.AssignedTo(userID)
	}

	s.writeSubmissionPage(w, r, c.FilterByContextIDs(contextID).SearchAs(userID))
}

// listDashboardViews handles GET /dashboard.
func (s *Server) listDashboardViews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, contextID := actor(ctx)

	views, err := s.deps.Dashboard.Views(ctx, userID, contextID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{Views: views})
}

// listDashboardSubmissions handles GET /dashboard/{viewID}/submissions.
// Only search, ordering and paging can be added to a view.
func (s *Server) listDashboardSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, contextID := actor(ctx)

	c, err := s.deps.Dashboard.Collector(ctx, dashboard.ViewID(chi.URLParam(r, "viewID")), userID, contextID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := applyPaging(c, r.URL.Query()); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeSubmissionPage(w, r, c)
}

// writeSubmissionPage runs a collector and writes one page with the total count.
func (s *Server) writeSubmissionPage(w http.ResponseWriter, r *http.Request, c *collector.Collector) {
	ctx := r.Context()
	if s.deps.Locales != nil {
		c.InLocale(s.deps.Locales.CurrentLocale(ctx))
	}
	q, err := c.Build()
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	total, err := s.deps.Lister.Count(ctx, q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	submissions := make([]submissionResponse, 0, q.Limit())
	for sub, err := range s.deps.Lister.Submissions(ctx, q) {
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		submissions = append(submissions, toSubmissionResponse(ctx, s.deps.Locales, sub, false))
	}

	writeJSON(w, http.StatusOK, listSubmissionsResponse{
		Submissions: submissions,
		TotalCount:  total,
		Limit:       q.Limit(),
		Offset:      q.Offset(),
	})
}

// createSubmission handles POST /submissions.
func (s *Server) createSubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, contextID := actor(ctx)

	var req createSubmissionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sub, err := s.deps.Intake.Create(ctx, workflow.SubmissionInput{
		ContextID:   contextID,
		Locale:      req.Locale,
		Progress:    req.Progress,
		Title:       req.Title,
		Abstract:    req.Abstract,
		Authors:     req.Authors,
		CategoryIDs: req.CategoryIDs,
		SubmitterID: userID,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubmissionResponse(ctx, s.deps.Locales, sub, true))
}

// getSubmission handles GET /submissions/{submissionID}.
func (s *Server) getSubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, toSubmissionResponse(ctx, s.deps.Locales, submissionFromContext(ctx), true))
}

// finalizeSubmission handles POST /submissions/{submissionID}/finalize.
func (s *Server) finalizeSubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub := submissionFromContext(ctx)

	if _, err := s.deps.Intake.Finalize(ctx, sub.ID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeReloaded(w, r, sub.ID, http.StatusOK)
}

// deleteSubmission handles DELETE /submissions/{submissionID}.
func (s *Server) deleteSubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, contextID := actor(ctx)
	sub := submissionFromContext(ctx)

	if err := s.requireRole(ctx, userID, contextID, domain.RoleSiteAdmin, domain.RoleManager); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.deps.Intake.Delete(ctx, sub.ID, userID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listDecisions handles GET /submissions/{submissionID}/decisions.
func (s *Server) listDecisions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	decisions, err := s.deps.Review.Decisions(ctx, submissionFromContext(ctx).ID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listDecisionsResponse{Decisions: decisions})
}

// recordDecision handles POST /submissions/{submissionID}/decisions.
func (s *Server) recordDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, contextID := actor(ctx)
	sub := submissionFromContext(ctx)

	if err := s.requireRole(ctx, userID, contextID, editorialRoles...); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	var req recordDecisionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.deps.Review.RecordDecision(ctx, workflow.DecisionInput{
		SubmissionID:  sub.ID,
		EditorID:      userID,
		Decision:      req.Decision,
		ReviewRoundID: req.ReviewRoundID,
		NewVersion:    req.NewVersion,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDecisionResponse(res))
}

// listRounds handles GET /submissions/{submissionID}/rounds.
func (s *Server) listRounds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var stage *domain.Stage
	if v := r.URL.Query().Get("stage_id"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || !domain.Stage(n).Valid() {
			writeError(w, http.StatusBadRequest, "stage_id must be a workflow stage")
			return
		}
		st := domain.Stage(n)
		stage = &st
	}

	rounds, err := s.deps.Review.Rounds(ctx, submissionFromContext(ctx).ID, stage)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listRoundsResponse{Rounds: rounds})
}

// createVersion handles POST /submissions/{submissionID}/publications.
func (s *Server) createVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, contextID := actor(ctx)
	sub := submissionFromContext(ctx)

	if err := s.requireRole(ctx, userID, contextID, editorialRoles...); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	var req createVersionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pub, err := s.deps.Versions.NewVersion(ctx, sub.ID, req.BasisPublicationID, userID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if req.MakeCurrent {
		if err := s.deps.Versions.Repoint(ctx, sub.ID, pub.ID); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, pub)
}

// publish handles POST /submissions/{submissionID}/publications/{publicationID}/publish.
func (s *Server) publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := actor(ctx)

	pubID, ok := s.publicationParam(w, r)
	if !ok {
		return
	}
	pub, err := s.deps.Versions.Publish(ctx, pubID, userID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pub)
}

// unpublish handles DELETE /submissions/{submissionID}/publications/{publicationID}/publish.
func (s *Server) unpublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub := submissionFromContext(ctx)

	pubID, ok := s.publicationParam(w, r)
	if !ok {
		return
	}
	if err := s.deps.Versions.Unpublish(ctx, pubID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeReloaded(w, r, sub.ID, http.StatusOK)
}

// publicationParam parses the publication id, checks that it belongs to the
// submission and that the user holds an editorial role.
func (s *Server) publicationParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	ctx := r.Context()
	userID, contextID := actor(ctx)
	sub := submissionFromContext(ctx)

	pubID, ok := parseID(w, chi.URLParam(r, "publicationID"), "publication_id")
	if !ok {
		return 0, false
	}
	if err := s.requireRole(ctx, userID, contextID, editorialRoles...); err != nil {
		s.writeDomainError(w, r, err)
		return 0, false
	}
	for _, p := range sub.Publications {
		if p.ID == pubID {
			return pubID, true
		}
	}
	s.writeDomainError(w, r, domain.NewNotFoundError("publication", strconv.FormatInt(pubID, 10)))
	return 0, false
}

// writeReloaded writes the freshly loaded submission.
func (s *Server) writeReloaded(w http.ResponseWriter, r *http.Request, submissionID int64, status int) {
	ctx := r.Context()
	sub, err := s.deps.Versions.Submission(ctx, submissionID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, status, toSubmissionResponse(ctx, s.deps.Locales, sub, true))
}

func (s *Server) hasRole(ctx context.Context, userID, contextID int64, want ...domain.RoleID) (bool, error) {
	if s.deps.Directory == nil {
		return true, nil
	}
	roles, err := s.deps.Directory.RoleIDsFor(ctx, userID, contextID)
	if err != nil {
		return false, err
	}
	return identity.HasAnyRole(roles, want...), nil
}

func (s *Server) requireRole(ctx context.Context, userID, contextID int64, want ...domain.RoleID) error {
	ok, err := s.hasRole(ctx, userID, contextID, want...)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: user %d lacks the required role", domain.ErrForbidden, userID)
	}
	return nil
}

// decodeBody reads a size-limited JSON body, writing a 400 error response on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	return true
}

// writeDomainError maps the error taxonomy to HTTP status codes and writes a
// JSON error response. Internal error details are not leaked to clients.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	logger := observability.FromContext(r.Context(), s.logger)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidQuery):
		var qe *domain.InvalidQueryError
		if errors.As(err, &qe) {
			writeError(w, http.StatusBadRequest, qe.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid query")
		}
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrInvalidState):
		var se *domain.InvalidStateError
		if errors.As(err, &se) {
			writeError(w, http.StatusConflict, se.Error())
		} else {
			writeError(w, http.StatusConflict, "invalid state")
		}
	case errors.Is(err, domain.ErrConflict):
		w.Header().Set("Retry-After", conflictRetryAfter)
		writeError(w, http.StatusConflict, "concurrent update, retry")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrConstraintViolation):
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("constraint violation reached the API")
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/editorial-workflow-service/internal/blob"
	"github.com/helixir/editorial-workflow-service/internal/collector"
	"github.com/helixir/editorial-workflow-service/internal/config"
	"github.com/helixir/editorial-workflow-service/internal/dashboard"
	"github.com/helixir/editorial-workflow-service/internal/database"
	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/locale"
	"github.com/helixir/editorial-workflow-service/internal/repository/memstore"
	"github.com/helixir/editorial-workflow-service/internal/workflow"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

const (
	managerID = int64(1)
	editorID  = int64(2)
	authorID  = int64(7)
	outsider  = int64(9)
)

type fakeDirectory struct {
	roles    map[int64][]domain.RoleID
	assigned map[int64]bool
}

func (d *fakeDirectory) IsAssigned(_ context.Context, userID, _ int64) (bool, error) {
	return d.assigned[userID], nil
}

func (d *fakeDirectory) RoleIDsFor(_ context.Context, userID, _ int64) (mapset.Set[domain.RoleID], error) {
	return mapset.NewSet(d.roles[userID]...), nil
}

// fakeLister records built queries and yields preset submissions.
type fakeLister struct {
	queries     []*collector.Query
	submissions []*domain.Submission
	err         error
}

func (l *fakeLister) Count(_ context.Context, q *collector.Query) (int64, error) {
	l.queries = append(l.queries, q)
	return int64(len(l.submissions)), l.err
}

func (l *fakeLister) Submissions(_ context.Context, _ *collector.Query) iter.Seq2[*domain.Submission, error] {
	return func(yield func(*domain.Submission, error) bool) {
		for _, s := range l.submissions {
			if !yield(s, nil) {
				return
			}
		}
	}
}

func (l *fakeLister) lastSQL() string {
	if len(l.queries) == 0 {
		return ""
	}
	sql, _ := l.queries[len(l.queries)-1].CountSQL()
	return sql
}

type fakeHealth struct{ status database.HealthStatus }

func (h fakeHealth) Health(context.Context) database.HealthStatus { return h.status }

type testEnv struct {
	server    *Server
	directory *fakeDirectory
	lister    *fakeLister
	deps      Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memstore.New()
	logger := zerolog.Nop()
	locales := locale.NewResolver(config.LocaleConfig{Primary: "en", Supported: []string{"en", "fr-CA"}})

	dir := &fakeDirectory{
		roles: map[int64][]domain.RoleID{
			managerID: {domain.RoleManager},
			editorID:  {domain.RoleSubEditor},
			authorID:  {domain.RoleAuthor},
			outsider:  {domain.RoleAuthor},
		},
		assigned: map[int64]bool{editorID: true, authorID: true},
	}
	lister := &fakeLister{}
	versions := workflow.NewVersioning(store, nil, logger, nil)

	deps := Deps{
		Intake:    workflow.NewIntake(store, locales, nil, logger, nil),
		Versions:  versions,
		Review:    workflow.NewReview(store, versions, nil, logger, nil),
		Files:     workflow.NewFiles(store, blob.NewFSStore(afero.NewMemMapFs()), nil, logger, nil),
		Genres:    workflow.NewGenres(store, logger),
		Lister:    lister,
		Dashboard: dashboard.New(dir, lister, logger),
		Directory: dir,
		Locales:   locales,
		Health:    fakeHealth{status: database.HealthStatus{Status: "healthy"}},
	}
	return &testEnv{
		server:    NewServer(Config{MaxUploadSize: 1 << 20}, deps, logger, HeaderAuth),
		directory: dir,
		lister:    lister,
		deps:      deps,
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func buildPath(contextID int64, suffix string) string {
	return fmt.Sprintf("/api/v1/contexts/%d%s", contextID, suffix)
}

func (e *testEnv) do(t *testing.T, method, path string, userID int64, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		req.Header.Set(UserIDHeader, strconv.FormatInt(userID, 10))
	}
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), target), "body: %s", rr.Body.String())
}

// submit creates and finalizes a submission as the author.
func (e *testEnv) submit(t *testing.T) submissionResponse {
	t.Helper()
	rr := e.do(t, http.MethodPost, buildPath(1, "/submissions"), authorID, createSubmissionRequest{
		Title: domain.LocalizedText{"en": "Tidal mixing", "fr-CA": "Mélange des marées"},
		Authors: []domain.Author{{
			GivenName:  domain.LocalizedText{"en": "Ada"},
			FamilyName: domain.LocalizedText{"en": "Smith"},
		}},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created submissionResponse
	decodeJSON(t, rr, &created)

	rr = e.do(t, http.MethodPost, buildPath(1, fmt.Sprintf("/submissions/%d/finalize", created.ID)), authorID, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var finalized submissionResponse
	decodeJSON(t, rr, &finalized)
	return finalized
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/healthz", 0, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Correlation-ID"))

	rr = env.do(t, http.MethodGet, "/readyz", 0, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	env.deps.Health = fakeHealth{status: database.HealthStatus{Status: "unhealthy", Error: "refused"}}
	srv := NewServer(Config{}, env.deps, zerolog.Nop(), HeaderAuth)
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestAPI_RequiresUser(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, buildPath(1, "/submissions"), 0, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/v1/contexts/abc/submissions", managerID, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSubmissionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	sub := env.submit(t)
	require.NotNil(t, sub.DateSubmitted)
	assert.Equal(t, 0, sub.SubmissionProgress)

	path := buildPath(1, fmt.Sprintf("/submissions/%d", sub.ID))

	t.Run("detail with derived publications", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, path, managerID, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var got submissionResponse
		decodeJSON(t, rr, &got)
		require.NotNil(t, got.CurrentPublication)
		require.NotNil(t, got.LatestPublication)
		assert.Equal(t, got.CurrentPublication.ID, got.LatestPublication.ID)
		assert.Nil(t, got.OriginalPublication, "nothing published yet")
		assert.Equal(t, "Tidal mixing", got.Title)
		assert.Len(t, got.Publications, 1)
	})

	t.Run("title follows the UI locale", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(UserIDHeader, strconv.FormatInt(managerID, 10))
		req.Header.Set("Accept-Language", "fr-CA, fr;q=0.8")
		rr := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rr, req)

		var got submissionResponse
		decodeJSON(t, rr, &got)
		assert.Equal(t, "Mélange des marées", got.Title)
		assert.Equal(t, "fr-CA", rr.Header().Get("Content-Language"))
	})

	t.Run("unassigned users are refused", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, path, outsider, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("other contexts do not see it", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, buildPath(2, fmt.Sprintf("/submissions/%d", sub.ID)), managerID, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("finalizing twice is a state error", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, path+"/finalize", authorID, nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("only managers delete", func(t *testing.T) {
		rr := env.do(t, http.MethodDelete, path, editorID, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)

		rr = env.do(t, http.MethodDelete, path, managerID, nil)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rr = env.do(t, http.MethodGet, path, managerID, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestCreateSubmission_Invalid(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, buildPath(1, "/submissions"), authorID, createSubmissionRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, buildPath(1, "/submissions"), bytes.NewBufferString("{not json"))
	req.Header.Set(UserIDHeader, strconv.FormatInt(authorID, 10))
	rr = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDecisions(t *testing.T) {
	env := newTestEnv(t)
	sub := env.submit(t)
	path := buildPath(1, fmt.Sprintf("/submissions/%d", sub.ID))

	rr := env.do(t, http.MethodPost, path+"/decisions", authorID, recordDecisionRequest{Decision: domain.DecisionExternalReview})
	assert.Equal(t, http.StatusForbidden, rr.Code, "authors cannot decide")

	rr = env.do(t, http.MethodPost, path+"/decisions", editorID, recordDecisionRequest{Decision: "make_it_so"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, path+"/decisions", editorID, recordDecisionRequest{Decision: domain.DecisionExternalReview})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var res decisionResponse
	decodeJSON(t, rr, &res)
	require.NotNil(t, res.NewReviewRound)
	assert.Equal(t, domain.StageExternalReview, res.Submission.StageID)
	assert.Equal(t, editorID, res.Decision.EditorID)

	rr = env.do(t, http.MethodGet, path+"/decisions", authorID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list listDecisionsResponse
	decodeJSON(t, rr, &list)
	assert.Len(t, list.Decisions, 1)

	rr = env.do(t, http.MethodGet, path+"/rounds?stage_id=3", editorID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var rounds listRoundsResponse
	decodeJSON(t, rr, &rounds)
	require.Len(t, rounds.Rounds, 1)
	assert.Equal(t, res.NewReviewRound.ID, rounds.Rounds[0].ID)

	rr = env.do(t, http.MethodGet, path+"/rounds?stage_id=8", editorID, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVersionsAndPublishing(t *testing.T) {
	env := newTestEnv(t)
	sub := env.submit(t)
	path := buildPath(1, fmt.Sprintf("/submissions/%d", sub.ID))
	first := *sub.CurrentPublicationID

	rr := env.do(t, http.MethodPost, fmt.Sprintf("%s/publications/%d/publish", path, first), managerID, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var pub domain.Publication
	decodeJSON(t, rr, &pub)
	assert.Equal(t, domain.PublicationStatusPublished, pub.Status)

	rr = env.do(t, http.MethodPost, path+"/publications", managerID, createVersionRequest{MakeCurrent: true})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var v2 domain.Publication
	decodeJSON(t, rr, &v2)
	assert.Equal(t, 2, v2.Version)
	require.NotNil(t, v2.SourcePublicationID)
	assert.Equal(t, first, *v2.SourcePublicationID)

	rr = env.do(t, http.MethodGet, path, managerID, nil)
	var detail submissionResponse
	decodeJSON(t, rr, &detail)
	require.NotNil(t, detail.CurrentPublication)
	require.NotNil(t, detail.LatestPublication)
	require.NotNil(t, detail.OriginalPublication)
	assert.Equal(t, v2.ID, detail.CurrentPublication.ID)
	assert.Equal(t, v2.ID, detail.LatestPublication.ID)
	assert.Equal(t, first, detail.OriginalPublication.ID)

	rr = env.do(t, http.MethodDelete, fmt.Sprintf("%s/publications/%d/publish", path, first), managerID, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	decodeJSON(t, rr, &detail)
	assert.Equal(t, domain.SubmissionStatusQueued, detail.Status)

	rr = env.do(t, http.MethodDelete, fmt.Sprintf("%s/publications/%d/publish", path, first), managerID, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, http.MethodPost, fmt.Sprintf("%s/publications/%d/publish", path, 999), managerID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func uploadRequest(t *testing.T, path string, userID int64, fields map[string]string, name string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if name != "" {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(UserIDHeader, strconv.FormatInt(userID, 10))
	return req
}

func TestFiles(t *testing.T) {
	env := newTestEnv(t)
	sub := env.submit(t)
	path := buildPath(1, fmt.Sprintf("/submissions/%d", sub.ID))
	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF\n")

	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, uploadRequest(t, path+"/files", authorID,
		map[string]string{"file_stage": "submission", "name": "Manuscript"}, "manuscript.pdf", pdf))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var file domain.SubmissionFile
	decodeJSON(t, rr, &file)
	assert.Equal(t, domain.FileStageSubmission, file.FileStage)
	assert.Equal(t, "Manuscript", file.Name["en"])

	t.Run("validation", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rr, uploadRequest(t, path+"/files", authorID, map[string]string{"file_stage": "submission"}, "", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code, "file part is required")

		rr = httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rr, uploadRequest(t, path+"/files", authorID,
			map[string]string{"file_stage": "review-file"}, "r.pdf", pdf))
		assert.Equal(t, http.StatusBadRequest, rr.Code, "review files need a round")

		rr = httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rr, uploadRequest(t, path+"/files", authorID,
			map[string]string{"file_stage": "submission"}, "big.bin", make([]byte, 2<<20)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	})

	t.Run("list and revisions", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, path+"/files?file_stage=submission", authorID, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var files listFilesResponse
		decodeJSON(t, rr, &files)
		require.Len(t, files.Files, 1)

		rr = env.do(t, http.MethodGet, path+"/files?file_stage=attic", authorID, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = env.do(t, http.MethodGet, fmt.Sprintf("%s/files/%d/revisions", path, file.ID), authorID, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var revs listRevisionsResponse
		decodeJSON(t, rr, &revs)
		require.Len(t, revs.Revisions, 1)
		rev := revs.Revisions[0]

		rr = env.do(t, http.MethodGet, fmt.Sprintf("%s/files/%d/revisions/%d/content", path, file.ID, rev.RevisionID), authorID, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, pdf, rr.Body.Bytes())
		assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
		assert.Contains(t, rr.Header().Get("Content-Disposition"), ".pdf")
	})

	t.Run("files of other submissions are hidden", func(t *testing.T) {
		other := env.submit(t)
		rr := env.do(t, http.MethodGet, buildPath(1, fmt.Sprintf("/submissions/%d/files/%d/revisions", other.ID, file.ID)), authorID, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestListSubmissions(t *testing.T) {
	env := newTestEnv(t)
	sub := env.submit(t)
	hydrated, err := env.deps.Versions.Submission(context.Background(), sub.ID)
	require.NoError(t, err)
	env.lister.submissions = []*domain.Submission{hydrated}

	t.Run("managers see the whole context", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, buildPath(1, "/submissions?status=queued&stage_id=1,3&search=tidal&limit=10&order_by=title&order_dir=asc"), managerID, nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var page listSubmissionsResponse
		decodeJSON(t, rr, &page)
		assert.Equal(t, int64(1), page.TotalCount)
		assert.Equal(t, 10, page.Limit)
		require.Len(t, page.Submissions, 1)
		assert.Equal(t, "Tidal mixing", page.Submissions[0].Title)
		assert.Empty(t, page.Submissions[0].Publications, "listings omit the version list")

		sql := env.lister.lastSQL()
		assert.Contains(t, sql, "s.stage_id = ANY")
		assert.NotContains(t, sql, "sa.user_id = ANY")
	})

	t.Run("other users only see their assignments", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, buildPath(1, "/submissions?unassigned=true"), editorID, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, env.lister.lastSQL(), "sa.user_id = ANY")
	})

	t.Run("assigned to me", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, buildPath(1, "/submissions?assigned_to=me,12"), managerID, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, env.lister.lastSQL(), "ra.reviewer_id = ANY")
	})

	tests := []struct {
		name  string
		query string
	}{
		{"unknown status", "status=archived"},
		{"bad stage", "stage_id=two"},
		{"bad boolean", "overdue=perhaps"},
		{"bad limit", "limit=lots"},
		{"limit too large", "limit=100000"},
		{"unknown sort", "order_by=author"},
		{"bad assigned", "assigned_to=someone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, buildPath(1, "/submissions?"+tt.query), managerID, nil)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, buildPath(1, "/dashboard"), editorID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var views dashboardResponse
	decodeJSON(t, rr, &views)
	ids := make([]dashboard.ViewID, len(views.Views))
	for i, v := range views.Views {
		ids[i] = v.ID
	}
	assert.Equal(t, []dashboard.ViewID{dashboard.ViewAssignedToMe, dashboard.ViewOverdue}, ids)

	rr = env.do(t, http.MethodGet, buildPath(1, "/dashboard/overdue/submissions?search=smith"), editorID, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, env.lister.lastSQL(), "JOIN review_rounds rr")

	rr = env.do(t, http.MethodGet, buildPath(1, "/dashboard/archived/submissions"), editorID, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, http.MethodGet, buildPath(1, "/dashboard/starred/submissions"), editorID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGenres(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g, err := env.deps.Genres.Create(ctx, workflow.GenreInput{ContextID: 1, Key: "article", Name: domain.LocalizedText{"en": "Article"}, Category: domain.GenreCategoryDocument})
	require.NoError(t, err)
	_, err = env.deps.Genres.Create(ctx, workflow.GenreInput{ContextID: 1, Key: "image", Name: domain.LocalizedText{"en": "Image"}, Category: domain.GenreCategoryArtwork})
	require.NoError(t, err)
	require.NoError(t, env.deps.Genres.SetEnabled(ctx, g.ID, false))

	var list listGenresResponse
	rr := env.do(t, http.MethodGet, buildPath(1, "/genres"), authorID, nil)
	decodeJSON(t, rr, &list)
	assert.Len(t, list.Genres, 1)

	rr = env.do(t, http.MethodGet, buildPath(1, "/genres?all=true"), authorID, nil)
	decodeJSON(t, rr, &list)
	assert.Len(t, list.Genres, 2)
}

func TestWriteDomainError(t *testing.T) {
	srv := NewServer(Config{}, Deps{}, zerolog.Nop(), nil)
	tests := []struct {
		name       string
		err        error
		status     int
		retryAfter string
	}{
		{"not found", domain.NewNotFoundError("submission", "1"), http.StatusNotFound, ""},
		{"invalid query", domain.NewInvalidQueryError("no scope"), http.StatusBadRequest, ""},
		{"validation", domain.NewValidationError("title", "required"), http.StatusBadRequest, ""},
		{"invalid state", fmt.Errorf("publish: %w", domain.NewInvalidStateError("publication", "1", "already published")), http.StatusConflict, ""},
		{"conflict", domain.NewConflictError("submission", "1", errors.New("40001")), http.StatusConflict, conflictRetryAfter},
		{"constraint", domain.NewConstraintViolationError("review_round", "unique"), http.StatusInternalServerError, ""},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized, ""},
		{"forbidden", fmt.Errorf("%w: nope", domain.ErrForbidden), http.StatusForbidden, ""},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.writeDomainError(rr, httptest.NewRequest(http.MethodGet, "/x", nil), tt.err)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.retryAfter, rr.Header().Get("Retry-After"))

			var body map[string]string
			decodeJSON(t, rr, &body)
			assert.NotEmpty(t, body["error"])
			assert.NotContains(t, body["error"], "disk on fire", "internal details stay in the logs")
		})
	}
}

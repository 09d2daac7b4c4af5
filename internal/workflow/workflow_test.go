package workflow

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/editorial-workflow-service/internal/blob"
	"github.com/helixir/editorial-workflow-service/internal/config"
	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/events"
	"github.com/helixir/editorial-workflow-service/internal/locale"
	"github.com/helixir/editorial-workflow-service/internal/repository/memstore"
)

// stepClock advances one minute on every reading so timestamps are strictly ordered.
type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

type harness struct {
	store    *memstore.Store
	events   *events.Recorder
	blobs    *blob.FSStore
	clock    *stepClock
	versions *Versioning
	review   *Review
	files    *Files
	intake   *Intake
	genres   *Genres
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newLoggedHarness(t, zerolog.Nop())
}

func newLoggedHarness(t *testing.T, logger zerolog.Logger) *harness {
	t.Helper()
	h := &harness{
		store:  memstore.New(),
		events: &events.Recorder{},
		blobs:  blob.NewFSStore(afero.NewMemMapFs()),
		clock:  &stepClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	locales := locale.NewResolver(config.LocaleConfig{Primary: "en", Supported: []string{"en", "fr-CA"}})

	h.versions = NewVersioning(h.store, h.events, logger, nil)
	h.review = NewReview(h.store, h.versions, h.events, logger, nil)
	h.files = NewFiles(h.store, h.blobs, h.events, logger, nil)
	h.intake = NewIntake(h.store, locales, h.events, logger, nil)
	h.genres = NewGenres(h.store, logger)

	h.versions.now = h.clock.Now
	h.review.now = h.clock.Now
	h.files.now = h.clock.Now
	h.intake.now = h.clock.Now
	return h
}

// submitted creates and finalizes a submission with one publication.
func (h *harness) submitted(t *testing.T) *domain.Submission {
	t.Helper()
	ctx := context.Background()
	sub, err := h.intake.Create(ctx, SubmissionInput{
		ContextID: 1,
		Title:     domain.LocalizedText{"en": "Tidal mixing in estuaries"},
		Authors: []domain.Author{{
			GivenName:  domain.LocalizedText{"en": "Ada"},
			FamilyName: domain.LocalizedText{"en": "Smith"},
		}},
		SubmitterID: 7,
	})
	require.NoError(t, err)
	sub, err = h.intake.Finalize(ctx, sub.ID)
	require.NoError(t, err)
	return sub
}

// decide records a decision and fails the test on error.
func (h *harness) decide(t *testing.T, subID int64, code domain.DecisionCode) *DecisionResult {
	t.Helper()
	res, err := h.review.RecordDecision(context.Background(), DecisionInput{
		SubmissionID: subID,
		EditorID:     3,
		Decision:     code,
	})
	require.NoError(t, err)
	return res
}

// inExternalReview returns a submitted submission with external review round 1 open.
func (h *harness) inExternalReview(t *testing.T) (*domain.Submission, *domain.ReviewRound) {
	t.Helper()
	sub := h.submitted(t)
	res := h.decide(t, sub.ID, domain.DecisionExternalReview)
	require.NotNil(t, res.NewRound)
	return res.Submission, res.NewRound
}

func TestValidateInput(t *testing.T) {
	err := validateInput(DecisionInput{SubmissionID: 1, Decision: domain.DecisionAccept})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "EditorID", verr.Field)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.NoError(t, validateInput(DecisionInput{SubmissionID: 1, EditorID: 2, Decision: domain.DecisionAccept}))
}

func TestSanitizeText(t *testing.T) {
	got := sanitizeText(domain.LocalizedText{
		"en_US": "<b>Tides</b> <script>alert(1)</script>",
		"fr":    "   ",
	}, titlePolicy)

	assert.Equal(t, domain.LocalizedText{"en-US": "Tides"}, got)
	assert.Nil(t, sanitizeText(domain.LocalizedText{"en": "<script>x</script>"}, titlePolicy))
	assert.Equal(t, "<em>wave</em> data", sanitizeText(domain.LocalizedText{"en": "<em>wave</em> data"}, abstractPolicy)["en"])
}

func TestDispatcher_PublishFailureIsSwallowed(t *testing.T) {
	rec := &events.Recorder{Err: assert.AnError}
	d := newDispatcher(rec, zerolog.Nop())
	sub := &domain.Submission{ID: 4, ContextID: 1}

	d.publish(context.Background(), d.event(domain.EventTypeSubmissionDeleted, sub, 2, struct{}{}), nil)
	assert.Empty(t, rec.Events)

	d.publish(context.Background())
}

func TestEngines_LogSubmissionContext(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	h := newLoggedHarness(t, zerolog.New(&buf))

	sub := h.submitted(t)
	file, err := h.files.Upload(ctx, UploadInput{
		SubmissionID:   sub.ID,
		FileStage:      domain.FileStageSubmission,
		UploaderUserID: 7,
		Content:        Content{Name: "manuscript.pdf", Data: []byte("%PDF-1.4\nbody")},
	})
	require.NoError(t, err)
	_, err = h.versions.NewVersion(ctx, sub.ID, *sub.CurrentPublicationID, 3)
	require.NoError(t, err)

	entries := make(map[string]map[string]any)
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		if msg, ok := entry["message"].(string); ok {
			entries[msg] = entry
		}
	}

	for _, msg := range []string{"submission created", "submission finalized", "file uploaded", "publication version created"} {
		t.Run(msg, func(t *testing.T) {
			entry, ok := entries[msg]
			require.True(t, ok, "no %q log line", msg)
			assert.Equal(t, float64(sub.ID), entry["submission_id"])
			assert.Equal(t, float64(sub.ContextID), entry["context_id"])
		})
	}
	assert.Equal(t, float64(file.ID), entries["file uploaded"]["submission_file_id"])
	assert.Equal(t, "submission", entries["file uploaded"]["file_stage"])
}

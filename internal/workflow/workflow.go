// Package workflow implements the editorial workflow core on top of the
// entity store.
//
// # Engines
//
//   - Versioning resolves the current, latest and original publication of a
//     submission and derives new publication versions.
//   - Review records editorial decisions, applies their side effects and
//     keeps the cached status of review rounds in step with the decision log.
//   - Files tracks submission files through file stages with an append-only
//     revision history.
//   - Intake creates, finalizes and deletes submissions.
//   - Genres manages the file-type taxonomy.
//
// # Transactions
//
// Every mutation runs in one repository.Store transaction. Multi-step
// sequences (decision insert, round status recomputation, stage change, new
// version with repoint) either commit together or not at all. The submission
// row is locked first so concurrent writers to one submission serialize.
//
// # Events
//
// Domain events are published after commit. A failed publish is logged and
// never rolls back committed state.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/events"
	"github.com/helixir/editorial-workflow-service/internal/locale"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs struct validation and maps the first failure onto a
// domain.ValidationError.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := fmt.Sprintf("failed %q validation", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed %q validation (%s)", fe.Tag(), fe.Param())
		}
		return domain.NewValidationError(fe.Field(), msg)
	}
	return domain.NewValidationError("input", err.Error())
}

// Sanitization policies for localized metadata. Titles are plain text;
// abstracts keep basic formatting markup.
var (
	titlePolicy    = bluemonday.StrictPolicy()
	abstractPolicy = bluemonday.UGCPolicy()
)

// sanitizeText normalizes locale keys, strips unsafe markup and drops empty values.
func sanitizeText(t domain.LocalizedText, policy *bluemonday.Policy) domain.LocalizedText {
	if len(t) == 0 {
		return nil
	}
	out := make(domain.LocalizedText, len(t))
	for k, v := range t {
		key := locale.Normalize(k)
		clean := strings.TrimSpace(policy.Sanitize(v))
		if key == "" || clean == "" {
			continue
		}
		out[key] = clean
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// sanitizeAuthors cleans author names and trims contact fields.
func sanitizeAuthors(authors []domain.Author) []domain.Author {
	if len(authors) == 0 {
		return nil
	}
	out := make([]domain.Author, 0, len(authors))
	for i, a := range authors {
		a.ID = 0
		a.PublicationID = 0
		a.GivenName = sanitizeText(a.GivenName, titlePolicy)
		a.FamilyName = sanitizeText(a.FamilyName, titlePolicy)
		a.Email = strings.TrimSpace(a.Email)
		a.ORCID = strings.TrimSpace(a.ORCID)
		if a.Seq == 0 {
			a.Seq = i + 1
		}
		out = append(out, a)
	}
	return out
}

// utcNow returns the current time at the precision PostgreSQL stores.
func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// dispatcher publishes events after commit and swallows failures.
type dispatcher struct {
	publisher events.Publisher
	logger    zerolog.Logger
}

func newDispatcher(publisher events.Publisher, logger zerolog.Logger) dispatcher {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return dispatcher{publisher: publisher, logger: logger}
}

// event builds an event, logging and returning nil when the payload cannot be encoded.
func (d dispatcher) event(eventType string, sub *domain.Submission, actorID int64, payload any) *domain.Event {
	e, err := domain.NewEvent(eventType, sub.ID, payload)
	if err != nil {
		d.logger.Error().Err(err).Str("event_type", eventType).Int64("submission_id", sub.ID).Msg("failed to build event")
		return nil
	}
	return e.WithContext(sub.ContextID).WithActor(actorID)
}

// publish sends the non-nil events. Errors are logged, not returned.
func (d dispatcher) publish(ctx context.Context, evs ...*domain.Event) {
	batch := evs[:0:0]
	for _, e := range evs {
		if e != nil {
			batch = append(batch, e)
		}
	}
	if len(batch) == 0 {
		return
	}
	if err := d.publisher.Publish(ctx, batch...); err != nil {
		d.logger.Error().Err(err).Int("count", len(batch)).Msg("failed to publish events after commit")
	}
}

// wrapSubmission adds the submission id to err unless err is nil.
func wrapSubmission(err error, action string, submissionID int64) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s (submission %d): %w", action, submissionID, err)
}

package httpserver

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/helixir/editorial-workflow-service/internal/config"
	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/identity"
	"github.com/helixir/editorial-workflow-service/internal/locale"
	"github.com/helixir/editorial-workflow-service/internal/observability"
)

type contextKey string

const ctxKeySubmission contextKey = "submission"

// UserIDHeader carries the acting user when bearer tokens are disabled.
const UserIDHeader = "X-User-ID"

// Claims are the bearer token claims. The acting user is UserID.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// BearerAuth validates HMAC-signed bearer tokens and attaches the token's
// user to the request context.
func BearerAuth(cfg config.AuthConfig) func(http.Handler) http.Handler {
	key := []byte(cfg.JWTSecret)
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString := strings.TrimPrefix(header, "Bearer ")
			if header == "" || tokenString == header {
				writeError(w, http.StatusUnauthorized, "bearer token required")
				return
			}

			claims := &Claims{}
			token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil || !token.Valid || claims.UserID <= 0 {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(observability.WithUserID(r.Context(), claims.UserID)))
		})
	}
}

// HeaderAuth trusts the X-User-ID header. It is used when bearer tokens are
// disabled, behind a gateway that already authenticated the caller.
func HeaderAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v := r.Header.Get(UserIDHeader); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				writeError(w, http.StatusUnauthorized, "invalid user id header")
				return
			}
			r = r.WithContext(observability.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// requireUser rejects requests without an acting user.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := observability.UserIDFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// contextMiddleware extracts the journal context id from the URL path.
func contextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contextID, ok := parseID(w, chi.URLParam(r, "contextID"), "context_id")
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(observability.WithContextID(r.Context(), contextID)))
	})
}

// submissionMiddleware loads the submission named in the path, checks that it
// belongs to the context and that the user may see it.
func (s *Server) submissionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		submissionID, ok := parseID(w, chi.URLParam(r, "submissionID"), "submission_id")
		if !ok {
			return
		}

		sub, err := s.deps.Versions.Submission(ctx, submissionID)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		contextID, _ := observability.ContextIDFromContext(ctx)
		if sub.ContextID != contextID {
			s.writeDomainError(w, r, domain.NewNotFoundError("submission", strconv.FormatInt(submissionID, 10)))
			return
		}
		if err := s.authorize(ctx, sub); err != nil {
			s.writeDomainError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, ctxKeySubmission, sub)))
	})
}

// authorize allows managers, site administrators and users assigned to the submission.
func (s *Server) authorize(ctx context.Context, sub *domain.Submission) error {
	if s.deps.Directory == nil {
		return nil
	}
	userID, _ := observability.UserIDFromContext(ctx)
	roles, err := s.deps.Directory.RoleIDsFor(ctx, userID, sub.ContextID)
	if err != nil {
		return err
	}
	if identity.IsPrivileged(roles) {
		return nil
	}
	assigned, err := s.deps.Directory.IsAssigned(ctx, userID, sub.ID)
	if err != nil {
		return err
	}
	if !assigned {
		return fmt.Errorf("%w: user %d is not assigned to submission %d", domain.ErrForbidden, userID, sub.ID)
	}
	return nil
}

// localeMiddleware attaches the negotiated UI locale to the request context.
func (s *Server) localeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Locales == nil {
			next.ServeHTTP(w, r)
			return
		}
		tag := r.URL.Query().Get("locale")
		if tag == "" {
			tag = s.deps.Locales.Negotiate(r.Header.Get("Accept-Language"))
		}
		w.Header().Set("Content-Language", locale.Normalize(tag))
		next.ServeHTTP(w, r.WithContext(locale.WithLocale(r.Context(), tag)))
	})
}

// correlationIDMiddleware ensures every request has a correlation ID.
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = middleware.GetReqID(r.Context())
		}
		if correlationID == "" {
			buf := make([]byte, 8)
			if _, err := rand.Read(buf); err != nil {
				// Fallback to timestamp-based ID if crypto/rand fails.
				correlationID = fmt.Sprintf("%x", time.Now().UnixNano())
			} else {
				correlationID = fmt.Sprintf("%x", buf)
			}
		}

		w.Header().Set("X-Correlation-ID", correlationID)
		ctx := observability.WithRequestID(r.Context(), correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// submissionFromContext returns the submission loaded by submissionMiddleware.
func submissionFromContext(ctx context.Context) *domain.Submission {
	sub, _ := ctx.Value(ctxKeySubmission).(*domain.Submission)
	return sub
}

// actor returns the acting user and context of the request.
func actor(ctx context.Context) (userID, contextID int64) {
	userID, _ = observability.UserIDFromContext(ctx)
	contextID, _ = observability.ContextIDFromContext(ctx)
	return userID, contextID
}

// parseID parses a positive integer id, writing a 400 error response if invalid.
// The parse error details are not included to avoid echoing potentially malicious input.
func parseID(w http.ResponseWriter, s, fieldName string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a positive integer", fieldName))
		return 0, false
	}
	return id, true
}

// Package locale resolves the locales used to read localized metadata.
//
// Locale codes are BCP 47 tags ("en", "fr-CA"). Legacy underscore codes such
// as "fr_CA" are accepted and normalized.
package locale

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/helixir/editorial-workflow-service/internal/config"
	"github.com/helixir/editorial-workflow-service/internal/domain"
)

type contextKey struct{}

// WithLocale attaches the UI locale of the current request to ctx.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, contextKey{}, Normalize(locale))
}

// Normalize returns the canonical BCP 47 form of code, or code unchanged
// when it does not parse.
func Normalize(code string) string {
	code = strings.TrimSpace(strings.ReplaceAll(code, "_", "-"))
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return tag.String()
}

// Resolver implements the locale collaborator.
type Resolver struct {
	primary   string
	supported []language.Tag
	matcher   language.Matcher

	mu             sync.RWMutex
	contextPrimary map[int64]string
}

// NewResolver creates a resolver from configuration. The primary locale is
// always supported and listed first.
func NewResolver(cfg config.LocaleConfig) *Resolver {
	primary := Normalize(cfg.Primary)
	if primary == "" {
		primary = "en"
	}

	supported := []language.Tag{language.Make(primary)}
	for _, code := range cfg.Supported {
		tag, err := language.Parse(Normalize(code))
		if err != nil || tag.String() == primary {
			continue
		}
		supported = append(supported, tag)
	}

	return &Resolver{
		primary:        primary,
		supported:      supported,
		matcher:        language.NewMatcher(supported),
		contextPrimary: map[int64]string{},
	}
}

// SetPrimaryLocale overrides the primary locale of one context.
func (r *Resolver) SetPrimaryLocale(contextID int64, locale string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contextPrimary[contextID] = Normalize(locale)
}

// CurrentLocale returns the UI locale attached to ctx, or the primary locale.
func (r *Resolver) CurrentLocale(ctx context.Context) string {
	if l, ok := ctx.Value(contextKey{}).(string); ok && l != "" {
		return l
	}
	return r.primary
}

// PrimaryLocale returns the primary locale of a context.
func (r *Resolver) PrimaryLocale(contextID int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if l, ok := r.contextPrimary[contextID]; ok && l != "" {
		return l
	}
	return r.primary
}

// Negotiate picks the best supported locale for an Accept-Language header.
func (r *Resolver) Negotiate(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return r.primary
	}
	_, idx, confidence := r.matcher.Match(tags...)
	if confidence == language.No {
		return r.primary
	}
	return r.supported[idx].String()
}

// Chain returns the lookup order for localized metadata of a submission:
// the current UI locale, the submission's own locale, then the context's
// primary locale. Duplicates and empty codes are dropped.
func (r *Resolver) Chain(ctx context.Context, submissionLocale string, contextID int64) []string {
	candidates := []string{r.CurrentLocale(ctx), Normalize(submissionLocale), r.PrimaryLocale(contextID)}
	out := make([]string, 0, len(candidates))
	seen := map[string]bool{}
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Localize returns the first non-empty value of t along chain. When no
// locale in chain has a value, a value stored under the same base language
// is used before giving up.
func Localize(t domain.LocalizedText, chain ...string) string {
	if len(chain) == 0 {
		return ""
	}
	if v := t.Get(chain[0], chain[1:]...); v != "" {
		return v
	}
	for _, want := range chain {
		wantBase, _ := language.Make(want).Base()
		for code, v := range t {
			if v == "" {
				continue
			}
			if base, _ := language.Make(Normalize(code)).Base(); base == wantBase {
				return v
			}
		}
	}
	return ""
}

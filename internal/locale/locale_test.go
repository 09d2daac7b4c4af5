package locale

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helixir/editorial-workflow-service/internal/config"
	"github.com/helixir/editorial-workflow-service/internal/domain"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"en", "en"},
		{"fr_CA", "fr-CA"},
		{" pt-br ", "pt-BR"},
		{"", ""},
		{"not a locale!", "not a locale!"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestResolver(t *testing.T) {
	r := NewResolver(config.LocaleConfig{Primary: "en", Supported: []string{"fr_CA", "de", "en"}})
	ctx := context.Background()

	t.Run("current locale defaults to primary", func(t *testing.T) {
		assert.Equal(t, "en", r.CurrentLocale(ctx))
		assert.Equal(t, "fr-CA", r.CurrentLocale(WithLocale(ctx, "fr_CA")))
	})

	t.Run("context primary override", func(t *testing.T) {
		r.SetPrimaryLocale(9, "de")
		assert.Equal(t, "de", r.PrimaryLocale(9))
		assert.Equal(t, "en", r.PrimaryLocale(1))
	})

	t.Run("negotiates accept-language", func(t *testing.T) {
		assert.Equal(t, "de", r.Negotiate("de-AT,de;q=0.9,en;q=0.5"))
		assert.Equal(t, "fr-CA", r.Negotiate("fr-CA"))
		assert.Equal(t, "en", r.Negotiate("ja"))
		assert.Equal(t, "en", r.Negotiate(""))
	})

	t.Run("chain drops duplicates", func(t *testing.T) {
		assert.Equal(t, []string{"de", "fr-CA", "en"}, r.Chain(WithLocale(ctx, "de"), "fr_CA", 1))
		assert.Equal(t, []string{"en"}, r.Chain(ctx, "en", 1))
	})
}

func TestLocalize(t *testing.T) {
	title := domain.LocalizedText{"en": "Tides", "fr-CA": "Marées", "de": ""}

	assert.Equal(t, "Marées", Localize(title, "fr-CA", "en"))
	assert.Equal(t, "Tides", Localize(title, "de", "en"))
	assert.Equal(t, "Marées", Localize(title, "fr"))
	assert.Equal(t, "", Localize(title, "ja"))
	assert.Equal(t, "", Localize(title))
}

package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDContext(t *testing.T) {
	t.Run("stores and retrieves request ID", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-123")
		assert.Equal(t, "req-123", RequestIDFromContext(ctx))
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		assert.Equal(t, "", RequestIDFromContext(context.Background()))
	})
}

func TestUserIDContext(t *testing.T) {
	ctx := WithUserID(context.Background(), 12)
	id, ok := UserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(12), id)

	_, ok = UserIDFromContext(context.Background())
	assert.False(t, ok)
}

func TestContextIDContext(t *testing.T) {
	ctx := WithContextID(context.Background(), 4)
	id, ok := ContextIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(4), id)
}

func TestRequestContextRoundTrip(t *testing.T) {
	t.Run("all fields", func(t *testing.T) {
		rc := RequestContext{RequestID: "r", UserID: 1, ContextID: 2}
		ctx := WithRequestContextFull(context.Background(), rc)
		assert.Equal(t, rc, RequestContextFrom(ctx))
	})

	t.Run("zero fields are not stored", func(t *testing.T) {
		ctx := WithRequestContextFull(context.Background(), RequestContext{RequestID: "r"})
		_, ok := UserIDFromContext(ctx)
		assert.False(t, ok)
		assert.Equal(t, RequestContext{RequestID: "r"}, RequestContextFrom(ctx))
	})
}

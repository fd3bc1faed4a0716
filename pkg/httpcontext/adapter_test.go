package httpcontext

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/dailyquest/pkg/logger"
)

func TestAttachCarriesRequestMetadata(t *testing.T) {
	adapter := NewAdapter(time.Second)
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.Set("X-Request-ID", "req-42")
	ctx.Request.Header.Set("X-User-ID", "u1")
	ctx.Request.Header.SetUserAgent("quest-app/1.0")

	stdCtx, cancel := adapter.Attach(ctx)
	defer cancel()

	deadline, ok := stdCtx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 100*time.Millisecond)
	assert.Equal(t, "req-42", appLogger.RequestID(stdCtx))
	assert.Equal(t, "req-42", string(ctx.Response.Header.Peek("X-Request-ID")))
	assert.Equal(t, "u1", UserID(stdCtx))
	assert.Equal(t, "quest-app/1.0", stdCtx.Value(KeyUserAgent))
}

func TestAttachGeneratesRequestID(t *testing.T) {
	stdCtx, cancel := NewAdapter(0).Attach(&fasthttp.RequestCtx{})
	defer cancel()
	assert.Len(t, appLogger.RequestID(stdCtx), 36)
	assert.Empty(t, UserID(stdCtx))
}

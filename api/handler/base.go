package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/dailyquest/api/transport"
	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/pkg/httpcontext"
	appLogger "github.com/fastygo/dailyquest/pkg/logger"
)

const (
	headerUserID   = "X-User-ID"
	headerUsername = "X-Username"

	defaultPageSize = 50
)

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter != nil {
		return h.adapter.Attach(ctx)
	}
	return context.WithCancel(context.Background())
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(payload)
	ctx.SetBody(body)
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	h.respondJSON(ctx, status, transport.NewSuccess(data, nil))
}

func (h baseHandler) respondError(ctx *fasthttp.RequestCtx, err error) {
	status, code := mapError(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()),
			zap.Error(err))
		message = "internal error"
	}
	h.respondJSON(ctx, status, transport.NewError(code, message, nil))
}

// logFor returns the handler logger tagged with the request and caller ids carried by stdCtx.
func (h baseHandler) logFor(stdCtx context.Context) *zap.Logger {
	l := appLogger.WithRequestID(stdCtx, h.logger)
	if id := httpcontext.UserID(stdCtx); id != "" {
		l = l.With(zap.String("user_id", id))
	}
	return l
}

// userID reads the identity set by the auth middleware and answers 401 when it is missing.
func (h baseHandler) userID(ctx *fasthttp.RequestCtx) string {
	userID := string(ctx.Request.Header.Peek(headerUserID))
	if userID == "" {
		h.respondError(ctx, domain.ErrUnauthorized)
	}
	return userID
}

func username(ctx *fasthttp.RequestCtx) string {
	return string(ctx.Request.Header.Peek(headerUsername))
}

func (h baseHandler) pathID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondError(ctx, domain.NewError(domain.ErrCodeInvalid, "missing user quest id"))
	}
	return id
}

func mapError(err error) (int, domain.ErrorCode) {
	var dErr *domain.Error
	if !errors.As(err, &dErr) {
		return http.StatusInternalServerError, domain.ErrCodeInternal
	}
	switch dErr.Code {
	case domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized, dErr.Code
	case domain.ErrCodeForbidden, domain.ErrCodeSelfReference:
		return http.StatusForbidden, dErr.Code
	case domain.ErrCodeInvalid, domain.ErrCodeMissingInput:
		return http.StatusBadRequest, dErr.Code
	case domain.ErrCodeNotFound:
		return http.StatusNotFound, dErr.Code
	case domain.ErrCodeInvalidState, domain.ErrCodeAlreadyDone, domain.ErrCodeExhausted:
		return http.StatusConflict, dErr.Code
	case domain.ErrCodeLimitReached:
		return http.StatusTooManyRequests, dErr.Code
	default:
		return http.StatusInternalServerError, domain.ErrCodeInternal
	}
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}

// page reads limit/offset query arguments.
func page(ctx *fasthttp.RequestCtx) (int, int) {
	args := ctx.QueryArgs()
	limit := parseInt(string(args.Peek("limit")), defaultPageSize)
	offset := parseInt(string(args.Peek("offset")), 0)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

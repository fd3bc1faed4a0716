package handler

import (
	"io"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/dailyquest/api/transport"
	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/pkg/httpcontext"
	"github.com/fastygo/dailyquest/usecase"
	allocatorUC "github.com/fastygo/dailyquest/usecase/allocator"
	attemptUC "github.com/fastygo/dailyquest/usecase/attempt"
)

const proofField = "proofImage"

type QuestHandler struct {
	baseHandler
	allocator *allocatorUC.UseCase
	attempts  *attemptUC.UseCase
	maxUpload int
}

func NewQuestHandler(
	allocator *allocatorUC.UseCase,
	attempts *attemptUC.UseCase,
	maxUpload int,
	adapter *httpcontext.Adapter,
	logger *zap.Logger,
) *QuestHandler {
	return &QuestHandler{
		baseHandler: newBaseHandler(adapter, logger),
		allocator:   allocator,
		attempts:    attempts,
		maxUpload:   maxUpload,
	}
}

// @Summary Today's quests
// @Tags userquests
// @Router /api/userquests/today [get]
func (h *QuestHandler) Today(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	attempts, err := h.allocator.EnsureToday(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, attempts)
}

// @Summary Start quest
// @Tags userquests
// @Router /api/userquests/{id}/start [post]
func (h *QuestHandler) Start(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	id := h.pathID(ctx)
	if id == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	started, err := h.attempts.Start(stdCtx, userID, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, started)
}

// @Summary Change quest
// @Tags userquests
// @Router /api/userquests/{id}/change [post]
func (h *QuestHandler) Change(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	id := h.pathID(ctx)
	if id == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	swapped, err := h.allocator.Swap(stdCtx, userID, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.logFor(stdCtx).Info("quest changed",
		zap.String("user_id", userID),
		zap.String("attempt_id", id),
		zap.String("quest_id", swapped.QuestID))
	h.respondSuccess(ctx, http.StatusOK, swapped)
}

// @Summary Submit proof
// @Tags userquests
// @Accept multipart/form-data
// @Router /api/userquests/submit/{id} [put]
func (h *QuestHandler) Submit(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	id := h.pathID(ctx)
	if id == "" {
		return
	}

	proof, err := h.readProof(ctx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	submitted, err := h.attempts.SubmitProof(stdCtx, userID, id, proof)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, submitted)
}

// @Summary My quests
// @Tags userquests
// @Router /api/userquests/me [get]
func (h *QuestHandler) Mine(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	limit, offset := page(ctx)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	attempts, err := h.attempts.ListMine(stdCtx, userID, limit, offset)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(attempts, transport.PageMeta{
		Limit:  limit,
		Offset: offset,
		Count:  len(attempts),
	}))
}

// @Summary Validated quests
// @Tags userquests
// @Router /api/userquests/validated [get]
func (h *QuestHandler) Validated(ctx *fasthttp.RequestCtx) {
	limit, offset := page(ctx)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	attempts, err := h.attempts.ListValidated(stdCtx, limit, offset)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(attempts, transport.PageMeta{
		Limit:  limit,
		Offset: offset,
		Count:  len(attempts),
	}))
}

// readProof extracts the uploaded proof file. A request without the file yields an empty proof
// so the state check runs before the missing-input check.
func (h *QuestHandler) readProof(ctx *fasthttp.RequestCtx) (usecase.Proof, error) {
	header, err := ctx.FormFile(proofField)
	if err != nil {
		return usecase.Proof{}, nil
	}
	if h.maxUpload > 0 && header.Size > int64(h.maxUpload) {
		return usecase.Proof{}, domain.NewError(domain.ErrCodeInvalid, "proof image too large")
	}

	file, err := header.Open()
	if err != nil {
		return usecase.Proof{}, domain.WrapError(domain.ErrCodeInvalid, "unreadable proof image", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return usecase.Proof{}, domain.WrapError(domain.ErrCodeInvalid, "unreadable proof image", err)
	}
	return usecase.Proof{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

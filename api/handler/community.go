package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/dailyquest/api/transport"
	"github.com/fastygo/dailyquest/pkg/httpcontext"
	validationUC "github.com/fastygo/dailyquest/usecase/validation"
)

type CommunityHandler struct {
	baseHandler
	uc *validationUC.UseCase
}

func NewCommunityHandler(uc *validationUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *CommunityHandler {
	return &CommunityHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Quests awaiting validation
// @Tags community
// @Router /api/community/quests [get]
// @Router /api/userquests/submitted [get]
func (h *CommunityHandler) List(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	limit := parseInt(string(ctx.QueryArgs().Peek("limit")), defaultPageSize)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	items, budget, err := h.uc.ListValidatable(stdCtx, userID, limit)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(items, transport.ValidationMeta{
		Limit:     budget.Limit,
		Used:      budget.Used,
		Remaining: budget.Remaining,
		Count:     len(items),
	}))
}

// @Summary Validate quest
// @Tags community
// @Router /api/community/quests/{id}/validate [post]
// @Router /api/userquests/{id}/validate [post]
func (h *CommunityHandler) Validate(ctx *fasthttp.RequestCtx) {
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

	attempt, err := h.uc.Vote(stdCtx, userID, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	resp := transport.VoteResponse{
		ID:              attempt.ID,
		Status:          string(attempt.Status),
		ValidationCount: attempt.ValidationCount,
	}
	if budget, err := h.uc.Budget(stdCtx, userID); err == nil {
		resp.Remaining = budget.Remaining
	} else {
		h.logFor(stdCtx).Warn("validation budget lookup failed", zap.String("user_id", userID), zap.Error(err))
	}
	h.respondSuccess(ctx, http.StatusOK, resp)
}

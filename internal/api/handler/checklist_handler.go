package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/club-overlay/internal/model"
	"github.com/d60-Lab/club-overlay/internal/repository"
	"github.com/d60-Lab/club-overlay/internal/service"
	"github.com/d60-Lab/club-overlay/pkg/response"
)

type checklistEntry struct {
	ID          string     `json:"id"`
	Label       string     `json:"label"`
	SortOrder   int        `json:"sort_order"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func toChecklistEntry(e repository.Entry[model.ChecklistItem]) checklistEntry {
	return checklistEntry{
		ID:          e.Item.ID,
		Label:       e.Item.Label,
		SortOrder:   e.Item.SortOrder,
		Completed:   e.Acknowledged,
		CompletedAt: e.AcknowledgedAt,
	}
}

type checklistPatchRequest struct {
	UserID    string `json:"user_id"`
	ItemID    string `json:"item_id" binding:"required,notblank"`
	Completed *bool  `json:"completed" binding:"required"`
}

type checklistProgress struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	ItemID      string     `json:"item_id"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
}

func ackRequest(userID, itemID string, flag *bool) service.AckRequest {
	return service.AckRequest{UserID: userID, ItemID: itemID, Acknowledged: flag}
}

// ListChecklist 当前用户的清单
// @Summary 清单（含完成状态）
// @Tags 清单
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]checklistEntry}
// @Router /api/v1/checklist [get]
func (h *Handler) ListChecklist(c *gin.Context) {
	uid, ok := callerFor(c, "")
	if !ok {
		return
	}
	entries, err := h.checklist.ListWithStatus(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]checklistEntry, len(entries))
	for i, e := range entries {
		out[i] = toChecklistEntry(e)
	}
	response.Success(c, out)
}

// IncompleteCount 未完成数量
// @Summary 未完成条目数量
// @Tags 清单
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=countResponse}
// @Router /api/v1/checklist/incomplete-count [get]
func (h *Handler) IncompleteCount(c *gin.Context) {
	uid, ok := callerFor(c, "")
	if !ok {
		return
	}
	n, err := h.checklist.CountUnacknowledged(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, countResponse{Count: n})
}

// SetCompleted 标记完成 / 未完成
// @Summary 设置条目完成状态，重复标记完成会刷新完成时间
// @Tags 清单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body checklistPatchRequest true "条目"
// @Success 200 {object} response.Response{data=checklistProgress}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /api/v1/checklist [patch]
func (h *Handler) SetCompleted(c *gin.Context) {
	var req checklistPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	uid, ok := callerFor(c, req.UserID)
	if !ok {
		return
	}
	ack, err := h.checklist.Acknowledge(c.Request.Context(), ackRequest(uid, req.ItemID, req.Completed))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, checklistProgress{
		ID:          ack.ID,
		UserID:      ack.UserID,
		ItemID:      ack.ItemID,
		Completed:   ack.Acknowledged,
		CompletedAt: ack.AcknowledgedAt,
	})
}

package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/club-overlay/internal/model"
	"github.com/d60-Lab/club-overlay/internal/repository"
	"github.com/d60-Lab/club-overlay/pkg/response"
)

type inboxMessage struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
	SenderName string    `json:"sender_name"`
	IsRead     bool      `json:"is_read"`
}

func toInboxMessage(e repository.Entry[model.Message]) inboxMessage {
	return inboxMessage{
		ID:         e.Item.ID,
		Title:      e.Item.Title,
		Body:       e.Item.Body,
		CreatedAt:  e.Item.CreatedAt,
		SenderName: e.Item.SenderName,
		IsRead:     e.Acknowledged,
	}
}

type markReadRequest struct {
	UserID    string `json:"user_id"`
	MessageID string `json:"message_id" binding:"required,notblank"`
	// Only true is accepted; read state cannot be reverted.
	Acknowledged *bool `json:"acknowledged"`
}

type readReceipt struct {
	MessageID string     `json:"message_id"`
	ReadAt    *time.Time `json:"read_at"`
}

type markReadResponse struct {
	Success bool        `json:"success"`
	Read    readReceipt `json:"read"`
}

// ListInbox 当前用户的收件箱
// @Summary 收件箱列表（含已读状态）
// @Tags 收件箱
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]inboxMessage}
// @Failure 401 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /api/v1/inbox [get]
func (h *Handler) ListInbox(c *gin.Context) {
	uid, ok := callerFor(c, "")
	if !ok {
		return
	}
	entries, err := h.inbox.ListWithStatus(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]inboxMessage, len(entries))
	for i, e := range entries {
		out[i] = toInboxMessage(e)
	}
	response.Success(c, out)
}

// GetMessage 单条消息
// @Summary 查询单条消息（含已读状态）
// @Tags 收件箱
// @Produce json
// @Security BearerAuth
// @Param id path string true "消息ID"
// @Success 200 {object} response.Response{data=inboxMessage}
// @Failure 404 {object} response.Response
// @Router /api/v1/inbox/{id} [get]
func (h *Handler) GetMessage(c *gin.Context) {
	uid, ok := callerFor(c, "")
	if !ok {
		return
	}
	e, err := h.inbox.Get(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, toInboxMessage(*e))
}

// UnreadCount 未读数量
// @Summary 未读消息数量
// @Tags 收件箱
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=countResponse}
// @Router /api/v1/inbox/unread-count [get]
func (h *Handler) UnreadCount(c *gin.Context) {
	uid, ok := callerFor(c, "")
	if !ok {
		return
	}
	n, err := h.inbox.CountUnacknowledged(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, countResponse{Count: n})
}

// MarkRead 标记已读（幂等）
// @Summary 标记消息已读，重复调用保持首次时间
// @Tags 收件箱
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body markReadRequest true "消息"
// @Success 200 {object} response.Response{data=markReadResponse}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /api/v1/inbox [patch]
func (h *Handler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	uid, ok := callerFor(c, req.UserID)
	if !ok {
		return
	}
	ack, err := h.inbox.Acknowledge(c.Request.Context(), ackRequest(uid, req.MessageID, req.Acknowledged))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, markReadResponse{
		Success: true,
		Read:    readReceipt{MessageID: ack.ItemID, ReadAt: ack.AcknowledgedAt},
	})
}

// MarkAllRead 全部标记已读
// @Summary 全部标记已读
// @Tags 收件箱
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/inbox/read-all [post]
func (h *Handler) MarkAllRead(c *gin.Context) {
	uid, ok := callerFor(c, "")
	if !ok {
		return
	}
	n, err := h.inbox.AcknowledgeAll(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"success": true, "count": n})
}

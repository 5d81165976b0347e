package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/d60-Lab/club-overlay/internal/model"
	"github.com/d60-Lab/club-overlay/pkg/response"
)

type createMessageRequest struct {
	Title string `json:"title" binding:"required,notblank,max=255"`
	Body  string `json:"body"`
}

type createChecklistItemRequest struct {
	Label     string `json:"label" binding:"required,notblank,max=255"`
	SortOrder int    `json:"sort_order"`
}

// CreateMessage 发布消息
// @Summary 发布收件箱消息（管理员）
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createMessageRequest true "消息"
// @Success 201 {object} response.Response{data=model.Message}
// @Router /api/v1/admin/messages [post]
func (h *Handler) CreateMessage(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	sender, ok := callerFor(c, "")
	if !ok {
		return
	}
	msg := model.Message{ID: uuid.New().String(), Title: req.Title, Body: req.Body, SenderID: sender}
	if err := h.messages.Create(c.Request.Context(), &msg); err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, msg)
}

// CreateChecklistItem 新增清单条目
// @Summary 新增清单条目（管理员）
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createChecklistItemRequest true "条目"
// @Success 201 {object} response.Response{data=model.ChecklistItem}
// @Router /api/v1/admin/checklist [post]
func (h *Handler) CreateChecklistItem(c *gin.Context) {
	var req createChecklistItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	item := model.ChecklistItem{ID: uuid.New().String(), Label: req.Label, SortOrder: req.SortOrder}
	if err := h.items.Create(c.Request.Context(), &item); err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, item)
}

// DeactivateMessage 下线消息（保留已读记录）
// @Summary 下线消息（管理员）
// @Tags 管理
// @Security BearerAuth
// @Param id path string true "消息ID"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/messages/{id} [delete]
func (h *Handler) DeactivateMessage(c *gin.Context) {
	if err := h.messages.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// DeactivateChecklistItem 下线清单条目（保留完成记录）
// @Summary 下线清单条目（管理员）
// @Tags 管理
// @Security BearerAuth
// @Param id path string true "条目ID"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/checklist/{id} [delete]
func (h *Handler) DeactivateChecklistItem(c *gin.Context) {
	if err := h.items.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, nil)
}

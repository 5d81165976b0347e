package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/d60-Lab/club-overlay/internal/api/middleware"
	"github.com/d60-Lab/club-overlay/internal/model"
	"github.com/d60-Lab/club-overlay/internal/service"
	"github.com/d60-Lab/club-overlay/pkg/response"
)

// Handler 收件箱 / 清单 HTTP 处理器
type Handler struct {
	inbox     *service.OverlayService[model.Message]
	checklist *service.OverlayService[model.ChecklistItem]
	messages  *service.CatalogService[model.Message]
	items     *service.CatalogService[model.ChecklistItem]
}

func New(
	inbox *service.OverlayService[model.Message],
	checklist *service.OverlayService[model.ChecklistItem],
	messages *service.CatalogService[model.Message],
	items *service.CatalogService[model.ChecklistItem],
) *Handler {
	return &Handler{inbox: inbox, checklist: checklist, messages: messages, items: items}
}

// RegisterValidators adds the custom binding tags used by request structs.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	return v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// callerFor resolves the acting user: the authenticated identity, which a
// body user_id may repeat but not override.
func callerFor(c *gin.Context, bodyUserID string) (string, bool) {
	uid, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "missing identity")
		return "", false
	}
	if bodyUserID != "" && bodyUserID != uid {
		response.Forbidden(c, "user_id does not match the authenticated user")
		return "", false
	}
	return uid, true
}

// writeError maps the service error taxonomy onto HTTP responses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, err.Error())
	case service.Retryable(err):
		response.ServiceUnavailable(c, err)
	default:
		response.InternalError(c, err)
	}
}

type countResponse struct {
	Count int64 `json:"count"`
}

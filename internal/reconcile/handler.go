package reconcile

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"recibo/internal/logger"
	"recibo/pkg/errors"
)

// Submitter accepts a payload for background processing.
type Submitter interface {
	Submit(raw map[string]interface{}) bool
}

// Handler terminates the inbound webhook. It acknowledges fast; all slow work
// happens on the dispatcher after the response is written.
type Handler struct {
	dispatcher Submitter
	logger     logger.Logger
}

func NewHandler(dispatcher Submitter, log logger.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, logger: log}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.POST("/webhook", h.HandleWebhook)
	router.GET("/", h.HandleRoot)
}

func (h *Handler) HandleWebhook(c *gin.Context) {
	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		h.logger.WarnwCtx(c.Request.Context(), "Rejecting malformed webhook body", "error", err)
		appErr := errors.ErrValidation.WithMessage("Request body must be a JSON object").WithCause(err)
		c.JSON(appErr.Status, errors.ToErrorResponse(appErr))
		return
	}

	if !h.dispatcher.Submit(raw) {
		h.logger.WarnwCtx(c.Request.Context(), "Dispatcher saturated, refusing event")
		appErr := errors.ErrInternal.WithMessage("Service busy, retry later")
		c.JSON(http.StatusServiceUnavailable, errors.ToErrorResponse(appErr))
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) HandleRoot(c *gin.Context) {
	c.String(http.StatusOK, "Bot de recibos ativo.")
}

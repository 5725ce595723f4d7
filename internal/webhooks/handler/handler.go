package handler

import (
	"errors"
	"net/http"

	"outreach-server/internal/apierrors"
	"outreach-server/internal/observability"
	"outreach-server/internal/webhooks/processor"

	"github.com/gin-gonic/gin"
)

// Handler handles provider webhook HTTP requests
type Handler struct {
	processor *processor.WebhookProcessor
	logger    *observability.Logger
}

// New creates a new Handler
func New(processor *processor.WebhookProcessor, logger *observability.Logger) *Handler {
	return &Handler{
		processor: processor,
		logger:    logger,
	}
}

// MailgunEventRequest mirrors Mailgun's webhook payload shape
type MailgunEventRequest struct {
	EventData struct {
		Event     string `json:"event" binding:"required"`
		Recipient string `json:"recipient" binding:"required,email"`
	} `json:"event-data" binding:"required"`
}

// InboundReplyRequest mirrors the provider's inbound route POST
type InboundReplyRequest struct {
	Sender   string `form:"sender" binding:"required,email"`
	BodyText string `form:"body-plain"`
	Subject  string `form:"subject"`
}

// HandleDeliveryEvent handles POST /webhooks/mailgun/events
func (h *Handler) HandleDeliveryEvent(c *gin.Context) {
	var req MailgunEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	err := h.processor.ProcessDeliveryEvent(c.Request.Context(), processor.DeliveryEvent{
		Event:     req.EventData.Event,
		Recipient: req.EventData.Recipient,
	})
	if err != nil {
		if errors.Is(err, processor.ErrUnknownEvent) {
			// Acknowledge so the provider stops retrying events we ignore.
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

// HandleInboundReply handles POST /webhooks/mailgun/replies
func (h *Handler) HandleInboundReply(c *gin.Context) {
	var req InboundReplyRequest
	if err := c.ShouldBind(&req); err != nil {
		apierrors.BadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	classification, err := h.processor.ProcessInboundReply(c.Request.Context(), req.Sender, req.BodyText)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, classification)
}

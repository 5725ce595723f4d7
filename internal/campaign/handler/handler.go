package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"outreach-server/internal/apierrors"
	"outreach-server/internal/campaign/processor"
	"outreach-server/internal/engine"
	"outreach-server/internal/observability"
	"outreach-server/internal/ratelimit"
	"outreach-server/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	processor processor.CampaignProcessor
	limiter   *ratelimit.Service
	logger    *observability.Logger
}

func New(processor processor.CampaignProcessor, limiter *ratelimit.Service, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		limiter:   limiter,
		logger:    logger,
	}
}

// CreateCampaignRequest represents a campaign creation request
type CreateCampaignRequest struct {
	Name        string  `json:"name" binding:"required,min=1"`
	Description *string `json:"description,omitempty"`
}

// TemplateRequest represents a template in an HTTP request
type TemplateRequest struct {
	Subject string `json:"subject" binding:"required,min=1"`
	Body    string `json:"body" binding:"required,min=1"`
}

// LeadRequest represents a lead in an HTTP request
type LeadRequest struct {
	Email           string  `json:"email" binding:"required,email"`
	FirstName       *string `json:"first_name,omitempty"`
	LastName        *string `json:"last_name,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	VehicleInterest *string `json:"vehicle_interest,omitempty"`
	Source          *string `json:"source,omitempty"`
}

// TriageRequest carries an inbound reply body for classification
type TriageRequest struct {
	Body string `json:"body" binding:"required,min=1"`
}

// ScheduleRequest represents a schedule configuration request
type ScheduleRequest struct {
	ScheduleType     string     `json:"schedule_type" binding:"required,oneof=immediate scheduled recurring"`
	ScheduledStart   *time.Time `json:"scheduled_start,omitempty"`
	RecurringPattern *string    `json:"recurring_pattern,omitempty" binding:"omitempty,oneof=daily weekly monthly"`
	RecurringDays    []int      `json:"recurring_days,omitempty" binding:"dive,gte=0,lte=6"`
	RecurringTime    *string    `json:"recurring_time,omitempty"`
}

// LaunchRequest represents a manual launch request
type LaunchRequest struct {
	TestMode bool `json:"test_mode"`
}

func (h Handler) campaignID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("campaignID"))
	if err != nil {
		apierrors.BadRequest(c, "INVALID_ID", "campaign ID must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, processor.ErrCampaignNotFound):
		apierrors.NotFound(c, "Campaign not found")
	case errors.Is(err, processor.ErrLeadNotFound):
		apierrors.NotFound(c, "Lead not found")
	case errors.Is(err, processor.ErrCampaignCancelled):
		apierrors.Conflict(c, "CAMPAIGN_CANCELLED", "Campaign is cancelled")
	case errors.Is(err, processor.ErrInvalidTemplate):
		apierrors.BadRequest(c, "INVALID_TEMPLATE", "Template subject and body are required")
	case errors.Is(err, engine.ErrInvalidSchedule):
		apierrors.BadRequest(c, "INVALID_SCHEDULE", err.Error())
	case errors.Is(err, engine.ErrNoLeads):
		apierrors.BadRequest(c, "NO_LEADS", "Campaign has no leads to send to")
	default:
		apierrors.InternalError(c, err)
	}
}

// CreateCampaign handles POST /campaigns
func (h Handler) CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	campaign, err := h.processor.CreateCampaign(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, campaign)
}

// GetCampaign handles GET /campaigns/:campaignID
func (h Handler) GetCampaign(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}
	campaign, err := h.processor.GetCampaign(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// ListCampaigns handles GET /campaigns
func (h Handler) ListCampaigns(c *gin.Context) {
	var query struct {
		Limit  int `form:"limit"`
		Offset int `form:"offset"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		apierrors.BadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}
	campaigns, err := h.processor.ListCampaigns(c.Request.Context(), query.Limit, query.Offset)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns})
}

// AddTemplate handles POST /campaigns/:campaignID/templates
func (h Handler) AddTemplate(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}
	template, err := h.processor.AddTemplate(c.Request.Context(), id, req.Subject, req.Body)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, template)
}

// GetTemplates handles GET /campaigns/:campaignID/templates
func (h Handler) GetTemplates(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}
	templates, err := h.processor.GetTemplates(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

// AddLead handles POST /campaigns/:campaignID/leads
func (h Handler) AddLead(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}
	var req LeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}
	lead, err := h.processor.AddLead(c.Request.Context(), id, store.CreateLeadParams{
		Email:           req.Email,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
		VehicleInterest: req.VehicleInterest,
		Source:          req.Source,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lead)
}

// ListLeads handles GET /campaigns/:campaignID/leads
func (h Handler) ListLeads(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}
	leads, err := h.processor.ListLeads(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": leads})
}

// GetLeadByEmail handles GET /leads with an email query parameter
func (h Handler) GetLeadByEmail(c *gin.Context) {
	var query struct {
		Email string `form:"email" binding:"required,email"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		apierrors.BadRequest(c, "INVALID_REQUEST", "email query parameter is required")
		return
	}
	lead, err := h.processor.GetLeadByEmail(c.Request.Context(), query.Email)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// TriageLead handles POST /leads/:leadID/triage
func (h Handler) TriageLead(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("leadID"))
	if err != nil {
		apierrors.BadRequest(c, "INVALID_ID", "lead ID must be a valid UUID")
		return
	}
	var req TriageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}
	classification, err := h.processor.TriageLead(c.Request.Context(), leadID, req.Body)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, classification)
}

// ScheduleCampaign handles POST /campaigns/:campaignID/schedule
func (h Handler) ScheduleCampaign(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}
	campaign, err := h.processor.Schedule(c.Request.Context(), id, engine.ScheduleRequest{
		ScheduleType:     req.ScheduleType,
		ScheduledStart:   req.ScheduledStart,
		RecurringPattern: req.RecurringPattern,
		RecurringDays:    req.RecurringDays,
		RecurringTime:    req.RecurringTime,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// LaunchCampaign handles POST /campaigns/:campaignID/launch
func (h Handler) LaunchCampaign(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}
	// Body is optional; an empty body launches in normal mode.
	var req LaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		apierrors.BadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	limit, err := h.limiter.CheckLaunch(c.Request.Context(), id.String())
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	if !limit.Allowed {
		apierrors.TooManyRequests(c, "Launch limit reached for this campaign", limit.RetryAfterMs/1000)
		return
	}

	result, err := h.processor.Launch(c.Request.Context(), id, req.TestMode)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CancelCampaign handles POST /campaigns/:campaignID/cancel
func (h Handler) CancelCampaign(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}
	if err := h.processor.Cancel(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": store.CampaignStatusCancelled})
}

// GetExecutionLog handles GET /executions/:executionID/log
func (h Handler) GetExecutionLog(c *gin.Context) {
	executionID := c.Param("executionID")
	entries, err := h.processor.GetExecutionLog(c.Request.Context(), executionID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// ListActiveExecutions handles GET /executions/active
func (h Handler) ListActiveExecutions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"executions": h.processor.ActiveExecutions()})
}

// CancelExecution handles POST /executions/:executionID/cancel
func (h Handler) CancelExecution(c *gin.Context) {
	executionID := c.Param("executionID")
	if !h.processor.CancelExecution(executionID) {
		apierrors.NotFound(c, "Execution not found or already finished")
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

package api

import (
	"net/http"

	campaignHandler "outreach-server/internal/campaign/handler"
	webhookHandler "outreach-server/internal/webhooks/handler"

	"github.com/gin-gonic/gin"
)

type API struct {
	router          *gin.RouterGroup
	campaignHandler campaignHandler.Handler
	webhookHandler  *webhookHandler.Handler
}

func New(router *gin.RouterGroup, campaignHandler campaignHandler.Handler, webhookHandler *webhookHandler.Handler) API {
	return API{
		router:          router,
		campaignHandler: campaignHandler,
		webhookHandler:  webhookHandler,
	}
}

func (a *API) RegisterRoutes() {
	a.Health()
	apiGroup := a.router.Group("/api")
	{
		campaigns := apiGroup.Group("/campaigns")
		campaigns.POST("", a.campaignHandler.CreateCampaign)
		campaigns.GET("", a.campaignHandler.ListCampaigns)
		campaigns.GET("/:campaignID", a.campaignHandler.GetCampaign)
		campaigns.POST("/:campaignID/templates", a.campaignHandler.AddTemplate)
		campaigns.GET("/:campaignID/templates", a.campaignHandler.GetTemplates)
		campaigns.POST("/:campaignID/leads", a.campaignHandler.AddLead)
		campaigns.GET("/:campaignID/leads", a.campaignHandler.ListLeads)
		campaigns.POST("/:campaignID/schedule", a.campaignHandler.ScheduleCampaign)
		campaigns.POST("/:campaignID/launch", a.campaignHandler.LaunchCampaign)
		campaigns.POST("/:campaignID/cancel", a.campaignHandler.CancelCampaign)

		leads := apiGroup.Group("/leads")
		leads.GET("", a.campaignHandler.GetLeadByEmail)
		leads.POST("/:leadID/triage", a.campaignHandler.TriageLead)

		executions := apiGroup.Group("/executions")
		executions.GET("/active", a.campaignHandler.ListActiveExecutions)
		executions.GET("/:executionID/log", a.campaignHandler.GetExecutionLog)
		executions.POST("/:executionID/cancel", a.campaignHandler.CancelExecution)
	}

	webhooks := a.router.Group("/webhooks/mailgun")
	webhooks.POST("/events", a.webhookHandler.HandleDeliveryEvent)
	webhooks.POST("/replies", a.webhookHandler.HandleInboundReply)
}

func (a *API) Health() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
}

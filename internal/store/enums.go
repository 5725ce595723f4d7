package store

// Campaign ENUMs
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusActive    = "active"
	CampaignStatusCompleted = "completed"
	CampaignStatusCancelled = "cancelled"
)

const (
	ScheduleTypeImmediate = "immediate"
	ScheduleTypeScheduled = "scheduled"
	ScheduleTypeRecurring = "recurring"
)

const (
	RecurringPatternDaily   = "daily"
	RecurringPatternWeekly  = "weekly"
	RecurringPatternMonthly = "monthly"
)

// Lead ENUMs
const (
	LeadStatusNew          = "new"
	LeadStatusContacted    = "contacted"
	LeadStatusResponded    = "responded"
	LeadStatusBounced      = "bounced"
	LeadStatusComplained   = "complained"
	LeadStatusUnsubscribed = "unsubscribed"
)

// Email log ENUMs
const (
	EmailLogStatusSent   = "sent"
	EmailLogStatusFailed = "failed"
)

// IsSuppressedLeadStatus reports whether a lead status blocks further sends.
func IsSuppressedLeadStatus(status string) bool {
	switch status {
	case LeadStatusBounced, LeadStatusComplained, LeadStatusUnsubscribed:
		return true
	}
	return false
}

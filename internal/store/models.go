package store

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IntArray is a custom type for PostgreSQL int[] arrays
type IntArray []int

// Value implements the driver.Valuer interface for IntArray
func (a IntArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	if len(a) == 0 {
		return "{}", nil
	}
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = strconv.Itoa(v)
	}
	// PostgreSQL array format: {1,2,3}
	return "{" + strings.Join(parts, ",") + "}", nil
}

// Scan implements the sql.Scanner interface for IntArray
func (a *IntArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	var str string
	switch v := value.(type) {
	case []byte:
		str = string(v)
	case string:
		str = v
	default:
		return fmt.Errorf("unsupported type for IntArray: %T", value)
	}

	str = strings.Trim(str, "{}")
	if str == "" {
		*a = []int{}
		return nil
	}

	parts := strings.Split(str, ",")
	result := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("invalid int array element %q: %w", p, err)
		}
		result = append(result, n)
	}
	*a = result
	return nil
}

// Campaign represents an outreach campaign. The scheduling engine only
// reads and writes the scheduling fields; everything else belongs to the
// CRUD surface.
type Campaign struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	Name             string     `db:"name" json:"name"`
	Description      *string    `db:"description" json:"description,omitempty"`
	Status           string     `db:"status" json:"status"`
	ScheduleType     string     `db:"schedule_type" json:"schedule_type"`
	ScheduledStart   *time.Time `db:"scheduled_start" json:"scheduled_start,omitempty"`
	RecurringPattern *string    `db:"recurring_pattern" json:"recurring_pattern,omitempty"`
	RecurringDays    IntArray   `db:"recurring_days" json:"recurring_days,omitempty"`
	RecurringTime    *string    `db:"recurring_time" json:"recurring_time,omitempty"`
	// NextExecution is both "when to fire" and, transiently, the lease
	// marker while a scheduler instance holds the claim.
	NextExecution *time.Time `db:"next_execution" json:"next_execution,omitempty"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	EmailsSent    int        `db:"emails_sent" json:"emails_sent"`
	EmailsFailed  int        `db:"emails_failed" json:"emails_failed"`
	LastExecuted  *time.Time `db:"last_executed" json:"last_executed,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// CampaignTemplate is one subject/body pair in a campaign's template list,
// selected by position at execution time.
type CampaignTemplate struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	CampaignID uuid.UUID  `db:"campaign_id" json:"campaign_id"`
	Position   int        `db:"position" json:"position"`
	Subject    string     `db:"subject" json:"subject"`
	Body       string     `db:"body" json:"body"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt  *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Lead represents a dealership prospect
type Lead struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	CampaignID      *uuid.UUID `db:"campaign_id" json:"campaign_id,omitempty"`
	Email           string     `db:"email" json:"email"`
	FirstName       *string    `db:"first_name" json:"first_name,omitempty"`
	LastName        *string    `db:"last_name" json:"last_name,omitempty"`
	Phone           *string    `db:"phone" json:"phone,omitempty"`
	VehicleInterest *string    `db:"vehicle_interest" json:"vehicle_interest,omitempty"`
	Source          *string    `db:"source" json:"source,omitempty"`
	Status          string     `db:"status" json:"status"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// EmailLogEntry is a per-send record written best-effort by the execution
// processor.
type EmailLogEntry struct {
	ID          uuid.UUID `db:"id" json:"id"`
	CampaignID  uuid.UUID `db:"campaign_id" json:"campaign_id"`
	ExecutionID string    `db:"execution_id" json:"execution_id"`
	Email       string    `db:"email" json:"email"`
	Status      string    `db:"status" json:"status"`
	Error       *string   `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

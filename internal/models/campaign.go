package models

import (
	"time"
)

// Campaign groups mass emails and collects delivery analytics.
type Campaign struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	CreatedBy string    `json:"created_by" db:"created_by"`
}

// MassEmail is one outbound batch belonging to a campaign.
type MassEmail struct {
	ID         string    `json:"id" db:"id"`
	CampaignID *string   `json:"campaign_id,omitempty" db:"campaign_id"`
	Name       string    `json:"name" db:"name"`
	Status     string    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// QueueItem records one outbound send attempt within a mass email. Its id is
// embedded in outgoing messages so bounces can be correlated back.
type QueueItem struct {
	ID           string    `json:"id" db:"id"`
	MassEmailID  *string   `json:"mass_email_id,omitempty" db:"mass_email_id"`
	TargetType   string    `json:"target_type" db:"target_type"`
	TargetID     string    `json:"target_id" db:"target_id"`
	EmailAddress string    `json:"email_address" db:"email_address"`
	Status       string    `json:"status" db:"status"`
	IsTest       bool      `json:"is_test" db:"is_test"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Campaign log actions.
const (
	CampaignLogActionSent    = "Sent"
	CampaignLogActionBounced = "Bounced"
	CampaignLogActionOpened  = "Opened"
)

// CampaignLogRecord is an analytics entry attached to a campaign.
type CampaignLogRecord struct {
	ID           string    `json:"id" db:"id"`
	CampaignID   string    `json:"campaign_id" db:"campaign_id"`
	Action       string    `json:"action" db:"action"`
	QueueItemID  *string   `json:"queue_item_id,omitempty" db:"queue_item_id"`
	TargetType   *string   `json:"target_type,omitempty" db:"target_type"`
	TargetID     *string   `json:"target_id,omitempty" db:"target_id"`
	EmailAddress *string   `json:"email_address,omitempty" db:"email_address"`
	Data         *string   `json:"data,omitempty" db:"data"` // JSON detail, e.g. {"isHard":true}
	IsTest       bool      `json:"is_test" db:"is_test"`
	ActionDate   time.Time `json:"action_date" db:"action_date"`
}

package models

import (
	"time"
)

// Email represents an inbound email persisted from a fetch cycle.
type Email struct {
	ID             string     `json:"id" db:"id"`
	MessageID      *string    `json:"message_id,omitempty" db:"message_id"`
	AccountID      string     `json:"account_id" db:"account_id"`
	FromAddress    string     `json:"from_address" db:"from_address"`
	ToAddresses    string     `json:"to_addresses" db:"to_addresses"`
	Subject        string     `json:"subject" db:"subject"`
	Body           string     `json:"body" db:"body"`
	IsHTML         bool       `json:"is_html" db:"is_html"`
	IsAutoReply    bool       `json:"is_auto_reply" db:"is_auto_reply"`
	SkipAutoReply  bool       `json:"skip_auto_reply" db:"skip_auto_reply"`
	ParentType     *string    `json:"parent_type,omitempty" db:"parent_type"`
	ParentID       *string    `json:"parent_id,omitempty" db:"parent_id"`
	AssignedUserID *string    `json:"assigned_user_id,omitempty" db:"assigned_user_id"`
	TeamID         *string    `json:"team_id,omitempty" db:"team_id"`
	ReceivedAt     time.Time  `json:"received_at" db:"received_at"`
	FetchedAt      *time.Time `json:"fetched_at,omitempty" db:"fetched_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// IsFetched reports whether the email came out of a fetch cycle rather than
// being composed in the application.
func (e *Email) IsFetched() bool {
	return e != nil && e.FetchedAt != nil
}

// EmailAddress is the address-book record shared by CRM entities. Addresses
// marked invalid are excluded from future campaign sends.
type EmailAddress struct {
	ID        string    `json:"id" db:"id"`
	Address   string    `json:"address" db:"address"`
	Invalid   bool      `json:"invalid" db:"invalid"`
	OptedOut  bool      `json:"opted_out" db:"opted_out"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

package models

import (
	"strings"
	"time"
)

// Mail account kinds. Personal accounts belong to a single assigned user,
// group accounts are owned by a team and feed a shared inbox.
const (
	MailAccountKindPersonal = "personal"
	MailAccountKindGroup    = "group"
)

// MailAccount represents a stored IMAP/POP3 account polled for inbound email.
type MailAccount struct {
	ID                string     `json:"id" db:"id"`
	Kind              string     `json:"kind" db:"kind"`
	Name              string     `json:"name" db:"name"`
	EmailAddress      string     `json:"email_address" db:"email_address"`
	Host              string     `json:"host" db:"host"`
	Port              int        `json:"port" db:"port"`
	Security          string     `json:"security" db:"security"` // imap, imaps, pop3, pop3s
	Username          string     `json:"username" db:"username"`
	PasswordEncrypted string     `json:"-" db:"password_encrypted"`
	MonitoredFolders  string     `json:"monitored_folders" db:"monitored_folders"` // comma separated
	FetchSince        *time.Time `json:"fetch_since,omitempty" db:"fetch_since"`
	FetchData         *string    `json:"-" db:"fetch_data"` // per-folder cursor JSON
	PortionLimit      *int       `json:"portion_limit,omitempty" db:"portion_limit"`
	KeepFetchedUnread bool       `json:"keep_fetched_unread" db:"keep_fetched_unread"`
	AssignedUserID    *string    `json:"assigned_user_id,omitempty" db:"assigned_user_id"`
	TeamID            *string    `json:"team_id,omitempty" db:"team_id"`
	IsActive          bool       `json:"is_active" db:"is_active"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	CreatedBy         string     `json:"created_by" db:"created_by"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
	UpdatedBy         string     `json:"updated_by" db:"updated_by"`
}

// MonitoredFolderList splits the stored folder list, defaulting to INBOX.
func (a *MailAccount) MonitoredFolderList() []string {
	if a == nil {
		return []string{"INBOX"}
	}
	var out []string
	for _, folder := range strings.Split(a.MonitoredFolders, ",") {
		folder = strings.TrimSpace(folder)
		if folder != "" {
			out = append(out, folder)
		}
	}
	if len(out) == 0 {
		return []string{"INBOX"}
	}
	return out
}

package models

import (
	"time"
)

// User roles. Portal users are external, restricted accounts.
const (
	RoleAdmin  = "Admin"
	RoleAgent  = "Agent"
	RolePortal = "Portal"
)

// User represents an application user.
type User struct {
	ID            string    `json:"id" db:"id"`
	Username      string    `json:"username" db:"username"`
	Email         string    `json:"email" db:"email"`
	FullName      *string   `json:"full_name,omitempty" db:"full_name"`
	Role          string    `json:"role" db:"role"`
	DefaultTeamID *string   `json:"default_team_id,omitempty" db:"default_team_id"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// IsPortal reports whether the user belongs to the restricted portal role.
func (u *User) IsPortal() bool {
	return u != nil && u.Role == RolePortal
}

// Team groups users for record ownership.
type Team struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Note is an activity-stream entry attached to a parent record.
type Note struct {
	ID         string    `json:"id" db:"id"`
	Type       string    `json:"type" db:"type"`
	ParentType string    `json:"parent_type" db:"parent_type"`
	ParentID   string    `json:"parent_id" db:"parent_id"`
	Data       string    `json:"data" db:"data"` // JSON snapshot
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Note types.
const (
	NoteTypeEmailReceived = "EmailReceived"
)

package models

import (
	"time"
)

// Mass action record statuses. Records are created Queued and move through
// Running into one of the terminal states.
const (
	MassActionStatusQueued   = "Queued"
	MassActionStatusRunning  = "Running"
	MassActionStatusComplete = "Complete"
	MassActionStatusFailed   = "Failed"
)

// MassActionRecord is the durable state of a deferred bulk operation. A worker
// resumes from this record after a restart.
type MassActionRecord struct {
	ID             string    `json:"id" db:"id"`
	EntityType     string    `json:"entity_type" db:"entity_type"`
	Action         string    `json:"action" db:"action"`
	Params         string    `json:"params" db:"params"` // versioned selection encoding
	Data           string    `json:"data" db:"data"`     // action payload JSON
	Status         string    `json:"status" db:"status"`
	ProcessedCount int       `json:"processed_count" db:"processed_count"`
	NotifyOnFinish bool      `json:"notify_on_finish" db:"notify_on_finish"`
	CreatedBy      string    `json:"created_by" db:"created_by"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the record reached a final state.
func (r *MassActionRecord) IsTerminal() bool {
	if r == nil {
		return false
	}
	return r.Status == MassActionStatusComplete || r.Status == MassActionStatusFailed
}

package models

import "time"

// User is a claimed username on the remote store
type User struct {
	Username  string
	TokenID   string
	CreatedAt time.Time
}

// ProgressRecord is a remote progress row as exported by the backup tool
type ProgressRecord struct {
	Username  string              `json:"username"`
	Progress  *CurriculumProgress `json:"progress"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

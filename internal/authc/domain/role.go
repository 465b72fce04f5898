package domain

import "time"

type Role struct {
	ID          string
	Name        string
	Permissions []string // wildcard permission strings, e.g. "ticket:read:*"
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

package models

import "time"

// Invitation is a pending email invite into a family
type Invitation struct {
	ID            string
	FamilyID      string
	FamilyName    string
	InvitedEmail  string
	InvitedBy     string
	InvitedByName string
	CreatedAt     time.Time
}

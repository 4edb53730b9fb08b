package models

import (
	"slices"
	"time"
)

// Family is a group of users sharing mutual visibility, administered by its creator
type Family struct {
	ID                string
	Name              string
	Code              string
	CreatedBy         string
	MemberIDs         []string
	RelatedFamilyIDs  []string
	SilencedMemberIDs []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsCreator reports whether userID created the family
func (f *Family) IsCreator(userID string) bool {
	return f.CreatedBy == userID
}

// IsMember reports whether userID is in the roster
func (f *Family) IsMember(userID string) bool {
	return slices.Contains(f.MemberIDs, userID)
}

// IsSilenced reports whether userID has lost posting rights
func (f *Family) IsSilenced(userID string) bool {
	return slices.Contains(f.SilencedMemberIDs, userID)
}

// IsRelatedTo reports whether the family lists familyID as related
func (f *Family) IsRelatedTo(familyID string) bool {
	return slices.Contains(f.RelatedFamilyIDs, familyID)
}

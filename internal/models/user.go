package models

import "time"

// User represents a family member account. Identity is owned by the external
// identity provider; ID is the token subject.
type User struct {
	ID                  string
	Email               string
	DisplayName         string
	FamilyID            *string
	RelatedFamilyIDs    []string
	IsOnline            bool
	LastSeen            *time.Time
	DefaultPostPrivacy  Privacy
	DefaultBoardPrivacy Privacy
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HasFamily reports whether the user belongs to an immediate family
func (u *User) HasFamily() bool {
	return u.FamilyID != nil && *u.FamilyID != ""
}

// DefaultPrivacyFor returns the user's preferred privacy for a content kind
func (u *User) DefaultPrivacyFor(kind ContentKind) Privacy {
	var p Privacy
	switch kind {
	case ContentKindBoard:
		p = u.DefaultBoardPrivacy
	default:
		p = u.DefaultPostPrivacy
	}
	if !p.IsValid() {
		return PrivacyPrivate
	}
	return p
}

// Session is the explicit viewer context for one request. It is built from the
// authenticated user and passed into every visibility and graph call.
type Session struct {
	UserID           string
	Email            string
	FamilyID         string
	RelatedFamilyIDs []string
	Silenced         bool
}

// HasFamily reports whether the session user belongs to a family
func (s Session) HasFamily() bool {
	return s.FamilyID != ""
}

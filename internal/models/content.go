package models

import (
	"slices"
	"time"
)

// ContentKind distinguishes posts from boards. Both share the same visibility rules.
type ContentKind string

const (
	ContentKindPost  ContentKind = "post"
	ContentKindBoard ContentKind = "board"
)

// ContentItem is a post or task board.
//
// OwnerFamilyID and OwnerRelatedFamilyIDs are snapshots of the owner's family
// affiliation taken when the item was created. They are never recomputed, so
// visibility of published content reflects the family graph at publish time.
type ContentItem struct {
	ID                    string
	Kind                  ContentKind
	OwnerID               string
	Privacy               Privacy
	OwnerFamilyID         *string
	OwnerRelatedFamilyIDs []string

	// Post
	Body string

	// Board
	Title       string
	Description string
	MemberIDs   []string
	ShareToken  *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsBoard reports whether the item is a task board
func (c *ContentItem) IsBoard() bool {
	return c.Kind == ContentKindBoard
}

// IsBoardMember reports whether userID collaborates on the board
func (c *ContentItem) IsBoardMember(userID string) bool {
	return c.IsBoard() && slices.Contains(c.MemberIDs, userID)
}

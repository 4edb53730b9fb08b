// Package visibility decides whether a viewer may see a post or board.
//
// Resolution is a pure function of two values materialized by the caller: the
// content item (with the owner's family affiliation captured at publish time)
// and the viewer's current affiliation. Nothing here performs I/O or locks.
package visibility

import (
	"slices"

	"familyhub/internal/models"
)

// Item is the visibility-relevant view of a content item.
type Item struct {
	OwnerID               string
	Privacy               models.Privacy
	OwnerFamilyID         string // empty when the owner had no family at publish time
	OwnerRelatedFamilyIDs []string
	MemberIDs             []string // board collaborators
}

// Viewer is the visibility-relevant view of the requesting user.
type Viewer struct {
	UserID           string
	FamilyID         string // empty when the viewer has no family
	RelatedFamilyIDs []string
}

// DefaultPolicy is the rule chain used by CanView.
var DefaultPolicy = Policy{
	RuleFunc(OwnerRule),
	RuleFunc(BoardMemberRule),
	RuleFunc(PrivacyRule),
}

// CanView reports whether viewer may see item. It is total: every input
// yields true or false.
func CanView(item Item, viewer Viewer) bool {
	return DefaultPolicy.Allows(item, viewer)
}

// OwnerRule admits the owner regardless of privacy.
func OwnerRule(item Item, viewer Viewer) Decision {
	if viewer.UserID != "" && viewer.UserID == item.OwnerID {
		return Allow
	}
	return Skip
}

// BoardMemberRule admits board collaborators.
func BoardMemberRule(item Item, viewer Viewer) Decision {
	if viewer.UserID != "" && slices.Contains(item.MemberIDs, viewer.UserID) {
		return Allow
	}
	return Skip
}

// PrivacyRule applies the item's privacy tier. It never skips.
func PrivacyRule(item Item, viewer Viewer) Decision {
	var ok bool
	switch item.Privacy {
	case models.PrivacyPublic:
		ok = true
	case models.PrivacyFamily:
		ok = sameFamily(item, viewer)
	case models.PrivacyFamilyAndRelated, models.PrivacyFamilyAndAllRelated:
		// Both tiers resolve over direct links only. Links may be recorded
		// asymmetrically after a partial write, so both directions are checked.
		ok = sameFamily(item, viewer) ||
			viewerFamilyInOwnerRelated(item, viewer) ||
			ownerFamilyInViewerRelated(item, viewer) ||
			relatedFamiliesIntersect(item, viewer)
	}
	if ok {
		return Allow
	}
	return Deny
}

// sameFamily requires both sides to have a family. A legacy item without a
// recorded owner family never matches.
func sameFamily(item Item, viewer Viewer) bool {
	return viewer.FamilyID != "" && item.OwnerFamilyID != "" && viewer.FamilyID == item.OwnerFamilyID
}

func viewerFamilyInOwnerRelated(item Item, viewer Viewer) bool {
	return viewer.FamilyID != "" && slices.Contains(item.OwnerRelatedFamilyIDs, viewer.FamilyID)
}

func ownerFamilyInViewerRelated(item Item, viewer Viewer) bool {
	return item.OwnerFamilyID != "" && slices.Contains(viewer.RelatedFamilyIDs, item.OwnerFamilyID)
}

func relatedFamiliesIntersect(item Item, viewer Viewer) bool {
	if len(item.OwnerRelatedFamilyIDs) == 0 || len(viewer.RelatedFamilyIDs) == 0 {
		return false
	}
	owner := make(map[string]struct{}, len(item.OwnerRelatedFamilyIDs))
	for _, id := range item.OwnerRelatedFamilyIDs {
		if id != "" {
			owner[id] = struct{}{}
		}
	}
	for _, id := range viewer.RelatedFamilyIDs {
		if _, ok := owner[id]; ok {
			return true
		}
	}
	return false
}

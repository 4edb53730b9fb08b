package visibility

import "familyhub/internal/models"

// ItemFromContent builds the resolver input from a stored content item.
// A missing owner family snapshot is treated as "no family".
func ItemFromContent(c *models.ContentItem) Item {
	item := Item{
		OwnerID:               c.OwnerID,
		Privacy:               c.Privacy,
		OwnerRelatedFamilyIDs: c.OwnerRelatedFamilyIDs,
	}
	if c.OwnerFamilyID != nil {
		item.OwnerFamilyID = *c.OwnerFamilyID
	}
	if c.IsBoard() {
		item.MemberIDs = c.MemberIDs
	}
	return item
}

// ViewerFromSession builds the resolver input from a request session
func ViewerFromSession(s models.Session) Viewer {
	return Viewer{
		UserID:           s.UserID,
		FamilyID:         s.FamilyID,
		RelatedFamilyIDs: s.RelatedFamilyIDs,
	}
}

// CanViewContent is CanView over the stored model types
func CanViewContent(c *models.ContentItem, s models.Session) bool {
	return CanView(ItemFromContent(c), ViewerFromSession(s))
}

// Filter returns the items visible to the session, preserving input order
func Filter(items []models.ContentItem, s models.Session) []models.ContentItem {
	viewer := ViewerFromSession(s)
	visible := make([]models.ContentItem, 0, len(items))
	for i := range items {
		if CanView(ItemFromContent(&items[i]), viewer) {
			visible = append(visible, items[i])
		}
	}
	return visible
}

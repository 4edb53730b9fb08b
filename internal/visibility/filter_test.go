package visibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"familyhub/internal/models"
)

func strPtr(s string) *string { return &s }

func TestItemFromContent(t *testing.T) {
	post := &models.ContentItem{
		Kind:                  models.ContentKindPost,
		OwnerID:               "U1",
		Privacy:               models.PrivacyFamily,
		OwnerFamilyID:         strPtr("F1"),
		OwnerRelatedFamilyIDs: []string{"F2"},
		MemberIDs:             []string{"ignored"},
	}
	item := ItemFromContent(post)
	assert.Equal(t, "F1", item.OwnerFamilyID)
	assert.Equal(t, []string{"F2"}, item.OwnerRelatedFamilyIDs)
	assert.Empty(t, item.MemberIDs, "posts carry no collaborators")

	legacy := &models.ContentItem{Kind: models.ContentKindBoard, OwnerID: "U1", MemberIDs: []string{"U1", "U2"}}
	item = ItemFromContent(legacy)
	assert.Equal(t, "", item.OwnerFamilyID)
	assert.Equal(t, []string{"U1", "U2"}, item.MemberIDs)
}

func TestFilterScenarioFamilyPost(t *testing.T) {
	items := []models.ContentItem{
		{ID: "p1", Kind: models.ContentKindPost, OwnerID: "U1", Privacy: models.PrivacyFamily, OwnerFamilyID: strPtr("F1")},
		{ID: "p2", Kind: models.ContentKindPost, OwnerID: "U1", Privacy: models.PrivacyPublic, OwnerFamilyID: strPtr("F1")},
		{ID: "p3", Kind: models.ContentKindPost, OwnerID: "U1", Privacy: models.PrivacyPrivate, OwnerFamilyID: strPtr("F1")},
	}

	ids := func(items []models.ContentItem) []string {
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, it.ID)
		}
		return out
	}

	assert.Equal(t, []string{"p1", "p2"}, ids(Filter(items, models.Session{UserID: "V1", FamilyID: "F1"})))
	assert.Equal(t, []string{"p2"}, ids(Filter(items, models.Session{UserID: "V2", FamilyID: "F2"})))
	assert.Equal(t, []string{"p2"}, ids(Filter(items, models.Session{UserID: "V3"})))
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(Filter(items, models.Session{UserID: "U1"})))
}

func TestFilterScenarioLinkedBoard(t *testing.T) {
	board := models.ContentItem{
		ID:                    "b1",
		Kind:                  models.ContentKindBoard,
		OwnerID:               "U1",
		Privacy:               models.PrivacyFamilyAndRelated,
		OwnerFamilyID:         strPtr("F1"),
		OwnerRelatedFamilyIDs: []string{"F2"},
		MemberIDs:             []string{"U1"},
	}

	assert.True(t, CanViewContent(&board, models.Session{UserID: "V2", FamilyID: "F2"}))
	assert.False(t, CanViewContent(&board, models.Session{UserID: "V3", FamilyID: "F3"}))
}

func TestFilterEmpty(t *testing.T) {
	assert.Empty(t, Filter(nil, models.Session{UserID: "U1"}))
}

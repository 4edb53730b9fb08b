package handlers

import (
	"net/http"
	"time"

	"familyhub/internal/models"
	"familyhub/internal/service"
)

// FamilyHandler serves family lifecycle, moderation, link and invitation endpoints
type FamilyHandler struct {
	familyService *service.FamilyService
	graph         *service.GraphService
}

// NewFamilyHandler creates a new family handler
func NewFamilyHandler(familyService *service.FamilyService, graph *service.GraphService) *FamilyHandler {
	return &FamilyHandler{familyService: familyService, graph: graph}
}

type familyView struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Code              string    `json:"code,omitempty"`
	CreatedBy         string    `json:"createdBy"`
	MemberIDs         []string  `json:"memberIds"`
	RelatedFamilyIDs  []string  `json:"relatedFamilyIds"`
	SilencedMemberIDs []string  `json:"silencedMemberIds,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// newFamilyView hides the join code and moderation state from non-members
func newFamilyView(f *models.Family, viewerID string) familyView {
	v := familyView{
		ID:               f.ID,
		Name:             f.Name,
		CreatedBy:        f.CreatedBy,
		MemberIDs:        nonNil(f.MemberIDs),
		RelatedFamilyIDs: nonNil(f.RelatedFamilyIDs),
		CreatedAt:        f.CreatedAt,
	}
	if f.IsMember(viewerID) {
		v.Code = f.Code
		v.SilencedMemberIDs = f.SilencedMemberIDs
	}
	return v
}

type userView struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
	IsOnline    bool       `json:"isOnline"`
	LastSeen    *time.Time `json:"lastSeen,omitempty"`
}

type invitationView struct {
	ID            string    `json:"id"`
	FamilyID      string    `json:"familyId"`
	FamilyName    string    `json:"familyName"`
	InvitedEmail  string    `json:"invitedEmail"`
	InvitedByName string    `json:"invitedByName"`
	CreatedAt     time.Time `json:"createdAt"`
}

func newInvitationView(inv models.Invitation) invitationView {
	return invitationView{
		ID:            inv.ID,
		FamilyID:      inv.FamilyID,
		FamilyName:    inv.FamilyName,
		InvitedEmail:  inv.InvitedEmail,
		InvitedByName: inv.InvitedByName,
		CreatedAt:     inv.CreatedAt,
	}
}

// partialView carries hydrated records and how many batches could not be loaded
type partialView[T any] struct {
	Items         []T `json:"items"`
	FailedBatches int `json:"failedBatches"`
}

// CreateFamily handles POST /api/families
func (h *FamilyHandler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	family, err := h.familyService.CreateFamily(r.Context(), session, req.Name)
	if err != nil {
		respondWithServiceError(w, err, "create family")
		return
	}
	respondJSON(w, http.StatusCreated, newFamilyView(family, session.UserID))
}

// JoinFamily handles POST /api/families/join
func (h *FamilyHandler) JoinFamily(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	var req struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	family, err := h.familyService.JoinFamilyByCode(r.Context(), session, req.Code)
	if err != nil {
		respondWithServiceError(w, err, "join family")
		return
	}
	respondJSON(w, http.StatusOK, newFamilyView(family, session.UserID))
}

// LeaveFamily handles POST /api/families/leave
func (h *FamilyHandler) LeaveFamily(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	if err := h.familyService.LeaveFamily(r.Context(), session); err != nil {
		respondWithServiceError(w, err, "leave family")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFamily handles GET /api/families/{id}
func (h *FamilyHandler) GetFamily(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	family, err := h.familyService.GetFamily(r.Context(), session, r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, err, "get family")
		return
	}
	respondJSON(w, http.StatusOK, newFamilyView(family, session.UserID))
}

// RenameFamily handles PATCH /api/families/{id}
func (h *FamilyHandler) RenameFamily(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	family, err := h.familyService.RenameFamily(r.Context(), session, r.PathValue("id"), req.Name)
	if err != nil {
		respondWithServiceError(w, err, "rename family")
		return
	}
	respondJSON(w, http.StatusOK, newFamilyView(family, session.UserID))
}

// ListMembers handles GET /api/families/{id}/members
func (h *FamilyHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	family, err := h.familyService.GetFamily(r.Context(), session, r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, err, "get family")
		return
	}

	result := h.graph.LoadUsers(r.Context(), family.MemberIDs)
	view := partialView[userView]{Items: []userView{}, FailedBatches: result.FailedBatches}
	for _, u := range result.Items {
		view.Items = append(view.Items, userView{ID: u.ID, DisplayName: u.DisplayName, IsOnline: u.IsOnline, LastSeen: u.LastSeen})
	}
	respondJSON(w, http.StatusOK, view)
}

// ListRelated handles GET /api/families/{id}/related
func (h *FamilyHandler) ListRelated(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	family, err := h.familyService.GetFamily(r.Context(), session, r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, err, "get family")
		return
	}

	result := h.graph.LoadFamilies(r.Context(), family.RelatedFamilyIDs)
	view := partialView[familyView]{Items: []familyView{}, FailedBatches: result.FailedBatches}
	for i := range result.Items {
		view.Items = append(view.Items, newFamilyView(&result.Items[i], session.UserID))
	}
	respondJSON(w, http.StatusOK, view)
}

// RemoveMember handles DELETE /api/families/{id}/members/{userID}
func (h *FamilyHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	if err := h.familyService.RemoveMember(r.Context(), session, r.PathValue("id"), r.PathValue("userID")); err != nil {
		respondWithServiceError(w, err, "remove member")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SilenceMember handles PUT /api/families/{id}/silenced/{userID}
func (h *FamilyHandler) SilenceMember(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	if err := h.familyService.SilenceMember(r.Context(), session, r.PathValue("id"), r.PathValue("userID")); err != nil {
		respondWithServiceError(w, err, "silence member")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnsilenceMember handles DELETE /api/families/{id}/silenced/{userID}
func (h *FamilyHandler) UnsilenceMember(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	if err := h.familyService.UnsilenceMember(r.Context(), session, r.PathValue("id"), r.PathValue("userID")); err != nil {
		respondWithServiceError(w, err, "unsilence member")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LinkFamily handles PUT /api/families/{id}/related/{otherID}
func (h *FamilyHandler) LinkFamily(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	if err := h.familyService.LinkFamilies(r.Context(), session, r.PathValue("id"), r.PathValue("otherID")); err != nil {
		respondWithServiceError(w, err, "link families")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnlinkFamily handles DELETE /api/families/{id}/related/{otherID}
func (h *FamilyHandler) UnlinkFamily(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	if err := h.familyService.UnlinkFamilies(r.Context(), session, r.PathValue("id"), r.PathValue("otherID")); err != nil {
		respondWithServiceError(w, err, "unlink families")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Invite handles POST /api/families/{id}/invitations
func (h *FamilyHandler) Invite(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	inv, err := h.familyService.InviteByEmail(r.Context(), session, r.PathValue("id"), req.Email)
	if err != nil {
		respondWithServiceError(w, err, "invite")
		return
	}
	respondJSON(w, http.StatusCreated, newInvitationView(*inv))
}

// ListInvitations handles GET /api/invitations
func (h *FamilyHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	invitations, err := h.familyService.PendingInvitations(r.Context(), session)
	if err != nil {
		respondWithServiceError(w, err, "list invitations")
		return
	}

	views := make([]invitationView, 0, len(invitations))
	for _, inv := range invitations {
		views = append(views, newInvitationView(inv))
	}
	respondJSON(w, http.StatusOK, views)
}

// AcceptInvitation handles POST /api/invitations/{id}/accept
func (h *FamilyHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	family, err := h.familyService.AcceptInvitation(r.Context(), session, r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, err, "accept invitation")
		return
	}
	respondJSON(w, http.StatusOK, newFamilyView(family, session.UserID))
}

// DeclineInvitation handles POST /api/invitations/{id}/decline
func (h *FamilyHandler) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	if err := h.familyService.DeclineInvitation(r.Context(), session, r.PathValue("id")); err != nil {
		respondWithServiceError(w, err, "decline invitation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

package handlers

import (
	"net/http"

	"familyhub/internal/models"
	"familyhub/internal/service"
)

// UserHandler serves the signed-in user's profile, presence and preferences
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

type meView struct {
	ID                  string   `json:"id"`
	Email               string   `json:"email"`
	DisplayName         string   `json:"displayName"`
	FamilyID            *string  `json:"familyId"`
	RelatedFamilyIDs    []string `json:"relatedFamilyIds"`
	Silenced            bool     `json:"silenced"`
	DefaultPostPrivacy  string   `json:"defaultPostPrivacy"`
	DefaultBoardPrivacy string   `json:"defaultBoardPrivacy"`
}

func newMeView(u *models.User, s models.Session) meView {
	return meView{
		ID:                  u.ID,
		Email:               u.Email,
		DisplayName:         u.DisplayName,
		FamilyID:            u.FamilyID,
		RelatedFamilyIDs:    nonNil(s.RelatedFamilyIDs),
		Silenced:            s.Silenced,
		DefaultPostPrivacy:  string(u.DefaultPostPrivacy),
		DefaultBoardPrivacy: string(u.DefaultBoardPrivacy),
	}
}

// Me handles GET /api/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	user, err := h.userService.GetUser(r.Context(), session.UserID)
	if err != nil {
		respondWithServiceError(w, err, "get user")
		return
	}
	respondJSON(w, http.StatusOK, newMeView(user, session))
}

// UpdatePreferences handles PUT /api/me/preferences
func (h *UserHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	var req struct {
		DefaultPostPrivacy  string `json:"defaultPostPrivacy"`
		DefaultBoardPrivacy string `json:"defaultBoardPrivacy"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userService.UpdatePreferences(r.Context(), session, req.DefaultPostPrivacy, req.DefaultBoardPrivacy)
	if err != nil {
		respondWithServiceError(w, err, "update preferences")
		return
	}
	respondJSON(w, http.StatusOK, newMeView(user, session))
}

// UpdatePresence handles PUT /api/me/presence
func (h *UserHandler) UpdatePresence(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	var req struct {
		Online bool `json:"online"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.userService.UpdateOnlineStatus(r.Context(), session, req.Online); err != nil {
		respondWithServiceError(w, err, "update presence")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

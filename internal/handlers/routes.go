package handlers

import (
	"net/http"

	"familyhub/internal/security"
)

// Routes bundles the handlers mounted under /api
type Routes struct {
	Middleware  *Middleware
	Families    *FamilyHandler
	Content     *ContentHandler
	Users       *UserHandler
	JoinLimiter *security.RateLimiter
}

// Register mounts every API route on mux
func (rt *Routes) Register(mux *http.ServeMux) {
	auth := rt.Middleware.RequireAuth

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Users
	mux.HandleFunc("GET /api/me", auth(rt.Users.Me))
	mux.HandleFunc("PUT /api/me/preferences", auth(rt.Users.UpdatePreferences))
	mux.HandleFunc("PUT /api/me/presence", auth(rt.Users.UpdatePresence))

	// Families
	mux.HandleFunc("POST /api/families", auth(rt.Families.CreateFamily))
	mux.HandleFunc("POST /api/families/join", auth(RateLimit(rt.JoinLimiter, rt.Families.JoinFamily)))
	mux.HandleFunc("POST /api/families/leave", auth(rt.Families.LeaveFamily))
	mux.HandleFunc("GET /api/families/{id}", auth(rt.Families.GetFamily))
	mux.HandleFunc("PATCH /api/families/{id}", auth(rt.Families.RenameFamily))
	mux.HandleFunc("GET /api/families/{id}/members", auth(rt.Families.ListMembers))
	mux.HandleFunc("DELETE /api/families/{id}/members/{userID}", auth(rt.Families.RemoveMember))
	mux.HandleFunc("PUT /api/families/{id}/silenced/{userID}", auth(rt.Families.SilenceMember))
	mux.HandleFunc("DELETE /api/families/{id}/silenced/{userID}", auth(rt.Families.UnsilenceMember))
	mux.HandleFunc("GET /api/families/{id}/related", auth(rt.Families.ListRelated))
	mux.HandleFunc("PUT /api/families/{id}/related/{otherID}", auth(rt.Families.LinkFamily))
	mux.HandleFunc("DELETE /api/families/{id}/related/{otherID}", auth(rt.Families.UnlinkFamily))
	mux.HandleFunc("POST /api/families/{id}/invitations", auth(rt.Families.Invite))

	// Invitations
	mux.HandleFunc("GET /api/invitations", auth(rt.Families.ListInvitations))
	mux.HandleFunc("POST /api/invitations/{id}/accept", auth(rt.Families.AcceptInvitation))
	mux.HandleFunc("POST /api/invitations/{id}/decline", auth(rt.Families.DeclineInvitation))

	// Content
	mux.HandleFunc("GET /api/feed", auth(rt.Content.Feed))
	mux.HandleFunc("POST /api/posts", auth(rt.Content.CreatePost))
	mux.HandleFunc("POST /api/boards", auth(rt.Content.CreateBoard))
	mux.HandleFunc("GET /api/content/{id}", auth(rt.Content.GetContent))
	mux.HandleFunc("PUT /api/boards/{id}/privacy", auth(rt.Content.UpdateBoardPrivacy))
	mux.HandleFunc("PUT /api/boards/{id}/members/{userID}", auth(rt.Content.AddBoardMember))
	mux.HandleFunc("POST /api/boards/{id}/share", auth(rt.Content.ShareBoard))
	mux.HandleFunc("GET /api/shared/{token}", rt.Content.SharedBoard)
}

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"familyhub/internal/models"
	"familyhub/internal/service"
)

// ContentHandler serves posts, boards and the feed
type ContentHandler struct {
	contentService *service.ContentService
}

// NewContentHandler creates a new content handler
func NewContentHandler(contentService *service.ContentService) *ContentHandler {
	return &ContentHandler{contentService: contentService}
}

type contentView struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	OwnerID     string    `json:"ownerId"`
	Privacy     string    `json:"privacy"`
	Body        string    `json:"body,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	MemberIDs   []string  `json:"memberIds,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newContentView(c *models.ContentItem) contentView {
	return contentView{
		ID:          c.ID,
		Kind:        string(c.Kind),
		OwnerID:     c.OwnerID,
		Privacy:     string(c.Privacy),
		Body:        c.Body,
		Title:       c.Title,
		Description: c.Description,
		MemberIDs:   c.MemberIDs,
		CreatedAt:   c.CreatedAt,
	}
}

// CreatePost handles POST /api/posts
func (h *ContentHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	var req struct {
		Body    string `json:"body"`
		Privacy string `json:"privacy"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := h.contentService.CreatePost(r.Context(), session, req.Body, req.Privacy)
	if err != nil {
		respondWithServiceError(w, err, "create post")
		return
	}
	respondJSON(w, http.StatusCreated, newContentView(post))
}

// CreateBoard handles POST /api/boards
func (h *ContentHandler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Privacy     string `json:"privacy"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	board, err := h.contentService.CreateBoard(r.Context(), session, req.Title, req.Description, req.Privacy)
	if err != nil {
		respondWithServiceError(w, err, "create board")
		return
	}
	respondJSON(w, http.StatusCreated, newContentView(board))
}

// Feed handles GET /api/feed?limit=n
func (h *ContentHandler) Feed(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid limit", "", nil)
			return
		}
		limit = n
	}

	items, err := h.contentService.Feed(r.Context(), session, limit)
	if err != nil {
		respondWithServiceError(w, err, "load feed")
		return
	}
	views := make([]contentView, 0, len(items))
	for i := range items {
		views = append(views, newContentView(&items[i]))
	}
	respondJSON(w, http.StatusOK, views)
}

// GetContent handles GET /api/content/{id}
func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	item, err := h.contentService.Get(r.Context(), session, r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, err, "get content")
		return
	}
	respondJSON(w, http.StatusOK, newContentView(item))
}

// UpdateBoardPrivacy handles PUT /api/boards/{id}/privacy
func (h *ContentHandler) UpdateBoardPrivacy(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	var req struct {
		Privacy string `json:"privacy"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	board, err := h.contentService.UpdateBoardPrivacy(r.Context(), session, r.PathValue("id"), req.Privacy)
	if err != nil {
		respondWithServiceError(w, err, "update board privacy")
		return
	}
	respondJSON(w, http.StatusOK, newContentView(board))
}

// AddBoardMember handles PUT /api/boards/{id}/members/{userID}
func (h *ContentHandler) AddBoardMember(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	board, err := h.contentService.AddBoardMember(r.Context(), session, r.PathValue("id"), r.PathValue("userID"))
	if err != nil {
		respondWithServiceError(w, err, "add board member")
		return
	}
	respondJSON(w, http.StatusOK, newContentView(board))
}

// ShareBoard handles POST /api/boards/{id}/share
func (h *ContentHandler) ShareBoard(w http.ResponseWriter, r *http.Request) {
	session, _ := GetSessionFromContext(r.Context())
	token, err := h.contentService.ShareBoard(r.Context(), session, r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, err, "share board")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token, "path": "/api/shared/" + token})
}

// SharedBoard handles GET /api/shared/{token}. No authentication.
func (h *ContentHandler) SharedBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.contentService.SharedBoard(r.Context(), r.PathValue("token"))
	if err != nil {
		respondWithServiceError(w, err, "load shared board")
		return
	}
	respondJSON(w, http.StatusOK, newContentView(board))
}

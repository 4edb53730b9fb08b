package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"familyhub/internal/database"
	"familyhub/internal/repository"
	"familyhub/internal/security"
	"familyhub/internal/service"
	"familyhub/migrations"
)

const (
	testSecret = "test-secret"
	testIssuer = "https://id.example.com"
)

type apiClient struct {
	t      *testing.T
	server *httptest.Server
}

func newAPI(t *testing.T, joinLimit int) *apiClient {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(context.Background(), migrations.FS))

	userRepo := repository.NewUserRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	userService := service.NewUserService(userRepo, familyRepo)
	limiter := security.NewRateLimiter(joinLimit, time.Minute)
	t.Cleanup(limiter.Stop)

	routes := &Routes{
		Middleware:  NewMiddleware(userService, testSecret, testIssuer),
		Families:    NewFamilyHandler(service.NewFamilyService(db, nil), service.NewGraphService(userRepo, familyRepo)),
		Content:     NewContentHandler(service.NewContentService(db)),
		Users:       NewUserHandler(userService),
		JoinLimiter: limiter,
	}
	mux := http.NewServeMux()
	routes.Register(mux)

	server := httptest.NewServer(Logging(mux))
	t.Cleanup(server.Close)
	return &apiClient{t: t, server: server}
}

func signToken(t *testing.T, secret, issuer, subject string, expires time.Time) string {
	t.Helper()
	claims := identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email: subject + "@example.com",
		Name:  subject,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

// do sends a request as user (anonymous when empty) and decodes the JSON
// response into out when out is non-nil
func (c *apiClient) do(method, path, user string, body any, out any) int {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.server.URL+path, reader)
	require.NoError(c.t, err)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(c.t, testSecret, testIssuer, user, time.Now().Add(time.Hour)))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (c *apiClient) rawAuth(path, header string) int {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.server.URL+path, nil)
	require.NoError(c.t, err)
	req.Header.Set("Authorization", header)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestRequireAuthRejectsBadTokens(t *testing.T) {
	api := newAPI(t, 5)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name   string
		header string
	}{
		{"missing scheme", "u1"},
		{"empty bearer", "Bearer "},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", testIssuer, "u1", future)},
		{"wrong issuer", "Bearer " + signToken(t, testSecret, "https://evil.example.com", "u1", future)},
		{"expired", "Bearer " + signToken(t, testSecret, testIssuer, "u1", time.Now().Add(-time.Minute))},
		{"no subject", "Bearer " + signToken(t, testSecret, testIssuer, "", future)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, api.rawAuth("/api/me", tt.header))
		})
	}

	assert.Equal(t, http.StatusOK, api.rawAuth("/api/me", "Bearer "+signToken(t, testSecret, testIssuer, "u1", future)))
}

func TestFamilyPostOverHTTP(t *testing.T) {
	api := newAPI(t, 5)

	var family familyView
	require.Equal(t, http.StatusCreated, api.do("POST", "/api/families", "u1", map[string]string{"name": "Smiths"}, &family))
	require.NotEmpty(t, family.Code)

	require.Equal(t, http.StatusOK, api.do("POST", "/api/families/join", "u2", map[string]string{"code": family.Code}, nil))
	require.Equal(t, http.StatusCreated, api.do("POST", "/api/families", "u3", map[string]string{"name": "Joneses"}, nil))

	var post contentView
	require.Equal(t, http.StatusCreated, api.do("POST", "/api/posts", "u1", map[string]string{"body": "Dinner at six", "privacy": "family"}, &post))

	var feed []contentView
	require.Equal(t, http.StatusOK, api.do("GET", "/api/feed", "u2", nil, &feed))
	require.Len(t, feed, 1)
	assert.Equal(t, post.ID, feed[0].ID)

	require.Equal(t, http.StatusOK, api.do("GET", "/api/feed?limit=10", "u3", nil, &feed))
	assert.Empty(t, feed)

	assert.Equal(t, http.StatusNotFound, api.do("GET", "/api/content/"+post.ID, "u3", nil, nil))
	assert.Equal(t, http.StatusBadRequest, api.do("GET", "/api/feed?limit=lots", "u2", nil, nil))
}

func TestModerationDenialsOverHTTP(t *testing.T) {
	api := newAPI(t, 5)

	var family familyView
	require.Equal(t, http.StatusCreated, api.do("POST", "/api/families", "u1", map[string]string{"name": "Smiths"}, &family))
	require.Equal(t, http.StatusOK, api.do("POST", "/api/families/join", "u2", map[string]string{"code": family.Code}, nil))
	require.Equal(t, http.StatusOK, api.do("POST", "/api/families/join", "u3", map[string]string{"code": family.Code}, nil))

	var errBody errorResponse
	status := api.do("PUT", "/api/families/"+family.ID+"/silenced/u3", "u2", nil, &errBody)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, service.ReasonNotCreator, errBody.Error)

	var got familyView
	require.Equal(t, http.StatusOK, api.do("GET", "/api/families/"+family.ID, "u1", nil, &got))
	assert.Empty(t, got.SilencedMemberIDs)

	assert.Equal(t, http.StatusNoContent, api.do("PUT", "/api/families/"+family.ID+"/silenced/u3", "u1", nil, nil))
	status = api.do("POST", "/api/posts", "u3", map[string]string{"body": "hello"}, &errBody)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, service.ReasonSilenced, errBody.Error)

	assert.Equal(t, http.StatusConflict, api.do("POST", "/api/families/leave", "u1", nil, nil))
	assert.Equal(t, http.StatusNoContent, api.do("DELETE", "/api/families/"+family.ID+"/members/u2", "u1", nil, nil))

	var members partialView[userView]
	require.Equal(t, http.StatusOK, api.do("GET", "/api/families/"+family.ID+"/members", "u1", nil, &members))
	assert.Len(t, members.Items, 2)
	assert.Zero(t, members.FailedBatches)
}

func TestLinkedBoardOverHTTP(t *testing.T) {
	api := newAPI(t, 5)

	var f1, f2 familyView
	require.Equal(t, http.StatusCreated, api.do("POST", "/api/families", "u1", map[string]string{"name": "Smiths"}, &f1))
	require.Equal(t, http.StatusCreated, api.do("POST", "/api/families", "u3", map[string]string{"name": "Joneses"}, &f2))
	require.Equal(t, http.StatusNoContent, api.do("PUT", "/api/families/"+f1.ID+"/related/"+f2.ID, "u1", nil, nil))

	var related partialView[familyView]
	require.Equal(t, http.StatusOK, api.do("GET", "/api/families/"+f2.ID+"/related", "u3", nil, &related))
	require.Len(t, related.Items, 1)
	assert.Equal(t, f1.ID, related.Items[0].ID)
	assert.Empty(t, related.Items[0].Code, "join codes are hidden from non-members")

	var board contentView
	require.Equal(t, http.StatusCreated, api.do("POST", "/api/boards", "u1",
		map[string]string{"title": "Holiday", "privacy": "familyAndRelated"}, &board))
	assert.Equal(t, http.StatusOK, api.do("GET", "/api/content/"+board.ID, "u3", nil, nil))
	assert.Equal(t, http.StatusNotFound, api.do("GET", "/api/content/"+board.ID, "u4", nil, nil))

	var share map[string]string
	require.Equal(t, http.StatusOK, api.do("POST", "/api/boards/"+board.ID+"/share", "u1", nil, &share))
	var shared contentView
	require.Equal(t, http.StatusOK, api.do("GET", "/api/shared/"+share["token"], "", nil, &shared))
	assert.Equal(t, board.ID, shared.ID)
}

func TestJoinIsRateLimited(t *testing.T) {
	api := newAPI(t, 2)

	for range 2 {
		assert.Equal(t, http.StatusNotFound, api.do("POST", "/api/families/join", "u1", map[string]string{"code": "NOPE0000"}, nil))
	}
	assert.Equal(t, http.StatusTooManyRequests, api.do("POST", "/api/families/join", "u1", map[string]string{"code": "NOPE0000"}, nil))
	assert.Equal(t, http.StatusNotFound, api.do("POST", "/api/families/join", "u2", map[string]string{"code": "NOPE0000"}, nil),
		"limits are per user")
}

func TestPreferencesOverHTTP(t *testing.T) {
	api := newAPI(t, 5)

	var me meView
	require.Equal(t, http.StatusOK, api.do("GET", "/api/me", "u1", nil, &me))
	assert.Equal(t, "private", me.DefaultPostPrivacy)
	assert.Equal(t, "u1@example.com", me.Email)

	require.Equal(t, http.StatusOK, api.do("PUT", "/api/me/preferences", "u1", map[string]string{"defaultPostPrivacy": "public"}, &me))
	assert.Equal(t, "public", me.DefaultPostPrivacy)

	assert.Equal(t, http.StatusBadRequest, api.do("PUT", "/api/me/preferences", "u1", map[string]string{"defaultPostPrivacy": "cosmic"}, nil))
	assert.Equal(t, http.StatusBadRequest, api.do("PUT", "/api/me/preferences", "u1", map[string]string{"unknown": "x"}, nil))
	assert.Equal(t, http.StatusNoContent, api.do("PUT", "/api/me/presence", "u1", map[string]bool{"online": true}, nil))
}

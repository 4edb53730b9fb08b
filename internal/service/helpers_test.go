package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"familyhub/internal/database"
	"familyhub/internal/models"
	"familyhub/internal/repository"
	"familyhub/migrations"
)

type recordedInvite struct {
	to, family, inviter string
}

type fakeMailer struct {
	sent []recordedInvite
	err  error
}

func (m *fakeMailer) SendFamilyInvitation(ctx context.Context, toEmail, familyName, inviterName string) error {
	m.sent = append(m.sent, recordedInvite{toEmail, familyName, inviterName})
	return m.err
}

// testEnv wires every service over a fresh sqlite database
type testEnv struct {
	db       *database.DB
	users    *UserService
	families *FamilyService
	content  *ContentService
	mailer   *fakeMailer
	userRepo *repository.UserRepository
	famRepo  *repository.FamilyRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(context.Background(), migrations.FS))

	userRepo := repository.NewUserRepository(db)
	famRepo := repository.NewFamilyRepository(db)
	mailer := &fakeMailer{}
	return &testEnv{
		db:       db,
		users:    NewUserService(userRepo, famRepo),
		families: NewFamilyService(db, mailer),
		content:  NewContentService(db),
		mailer:   mailer,
		userRepo: userRepo,
		famRepo:  famRepo,
	}
}

// user provisions a user and returns its id
func (e *testEnv) user(t *testing.T, id string) string {
	t.Helper()
	_, err := e.users.EnsureUser(context.Background(), id, id+"@example.com", id)
	require.NoError(t, err)
	return id
}

// session builds a fresh session so it reflects the latest graph
func (e *testEnv) session(t *testing.T, userID string) models.Session {
	t.Helper()
	s, err := e.users.SessionFor(context.Background(), userID)
	require.NoError(t, err)
	return s
}

// family creates a family owned by creator and returns it
func (e *testEnv) family(t *testing.T, creator, name string) *models.Family {
	t.Helper()
	f, err := e.families.CreateFamily(context.Background(), e.session(t, creator), name)
	require.NoError(t, err)
	return f
}

func (e *testEnv) join(t *testing.T, userID string, f *models.Family) {
	t.Helper()
	_, err := e.families.JoinFamilyByCode(context.Background(), e.session(t, userID), f.Code)
	require.NoError(t, err)
}

func (e *testEnv) reload(t *testing.T, familyID string) *models.Family {
	t.Helper()
	f, err := e.famRepo.GetFamilyByID(context.Background(), familyID)
	require.NoError(t, err)
	require.NotNil(t, f)
	return f
}

func (e *testEnv) reloadUser(t *testing.T, userID string) *models.User {
	t.Helper()
	u, err := e.userRepo.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

func contentIDs(items []models.ContentItem) []string {
	out := make([]string, len(items))
	for i := range items {
		out[i] = items[i].ID
	}
	return out
}

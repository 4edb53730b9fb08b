package service

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"familyhub/internal/repository"
)

func TestBackupRoundTrip(t *testing.T) {
	src := newTestEnv(t)
	ctx := context.Background()
	f1 := src.family(t, src.user(t, "u1"), "Smiths")
	src.join(t, src.user(t, "u2"), f1)
	f2 := src.family(t, src.user(t, "u3"), "Joneses")
	require.NoError(t, src.families.LinkFamilies(ctx, src.session(t, "u1"), f1.ID, f2.ID))
	require.NoError(t, src.families.SilenceMember(ctx, src.session(t, "u1"), f1.ID, "u2"))

	board, err := src.content.CreateBoard(ctx, src.session(t, "u1"), "Chores", "", "family")
	require.NoError(t, err)
	token, err := src.content.ShareBoard(ctx, src.session(t, "u1"), board.ID)
	require.NoError(t, err)
	_, err = src.families.InviteByEmail(ctx, src.session(t, "u1"), f1.ID, "gran@example.com")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewBackupService(src.db).ExportTo(ctx, &buf))

	var decoded BackupData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "sqlite3", decoded.DatabaseType)
	assert.Len(t, decoded.Users, 3)
	assert.Len(t, decoded.Families, 2)

	dst := newTestEnv(t)
	summary, err := NewBackupService(dst.db).ImportFromReader(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Users: 3, Families: 2, Content: 1, Invitations: 1}, *summary)

	restored := dst.reload(t, f1.ID)
	assert.Equal(t, f1.Code, restored.Code)
	assert.ElementsMatch(t, []string{"u1", "u2"}, restored.MemberIDs)
	assert.Equal(t, []string{f2.ID}, restored.RelatedFamilyIDs)
	assert.Equal(t, []string{"u2"}, restored.SilencedMemberIDs)
	assert.Equal(t, f1.ID, *dst.reloadUser(t, "u2").FamilyID)

	shared, err := dst.content.SharedBoard(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, board.ID, shared.ID)

	invs, err := repository.NewInvitationRepository(dst.db).GetInvitationsForEmail(ctx, "gran@example.com")
	require.NoError(t, err)
	assert.Len(t, invs, 1)

	summary, err = NewBackupService(dst.db).ImportFromReader(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Skipped: 7}, *summary, "re-import skips existing records")
}

func TestBackupFileRoundTrip(t *testing.T) {
	src := newTestEnv(t)
	ctx := context.Background()
	src.family(t, src.user(t, "u1"), "Smiths")

	path := filepath.Join(t.TempDir(), "backup.json")
	require.NoError(t, NewBackupService(src.db).Export(ctx, path))

	dst := newTestEnv(t)
	summary, err := NewBackupService(dst.db).Import(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Families)
}

func TestImportRejectsMalformedBackup(t *testing.T) {
	env := newTestEnv(t)
	_, err := NewBackupService(env.db).ImportFromReader(context.Background(), bytes.NewReader([]byte("{not json")))
	assert.Error(t, err)
}

package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyLinks fails writes whose source family is failOn
type flakyLinks struct {
	linkWriter
	failOn string
}

var errStoreDown = errors.New("store unavailable")

func (f *flakyLinks) AddRelated(ctx context.Context, familyID, relatedID string) (bool, error) {
	if familyID == f.failOn {
		return false, errStoreDown
	}
	return f.linkWriter.AddRelated(ctx, familyID, relatedID)
}

func (f *flakyLinks) RemoveRelated(ctx context.Context, familyID, relatedID string) (bool, error) {
	if familyID == f.failOn {
		return false, errStoreDown
	}
	return f.linkWriter.RemoveRelated(ctx, familyID, relatedID)
}

func TestCreateFamily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1 := env.user(t, "u1")

	f := env.family(t, u1, "  Smiths ")
	assert.Equal(t, "Smiths", f.Name)
	assert.Regexp(t, `^[A-Z]{4}[0-9]{4}$`, f.Code)
	assert.Equal(t, []string{u1}, env.reload(t, f.ID).MemberIDs)
	assert.Equal(t, f.ID, *env.reloadUser(t, u1).FamilyID)

	_, err := env.families.CreateFamily(ctx, env.session(t, u1), "Second")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = env.families.CreateFamily(ctx, env.session(t, env.user(t, "u2")), " ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.families.CreateFamily(ctx, env.session(t, "u2"), strings.Repeat("x", 81))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateFamilyRetriesOnCodeCollision(t *testing.T) {
	env := newTestEnv(t)
	first := env.family(t, env.user(t, "u1"), "Smiths")

	codes := []string{first.Code, "ZZZZ9999"}
	env.families.newCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	f, err := env.families.CreateFamily(context.Background(), env.session(t, env.user(t, "u2")), "Joneses")
	require.NoError(t, err)
	assert.Equal(t, "ZZZZ9999", f.Code)
	assert.Empty(t, codes)
}

func TestJoinFamilyByCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f1 := env.family(t, env.user(t, "u1"), "Smiths")
	f2 := env.family(t, env.user(t, "u3"), "Joneses")
	require.NoError(t, env.families.LinkFamilies(ctx, env.session(t, "u1"), f1.ID, f2.ID))

	u2 := env.user(t, "u2")
	joined, err := env.families.JoinFamilyByCode(ctx, env.session(t, u2), " "+strings.ToLower(f1.Code))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", u2}, joined.MemberIDs)

	user := env.reloadUser(t, u2)
	assert.Equal(t, f1.ID, *user.FamilyID)
	assert.Empty(t, user.RelatedFamilyIDs, "related ids are not copied on join")
	assert.Equal(t, []string{f2.ID}, env.session(t, u2).RelatedFamilyIDs, "related ids come from the family")

	t.Run("idempotent", func(t *testing.T) {
		again, err := env.families.JoinFamilyByCode(ctx, env.session(t, u2), f1.Code)
		require.NoError(t, err)
		assert.Len(t, again.MemberIDs, 2)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := env.families.JoinFamilyByCode(ctx, env.session(t, env.user(t, "u4")), "NOPE0000")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("already in another family", func(t *testing.T) {
		_, err := env.families.JoinFamilyByCode(ctx, env.session(t, u2), f2.Code)
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func TestLeaveFamily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.family(t, env.user(t, "u1"), "Smiths")
	env.join(t, env.user(t, "u2"), f)

	err := env.families.LeaveFamily(ctx, env.session(t, "u1"))
	assert.ErrorIs(t, err, ErrConflict, "the creator cannot leave")

	require.NoError(t, env.families.LeaveFamily(ctx, env.session(t, "u2")))
	assert.Nil(t, env.reloadUser(t, "u2").FamilyID)
	assert.Equal(t, []string{"u1"}, env.reload(t, f.ID).MemberIDs)
}

func TestRenameFamilyCreatorOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.family(t, env.user(t, "u1"), "Smiths")
	env.join(t, env.user(t, "u2"), f)

	_, err := env.families.RenameFamily(ctx, env.session(t, "u2"), f.ID, "Hijacked")
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, ReasonNotCreator, authErr.Reason)
	assert.Equal(t, "Smiths", env.reload(t, f.ID).Name)

	renamed, err := env.families.RenameFamily(ctx, env.session(t, "u1"), f.ID, "Smith-Jones")
	require.NoError(t, err)
	assert.Equal(t, "Smith-Jones", renamed.Name)
	assert.Equal(t, "Smith-Jones", env.reload(t, f.ID).Name)
}

func TestGetFamilyAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f1 := env.family(t, env.user(t, "u1"), "Smiths")
	f2 := env.family(t, env.user(t, "u2"), "Joneses")
	env.user(t, "stranger")

	_, err := env.families.GetFamily(ctx, env.session(t, "u2"), f1.ID)
	assert.ErrorIs(t, err, ErrAuthorizationDenied)

	require.NoError(t, env.families.LinkFamilies(ctx, env.session(t, "u1"), f1.ID, f2.ID))
	got, err := env.families.GetFamily(ctx, env.session(t, "u2"), f1.ID)
	require.NoError(t, err)
	assert.Equal(t, f1.ID, got.ID)

	_, err = env.families.GetFamily(ctx, env.session(t, "stranger"), f1.ID)
	assert.ErrorIs(t, err, ErrAuthorizationDenied)

	_, err = env.families.GetFamily(ctx, env.session(t, "u1"), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLinkFamiliesSymmetricAndIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f1 := env.family(t, env.user(t, "u1"), "Smiths")
	f2 := env.family(t, env.user(t, "u2"), "Joneses")

	for range 2 {
		require.NoError(t, env.families.LinkFamilies(ctx, env.session(t, "u1"), f1.ID, f2.ID))
		assert.Equal(t, []string{f2.ID}, env.reload(t, f1.ID).RelatedFamilyIDs)
		assert.Equal(t, []string{f1.ID}, env.reload(t, f2.ID).RelatedFamilyIDs)
	}

	require.NoError(t, env.families.UnlinkFamilies(ctx, env.session(t, "u1"), f1.ID, f2.ID))
	assert.Empty(t, env.reload(t, f1.ID).RelatedFamilyIDs)
	assert.Empty(t, env.reload(t, f2.ID).RelatedFamilyIDs)

	require.NoError(t, env.families.UnlinkFamilies(ctx, env.session(t, "u1"), f1.ID, f2.ID), "unlink is idempotent")
}

func TestLinkFamiliesValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f1 := env.family(t, env.user(t, "u1"), "Smiths")
	f2 := env.family(t, env.user(t, "u2"), "Joneses")

	tests := []struct {
		name    string
		actor   string
		a, b    string
		wantErr error
	}{
		{"self link", "u1", f1.ID, f1.ID, ErrInvalidInput},
		{"not creator of source", "u2", f1.ID, f2.ID, ErrAuthorizationDenied},
		{"missing target", "u1", f1.ID, "missing", ErrNotFound},
		{"missing source", "u1", "missing", f2.ID, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.families.LinkFamilies(ctx, env.session(t, tt.actor), tt.a, tt.b)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Empty(t, env.reload(t, f1.ID).RelatedFamilyIDs)
	assert.Empty(t, env.reload(t, f2.ID).RelatedFamilyIDs)
}

func TestUnlinkRequiresSourceCreator(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f1 := env.family(t, env.user(t, "u1"), "Smiths")
	f2 := env.family(t, env.user(t, "u2"), "Joneses")
	require.NoError(t, env.families.LinkFamilies(ctx, env.session(t, "u1"), f1.ID, f2.ID))

	err := env.families.UnlinkFamilies(ctx, env.session(t, "u2"), f1.ID, f2.ID)
	assert.ErrorIs(t, err, ErrAuthorizationDenied)
	assert.Equal(t, []string{f2.ID}, env.reload(t, f1.ID).RelatedFamilyIDs)

	require.NoError(t, env.families.UnlinkFamilies(ctx, env.session(t, "u2"), f2.ID, f1.ID))
	assert.Empty(t, env.reload(t, f1.ID).RelatedFamilyIDs)
}

func TestLinkCompensatesFailedSecondWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f1 := env.family(t, env.user(t, "u1"), "Smiths")
	f2 := env.family(t, env.user(t, "u2"), "Joneses")
	env.families.links = &flakyLinks{linkWriter: env.famRepo, failOn: f2.ID}

	err := env.families.LinkFamilies(ctx, env.session(t, "u1"), f1.ID, f2.ID)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, env.reload(t, f1.ID).RelatedFamilyIDs, "first half is undone")
	assert.Empty(t, env.reload(t, f2.ID).RelatedFamilyIDs)
}

func TestLinkKeepsPreexistingHalfOnFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f1 := env.family(t, env.user(t, "u1"), "Smiths")
	f2 := env.family(t, env.user(t, "u2"), "Joneses")

	_, err := env.famRepo.AddRelated(ctx, f1.ID, f2.ID)
	require.NoError(t, err)
	env.families.links = &flakyLinks{linkWriter: env.famRepo, failOn: f2.ID}

	err = env.families.LinkFamilies(ctx, env.session(t, "u1"), f1.ID, f2.ID)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, []string{f2.ID}, env.reload(t, f1.ID).RelatedFamilyIDs, "unchanged half is not compensated")
}

func TestUnlinkCompensatesFailedSecondWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f1 := env.family(t, env.user(t, "u1"), "Smiths")
	f2 := env.family(t, env.user(t, "u2"), "Joneses")
	require.NoError(t, env.families.LinkFamilies(ctx, env.session(t, "u1"), f1.ID, f2.ID))
	env.families.links = &flakyLinks{linkWriter: env.famRepo, failOn: f2.ID}

	err := env.families.UnlinkFamilies(ctx, env.session(t, "u1"), f1.ID, f2.ID)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, []string{f2.ID}, env.reload(t, f1.ID).RelatedFamilyIDs, "first removal is undone")
	assert.Equal(t, []string{f1.ID}, env.reload(t, f2.ID).RelatedFamilyIDs)
}

func TestRemoveMemberPostConditions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.family(t, env.user(t, "u1"), "Smiths")
	u2 := env.user(t, "u2")
	env.join(t, u2, f)
	require.NoError(t, env.families.SilenceMember(ctx, env.session(t, "u1"), f.ID, u2))
	require.NoError(t, env.userRepo.AddRelatedFamilies(ctx, u2, f.ID, "other"))

	require.NoError(t, env.families.RemoveMember(ctx, env.session(t, "u1"), f.ID, u2))

	family := env.reload(t, f.ID)
	assert.NotContains(t, family.MemberIDs, u2)
	assert.NotContains(t, family.SilencedMemberIDs, u2)

	user := env.reloadUser(t, u2)
	assert.Nil(t, user.FamilyID)
	assert.Empty(t, user.RelatedFamilyIDs)
	assert.Empty(t, env.session(t, u2).RelatedFamilyIDs)
}

func TestRemoveMemberDenials(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.family(t, env.user(t, "u1"), "Smiths")
	env.join(t, env.user(t, "u2"), f)
	env.join(t, env.user(t, "u3"), f)

	tests := []struct {
		name       string
		actor      string
		target     string
		wantReason string
	}{
		{"non-creator", "u2", "u3", ReasonNotCreator},
		{"target is creator", "u1", "u1", ReasonTargetIsCreator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.families.RemoveMember(ctx, env.session(t, tt.actor), f.ID, tt.target)
			var authErr *AuthorizationError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, tt.wantReason, authErr.Reason)
		})
	}

	err := env.families.RemoveMember(ctx, env.session(t, "u1"), f.ID, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, env.reload(t, f.ID).MemberIDs, 3)
}

func TestSilenceByNonCreatorLeavesStateUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.family(t, env.user(t, "u1"), "Smiths")
	env.join(t, env.user(t, "u2"), f)
	env.join(t, env.user(t, "u3"), f)

	err := env.families.SilenceMember(ctx, env.session(t, "u2"), f.ID, "u3")
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, ReasonNotCreator, authErr.Reason)
	assert.Empty(t, env.reload(t, f.ID).SilencedMemberIDs)

	err = env.families.SilenceMember(ctx, env.session(t, "u1"), f.ID, "u1")
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, ReasonTargetIsCreator, authErr.Reason)
}

func TestSilenceAndUnsilence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.family(t, env.user(t, "u1"), "Smiths")
	env.join(t, env.user(t, "u2"), f)

	require.NoError(t, env.families.SilenceMember(ctx, env.session(t, "u1"), f.ID, "u2"))
	require.NoError(t, env.families.SilenceMember(ctx, env.session(t, "u1"), f.ID, "u2"))
	assert.Equal(t, []string{"u2"}, env.reload(t, f.ID).SilencedMemberIDs)
	assert.True(t, env.session(t, "u2").Silenced)

	require.NoError(t, env.families.UnsilenceMember(ctx, env.session(t, "u1"), f.ID, "u2"))
	assert.Empty(t, env.reload(t, f.ID).SilencedMemberIDs)
	assert.False(t, env.session(t, "u2").Silenced)
}

func TestInvitationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.family(t, env.user(t, "u1"), "Smiths")
	gran := env.user(t, "gran")

	inv, err := env.families.InviteByEmail(ctx, env.session(t, "u1"), f.ID, "Gran <GRAN@example.com>")
	require.NoError(t, err)
	assert.Equal(t, "gran@example.com", inv.InvitedEmail)
	assert.Equal(t, "Smiths", inv.FamilyName)
	require.Len(t, env.mailer.sent, 1)
	assert.Equal(t, recordedInvite{"gran@example.com", "Smiths", "u1"}, env.mailer.sent[0])

	again, err := env.families.InviteByEmail(ctx, env.session(t, "u1"), f.ID, "gran@example.com")
	require.NoError(t, err)
	assert.Equal(t, inv.ID, again.ID, "duplicate invite returns the pending one")
	assert.Len(t, env.mailer.sent, 1)

	pending, err := env.families.PendingInvitations(ctx, env.session(t, gran))
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = env.families.AcceptInvitation(ctx, env.session(t, env.user(t, "other")), inv.ID)
	assert.ErrorIs(t, err, ErrNotFound, "invitations for other addresses are hidden")

	joined, err := env.families.AcceptInvitation(ctx, env.session(t, gran), inv.ID)
	require.NoError(t, err)
	assert.Contains(t, joined.MemberIDs, gran)

	pending, err = env.families.PendingInvitations(ctx, env.session(t, gran))
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeclineInvitation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.family(t, env.user(t, "u1"), "Smiths")
	env.mailer.err = errors.New("ses down")

	inv, err := env.families.InviteByEmail(ctx, env.session(t, "u1"), f.ID, "u2@example.com")
	require.NoError(t, err, "email failures do not fail the invite")

	u2 := env.user(t, "u2")
	require.NoError(t, env.families.DeclineInvitation(ctx, env.session(t, u2), inv.ID))
	assert.Nil(t, env.reloadUser(t, u2).FamilyID)

	err = env.families.DeclineInvitation(ctx, env.session(t, u2), inv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInviteValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.family(t, env.user(t, "u1"), "Smiths")

	_, err := env.families.InviteByEmail(ctx, env.session(t, "u1"), f.ID, "not-an-email")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.families.InviteByEmail(ctx, env.session(t, env.user(t, "outsider")), f.ID, "a@example.com")
	assert.ErrorIs(t, err, ErrAuthorizationDenied)
}

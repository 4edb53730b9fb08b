package service

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/google/uuid"

	"familyhub/internal/credentials"
	"familyhub/internal/database"
	"familyhub/internal/models"
	"familyhub/internal/repository"
	"familyhub/internal/validation"
)

// maxCodeAttempts bounds join code regeneration on collision
const maxCodeAttempts = 5

// InvitationMailer delivers invitation notifications
type InvitationMailer interface {
	SendFamilyInvitation(ctx context.Context, toEmail, familyName, inviterName string) error
}

// linkWriter is the pair of related-list writes used by link and unlink
type linkWriter interface {
	AddRelated(ctx context.Context, familyID, relatedID string) (bool, error)
	RemoveRelated(ctx context.Context, familyID, relatedID string) (bool, error)
}

// FamilyService handles the family lifecycle: creation, membership,
// invitations, moderation and related-family links
type FamilyService struct {
	db          *database.DB
	users       *repository.UserRepository
	families    *repository.FamilyRepository
	invitations *repository.InvitationRepository
	links       linkWriter
	mailer      InvitationMailer
	newCode     func() (string, error)
}

// NewFamilyService creates a new family service. mailer may be nil.
func NewFamilyService(db *database.DB, mailer InvitationMailer) *FamilyService {
	families := repository.NewFamilyRepository(db)
	return &FamilyService{
		db:          db,
		users:       repository.NewUserRepository(db),
		families:    families,
		invitations: repository.NewInvitationRepository(db),
		links:       families,
		mailer:      mailer,
		newCode:     credentials.GenerateFamilyCode,
	}
}

// GetFamily returns a family to its members and to members of related families
func (s *FamilyService) GetFamily(ctx context.Context, session models.Session, familyID string) (*models.Family, error) {
	family, err := s.requireFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}
	related := session.HasFamily() && family.IsRelatedTo(session.FamilyID)
	if !family.IsMember(session.UserID) && !related && !slices.Contains(session.RelatedFamilyIDs, family.ID) {
		return nil, denied(ReasonNotMember)
	}
	return family, nil
}

func (s *FamilyService) requireFamily(ctx context.Context, familyID string) (*models.Family, error) {
	family, err := s.families.GetFamilyByID(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	if family == nil {
		return nil, notFound("family", familyID)
	}
	return family, nil
}

// requireCreator loads a family and checks the session user created it
func (s *FamilyService) requireCreator(ctx context.Context, session models.Session, familyID string) (*models.Family, error) {
	family, err := s.requireFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if !family.IsCreator(session.UserID) {
		return nil, denied(ReasonNotCreator)
	}
	return family, nil
}

// CreateFamily creates a family with the session user as creator and only member
func (s *FamilyService) CreateFamily(ctx context.Context, session models.Session, name string) (*models.Family, error) {
	name, err := validation.FamilyName(name)
	if err != nil {
		return nil, invalidf("%v", err)
	}
	if session.HasFamily() {
		return nil, conflictf("user already belongs to a family")
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate family code: %w", err)
		}

		family := &models.Family{
			ID:        uuid.NewString(),
			Name:      name,
			Code:      code,
			CreatedBy: session.UserID,
			MemberIDs: []string{session.UserID},
		}
		err = s.db.WithTx(ctx, func(tx *database.Tx) error {
			if err := s.families.WithTx(tx).CreateFamily(ctx, family); err != nil {
				return err
			}
			return s.users.WithTx(tx).SetFamily(ctx, session.UserID, &family.ID)
		})
		if err == nil {
			log.Printf("Family created: id=%s code=%s creator=%s", family.ID, family.Code, session.UserID)
			return family, nil
		}
		if !s.db.Dialect.IsUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create family: %w", err)
		}
		log.Printf("Family code collision on attempt %d, regenerating", attempt)
	}
	return nil, fmt.Errorf("failed to create family: no unique code after %d attempts", maxCodeAttempts)
}

// JoinFamilyByCode adds the session user to the family with the given code
func (s *FamilyService) JoinFamilyByCode(ctx context.Context, session models.Session, code string) (*models.Family, error) {
	code = credentials.NormalizeFamilyCode(code)
	if code == "" {
		return nil, invalidf("family code is required")
	}

	family, err := s.families.GetFamilyByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up family code: %w", err)
	}
	if family == nil {
		return nil, notFound("family", code)
	}
	return s.join(ctx, session, family)
}

func (s *FamilyService) join(ctx context.Context, session models.Session, family *models.Family) (*models.Family, error) {
	if session.HasFamily() && session.FamilyID != family.ID {
		return nil, conflictf("user already belongs to a family")
	}

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		if _, err := s.families.WithTx(tx).AddMember(ctx, family.ID, session.UserID); err != nil {
			return err
		}
		return s.users.WithTx(tx).SetFamily(ctx, session.UserID, &family.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to join family: %w", err)
	}

	log.Printf("User %s joined family %s", session.UserID, family.ID)
	return s.requireFamily(ctx, family.ID)
}

// LeaveFamily removes the session user from their family. The creator cannot leave.
func (s *FamilyService) LeaveFamily(ctx context.Context, session models.Session) error {
	if !session.HasFamily() {
		return conflictf("user does not belong to a family")
	}
	family, err := s.requireFamily(ctx, session.FamilyID)
	if err != nil {
		return err
	}
	if family.IsCreator(session.UserID) {
		return conflictf("the family creator cannot leave the family")
	}
	return s.removeMember(ctx, family.ID, session.UserID)
}

// RenameFamily changes the family name. Creator only.
func (s *FamilyService) RenameFamily(ctx context.Context, session models.Session, familyID, name string) (*models.Family, error) {
	name, err := validation.FamilyName(name)
	if err != nil {
		return nil, invalidf("%v", err)
	}
	family, err := s.requireCreator(ctx, session, familyID)
	if err != nil {
		return nil, err
	}
	if err := s.families.RenameFamily(ctx, familyID, name); err != nil {
		return nil, err
	}
	family.Name = name
	return family, nil
}

// RemoveMember removes userID from the family. Creator only; the creator
// cannot be removed. The member's family and related list are cleared.
func (s *FamilyService) RemoveMember(ctx context.Context, session models.Session, familyID, userID string) error {
	family, err := s.requireCreator(ctx, session, familyID)
	if err != nil {
		return err
	}
	if family.IsCreator(userID) {
		return denied(ReasonTargetIsCreator)
	}
	if !family.IsMember(userID) {
		return notFound("member", userID)
	}
	return s.removeMember(ctx, familyID, userID)
}

func (s *FamilyService) removeMember(ctx context.Context, familyID, userID string) error {
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := s.families.WithTx(tx).RemoveMember(ctx, familyID, userID); err != nil {
			return err
		}
		users := s.users.WithTx(tx)
		if err := users.SetFamily(ctx, userID, nil); err != nil {
			return err
		}
		return users.ClearRelatedFamilies(ctx, userID)
	})
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	log.Printf("User %s removed from family %s", userID, familyID)
	return nil
}

// SilenceMember revokes userID's posting rights. Creator only; the creator
// cannot be silenced.
func (s *FamilyService) SilenceMember(ctx context.Context, session models.Session, familyID, userID string) error {
	family, err := s.requireCreator(ctx, session, familyID)
	if err != nil {
		return err
	}
	if family.IsCreator(userID) {
		return denied(ReasonTargetIsCreator)
	}
	if !family.IsMember(userID) {
		return notFound("member", userID)
	}
	_, err = s.families.Silence(ctx, familyID, userID)
	return err
}

// UnsilenceMember restores userID's posting rights. Creator only.
func (s *FamilyService) UnsilenceMember(ctx context.Context, session models.Session, familyID, userID string) error {
	if _, err := s.requireCreator(ctx, session, familyID); err != nil {
		return err
	}
	_, err := s.families.Unsilence(ctx, familyID, userID)
	return err
}

// LinkFamilies records a bidirectional related link between a and b. The
// requester must have created a. If the second half cannot be written the
// first is undone; when that also fails the link is left one-sided for the
// reconciler.
func (s *FamilyService) LinkFamilies(ctx context.Context, session models.Session, a, b string) error {
	if a == b {
		return invalidf("a family cannot be linked to itself")
	}
	if _, err := s.requireCreator(ctx, session, a); err != nil {
		return err
	}
	if _, err := s.requireFamily(ctx, b); err != nil {
		return err
	}

	addedA, err := s.links.AddRelated(ctx, a, b)
	if err != nil {
		return fmt.Errorf("failed to link families: %w", err)
	}
	if _, err := s.links.AddRelated(ctx, b, a); err != nil {
		if addedA {
			if _, cerr := s.links.RemoveRelated(ctx, a, b); cerr != nil {
				log.Printf("Dangling link %s -> %s left for reconciliation: %v", a, b, cerr)
			}
		}
		return fmt.Errorf("failed to link families: %w", err)
	}

	log.Printf("Families linked: %s <-> %s by %s", a, b, session.UserID)
	return nil
}

// UnlinkFamilies removes both halves of the link between a and b. The
// requester must have created a.
func (s *FamilyService) UnlinkFamilies(ctx context.Context, session models.Session, a, b string) error {
	if a == b {
		return invalidf("a family cannot be unlinked from itself")
	}
	if _, err := s.requireCreator(ctx, session, a); err != nil {
		return err
	}

	removedA, err := s.links.RemoveRelated(ctx, a, b)
	if err != nil {
		return fmt.Errorf("failed to unlink families: %w", err)
	}
	if _, err := s.links.RemoveRelated(ctx, b, a); err != nil {
		if removedA {
			if _, cerr := s.links.AddRelated(ctx, a, b); cerr != nil {
				log.Printf("Dangling link %s -> %s left for reconciliation: %v", b, a, cerr)
			}
		}
		return fmt.Errorf("failed to unlink families: %w", err)
	}

	log.Printf("Families unlinked: %s <-> %s by %s", a, b, session.UserID)
	return nil
}

// InviteByEmail records an invitation into the session user's family and
// notifies the invitee. Inviting the same address twice returns the pending
// invitation.
func (s *FamilyService) InviteByEmail(ctx context.Context, session models.Session, familyID, email string) (*models.Invitation, error) {
	email, err := validation.NormalizeEmail(email)
	if err != nil {
		return nil, invalidf("%v", err)
	}

	family, err := s.requireFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if !family.IsMember(session.UserID) {
		return nil, denied(ReasonNotMember)
	}

	existing, err := s.invitations.GetPendingInvitation(ctx, familyID, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	inviterName := session.Email
	if inviter, err := s.users.GetUserByID(ctx, session.UserID); err == nil && inviter != nil && inviter.DisplayName != "" {
		inviterName = inviter.DisplayName
	}

	inv := &models.Invitation{
		ID:            uuid.NewString(),
		FamilyID:      family.ID,
		FamilyName:    family.Name,
		InvitedEmail:  email,
		InvitedBy:     session.UserID,
		InvitedByName: inviterName,
	}
	if err := s.invitations.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}

	if s.mailer != nil {
		if err := s.mailer.SendFamilyInvitation(ctx, email, family.Name, inviterName); err != nil {
			log.Printf("Failed to send invitation email to %s: %v", email, err)
		}
	}
	return inv, nil
}

// PendingInvitations lists invitations addressed to the session user's email
func (s *FamilyService) PendingInvitations(ctx context.Context, session models.Session) ([]models.Invitation, error) {
	if session.Email == "" {
		return nil, nil
	}
	return s.invitations.GetInvitationsForEmail(ctx, session.Email)
}

// invitationFor loads an invitation addressed to the session user. Invitations
// for other addresses read as not found.
func (s *FamilyService) invitationFor(ctx context.Context, session models.Session, id string) (*models.Invitation, error) {
	inv, err := s.invitations.GetInvitationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil || session.Email == "" || !strings.EqualFold(inv.InvitedEmail, session.Email) {
		return nil, notFound("invitation", id)
	}
	return inv, nil
}

// AcceptInvitation joins the invited family and deletes the invitation
func (s *FamilyService) AcceptInvitation(ctx context.Context, session models.Session, id string) (*models.Family, error) {
	inv, err := s.invitationFor(ctx, session, id)
	if err != nil {
		return nil, err
	}
	family, err := s.requireFamily(ctx, inv.FamilyID)
	if err != nil {
		return nil, err
	}
	joined, err := s.join(ctx, session, family)
	if err != nil {
		return nil, err
	}
	if err := s.invitations.DeleteInvitation(ctx, inv.ID); err != nil {
		return nil, err
	}
	return joined, nil
}

// DeclineInvitation deletes the invitation
func (s *FamilyService) DeclineInvitation(ctx context.Context, session models.Session, id string) error {
	inv, err := s.invitationFor(ctx, session, id)
	if err != nil {
		return err
	}
	return s.invitations.DeleteInvitation(ctx, inv.ID)
}

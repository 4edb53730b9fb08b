package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"familyhub/internal/database"
	"familyhub/internal/models"
)

type InvitationRepository struct {
	db database.DBTX
}

func NewInvitationRepository(db database.DBTX) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *InvitationRepository) WithTx(tx *database.Tx) *InvitationRepository {
	return &InvitationRepository{db: tx}
}

const invitationColumns = "id, family_id, family_name, invited_email, invited_by, invited_by_name, created_at"

// CreateInvitation stores a pending invitation. The email is lower-cased.
func (r *InvitationRepository) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	inv.InvitedEmail = strings.ToLower(strings.TrimSpace(inv.InvitedEmail))
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}

	query := "INSERT INTO invitations (" + invitationColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query,
		inv.ID, inv.FamilyID, inv.FamilyName, inv.InvitedEmail, inv.InvitedBy, inv.InvitedByName, inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

// GetInvitationByID retrieves an invitation, or nil when absent
func (r *InvitationRepository) GetInvitationByID(ctx context.Context, id string) (*models.Invitation, error) {
	query := "SELECT " + invitationColumns + " FROM invitations WHERE id = ?"
	var inv models.Invitation
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&inv.ID, &inv.FamilyID, &inv.FamilyName, &inv.InvitedEmail, &inv.InvitedBy, &inv.InvitedByName, &inv.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return &inv, nil
}

// GetInvitationsForEmail lists pending invitations addressed to email
func (r *InvitationRepository) GetInvitationsForEmail(ctx context.Context, email string) ([]models.Invitation, error) {
	query := "SELECT " + invitationColumns + " FROM invitations WHERE invited_email = ? ORDER BY created_at DESC"
	return r.query(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

// GetPendingInvitation finds the invitation of email into familyID, or nil
func (r *InvitationRepository) GetPendingInvitation(ctx context.Context, familyID, email string) (*models.Invitation, error) {
	query := "SELECT " + invitationColumns + " FROM invitations WHERE family_id = ? AND invited_email = ?"
	invs, err := r.query(ctx, query, familyID, strings.ToLower(strings.TrimSpace(email)))
	if err != nil || len(invs) == 0 {
		return nil, err
	}
	return &invs[0], nil
}

// GetAllInvitations lists every pending invitation. Used by export.
func (r *InvitationRepository) GetAllInvitations(ctx context.Context) ([]models.Invitation, error) {
	return r.query(ctx, "SELECT "+invitationColumns+" FROM invitations ORDER BY created_at, id")
}

func (r *InvitationRepository) query(ctx context.Context, query string, args ...any) ([]models.Invitation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invitations: %w", err)
	}
	defer rows.Close()

	var invitations []models.Invitation
	for rows.Next() {
		var inv models.Invitation
		if err := rows.Scan(
			&inv.ID, &inv.FamilyID, &inv.FamilyName, &inv.InvitedEmail, &inv.InvitedBy, &inv.InvitedByName, &inv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invitations: %w", err)
	}
	return invitations, nil
}

// DeleteInvitation removes an invitation
func (r *InvitationRepository) DeleteInvitation(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM invitations WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}
	return nil
}

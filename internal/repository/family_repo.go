package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"familyhub/internal/database"
	"familyhub/internal/models"
)

// FamilyRepository handles database operations for families and their
// member, related and silenced collections
type FamilyRepository struct {
	db database.DBTX
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db database.DBTX) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *FamilyRepository) WithTx(tx *database.Tx) *FamilyRepository {
	return &FamilyRepository{db: tx}
}

// Link is one directed half of a related-family link
type Link struct {
	FamilyID        string
	RelatedFamilyID string
	LinkedAt        time.Time
}

const familyColumns = "id, name, code, created_by, created_at, updated_at"

// CreateFamily inserts the family row and its initial member roster. A
// duplicate code surfaces as the dialect's unique violation.
func (r *FamilyRepository) CreateFamily(ctx context.Context, family *models.Family) error {
	now := time.Now().UTC()
	if family.CreatedAt.IsZero() {
		family.CreatedAt = now
	}
	family.UpdatedAt = now

	query := "INSERT INTO families (" + familyColumns + ") VALUES (?, ?, ?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query,
		family.ID, family.Name, family.Code, family.CreatedBy, family.CreatedAt, family.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create family: %w", err)
	}

	for _, userID := range family.MemberIDs {
		if _, err := r.AddMember(ctx, family.ID, userID); err != nil {
			return err
		}
	}
	for _, relatedID := range family.RelatedFamilyIDs {
		if _, err := r.AddRelated(ctx, family.ID, relatedID); err != nil {
			return err
		}
	}
	for _, userID := range family.SilencedMemberIDs {
		if _, err := r.Silence(ctx, family.ID, userID); err != nil {
			return err
		}
	}
	return nil
}

// GetFamilyByID retrieves a family with its collections, or nil when absent
func (r *FamilyRepository) GetFamilyByID(ctx context.Context, id string) (*models.Family, error) {
	return r.getFamily(ctx, "SELECT "+familyColumns+" FROM families WHERE id = ?", id)
}

// GetFamilyByCode retrieves a family by its join code, or nil when absent
func (r *FamilyRepository) GetFamilyByCode(ctx context.Context, code string) (*models.Family, error) {
	return r.getFamily(ctx, "SELECT "+familyColumns+" FROM families WHERE code = ?", code)
}

func (r *FamilyRepository) getFamily(ctx context.Context, query string, arg string) (*models.Family, error) {
	family := &models.Family{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&family.ID,
		&family.Name,
		&family.Code,
		&family.CreatedBy,
		&family.CreatedAt,
		&family.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}

	families := []models.Family{*family}
	if err := r.hydrate(ctx, families, []string{family.ID}); err != nil {
		return nil, err
	}
	return &families[0], nil
}

// GetFamiliesByIDs is a multi-get of at most MaxBatchSize families. Missing
// ids are skipped.
func (r *FamilyRepository) GetFamiliesByIDs(ctx context.Context, ids []string) ([]models.Family, error) {
	if err := checkBatch(ids); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := "SELECT " + familyColumns + " FROM families WHERE id IN (" + placeholders(len(ids)) + ")"
	families, err := r.queryFamilies(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, families, ids); err != nil {
		return nil, err
	}
	return families, nil
}

// GetAllFamilies returns every family with collections. Used by export.
func (r *FamilyRepository) GetAllFamilies(ctx context.Context) ([]models.Family, error) {
	families, err := r.queryFamilies(ctx, "SELECT "+familyColumns+" FROM families ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, families, nil); err != nil {
		return nil, err
	}
	return families, nil
}

func (r *FamilyRepository) queryFamilies(ctx context.Context, query string, args ...any) ([]models.Family, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query families: %w", err)
	}
	defer rows.Close()

	var families []models.Family
	for rows.Next() {
		var f models.Family
		if err := rows.Scan(&f.ID, &f.Name, &f.Code, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		families = append(families, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate families: %w", err)
	}
	return families, nil
}

// hydrate fills member, related and silenced ids. A nil ids slice loads the
// collections of every family.
func (r *FamilyRepository) hydrate(ctx context.Context, families []models.Family, ids []string) error {
	if len(families) == 0 {
		return nil
	}

	where, args := "", []any(nil)
	if ids != nil {
		where = " WHERE family_id IN (" + placeholders(len(ids)) + ")"
		args = stringArgs(ids)
	}

	members, err := queryGrouped(ctx, r.db,
		"SELECT family_id, user_id FROM family_members"+where+" ORDER BY joined_at, user_id", args...)
	if err != nil {
		return fmt.Errorf("failed to query family members: %w", err)
	}
	related, err := queryGrouped(ctx, r.db,
		"SELECT family_id, related_family_id FROM family_related"+where+" ORDER BY related_family_id", args...)
	if err != nil {
		return fmt.Errorf("failed to query related families: %w", err)
	}
	silenced, err := queryGrouped(ctx, r.db,
		"SELECT family_id, user_id FROM family_silenced"+where+" ORDER BY user_id", args...)
	if err != nil {
		return fmt.Errorf("failed to query silenced members: %w", err)
	}

	for i := range families {
		id := families[i].ID
		families[i].MemberIDs = members[id]
		families[i].RelatedFamilyIDs = related[id]
		families[i].SilencedMemberIDs = silenced[id]
	}
	return nil
}

// GetAllLinks returns every directed related-family link
func (r *FamilyRepository) GetAllLinks(ctx context.Context) ([]Link, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT family_id, related_family_id, linked_at FROM family_related ORDER BY family_id, related_family_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.FamilyID, &l.RelatedFamilyID, &l.LinkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// RenameFamily updates the family name
func (r *FamilyRepository) RenameFamily(ctx context.Context, familyID, name string) error {
	query := "UPDATE families SET name = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, name, time.Now().UTC(), familyID); err != nil {
		return fmt.Errorf("failed to rename family: %w", err)
	}
	return nil
}

// AddMember unions userID into the roster. It reports whether the roster changed.
func (r *FamilyRepository) AddMember(ctx context.Context, familyID, userID string) (bool, error) {
	query := r.db.GetDialect().InsertIgnore("family_members", "family_id", "user_id", "joined_at")
	res, err := r.db.ExecContext(ctx, query, familyID, userID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to add family member: %w", err)
	}
	return changed(res)
}

// RemoveMember drops userID from the roster and the silenced list
func (r *FamilyRepository) RemoveMember(ctx context.Context, familyID, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM family_members WHERE family_id = ? AND user_id = ?", familyID, userID); err != nil {
		return fmt.Errorf("failed to remove family member: %w", err)
	}
	if _, err := r.Unsilence(ctx, familyID, userID); err != nil {
		return err
	}
	return nil
}

// AddRelated unions relatedID into familyID's related list. It reports
// whether the list changed.
func (r *FamilyRepository) AddRelated(ctx context.Context, familyID, relatedID string) (bool, error) {
	query := r.db.GetDialect().InsertIgnore("family_related", "family_id", "related_family_id", "linked_at")
	res, err := r.db.ExecContext(ctx, query, familyID, relatedID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to add related family: %w", err)
	}
	return changed(res)
}

// RemoveRelated removes relatedID from familyID's related list. It reports
// whether the list changed.
func (r *FamilyRepository) RemoveRelated(ctx context.Context, familyID, relatedID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM family_related WHERE family_id = ? AND related_family_id = ?", familyID, relatedID)
	if err != nil {
		return false, fmt.Errorf("failed to remove related family: %w", err)
	}
	return changed(res)
}

// Silence unions userID into the silenced list
func (r *FamilyRepository) Silence(ctx context.Context, familyID, userID string) (bool, error) {
	query := r.db.GetDialect().InsertIgnore("family_silenced", "family_id", "user_id")
	res, err := r.db.ExecContext(ctx, query, familyID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to silence member: %w", err)
	}
	return changed(res)
}

// Unsilence removes userID from the silenced list
func (r *FamilyRepository) Unsilence(ctx context.Context, familyID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM family_silenced WHERE family_id = ? AND user_id = ?", familyID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to unsilence member: %w", err)
	}
	return changed(res)
}

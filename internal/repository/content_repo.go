package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"familyhub/internal/database"
	"familyhub/internal/models"
)

// ContentRepository handles database operations for posts and boards
type ContentRepository struct {
	db database.DBTX
}

// NewContentRepository creates a new content repository
func NewContentRepository(db database.DBTX) *ContentRepository {
	return &ContentRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *ContentRepository) WithTx(tx *database.Tx) *ContentRepository {
	return &ContentRepository{db: tx}
}

const contentColumns = `id, kind, owner_id, privacy, owner_family_id, title, description, body,
	share_token, created_at, updated_at`

func scanContent(row rowScanner) (*models.ContentItem, error) {
	var (
		item          models.ContentItem
		kind, privacy string
		ownerFamilyID sql.NullString
		shareToken    sql.NullString
	)
	err := row.Scan(
		&item.ID,
		&kind,
		&item.OwnerID,
		&privacy,
		&ownerFamilyID,
		&item.Title,
		&item.Description,
		&item.Body,
		&shareToken,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Kind = models.ContentKind(kind)
	item.Privacy = models.PrivacyFromStore(privacy)
	item.OwnerFamilyID = stringPtr(ownerFamilyID)
	item.ShareToken = stringPtr(shareToken)
	return &item, nil
}

// CreateContent inserts a post or board with its snapshot and collaborator rows
func (r *ContentRepository) CreateContent(ctx context.Context, item *models.ContentItem) error {
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = item.CreatedAt
	}

	query := "INSERT INTO content_items (" + contentColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query,
		item.ID, string(item.Kind), item.OwnerID, string(item.Privacy), nullString(item.OwnerFamilyID),
		item.Title, item.Description, item.Body, nullString(item.ShareToken),
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create content: %w", err)
	}

	relatedQuery := r.db.GetDialect().InsertIgnore("content_related_families", "content_id", "family_id")
	for _, familyID := range item.OwnerRelatedFamilyIDs {
		if _, err := r.db.ExecContext(ctx, relatedQuery, item.ID, familyID); err != nil {
			return fmt.Errorf("failed to snapshot related family: %w", err)
		}
	}
	if item.IsBoard() {
		for _, userID := range item.MemberIDs {
			if _, err := r.AddBoardMember(ctx, item.ID, userID); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetContentByID retrieves a content item, or nil when absent
func (r *ContentRepository) GetContentByID(ctx context.Context, id string) (*models.ContentItem, error) {
	return r.getContent(ctx, "SELECT "+contentColumns+" FROM content_items WHERE id = ?", id)
}

// GetContentByShareToken retrieves a board by its share token, or nil when absent
func (r *ContentRepository) GetContentByShareToken(ctx context.Context, token string) (*models.ContentItem, error) {
	return r.getContent(ctx, "SELECT "+contentColumns+" FROM content_items WHERE share_token = ?", token)
}

func (r *ContentRepository) getContent(ctx context.Context, query, arg string) (*models.ContentItem, error) {
	item, err := scanContent(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content: %w", err)
	}
	items := []models.ContentItem{*item}
	if err := r.hydrate(ctx, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// ListRecent returns up to limit items starting at offset, newest first. A
// non-positive limit returns everything.
func (r *ContentRepository) ListRecent(ctx context.Context, limit, offset int) ([]models.ContentItem, error) {
	query := "SELECT " + contentColumns + " FROM content_items ORDER BY created_at DESC, id"
	var args []any
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query content: %w", err)
	}
	var items []models.ContentItem
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan content: %w", err)
		}
		items = append(items, *item)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate content: %w", err)
	}

	if err := r.hydrate(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// hydrate fills snapshot related ids and board members
func (r *ContentRepository) hydrate(ctx context.Context, items []models.ContentItem) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	in := " WHERE content_id IN (" + placeholders(len(ids)) + ")"

	related, err := queryGrouped(ctx, r.db,
		"SELECT content_id, family_id FROM content_related_families"+in+" ORDER BY family_id", stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("failed to query content snapshots: %w", err)
	}
	members, err := queryGrouped(ctx, r.db,
		"SELECT content_id, user_id FROM board_members"+in+" ORDER BY user_id", stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("failed to query board members: %w", err)
	}

	for i := range items {
		items[i].OwnerRelatedFamilyIDs = related[items[i].ID]
		if items[i].IsBoard() {
			items[i].MemberIDs = members[items[i].ID]
		}
	}
	return nil
}

// UpdatePrivacy changes the privacy tier of an item
func (r *ContentRepository) UpdatePrivacy(ctx context.Context, id string, privacy models.Privacy) error {
	query := "UPDATE content_items SET privacy = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, string(privacy), time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to update privacy: %w", err)
	}
	return nil
}

// AddBoardMember unions userID into the board's collaborators
func (r *ContentRepository) AddBoardMember(ctx context.Context, id, userID string) (bool, error) {
	query := r.db.GetDialect().InsertIgnore("board_members", "content_id", "user_id")
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to add board member: %w", err)
	}
	return changed(res)
}

// SetShareToken assigns token when the board has none yet. It reports whether
// the token was stored.
func (r *ContentRepository) SetShareToken(ctx context.Context, id, token string) (bool, error) {
	query := "UPDATE content_items SET share_token = ?, updated_at = ? WHERE id = ? AND share_token IS NULL"
	res, err := r.db.ExecContext(ctx, query, token, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to set share token: %w", err)
	}
	return changed(res)
}

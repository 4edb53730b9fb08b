package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"familyhub/internal/database"
	"familyhub/internal/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *UserRepository) WithTx(tx *database.Tx) *UserRepository {
	return &UserRepository{db: tx}
}

const userColumns = `id, email, display_name, family_id, is_online, last_seen,
	default_post_privacy, default_board_privacy, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user      models.User
		familyID  sql.NullString
		lastSeen  sql.NullTime
		postPriv  string
		boardPriv string
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&familyID,
		&user.IsOnline,
		&lastSeen,
		&postPriv,
		&boardPriv,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.FamilyID = stringPtr(familyID)
	if lastSeen.Valid {
		t := lastSeen.Time
		user.LastSeen = &t
	}
	user.DefaultPostPrivacy = models.PrivacyFromStore(postPriv)
	user.DefaultBoardPrivacy = models.PrivacyFromStore(boardPriv)
	return &user, nil
}

// CreateUser inserts a user if no row with the same id exists. It reports
// whether a row was inserted.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) (bool, error) {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := r.db.GetDialect().InsertIgnore("users",
		"id", "email", "display_name", "family_id", "is_online",
		"default_post_privacy", "default_board_privacy", "created_at", "updated_at")
	res, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.DisplayName, nullString(user.FamilyID), user.IsOnline,
		string(user.DefaultPrivacyFor(models.ContentKindPost)),
		string(user.DefaultPrivacyFor(models.ContentKindBoard)),
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create user: %w", err)
	}
	inserted, err := changed(res)
	if err != nil {
		return false, fmt.Errorf("failed to create user: %w", err)
	}

	if inserted && len(user.RelatedFamilyIDs) > 0 {
		if err := r.AddRelatedFamilies(ctx, user.ID, user.RelatedFamilyIDs...); err != nil {
			return true, err
		}
	}
	return inserted, nil
}

// GetUserByID retrieves a user by ID, or nil when absent
func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = ?"
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	related, err := queryStrings(ctx, r.db,
		"SELECT family_id FROM user_related_families WHERE user_id = ? ORDER BY family_id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get related families: %w", err)
	}
	user.RelatedFamilyIDs = related
	return user, nil
}

// GetUsersByIDs is a multi-get of at most MaxBatchSize users. Missing ids are
// skipped.
func (r *UserRepository) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if err := checkBatch(ids); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := "SELECT " + userColumns + " FROM users WHERE id IN (" + placeholders(len(ids)) + ")"
	users, err := r.queryUsers(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, err
	}

	related, err := queryGrouped(ctx, r.db,
		"SELECT user_id, family_id FROM user_related_families WHERE user_id IN ("+placeholders(len(ids))+") ORDER BY family_id",
		stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get related families: %w", err)
	}
	for i := range users {
		users[i].RelatedFamilyIDs = related[users[i].ID]
	}
	return users, nil
}

// GetAllUsers returns every user with related families. Used by export.
func (r *UserRepository) GetAllUsers(ctx context.Context) ([]models.User, error) {
	users, err := r.queryUsers(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	related, err := queryGrouped(ctx, r.db,
		"SELECT user_id, family_id FROM user_related_families ORDER BY family_id")
	if err != nil {
		return nil, fmt.Errorf("failed to get related families: %w", err)
	}
	for i := range users {
		users[i].RelatedFamilyIDs = related[users[i].ID]
	}
	return users, nil
}

func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// UpdateProfile refreshes the identity-provided fields
func (r *UserRepository) UpdateProfile(ctx context.Context, id, email, displayName string) error {
	query := "UPDATE users SET email = ?, display_name = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, email, displayName, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	return nil
}

// SetFamily sets or clears (nil) the user's immediate family
func (r *UserRepository) SetFamily(ctx context.Context, id string, familyID *string) error {
	query := "UPDATE users SET family_id = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, nullString(familyID), time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to set user family: %w", err)
	}
	return nil
}

// AddRelatedFamilies unions familyIDs into the user's related list
func (r *UserRepository) AddRelatedFamilies(ctx context.Context, id string, familyIDs ...string) error {
	query := r.db.GetDialect().InsertIgnore("user_related_families", "user_id", "family_id")
	for _, familyID := range familyIDs {
		if familyID == "" {
			continue
		}
		if _, err := r.db.ExecContext(ctx, query, id, familyID); err != nil {
			return fmt.Errorf("failed to add related family: %w", err)
		}
	}
	return nil
}

// ClearRelatedFamilies empties the user's stored related list
func (r *UserRepository) ClearRelatedFamilies(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM user_related_families WHERE user_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear related families: %w", err)
	}
	return nil
}

// UpdateOnlineStatus records presence
func (r *UserRepository) UpdateOnlineStatus(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	query := "UPDATE users SET is_online = ?, last_seen = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, online, lastSeen.UTC(), id); err != nil {
		return fmt.Errorf("failed to update online status: %w", err)
	}
	return nil
}

// UpdatePreferences stores the default privacy per content type
func (r *UserRepository) UpdatePreferences(ctx context.Context, id string, post, board models.Privacy) error {
	query := "UPDATE users SET default_post_privacy = ?, default_board_privacy = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, string(post), string(board), time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}
	return nil
}

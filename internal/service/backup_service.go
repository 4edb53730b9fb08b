package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"familyhub/internal/database"
	"familyhub/internal/models"
	"familyhub/internal/repository"
)

// backupVersion is bumped when the backup layout changes
const backupVersion = "2.0"

// BackupData represents the complete database backup structure
type BackupData struct {
	Version      string             `json:"version"`
	ExportedAt   time.Time          `json:"exported_at"`
	DatabaseType string             `json:"database_type"`
	Users        []UserBackup       `json:"users"`
	Families     []FamilyBackup     `json:"families"`
	Content      []ContentBackup    `json:"content"`
	Invitations  []InvitationBackup `json:"invitations"`
}

// UserBackup represents a user record for backup
type UserBackup struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	DisplayName         string    `json:"display_name"`
	FamilyID            *string   `json:"family_id"`
	RelatedFamilyIDs    []string  `json:"related_family_ids"`
	DefaultPostPrivacy  string    `json:"default_post_privacy"`
	DefaultBoardPrivacy string    `json:"default_board_privacy"`
	CreatedAt           time.Time `json:"created_at"`
}

// FamilyBackup represents a family with its rosters and links
type FamilyBackup struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Code              string    `json:"code"`
	CreatedBy         string    `json:"created_by"`
	MemberIDs         []string  `json:"member_ids"`
	RelatedFamilyIDs  []string  `json:"related_family_ids"`
	SilencedMemberIDs []string  `json:"silenced_member_ids"`
	CreatedAt         time.Time `json:"created_at"`
}

// ContentBackup represents a post or board with its snapshot
type ContentBackup struct {
	ID                    string    `json:"id"`
	Kind                  string    `json:"kind"`
	OwnerID               string    `json:"owner_id"`
	Privacy               string    `json:"privacy"`
	OwnerFamilyID         *string   `json:"owner_family_id"`
	OwnerRelatedFamilyIDs []string  `json:"owner_related_family_ids"`
	Body                  string    `json:"body,omitempty"`
	Title                 string    `json:"title,omitempty"`
	Description           string    `json:"description,omitempty"`
	MemberIDs             []string  `json:"member_ids,omitempty"`
	ShareToken            *string   `json:"share_token,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

// InvitationBackup represents a pending invitation
type InvitationBackup struct {
	ID            string    `json:"id"`
	FamilyID      string    `json:"family_id"`
	FamilyName    string    `json:"family_name"`
	InvitedEmail  string    `json:"invited_email"`
	InvitedBy     string    `json:"invited_by"`
	InvitedByName string    `json:"invited_by_name"`
	CreatedAt     time.Time `json:"created_at"`
}

// ImportSummary counts the records written by an import. Records already
// present are skipped.
type ImportSummary struct {
	Users       int
	Families    int
	Content     int
	Invitations int
	Skipped     int
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db *database.DB
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB) *BackupService {
	return &BackupService{db: db}
}

// Export writes a complete backup of the database to outputPath
func (s *BackupService) Export(ctx context.Context, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := s.ExportTo(ctx, file); err != nil {
		return err
	}
	log.Printf("Database exported successfully to %s", outputPath)
	return nil
}

// ExportTo writes a complete backup as indented JSON to w
func (s *BackupService) ExportTo(ctx context.Context, w io.Writer) error {
	log.Println("Starting database export...")

	backup, err := s.snapshot(ctx)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}

	log.Printf("Exported: %d users, %d families, %d content items, %d invitations",
		len(backup.Users), len(backup.Families), len(backup.Content), len(backup.Invitations))
	return nil
}

func (s *BackupService) snapshot(ctx context.Context) (*BackupData, error) {
	backup := &BackupData{
		Version:      backupVersion,
		ExportedAt:   time.Now().UTC(),
		DatabaseType: s.db.Dialect.DriverName(),
	}

	users, err := repository.NewUserRepository(s.db).GetAllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export users: %w", err)
	}
	for _, u := range users {
		backup.Users = append(backup.Users, UserBackup{
			ID:                  u.ID,
			Email:               u.Email,
			DisplayName:         u.DisplayName,
			FamilyID:            u.FamilyID,
			RelatedFamilyIDs:    u.RelatedFamilyIDs,
			DefaultPostPrivacy:  string(u.DefaultPostPrivacy),
			DefaultBoardPrivacy: string(u.DefaultBoardPrivacy),
			CreatedAt:           u.CreatedAt,
		})
	}

	families, err := repository.NewFamilyRepository(s.db).GetAllFamilies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export families: %w", err)
	}
	for _, f := range families {
		backup.Families = append(backup.Families, FamilyBackup{
			ID:                f.ID,
			Name:              f.Name,
			Code:              f.Code,
			CreatedBy:         f.CreatedBy,
			MemberIDs:         f.MemberIDs,
			RelatedFamilyIDs:  f.RelatedFamilyIDs,
			SilencedMemberIDs: f.SilencedMemberIDs,
			CreatedAt:         f.CreatedAt,
		})
	}

	items, err := repository.NewContentRepository(s.db).ListRecent(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to export content: %w", err)
	}
	for _, c := range items {
		backup.Content = append(backup.Content, ContentBackup{
			ID:                    c.ID,
			Kind:                  string(c.Kind),
			OwnerID:               c.OwnerID,
			Privacy:               string(c.Privacy),
			OwnerFamilyID:         c.OwnerFamilyID,
			OwnerRelatedFamilyIDs: c.OwnerRelatedFamilyIDs,
			Body:                  c.Body,
			Title:                 c.Title,
			Description:           c.Description,
			MemberIDs:             c.MemberIDs,
			ShareToken:            c.ShareToken,
			CreatedAt:             c.CreatedAt,
		})
	}

	invitations, err := repository.NewInvitationRepository(s.db).GetAllInvitations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export invitations: %w", err)
	}
	for _, inv := range invitations {
		backup.Invitations = append(backup.Invitations, InvitationBackup(inv))
	}
	return backup, nil
}

// Import restores a database from a backup file
func (s *BackupService) Import(ctx context.Context, inputPath string) (*ImportSummary, error) {
	log.Printf("Starting database import from %s...", inputPath)

	file, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.ImportFromReader(ctx, file)
}

// ImportFromReader restores a backup in a single transaction. Records whose
// id already exists are left untouched.
func (s *BackupService) ImportFromReader(ctx context.Context, reader io.Reader) (*ImportSummary, error) {
	var backup BackupData
	if err := json.NewDecoder(reader).Decode(&backup); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	log.Printf("Backup version: %s, exported at: %s", backup.Version, backup.ExportedAt)

	summary := &ImportSummary{}
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := importUsers(ctx, repository.NewUserRepository(tx), backup.Users, summary); err != nil {
			return fmt.Errorf("failed to import users: %w", err)
		}
		if err := importFamilies(ctx, repository.NewFamilyRepository(tx), backup.Families, summary); err != nil {
			return fmt.Errorf("failed to import families: %w", err)
		}
		if err := importContent(ctx, repository.NewContentRepository(tx), backup.Content, summary); err != nil {
			return fmt.Errorf("failed to import content: %w", err)
		}
		if err := importInvitations(ctx, repository.NewInvitationRepository(tx), backup.Invitations, summary); err != nil {
			return fmt.Errorf("failed to import invitations: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Database import completed: %d users, %d families, %d content items, %d invitations, %d skipped",
		summary.Users, summary.Families, summary.Content, summary.Invitations, summary.Skipped)
	return summary, nil
}

func importUsers(ctx context.Context, repo *repository.UserRepository, users []UserBackup, summary *ImportSummary) error {
	for _, u := range users {
		inserted, err := repo.CreateUser(ctx, &models.User{
			ID:                  u.ID,
			Email:               u.Email,
			DisplayName:         u.DisplayName,
			FamilyID:            u.FamilyID,
			RelatedFamilyIDs:    u.RelatedFamilyIDs,
			DefaultPostPrivacy:  models.PrivacyFromStore(u.DefaultPostPrivacy),
			DefaultBoardPrivacy: models.PrivacyFromStore(u.DefaultBoardPrivacy),
			CreatedAt:           u.CreatedAt,
		})
		if err != nil {
			return err
		}
		if inserted {
			summary.Users++
		} else {
			summary.Skipped++
		}
	}
	return nil
}

func importFamilies(ctx context.Context, repo *repository.FamilyRepository, families []FamilyBackup, summary *ImportSummary) error {
	for _, f := range families {
		existing, err := repo.GetFamilyByID(ctx, f.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			summary.Skipped++
			continue
		}
		err = repo.CreateFamily(ctx, &models.Family{
			ID:                f.ID,
			Name:              f.Name,
			Code:              f.Code,
			CreatedBy:         f.CreatedBy,
			MemberIDs:         f.MemberIDs,
			RelatedFamilyIDs:  f.RelatedFamilyIDs,
			SilencedMemberIDs: f.SilencedMemberIDs,
			CreatedAt:         f.CreatedAt,
		})
		if err != nil {
			return err
		}
		summary.Families++
	}
	return nil
}

func importContent(ctx context.Context, repo *repository.ContentRepository, items []ContentBackup, summary *ImportSummary) error {
	for _, c := range items {
		existing, err := repo.GetContentByID(ctx, c.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			summary.Skipped++
			continue
		}
		err = repo.CreateContent(ctx, &models.ContentItem{
			ID:                    c.ID,
			Kind:                  models.ContentKind(c.Kind),
			OwnerID:               c.OwnerID,
			Privacy:               models.PrivacyFromStore(c.Privacy),
			OwnerFamilyID:         c.OwnerFamilyID,
			OwnerRelatedFamilyIDs: c.OwnerRelatedFamilyIDs,
			Body:                  c.Body,
			Title:                 c.Title,
			Description:           c.Description,
			MemberIDs:             c.MemberIDs,
			ShareToken:            c.ShareToken,
			CreatedAt:             c.CreatedAt,
		})
		if err != nil {
			return err
		}
		summary.Content++
	}
	return nil
}

func importInvitations(ctx context.Context, repo *repository.InvitationRepository, invitations []InvitationBackup, summary *ImportSummary) error {
	for _, inv := range invitations {
		existing, err := repo.GetInvitationByID(ctx, inv.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			summary.Skipped++
			continue
		}
		record := models.Invitation(inv)
		if err := repo.CreateInvitation(ctx, &record); err != nil {
			return err
		}
		summary.Invitations++
	}
	return nil
}

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
	"familyhub/internal/visibility"
)

const (
	defaultFeedLimit = 50
	maxFeedLimit     = 200
)

// ContentService publishes posts and boards and serves them through the
// visibility resolver
type ContentService struct {
	db       *database.DB
	content  *repository.ContentRepository
	users    *repository.UserRepository
	newToken func() (string, error)
}

// NewContentService creates a new content service
func NewContentService(db *database.DB) *ContentService {
	return &ContentService{
		db:       db,
		content:  repository.NewContentRepository(db),
		users:    repository.NewUserRepository(db),
		newToken: credentials.GenerateShareToken,
	}
}

// CreatePost publishes a post. An empty privacy uses the author's default.
func (s *ContentService) CreatePost(ctx context.Context, session models.Session, body, privacy string) (*models.ContentItem, error) {
	body, err := validation.PostBody(body)
	if err != nil {
		return nil, invalidf("%v", err)
	}
	item := &models.ContentItem{Kind: models.ContentKindPost, Body: body}
	return s.publish(ctx, session, item, privacy)
}

// CreateBoard publishes a task board owned by the session user
func (s *ContentService) CreateBoard(ctx context.Context, session models.Session, title, description, privacy string) (*models.ContentItem, error) {
	title, err := validation.BoardTitle(title)
	if err != nil {
		return nil, invalidf("%v", err)
	}
	description, err = validation.Description(description)
	if err != nil {
		return nil, invalidf("%v", err)
	}
	item := &models.ContentItem{
		Kind:        models.ContentKindBoard,
		Title:       title,
		Description: description,
		MemberIDs:   []string{session.UserID},
	}
	return s.publish(ctx, session, item, privacy)
}

// publish resolves privacy, captures the family snapshot from the session
// and stores the item
func (s *ContentService) publish(ctx context.Context, session models.Session, item *models.ContentItem, privacy string) (*models.ContentItem, error) {
	if session.Silenced {
		return nil, denied(ReasonSilenced)
	}

	if privacy == "" {
		user, err := s.users.GetUserByID(ctx, session.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load author: %w", err)
		}
		if user == nil {
			return nil, notFound("user", session.UserID)
		}
		item.Privacy = user.DefaultPrivacyFor(item.Kind)
	} else {
		p, err := models.ParsePrivacy(privacy)
		if err != nil {
			return nil, invalidf("%v", err)
		}
		item.Privacy = p
	}

	item.ID = uuid.NewString()
	item.OwnerID = session.UserID
	if session.HasFamily() {
		familyID := session.FamilyID
		item.OwnerFamilyID = &familyID
	}
	item.OwnerRelatedFamilyIDs = slices.Clone(session.RelatedFamilyIDs)

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		return s.content.WithTx(tx).CreateContent(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("%s %s created by %s (privacy=%s)", item.Kind, item.ID, item.OwnerID, item.Privacy)
	return item, nil
}

// Feed returns up to limit items visible to the session, newest first. Pages
// are read from the store until enough visible items are collected.
func (s *ContentService) Feed(ctx context.Context, session models.Session, limit int) ([]models.ContentItem, error) {
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	limit = min(limit, maxFeedLimit)
	pageSize := max(limit*2, defaultFeedLimit)

	feed := make([]models.ContentItem, 0, limit)
	for offset := 0; len(feed) < limit; offset += pageSize {
		page, err := s.content.ListRecent(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		feed = append(feed, visibility.Filter(page, session)...)
		if len(page) < pageSize {
			break
		}
	}
	if len(feed) > limit {
		feed = feed[:limit]
	}
	return feed, nil
}

// Get returns an item visible to the session. Items the session may not see
// are reported as not found.
func (s *ContentService) Get(ctx context.Context, session models.Session, id string) (*models.ContentItem, error) {
	item, err := s.content.GetContentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil || !visibility.CanViewContent(item, session) {
		return nil, notFound("content", id)
	}
	return item, nil
}

// ownedBoard loads a board the session user owns
func (s *ContentService) ownedBoard(ctx context.Context, session models.Session, boardID string) (*models.ContentItem, error) {
	board, err := s.Get(ctx, session, boardID)
	if err != nil {
		return nil, err
	}
	if !board.IsBoard() {
		return nil, notFound("board", boardID)
	}
	if board.OwnerID != session.UserID {
		return nil, denied(ReasonNotOwner)
	}
	return board, nil
}

// UpdateBoardPrivacy changes a board's tier. Owner only.
func (s *ContentService) UpdateBoardPrivacy(ctx context.Context, session models.Session, boardID, privacy string) (*models.ContentItem, error) {
	p, err := models.ParsePrivacy(privacy)
	if err != nil {
		return nil, invalidf("%v", err)
	}
	board, err := s.ownedBoard(ctx, session, boardID)
	if err != nil {
		return nil, err
	}
	if err := s.content.UpdatePrivacy(ctx, board.ID, p); err != nil {
		return nil, err
	}
	board.Privacy = p
	return board, nil
}

// AddBoardMember adds a collaborator to a board. Owner only.
func (s *ContentService) AddBoardMember(ctx context.Context, session models.Session, boardID, userID string) (*models.ContentItem, error) {
	board, err := s.ownedBoard(ctx, session, boardID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound("user", userID)
	}

	if _, err := s.content.AddBoardMember(ctx, board.ID, userID); err != nil {
		return nil, err
	}
	if !board.IsBoardMember(userID) {
		board.MemberIDs = append(board.MemberIDs, userID)
	}
	return board, nil
}

// ShareBoard returns the board's share token, creating it on first call. Owner only.
func (s *ContentService) ShareBoard(ctx context.Context, session models.Session, boardID string) (string, error) {
	board, err := s.ownedBoard(ctx, session, boardID)
	if err != nil {
		return "", err
	}
	if board.ShareToken != nil {
		return *board.ShareToken, nil
	}

	token, err := s.newToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate share token: %w", err)
	}
	stored, err := s.content.SetShareToken(ctx, board.ID, token)
	if err != nil {
		return "", err
	}
	if stored {
		return token, nil
	}

	// Another request stored a token first
	current, err := s.content.GetContentByID(ctx, board.ID)
	if err != nil {
		return "", err
	}
	if current == nil || current.ShareToken == nil {
		return "", notFound("board", boardID)
	}
	return *current.ShareToken, nil
}

// SharedBoard returns the board holding token regardless of its privacy
func (s *ContentService) SharedBoard(ctx context.Context, token string) (*models.ContentItem, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, notFound("board", token)
	}
	board, err := s.content.GetContentByShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if board == nil || !board.IsBoard() {
		return nil, notFound("board", token)
	}
	return board, nil
}

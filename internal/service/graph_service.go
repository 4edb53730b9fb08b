package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"familyhub/internal/models"
	"familyhub/internal/repository"
)

// UserBatchReader is the multi-get used for user hydration
type UserBatchReader interface {
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// FamilyReader is the family lookup surface of the graph queries
type FamilyReader interface {
	GetFamilyByID(ctx context.Context, id string) (*models.Family, error)
	GetFamiliesByIDs(ctx context.Context, ids []string) ([]models.Family, error)
}

// defaultBatchConcurrency bounds the number of in-flight multi-gets
const defaultBatchConcurrency = 4

// BatchResult is the outcome of a chunked fan-out load. Items holds the
// records of every batch that succeeded, in no particular order.
type BatchResult[T any] struct {
	Items         []T
	Batches       int
	FailedBatches int
	Errors        []error
}

// Err returns a *PartialBatchError when any batch failed, nil otherwise
func (r BatchResult[T]) Err() error {
	if r.FailedBatches == 0 {
		return nil
	}
	return &PartialBatchError{Failed: r.FailedBatches, Total: r.Batches, Errs: r.Errors}
}

// GraphService answers read-only questions about the family graph
type GraphService struct {
	users       UserBatchReader
	families    FamilyReader
	concurrency int
}

// NewGraphService creates a new graph service
func NewGraphService(users UserBatchReader, families FamilyReader) *GraphService {
	return &GraphService{
		users:       users,
		families:    families,
		concurrency: defaultBatchConcurrency,
	}
}

// Members returns the user ids of a family's roster
func (s *GraphService) Members(ctx context.Context, familyID string) ([]string, error) {
	family, err := s.family(ctx, familyID)
	if err != nil {
		return nil, err
	}
	return family.MemberIDs, nil
}

// RelatedFamilies returns the ids a family lists as related
func (s *GraphService) RelatedFamilies(ctx context.Context, familyID string) ([]string, error) {
	family, err := s.family(ctx, familyID)
	if err != nil {
		return nil, err
	}
	return family.RelatedFamilyIDs, nil
}

// MemberUsers hydrates the roster of a family
func (s *GraphService) MemberUsers(ctx context.Context, familyID string) (BatchResult[models.User], error) {
	ids, err := s.Members(ctx, familyID)
	if err != nil {
		return BatchResult[models.User]{}, err
	}
	return s.LoadUsers(ctx, ids), nil
}

// RelatedFamilyRecords hydrates the families linked to familyID
func (s *GraphService) RelatedFamilyRecords(ctx context.Context, familyID string) (BatchResult[models.Family], error) {
	ids, err := s.RelatedFamilies(ctx, familyID)
	if err != nil {
		return BatchResult[models.Family]{}, err
	}
	return s.LoadFamilies(ctx, ids), nil
}

func (s *GraphService) family(ctx context.Context, familyID string) (*models.Family, error) {
	family, err := s.families.GetFamilyByID(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	if family == nil {
		return nil, notFound("family", familyID)
	}
	return family, nil
}

// LoadUsers fetches users in chunks of repository.MaxBatchSize. A failing
// chunk is logged and contributes no records; the others still complete.
func (s *GraphService) LoadUsers(ctx context.Context, ids []string) BatchResult[models.User] {
	return loadBatched(ctx, "users", ids, s.concurrency, s.users.GetUsersByIDs)
}

// LoadFamilies fetches families in chunks of repository.MaxBatchSize with the
// same failure semantics as LoadUsers.
func (s *GraphService) LoadFamilies(ctx context.Context, ids []string) BatchResult[models.Family] {
	return loadBatched(ctx, "families", ids, s.concurrency, s.families.GetFamiliesByIDs)
}

func loadBatched[T any](ctx context.Context, kind string, ids []string, limit int,
	fetch func(context.Context, []string) ([]T, error)) BatchResult[T] {

	chunks := chunk(dedupe(ids), repository.MaxBatchSize)
	result := BatchResult[T]{Batches: len(chunks)}
	if len(chunks) == 0 {
		return result
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(limit)

	for i, batch := range chunks {
		g.Go(func() error {
			items, err := fetch(ctx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("Failed to load %s batch %d/%d (%d ids): %v", kind, i+1, len(chunks), len(batch), err)
				result.FailedBatches++
				result.Errors = append(result.Errors, err)
				return nil
			}
			result.Items = append(result.Items, items...)
			return nil
		})
	}
	// batch failures are recorded in result; the closures never return an error
	_ = g.Wait()

	return result
}

// chunk splits ids into consecutive slices of at most size elements
func chunk(ids []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"familyhub/internal/repository"
)

// linkStore is the family link surface the reconciler repairs
type linkStore interface {
	GetAllLinks(ctx context.Context) ([]repository.Link, error)
	RemoveRelated(ctx context.Context, familyID, relatedID string) (bool, error)
}

// defaultLinkGrace is how old a one-sided link must be before it counts as
// dangling. Younger links may belong to a link call still between its writes.
const defaultLinkGrace = time.Minute

// ReconcileReport summarizes one reconciliation pass
type ReconcileReport struct {
	Links   int
	Removed []repository.Link
	Failed  []repository.Link
	Recent  []repository.Link
}

// ReconcileService removes one-sided related links left behind by failed
// link or unlink operations. The dangling half is deleted rather than its
// reverse added, so repairs only ever narrow visibility.
type ReconcileService struct {
	links   linkStore
	timeout time.Duration
	grace   time.Duration
	now     func() time.Time
}

// NewReconcileService creates a new reconcile service
func NewReconcileService(links linkStore) *ReconcileService {
	return &ReconcileService{
		links:   links,
		timeout: 5 * time.Minute,
		grace:   defaultLinkGrace,
		now:     time.Now,
	}
}

type linkKey struct{ from, to string }

// Reconcile scans every link and removes those whose reverse is missing.
// One-sided links younger than the grace period are reported as Recent and
// left for a later pass.
func (s *ReconcileService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	links, err := s.links.GetAllLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}

	present := make(map[linkKey]struct{}, len(links))
	for _, l := range links {
		present[linkKey{l.FamilyID, l.RelatedFamilyID}] = struct{}{}
	}

	cutoff := s.now().Add(-s.grace)
	report := &ReconcileReport{Links: len(links)}
	for _, l := range links {
		if _, ok := present[linkKey{l.RelatedFamilyID, l.FamilyID}]; ok {
			continue
		}
		if l.LinkedAt.After(cutoff) {
			report.Recent = append(report.Recent, l)
			continue
		}
		if _, err := s.links.RemoveRelated(ctx, l.FamilyID, l.RelatedFamilyID); err != nil {
			log.Printf("Failed to remove dangling link %s -> %s: %v", l.FamilyID, l.RelatedFamilyID, err)
			report.Failed = append(report.Failed, l)
			continue
		}
		log.Printf("Removed dangling link %s -> %s", l.FamilyID, l.RelatedFamilyID)
		report.Removed = append(report.Removed, l)
	}
	return report, nil
}

// Schedule runs Reconcile on a cron spec such as "@hourly". An empty spec
// disables scheduling and returns a nil scheduler. The caller stops the
// returned scheduler.
func (s *ReconcileService) Schedule(spec string) (*cron.Cron, error) {
	if spec == "" {
		log.Println("Link reconciliation schedule disabled")
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		report, err := s.Reconcile(ctx)
		if err != nil {
			log.Printf("Scheduled reconciliation failed: %v", err)
			return
		}
		if len(report.Removed) > 0 || len(report.Failed) > 0 || len(report.Recent) > 0 {
			log.Printf("Reconciliation complete: links=%d removed=%d failed=%d recent=%d",
				report.Links, len(report.Removed), len(report.Failed), len(report.Recent))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	c.Start()
	log.Printf("Link reconciliation scheduled: %s", spec)
	return c, nil
}

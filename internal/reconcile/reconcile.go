package reconcile

import (
	"context"
	"log"
	"time"

	"hostel-allocation-backend/config"
	"hostel-allocation-backend/internal/store"
)

// Service periodically repairs drift in the denormalized room and hostel
// occupancy counters.
type Service struct {
	cfg   *config.ReconcileConfig
	store store.Store
}

// NewService creates a new reconciliation service.
func NewService(cfg *config.ReconcileConfig, store store.Store) *Service {
	return &Service{cfg: cfg, store: store}
}

// Run starts the reconciliation loop. It runs one pass immediately and then
// on every interval tick until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Occupancy reconciler is disabled. Not starting.")
		return
	}
	log.Println("Starting occupancy reconciler...")

	s.RunOnce(ctx)

	interval := time.Duration(s.cfg.IntervalMinutes) * time.Minute
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Occupancy reconciler shutting down.")
			return
		case <-timer.C:
			s.RunOnce(ctx)
			timer.Reset(interval)
		}
	}
}

// RunOnce performs a single reconciliation pass.
func (s *Service) RunOnce(ctx context.Context) {
	fixed, err := s.store.ReconcileOccupancy(ctx)
	if err != nil {
		log.Printf("Error reconciling occupancy: %v", err)
		return
	}
	if fixed > 0 {
		log.Printf("Occupancy reconciliation corrected %d rows", fixed)
	}
}

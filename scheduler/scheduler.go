package scheduler

import (
	"log"
	"time"

	"seedmart_backend/services"
	"seedmart_backend/services/market"

	"github.com/go-co-op/gocron"
	"gorm.io/gorm"
)

// PriceTickInterval is how often seed prices are updated
const PriceTickInterval = 30 * time.Second

// Scheduler manages the periodic price-update job
type Scheduler struct {
	cron     *gocron.Scheduler
	market   *market.Service
	interval time.Duration
}

// NewScheduler creates a new scheduler instance
func NewScheduler(db *gorm.DB) *Scheduler {
	return &Scheduler{
		cron:     gocron.NewScheduler(time.UTC),
		market:   market.NewService(db),
		interval: PriceTickInterval,
	}
}

// Start starts the scheduled jobs. SingletonMode guarantees at most one
// concurrent run of the tick; a run that overlaps the next interval
// causes the missed tick to be dropped, not queued.
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	s.cron.Every(s.interval).SingletonMode().Do(s.runPriceTick)

	s.cron.StartAsync()
	log.Println("Scheduler started successfully")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

// runPriceTick appends a new observation for every seed. Errors are
// logged and dropped; the next tick proceeds independently.
func (s *Scheduler) runPriceTick() {
	count, err := s.market.UpdateAllPrices()
	if err != nil {
		log.Printf("Price tick failed: %v", err)
		return
	}
	log.Printf("Price tick updated %d seeds", count)

	s.publishSnapshot(count)
}

// publishSnapshot pushes the fresh market summary to stream clients and
// the tick archive when either is configured
func (s *Scheduler) publishSnapshot(updates int) {
	summary, err := s.market.Summary()
	if err != nil {
		log.Printf("Failed to build market summary after tick: %v", err)
		return
	}

	if services.GlobalStreamHub != nil {
		services.GlobalStreamHub.Broadcast("market_summary", summary)
	}
	if services.GlobalTickArchive != nil {
		if err := services.GlobalTickArchive.SaveSnapshot(summary, updates); err != nil {
			log.Printf("Failed to archive tick snapshot: %v", err)
		}
	}
}

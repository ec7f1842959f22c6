package services

import (
	"context"
	"log"
	"time"

	"condogate/internal/pkg/clock"

	"github.com/robfig/cron/v3"
)

// DigestService publishes a daily summary of gate activity. It reads and
// reports only; token and code expiry is always judged lazily at access
// time, never swept by this or any other background job.
type DigestService struct {
	accessService *AccessService
	clock         clock.Clock
	cron          *cron.Cron
	spec          string
}

// NewDigestService creates the digest scheduler. spec is a cron
// expression; the default publishes at 07:00 every day.
func NewDigestService(accessService *AccessService, clk clock.Clock, spec string) *DigestService {
	if spec == "" {
		spec = "0 7 * * *"
	}
	return &DigestService{
		accessService: accessService,
		clock:         clk,
		cron:          cron.New(),
		spec:          spec,
	}
}

// Start schedules the digest job.
func (s *DigestService) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.publish); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("✅ Daily digest scheduled (%s)", s.spec)
	return nil
}

// Stop halts the scheduler, waiting for a running job to finish.
func (s *DigestService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// publish computes and logs yesterday's gate activity.
func (s *DigestService) publish() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := s.clock.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := dayStart.AddDate(0, 0, -1)
	to := dayStart.Add(-time.Second)

	stats, err := s.accessService.Statistics(ctx, from, to)
	if err != nil {
		log.Printf("❌ Daily digest failed: %v", err)
		return
	}

	log.Printf("📊 Gate digest %s: %d total, %d authorized, %d rejected, %d pending, %d distinct visitors",
		from.Format("2006-01-02"), stats.Total, stats.Authorized, stats.Rejected, stats.Pending, stats.DistinctVisitors)
	for _, u := range stats.TopUnits {
		log.Printf("📊   unit %s-%s: %d events", u.Block, u.Unit, u.Count)
	}
}

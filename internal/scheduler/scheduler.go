package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/panjf2000/ants/v2"

	"github.com/i474232898/farm-weather/internal/weather"
)

const (
	defaultInterval = 25 * time.Minute
	refreshTimeout  = 30 * time.Second
	poolSize        = 4
)

// Refresher rebuilds the cache entry for one address.
type Refresher interface {
	Refresh(ctx context.Context, rec weather.AddressRecord) error
}

// Scheduler keeps cache entries for configured districts warm.
type Scheduler struct {
	scheduler *gocron.Scheduler
	pool      *ants.Pool
	refresher Refresher
	targets   []weather.AddressRecord
	interval  time.Duration
	immediate bool
}

// New creates a new Scheduler for the given districts.
func New(districts []string, state string, interval time.Duration, immediate bool, refresher Refresher) (*Scheduler, error) {
	pool, err := ants.NewPool(poolSize, ants.WithPanicHandler(func(r interface{}) {
		log.Printf("ERROR: [scheduler] refresh panicked: %v", r)
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	targets := make([]weather.AddressRecord, 0, len(districts))
	for _, d := range districts {
		targets = append(targets, weather.AddressRecord{District: d, State: state})
	}
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		pool:      pool,
		refresher: refresher,
		targets:   targets,
		interval:  interval,
		immediate: immediate,
	}, nil
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.targets) == 0 {
		log.Println("INFO: [scheduler] no warm districts configured; nothing to schedule")
		return nil
	}

	job := s.scheduler.Every(s.interval)
	if !s.immediate {
		job = job.WaitForSchedule()
	}
	if _, err := job.Do(s.RunOnce); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	log.Printf("INFO: [scheduler] warming %d districts every %s", len(s.targets), s.interval)
	return nil
}

// RunOnce refreshes every target through the worker pool and waits for completion.
func (s *Scheduler) RunOnce() {
	log.Println("INFO: [scheduler] running cache warm-up job")

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, rec := range s.targets {
		rec := rec
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			defer cancel()

			if err := s.refresher.Refresh(ctx, rec); err != nil {
				log.Printf("WARN: [scheduler] refresh failed district=%s: %v", rec.District, err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		})
		if err != nil {
			wg.Done()
			log.Printf("ERROR: [scheduler] submit failed district=%s: %v", rec.District, err)
		}
	}
	wg.Wait()
	log.Printf("INFO: [scheduler] completed cache warm-up job targets=%d failed=%d", len(s.targets), failed)
}

// Stop stops the scheduler and releases the worker pool.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.pool != nil {
		s.pool.Release()
	}
}

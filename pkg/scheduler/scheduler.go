// Package scheduler pre-generates the daily puzzles, so the first player of a UTC day doesn't
// wait for the scraping pipeline.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/wikidaily/pkg/daily"
)

// Task builds one daily puzzle, generators cache what they build
type Task struct {
	Name     string
	Generate func(ctx context.Context, date time.Time) error
}

// TaskOf makes a task from a puzzle generator
func TaskOf[T any](name string, generate func(ctx context.Context, date time.Time) (T, error)) Task {
	return Task{Name: name, Generate: func(ctx context.Context, date time.Time) error {
		_, err := generate(ctx, date)
		return err
	}}
}

// Params of the preloader
type Params struct {
	Tasks    []Task
	Interval time.Duration // how often the UTC date is checked
	Now      func() time.Time
}

// Preloader runs all tasks once per UTC day, retrying failed ones on the next tick
type Preloader struct {
	tasks    []Task
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	done   map[string]string // task name -> date key it last succeeded for
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPreloader makes a preloader, zero params get defaults
func NewPreloader(p Params) *Preloader {
	if p.Interval <= 0 {
		p.Interval = 5 * time.Minute
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Preloader{tasks: p.Tasks, interval: p.Interval, now: p.Now, done: map[string]string{}}
}

// Start runs the preload worker until ctx is canceled or Stop is called
func (p *Preloader) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.worker(ctx)
	lgr.Printf("[INFO] preloader started for %d puzzles, check interval %v", len(p.tasks), p.interval)
}

// Stop cancels the worker and waits for it
func (p *Preloader) Stop() {
	lgr.Printf("[INFO] stopping preloader...")
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	lgr.Printf("[INFO] preloader stopped")
}

func (p *Preloader) worker(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// run immediately on start
	p.Preload(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Preload(ctx)
		}
	}
}

// Preload runs the tasks not yet done for the current UTC day, concurrently
func (p *Preloader) Preload(ctx context.Context) {
	date := p.now()
	dateKey := daily.DateKey(date)

	var eg errgroup.Group
	for _, t := range p.tasks {
		p.mu.Lock()
		done := p.done[t.Name] == dateKey
		p.mu.Unlock()
		if done {
			continue
		}

		eg.Go(func() error {
			start := time.Now()
			if err := t.Generate(ctx, date); err != nil {
				lgr.Printf("[WARN] preload of %s for %s failed: %v", t.Name, dateKey, err)
				return nil
			}
			lgr.Printf("[INFO] preloaded %s for %s in %v", t.Name, dateKey, time.Since(start).Round(time.Millisecond))
			p.mu.Lock()
			p.done[t.Name] = dateKey
			p.mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
}

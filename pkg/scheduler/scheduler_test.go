package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type recorder struct {
	mu    sync.Mutex
	dates []string
	fails int // calls to fail before succeeding
}

func (r *recorder) generate(_ context.Context, date time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails > 0 {
		r.fails--
		return "", errors.New("wikipedia is down")
	}
	r.dates = append(r.dates, date.Format("2006-01-02"))
	return "puzzle", nil
}

func (r *recorder) Dates() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.dates...)
}

func TestPreloader_Preload(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2024, 1, 10, 23, 0, 0, 0, time.UTC)}
	good, flaky := &recorder{}, &recorder{fails: 1}
	p := NewPreloader(Params{
		Tasks: []Task{TaskOf("linkQuest", good.generate), TaskOf("knowledgeWeb", flaky.generate)},
		Now:   clk.Now,
	})

	p.Preload(ctx)
	assert.Equal(t, []string{"2024-01-10"}, good.Dates())
	assert.Empty(t, flaky.Dates())

	// same day: only the failed task runs again
	clk.Set(time.Date(2024, 1, 10, 23, 30, 0, 0, time.UTC))
	p.Preload(ctx)
	assert.Equal(t, []string{"2024-01-10"}, good.Dates())
	assert.Equal(t, []string{"2024-01-10"}, flaky.Dates())

	p.Preload(ctx)
	assert.Len(t, good.Dates(), 1)
	assert.Len(t, flaky.Dates(), 1)

	// next UTC day
	clk.Set(time.Date(2024, 1, 11, 0, 1, 0, 0, time.UTC))
	p.Preload(ctx)
	assert.Equal(t, []string{"2024-01-10", "2024-01-11"}, good.Dates())
	assert.Equal(t, []string{"2024-01-10", "2024-01-11"}, flaky.Dates())
}

func TestPreloader_StartStop(t *testing.T) {
	clk := &clock{now: time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)}
	var calls atomic.Int32
	task := Task{Name: "whatInTheWiki", Generate: func(context.Context, time.Time) error {
		calls.Add(1)
		return nil
	}}
	p := NewPreloader(Params{Tasks: []Task{task}, Interval: 10 * time.Millisecond, Now: clk.Now})

	p.Start(context.Background())
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	clk.Set(time.Date(2024, 1, 11, 0, 0, 1, 0, time.UTC))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	p.Stop()
	stopped := calls.Load()
	clk.Set(time.Date(2024, 1, 12, 0, 0, 1, 0, time.UTC))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, calls.Load(), "no preloads after stop")
}

func TestNewPreloader_Defaults(t *testing.T) {
	p := NewPreloader(Params{})
	assert.Equal(t, 5*time.Minute, p.interval)
	assert.NotNil(t, p.now)
	p.Stop() // stop before start is a no-op
}

package library

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingScanner struct {
	n    atomic.Int32
	done chan struct{}
}

func newCountingScanner() *countingScanner {
	return &countingScanner{done: make(chan struct{}, 100)}
}

func (c *countingScanner) Scan(ctx context.Context) (ScanResult, error) {
	c.n.Add(1)
	c.done <- struct{}{}
	return ScanResult{}, nil
}

func (c *countingScanner) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("scan did not run")
	}
}

func TestScheduler_CoalescesBurst(t *testing.T) {
	sc := newCountingScanner()
	s := NewScheduler(sc, 50*time.Millisecond, testLogger())
	defer s.Close()

	for i := 0; i < 20; i++ {
		s.Trigger()
	}
	assert.True(t, s.Pending())

	sc.wait(t)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), sc.n.Load())
	assert.False(t, s.Pending())
}

func TestScheduler_SpacedTriggersEachScan(t *testing.T) {
	sc := newCountingScanner()
	s := NewScheduler(sc, 10*time.Millisecond, testLogger())
	defer s.Close()

	for i := 0; i < 3; i++ {
		s.Trigger()
		sc.wait(t)
	}
	assert.Equal(t, int32(3), sc.n.Load())
}

func TestScheduler_StopCancelsPending(t *testing.T) {
	sc := newCountingScanner()
	s := NewScheduler(sc, 50*time.Millisecond, testLogger())
	defer s.Close()

	s.Trigger()
	s.Stop()
	assert.False(t, s.Pending())

	time.Sleep(120 * time.Millisecond)
	assert.Zero(t, sc.n.Load())

	s.Trigger()
	sc.wait(t)
}

func TestScheduler_CloseIgnoresTriggers(t *testing.T) {
	sc := newCountingScanner()
	s := NewScheduler(sc, 10*time.Millisecond, testLogger())
	s.Close()

	s.Trigger()
	assert.False(t, s.Pending())
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, sc.n.Load())
}

func TestScheduler_SetDebounce(t *testing.T) {
	sc := newCountingScanner()
	s := NewScheduler(sc, time.Hour, testLogger())
	defer s.Close()

	s.SetDebounce(10 * time.Millisecond)
	s.Trigger()
	sc.wait(t)
}

func TestRunPeriodic(t *testing.T) {
	sc := newCountingScanner()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- RunPeriodic(ctx, sc, 10*time.Millisecond, testLogger()) }()

	sc.wait(t)
	sc.wait(t)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunPeriodic did not return")
	}
}

func TestRunPeriodic_DisabledReturnsImmediately(t *testing.T) {
	sc := newCountingScanner()
	assert.NoError(t, RunPeriodic(context.Background(), sc, 0, testLogger()))
	assert.Zero(t, sc.n.Load())
}

package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// blockingService blocks in Start until stopped, recording the order
// its Stop ran in.
type blockingService struct {
	name    string
	order   *stopOrder
	done    chan struct{}
	started sync.WaitGroup
}

type stopOrder struct {
	mu    sync.Mutex
	names []string
}

func (o *stopOrder) record(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.names = append(o.names, name)
}

func (o *stopOrder) list() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.names...)
}

func newBlockingService(name string, order *stopOrder) *blockingService {
	s := &blockingService{
		name:  name,
		order: order,
		done:  make(chan struct{}),
	}
	s.started.Add(1)
	return s
}

func (s *blockingService) Start() error {
	s.started.Done()
	<-s.done
	return nil
}

func (s *blockingService) Stop() {
	s.order.record(s.name)
	close(s.done)
}

func TestRunStopsInReverseOrder(t *testing.T) {
	order := &stopOrder{}
	first := newBlockingService("first", order)
	second := newBlockingService("second", order)

	r := NewRunner(zaptest.NewLogger(t))
	r.Register("first", first)
	r.Register("second", second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx)
	}()

	first.started.Wait()
	second.started.Wait()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not shut down in time")
	}

	assert.Equal(t, []string{"second", "first"}, order.list())
}

func TestRunReturnsFailingServiceError(t *testing.T) {
	boom := errors.New("listener gone")
	order := &stopOrder{}
	steady := newBlockingService("steady", order)

	r := NewRunner(zaptest.NewLogger(t))
	r.Register("steady", steady)
	r.Register("flaky", &FuncService{
		StartFn: func() error { return boom },
		StopFn:  func() {},
	})

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "flaky")
	assert.Equal(t, []string{"steady"}, order.list())
}

func TestFuncService(t *testing.T) {
	started := false
	stopped := false

	svc := &FuncService{
		StartFn: func() error {
			started = true
			return nil
		},
		StopFn: func() {
			stopped = true
		},
	}

	require.NoError(t, svc.Start())
	assert.True(t, started)

	svc.Stop()
	assert.True(t, stopped)
}

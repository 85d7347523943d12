package workpool

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsEnqueuedJobs(t *testing.T) {
	p := New(4)
	p.Start(2, func(payload any) (any, error) {
		return payload.(int) * 2, nil
	})
	defer p.Stop()

	var wg sync.WaitGroup
	results := make([]int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		i := i
		p.Enqueue(i, func(result any, err error) {
			defer wg.Done()
			if err != nil {
				t.Errorf("job %d: unexpected error %v", i, err)
				return
			}
			results[i] = result.(int)
		})
	}
	wg.Wait()

	for i, got := range results {
		if got != i*2 {
			t.Errorf("results[%d] = %d, want %d", i, got, i*2)
		}
	}
}

func TestPoolHandlerPanicBecomesJobFailure(t *testing.T) {
	p := New(2)
	p.Start(1, func(payload any) (any, error) {
		panic("boom")
	})
	defer p.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	var gotErr error
	p.Enqueue(nil, func(result any, err error) {
		defer wg.Done()
		gotErr = err
	})
	wg.Wait()

	if gotErr == nil {
		t.Errorf("expected a non-nil error after handler panic")
	}
}

func TestPoolCallbackPanicDoesNotKillWorker(t *testing.T) {
	p := New(1)
	p.Start(1, func(payload any) (any, error) {
		return payload, nil
	})
	defer p.Stop()

	p.Enqueue(1, func(result any, err error) {
		panic("callback boom")
	})

	// A second job must still be processed after the panicking callback.
	var wg sync.WaitGroup
	var processed int32
	wg.Add(1)
	p.Enqueue(2, func(result any, err error) {
		defer wg.Done()
		atomic.StoreInt32(&processed, 1)
	})
	wg.Wait()

	if atomic.LoadInt32(&processed) != 1 {
		t.Errorf("expected second job to still run after a panicking callback")
	}
}

func TestPoolGrowToIncreasesWorkerCount(t *testing.T) {
	p := New(10)
	p.Start(1, func(payload any) (any, error) { return nil, nil })
	defer p.Stop()

	if got := p.Workers(); got != 1 {
		t.Fatalf("Workers() = %d, want 1", got)
	}
	p.GrowTo(5)
	if got := p.Workers(); got != 5 {
		t.Errorf("Workers() = %d, want 5", got)
	}
	p.GrowTo(100)
	if got := p.Workers(); got != 10 {
		t.Errorf("Workers() = %d, want capped at max 10", got)
	}
}

func TestPoolStopDrainsQueue(t *testing.T) {
	p := New(1)
	var mu sync.Mutex
	var processed []int
	p.Start(1, func(payload any) (any, error) {
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		processed = append(processed, payload.(int))
		mu.Unlock()
		return nil, nil
	})

	for i := 0; i < 5; i++ {
		p.Enqueue(i, func(result any, err error) {})
	}
	p.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(processed) != 5 {
		t.Errorf("processed %d jobs, want 5 (stop must drain the queue)", len(processed))
	}
}

func TestPoolErrorPropagatesToCallback(t *testing.T) {
	p := New(1)
	wantErr := errors.New("fetch failed")
	p.Start(1, func(payload any) (any, error) {
		return nil, wantErr
	})
	defer p.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	var gotErr error
	p.Enqueue(nil, func(result any, err error) {
		defer wg.Done()
		gotErr = err
	})
	wg.Wait()

	if gotErr != wantErr {
		t.Errorf("gotErr = %v, want %v", gotErr, wantErr)
	}
}

package asset

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPathLocksSerializeSamePath(t *testing.T) {
	locks := newPathLocks()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locks.Lock(context.Background(), "public/product/a.json")
			if err != nil {
				t.Errorf("Lock returned error: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected at most one holder at a time, saw %d", maxInside)
	}
	if locks.size() != 0 {
		t.Fatalf("expected lock table to drain, %d entries left", locks.size())
	}
}

func TestPathLocksIndependentPaths(t *testing.T) {
	locks := newPathLocks()

	unlockA, err := locks.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("lock a: %v", err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := locks.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("lock b should not wait on a: %v", err)
	}
	unlockB()
}

func TestPathLocksHonorContext(t *testing.T) {
	locks := newPathLocks()

	unlock, err := locks.Lock(context.Background(), "busy")
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := locks.Lock(ctx, "busy"); err == nil {
		t.Fatalf("expected context error while path is held")
	}

	unlock()
	unlock()
	if locks.size() != 0 {
		t.Fatalf("expected lock table to drain, %d entries left", locks.size())
	}
}

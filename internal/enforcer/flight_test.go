package enforcer

import (
	"sync"
	"testing"
)

func TestSingleFlightExclusive(t *testing.T) {
	sf := NewSingleFlight()

	release, ok := sf.TryAcquire("jti-1")
	if !ok {
		t.Fatal("first TryAcquire failed")
	}

	if _, ok := sf.TryAcquire("jti-1"); ok {
		t.Fatal("second TryAcquire succeeded while the first claim is held")
	}

	// other jtis are unaffected
	release2, ok := sf.TryAcquire("jti-2")
	if !ok {
		t.Fatal("TryAcquire for a different jti failed")
	}
	release2()

	release()
	if _, ok := sf.TryAcquire("jti-1"); !ok {
		t.Fatal("TryAcquire failed after release")
	}
}

func TestSingleFlightReleaseIsIdempotent(t *testing.T) {
	sf := NewSingleFlight()

	release, ok := sf.TryAcquire("jti-1")
	if !ok {
		t.Fatal("TryAcquire failed")
	}
	release()
	release() // second call must not release someone else's claim

	again, ok := sf.TryAcquire("jti-1")
	if !ok {
		t.Fatal("TryAcquire failed after double release")
	}
	defer again()

	if _, ok := sf.TryAcquire("jti-1"); ok {
		t.Fatal("claim was lost after a stale release call")
	}
}

func TestSingleFlightConcurrent(t *testing.T) {
	sf := NewSingleFlight()

	const goroutines = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := sf.TryAcquire("jti-contended"); ok {
				mu.Lock()
				winners++
				mu.Unlock()
				// deliberately never released within the race window
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("%d goroutines acquired the claim, want exactly 1", winners)
	}
}

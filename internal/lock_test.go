package internal

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()

	const (
		workers = 16
		perG    = 500
	)
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				unlock := m.Lock("user-1")
				counter++
				unlock()
			}
		}()
	}
	wg.Wait()

	if counter != workers*perG {
		t.Fatalf("counter = %d, want %d", counter, workers*perG)
	}
}

func TestKeyedMutexStripeIndexStable(t *testing.T) {
	if stripeIndex("user-1") != stripeIndex("user-1") {
		t.Fatal("stripe index must be deterministic")
	}
	if stripeIndex("user-1") >= lockStripes {
		t.Fatal("stripe index out of range")
	}
}

func TestKeyedMutexUnlockReleases(t *testing.T) {
	m := NewKeyedMutex()

	unlock := m.Lock("user-1")
	unlock()

	done := make(chan struct{})
	go func() {
		unlock := m.Lock("user-1")
		unlock()
		close(done)
	}()
	<-done
}

package ids

import (
	"sync"
	"testing"
)

func TestNewProducesUniqueSortedIDs(t *testing.T) {
	a := New()
	b := New()
	if len(a) != 26 || len(b) != 26 {
		t.Fatalf("expected 26-char ULIDs, got %q %q", a, b)
	}
	if a == b {
		t.Fatalf("consecutive ids must differ")
	}
	if !(a < b) {
		t.Fatalf("ids must be monotonically ordered: %q then %q", a, b)
	}
}

func TestNewIsSafeForConcurrentUse(t *testing.T) {
	const n = 100
	var (
		mu   sync.Mutex
		seen = make(map[string]bool, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := New()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != n {
		t.Fatalf("expected %d distinct ids, got %d", n, len(seen))
	}
}

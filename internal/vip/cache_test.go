package vip

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeLister struct {
	mu      sync.Mutex
	names   []string
	calls   int32
	blockCh chan struct{}
}

func (f *fakeLister) ReservedList(ctx context.Context) ([]string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.blockCh != nil {
		<-f.blockCh
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.names...), nil
}

func TestIsVIPFreshCacheHit(t *testing.T) {
	lister := &fakeLister{names: []string{"alice"}}
	c := New(lister, nil)

	ok, err := c.IsVIP(context.Background(), "alice")
	if err != nil || !ok {
		t.Fatalf("got (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = c.IsVIP(context.Background(), "alice")
	if err != nil || !ok {
		t.Fatalf("cached lookup: got (%v, %v)", ok, err)
	}
	if atomic.LoadInt32(&lister.calls) != 1 {
		t.Fatalf("expected exactly one refresh, got %d", lister.calls)
	}
}

func TestIsVIPNonMemberIsFalse(t *testing.T) {
	lister := &fakeLister{names: []string{"alice"}}
	c := New(lister, nil)

	ok, err := c.IsVIP(context.Background(), "bob")
	if err != nil || ok {
		t.Fatalf("got (%v, %v), want (false, nil)", ok, err)
	}
}

func TestIsVIPGraceWindowReturnsPessimisticNo(t *testing.T) {
	lister := &fakeLister{names: []string{"alice"}}
	c := New(lister, nil)
	c.freshness = 500 * time.Millisecond // grace window runs from 500ms to 550ms

	if _, err := c.IsVIP(context.Background(), "alice"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	time.Sleep(520 * time.Millisecond) // past freshness, inside the grace window

	ok, err := c.IsVIP(context.Background(), "alice")
	if err != nil {
		t.Fatalf("IsVIP: %v", err)
	}
	if ok {
		t.Fatalf("expected pessimistic false within grace window")
	}
	if atomic.LoadInt32(&lister.calls) != 1 {
		t.Fatalf("grace window must not trigger a refresh, got %d calls", lister.calls)
	}
}

func TestConcurrentRefreshIsCoalesced(t *testing.T) {
	lister := &fakeLister{names: []string{"alice"}, blockCh: make(chan struct{})}
	c := New(lister, nil)

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			c.IsVIP(context.Background(), "alice")
		}()
	}
	time.Sleep(20 * time.Millisecond) // let all goroutines queue behind the single in-flight fetch
	close(lister.blockCh)
	wg.Wait()

	if got := atomic.LoadInt32(&lister.calls); got != 1 {
		t.Fatalf("expected exactly one coalesced refresh, got %d", got)
	}
}

package resilience

import "sync"

// Group deduplicates concurrent calls for the same key.
type Group[V any] struct {
	mu    sync.Mutex
	calls map[string]*flight[V]
}

type flight[V any] struct {
	wg  sync.WaitGroup
	val V
	err error
}

// Do runs fn once per key at a time; concurrent callers with the same key
// wait and share the result. shared reports whether the result came from
// another caller's run.
func (g *Group[V]) Do(key string, fn func() (V, error)) (v V, err error, shared bool) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*flight[V])
	}
	if f, ok := g.calls[key]; ok {
		g.mu.Unlock()
		f.wg.Wait()
		return f.val, f.err, true
	}

	f := &flight[V]{}
	f.wg.Add(1)
	g.calls[key] = f
	g.mu.Unlock()

	defer func() {
		f.wg.Done()
		g.mu.Lock()
		delete(g.calls, key)
		g.mu.Unlock()
	}()

	f.val, f.err = fn()
	return f.val, f.err, false
}

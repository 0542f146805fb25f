package engine

import "sync"

// searchRequest is one specialist's pending web search.
type searchRequest struct {
	agent string
	query string
}

// searchArbiter serializes web searches. One search runs at a time; requests
// arriving while the searcher is busy queue FIFO and are drained by the
// goroutine that holds the searcher.
type searchArbiter struct {
	mu    sync.Mutex
	busy  bool
	queue []searchRequest
}

func newSearchArbiter() *searchArbiter {
	return &searchArbiter{}
}

// acquire claims the searcher for the given request. When the searcher is
// busy the request is queued instead and false is returned.
func (a *searchArbiter) acquire(agent, query string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.busy {
		a.queue = append(a.queue, searchRequest{agent: agent, query: query})
		return false
	}
	a.busy = true
	return true
}

// release hands the searcher to the next queued request, if any. The caller
// must currently hold the searcher. When the queue is empty the searcher
// becomes free and ok is false.
func (a *searchArbiter) release() (next searchRequest, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.queue) == 0 {
		a.busy = false
		return searchRequest{}, false
	}
	next = a.queue[0]
	a.queue = a.queue[1:]
	return next, true
}

// drain discards queued requests during shutdown.
func (a *searchArbiter) drain() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queue = nil
}

func (a *searchArbiter) pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

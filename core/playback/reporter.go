package playback

import (
	"context"
	"sync"
	"time"

	"kgicweb/logger"
)

// PlayCounter increments the server-side play counter. The returned count is
// 0 when the server did not report one.
type PlayCounter interface {
	IncrementPlay(ctx context.Context, id string) (int64, error)
}

// Reporter sends play reports in the background and keeps optimistic counts.
// Failed reports are dropped and their optimistic increment reverted.
type Reporter struct {
	counter PlayCounter
	timeout time.Duration

	mu        sync.Mutex
	lastSeq   uint64
	pending   map[string]int64
	confirmed map[string]int64
	// listed is the count from the latest listing passed to Count.
	listed map[string]int64
	wg     sync.WaitGroup
}

func NewReporter(counter PlayCounter) *Reporter {
	return &Reporter{
		counter:   counter,
		timeout:   10 * time.Second,
		pending:   make(map[string]int64),
		confirmed: make(map[string]int64),
		listed:    make(map[string]int64),
	}
}

// ReportPlay reports one play for the play invocation seq. Repeated calls for
// the same or an older seq are ignored. It never blocks on the network.
func (r *Reporter) ReportPlay(seq uint64, id string) bool {
	r.mu.Lock()
	if seq <= r.lastSeq {
		r.mu.Unlock()
		return false
	}
	r.lastSeq = seq
	r.pending[id]++
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		count, err := r.counter.IncrementPlay(ctx, id)

		r.mu.Lock()
		defer r.mu.Unlock()
		if err != nil {
			r.pending[id]--
			logger.Debug("Play report dropped", logger.String("id", id), logger.ErrorField(err))
			return
		}
		r.pending[id]--
		if count == 0 {
			// 服务端未返回次数：在最近一次列表值上加一
			count = max(r.confirmed[id], r.listed[id]) + 1
		}
		if count > r.confirmed[id] {
			r.confirmed[id] = count
		}
	}()
	return true
}

// Count returns the count to display for id, given the count from the last listing.
func (r *Reporter) Count(id string, listed int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listed[id] = listed
	base := listed
	if c := r.confirmed[id]; c > base {
		base = c
	}
	return base + r.pending[id]
}

// Reconcile records a count announced by the server.
func (r *Reporter) Reconcile(id string, count int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if count > r.confirmed[id] {
		r.confirmed[id] = count
	}
}

// Wait blocks until in-flight reports finish or ctx is done.
func (r *Reporter) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

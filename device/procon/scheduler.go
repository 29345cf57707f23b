package procon

import (
	"sync"
	"time"
)

// run is one streaming period. Both loops of a run share its stop channel.
type run struct {
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func (r *run) halt() {
	r.once.Do(func() { close(r.stop) })
}

// scheduler owns at most one run at a time. A halted run stays current until
// the next start has waited for its loops, so a stopped sender that is still
// inside a write never overlaps its successor.
type scheduler struct {
	mu      sync.Mutex
	current *run
	closed  bool
}

// start halts any previous run, waits until its loops have returned, and then
// launches the given loops under a fresh stop signal. It reports false without
// starting anything once the scheduler is closed.
func (s *scheduler) start(loops ...func(r *run)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev := s.current; prev != nil {
		prev.halt()
		prev.wg.Wait()
		s.current = nil
	}
	if s.closed {
		return false
	}

	r := &run{stop: make(chan struct{})}
	r.wg.Add(len(loops))
	for _, loop := range loops {
		go func() {
			defer r.wg.Done()
			loop(r)
		}()
	}
	s.current = r
	return true
}

// stop raises the stop signal of the current run, if any, and reports
// whether one was running. It does not wait.
func (s *scheduler) stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.current
	if r == nil {
		return false
	}
	select {
	case <-r.stop:
		return false
	default:
	}
	r.halt()
	return true
}

// stopAndWait stops the current run, waits for its loops to exit and refuses
// further starts until reopen.
func (s *scheduler) stopAndWait() {
	s.mu.Lock()
	s.closed = true
	r := s.current
	s.current = nil
	s.mu.Unlock()
	if r != nil {
		r.halt()
		r.wg.Wait()
	}
}

// reopen allows start again after stopAndWait.
func (s *scheduler) reopen() {
	s.mu.Lock()
	s.closed = false
	s.mu.Unlock()
}

// every calls fn once per interval until the run stops or fn returns false.
// The first call happens one interval after entry. Deadlines are absolute so
// a slow fn does not shift the phase of later calls.
func every(r *run, interval time.Duration, fn func() bool) {
	next := time.Now()
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		next = nextDeadline(next, time.Now(), interval)
		timer.Reset(time.Until(next))
		select {
		case <-r.stop:
			return
		case <-timer.C:
		}
		select {
		case <-r.stop:
			return
		default:
		}
		if !fn() {
			return
		}
	}
}

// nextDeadline advances prev by one interval. When the caller has fallen more
// than an interval behind, whole missed slots are skipped.
func nextDeadline(prev, now time.Time, interval time.Duration) time.Time {
	next := prev.Add(interval)
	if lag := now.Sub(next); lag > interval {
		next = next.Add(lag / interval * interval)
	}
	return next
}

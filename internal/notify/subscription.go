// README: Cancellable, ordered subscription with an unbounded queue; publishing never blocks.
package notify

import "sync"

// Subscription delivers published values in order on C(). Publish never blocks the caller.
// After Cancel returns, C() is closed and nothing else is delivered; later Publish calls are
// no-ops that report false.
type Subscription[T any] struct {
	mu       sync.Mutex
	queue    []T
	closed   bool
	onCancel []func()

	signal chan struct{}
	out    chan T
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
}

func New[T any]() *Subscription[T] {
	s := &Subscription[T]{
		signal: make(chan struct{}, 1),
		out:    make(chan T),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *Subscription[T]) C() <-chan T {
	return s.out
}

// Done is closed once Cancel has been called.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription[T]) Publish(v T) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, v)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
	return true
}

// OnCancel registers f to run after the subscription is cancelled. If it already is, f runs now.
func (s *Subscription[T]) OnCancel(f func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		f()
		return
	}
	s.onCancel = append(s.onCancel, f)
	s.mu.Unlock()
}

// Cancel is idempotent and safe to call from the goroutine reading C().
func (s *Subscription[T]) Cancel() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		hooks := s.onCancel
		s.onCancel = nil
		s.mu.Unlock()

		close(s.done)
		<-s.exited
		for _, f := range hooks {
			f()
		}
	})
}

func (s *Subscription[T]) pump() {
	defer close(s.exited)
	defer close(s.out)

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}
		v := s.queue[0]
		var zero T
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- v:
		case <-s.done:
			return
		}
	}
}

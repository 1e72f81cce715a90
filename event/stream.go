package event

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrStreamClosed  = errors.New("stream closed")
	ErrNotifyTimeout = errors.New("timed out notifying stream")
)

type Stream[E any] interface {
	ID() string
	Notify(event E, timeout time.Duration) error
	Close()
}

var _ Stream[int] = (*ChanStream[int, int])(nil)

// ChanStream forwards selected events onto a buffered channel.
//
// A stream whose reader falls behind is closed rather than blocking the
// notifier: when Notify cannot send within its timeout the channel is closed,
// and every later Notify returns an error. Readers see the close as the end
// of Channel.
type ChanStream[E, T any] struct {
	sync.Mutex

	id string

	closed   bool
	ch       chan T
	selector func(E) (T, bool)
}

func NewChanStream[E, T any](
	id string,
	bufferSize int,
	selector func(event E) (T, bool),
) *ChanStream[E, T] {
	return &ChanStream[E, T]{
		id:       id,
		ch:       make(chan T, bufferSize),
		selector: selector,
	}
}

func (s *ChanStream[E, T]) ID() string {
	return s.id
}

// Notify sends the selected form of event, waiting up to timeout for buffer
// space. Events the selector rejects are ignored. On timeout the stream is
// closed and ErrNotifyTimeout is returned; later calls return
// ErrStreamClosed.
func (s *ChanStream[E, T]) Notify(event E, timeout time.Duration) error {
	msg, ok := s.selector(event)
	if !ok {
		return nil
	}

	s.Lock()
	if s.closed {
		s.Unlock()
		return ErrStreamClosed
	}

	select {
	case s.ch <- msg:
	case <-time.After(timeout):
		s.Unlock()
		s.Close()
		return ErrNotifyTimeout
	}

	s.Unlock()
	return nil
}

func (s *ChanStream[E, T]) Channel() <-chan T {
	return s.ch
}

func (s *ChanStream[E, T]) Close() {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	close(s.ch)
}

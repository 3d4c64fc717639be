package telegram

import (
	"sync"
	"time"
)

// State is where a chat currently is in the conversation
type State int

const (
	StateIdle State = iota
	StateAwaitingURL
	StateAwaitingSort
	StateAwaitingFeedback
	StateAwaitingComment
)

func (s State) String() string {
	switch s {
	case StateAwaitingURL:
		return "awaiting_url"
	case StateAwaitingSort:
		return "awaiting_sort"
	case StateAwaitingFeedback:
		return "awaiting_feedback"
	case StateAwaitingComment:
		return "awaiting_comment"
	default:
		return "idle"
	}
}

// Pending is the resolved product a chat is choosing a sort mode for
type Pending struct {
	ProductURL string
	Name       string
	SKU        int64
}

// TimerFunc arms f to run after d and returns a function that disarms it
type TimerFunc func(d time.Duration, f func()) (stop func() bool)

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

type session struct {
	state   State
	pending Pending
	gen     uint64
	stop    func() bool
}

// SessionStore tracks per-chat conversation state and owns the chat's timer.
// Every transition bumps the chat's generation and disarms its timer, so a
// timer only fires for the state it was scheduled in.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*session
	timer    TimerFunc
	fires    sync.WaitGroup
	closed   bool
}

// NewSessionStore creates an empty session store
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]*session),
		timer:    afterFunc,
	}
}

// WithTimerFunc replaces the timer source, mainly for tests
func (s *SessionStore) WithTimerFunc(fn TimerFunc) *SessionStore {
	s.timer = fn
	return s
}

// State returns the chat's current state
func (s *SessionStore) State(chatID int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[chatID]; ok {
		return sess.state
	}
	return StateIdle
}

// Transition moves the chat to state, cancelling any armed timer, and returns the new generation
func (s *SessionStore) Transition(chatID int64, state State, pending Pending) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transitionLocked(chatID, state, pending)
}

// Clear returns the chat to idle
func (s *SessionStore) Clear(chatID int64) {
	s.Transition(chatID, StateIdle, Pending{})
}

// Take consumes the pending data when the chat is in state, returning it to idle
func (s *SessionStore) Take(chatID int64, state State) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[chatID]
	if !ok || sess.state != state {
		return Pending{}, false
	}
	pending := sess.pending
	s.transitionLocked(chatID, StateIdle, Pending{})
	return pending, true
}

// Schedule arms the chat's timer. When it fires while the chat is still at
// generation gen, the chat returns to idle and fire receives the pending data.
// Scheduling against a stale generation or a closed store does nothing.
func (s *SessionStore) Schedule(chatID int64, gen uint64, d time.Duration, fire func(Pending)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[chatID]
	if s.closed || !ok || sess.gen != gen {
		return false
	}
	if sess.stop != nil {
		sess.stop()
	}
	sess.stop = s.timer(d, func() {
		pending, ok := s.expire(chatID, gen)
		if ok {
			defer s.fires.Done()
			fire(pending)
		}
	})
	return true
}

// Close disarms every timer and waits for callbacks that already fired.
// Timers firing after Close do nothing.
func (s *SessionStore) Close() {
	s.mu.Lock()
	s.closed = true
	for _, sess := range s.sessions {
		if sess.stop != nil {
			sess.stop()
			sess.stop = nil
		}
	}
	s.mu.Unlock()

	s.fires.Wait()
}

func (s *SessionStore) expire(chatID int64, gen uint64) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[chatID]
	if s.closed || !ok || sess.gen != gen {
		return Pending{}, false
	}
	pending := sess.pending
	sess.stop = nil
	s.transitionLocked(chatID, StateIdle, Pending{})
	s.fires.Add(1)
	return pending, true
}

func (s *SessionStore) transitionLocked(chatID int64, state State, pending Pending) uint64 {
	sess, ok := s.sessions[chatID]
	if !ok {
		sess = &session{}
		s.sessions[chatID] = sess
	}
	if sess.stop != nil {
		sess.stop()
		sess.stop = nil
	}
	sess.gen++
	sess.state = state
	sess.pending = pending
	return sess.gen
}

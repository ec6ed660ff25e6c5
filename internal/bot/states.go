package bot

import "sync"

// stateKind enumerates the per-chat conversation states. The bot runs a
// small FSM per user: onboarding questions for everyone, edit prompts for
// admins.
type stateKind int

const (
	stateNone stateKind = iota

	stateOnboardingFIO
	stateOnboardingRegion
	stateOnboardingEmail

	stateAdminEditTitle
	stateAdminEditText
	stateAdminEditMedia
	stateAdminCreateTitle
	stateAdminCreateText
	stateAdminCreateMedia
	stateAdminGreeting
	stateAdminResponseWindow
	stateAdminSendInterval
	stateAdminBroadcast
)

// convState carries the state kind plus whatever data the flow accumulated
// so far.
type convState struct {
	kind stateKind

	postID int64
	page   int

	createTitle string
	createText  string

	broadcastHTML string
}

// stateStore keeps conversation states keyed by Telegram user id. Updates
// are handled sequentially per bot instance, but callbacks and messages can
// interleave, so access is guarded.
type stateStore struct {
	mu sync.Mutex
	m  map[int64]convState
}

func newStateStore() *stateStore {
	return &stateStore{m: make(map[int64]convState)}
}

func (s *stateStore) get(userID int64) convState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[userID]
}

func (s *stateStore) set(userID int64, st convState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[userID] = st
}

// update mutates the existing state in place, preserving accumulated data.
func (s *stateStore) update(userID int64, fn func(*convState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.m[userID]
	fn(&st)
	s.m[userID] = st
}

func (s *stateStore) clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}

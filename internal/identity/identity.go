// Package identity tracks who a session belongs to. An empty user id means
// the visitor is anonymous and nothing is persisted for them.
package identity

import "sync"

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

func (u User) Anonymous() bool {
	return u.ID == ""
}

type Provider interface {
	Current() User
	// Watch yields the current user and then every change. cancel closes
	// the channel.
	Watch() (changes <-chan User, cancel func())
}

// Memory is a Provider set directly by the transport layer.
type Memory struct {
	mu       sync.Mutex
	user     User
	watchers map[chan User]struct{}
}

func NewMemory() *Memory {
	return &Memory{watchers: make(map[chan User]struct{})}
}

func (m *Memory) Current() User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// SignIn switches the session to u. Setting the same id again is not a
// change and notifies nobody.
func (m *Memory) SignIn(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == u {
		return
	}
	m.user = u
	for ch := range m.watchers {
		push(ch, u)
	}
}

func (m *Memory) SignOut() {
	m.SignIn(User{})
}

func (m *Memory) Watch() (<-chan User, func()) {
	ch := make(chan User, 1)
	m.mu.Lock()
	m.watchers[ch] = struct{}{}
	ch <- m.user
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, ch)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// push replaces any unread value so watchers only see the latest user.
// Caller holds mu.
func push(ch chan User, u User) {
	select {
	case <-ch:
	default:
	}
	ch <- u
}

package gateway

import (
	"sync"

	"github.com/google/uuid"

	"github.com/castlebay/arena/internal/rules"
)

// grant is what a join token resolves to: a session plus either a seat
// or spectator access.
type grant struct {
	sessionID string
	seat      rules.Color
	spectator bool
}

// tokenStore maps opaque join tokens to grants. Tokens are minted when
// a session is created and dropped with the session.
type tokenStore struct {
	mu        sync.RWMutex
	grants    map[string]grant
	bySession map[string][]string
}

func newTokenStore() *tokenStore {
	return &tokenStore{
		grants:    make(map[string]grant),
		bySession: make(map[string][]string),
	}
}

// Issue mints one token per seat plus a shareable spectator token.
func (t *tokenStore) Issue(sessionID string) (white, black, spectator string) {
	white = uuid.NewString()
	black = uuid.NewString()
	spectator = uuid.NewString()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.grants[white] = grant{sessionID: sessionID, seat: rules.White}
	t.grants[black] = grant{sessionID: sessionID, seat: rules.Black}
	t.grants[spectator] = grant{sessionID: sessionID, spectator: true}
	t.bySession[sessionID] = []string{white, black, spectator}
	return white, black, spectator
}

func (t *tokenStore) Resolve(token string) (grant, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	g, ok := t.grants[token]
	return g, ok
}

func (t *tokenStore) DropSession(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tok := range t.bySession[sessionID] {
		delete(t.grants, tok)
	}
	delete(t.bySession, sessionID)
}

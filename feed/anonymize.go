package feed

import (
	"fmt"
	"math/rand"
	"regexp"
	"sync"
	"time"
)

// NewSessionToken returns the random 4-digit token identifying one viewing
// session.
func NewSessionToken() string {
	return fmt.Sprintf("%d", 1000+rand.Intn(9000))
}

// Anonymizer masks commenter identities for the lifetime of one viewing
// session: each author ID gets a pseudonym number assigned lazily on first
// encounter and reused for the rest of the session. Moderators are always
// rendered as "Admin", overriding the cache. Pseudonyms are deliberately
// per-session, not stable per identity.
type Anonymizer struct {
	token string

	mu       sync.Mutex
	assigned map[string]int
}

func NewAnonymizer(token string) *Anonymizer {
	return &Anonymizer{token: token, assigned: make(map[string]int)}
}

func (a *Anonymizer) Token() string {
	return a.token
}

func (a *Anonymizer) DisplayName(p *Principal) string {
	if p == nil {
		return "Anonymous " + a.token
	}
	if p.Moderator() {
		return "Admin"
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	n, ok := a.assigned[p.ID]
	if !ok {
		n = 1000 + rand.Intn(9000)
		a.assigned[p.ID] = n
	}
	return fmt.Sprintf("Anonymous %d", n)
}

// Session tokens come from clients, so only the 4-digit form is accepted;
// anything else starts a fresh session instead of keying the registry.
var sessionTokenRe = regexp.MustCompile(`^\d{4}$`)

const pseudonymIdleTTL = 30 * time.Minute

type pseudonymSession struct {
	anon     *Anonymizer
	lastSeen time.Time
}

// Pseudonyms hands out one Anonymizer per session token. Idle sessions
// expire, so stale or abandoned tokens do not accumulate.
type Pseudonyms struct {
	mu       sync.Mutex
	now      func() time.Time
	sessions map[string]*pseudonymSession
}

func NewPseudonyms() *Pseudonyms {
	return &Pseudonyms{
		now:      time.Now,
		sessions: make(map[string]*pseudonymSession),
	}
}

// Session returns the anonymizer for the given token, creating it on first
// use. An invalid or empty token starts a fresh session.
func (ps *Pseudonyms) Session(token string) *Anonymizer {
	if !sessionTokenRe.MatchString(token) {
		token = NewSessionToken()
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := ps.now()
	for key, s := range ps.sessions {
		if now.Sub(s.lastSeen) > pseudonymIdleTTL {
			delete(ps.sessions, key)
		}
	}

	s, ok := ps.sessions[token]
	if !ok {
		s = &pseudonymSession{anon: NewAnonymizer(token)}
		ps.sessions[token] = s
	}
	s.lastSeen = now
	return s.anon
}

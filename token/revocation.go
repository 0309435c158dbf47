package token

import (
	"sync"
	"time"
)

// RevocationList remembers token IDs that were ended before they expired.
type RevocationList interface {
	Revoke(jti string, exp time.Time)
	IsRevoked(jti string) bool
	Prune() int
}

// MemoryRevocationList keeps revoked IDs until their token would have expired
// anyway.
type MemoryRevocationList struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocationList(now func() time.Time) *MemoryRevocationList {
	if now == nil {
		now = time.Now
	}
	return &MemoryRevocationList{
		revoked: make(map[string]time.Time),
		now:     now,
	}
}

func (l *MemoryRevocationList) Revoke(jti string, exp time.Time) {
	if jti == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked[jti] = exp
}

func (l *MemoryRevocationList) IsRevoked(jti string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.revoked[jti]
	return ok
}

// Prune drops entries whose token has expired and reports how many went.
func (l *MemoryRevocationList) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for jti, exp := range l.revoked {
		if !now.Before(exp) {
			delete(l.revoked, jti)
			n++
		}
	}
	return n
}

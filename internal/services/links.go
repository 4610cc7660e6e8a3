package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LinkTarget is what a one-time token points at. OwnerID is captured at
// issuance so downstream code can scope queries without re-resolving the
// caller.
type LinkTarget struct {
	TargetID uuid.UUID
	Kind     ItemKind
	OwnerID  uuid.UUID
	IssuedAt time.Time
}

// LinkRegistry issues and resolves one-time download tokens. The interface
// exists so the in-process table can be swapped for a shared expiring
// key-value store in a multi-process deployment.
type LinkRegistry interface {
	Issue(target LinkTarget) (string, error)
	Resolve(token string) (LinkTarget, bool)
	TTL() time.Duration
}

type issuedLink struct {
	target LinkTarget
	timer  *time.Timer
}

// MemoryLinkRegistry keeps tokens in a process-local table. Tokens are
// strictly single-use and time-bounded: the first successful Resolve removes
// the entry, and an expiry timer removes it if nobody claims it in time.
// Both paths mutate the map under one mutex, so concurrent resolution
// attempts for the same token observe exactly one success.
//
// State is deliberately not durable; links do not survive a restart.
type MemoryLinkRegistry struct {
	mu    sync.Mutex
	ttl   time.Duration
	links map[string]*issuedLink
}

func NewMemoryLinkRegistry(ttl time.Duration) *MemoryLinkRegistry {
	return &MemoryLinkRegistry{
		ttl:   ttl,
		links: make(map[string]*issuedLink),
	}
}

func (r *MemoryLinkRegistry) TTL() time.Duration {
	return r.ttl
}

func (r *MemoryLinkRegistry) Issue(target LinkTarget) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating link token: %w", err)
	}
	token := hex.EncodeToString(buf)

	target.IssuedAt = time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	link := &issuedLink{target: target}
	link.timer = time.AfterFunc(r.ttl, func() {
		r.expire(token)
	})
	r.links[token] = link

	return token, nil
}

func (r *MemoryLinkRegistry) Resolve(token string) (LinkTarget, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[token]
	if !ok {
		return LinkTarget{}, false
	}

	delete(r.links, token)
	link.timer.Stop()

	return link.target, true
}

func (r *MemoryLinkRegistry) expire(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Already resolved if absent; the delete below is then a no-op.
	delete(r.links, token)
}

// Close stops every outstanding expiry timer. Pending links are discarded.
func (r *MemoryLinkRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for token, link := range r.links {
		link.timer.Stop()
		delete(r.links, token)
	}
}

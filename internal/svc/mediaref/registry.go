package mediaref

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mkrupp/gymtracker/internal/infra/logging"
)

// DefaultPrefix starts every minted reference unless configured otherwise.
const DefaultPrefix = "/refs/"

// Registry holds the payloads behind live display references.
// A reference resolves from Mint until its first Revoke.
type Registry struct {
	prefix string
	log    logging.Logger

	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	payload  []byte
	mimeType string
}

// NewRegistry returns an empty registry minting references below prefix.
func NewRegistry(prefix string) *Registry {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Registry{
		prefix:  prefix,
		log:     logging.GetLogger("svc.mediaref.registry"),
		entries: make(map[string]entry),
	}
}

// Prefix returns the prefix of minted references.
func (r *Registry) Prefix() string {
	return r.prefix
}

// Mint registers payload and returns a fresh reference to it.
func (r *Registry) Mint(payload []byte, mimeType string) string {
	ref := r.prefix + uuid.NewString()

	r.mu.Lock()
	r.entries[ref] = entry{payload: payload, mimeType: mimeType}
	live := len(r.entries)
	r.mu.Unlock()

	r.log.Debug("reference minted", "ref", ref, "size", len(payload), "live", live)

	return ref
}

// Lookup returns the payload behind a live reference.
func (r *Registry) Lookup(ref string) (payload []byte, mimeType string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[ref]

	return e.payload, e.mimeType, ok
}

// LookupToken resolves a reference given only the part after the prefix.
func (r *Registry) LookupToken(token string) ([]byte, string, bool) {
	if token == "" || strings.Contains(token, "/") {
		return nil, "", false
	}

	return r.Lookup(r.prefix + token)
}

// Revoke invalidates ref. It reports true only for the call that actually
// revoked a live reference.
func (r *Registry) Revoke(ref string) bool {
	r.mu.Lock()
	_, ok := r.entries[ref]
	delete(r.entries, ref)
	live := len(r.entries)
	r.mu.Unlock()

	if ok {
		r.log.Debug("reference revoked", "ref", ref, "live", live)
	} else {
		r.log.Warn("reference already revoked", "ref", ref)
	}

	return ok
}

// Live returns the number of unrevoked references.
func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

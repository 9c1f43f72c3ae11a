package mediaref

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mkrupp/gymtracker/internal/infra/logging"
	"github.com/mkrupp/gymtracker/internal/svc/mediasvc"
)

// Manager resolves media inputs into display handles for bound UI elements.
type Manager struct {
	store mediasvc.MediaStore
	refs  *Registry
	log   logging.Logger

	nextID atomic.Uint64
	loads  sync.WaitGroup
}

// NewManager returns a Manager fetching payloads from store and minting
// references in refs.
func NewManager(store mediasvc.MediaStore, refs *Registry) *Manager {
	return &Manager{
		store: store,
		refs:  refs,
		log:   logging.GetLogger("svc.mediaref.manager"),
	}
}

// Registry returns the registry references are minted in.
func (m *Manager) Registry() *Registry {
	return m.refs
}

// Bind creates the binding for one mounted UI element. onChange receives
// every state transition in order; it is called with the binding's lock held
// and must not call back into the binding.
func (m *Manager) Bind(onChange func(View)) *Binding {
	if onChange == nil {
		onChange = func(View) {}
	}

	id := fmt.Sprintf("binding-%d", m.nextID.Add(1))

	return &Binding{
		id:       id,
		mgr:      m,
		onChange: onChange,
		release:  func() {},
		log:      m.log.With(logging.Group("binding", "id", id)),
	}
}

// Wait blocks until no binding has a fetch in flight.
func (m *Manager) Wait() {
	m.loads.Wait()
}
